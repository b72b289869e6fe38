package autodiff

import (
	"fmt"

	"github.com/ember-ml/ember/internal/tensor"
)

// BackwardOp computes the gradients of an operation's parents. It receives
// the Ops payload packaged at finish time, consumes the gradient of its own
// node from grads, and registers a gradient for every non-nil parent,
// resolving checkpointed values through the checkpointer.
type BackwardOp[S any] interface {
	Backward(ops Ops[S], grads *Gradients, checkpointer *Checkpointer)
}

// Ops is the payload handed to a backward step: the operation's parent
// nodes (nil for parents that do not require gradients), its own node, and
// the operation-specific state captured at finish time.
type Ops[S any] struct {
	Parents []*Node
	Node    *Node
	State   S
}

// Prep is the initial stage of the operation-preparation pipeline. It holds
// the parent tensors, the aggregate requirement (tracked if ANY parent
// requires gradients, re-derived on every preparation), the backward
// functor, and the two checkpointing action buffers.
//
// Legal call sequences are encoded by the stage types:
//
//	Prepare -> [ComputeBound | MemoryBound] -> Stateful -> Tracked.Finish
//	                                                    -> UnTracked.Finish
//	Prepare -> Stateless            (property defaults to Ambiguous)
//
// Each stage is reachable only from the previous one; finishing twice is a
// contract violation and panics.
type Prep[S any] struct {
	backward BackwardOp[S]
	parents  []*Tensor

	requirement Requirement
	property    ComputingProperty
	decided     []CheckpointingAction
	unsure      []CheckpointingAction
	finished    bool
}

// Prepare starts the preparation of an operation over the given parents.
func Prepare[S any](backward BackwardOp[S], parents ...*Tensor) *Prep[S] {
	requirement := RequirementNone
	for _, p := range parents {
		if !p.Node.requirement.IsNone() {
			requirement = RequirementGradInBackward
			break
		}
	}
	return &Prep[S]{
		backward:    backward,
		parents:     parents,
		requirement: requirement,
		property:    Ambiguous(),
	}
}

// ComputeBound tags the output value as cheap to keep: checkpointed by
// snapshot whenever a consumer needs it.
func (p *Prep[S]) ComputeBound() *PropertyChosen[S] {
	p.property = ComputeBound()
	return &PropertyChosen[S]{prep: p}
}

// MemoryBound tags the output value as expensive to keep, attaching the
// shared recomputation recipe consumers will use instead of a snapshot.
func (p *Prep[S]) MemoryBound(retro RetroForward) *PropertyChosen[S] {
	p.property = MemoryBound(retro)
	return &PropertyChosen[S]{prep: p}
}

// Stateful classifies the operation, skipping the property choice
// (defaults to Ambiguous).
func (p *Prep[S]) Stateful() OpsKind[S] {
	return p.stateful()
}

// Stateless finishes an operation with no backward state, skipping the
// property choice (defaults to Ambiguous).
func (p *Prep[S]) Stateless(output *tensor.RawTensor) *Tensor {
	return p.stateless(output)
}

// PropertyChosen is the stage after the computing property was decided.
type PropertyChosen[S any] struct {
	prep *Prep[S]
}

// Stateful classifies the operation as Tracked or UnTracked by the
// aggregate requirement. This is the single policy decision point: an
// operation participates in backward only when at least one input requires
// gradients.
func (pc *PropertyChosen[S]) Stateful() OpsKind[S] {
	return pc.prep.stateful()
}

// Stateless finishes an operation with no backward state: it is classified
// as Tracked or UnTracked and finished immediately with the zero state.
func (pc *PropertyChosen[S]) Stateless(output *tensor.RawTensor) *Tensor {
	return pc.prep.stateless(output)
}

func (p *Prep[S]) stateful() OpsKind[S] {
	if p.requirement.IsNone() {
		return OpsKind[S]{UnTracked: &UnTrackedPrep[S]{prep: p}}
	}
	return OpsKind[S]{Tracked: &TrackedPrep[S]{prep: p}}
}

func (p *Prep[S]) stateless(output *tensor.RawTensor) *Tensor {
	kind := p.stateful()
	if kind.Tracked != nil {
		var zero S
		return kind.Tracked.Finish(zero, output)
	}
	return kind.UnTracked.Finish(output)
}

// OpsKind is the result of classifying a preparation: exactly one of
// Tracked and UnTracked is non-nil.
type OpsKind[S any] struct {
	Tracked   *TrackedPrep[S]
	UnTracked *UnTrackedPrep[S]
}

// UnTrackedPrep finishes operations no gradient flows through.
type UnTrackedPrep[S any] struct {
	prep *Prep[S]
}

// Finish constructs the output tensor from the parents' graphs and the
// chosen computing property. No backward step is registered.
func (u *UnTrackedPrep[S]) Finish(output *tensor.RawTensor) *Tensor {
	p := u.prep
	p.ensureUnfinished()
	return fromParents(output, p.parents, p.requirement, p.property, p.decided, p.unsure)
}

// TrackedPrep finishes operations that participate in backward.
type TrackedPrep[S any] struct {
	prep *Prep[S]
}

// Checkpoint records, at preparation time, how the referenced tensor's
// value will be available during backward: a snapshot for
// ComputeBound/Ambiguous nodes, the recomputation recipe for MemoryBound
// ones. Returns the node identity for later lookup from backward state.
func (t *TrackedPrep[S]) Checkpoint(other *Tensor) NodeID {
	p := t.prep
	p.decided = append(p.decided, newCheckpointAction(other))
	return other.Node.id
}

// MightNeed is Checkpoint for values the operation cannot statically know
// it will need (conditional gradient paths). The action lands in the
// unsure buffer; a PromotionPolicy decides at backward time whether it is
// materialized.
func (t *TrackedPrep[S]) MightNeed(other *Tensor) NodeID {
	p := t.prep
	p.unsure = append(p.unsure, newCheckpointAction(other))
	return other.Node.id
}

// Finish constructs the output tensor, packages the gradient-requiring
// parents, the new node and the state into an Ops payload, and registers
// the type-erased backward step in the graph.
func (t *TrackedPrep[S]) Finish(state S, output *tensor.RawTensor) *Tensor {
	p := t.prep
	p.ensureUnfinished()

	out := fromParents(output, p.parents, p.requirement, p.property, p.decided, p.unsure)

	parents := make([]*Node, len(p.parents))
	for i, parent := range p.parents {
		parents[i] = parent.Node.CloneIfRequireGrad()
	}

	return out.registerStep(&opsStep[S]{
		ops:      Ops[S]{Parents: parents, Node: out.Node, State: state},
		backward: p.backward,
	})
}

func (p *Prep[S]) ensureUnfinished() {
	if p.finished {
		panic(fmt.Sprintf("autodiff: operation preparation finished twice (backward %T)", p.backward))
	}
	p.finished = true
}

// opsStep adapts a typed BackwardOp implementation to the type-erased Step
// stored in the heterogeneous graph.
type opsStep[S any] struct {
	ops      Ops[S]
	backward BackwardOp[S]
}

func (s *opsStep[S]) Step(grads *Gradients, checkpointer *Checkpointer) {
	s.backward.Backward(s.ops, grads, checkpointer)
}

func (s *opsStep[S]) Node() *Node {
	return s.ops.Node
}
