package autodiff

import (
	"fmt"

	"github.com/ember-ml/ember/internal/tensor"
)

// RetroForward is a recomputation recipe: it rebuilds the value of a node
// from the node's recorded parents, resolving them through the checkpointer
// (which may recurse into further recipes), and stores the result.
//
// Recipes are shared (captured by the node's ComputingProperty and by any
// Recompute action referencing it) and must be safe to invoke from the one
// goroutine that owns the backward pass.
type RetroForward interface {
	Forward(states *Checkpointer, out NodeID)
}

// CheckpointingAction is a pending decision about how a node's value will
// be available during backward: either captured now (Compute) or rebuilt
// later from a recipe (Recompute). The action's identity is the identity of
// the node it captures.
type CheckpointingAction interface {
	ID() NodeID
}

// computeAction captures a value snapshot at preparation time.
type computeAction struct {
	node  *Node
	state any
}

func (a computeAction) ID() NodeID { return a.node.id }

// recomputeAction captures only the recipe; the value is rebuilt on demand.
type recomputeAction struct {
	node  *Node
	retro RetroForward
}

func (a recomputeAction) ID() NodeID { return a.node.id }

// newCheckpointAction classifies a tensor by its node's computing property:
// ComputeBound and Ambiguous nodes are captured by value (cheap, the
// primitive buffer is shared), MemoryBound nodes by recipe.
func newCheckpointAction(t *Tensor) CheckpointingAction {
	prop := t.Node.property
	if prop.IsMemoryBound() {
		return recomputeAction{node: t.Node, retro: prop.retro}
	}
	return computeAction{node: t.Node, state: t.Primitive.Clone()}
}

// PromotionPolicy decides which "unsure" checkpointing actions are promoted
// to decided for a backward pass. Operations queue unsure actions when they
// cannot know at preparation time whether a value will actually be needed
// (conditional gradient paths); the policy resolves that lazily.
type PromotionPolicy interface {
	Promote(unsure []CheckpointingAction) []CheckpointingAction
}

// PromoteAll promotes every unsure action. It is the default policy.
type PromoteAll struct{}

// Promote returns the unsure actions unchanged.
func (PromoteAll) Promote(unsure []CheckpointingAction) []CheckpointingAction {
	return unsure
}

// checkpointState is one resolvable entry: a stored (or memoized) value,
// or a recipe that has not run yet this pass.
type checkpointState struct {
	value    any
	retro    RetroForward
	computed bool
}

// Checkpointer resolves node identities to values during one backward
// pass. Stored values are returned directly; recipe-based values are
// rebuilt at most once per pass and memoized. The cache is owned by the
// single goroutine running the pass and is discarded with it.
type Checkpointer struct {
	states map[NodeID]*checkpointState
}

// newCheckpointer builds the resolver from the graph's decided actions plus
// whatever the policy promotes from the unsure buffer. When the same node
// was checkpointed by several consumers, the last action wins; all actions
// for one node capture the same value or recipe.
func newCheckpointer(g *Graph, policy PromotionPolicy) *Checkpointer {
	c := &Checkpointer{
		states: make(map[NodeID]*checkpointState, len(g.decided)),
	}
	for _, action := range g.decided {
		c.insert(action)
	}
	if policy == nil {
		policy = PromoteAll{}
	}
	for _, action := range policy.Promote(g.unsure) {
		c.insert(action)
	}
	return c
}

func (c *Checkpointer) insert(action CheckpointingAction) {
	switch a := action.(type) {
	case computeAction:
		c.states[a.node.id] = &checkpointState{value: a.state, computed: true}
	case recomputeAction:
		c.states[a.node.id] = &checkpointState{retro: a.retro}
	default:
		panic(fmt.Sprintf("checkpointer: unknown action type %T", action))
	}
}

// Retrieve resolves a node identity to its checkpointed value, running the
// recomputation recipe on first use. Asking for a node with no recorded
// action is a logic error in the owning operation and panics.
func (c *Checkpointer) Retrieve(id NodeID) any {
	st, ok := c.states[id]
	if !ok {
		panic(fmt.Sprintf("checkpointer: no checkpointing action recorded for node %s", id))
	}
	if !st.computed {
		st.retro.Forward(c, id)
		if !st.computed {
			panic(fmt.Sprintf("checkpointer: recomputation recipe for node %s stored no value", id))
		}
	}
	return st.value
}

// Store records the freshly rebuilt value for a node. Called by
// RetroForward recipes; the value is memoized for the rest of the pass.
func (c *Checkpointer) Store(id NodeID, value any) {
	st, ok := c.states[id]
	if !ok {
		st = &checkpointState{}
		c.states[id] = st
	}
	st.value = value
	st.computed = true
}

// RetrieveTensor resolves a node identity to its tensor primitive.
// Panics when the checkpointed value is not a tensor (a bug indicator in
// the owning operation).
func (c *Checkpointer) RetrieveTensor(id NodeID) *tensor.RawTensor {
	return RetrieveState[*tensor.RawTensor](c, id)
}

// RetrieveState resolves a node identity and downcasts the checkpointed
// value to T, panicking loudly on type mismatch.
func RetrieveState[T any](c *Checkpointer, id NodeID) T {
	value := c.Retrieve(id)
	typed, ok := value.(T)
	if !ok {
		panic(fmt.Sprintf("checkpointer: state for node %s is %T, not %T", id, value, typed))
	}
	return typed
}
