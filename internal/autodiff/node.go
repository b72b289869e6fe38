// Package autodiff implements reverse-mode automatic differentiation.
//
// Tensor operations register themselves through a staged preparation
// pipeline (see Prepare) that builds a dependency graph of nodes, decides
// per node whether intermediate values are stored or recomputed
// (checkpointing), and replays the graph backward to accumulate gradients.
//
// Architecture:
//   - Node/Graph: identity and connectivity, built strictly forward (DAG)
//   - Checkpointer: resolves node values during backward, by snapshot or
//     by recorded recomputation recipe, memoized per pass
//   - Prep pipeline: Init -> property chosen -> Tracked/UnTracked -> finish
//   - Backward: drains the graph in reverse creation order
//
// Usage:
//
//	backend := cpu.New()
//	x := autodiff.NewLeaf(raw, true)
//	y := ops.Mul(backend, x, x) // y = x²
//	grads := autodiff.Backward(backend, y)
//	grad, _ := grads.Get(x.Node) // dy/dx = 2x
package autodiff

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// NodeID is the unique, immutable identity of a computation-graph node.
type NodeID uuid.UUID

// newNodeID returns a fresh random identity.
func newNodeID() NodeID {
	return NodeID(uuid.New())
}

// String returns the canonical textual form of the id.
func (id NodeID) String() string {
	return uuid.UUID(id).String()
}

// Requirement describes whether gradients must flow through a node.
type Requirement int

// Requirement values.
const (
	// RequirementNone marks nodes gradients never flow through.
	RequirementNone Requirement = iota
	// RequirementGrad marks leaf nodes the user wants gradients for.
	RequirementGrad
	// RequirementGradInBackward marks interior nodes on a gradient path.
	RequirementGradInBackward
)

// IsNone reports whether no gradient is required.
func (r Requirement) IsNone() bool {
	return r == RequirementNone
}

// computeKind tags a ComputingProperty variant.
type computeKind int

const (
	kindAmbiguous computeKind = iota
	kindComputeBound
	kindMemoryBound
)

// ComputingProperty describes how a node's value is reproduced during
// backward: kept as a cheap snapshot (ComputeBound), rebuilt on demand from
// its parents via a recorded recipe (MemoryBound), or undecided (Ambiguous,
// resolved lazily as a snapshot).
type ComputingProperty struct {
	kind  computeKind
	retro RetroForward
}

// Ambiguous returns the undecided property. Leaves default to it.
func Ambiguous() ComputingProperty {
	return ComputingProperty{kind: kindAmbiguous}
}

// ComputeBound marks a value as cheap to keep.
func ComputeBound() ComputingProperty {
	return ComputingProperty{kind: kindComputeBound}
}

// MemoryBound marks a value as expensive to keep, recomputable via retro.
func MemoryBound(retro RetroForward) ComputingProperty {
	return ComputingProperty{kind: kindMemoryBound, retro: retro}
}

// IsMemoryBound reports whether the node's value is checkpointed by recipe.
func (p ComputingProperty) IsMemoryBound() bool {
	return p.kind == kindMemoryBound
}

// Retro returns the recomputation recipe for MemoryBound properties, nil
// otherwise.
func (p ComputingProperty) Retro() RetroForward {
	return p.retro
}

// nodeOrder is the global creation counter. Creation is strictly forward,
// so descending order is a valid reverse-topological order of any graph.
var nodeOrder atomic.Int64

// Node carries the identity and metadata of one tensor value in the
// computation graph. Nodes are immutable once created and shared by
// pointer between graphs and pending checkpoint actions.
type Node struct {
	id          NodeID
	order       int64
	requirement Requirement
	property    ComputingProperty
	parents     []NodeID
}

// newNode creates a node recording the ids of its gradient-requiring parents.
func newNode(parents []NodeID, requirement Requirement, property ComputingProperty) *Node {
	return &Node{
		id:          newNodeID(),
		order:       nodeOrder.Add(1),
		requirement: requirement,
		property:    property,
		parents:     parents,
	}
}

// ID returns the node identity.
func (n *Node) ID() NodeID {
	return n.id
}

// Order returns the node's position in global creation order.
func (n *Node) Order() int64 {
	return n.order
}

// Requirement returns whether gradients must flow through this node.
func (n *Node) Requirement() Requirement {
	return n.requirement
}

// Property returns how the node's value is reproduced during backward.
func (n *Node) Property() ComputingProperty {
	return n.property
}

// Parents returns the ids of the gradient-requiring parents.
func (n *Node) Parents() []NodeID {
	return n.parents
}

// CloneIfRequireGrad returns the node when gradients must flow through it,
// nil otherwise. Used to skip parent edges that would only bloat the graph.
func (n *Node) CloneIfRequireGrad() *Node {
	if n.requirement.IsNone() {
		return nil
	}
	return n
}
