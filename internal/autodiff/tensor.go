package autodiff

import "github.com/ember-ml/ember/internal/tensor"

// Tensor pairs a backend primitive with its computation-graph node and the
// graph accumulated so far. The primitive's buffer is reference-counted, so
// the graph and pending checkpoint actions can hold cheap snapshots of it.
type Tensor struct {
	Primitive *tensor.RawTensor
	Node      *Node
	Graph     *Graph
}

// NewLeaf wraps a primitive as a graph leaf. Leaves requiring gradients are
// the entry points of backward accumulation; their computing property is
// Ambiguous (captured by value if anything checkpoints them).
func NewLeaf(primitive *tensor.RawTensor, requiresGrad bool) *Tensor {
	requirement := RequirementNone
	if requiresGrad {
		requirement = RequirementGrad
	}
	return &Tensor{
		Primitive: primitive,
		Node:      newNode(nil, requirement, Ambiguous()),
		Graph:     NewGraph(),
	}
}

// IsTracked reports whether gradients flow through this tensor.
func (t *Tensor) IsTracked() bool {
	return !t.Node.requirement.IsNone()
}

// fromParents constructs an operation output: a fresh node wired to the
// gradient-requiring parents, on the merge of the parents' graphs, with the
// preparation's queued checkpointing actions appended.
//
// When the new node is MemoryBound, its parents are retained as
// checkpointing actions of their own: the recorded recomputation recipe
// reads them back through the checkpointer, recursing into further recipes
// for parents that are themselves MemoryBound.
func fromParents(
	output *tensor.RawTensor,
	parents []*Tensor,
	requirement Requirement,
	property ComputingProperty,
	decided, unsure []CheckpointingAction,
) *Tensor {
	if !requirement.IsNone() {
		requirement = RequirementGradInBackward
	}

	var parentIDs []NodeID
	graphs := make([]*Graph, 0, len(parents))
	for _, p := range parents {
		graphs = append(graphs, p.Graph)
		if node := p.Node.CloneIfRequireGrad(); node != nil {
			parentIDs = append(parentIDs, node.id)
		}
	}

	graph := mergeGraphs(graphs)
	graph.extendActions(decided, unsure)

	if property.IsMemoryBound() {
		for _, p := range parents {
			graph.extendActions([]CheckpointingAction{newCheckpointAction(p)}, nil)
		}
	}

	return &Tensor{
		Primitive: output,
		Node:      newNode(parentIDs, requirement, property),
		Graph:     graph,
	}
}

// registerStep binds the backward step producing this tensor's node.
func (t *Tensor) registerStep(step Step) *Tensor {
	t.Graph.register(t.Node.id, step)
	return t
}
