package autodiff

import (
	"fmt"

	"github.com/ember-ml/ember/internal/tensor"
)

// Gradients accumulates per-node gradient tensors during one backward
// pass. It is created fresh per pass, mutated only by steps running on the
// pass's goroutine, and discarded when the pass finishes.
type Gradients struct {
	backend tensor.Backend
	grads   map[NodeID]*tensor.RawTensor
}

// newGradients creates an empty gradient store backed by the given backend
// (used to sum contributions from multiple consumers).
func newGradients(backend tensor.Backend) *Gradients {
	return &Gradients{
		backend: backend,
		grads:   make(map[NodeID]*tensor.RawTensor),
	}
}

// Backend returns the backend gradients are accumulated with. Backward
// implementations use it for their own gradient arithmetic.
func (g *Gradients) Backend() tensor.Backend {
	return g.backend
}

// Register adds a gradient contribution for a node, accumulating into any
// existing entry rather than overwriting it.
func (g *Gradients) Register(node *Node, value *tensor.RawTensor) {
	if existing, ok := g.grads[node.id]; ok {
		g.grads[node.id] = g.backend.Add(existing, value)
		return
	}
	g.grads[node.id] = value
}

// Consume removes and returns the accumulated gradient of a step's own
// node. Every consumer has already contributed by the time the step runs
// (steps execute in reverse creation order), so absence is a traversal bug.
func (g *Gradients) Consume(node *Node) *tensor.RawTensor {
	grad, ok := g.grads[node.id]
	if !ok {
		panic(fmt.Sprintf("gradients: no gradient registered for node %s", node.id))
	}
	delete(g.grads, node.id)
	return grad
}

// Get returns the accumulated gradient for a node, if any. After a backward
// pass, entries remain only for leaves (interior entries are consumed by
// their own steps).
func (g *Gradients) Get(node *Node) (*tensor.RawTensor, bool) {
	grad, ok := g.grads[node.id]
	return grad, ok
}

// Len returns the number of gradient entries currently held.
func (g *Gradients) Len() int {
	return len(g.grads)
}
