package autodiff

import (
	"fmt"
	"sort"

	"github.com/ember-ml/ember/internal/tensor"
)

// Backward walks the graph from root in reverse creation order, invoking
// each registered step exactly once, and returns the accumulated gradients.
// Unsure checkpointing actions are promoted with the default PromoteAll
// policy; use Execute to supply another one.
//
// The seed gradient is ones with the root's shape, matching d(root)/d(root).
func Backward(backend tensor.Backend, root *Tensor) *Gradients {
	return Execute(backend, root, PromoteAll{})
}

// Execute runs a backward pass with an explicit promotion policy.
//
// The traversal is synchronous and owned by the calling goroutine: the
// gradient store and the checkpointer are created for this pass and must
// not be shared across passes.
func Execute(backend tensor.Backend, root *Tensor, policy PromotionPolicy) *Gradients {
	if root.Node.requirement.IsNone() {
		panic("backward: root tensor is untracked (no input requires gradients)")
	}
	steps := reachableSteps(root.Graph, root.Node)
	if len(steps) == 0 {
		panic("backward: no operations registered for root tensor")
	}

	seed, err := tensor.NewRaw(root.Primitive.Shape(), root.Primitive.DType(), root.Primitive.Device())
	if err != nil {
		panic(fmt.Sprintf("backward: failed to create seed gradient: %v", err))
	}
	switch seed.DType() {
	case tensor.Float32:
		data := seed.AsFloat32()
		for i := range data {
			data[i] = 1
		}
	case tensor.Float64:
		data := seed.AsFloat64()
		for i := range data {
			data[i] = 1
		}
	default:
		panic(fmt.Sprintf("backward: unsupported dtype %s (only float32/float64 supported)", seed.DType()))
	}

	grads := newGradients(backend)
	grads.Register(root.Node, seed)

	checkpointer := newCheckpointer(root.Graph, policy)

	// Descending creation order is a reverse-topological order of the DAG:
	// every consumer runs before the node it consumes from.
	sort.Slice(steps, func(i, j int) bool {
		return steps[i].Node().order > steps[j].Node().order
	})

	for _, step := range steps {
		step.Step(grads, checkpointer)
	}

	return grads
}
