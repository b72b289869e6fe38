package autodiff

import (
	"fmt"

	"github.com/ember-ml/ember/internal/tensor"
)

// BroadcastShape makes sure a gradient has the given shape.
//
// If broadcasting happened during the forward pass, the gradient is summed
// along each broadcasted dimension, left to right, collapsing it back to
// size 1 so the chain rule accumulates across the expansion.
//
// A dimension mismatch where the target extent is not 1 means the forward
// and backward shapes of an operation disagree. That is a bug in the
// operation, not a runtime condition: the computation aborts with both
// shapes in the diagnostic rather than silently truncating.
func BroadcastShape(backend tensor.Backend, grad *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	if len(grad.Shape()) != len(shape) {
		panic(fmt.Sprintf(
			"invalid broadcast shapes: grad rank %d (%v) does not match target rank %d (%v)",
			len(grad.Shape()), grad.Shape(), len(shape), shape,
		))
	}

	for i := range shape {
		if grad.Shape()[i] == shape[i] {
			continue
		}
		if shape[i] != 1 {
			panic(fmt.Sprintf(
				"invalid broadcast shapes: target shape %v, grad shape %v: expected target dimension %d to be 1",
				shape, grad.Shape(), i,
			))
		}
		grad = backend.SumDim(grad, i, true)
	}

	return grad
}
