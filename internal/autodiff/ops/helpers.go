// Package ops implements the differentiable tensor operations registered
// through the autodiff preparation pipeline.
//
// Each operation is a small BackwardOp implementation plus a constructor that
// runs the forward computation on the backend and walks the pipeline:
// choose a computing property, classify as Tracked/UnTracked, checkpoint
// whatever the backward pass will need, and finish.
//
// Supported operations:
//   - Add, Sub: memory-bound (rebuilt from inputs instead of stored)
//   - Neg: stateless
//   - Mul, Div, MatMul: compute-bound, checkpoint the parent values their
//     backward needs
//   - Exp: memory-bound, recomputes from its checkpointed input
package ops

import (
	"fmt"

	"github.com/ember-ml/ember/internal/tensor"
)

// negate returns 0 - grad.
func negate(backend tensor.Backend, grad *tensor.RawTensor) *tensor.RawTensor {
	zeros, err := tensor.NewRaw(grad.Shape(), grad.DType(), grad.Device())
	if err != nil {
		panic(fmt.Sprintf("negate: failed to create zeros: %v", err))
	}
	return backend.Sub(zeros, grad)
}

// binaryShapes is the backward state of elementwise ops that only need the
// operand shapes (to undo forward broadcasting).
type binaryShapes struct {
	lhs, rhs tensor.Shape
}
