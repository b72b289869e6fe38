package ops

import (
	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/tensor"
)

// matmulState mirrors mulState: each operand is checkpointed only when the
// other side's gradient path needs it.
type matmulState struct {
	lhs, rhs *autodiff.NodeID
}

type matmulBackward struct{}

func (matmulBackward) Backward(ops autodiff.Ops[matmulState], grads *autodiff.Gradients, checkpointer *autodiff.Checkpointer) {
	backend := grads.Backend()
	grad := grads.Consume(ops.Node)

	if p := ops.Parents[0]; p != nil {
		// grad(A) = grad @ B^T
		rhs := checkpointer.RetrieveTensor(*ops.State.rhs)
		grads.Register(p, backend.MatMul(grad, backend.Transpose(rhs, 1, 0)))
	}
	if p := ops.Parents[1]; p != nil {
		// grad(B) = A^T @ grad
		lhs := checkpointer.RetrieveTensor(*ops.State.lhs)
		grads.Register(p, backend.MatMul(backend.Transpose(lhs, 1, 0), grad))
	}
}

// MatMul multiplies two matrices and records the operation. Compute-bound:
// the product is far more expensive than the memory it occupies.
func MatMul(backend tensor.Backend, lhs, rhs *autodiff.Tensor) *autodiff.Tensor {
	defer lhs.Primitive.ForceNonUnique()()
	defer rhs.Primitive.ForceNonUnique()()

	kind := autodiff.Prepare[matmulState](matmulBackward{}, lhs, rhs).
		ComputeBound().
		Stateful()

	out := backend.MatMul(lhs.Primitive, rhs.Primitive)
	if tracked := kind.Tracked; tracked != nil {
		var state matmulState
		if rhs.IsTracked() {
			id := tracked.Checkpoint(lhs)
			state.lhs = &id
		}
		if lhs.IsTracked() {
			id := tracked.Checkpoint(rhs)
			state.rhs = &id
		}
		return tracked.Finish(state, out)
	}
	return kind.UnTracked.Finish(out)
}
