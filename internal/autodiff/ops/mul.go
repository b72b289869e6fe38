package ops

import (
	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/tensor"
)

// mulState records which parent values were checkpointed. Each side is
// checkpointed only when the OTHER side is tracked, since grad(lhs) reads
// rhs and vice versa; nil means the value was never needed.
type mulState struct {
	lhs, rhs *autodiff.NodeID
	shapes   binaryShapes
}

type mulBackward struct{}

func (mulBackward) Backward(ops autodiff.Ops[mulState], grads *autodiff.Gradients, checkpointer *autodiff.Checkpointer) {
	backend := grads.Backend()
	grad := grads.Consume(ops.Node)

	if p := ops.Parents[0]; p != nil {
		rhs := checkpointer.RetrieveTensor(*ops.State.rhs)
		g := backend.Mul(grad, rhs)
		grads.Register(p, autodiff.BroadcastShape(backend, g, ops.State.shapes.lhs))
	}
	if p := ops.Parents[1]; p != nil {
		lhs := checkpointer.RetrieveTensor(*ops.State.lhs)
		g := backend.Mul(grad, lhs)
		grads.Register(p, autodiff.BroadcastShape(backend, g, ops.State.shapes.rhs))
	}
}

// Mul performs element-wise multiplication. The output is compute-bound:
// consumers snapshot it rather than rebuilding it.
func Mul(backend tensor.Backend, lhs, rhs *autodiff.Tensor) *autodiff.Tensor {
	defer lhs.Primitive.ForceNonUnique()()
	defer rhs.Primitive.ForceNonUnique()()

	kind := autodiff.Prepare[mulState](mulBackward{}, lhs, rhs).
		ComputeBound().
		Stateful()

	out := backend.Mul(lhs.Primitive, rhs.Primitive)
	if tracked := kind.Tracked; tracked != nil {
		state := mulState{
			shapes: binaryShapes{lhs: lhs.Primitive.Shape(), rhs: rhs.Primitive.Shape()},
		}
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
