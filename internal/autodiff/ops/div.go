package ops

import (
	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/tensor"
)

// divState: rhs is always checkpointed (both gradient paths read it), lhs
// only might be needed (the rhs path alone reads it), so it goes through
// the unsure buffer and the promotion policy.
type divState struct {
	lhs, rhs autodiff.NodeID
	shapes   binaryShapes
}

type divBackward struct{}

func (divBackward) Backward(ops autodiff.Ops[divState], grads *autodiff.Gradients, checkpointer *autodiff.Checkpointer) {
	backend := grads.Backend()
	grad := grads.Consume(ops.Node)
	rhs := checkpointer.RetrieveTensor(ops.State.rhs)

	if p := ops.Parents[0]; p != nil {
		g := backend.Div(grad, rhs)
		grads.Register(p, autodiff.BroadcastShape(backend, g, ops.State.shapes.lhs))
	}
	if p := ops.Parents[1]; p != nil {
		lhs := checkpointer.RetrieveTensor(ops.State.lhs)
		g := backend.Div(backend.Mul(grad, lhs), backend.Mul(rhs, rhs))
		grads.Register(p, autodiff.BroadcastShape(backend, negate(backend, g), ops.State.shapes.rhs))
	}
}

// Div performs element-wise division. Compute-bound; the denominator is
// checkpointed eagerly and the numerator registered through MightNeed.
func Div(backend tensor.Backend, lhs, rhs *autodiff.Tensor) *autodiff.Tensor {
	defer lhs.Primitive.ForceNonUnique()()
	defer rhs.Primitive.ForceNonUnique()()

	kind := autodiff.Prepare[divState](divBackward{}, lhs, rhs).
		ComputeBound().
		Stateful()

	out := backend.Div(lhs.Primitive, rhs.Primitive)
	if tracked := kind.Tracked; tracked != nil {
		state := divState{
			lhs:    tracked.MightNeed(lhs),
			rhs:    tracked.Checkpoint(rhs),
			shapes: binaryShapes{lhs: lhs.Primitive.Shape(), rhs: rhs.Primitive.Shape()},
		}
		return tracked.Finish(state, out)
	}
	return kind.UnTracked.Finish(out)
}
