package ops

import (
	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/tensor"
)

type subBackward struct{}

func (subBackward) Backward(ops autodiff.Ops[binaryShapes], grads *autodiff.Gradients, _ *autodiff.Checkpointer) {
	backend := grads.Backend()
	grad := grads.Consume(ops.Node)

	if p := ops.Parents[0]; p != nil {
		grads.Register(p, autodiff.BroadcastShape(backend, grad, ops.State.lhs))
	}
	if p := ops.Parents[1]; p != nil {
		neg := negate(backend, grad)
		grads.Register(p, autodiff.BroadcastShape(backend, neg, ops.State.rhs))
	}
}

// RetroSub rebuilds a subtraction output from its checkpointed inputs.
type RetroSub struct {
	backend  tensor.Backend
	lhs, rhs autodiff.NodeID
}

func (r RetroSub) Forward(states *autodiff.Checkpointer, out autodiff.NodeID) {
	lhs := states.RetrieveTensor(r.lhs)
	rhs := states.RetrieveTensor(r.rhs)
	states.Store(out, r.backend.Sub(lhs, rhs))
}

// Sub performs element-wise subtraction and records it in the parents'
// graph. Memory-bound, like Add.
func Sub(backend tensor.Backend, lhs, rhs *autodiff.Tensor) *autodiff.Tensor {
	defer lhs.Primitive.ForceNonUnique()()
	defer rhs.Primitive.ForceNonUnique()()

	retro := RetroSub{backend: backend, lhs: lhs.Node.ID(), rhs: rhs.Node.ID()}
	kind := autodiff.Prepare[binaryShapes](subBackward{}, lhs, rhs).
		MemoryBound(retro).
		Stateful()

	out := backend.Sub(lhs.Primitive, rhs.Primitive)
	if tracked := kind.Tracked; tracked != nil {
		state := binaryShapes{lhs: lhs.Primitive.Shape(), rhs: rhs.Primitive.Shape()}
		return tracked.Finish(state, out)
	}
	return kind.UnTracked.Finish(out)
}
