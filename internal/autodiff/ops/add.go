package ops

import (
	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/tensor"
)

type addBackward struct{}

func (addBackward) Backward(ops autodiff.Ops[binaryShapes], grads *autodiff.Gradients, _ *autodiff.Checkpointer) {
	backend := grads.Backend()
	grad := grads.Consume(ops.Node)

	if p := ops.Parents[0]; p != nil {
		grads.Register(p, autodiff.BroadcastShape(backend, grad, ops.State.lhs))
	}
	if p := ops.Parents[1]; p != nil {
		grads.Register(p, autodiff.BroadcastShape(backend, grad, ops.State.rhs))
	}
}

// RetroAdd rebuilds an addition output from its checkpointed inputs.
type RetroAdd struct {
	backend  tensor.Backend
	lhs, rhs autodiff.NodeID
}

func (r RetroAdd) Forward(states *autodiff.Checkpointer, out autodiff.NodeID) {
	lhs := states.RetrieveTensor(r.lhs)
	rhs := states.RetrieveTensor(r.rhs)
	states.Store(out, r.backend.Add(lhs, rhs))
}

// Add performs element-wise addition and records it in the parents' graph.
// The output is memory-bound: consumers checkpoint it by recipe and it is
// recomputed from its inputs during backward when needed.
func Add(backend tensor.Backend, lhs, rhs *autodiff.Tensor) *autodiff.Tensor {
	defer lhs.Primitive.ForceNonUnique()()
	defer rhs.Primitive.ForceNonUnique()()

	retro := RetroAdd{backend: backend, lhs: lhs.Node.ID(), rhs: rhs.Node.ID()}
	kind := autodiff.Prepare[binaryShapes](addBackward{}, lhs, rhs).
		MemoryBound(retro).
		Stateful()

	out := backend.Add(lhs.Primitive, rhs.Primitive)
	if tracked := kind.Tracked; tracked != nil {
		state := binaryShapes{lhs: lhs.Primitive.Shape(), rhs: rhs.Primitive.Shape()}
		return tracked.Finish(state, out)
	}
	return kind.UnTracked.Finish(out)
}
