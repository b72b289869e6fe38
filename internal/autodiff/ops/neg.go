package ops

import (
	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/tensor"
)

type negBackward struct{}

func (negBackward) Backward(ops autodiff.Ops[struct{}], grads *autodiff.Gradients, _ *autodiff.Checkpointer) {
	backend := grads.Backend()
	grad := grads.Consume(ops.Node)

	if p := ops.Parents[0]; p != nil {
		grads.Register(p, negate(backend, grad))
	}
}

// RetroNeg rebuilds a negation output from its checkpointed input.
type RetroNeg struct {
	backend tensor.Backend
	input   autodiff.NodeID
}

func (r RetroNeg) Forward(states *autodiff.Checkpointer, out autodiff.NodeID) {
	input := states.RetrieveTensor(r.input)
	states.Store(out, negate(r.backend, input))
}

// Neg negates a tensor element-wise. The backward needs no state, so the
// preparation short-circuits through Stateless.
func Neg(backend tensor.Backend, t *autodiff.Tensor) *autodiff.Tensor {
	defer t.Primitive.ForceNonUnique()()

	retro := RetroNeg{backend: backend, input: t.Node.ID()}
	return autodiff.Prepare[struct{}](negBackward{}, t).
		MemoryBound(retro).
		Stateless(negate(backend, t.Primitive))
}
