package ops

import (
	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/tensor"
)

type expState struct {
	input autodiff.NodeID
}

type expBackward struct{}

func (expBackward) Backward(ops autodiff.Ops[expState], grads *autodiff.Gradients, checkpointer *autodiff.Checkpointer) {
	backend := grads.Backend()
	grad := grads.Consume(ops.Node)

	if p := ops.Parents[0]; p != nil {
		// d/dx exp(x) = exp(x); recompute the output from the input
		// instead of keeping it alive through the whole forward pass.
		input := checkpointer.RetrieveTensor(ops.State.input)
		output := backend.Exp(input)
		grads.Register(p, backend.Mul(grad, output))
	}
}

// RetroExp rebuilds an exponential output from its checkpointed input.
type RetroExp struct {
	backend tensor.Backend
	input   autodiff.NodeID
}

func (r RetroExp) Forward(states *autodiff.Checkpointer, out autodiff.NodeID) {
	input := states.RetrieveTensor(r.input)
	states.Store(out, r.backend.Exp(input))
}

// Exp computes the element-wise exponential. Memory-bound: the output is
// rebuilt on demand and the backward recomputes it from the input.
func Exp(backend tensor.Backend, t *autodiff.Tensor) *autodiff.Tensor {
	defer t.Primitive.ForceNonUnique()()

	retro := RetroExp{backend: backend, input: t.Node.ID()}
	kind := autodiff.Prepare[expState](expBackward{}, t).
		MemoryBound(retro).
		Stateful()

	out := backend.Exp(t.Primitive)
	if tracked := kind.Tracked; tracked != nil {
		state := expState{input: tracked.Checkpoint(t)}
		return tracked.Finish(state, out)
	}
	return kind.UnTracked.Finish(out)
}
