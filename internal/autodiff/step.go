package autodiff

// Step is the backward-computation unit bound to one node. A step is
// invoked exactly once per backward pass, with the live gradient store and
// the checkpoint resolver for the pass.
type Step interface {
	// Step consumes the gradient of the node it produces and registers
	// gradients for the node's parents.
	Step(grads *Gradients, checkpointer *Checkpointer)

	// Node returns the node this step produces.
	Node() *Node
}
