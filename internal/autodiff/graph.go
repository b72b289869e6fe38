package autodiff

// Graph is an append-only structure mapping node identities to their
// producing step, together with the checkpointing actions queued during the
// forward pass. A tensor op constructs its output node's graph by merging
// its parents' graphs; creation is strictly forward, so the result is
// always a DAG.
//
// Graphs are built and drained by a single goroutine; independent forward
// passes on separate goroutines each own their own graphs.
type Graph struct {
	steps   map[NodeID]Step
	decided []CheckpointingAction
	unsure  []CheckpointingAction
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		steps: make(map[NodeID]Step),
	}
}

// register binds the step producing node id.
func (g *Graph) register(id NodeID, step Step) {
	g.steps[id] = step
}

// Steps returns the registered steps in unspecified order.
func (g *Graph) Steps() []Step {
	steps := make([]Step, 0, len(g.steps))
	for _, s := range g.steps {
		steps = append(steps, s)
	}
	return steps
}

// NumSteps returns the number of registered steps.
func (g *Graph) NumSteps() int {
	return len(g.steps)
}

// reachableSteps collects the steps in root's ancestry, following parent
// links from the root's own step. Merging is in place, so a graph shared by
// sibling branches holds steps outside the root's ancestry; a backward
// pass rooted at one branch must not run them.
func reachableSteps(g *Graph, root *Node) []Step {
	visited := map[NodeID]struct{}{root.id: {}}
	queue := []NodeID{root.id}
	steps := make([]Step, 0, len(g.steps))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		step, ok := g.steps[id]
		if !ok {
			continue
		}
		steps = append(steps, step)
		for _, parent := range step.Node().Parents() {
			if _, ok := visited[parent]; !ok {
				visited[parent] = struct{}{}
				queue = append(queue, parent)
			}
		}
	}
	return steps
}

// extendActions appends checkpointing actions queued by an op preparation.
func (g *Graph) extendActions(decided, unsure []CheckpointingAction) {
	g.decided = append(g.decided, decided...)
	g.unsure = append(g.unsure, unsure...)
}

// mergeGraphs folds the given parent graphs into one. The largest graph is
// extended in place and returned: graphs are append-only, so parents
// sharing the merged instance only ever observe a superset of what they
// recorded.
func mergeGraphs(graphs []*Graph) *Graph {
	var merged *Graph
	for _, g := range graphs {
		if merged == nil || len(g.steps) > len(merged.steps) {
			merged = g
		}
	}
	if merged == nil {
		return NewGraph()
	}

	for _, g := range graphs {
		if g == merged {
			continue
		}
		for id, step := range g.steps {
			if _, ok := merged.steps[id]; !ok {
				merged.steps[id] = step
			}
		}
		merged.decided = mergeActions(merged.decided, g.decided)
		merged.unsure = mergeActions(merged.unsure, g.unsure)
	}
	return merged
}

// mergeActions appends the actions of src not already present in dst.
// Actions are identified by the node they capture.
func mergeActions(dst, src []CheckpointingAction) []CheckpointingAction {
	if len(src) == 0 {
		return dst
	}
	seen := make(map[NodeID]struct{}, len(dst))
	for _, a := range dst {
		seen[a.ID()] = struct{}{}
	}
	for _, a := range src {
		if _, ok := seen[a.ID()]; !ok {
			dst = append(dst, a)
		}
	}
	return dst
}
