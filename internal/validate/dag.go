package validate

import (
	"github.com/workflowkit/engine/pkg/models"
)

// dag is an indexed adjacency view of a workflow's enabled subgraph: a
// disabled node or an edge touching one is excluded, matching §4.5's "no
// cycles over the enabled subgraph" rule.
type dag struct {
	nodes    map[string]*models.Node
	order    []string // insertion order of nodes, for topological tie-breaks
	children map[string][]string
	parents  map[string][]string
	inDegree map[string]int
}

func buildDAG(wf *models.Workflow) *dag {
	d := &dag{
		nodes:    make(map[string]*models.Node),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
		inDegree: make(map[string]int),
	}

	for _, n := range wf.Nodes {
		if n.IsDisabled {
			continue
		}
		d.nodes[n.ID] = n
		d.order = append(d.order, n.ID)
		d.inDegree[n.ID] = 0
	}

	for _, e := range wf.Edges {
		if e.IsDisabled {
			continue
		}
		if d.nodes[e.From] == nil || d.nodes[e.To] == nil {
			continue
		}
		d.children[e.From] = append(d.children[e.From], e.To)
		d.parents[e.To] = append(d.parents[e.To], e.From)
		d.inDegree[e.To]++
	}

	return d
}

// topologicalWaves runs Kahn's algorithm over the enabled subgraph, returning
// maximal waves of node IDs whose predecessors are all already placed. Ties
// within a wave (and the overall node visitation order used to pick the next
// zero-in-degree candidates) break by insertion order per §4.5.
func topologicalWaves(d *dag) ([][]string, error) {
	inDegree := make(map[string]int, len(d.inDegree))
	for k, v := range d.inDegree {
		inDegree[k] = v
	}

	var waves [][]string
	placed := 0

	for placed < len(d.nodes) {
		var wave []string
		for _, id := range d.order {
			if deg, ok := inDegree[id]; ok && deg == 0 {
				wave = append(wave, id)
			}
		}
		if len(wave) == 0 {
			return nil, models.ErrCyclicDependency
		}
		for _, id := range wave {
			delete(inDegree, id)
			placed++
			for _, child := range d.children[id] {
				inDegree[child]--
			}
		}
		waves = append(waves, wave)
	}

	return waves, nil
}

// topologicalOrder flattens topologicalWaves into a single insertion-order
// tie-broken sequence, per §4.5's topologicalOrder(wf) query.
func topologicalOrder(d *dag) ([]string, error) {
	waves, err := topologicalWaves(d)
	if err != nil {
		return nil, err
	}
	var order []string
	for _, wave := range waves {
		order = append(order, wave...)
	}
	return order, nil
}
