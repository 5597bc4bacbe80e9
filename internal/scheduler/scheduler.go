// Package scheduler computes a topological execution order over a flow's
// nodes and edges using Kahn's algorithm, with stable tie-breaking and
// pinData short-circuiting for partial execution.
package scheduler

import (
	"github.com/tagflow/engine/internal/flow"
	"github.com/tagflow/engine/internal/flowerr"
	"github.com/tagflow/engine/internal/tagvalue"
)

// Plan is the result of scheduling: the node ids in execution order, and the
// subset of them whose output is pinned (and so must be served from PinData
// rather than calling the node's factory).
type Plan struct {
	Order  []string
	Pinned map[string]tagvalue.TagValue
}

// Order runs Kahn's topological sort over every node in d. Among nodes whose
// indegree reaches zero in the same pass, nodes are popped in insertion
// (declaration) order, making the result deterministic. If the returned
// order is shorter than the node set, the graph contains a cycle and a
// Fatal error is returned instead.
func Order(d *flow.Document) ([]string, error) {
	return orderSubset(d, nil)
}

// OrderSubset computes an order restricted to nodeIDs, pre-filtering the
// node and edge set to that subset before running Kahn's sort so dependency
// order within the subset is preserved. A nil or empty nodeIDs means "all
// nodes".
func OrderSubset(d *flow.Document, nodeIDs []string) ([]string, error) {
	return orderSubset(d, nodeIDs)
}

func orderSubset(d *flow.Document, nodeIDs []string) ([]string, error) {
	var included map[string]bool
	if len(nodeIDs) > 0 {
		included = make(map[string]bool, len(nodeIDs))
		for _, id := range nodeIDs {
			included[id] = true
		}
	}

	indegree := make(map[string]int, len(d.Nodes))
	adjacency := make(map[string][]string, len(d.Nodes))
	insertionIndex := make(map[string]int, len(d.Nodes))
	nodeSet := make(map[string]bool, len(d.Nodes))

	i := 0
	for _, n := range d.Nodes {
		if included != nil && !included[n.ID] {
			continue
		}
		nodeSet[n.ID] = true
		indegree[n.ID] = 0
		insertionIndex[n.ID] = i
		i++
	}

	for _, e := range d.Edges {
		if !nodeSet[e.SourceNodeID] || !nodeSet[e.TargetNodeID] {
			continue
		}
		adjacency[e.SourceNodeID] = append(adjacency[e.SourceNodeID], e.TargetNodeID)
		indegree[e.TargetNodeID]++
	}

	// ready holds node ids with indegree 0, kept sorted by insertion order
	// so the pop order is stable.
	var ready []string
	for id := range nodeSet {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sortByInsertion(ready, insertionIndex)

	var order []string
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var newlyReady []string
		for _, next := range adjacency[id] {
			indegree[next]--
			if indegree[next] == 0 {
				newlyReady = append(newlyReady, next)
			}
		}
		sortByInsertion(newlyReady, insertionIndex)
		ready = mergeByInsertion(ready, newlyReady, insertionIndex)
	}

	if len(order) != len(nodeSet) {
		return nil, flowerr.New(flowerr.Fatal, "cycle detected: graph contains a cycle")
	}
	return order, nil
}

func sortByInsertion(ids []string, index map[string]int) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && index[ids[j-1]] > index[ids[j]]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

// mergeByInsertion merges two already-sorted-by-insertion-order slices.
func mergeByInsertion(a, b []string, index map[string]int) []string {
	if len(b) == 0 {
		return a
	}
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if index[a[i]] <= index[b[j]] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// BuildPlan computes an order and folds in pinData: pinned node ids are
// still present in Order (so downstream nodes can see they've "run"), but
// Pinned names the value the executor must use instead of invoking the
// node's factory.
func BuildPlan(d *flow.Document, nodeIDs []string) (Plan, error) {
	order, err := orderSubset(d, nodeIDs)
	if err != nil {
		return Plan{}, err
	}
	pinned := make(map[string]tagvalue.TagValue, len(d.PinData))
	for id, v := range d.PinData {
		pinned[id] = v
	}
	return Plan{Order: order, Pinned: pinned}, nil
}
