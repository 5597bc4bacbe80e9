package flow

import (
	"fmt"

	"github.com/tagflow/engine/internal/registry"
)

// ValidationResult mirrors the validator's {valid, errors[], warnings[]}
// contract.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

func (r *ValidationResult) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Valid = false
}

func (r *ValidationResult) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// triggerTypes are node types considered entry points: they have no
// incoming edges by construction and seed scheduling.
var triggerTypes = map[string]bool{
	"trigger":   true,
	"tag-input": true,
	"schedule":  true,
	"webhook":   true,
}

// IsTriggerType reports whether a node type is treated as a trigger for the
// connectivity checks below. Node types outside this closed set are not
// trigger-eligible.
func IsTriggerType(nodeType string) bool { return triggerTypes[nodeType] }

// color states for the DFS cycle check.
type color int

const (
	white color = iota
	grey
	black
)

// Validate runs the checks in the order named in spec.md §4.8. When strict
// is true (deploy-time), any error makes the result invalid; when false
// (save-time), only the structural basics (1)-(4) are enforced and the
// remaining checks are skipped.
func Validate(d *Document, reg *registry.Registry, strict bool) ValidationResult {
	res := ValidationResult{Valid: true}

	// (1) non-empty node set.
	if len(d.Nodes) == 0 {
		res.addError("flow has no nodes")
		return res
	}

	nodeByID := make(map[string]Node, len(d.Nodes))
	for _, n := range d.Nodes {
		// (2) every node has id and type.
		if n.ID == "" {
			res.addError("a node is missing an id")
			continue
		}
		if n.Type == "" {
			res.addError("node %q is missing a type", n.ID)
		}
		if _, dup := nodeByID[n.ID]; dup {
			res.addError("duplicate node id %q", n.ID)
			continue
		}
		nodeByID[n.ID] = n
	}

	// (3) at least one trigger node.
	hasTrigger := false
	for _, n := range d.Nodes {
		if IsTriggerType(n.Type) {
			hasTrigger = true
			break
		}
	}
	if !hasTrigger {
		res.addError("flow has no trigger node")
	}

	// (4) every edge's endpoints exist.
	inbound := make(map[string]int, len(d.Nodes))
	outbound := make(map[string]int, len(d.Nodes))
	adjacency := make(map[string][]string, len(d.Nodes))
	for _, e := range d.Edges {
		if _, ok := nodeByID[e.SourceNodeID]; !ok {
			res.addError("edge references unknown source node %q", e.SourceNodeID)
			continue
		}
		if _, ok := nodeByID[e.TargetNodeID]; !ok {
			res.addError("edge references unknown target node %q", e.TargetNodeID)
			continue
		}
		inbound[e.TargetNodeID]++
		outbound[e.SourceNodeID]++
		adjacency[e.SourceNodeID] = append(adjacency[e.SourceNodeID], e.TargetNodeID)
	}

	if !strict {
		return res
	}

	// (5) no cycles: DFS white/grey/black.
	colors := make(map[string]color, len(d.Nodes))
	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = grey
		for _, next := range adjacency[id] {
			switch colors[next] {
			case grey:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		colors[id] = black
		return false
	}
	for _, n := range d.Nodes {
		if colors[n.ID] == white {
			if visit(n.ID) {
				res.addError("flow contains a cycle reachable from node %q", n.ID)
				break
			}
		}
	}

	// (6) node-type-specific validate, when the type exposes one, is run by
	// the executor/scheduler at execution time via registry.ValidateNode —
	// it needs a live ExecContext this package does not construct.

	// (7) connectivity sanity.
	for _, n := range d.Nodes {
		if IsTriggerType(n.Type) && inbound[n.ID] > 0 {
			res.addError("trigger node %q must not have inbound edges", n.ID)
		}
		if !IsTriggerType(n.Type) && inbound[n.ID] == 0 {
			res.addError("non-source node %q has no inbound edges", n.ID)
		}
		if (n.Type == "math" || n.Type == "comparison") && inbound[n.ID] < 2 {
			res.addError("node %q of type %q requires at least 2 inbound edges", n.ID, n.Type)
		}
	}

	return res
}
