package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleValidFlow() *Document {
	return &Document{
		Nodes: []Node{
			{ID: "t1", Type: "tag-input"},
			{ID: "m1", Type: "math"},
			{ID: "m2", Type: "math"},
			{ID: "o1", Type: "tag-output"},
		},
		Edges: []Edge{
			{SourceNodeID: "t1", TargetNodeID: "m1"},
			{SourceNodeID: "t1", TargetNodeID: "m2"},
			{SourceNodeID: "t1", TargetNodeID: "m2"},
			{SourceNodeID: "m1", TargetNodeID: "o1"},
			{SourceNodeID: "m2", TargetNodeID: "m1"},
		},
	}
}

func TestValidateHappyPath(t *testing.T) {
	res := Validate(simpleValidFlow(), nil, true)
	require.True(t, res.Valid, "errors: %v", res.Errors)
}

func TestValidateEmptyNodes(t *testing.T) {
	res := Validate(&Document{}, nil, true)
	require.False(t, res.Valid)
	assert.Contains(t, res.Errors[0], "no nodes")
}

func TestValidateNoTrigger(t *testing.T) {
	d := &Document{Nodes: []Node{{ID: "m1", Type: "math"}}}
	res := Validate(d, nil, true)
	require.False(t, res.Valid)
	found := false
	for _, e := range res.Errors {
		if e == "flow has no trigger node" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidateUnknownEdgeEndpoint(t *testing.T) {
	d := &Document{
		Nodes: []Node{{ID: "t1", Type: "tag-input"}},
		Edges: []Edge{{SourceNodeID: "t1", TargetNodeID: "missing"}},
	}
	res := Validate(d, nil, true)
	require.False(t, res.Valid)
}

func TestValidateCycleDetected(t *testing.T) {
	d := &Document{
		Nodes: []Node{
			{ID: "t1", Type: "tag-input"},
			{ID: "a", Type: "script"},
			{ID: "b", Type: "script"},
		},
		Edges: []Edge{
			{SourceNodeID: "t1", TargetNodeID: "a"},
			{SourceNodeID: "a", TargetNodeID: "b"},
			{SourceNodeID: "b", TargetNodeID: "a"},
		},
	}
	res := Validate(d, nil, true)
	require.False(t, res.Valid)
	hasCycleErr := false
	for _, e := range res.Errors {
		if e == "flow contains a cycle reachable from node \"a\"" || e == "flow contains a cycle reachable from node \"b\"" || e == "flow contains a cycle reachable from node \"t1\"" {
			hasCycleErr = true
		}
	}
	assert.True(t, hasCycleErr)
}

func TestValidateSaveTimeIsPermissive(t *testing.T) {
	d := &Document{
		Nodes: []Node{{ID: "t1", Type: "tag-input"}, {ID: "m1", Type: "math"}},
	}
	res := Validate(d, nil, false)
	assert.True(t, res.Valid, "save-time validation should not enforce connectivity rules")
}

func TestValidateTriggerMustNotHaveInbound(t *testing.T) {
	d := &Document{
		Nodes: []Node{
			{ID: "t1", Type: "tag-input"},
			{ID: "t2", Type: "tag-input"},
		},
		Edges: []Edge{{SourceNodeID: "t1", TargetNodeID: "t2"}},
	}
	res := Validate(d, nil, true)
	require.False(t, res.Valid)
}

func TestValidateMathRequiresTwoInbound(t *testing.T) {
	d := &Document{
		Nodes: []Node{
			{ID: "t1", Type: "tag-input"},
			{ID: "m1", Type: "math"},
		},
		Edges: []Edge{{SourceNodeID: "t1", TargetNodeID: "m1"}},
	}
	res := Validate(d, nil, true)
	require.False(t, res.Valid)
}
