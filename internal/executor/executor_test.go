package executor

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagflow/engine/internal/execctx"
	"github.com/tagflow/engine/internal/flow"
	"github.com/tagflow/engine/internal/nodes"
	"github.com/tagflow/engine/internal/obslog"
	"github.com/tagflow/engine/internal/registry"
)

// constNode is a trivial trigger-type node type registered only for these
// tests: it takes no inputs and emits a configured constant, standing in for
// a real trigger/tag-input node without pulling in the store.
type constNode struct {
	value float64
}

func newConst() registry.Instance { return &constNode{} }

func (c *constNode) Description() registry.Description {
	return registry.Description{
		SchemaVersion: 1,
		Name:          "trigger",
		DisplayName:   "Trigger",
		Version:       "1.0.0",
		Category:      "trigger",
		Outputs:       []registry.Port{{Name: "output", Type: registry.TypeNumber}},
	}
}

func (c *constNode) Configure(data map[string]any) error {
	if v, ok := data["value"].(float64); ok {
		c.value = v
	}
	return nil
}

func (c *constNode) Execute(ctx context.Context, ectx registry.ExecContext) (registry.Result, error) {
	return registry.Result{Value: c.value}, nil
}

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	reg := registry.New()
	require.NoError(t, nodes.RegisterBuiltins(reg))
	require.NoError(t, reg.Register("trigger", newConst, registry.RegisterOptions{}))
	log := obslog.New(logrus.New())
	return New(reg, execctx.Services{}, nil, log)
}

func TestRunExecutesSimpleChain(t *testing.T) {
	ex := newTestExecutor(t)

	doc := &flow.Document{
		ID: "flow-1",
		Nodes: []flow.Node{
			{ID: "t", Type: "trigger", Data: map[string]any{"value": 2.0}},
			{ID: "b", Type: "math", Data: map[string]any{"operation": "add"}},
		},
		Edges: []flow.Edge{
			{SourceNodeID: "t", SourcePort: "output", TargetNodeID: "b", TargetPort: "input0"},
			{SourceNodeID: "t", SourcePort: "output", TargetNodeID: "b", TargetPort: "input1"},
		},
	}

	rec, err := ex.Run(context.Background(), doc, "t")
	require.NoError(t, err)
	assert.Equal(t, flow.StatusCompleted, rec.Status)
	assert.Equal(t, 4.0, rec.NodeOutputs["b"].Value)
}

func TestRunAbortsOnFatalErrorByDefault(t *testing.T) {
	ex := newTestExecutor(t)

	doc := &flow.Document{
		ID: "flow-2",
		Nodes: []flow.Node{
			{ID: "t1", Type: "trigger", Data: map[string]any{"value": 10.0}},
			{ID: "t2", Type: "trigger", Data: map[string]any{"value": 0.0}},
			{ID: "c", Type: "math", Data: map[string]any{"operation": "divide"}},
			{ID: "d", Type: "math", Data: map[string]any{"operation": "add"}},
		},
		Edges: []flow.Edge{
			{SourceNodeID: "t1", SourcePort: "output", TargetNodeID: "c", TargetPort: "input0"},
			{SourceNodeID: "t2", SourcePort: "output", TargetNodeID: "c", TargetPort: "input1"},
			{SourceNodeID: "c", SourcePort: "output", TargetNodeID: "d", TargetPort: "input0"},
			{SourceNodeID: "t1", SourcePort: "output", TargetNodeID: "d", TargetPort: "input1"},
		},
	}

	rec, err := ex.Run(context.Background(), doc, "t1")
	require.Error(t, err)
	assert.Equal(t, flow.StatusFailed, rec.Status)
	assert.NotContains(t, rec.NodeOutputs, "d")
}

func TestRunRejectsInvalidFlow(t *testing.T) {
	ex := newTestExecutor(t)

	doc := &flow.Document{ID: "flow-3"}
	_, err := ex.Run(context.Background(), doc, "")
	require.Error(t, err)
}
