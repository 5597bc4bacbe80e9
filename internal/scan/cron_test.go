package scan

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagflow/engine/internal/execctx"
	"github.com/tagflow/engine/internal/executor"
	"github.com/tagflow/engine/internal/flow"
	"github.com/tagflow/engine/internal/nodes"
	"github.com/tagflow/engine/internal/obslog"
	"github.com/tagflow/engine/internal/registry"
)

func newTestCronExecutor(t *testing.T) *executor.Executor {
	t.Helper()
	reg := registry.New()
	require.NoError(t, nodes.RegisterBuiltins(reg))
	log := obslog.New(logrus.New())
	return executor.New(reg, execctx.Services{}, nil, log)
}

func TestCronTriggerAddIsNoopWithoutSchedule(t *testing.T) {
	ct := NewCronTrigger(newTestCronExecutor(t), obslog.New(logrus.New()))
	require.NoError(t, ct.Add(&flow.Document{ID: "flow-no-schedule"}))
}

func TestCronTriggerAddRegistersSchedule(t *testing.T) {
	ct := NewCronTrigger(newTestCronExecutor(t), obslog.New(logrus.New()))
	doc := &flow.Document{
		ID:              "flow-scheduled",
		TriggerSchedule: "*/5 * * * * *",
		Nodes:           []flow.Node{{ID: "s", Type: "schedule"}},
	}
	require.NoError(t, ct.Add(doc))
	assert.Equal(t, "s", scheduleTriggerNodeID(doc))
}
