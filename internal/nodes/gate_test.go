package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagflow/engine/internal/quality"
)

func TestGatePassesThroughWhenTruthy(t *testing.T) {
	g := NewGate().(*Gate)
	ectx := newFakeExecContext()
	ectx.inputs["condition"] = true
	ectx.inputs["data"] = 42.0

	res, err := g.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, 42.0, res.Value)
}

func TestGateHoldPreviousMode(t *testing.T) {
	g := NewGate().(*Gate)
	require.NoError(t, g.Configure(map[string]any{"falseOutputMode": "previous"}))

	ticks := []struct {
		condition bool
		data      float64
	}{
		{true, 20}, {false, 5}, {false, 5},
	}
	var outputs []any
	for _, tick := range ticks {
		ectx := newFakeExecContext()
		ectx.inputs["condition"] = tick.condition
		ectx.inputs["data"] = tick.data
		res, err := g.Execute(context.Background(), ectx)
		require.NoError(t, err)
		outputs = append(outputs, res.Value)
	}
	assert.Equal(t, []any{20.0, 20.0, 20.0}, outputs)
}

func TestGateNullModeEmitsBadQuality(t *testing.T) {
	g := NewGate().(*Gate)
	require.NoError(t, g.Configure(map[string]any{"falseOutputMode": "null"}))

	ectx := newFakeExecContext()
	ectx.inputs["condition"] = true
	ectx.inputs["data"] = 20.0
	_, err := g.Execute(context.Background(), ectx)
	require.NoError(t, err)

	ectx2 := newFakeExecContext()
	ectx2.inputs["condition"] = false
	ectx2.inputs["data"] = 5.0
	res, err := g.Execute(context.Background(), ectx2)
	require.NoError(t, err)
	assert.Nil(t, res.Value)
	assert.Equal(t, uint8(quality.Bad), res.Quality)
}

func TestGatePreviousModeWithNoHistoryEmitsBad(t *testing.T) {
	g := NewGate().(*Gate)
	require.NoError(t, g.Configure(map[string]any{"falseOutputMode": "previous"}))

	ectx := newFakeExecContext()
	ectx.inputs["condition"] = false
	ectx.inputs["data"] = 5.0

	res, err := g.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Nil(t, res.Value)
	assert.Equal(t, uint8(quality.Bad), res.Quality)
}
