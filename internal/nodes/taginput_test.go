package nodes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagflow/engine/internal/flowerr"
	"github.com/tagflow/engine/internal/quality"
	"github.com/tagflow/engine/internal/registry"
	"github.com/tagflow/engine/internal/tagvalue"
)

func TestTagInputReadsFromRuntimeCache(t *testing.T) {
	ti := NewTagInput().(*TagInput)
	require.NoError(t, ti.Configure(map[string]any{"tagId": "line1.temp"}))

	ectx := newFakeExecContext()
	ectx.runtimeCache["line1.temp"] = tagvalue.TagValue{Value: tagvalue.Num(72.5), Quality: quality.Good, Timestamp: time.Now()}

	res, err := ti.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, 72.5, res.Value)
	assert.Empty(t, ectx.tsdbRows)
}

func TestTagInputFallsBackToTSDBOnCacheMiss(t *testing.T) {
	ti := NewTagInput().(*TagInput)
	require.NoError(t, ti.Configure(map[string]any{"tagId": "line1.temp"}))

	ectx := newFakeExecContext()
	ectx.controlRows["line1.temp"] = []registry.Row{{
		"tag_id": "line1.temp", "connection_id": "conn-1", "driver_type": "INTERNAL",
	}}
	ectx.tsdbRows["line1.temp"] = []registry.Row{{
		"ts": time.Now(), "quality": float64(quality.Good), "v_num": 18.0,
	}}

	res, err := ti.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, 18.0, res.Value)
	assert.Equal(t, uint8(quality.Good), res.Quality)
}

func TestTagInputUnknownTagFails(t *testing.T) {
	ti := NewTagInput().(*TagInput)
	require.NoError(t, ti.Configure(map[string]any{"tagId": "missing.tag"}))

	ectx := newFakeExecContext()
	_, err := ti.Execute(context.Background(), ectx)
	require.Error(t, err)
	kind, ok := flowerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, flowerr.NotFound, kind)
}

func TestTagInputExistsButNoValuesEmitsNullBad(t *testing.T) {
	ti := NewTagInput().(*TagInput)
	require.NoError(t, ti.Configure(map[string]any{"tagId": "line1.temp"}))

	ectx := newFakeExecContext()
	ectx.controlRows["line1.temp"] = []registry.Row{{
		"tag_id": "line1.temp", "connection_id": "conn-1", "driver_type": "INTERNAL",
	}}

	res, err := ti.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Nil(t, res.Value)
	assert.Equal(t, uint8(quality.Bad), res.Quality)
}

func TestTagInputStaleValueIsRejected(t *testing.T) {
	ti := NewTagInput().(*TagInput)
	require.NoError(t, ti.Configure(map[string]any{"tagId": "line1.temp", "maxDataAge": 2.0}))

	ectx := newFakeExecContext()
	ectx.controlRows["line1.temp"] = []registry.Row{{
		"tag_id": "line1.temp", "connection_id": "conn-1", "driver_type": "INTERNAL",
	}}
	ectx.tsdbRows["line1.temp"] = []registry.Row{{
		"ts": time.Now().Add(-5 * time.Second), "quality": float64(quality.Good), "v_num": 18.0,
	}}

	res, err := ti.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Nil(t, res.Value)
	assert.Equal(t, uint8(quality.Bad), res.Quality)
	assert.Equal(t, true, res.Inputs["stale"])
}

func TestTagInputMaxDataAgeNegativeOneAcceptsAnyAge(t *testing.T) {
	ti := NewTagInput().(*TagInput)
	require.NoError(t, ti.Configure(map[string]any{"tagId": "line1.temp", "maxDataAge": -1.0}))

	ectx := newFakeExecContext()
	ectx.runtimeCache["line1.temp"] = tagvalue.TagValue{
		Value:     tagvalue.Num(1.0),
		Quality:   quality.Good,
		Timestamp: time.Now().Add(-1 * time.Hour),
	}

	res, err := ti.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Value)
}
