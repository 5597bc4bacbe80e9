package tagvalue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagflow/engine/internal/quality"
)

func TestDriverTypeWritable(t *testing.T) {
	assert.True(t, DriverInternal.Writable())
	assert.False(t, DriverSystem.Writable())
	assert.False(t, DriverOPCUA.Writable())
}

func TestDecodePrecedence(t *testing.T) {
	num := 42.5
	text := "hello"
	ts := time.Now().UTC()

	t.Run("structured wins over numeric and text", func(t *testing.T) {
		tv, err := Decode(StoredRow{Timestamp: ts, Quality: quality.Good, Num: &num, Text: &text, JSON: []byte(`{"a":1}`)})
		require.NoError(t, err)
		m, ok := tv.Value.Raw().(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(1), m["a"])
	})

	t.Run("numeric wins over text when no json", func(t *testing.T) {
		tv, err := Decode(StoredRow{Timestamp: ts, Quality: quality.Good, Num: &num, Text: &text})
		require.NoError(t, err)
		assert.Equal(t, num, tv.Value.Raw())
	})

	t.Run("text used when only text present", func(t *testing.T) {
		tv, err := Decode(StoredRow{Timestamp: ts, Quality: quality.Good, Text: &text})
		require.NoError(t, err)
		assert.Equal(t, text, tv.Value.Raw())
	})

	t.Run("null when nothing stored", func(t *testing.T) {
		tv, err := Decode(StoredRow{Timestamp: ts, Quality: quality.Bad})
		require.NoError(t, err)
		assert.True(t, tv.Value.IsNull())
	})
}

func TestEffectiveTimestamp(t *testing.T) {
	now := time.Now().UTC()
	tv := TagValue{Value: Num(1), Quality: quality.Good, Timestamp: now}
	assert.Equal(t, now, tv.EffectiveTimestamp())

	zero := TagValue{Value: Num(1), Quality: quality.Good}
	assert.False(t, zero.EffectiveTimestamp().IsZero())
}

func TestQualityValue(t *testing.T) {
	tv := TagValue{Value: Num(3), Quality: quality.Uncertain}
	v, q := quality.Extract(tv)
	assert.Equal(t, 3.0, v)
	assert.Equal(t, quality.Uncertain, q)
}

func TestExtractPath(t *testing.T) {
	v := Structured(map[string]any{"nested": map[string]any{"value": 7.0}})
	result, err := ExtractPath(v, "$.nested.value")
	require.NoError(t, err)
	assert.Equal(t, 7.0, result)

	_, err = ExtractPath(Num(1), "$.x")
	assert.Error(t, err)
}
