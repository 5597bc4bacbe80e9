package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagflow/engine/internal/quality"
)

func TestComparisonGT(t *testing.T) {
	c := NewComparison().(*Comparison)
	require.NoError(t, c.Configure(map[string]any{"operation": "gt"}))

	ectx := newFakeExecContext()
	ectx.inputs["a"] = 10.0
	ectx.inputs["b"] = 5.0

	res, err := c.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, true, res.Value)
}

func TestComparisonEqWithTolerance(t *testing.T) {
	c := NewComparison().(*Comparison)
	require.NoError(t, c.Configure(map[string]any{"operation": "eq", "tolerance": 0.5}))

	ectx := newFakeExecContext()
	ectx.inputs["a"] = 10.0
	ectx.inputs["b"] = 10.3

	res, err := c.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, true, res.Value)
}

func TestComparisonNullCoercesToZero(t *testing.T) {
	c := NewComparison().(*Comparison)
	require.NoError(t, c.Configure(map[string]any{"operation": "eq"}))

	ectx := newFakeExecContext()
	ectx.inputs["a"] = nil
	ectx.inputs["b"] = 0.0

	res, err := c.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, true, res.Value)
}

func TestComparisonNonNumericIsBadFalse(t *testing.T) {
	c := NewComparison().(*Comparison)
	require.NoError(t, c.Configure(map[string]any{"operation": "eq"}))

	ectx := newFakeExecContext()
	ectx.inputs["a"] = "not a number"
	ectx.inputs["b"] = 0.0

	res, err := c.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, false, res.Value)
	assert.Equal(t, uint8(quality.Bad), res.Quality)
}

func TestComparisonBadQualityShortCircuits(t *testing.T) {
	c := NewComparison().(*Comparison)
	require.NoError(t, c.Configure(map[string]any{"operation": "gt"}))

	ectx := newFakeExecContext()
	ectx.inputs["a"] = wrapped{v: 10.0, q: quality.Bad}
	ectx.inputs["b"] = 5.0

	res, err := c.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, false, res.Value)
	assert.Equal(t, uint8(quality.Bad), res.Quality)
}
