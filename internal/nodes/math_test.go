package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagflow/engine/internal/flowerr"
	"github.com/tagflow/engine/internal/quality"
)

func TestMathAdd(t *testing.T) {
	m := NewMath().(*Math)
	require.NoError(t, m.Configure(map[string]any{"operation": "add"}))

	ectx := newFakeExecContext()
	ectx.inputs["input0"] = 2.0
	ectx.inputs["input1"] = 3.0

	res, err := m.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Value)
	assert.Equal(t, uint8(quality.Good), res.Quality)
}

func TestMathDivideByZeroIsFatal(t *testing.T) {
	m := NewMath().(*Math)
	require.NoError(t, m.Configure(map[string]any{"operation": "divide"}))

	ectx := newFakeExecContext()
	ectx.inputs["input0"] = 10.0
	ectx.inputs["input1"] = 0.0

	_, err := m.Execute(context.Background(), ectx)
	require.Error(t, err)
	kind, ok := flowerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, flowerr.Fatal, kind)
}

func TestMathRejectsBooleanInput(t *testing.T) {
	m := NewMath().(*Math)
	require.NoError(t, m.Configure(map[string]any{"operation": "add"}))

	ectx := newFakeExecContext()
	ectx.inputs["input0"] = true

	_, err := m.Execute(context.Background(), ectx)
	require.Error(t, err)
	kind, _ := flowerr.KindOf(err)
	assert.Equal(t, flowerr.TypeMismatch, kind)
}

func TestMathSkipInvalidOmitsNonNumeric(t *testing.T) {
	m := NewMath().(*Math)
	require.NoError(t, m.Configure(map[string]any{"operation": "add", "skipInvalid": true}))

	ectx := newFakeExecContext()
	ectx.inputs["input0"] = 2.0
	ectx.inputs["input1"] = "not a number"

	res, err := m.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Value)
}

func TestMathWorstQualityWins(t *testing.T) {
	m := NewMath().(*Math)
	require.NoError(t, m.Configure(map[string]any{"operation": "add"}))

	ectx := newFakeExecContext()
	ectx.inputs["input0"] = wrapped{v: 2.0, q: quality.Good}
	ectx.inputs["input1"] = wrapped{v: 3.0, q: quality.Uncertain}

	res, err := m.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, uint8(quality.Uncertain), res.Quality)
}

func TestMathRoundsToDecimalPlaces(t *testing.T) {
	m := NewMath().(*Math)
	require.NoError(t, m.Configure(map[string]any{"operation": "divide", "decimalPlaces": 2.0}))

	ectx := newFakeExecContext()
	ectx.inputs["input0"] = 10.0
	ectx.inputs["input1"] = 3.0

	res, err := m.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, 3.33, res.Value)
}

func TestMathFormula(t *testing.T) {
	m := NewMath().(*Math)
	require.NoError(t, m.Configure(map[string]any{"operation": "formula", "formula": "sqrt(input0) + input1"}))

	ectx := newFakeExecContext()
	ectx.inputs["input0"] = 16.0
	ectx.inputs["input1"] = 1.0

	res, err := m.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Value)
}

func TestMathConfigureRejectsBadFormula(t *testing.T) {
	m := NewMath().(*Math)
	err := m.Configure(map[string]any{"operation": "formula", "formula": "input0; rm -rf /"})
	require.Error(t, err)
}

type wrapped struct {
	v any
	q quality.Code
}

func (w wrapped) QualityValue() (any, quality.Code) { return w.v, w.q }
