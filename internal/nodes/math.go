// Package nodes implements the built-in node set: Math, Comparison, Gate,
// TagInput, TagOutput, and Script. Each type is a single class exposing a
// schema Description, an optional Validate, an optional GetLogMessages, and
// an Execute that reads its declared inputs off the ExecContext and returns
// a registry.Result.
package nodes

import (
	"context"
	"fmt"
	"math"

	"github.com/tagflow/engine/internal/flowerr"
	"github.com/tagflow/engine/internal/formula"
	"github.com/tagflow/engine/internal/quality"
	"github.com/tagflow/engine/internal/registry"
)

// MathOperation is the closed set of operations the Math node supports.
type MathOperation string

const (
	MathAdd      MathOperation = "add"
	MathSubtract MathOperation = "subtract"
	MathMultiply MathOperation = "multiply"
	MathDivide   MathOperation = "divide"
	MathAverage  MathOperation = "average"
	MathMin      MathOperation = "min"
	MathMax      MathOperation = "max"
	MathFormula  MathOperation = "formula"
)

// Math combines its numeric inputs according to Operation. Boolean input is
// always rejected; non-numeric input is dropped only when SkipInvalid is
// set. Divide-by-zero is a hard error. The result is rounded to
// DecimalPlaces unless it is -1.
type Math struct {
	Operation     MathOperation
	Formula       string
	DecimalPlaces int
	SkipInvalid   bool
}

func NewMath() registry.Instance {
	return &Math{Operation: MathAdd, DecimalPlaces: -1}
}

func (m *Math) Description() registry.Description {
	return registry.Description{
		SchemaVersion: 1,
		Name:          "math",
		DisplayName:   "Math",
		Version:       "1.0.0",
		Category:      "logic",
		Inputs:        []registry.Port{{Name: "input0", Type: registry.TypeNumber}, {Name: "input1", Type: registry.TypeNumber, Optional: true}},
		Outputs:       []registry.Port{{Name: "output", Type: registry.TypeNumber}},
		Properties: []registry.Property{
			{Name: "operation", Type: "string", Required: true, DefaultValue: string(MathAdd)},
			{Name: "formula", Type: "string"},
			{Name: "decimalPlaces", Type: "number", DefaultValue: -1},
			{Name: "skipInvalid", Type: "boolean", DefaultValue: false},
		},
	}
}

func (m *Math) Configure(data map[string]any) error {
	if op, ok := data["operation"].(string); ok && op != "" {
		m.Operation = MathOperation(op)
	}
	if f, ok := data["formula"].(string); ok {
		m.Formula = f
	}
	if dp, ok := numberProperty(data["decimalPlaces"]); ok {
		m.DecimalPlaces = int(dp)
	}
	if skip, ok := data["skipInvalid"].(bool); ok {
		m.SkipInvalid = skip
	}
	if m.Operation == MathFormula {
		return formula.Validate(m.Formula)
	}
	return nil
}

func (m *Math) Execute(ctx context.Context, ectx registry.ExecContext) (registry.Result, error) {
	values := make([]float64, 0, ectx.GetInputCount())
	quals := make([]quality.Code, 0, ectx.GetInputCount())
	inputs := make(map[string]any, ectx.GetInputCount())

	for i := 0; i < ectx.GetInputCount(); i++ {
		port := fmt.Sprintf("input%d", i)
		raw, ok := ectx.GetInputValue(port)
		if !ok {
			continue
		}
		inputs[port] = raw
		v, q := quality.Extract(raw)
		if _, isBool := v.(bool); isBool {
			return registry.Result{}, flowerr.New(flowerr.TypeMismatch, "math: boolean input must be converted before use").WithNode(ectx.NodeID())
		}
		f, ok := toFloat(v)
		if !ok {
			if m.SkipInvalid {
				continue
			}
			return registry.Result{}, flowerr.Newf(flowerr.TypeMismatch, "math: input %q is not numeric", port).WithNode(ectx.NodeID())
		}
		values = append(values, f)
		quals = append(quals, q)
	}

	outQuality := quality.Combine(quals...)

	var result float64
	var err error
	if m.Operation == MathFormula {
		inputMap := make(map[string]float64, len(values))
		for i, v := range values {
			inputMap[fmt.Sprintf("input%d", i)] = v
		}
		result, err = formula.Evaluate(m.Formula, inputMap)
	} else {
		result, err = combine(m.Operation, values)
	}
	if err != nil {
		return registry.Result{}, flowerr.Wrap(flowerr.Fatal, err, "math").WithNode(ectx.NodeID())
	}

	result = roundTo(result, m.DecimalPlaces)

	return registry.Result{
		Value:     result,
		Quality:   uint8(outQuality),
		Operation: string(m.Operation),
		Inputs:    inputs,
	}, nil
}

func combine(op MathOperation, values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, flowerr.New(flowerr.Validation, "math: no numeric inputs")
	}
	switch op {
	case MathAdd:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum, nil
	case MathSubtract:
		result := values[0]
		for _, v := range values[1:] {
			result -= v
		}
		return result, nil
	case MathMultiply:
		result := 1.0
		for _, v := range values {
			result *= v
		}
		return result, nil
	case MathDivide:
		result := values[0]
		for _, v := range values[1:] {
			if v == 0 {
				return 0, flowerr.New(flowerr.Fatal, "math: divide by zero")
			}
			result /= v
		}
		return result, nil
	case MathAverage:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values)), nil
	case MathMin:
		result := values[0]
		for _, v := range values[1:] {
			result = math.Min(result, v)
		}
		return result, nil
	case MathMax:
		result := values[0]
		for _, v := range values[1:] {
			result = math.Max(result, v)
		}
		return result, nil
	default:
		return 0, flowerr.Newf(flowerr.Validation, "math: unknown operation %q", op)
	}
}

func roundTo(v float64, decimalPlaces int) float64 {
	if decimalPlaces < 0 {
		return v
	}
	scale := math.Pow(10, float64(decimalPlaces))
	return math.Round(v*scale) / scale
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func numberProperty(v any) (float64, bool) {
	return toFloat(v)
}
