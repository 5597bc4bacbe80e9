package nodes

import (
	"context"
	"math"

	"github.com/tagflow/engine/internal/flowerr"
	"github.com/tagflow/engine/internal/quality"
	"github.com/tagflow/engine/internal/registry"
)

// machineEpsilon is the default eq/neq tolerance per spec.md §4.6.
const machineEpsilon = 0x1p-52

// ComparisonOperation is the closed set of operations the Comparison node
// supports.
type ComparisonOperation string

const (
	CompareGT  ComparisonOperation = "gt"
	CompareLT  ComparisonOperation = "lt"
	CompareGTE ComparisonOperation = "gte"
	CompareLTE ComparisonOperation = "lte"
	CompareEQ  ComparisonOperation = "eq"
	CompareNEQ ComparisonOperation = "neq"
)

// Comparison compares two operands, coercing nil to 0 and applying a
// tolerance for eq/neq. Either operand failing to coerce to a number, or
// either operand carrying quality worse than Good-or-Uncertain, forces a
// bad-quality false result rather than a Go error.
type Comparison struct {
	Operation ComparisonOperation
	Tolerance float64
}

func NewComparison() registry.Instance {
	return &Comparison{Operation: CompareEQ, Tolerance: machineEpsilon}
}

func (c *Comparison) Description() registry.Description {
	return registry.Description{
		SchemaVersion: 1,
		Name:          "comparison",
		DisplayName:   "Comparison",
		Version:       "1.0.0",
		Category:      "logic",
		Inputs:        []registry.Port{{Name: "a", Type: registry.TypeNumber}, {Name: "b", Type: registry.TypeNumber}},
		Outputs:       []registry.Port{{Name: "output", Type: registry.TypeBoolean}},
		Properties: []registry.Property{
			{Name: "operation", Type: "string", Required: true, DefaultValue: string(CompareEQ)},
			{Name: "tolerance", Type: "number"},
		},
	}
}

func (c *Comparison) Configure(data map[string]any) error {
	if op, ok := data["operation"].(string); ok && op != "" {
		c.Operation = ComparisonOperation(op)
	}
	if tol, ok := numberProperty(data["tolerance"]); ok {
		c.Tolerance = tol
	}
	return nil
}

func (c *Comparison) Execute(ctx context.Context, ectx registry.ExecContext) (registry.Result, error) {
	rawA, _ := ectx.GetInputValue("a")
	rawB, _ := ectx.GetInputValue("b")

	a, qa := quality.Extract(rawA)
	b, qb := quality.Extract(rawB)

	if quality.IsBad(qa) || quality.IsBad(qb) {
		return registry.Result{Value: false, Quality: uint8(quality.Bad)}, nil
	}

	fa, okA := toFloatOrNull(a)
	fb, okB := toFloatOrNull(b)
	if !okA || !okB {
		return registry.Result{
			Value:   false,
			Quality: uint8(quality.Bad),
			Error:   flowerr.New(flowerr.TypeMismatch, "non-numeric").WithNode(ectx.NodeID()),
		}, nil
	}

	result := compare(c.Operation, fa, fb, c.Tolerance)
	outQuality := quality.Combine(qa, qb)

	return registry.Result{
		Value:     result,
		Quality:   uint8(outQuality),
		Operation: string(c.Operation),
		Inputs:    map[string]any{"a": fa, "b": fb},
	}, nil
}

// toFloatOrNull coerces nil to 0, matching the spec's "operands coerced to
// number, null -> 0" rule, and rejects anything that isn't numeric or nil.
func toFloatOrNull(v any) (float64, bool) {
	if v == nil {
		return 0, true
	}
	return toFloat(v)
}

func compare(op ComparisonOperation, a, b, tolerance float64) bool {
	switch op {
	case CompareGT:
		return a > b
	case CompareLT:
		return a < b
	case CompareGTE:
		return a >= b
	case CompareLTE:
		return a <= b
	case CompareEQ:
		return math.Abs(a-b) < tolerance
	case CompareNEQ:
		return math.Abs(a-b) >= tolerance
	default:
		return false
	}
}
