package nodes

import (
	"context"

	"github.com/tagflow/engine/internal/quality"
	"github.com/tagflow/engine/internal/registry"
)

// GateFalseMode controls what Gate emits when condition is falsy.
type GateFalseMode string

const (
	GateFalseNull     GateFalseMode = "null"
	GateFalsePrevious GateFalseMode = "previous"
)

// Gate passes data through unchanged while condition is truthy. While
// falsy, it either emits (null, bad) or holds the last Good value that
// passed through, depending on FalseOutputMode. The held value is state
// private to this Instance: the executor constructs one Gate per node id
// and reuses it across scan ticks, so the history naturally scopes to the
// node instance rather than the node type.
type Gate struct {
	FalseOutputMode GateFalseMode

	hasPrevious bool
	prevValue   any
	prevQuality uint8
}

func NewGate() registry.Instance {
	return &Gate{FalseOutputMode: GateFalseNull}
}

func (g *Gate) Description() registry.Description {
	return registry.Description{
		SchemaVersion: 1,
		Name:          "gate",
		DisplayName:   "Gate",
		Version:       "1.0.0",
		Category:      "logic",
		Inputs:        []registry.Port{{Name: "condition", Type: registry.TypeBoolean}, {Name: "data", Type: registry.TypeAny}},
		Outputs:       []registry.Port{{Name: "output", Type: registry.TypeAny}},
		Properties: []registry.Property{
			{Name: "falseOutputMode", Type: "string", DefaultValue: string(GateFalseNull)},
		},
	}
}

func (g *Gate) Configure(data map[string]any) error {
	if mode, ok := data["falseOutputMode"].(string); ok && mode != "" {
		g.FalseOutputMode = GateFalseMode(mode)
	}
	return nil
}

func (g *Gate) Execute(ctx context.Context, ectx registry.ExecContext) (registry.Result, error) {
	rawCondition, _ := ectx.GetInputValue("condition")
	rawData, _ := ectx.GetInputValue("data")

	condValue, _ := quality.Extract(rawCondition)
	dataValue, dataQuality := quality.Extract(rawData)

	truthy, _ := condValue.(bool)

	if truthy {
		if quality.IsGood(dataQuality) {
			g.hasPrevious = true
			g.prevValue = dataValue
			g.prevQuality = uint8(dataQuality)
		}
		return registry.Result{Value: dataValue, Quality: uint8(dataQuality)}, nil
	}

	switch g.FalseOutputMode {
	case GateFalsePrevious:
		if g.hasPrevious {
			return registry.Result{Value: g.prevValue, Quality: g.prevQuality}, nil
		}
		return registry.Result{Value: nil, Quality: uint8(quality.Bad)}, nil
	default:
		return registry.Result{Value: nil, Quality: uint8(quality.Bad)}, nil
	}
}
