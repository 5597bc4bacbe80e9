package nodes

import "github.com/tagflow/engine/internal/registry"

// RegisterBuiltins registers the engine's built-in node set into reg. It is
// called once at process bootstrap, before any library is loaded, so
// library node types never collide with the built-in names.
func RegisterBuiltins(reg *registry.Registry) error {
	builtins := map[string]registry.Factory{
		"math":       NewMath,
		"comparison": NewComparison,
		"gate":       NewGate,
		"tag-input":  NewTagInput,
		"tag-output": NewTagOutput,
		"script":     NewScript,
	}
	for name, factory := range builtins {
		if err := reg.Register(name, factory, registry.RegisterOptions{}); err != nil {
			return err
		}
	}
	return nil
}
