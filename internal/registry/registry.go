package registry

import (
	"context"
	"sync"

	"github.com/tagflow/engine/internal/flowerr"
)

type entry struct {
	description Description
	factory     Factory
	cached      Instance
	libraryID   string
}

// Registry holds name -> NodeType, protected by a single-writer/many-reader
// discipline: loads, unloads and reloads serialize on the write lock;
// lookups take the read lock and never block each other.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*entry
	order []string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{types: make(map[string]*entry)}
}

// RegisterOptions configures a Register call.
type RegisterOptions struct {
	// SkipValidation bypasses schema validation for a description the
	// caller trusts. RegisterBuiltins does not set it.
	SkipValidation bool
	// LibraryID attributes this registration to an external library so
	// UnregisterLibraryNodes can remove it in bulk later.
	LibraryID string
}

// Register adds a node type under name. It fails if name is already
// present, constructs a throwaway instance to read its Description, and
// unless SkipValidation is set, runs schema validation before accepting it.
func (r *Registry) Register(name string, factory Factory, opts RegisterOptions) error {
	if name == "" {
		return flowerr.New(flowerr.Validation, "node type name is required")
	}
	if factory == nil {
		return flowerr.New(flowerr.Validation, "node type factory is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[name]; exists {
		return flowerr.Newf(flowerr.Validation, "node type %q is already registered", name)
	}

	instance := factory()
	desc := instance.Description()

	if !opts.SkipValidation {
		res := ValidateDescription(desc)
		if !res.OK() {
			return flowerr.Newf(flowerr.Validation, "node type %q failed schema validation: %v", name, res.Errors)
		}
	}

	r.types[name] = &entry{
		description: desc,
		factory:     factory,
		cached:      instance,
		libraryID:   opts.LibraryID,
	}
	r.order = append(r.order, name)
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[name]
	return ok
}

// Get returns the factory for name.
func (r *Registry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.types[name]
	if !ok {
		return nil, false
	}
	return e.factory, true
}

// GetInstance returns a fresh instance of the named type, built by calling
// its factory, or an error if the type is unknown.
func (r *Registry) GetInstance(name string) (Instance, error) {
	r.mu.RLock()
	e, ok := r.types[name]
	r.mu.RUnlock()
	if !ok {
		return nil, flowerr.Newf(flowerr.NotFound, "unknown node type %q", name)
	}
	return e.factory(), nil
}

// GetDescription returns the cached description for name at zero cost (no
// factory call).
func (r *Registry) GetDescription(name string) (Description, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.types[name]
	if !ok {
		return Description{}, false
	}
	return e.description, true
}

// GetAll returns every registered type's description, in registration
// order.
func (r *Registry) GetAll() []Description {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Description, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.types[name].description)
	}
	return out
}

// Unregister removes name from the registry.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.types[name]; !ok {
		return flowerr.Newf(flowerr.NotFound, "unknown node type %q", name)
	}
	delete(r.types, name)
	r.order = removeString(r.order, name)
	return nil
}

// UnregisterLibraryNodes removes every type registered under libraryID,
// returning the names removed for logging.
func (r *Registry) UnregisterLibraryNodes(libraryID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for _, name := range r.order {
		if e := r.types[name]; e != nil && e.libraryID == libraryID {
			removed = append(removed, name)
		}
	}
	for _, name := range removed {
		delete(r.types, name)
		r.order = removeString(r.order, name)
	}
	return removed
}

// ValidateNode runs the instance-level validator when the node type exposes
// one; types that don't implement Validator are considered valid.
func (r *Registry) ValidateNode(ctx context.Context, instance Instance, ectx ExecContext) error {
	v, ok := instance.(Validator)
	if !ok {
		return nil
	}
	return v.Validate(ctx, ectx)
}

func removeString(s []string, target string) []string {
	out := make([]string, 0, len(s))
	for _, v := range s {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
