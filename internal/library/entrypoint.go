package library

import (
	"sync"

	"github.com/tagflow/engine/internal/registry"
)

// EntryPoint is a library's entry point: it registers the node types named
// in its manifest's provides.nodeTypes. Libraries self-register an
// EntryPoint through RegisterEntryPoint, mirroring the self-registering
// init() pattern used throughout the engine's built-in service packages.
type EntryPoint interface {
	RegisterNodes(reg *registry.Registry, libraryID string) error
}

var (
	entryPointsMu sync.RWMutex
	entryPoints   = map[string]EntryPoint{}
)

// RegisterEntryPoint makes an EntryPoint available under libraryID for a
// later loadLibrary call to find. It is called from an init() func in the
// library's own package, analogous to how the engine's built-in service
// packages self-register their factory.
func RegisterEntryPoint(libraryID string, ep EntryPoint) {
	entryPointsMu.Lock()
	defer entryPointsMu.Unlock()
	entryPoints[libraryID] = ep
}

func lookupEntryPoint(libraryID string) (EntryPoint, bool) {
	entryPointsMu.RLock()
	defer entryPointsMu.RUnlock()
	ep, ok := entryPoints[libraryID]
	return ep, ok
}
