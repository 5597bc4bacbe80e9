// Package library implements the dynamic node-library manager: scanning a
// libraries root directory, validating manifests, and hot loading,
// unloading and reloading the node types a library provides.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tagflow/engine/internal/flowerr"
	"github.com/tagflow/engine/internal/registry"
)

// Record is the persisted library row (§3's Library record).
type Record struct {
	LibraryID    string
	Name         string
	Version      string
	Manifest     Manifest
	Enabled      bool
	InstalledAt  time.Time
	InstalledBy  string
	LastLoadedAt time.Time
	LoadErrors   string
}

// RecordStore is the thin persistence contract LoadAllLibraries uses to
// decide which libraries are eligible and to stamp the outcome of a load
// attempt. Implemented by internal/store against the control database.
type RecordStore interface {
	EnabledLibraries() ([]Record, error)
	MarkLoaded(libraryID string, loadedAt time.Time) error
	MarkLoadFailed(libraryID string, reason string) error
}

// LoadOutcome is one library's result within a Summary.
type LoadOutcome struct {
	LibraryID string
	NodeTypes []string
	Reason    string
}

// Summary is the {loaded[], failed[], skipped[]} result of a bulk load.
type Summary struct {
	Loaded  []LoadOutcome
	Failed  []LoadOutcome
	Skipped []LoadOutcome
}

// loadedLibrary tracks what a successfully loaded library contributed, so
// unloadLibrary/reloadLibrary know what to remove.
type loadedLibrary struct {
	manifest   Manifest
	path       string
	nodeTypes  []string
	generation int
}

// Manager scans a libraries root, validates manifests, and drives hot
// load/unload/reload against a node Registry. It holds only metadata; node
// instances themselves are owned by the Registry.
type Manager struct {
	mu      sync.Mutex
	root    string
	reg     *registry.Registry
	loaded  map[string]*loadedLibrary
	granted map[string]bool
}

// New returns a Manager scanning root and registering into reg.
func New(root string, reg *registry.Registry, granted map[string]bool) *Manager {
	return &Manager{
		root:    root,
		reg:     reg,
		loaded:  make(map[string]*loadedLibrary),
		granted: granted,
	}
}

// Scan lists the library ids present under the manager's root directory.
func (m *Manager) Scan() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, flowerr.Wrap(flowerr.Transient, err, "scan libraries root")
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// LoadAllLibraries loads every library under the root. When store is
// non-nil, only libraries marked enabled in the record store are
// considered; each successful load stamps LastLoadedAt and clears
// LoadErrors, each failure records the reason and loading continues with
// the next library.
func (m *Manager) LoadAllLibraries(store RecordStore) (Summary, error) {
	var candidates []string
	var err error

	if store != nil {
		records, rerr := store.EnabledLibraries()
		if rerr != nil {
			return Summary{}, flowerr.Wrap(flowerr.Transient, rerr, "list enabled libraries")
		}
		for _, r := range records {
			candidates = append(candidates, r.LibraryID)
		}
	} else {
		candidates, err = m.Scan()
		if err != nil {
			return Summary{}, err
		}
	}

	var summary Summary
	for _, id := range candidates {
		path := filepath.Join(m.root, id)
		outcome, loadErr := m.LoadLibrary(path)
		if loadErr != nil {
			summary.Failed = append(summary.Failed, LoadOutcome{LibraryID: id, Reason: loadErr.Error()})
			if store != nil {
				_ = store.MarkLoadFailed(id, loadErr.Error())
			}
			continue
		}
		if outcome.Reason == "already loaded" {
			summary.Skipped = append(summary.Skipped, outcome)
			continue
		}
		summary.Loaded = append(summary.Loaded, outcome)
		if store != nil {
			_ = store.MarkLoaded(id, time.Now().UTC())
		}
	}
	return summary, nil
}

// LoadLibrary loads the library rooted at path. It refuses to double-load
// (returning a {success: false, reason: "already loaded"} shaped outcome
// rather than an error), validates the manifest, checks capability
// requirements, and invokes the library's registered EntryPoint.
func (m *Manager) LoadLibrary(path string) (LoadOutcome, error) {
	raw, err := os.ReadFile(filepath.Join(path, "library.manifest.json"))
	if err != nil {
		return LoadOutcome{}, flowerr.Wrap(flowerr.Validation, err, "read library.manifest.json")
	}

	manifest, err := ParseManifest(raw)
	if err != nil {
		return LoadOutcome{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.loaded[manifest.LibraryID]; ok {
		return LoadOutcome{LibraryID: manifest.LibraryID, Reason: "already loaded"}, nil
	}

	if missing := CheckRequirements(manifest, m.granted); len(missing) > 0 {
		return LoadOutcome{}, flowerr.Newf(flowerr.Validation, "library %q missing required capabilities: %v", manifest.LibraryID, missing)
	}

	if manifest.Type != KindNodeLibrary {
		// Extension manifests route HTTP under extension/routes.js, which
		// belongs to the out-of-scope HTTP layer; metadata is still tracked.
		m.loaded[manifest.LibraryID] = &loadedLibrary{manifest: manifest, path: path}
		return LoadOutcome{LibraryID: manifest.LibraryID}, nil
	}

	ep, ok := lookupEntryPoint(manifest.LibraryID)
	if !ok {
		return LoadOutcome{}, flowerr.Newf(flowerr.NotFound, "no entry point registered for library %q", manifest.LibraryID)
	}

	if err := ep.RegisterNodes(m.reg, manifest.LibraryID); err != nil {
		return LoadOutcome{}, flowerr.Wrap(flowerr.Validation, err, fmt.Sprintf("registerNodes for library %q", manifest.LibraryID))
	}

	m.loaded[manifest.LibraryID] = &loadedLibrary{
		manifest:  manifest,
		path:      path,
		nodeTypes: manifest.Provides.NodeTypes,
	}
	return LoadOutcome{LibraryID: manifest.LibraryID, NodeTypes: manifest.Provides.NodeTypes}, nil
}

// UnloadLibrary removes every node type registered by libraryID from the
// registry and forgets the library's metadata, returning the removed type
// names.
func (m *Manager) UnloadLibrary(libraryID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.loaded[libraryID]; !ok {
		return nil, flowerr.Newf(flowerr.NotFound, "library %q is not loaded", libraryID)
	}
	removed := m.reg.UnregisterLibraryNodes(libraryID)
	delete(m.loaded, libraryID)
	return removed, nil
}

// ReloadLibrary unloads then loads libraryID again from path: the unload
// removes the library's node types from the registry, and the subsequent
// load reads the manifest and calls the entry point fresh. The library's
// generation counter is incremented and stored; nothing else reads it.
func (m *Manager) ReloadLibrary(libraryID string, path string) (LoadOutcome, error) {
	m.mu.Lock()
	prev, ok := m.loaded[libraryID]
	generation := 0
	if ok {
		generation = prev.generation + 1
	}
	m.mu.Unlock()

	if ok {
		if _, err := m.UnloadLibrary(libraryID); err != nil {
			return LoadOutcome{}, err
		}
	}

	outcome, err := m.LoadLibrary(path)
	if err != nil {
		return outcome, err
	}

	m.mu.Lock()
	if l, ok := m.loaded[libraryID]; ok {
		l.generation = generation
	}
	m.mu.Unlock()

	return outcome, nil
}

// IsLoaded reports whether libraryID is currently loaded.
func (m *Manager) IsLoaded(libraryID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.loaded[libraryID]
	return ok
}
