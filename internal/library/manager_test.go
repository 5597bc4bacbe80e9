package library

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagflow/engine/internal/registry"
)

type fakeEntryPoint struct {
	registered []string
	fail       bool
	result     float64
}

func (f *fakeEntryPoint) RegisterNodes(reg *registry.Registry, libraryID string) error {
	if f.fail {
		return assertErr{}
	}
	for _, name := range f.registered {
		result := f.result
		err := reg.Register(name, func() registry.Instance {
			return &fooNode{value: result}
		}, registry.RegisterOptions{LibraryID: libraryID})
		if err != nil {
			return err
		}
	}
	return nil
}

type assertErr struct{}

func (assertErr) Error() string { return "registration failed" }

type fooNode struct{ value float64 }

func (n *fooNode) Description() registry.Description {
	return registry.Description{SchemaVersion: 1, Name: "foo", DisplayName: "Foo", Version: "1.0.0", Category: "test"}
}
func (n *fooNode) Execute(ctx context.Context, ectx registry.ExecContext) (registry.Result, error) {
	return registry.Result{Value: n.value}, nil
}

func writeManifest(t *testing.T, dir string, id string, nodeTypes []string) string {
	t.Helper()
	libDir := filepath.Join(dir, id)
	require.NoError(t, os.MkdirAll(libDir, 0o755))
	m := Manifest{
		LibraryID:     id,
		SchemaVersion: 1,
		Name:          "Lib",
		Version:       "1.0.0",
		Type:          KindNodeLibrary,
		Provides:      Provides{NodeTypes: nodeTypes},
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(libDir, "library.manifest.json"), data, 0o600))
	return libDir
}

func TestLoadLibraryRegistersNodes(t *testing.T) {
	dir := t.TempDir()
	libDir := writeManifest(t, dir, "lib-x", []string{"foo"})
	RegisterEntryPoint("lib-x", &fakeEntryPoint{registered: []string{"foo"}, result: 1})

	reg := registry.New()
	mgr := New(dir, reg, nil)

	outcome, err := mgr.LoadLibrary(libDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, outcome.NodeTypes)
	assert.True(t, reg.Has("foo"))
}

func TestLoadLibraryIdempotentRefusal(t *testing.T) {
	dir := t.TempDir()
	libDir := writeManifest(t, dir, "lib-y", []string{"foo"})
	RegisterEntryPoint("lib-y", &fakeEntryPoint{registered: []string{"foo-y"}, result: 1})

	reg := registry.New()
	mgr := New(dir, reg, nil)

	_, err := mgr.LoadLibrary(libDir)
	require.NoError(t, err)

	outcome, err := mgr.LoadLibrary(libDir)
	require.NoError(t, err)
	assert.Equal(t, "already loaded", outcome.Reason)
}

func TestUnloadLibraryRemovesNodes(t *testing.T) {
	dir := t.TempDir()
	libDir := writeManifest(t, dir, "lib-z", []string{"foo"})
	RegisterEntryPoint("lib-z", &fakeEntryPoint{registered: []string{"foo-z"}, result: 1})

	reg := registry.New()
	mgr := New(dir, reg, nil)
	_, err := mgr.LoadLibrary(libDir)
	require.NoError(t, err)
	require.True(t, reg.Has("foo-z"))

	removed, err := mgr.UnloadLibrary("lib-z")
	require.NoError(t, err)
	assert.Equal(t, []string{"foo-z"}, removed)
	assert.False(t, reg.Has("foo-z"))
}

func TestReloadLibraryPicksUpNewVersion(t *testing.T) {
	dir := t.TempDir()
	libDir := writeManifest(t, dir, "lib-w", []string{"foo"})
	RegisterEntryPoint("lib-w", &fakeEntryPoint{registered: []string{"foo-w"}, result: 1})

	reg := registry.New()
	mgr := New(dir, reg, nil)
	_, err := mgr.LoadLibrary(libDir)
	require.NoError(t, err)

	inst, err := reg.GetInstance("foo-w")
	require.NoError(t, err)
	res, err := inst.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Value)

	// Replace the entry point with a new version, as if the on-disk
	// package had been upgraded.
	RegisterEntryPoint("lib-w", &fakeEntryPoint{registered: []string{"foo-w"}, result: 42})

	_, err = mgr.ReloadLibrary("lib-w", libDir)
	require.NoError(t, err)

	inst2, err := reg.GetInstance("foo-w")
	require.NoError(t, err)
	res2, err := inst2.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 42.0, res2.Value)
}

func TestLoadAllLibrariesSummary(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "lib-ok", []string{"foo"})
	RegisterEntryPoint("lib-ok", &fakeEntryPoint{registered: []string{"foo-ok"}, result: 1})
	// lib-missing has a manifest but no registered entry point.
	writeManifest(t, dir, "lib-missing", []string{"foo"})

	reg := registry.New()
	mgr := New(dir, reg, nil)

	summary, err := mgr.LoadAllLibraries(nil)
	require.NoError(t, err)
	assert.Len(t, summary.Loaded, 1)
	assert.Len(t, summary.Failed, 1)
}

type fakeRecordStore struct {
	enabled []Record
	loaded  []string
	failed  []string
}

func (s *fakeRecordStore) EnabledLibraries() ([]Record, error) { return s.enabled, nil }
func (s *fakeRecordStore) MarkLoaded(libraryID string, loadedAt time.Time) error {
	s.loaded = append(s.loaded, libraryID)
	return nil
}
func (s *fakeRecordStore) MarkLoadFailed(libraryID string, reason string) error {
	s.failed = append(s.failed, libraryID)
	return nil
}

func TestLoadAllLibrariesRespectsEnabledSet(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "lib-enabled", []string{"foo"})
	RegisterEntryPoint("lib-enabled", &fakeEntryPoint{registered: []string{"foo-enabled"}, result: 1})
	writeManifest(t, dir, "lib-disabled", []string{"foo"})
	RegisterEntryPoint("lib-disabled", &fakeEntryPoint{registered: []string{"foo-disabled"}, result: 1})

	reg := registry.New()
	mgr := New(dir, reg, nil)
	store := &fakeRecordStore{enabled: []Record{{LibraryID: "lib-enabled"}}}

	summary, err := mgr.LoadAllLibraries(store)
	require.NoError(t, err)
	require.Len(t, summary.Loaded, 1)
	assert.Equal(t, "lib-enabled", summary.Loaded[0].LibraryID)
	assert.False(t, reg.Has("foo-disabled"))
	assert.Contains(t, store.loaded, "lib-enabled")
}
