package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagflow/engine/internal/flowerr"
)

type stubNode struct {
	desc        Description
	validated   bool
	validateErr error
}

func (s *stubNode) Description() Description { return s.desc }
func (s *stubNode) Execute(ctx context.Context, ectx ExecContext) (Result, error) {
	return Result{Value: 1}, nil
}
func (s *stubNode) Validate(ctx context.Context, ectx ExecContext) error {
	s.validated = true
	return s.validateErr
}

func validDescription(name string) Description {
	return Description{
		SchemaVersion: 1,
		Name:          name,
		DisplayName:   name,
		Version:       "1.0.0",
		Category:      "test",
		Inputs:        []Port{{Name: "in", Type: TypeAny}},
		Outputs:       []Port{{Name: "out", Type: TypeAny}},
	}
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	err := r.Register("math", func() Instance { return &stubNode{desc: validDescription("math")} }, RegisterOptions{})
	require.NoError(t, err)

	assert.True(t, r.Has("math"))
	desc, ok := r.GetDescription("math")
	require.True(t, ok)
	assert.Equal(t, "math", desc.Name)

	inst, err := r.GetInstance("math")
	require.NoError(t, err)
	assert.NotNil(t, inst)
}

func TestRegisterDuplicateRejected(t *testing.T) {
	r := New()
	factory := func() Instance { return &stubNode{desc: validDescription("math")} }
	require.NoError(t, r.Register("math", factory, RegisterOptions{}))

	err := r.Register("math", factory, RegisterOptions{})
	require.Error(t, err)
	kind, ok := flowerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, flowerr.Validation, kind)
}

func TestRegisterInvalidSchemaRejected(t *testing.T) {
	r := New()
	bad := Description{SchemaVersion: 2, Name: "Math!"}
	err := r.Register("math", func() Instance { return &stubNode{desc: bad} }, RegisterOptions{})
	require.Error(t, err)
}

func TestRegisterSkipValidation(t *testing.T) {
	r := New()
	bad := Description{SchemaVersion: 2, Name: "not a slug"}
	err := r.Register("weird", func() Instance { return &stubNode{desc: bad} }, RegisterOptions{SkipValidation: true})
	require.NoError(t, err)
}

func TestUnregister(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("math", func() Instance { return &stubNode{desc: validDescription("math")} }, RegisterOptions{}))
	require.NoError(t, r.Unregister("math"))
	assert.False(t, r.Has("math"))

	err := r.Unregister("math")
	require.Error(t, err)
	kind, _ := flowerr.KindOf(err)
	assert.Equal(t, flowerr.NotFound, kind)
}

func TestUnregisterLibraryNodes(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("lib-a", func() Instance { return &stubNode{desc: validDescription("lib-a")} }, RegisterOptions{LibraryID: "lib-x"}))
	require.NoError(t, r.Register("lib-b", func() Instance { return &stubNode{desc: validDescription("lib-b")} }, RegisterOptions{LibraryID: "lib-x"}))
	require.NoError(t, r.Register("builtin", func() Instance { return &stubNode{desc: validDescription("builtin")} }, RegisterOptions{}))

	removed := r.UnregisterLibraryNodes("lib-x")
	assert.ElementsMatch(t, []string{"lib-a", "lib-b"}, removed)
	assert.False(t, r.Has("lib-a"))
	assert.True(t, r.Has("builtin"))
}

func TestGetAllPreservesOrder(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("a", func() Instance { return &stubNode{desc: validDescription("a")} }, RegisterOptions{}))
	require.NoError(t, r.Register("b", func() Instance { return &stubNode{desc: validDescription("b")} }, RegisterOptions{}))

	all := r.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name)
	assert.Equal(t, "b", all[1].Name)
}

func TestValidateNode(t *testing.T) {
	r := New()
	n := &stubNode{desc: validDescription("math")}
	require.NoError(t, r.ValidateNode(context.Background(), n, nil))
	assert.True(t, n.validated)

	passthrough := struct {
		Instance
	}{Instance: &stubNode{desc: validDescription("x")}}
	require.NoError(t, r.ValidateNode(context.Background(), passthrough, nil))
}
