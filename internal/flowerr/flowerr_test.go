package flowerr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	e := New(Validation, "bad manifest")
	assert.Equal(t, "validation: bad manifest", e.Error())

	scoped := e.WithNode("node-1")
	assert.Equal(t, "validation: bad manifest (node=node-1)", scoped.Error())
	assert.Equal(t, "validation: bad manifest", e.Error(), "WithNode must not mutate the receiver")
}

func TestWithDetail(t *testing.T) {
	e := New(TypeMismatch, "boolean into numeric").WithDetail("port", "inputA")
	require.Len(t, e.Details, 1)
	assert.Equal(t, "inputA", e.Details["port"])

	e2 := e.WithDetail("node", "n1")
	require.Len(t, e2.Details, 2)
	assert.Len(t, e.Details, 1, "WithDetail must not mutate the receiver")
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", Wrap(Fatal, nil, "divide by zero"))

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, Fatal, kind)

	_, ok = KindOf(fmt.Errorf("plain error"))
	assert.False(t, ok)
}
