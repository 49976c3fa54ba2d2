// ABOUTME: Tests for the tool registry covering registration, ordering, and lookup.
// ABOUTME: Validates collision detection and case-sensitive name resolution.

package tool

import (
	"context"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name string
}

func (s *stubTool) Name() string                     { return s.name }
func (s *stubTool) Description() string              { return "stub tool " + s.name }
func (s *stubTool) InputSchema() *jsonschema.Schema  { return &jsonschema.Schema{Type: "object"} }
func (s *stubTool) Invoke(_ context.Context, _ map[string]any) (any, error) {
	return map[string]any{"tool": s.name}, nil
}

func TestRegisterAndFind(t *testing.T) {
	r := NewRegistry(nil)

	require.NoError(t, r.Register(&stubTool{name: "alpha"}))

	got, ok := r.Find("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", got.Name())
	assert.Equal(t, 1, r.Len())
}

func TestRegisterCollision(t *testing.T) {
	r := NewRegistry(nil)

	require.NoError(t, r.Register(&stubTool{name: "alpha"}))

	err := r.Register(&stubTool{name: "alpha"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolCollision)
	assert.Equal(t, 1, r.Len())
}

func TestFindIsCaseSensitive(t *testing.T) {
	r := NewRegistry(nil)

	require.NoError(t, r.Register(&stubTool{name: "Alpha"}))

	_, ok := r.Find("alpha")
	assert.False(t, ok)

	_, ok = r.Find("Alpha")
	assert.True(t, ok)
}

func TestListSortsCaseInsensitively(t *testing.T) {
	r := NewRegistry(nil)

	for _, name := range []string{"zeta", "Alpha", "beta"} {
		require.NoError(t, r.Register(&stubTool{name: name}))
	}

	list := r.List()
	require.Len(t, list, 3)

	names := make([]string, len(list))
	for i, tl := range list {
		names[i] = tl.Name()
	}
	assert.Equal(t, []string{"Alpha", "beta", "zeta"}, names)
}

func TestFindUnknown(t *testing.T) {
	r := NewRegistry(nil)

	got, ok := r.Find("missing")
	assert.False(t, ok)
	assert.Nil(t, got)
}
