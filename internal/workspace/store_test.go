package workspace_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/p-blackswan/colony/internal/errors"
	"github.com/p-blackswan/colony/internal/workspace"
)

func newStore(t *testing.T) *workspace.Store {
	t.Helper()
	s, err := workspace.Open("file:"+t.TempDir()+"/ws.db", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "design.md", "# Design", "Architect"))

	a, err := s.Get(ctx, "design.md")
	require.NoError(t, err)
	assert.Equal(t, "# Design", a.Content)
	assert.Equal(t, "Architect", a.Producer)
}

func TestPutOverwrites(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "main.go", "v1", "Engineer"))
	require.NoError(t, s.Put(ctx, "main.go", "v2", "Engineer"))

	a, err := s.Get(ctx, "main.go")
	require.NoError(t, err)
	assert.Equal(t, "v2", a.Content)

	keys, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, keys)
}

func TestGetMissing(t *testing.T) {
	s := newStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, cerrors.ErrNotFound)
}
