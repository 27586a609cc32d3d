package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/colony/internal/memory"
	"github.com/p-blackswan/colony/internal/schema"
)

func newTestArchive(t *testing.T) *memory.Archive {
	t.Helper()
	a, err := memory.NewArchive("file:"+t.TempDir()+"/archive.db", nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestArchiveSaveAndRecent(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	first := schema.New("first", "R1", schema.KindRequirement)
	second := schema.New("second", "R2", schema.KindRespond)
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	second.Instruct = map[string]string{"key": "value"}

	require.NoError(t, a.Save(ctx, first))
	require.NoError(t, a.Save(ctx, second))

	got, err := a.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Content, "newest first")
	assert.Equal(t, map[string]string{"key": "value"}, got[0].Instruct)
}

func TestArchiveSaveIdempotent(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	m := schema.New("once", "R", schema.KindRespond)
	require.NoError(t, a.Save(ctx, m))
	require.NoError(t, a.Save(ctx, m))

	got, err := a.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestArchiveByAction(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, schema.New("req", "R", schema.KindRequirement)))
	require.NoError(t, a.Save(ctx, schema.New("rsp", "R", schema.KindRespond)))

	got, err := a.ByAction(ctx, schema.KindRespond)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rsp", got[0].Content)
	assert.Equal(t, schema.KindRespond, got[0].CauseBy)
}
