package action_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/colony/internal/action"
	cerrors "github.com/p-blackswan/colony/internal/errors"
	"github.com/p-blackswan/colony/internal/schema"
	"github.com/p-blackswan/colony/internal/workspace"
)

// mockProvider is a minimal llm.Provider for testing.
type mockProvider struct {
	fn    func(prompt string) (string, error)
	calls int64
}

func (m *mockProvider) Generate(_ context.Context, prompt string) (string, error) {
	atomic.AddInt64(&m.calls, 1)
	return m.fn(prompt)
}

func (m *mockProvider) ModelID() string { return "mock" }

func TestRegistryClosedDispatch(t *testing.T) {
	reg, err := action.NewRegistry(action.Requirement{})
	require.NoError(t, err)

	_, err = reg.Execute(context.Background(), schema.Kind("made_up"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrUnknownStep)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := action.NewRegistry(action.Requirement{}, action.Requirement{})
	assert.Error(t, err)
}

func TestRequirementEchoesLatest(t *testing.T) {
	history := []schema.Message{
		schema.New("old requirement", "Driver", schema.KindRequirement),
		schema.New("chatter", "R", schema.KindRespond),
		schema.New("new requirement", "Driver", schema.KindRequirement),
	}
	out, err := action.Requirement{}.Run(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "new requirement", out.Content)
}

func TestRespondBuildsPromptFromHistory(t *testing.T) {
	var seenPrompt string
	p := &mockProvider{fn: func(prompt string) (string, error) {
		seenPrompt = prompt
		return "the answer", nil
	}}

	a := action.NewRespond(p)
	a.SetPrefix("You are a Tester named T.")

	history := []schema.Message{schema.New("what is up?", "Driver", schema.KindRequirement)}
	out, err := a.Run(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "the answer", out.Content)
	assert.Contains(t, seenPrompt, "You are a Tester named T.")
	assert.Contains(t, seenPrompt, "Driver: what is up?")
}

func TestWriteArtifactFansOutAndPersists(t *testing.T) {
	store, err := workspace.Open("file:"+t.TempDir()+"/ws.db?_pragma=busy_timeout(10000)", nil)
	require.NoError(t, err)
	defer store.Close()

	p := &mockProvider{fn: func(prompt string) (string, error) {
		return "```\nbody for prompt\n```", nil
	}}

	keys := []string{"a.go", "b.go", "c.go"}
	a := action.NewWriteArtifact(p, store, "Engineer", keys, 2, action.NonEmptyGate)

	out, err := a.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, out.Content, "a.go")
	require.Len(t, out.Instruct, 3)
	assert.Equal(t, int64(3), atomic.LoadInt64(&p.calls))

	got, err := store.Get(context.Background(), "b.go")
	require.NoError(t, err)
	assert.Equal(t, "body for prompt\n", got.Content)
}

func TestWriteArtifactParseFailureSurfaces(t *testing.T) {
	store, err := workspace.Open("file:"+t.TempDir()+"/ws.db", nil)
	require.NoError(t, err)
	defer store.Close()

	p := &mockProvider{fn: func(string) (string, error) {
		return "no code fence here", nil
	}}
	a := action.NewWriteArtifact(p, store, "Engineer", []string{"x.go"}, 1, nil)

	_, err = a.Run(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrNoMatch)
}

func TestWriteArtifactGateRejects(t *testing.T) {
	store, err := workspace.Open("file:"+t.TempDir()+"/ws.db", nil)
	require.NoError(t, err)
	defer store.Close()

	p := &mockProvider{fn: func(string) (string, error) {
		return "```\n  \n```", nil
	}}
	a := action.NewWriteArtifact(p, store, "Engineer", []string{"x.go"}, 1, action.NonEmptyGate)

	_, err = a.Run(context.Background(), nil)
	require.Error(t, err)

	var pv *cerrors.PolicyViolation
	require.True(t, errors.As(err, &pv))
	assert.Equal(t, "non_empty_artifact", pv.Rule)

	// Rejected artifacts must not be persisted.
	_, err = store.Get(context.Background(), "x.go")
	assert.ErrorIs(t, err, cerrors.ErrNotFound)
}

func TestWriteArtifactGenerationFailureSurfaces(t *testing.T) {
	store, err := workspace.Open("file:"+t.TempDir()+"/ws.db", nil)
	require.NoError(t, err)
	defer store.Close()

	p := &mockProvider{fn: func(string) (string, error) {
		return "", fmt.Errorf("backend: %w", cerrors.ErrUnavailable)
	}}
	a := action.NewWriteArtifact(p, store, "Engineer", []string{"x.go"}, 1, nil)

	_, err = a.Run(context.Background(), nil)
	assert.ErrorIs(t, err, cerrors.ErrUnavailable)
}
