package role_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/colony/internal/action"
	"github.com/p-blackswan/colony/internal/role"
	"github.com/p-blackswan/colony/internal/schema"
)

// echoAction responds with a fixed answer.
type echoAction struct {
	kind schema.Kind
	text string
	err  error
}

func (e echoAction) Name() schema.Kind { return e.kind }

func (e echoAction) Run(_ context.Context, _ []schema.Message) (action.Output, error) {
	if e.err != nil {
		return action.Output{}, e.err
	}
	return action.Output{Content: e.text}, nil
}

// stubBus records publishes and serves a canned backlog.
type stubBus struct {
	backlog   []schema.Message
	published []schema.Message
}

func (b *stubBus) Publish(_ context.Context, m schema.Message) error {
	b.published = append(b.published, m)
	return nil
}

func (b *stubBus) PullUnseen(watch map[schema.Kind]struct{}, seen func(string) bool) (matched, rest []schema.Message) {
	for _, m := range b.backlog {
		if seen(m.Key()) {
			continue
		}
		if _, ok := watch[m.CauseBy]; ok {
			matched = append(matched, m)
		} else {
			rest = append(rest, m)
		}
	}
	return matched, rest
}

func testSetting() role.Setting {
	return role.Setting{Name: "T", Profile: "Tester", Goal: "test things", Constraints: "none"}
}

func newRole(t *testing.T, a action.Action, opts ...role.Option) *role.Role {
	t.Helper()
	reg, err := action.NewRegistry(a)
	require.NoError(t, err)
	return role.New(testSetting(), reg, opts...)
}

func TestRunWithInjectedInput(t *testing.T) {
	r := newRole(t, echoAction{kind: schema.KindRespond, text: "done"})
	in := schema.New("do the thing", "Driver", schema.KindRequirement)

	out, err := r.Run(context.Background(), &in)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "done", out.Content)
	assert.Equal(t, "Tester", out.Role)
	assert.Equal(t, schema.KindRespond, out.CauseBy)

	// Input and response are both recorded.
	assert.Equal(t, 2, r.HistoryLen())
	assert.Equal(t, role.StateIdle, r.State())
}

func TestRunNoNewsSuspends(t *testing.T) {
	r := newRole(t, echoAction{kind: schema.KindRespond, text: "x"},
		role.WithWatch(schema.KindRequirement))
	r.AttachBus(&stubBus{})

	out, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, out, "no news is a suspend signal, not a result")
	assert.Equal(t, role.StateIdle, r.State())
}

func TestRunObservesWatchedOnly(t *testing.T) {
	bus := &stubBus{backlog: []schema.Message{
		schema.New("A", "Other", schema.Kind("chat")),
		schema.New("B", "Driver", schema.KindRequirement),
		schema.New("C", "Other", schema.Kind("chat")),
	}}
	r := newRole(t, echoAction{kind: schema.KindRespond, text: "ok"},
		role.WithWatch(schema.KindRequirement))
	r.AttachBus(bus)

	out, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, out)

	important := r.ImportantMemory()
	require.Len(t, important, 1)
	assert.Equal(t, "B", important[0].Content)

	// Full-history policy: unwatched messages are recorded too.
	assert.Equal(t, 4, r.HistoryLen(), "A, B, C plus own response")

	// Response was published back.
	require.Len(t, bus.published, 1)
	assert.Equal(t, "ok", bus.published[0].Content)
}

func TestRunSecondCycleSeesNothingNew(t *testing.T) {
	bus := &stubBus{backlog: []schema.Message{
		schema.New("B", "Driver", schema.KindRequirement),
	}}
	r := newRole(t, echoAction{kind: schema.KindRespond, text: "ok"},
		role.WithWatch(schema.KindRequirement))
	r.AttachBus(bus)

	out, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, out)

	out, err = r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, out, "already-recorded messages are not news")
}

func TestRunActFailurePropagates(t *testing.T) {
	boom := errors.New("generation failed")
	r := newRole(t, echoAction{kind: schema.KindRespond, err: boom})
	in := schema.New("go", "Driver", schema.KindRequirement)

	_, err := r.Run(context.Background(), &in)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, role.StateIdle, r.State())
}

func TestRunWithoutBusDoesNotPublish(t *testing.T) {
	r := newRole(t, echoAction{kind: schema.KindRespond, text: "ok"})
	in := schema.New("go", "Driver", schema.KindRequirement)

	out, err := r.Run(context.Background(), &in)
	require.NoError(t, err)
	assert.NotNil(t, out)
}

func TestBaseThinkSelectsFirstTask(t *testing.T) {
	r := newRole(t, echoAction{kind: schema.KindRespond, text: "ok"})
	require.Nil(t, r.Todo())
	require.NoError(t, r.BaseThink(context.Background()))
	require.NotNil(t, r.Todo())
	assert.Equal(t, schema.KindRespond, r.Todo().Name())
}

func TestSettingPrefix(t *testing.T) {
	s := testSetting()
	p := s.Prefix()
	assert.Contains(t, p, "Tester")
	assert.Contains(t, p, "named T")
	assert.Contains(t, p, "test things")
}
