// Package role implements the base role state machine: an agent with its own
// memory log, a watch set of action kinds, and an observe → think → act →
// publish cycle driven from the outside.
package role

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/p-blackswan/colony/internal/action"
	"github.com/p-blackswan/colony/internal/memory"
	"github.com/p-blackswan/colony/internal/metrics"
	"github.com/p-blackswan/colony/internal/schema"
)

// State values for Role.State().
type State int

const (
	StateIdle State = iota
	StateObserving
	StateThinking
	StateActing
)

func (s State) String() string {
	switch s {
	case StateObserving:
		return "observing"
	case StateThinking:
		return "thinking"
	case StateActing:
		return "acting"
	default:
		return "idle"
	}
}

// Setting defines a role's identity and charter.
type Setting struct {
	Name        string
	Profile     string
	Goal        string
	Constraints string
	Desc        string
}

func (s Setting) String() string { return s.Name + "(" + s.Profile + ")" }

// Prefix renders the identity line injected into action prompts.
func (s Setting) Prefix() string {
	return fmt.Sprintf("You are a %s, named %s, your goal is %s, and the constraint is %s.",
		s.Profile, s.Name, s.Goal, s.Constraints)
}

// Bus is the role's view of the environment. Publish is a no-op concern of
// the bus itself; PullUnseen returns bus messages the role has not recorded,
// split into watch-set matches and the rest, both in bus order.
type Bus interface {
	Publish(ctx context.Context, m schema.Message) error
	PullUnseen(watch map[schema.Kind]struct{}, seen func(key string) bool) (matched, rest []schema.Message)
}

// Brain is the deliberation seam. The base role supplies a default brain
// (pick task 0, run it against history); the BDI agent swaps in its own.
type Brain interface {
	// Think decides the current task. It may leave the task unchanged.
	Think(ctx context.Context) error

	// Act executes the current task, producing this cycle's message.
	Act(ctx context.Context) (schema.Message, error)
}

// Role is the base state machine. It owns its Log exclusively; no other
// role ever mutates it. Reads can come from other goroutines (the
// management API inspects history while the role runs), so every log
// access goes through logMu.
type Role struct {
	setting Setting
	actions *action.Registry
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	state State
	todo  action.Action

	logMu sync.Mutex
	log   *memory.Log

	watch map[schema.Kind]struct{}
	bus   Bus
	brain Brain
}

// Option configures a Role.
type Option func(*Role)

// WithLogger sets the role's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Role) { r.logger = l }
}

// WithMetrics attaches runtime metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Role) { r.metrics = m }
}

// WithWatch sets the action kinds the role observes.
func WithWatch(kinds ...schema.Kind) Option {
	return func(r *Role) {
		for _, k := range kinds {
			r.watch[k] = struct{}{}
		}
	}
}

// New creates a Role with the given identity and action registry. Actions
// that care about the role's identity (action.Prefixer) get the prefix set.
func New(setting Setting, actions *action.Registry, opts ...Option) *Role {
	r := &Role{
		setting: setting,
		actions: actions,
		logger:  slog.Default(),
		state:   StateIdle,
		log:     memory.NewLog(),
		watch:   make(map[schema.Kind]struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	r.brain = (*baseBrain)(r)

	for _, kind := range actions.Kinds() {
		if a, ok := actions.Get(kind); ok {
			if p, ok := a.(action.Prefixer); ok {
				p.SetPrefix(setting.Prefix())
			}
		}
	}
	return r
}

// SetBrain replaces the deliberation logic. Called by specializations
// (e.g. the BDI agent) before the role is driven.
func (r *Role) SetBrain(b Brain) { r.brain = b }

// AttachBus connects the role to an environment bus. A role without a bus
// still runs; it just cannot observe or publish.
func (r *Role) AttachBus(b Bus) { r.bus = b }

// Name returns the role's name.
func (r *Role) Name() string { return r.setting.Name }

// Profile returns the role's profile (position).
func (r *Role) Profile() string { return r.setting.Profile }

// Setting returns the role's identity.
func (r *Role) Setting() Setting { return r.setting }

// State returns the current lifecycle state.
func (r *Role) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Role) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Watch returns a copy of the role's watch set.
func (r *Role) Watch() map[schema.Kind]struct{} {
	out := make(map[schema.Kind]struct{}, len(r.watch))
	for k := range r.watch {
		out[k] = struct{}{}
	}
	return out
}

// History returns the full recorded conversation, in causal order.
func (r *Role) History() []schema.Message {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	return r.log.Get()
}

// HistoryLen returns the number of recorded messages.
func (r *Role) HistoryLen() int {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	return r.log.Len()
}

// ImportantMemory returns the messages caused by watched action kinds.
func (r *Role) ImportantMemory() []schema.Message {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	return r.log.GetByActions(r.watch)
}

// Record adds a message to the role's own log, skipping duplicates.
func (r *Role) Record(m schema.Message) bool {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	return r.log.Add(m)
}

// seen is the dedup callback handed to the bus during observation.
func (r *Role) seen(key string) bool {
	r.logMu.Lock()
	defer r.logMu.Unlock()
	return r.log.Contains(key)
}

// Todo returns the currently selected task, if any.
func (r *Role) Todo() action.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.todo
}

// SetTodo selects the current task.
func (r *Role) SetTodo(a action.Action) {
	r.mu.Lock()
	r.todo = a
	r.mu.Unlock()
}

// Actions returns the role's action registry.
func (r *Role) Actions() *action.Registry { return r.actions }

// observe pulls unseen bus messages. Watched messages are what count as
// news; everything else unseen is recorded too so the role keeps a complete
// causal history.
func (r *Role) observe() int {
	if r.bus == nil {
		return 0
	}
	matched, rest := r.bus.PullUnseen(r.watch, r.seen)
	r.logMu.Lock()
	for _, m := range matched {
		r.log.Add(m)
	}
	for _, m := range rest {
		r.log.Add(m)
	}
	r.logMu.Unlock()
	if len(matched) > 0 {
		r.logger.Debug("observed news",
			"role", r.setting.String(), "watched", len(matched), "other", len(rest))
	}
	return len(matched)
}

// react runs one think+act pass through the brain.
func (r *Role) react(ctx context.Context) (schema.Message, error) {
	r.setState(StateThinking)
	if err := r.brain.Think(ctx); err != nil {
		return schema.Message{}, fmt.Errorf("%s: think: %w", r.setting, err)
	}

	r.setState(StateActing)
	start := time.Now()
	msg, err := r.brain.Act(ctx)
	if r.metrics != nil {
		r.metrics.ObserveAct(r.setting.Profile, time.Since(start).Seconds())
	}
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordActFailure(r.setting.Profile)
		}
		return schema.Message{}, fmt.Errorf("%s: act: %w", r.setting, err)
	}
	return msg, nil
}

// Run drives one observe → think → act → publish cycle.
//
// With injected non-nil the message is recorded directly and observation is
// skipped. Otherwise the role observes the bus; zero news suspends the cycle
// and returns (nil, nil) — a cooperative "no new work" signal, not an error.
// Act failures propagate to the caller, never swallowed here.
func (r *Role) Run(ctx context.Context, injected *schema.Message) (*schema.Message, error) {
	defer r.setState(StateIdle)

	if injected != nil {
		r.Record(*injected)
	} else {
		r.setState(StateObserving)
		if r.observe() == 0 {
			r.logger.Debug("no news, waiting", "role", r.setting.String())
			r.recordCycle("idle")
			return nil, nil
		}
	}

	msg, err := r.react(ctx)
	if err != nil {
		r.recordCycle("error")
		return nil, err
	}

	r.Record(msg)
	if r.bus != nil {
		if err := r.bus.Publish(ctx, msg); err != nil {
			return nil, fmt.Errorf("%s: publish: %w", r.setting, err)
		}
	}
	r.recordCycle("acted")
	return &msg, nil
}

func (r *Role) recordCycle(result string) {
	if r.metrics != nil {
		r.metrics.RecordCycle(r.setting.Profile, result)
	}
}

// BaseThink is the default task-selection policy: keep the current task, or
// select the first registered action when none is set.
func (r *Role) BaseThink(_ context.Context) error {
	if r.Todo() != nil {
		return nil
	}
	kinds := r.actions.Kinds()
	if len(kinds) == 0 {
		return fmt.Errorf("%s: no actions configured", r.setting)
	}
	a, _ := r.actions.Get(kinds[0])
	r.SetTodo(a)
	return nil
}

// BaseAct executes the current task against the full recorded history and
// wraps its output in a message attributed to this role.
func (r *Role) BaseAct(ctx context.Context) (schema.Message, error) {
	todo := r.Todo()
	if todo == nil {
		return schema.Message{}, fmt.Errorf("%s: no task selected", r.setting)
	}
	out, err := todo.Run(ctx, r.History())
	if err != nil {
		return schema.Message{}, err
	}
	msg := schema.New(out.Content, r.setting.Profile, todo.Name())
	msg.Instruct = out.Instruct
	return msg, nil
}

// baseBrain adapts the Role's default think/act into the Brain seam.
type baseBrain Role

func (b *baseBrain) Think(ctx context.Context) error { return (*Role)(b).BaseThink(ctx) }

func (b *baseBrain) Act(ctx context.Context) (schema.Message, error) {
	return (*Role)(b).BaseAct(ctx)
}
