package bdi

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-blackswan/colony/internal/action"
	"github.com/p-blackswan/colony/internal/role"
	"github.com/p-blackswan/colony/internal/schema"
)

const (
	defaultMaxBeliefs = 256
	defaultMaxDesires = 256
)

// Agent is a role whose deliberation runs the BDI cycle. Its belief, desire
// and intention collections are exclusively owned by the instance — the
// role cycle is single-goroutine, so they need no locking.
type Agent struct {
	*role.Role

	planner   Planner
	desireGen DesireGen
	steps     *StepTable
	logger    *slog.Logger

	maxBeliefs int
	maxDesires int

	beliefs    []Belief
	desires    []Desire
	intentions []*Intention
	current    *Intention

	// believed and desired are dedup key-sets covering everything ever
	// processed, not just the capped rings: Think replays the full
	// append-only log each cycle, so dropping a key when its ring entry
	// evicts would re-create the same belief or desire on the next pass.
	// They grow with the log, and no faster.
	believed map[string]struct{} // message keys already turned into beliefs
	desired  map[string]struct{} // belief names that already produced a desire

	nextSeq int
}

// Option configures an Agent.
type Option func(*Agent)

// WithPlanner overrides plan generation (default: BasePlan).
func WithPlanner(p Planner) Option {
	return func(a *Agent) { a.planner = p }
}

// WithDesireGen overrides desire generation (default: DefaultDesireGen).
func WithDesireGen(g DesireGen) Option {
	return func(a *Agent) { a.desireGen = g }
}

// WithBounds caps belief and desire growth. When a collection is full the
// oldest entry is evicted.
func WithBounds(maxBeliefs, maxDesires int) Option {
	return func(a *Agent) {
		if maxBeliefs > 0 {
			a.maxBeliefs = maxBeliefs
		}
		if maxDesires > 0 {
			a.maxDesires = maxDesires
		}
	}
}

// WithAgentLogger sets the agent's logger.
func WithAgentLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// NewAgent builds a BDI agent around a base role. steps routes plan steps
// to the actions that execute them.
func NewAgent(setting role.Setting, actions *action.Registry, steps *StepTable, roleOpts []role.Option, opts ...Option) *Agent {
	a := &Agent{
		Role:       role.New(setting, actions, roleOpts...),
		planner:    BasePlan,
		desireGen:  DefaultDesireGen,
		steps:      steps,
		logger:     slog.Default(),
		maxBeliefs: defaultMaxBeliefs,
		maxDesires: defaultMaxDesires,
		believed:   make(map[string]struct{}),
		desired:    make(map[string]struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	a.Role.SetBrain(a)
	return a
}

// DefaultDesireGen proposes answering any belief whose content contains an
// unanswered question.
func DefaultDesireGen(b Belief) (Desire, bool) {
	if !strings.Contains(b.Data.Content, "?") {
		return Desire{}, false
	}
	return Desire{
		Priority:        0.8,
		Conditions:      []string{"has_relevant_knowledge_" + b.Name},
		SuccessCriteria: []string{"answer_provided"},
	}, true
}

// Beliefs returns the current belief set, oldest first.
func (a *Agent) Beliefs() []Belief {
	out := make([]Belief, len(a.beliefs))
	copy(out, a.beliefs)
	return out
}

// Desires returns the current desire set, oldest first.
func (a *Agent) Desires() []Desire {
	out := make([]Desire, len(a.desires))
	copy(out, a.desires)
	return out
}

// Intentions returns every intention created so far.
func (a *Agent) Intentions() []*Intention { return a.intentions }

// Current returns the current intention, or nil.
func (a *Agent) Current() *Intention { return a.current }

// AddDesire records a desire directly, assigning its tie-break sequence.
// Used by specializations that generate desires outside desireGen.
func (a *Agent) AddDesire(d Desire) {
	d.seq = a.nextSeq
	a.nextSeq++
	if len(a.desires) >= a.maxDesires {
		a.desires = a.desires[1:]
	}
	a.desires = append(a.desires, d)
}

// UpdateBeliefs synthesizes a belief from an observed message. Messages
// without content, and messages already believed, are skipped. Beliefs are
// never merged; when the cap is reached the oldest is evicted.
func (a *Agent) UpdateBeliefs(m schema.Message) {
	if m.Content == "" {
		return
	}
	if _, dup := a.believed[m.Key()]; dup {
		return
	}
	a.believed[m.Key()] = struct{}{}

	b := Belief{
		Name:       fmt.Sprintf("belief_%d", len(a.believed)-1),
		Confidence: 1.0,
		Timestamp:  m.CreatedAt,
		Data:       BeliefData{Source: m.Role, Content: m.Content},
	}
	if len(a.beliefs) >= a.maxBeliefs {
		a.beliefs = a.beliefs[1:]
	}
	a.beliefs = append(a.beliefs, b)
}

// GenerateDesires scans current beliefs and records a desire for each one
// that triggers the generation policy. Each belief produces at most one
// desire across cycles; the desire set still only ever grows (bounded by
// the eviction cap).
func (a *Agent) GenerateDesires() {
	for _, b := range a.beliefs {
		if _, done := a.desired[b.Name]; done {
			continue
		}
		d, ok := a.desireGen(b)
		if !ok {
			continue
		}
		a.desired[b.Name] = struct{}{}
		if d.Name == "" {
			d.Name = fmt.Sprintf("answer_%d", a.nextSeq)
		}
		a.AddDesire(d)
	}
}

// SelectIntention commits to the available desire with the strictly
// greatest priority (first-created wins ties) and synthesizes its plan.
// Desires already served by an active intention are unavailable. With no
// available desire this is a no-op.
func (a *Agent) SelectIntention() {
	if len(a.desires) == 0 {
		return
	}

	activeDesires := make(map[string]struct{})
	for _, it := range a.intentions {
		if it.Status == StatusActive {
			activeDesires[it.Desire] = struct{}{}
		}
	}

	var chosen *Desire
	for i := range a.desires {
		d := &a.desires[i]
		if _, busy := activeDesires[d.Name]; busy {
			continue
		}
		// Strict greater-than: on ties the earlier desire stays chosen.
		if chosen == nil || d.Priority > chosen.Priority {
			chosen = d
		}
	}
	if chosen == nil {
		return
	}

	plan := a.planner(*chosen)
	it := &Intention{
		Desire: chosen.Name,
		Plan:   append([]Step(nil), plan...),
		Status: StatusPending,
		total:  len(plan),
	}
	a.intentions = append(a.intentions, it)
	a.current = it
	a.logger.Debug("intention selected",
		"role", a.Setting().String(), "desire", chosen.Name, "steps", len(plan))
}

// Think runs the deliberation cycle: belief update over recalled history,
// desire generation, intention selection when none is current, then the
// base task-selection policy.
func (a *Agent) Think(ctx context.Context) error {
	for _, m := range a.History() {
		a.UpdateBeliefs(m)
	}
	a.GenerateDesires()
	if a.current == nil {
		a.SelectIntention()
	}
	return a.BaseThink(ctx)
}

// Act consumes the next step of the current intention. With no current
// intention (or an exhausted plan) it defers to the base act. Consuming the
// last step marks the intention completed and clears it — completion is
// automatic on plan exhaustion.
func (a *Agent) Act(ctx context.Context) (schema.Message, error) {
	it := a.current
	if it == nil || len(it.Plan) == 0 {
		return a.BaseAct(ctx)
	}

	step := it.Plan[0]
	it.Plan = it.Plan[1:]
	if it.Status == StatusPending {
		it.Status = StatusActive
	}

	out, kind, err := a.steps.Execute(ctx, step, a.ImportantMemory())
	if err != nil {
		it.Status = StatusFailed
		a.current = nil
		return schema.Message{}, fmt.Errorf("intention %q step %q: %w", it.Desire, step, err)
	}

	it.Progress = 1.0 - float64(len(it.Plan))/float64(it.total)
	if len(it.Plan) == 0 {
		it.Status = StatusCompleted
		a.current = nil
		a.logger.Debug("intention completed", "role", a.Setting().String(), "desire", it.Desire)
	}

	msg := schema.New(out.Content, a.Profile(), kind)
	msg.Instruct = out.Instruct
	return msg, nil
}
