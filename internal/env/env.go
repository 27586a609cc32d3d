// Package env implements the environment bus: a shared, pull-based
// broadcast medium. Roles publish messages to it; roles pull unseen
// messages from it. The bus never pushes — a role's view of history is
// exactly "all bus messages matching its watch set, in bus order, minus
// ones already recorded".
package env

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/p-blackswan/colony/internal/fanout"
	"github.com/p-blackswan/colony/internal/memory"
	"github.com/p-blackswan/colony/internal/metrics"
	"github.com/p-blackswan/colony/internal/role"
	"github.com/p-blackswan/colony/internal/schema"
)

// Environment carries a group of roles and the shared message log. Publish
// is atomic relative to pull: one writer, many readers, no partial
// interleaving.
type Environment struct {
	mu    sync.RWMutex
	log   *memory.Log
	roles map[string]*role.Role
	order []string

	logger      *slog.Logger
	metrics     *metrics.Metrics
	archive     *memory.Archive
	maxParallel int
}

// Option configures an Environment.
type Option func(*Environment)

// WithLogger sets the bus logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Environment) { e.logger = l }
}

// WithMetrics attaches runtime metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Environment) { e.metrics = m }
}

// WithArchive attaches a durable archive. Archiving is write-behind and
// best-effort: a failed archive write is logged, never propagated.
func WithArchive(a *memory.Archive) Option {
	return func(e *Environment) { e.archive = a }
}

// WithMaxParallel bounds how many roles run concurrently per round.
func WithMaxParallel(k int) Option {
	return func(e *Environment) {
		if k > 0 {
			e.maxParallel = k
		}
	}
}

// New creates an empty Environment.
func New(opts ...Option) *Environment {
	e := &Environment{
		log:         memory.NewLog(),
		roles:       make(map[string]*role.Role),
		logger:      slog.Default(),
		maxParallel: 4,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// AddRole attaches a role to the environment. The role can then publish to
// the bus and observe it. Profiles must be unique.
func (e *Environment) AddRole(r *role.Role) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.roles[r.Profile()]; exists {
		return fmt.Errorf("env: role %q already attached", r.Profile())
	}
	r.AttachBus(e)
	e.roles[r.Profile()] = r
	e.order = append(e.order, r.Profile())
	if e.metrics != nil {
		e.metrics.RolesRegistered.Set(float64(len(e.roles)))
	}
	e.logger.Info("role attached", "role", r.Setting().String())
	return nil
}

// AddRoles attaches a batch of roles.
func (e *Environment) AddRoles(roles ...*role.Role) error {
	for _, r := range roles {
		if err := e.AddRole(r); err != nil {
			return err
		}
	}
	return nil
}

// Role returns the attached role with the given profile.
func (e *Environment) Role(profile string) (*role.Role, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.roles[profile]
	return r, ok
}

// Roles returns the attached roles in attachment order.
func (e *Environment) Roles() []*role.Role {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*role.Role, 0, len(e.order))
	for _, profile := range e.order {
		out = append(out, e.roles[profile])
	}
	return out
}

// Publish appends the message to the bus log. Broadcast is passive — roles
// pull on their next observation.
func (e *Environment) Publish(ctx context.Context, m schema.Message) error {
	e.mu.Lock()
	added := e.log.Add(m)
	e.mu.Unlock()

	if !added {
		return nil
	}
	if e.metrics != nil {
		e.metrics.MessagesPublished.Inc()
	}
	e.logger.Debug("message published", "role", m.Role, "cause_by", string(m.CauseBy))

	if e.archive != nil {
		if err := e.archive.Save(ctx, m); err != nil {
			e.logger.Warn("archive write failed", "id", m.Key(), "err", err)
		}
	}
	return nil
}

// PullUnseen returns bus messages the caller has not recorded, in bus
// order, split into watch-set matches and the rest.
func (e *Environment) PullUnseen(watch map[schema.Kind]struct{}, seen func(key string) bool) (matched, rest []schema.Message) {
	e.mu.RLock()
	history := e.log.Get()
	e.mu.RUnlock()

	for _, m := range history {
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

// History returns a snapshot of everything published so far.
func (e *Environment) History() []schema.Message {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.log.Get()
}

// Len returns the number of published messages.
func (e *Environment) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.log.Len()
}

// RunOnce drives every attached role through one cycle, at most maxParallel
// concurrently. It returns how many roles produced a message. A failing
// role fails the round; role errors are never swallowed here.
func (e *Environment) RunOnce(ctx context.Context) (int, error) {
	roles := e.Roles()
	if len(roles) == 0 {
		return 0, nil
	}

	jobs := make([]fanout.Job[*schema.Message], len(roles))
	for i, r := range roles {
		r := r
		jobs[i] = func(ctx context.Context) (*schema.Message, error) {
			return r.Run(ctx, nil)
		}
	}

	results, err := fanout.GatherOrdered(ctx, e.maxParallel, jobs)
	if err != nil {
		return 0, err
	}

	produced := 0
	for _, m := range results {
		if m != nil {
			produced++
		}
	}
	return produced, nil
}

// Run drives up to rounds full passes over the roles, stopping early when a
// pass produces no messages (the society has gone idle).
func (e *Environment) Run(ctx context.Context, rounds int) error {
	for i := 0; i < rounds; i++ {
		produced, err := e.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("env: round %d: %w", i, err)
		}
		e.logger.Info("round complete", "round", i, "messages", produced)
		if produced == 0 {
			e.logger.Info("society idle, stopping", "rounds_run", i+1)
			return nil
		}
	}
	return nil
}
