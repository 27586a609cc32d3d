// Package action is the boundary to domain action implementations. An
// Action turns recorded history into a result the role core can convert
// into a Message. The core requires nothing else of it.
package action

import (
	"context"
	"fmt"
	"strings"

	cerrors "github.com/p-blackswan/colony/internal/errors"
	"github.com/p-blackswan/colony/internal/schema"
)

// Output carries an action's human-readable content plus an optional
// structured payload.
type Output struct {
	Content  string
	Instruct map[string]string
}

// Action is a capability a role can execute during its act phase.
type Action interface {
	// Name returns the action kind. Messages produced by this action carry
	// it as their CauseBy, which is what other roles' watch sets match on.
	Name() schema.Kind

	// Run executes the action against the role's recorded history.
	Run(ctx context.Context, history []schema.Message) (Output, error)
}

// Prefixer is implemented by actions that want the owning role's identity
// baked into their prompts.
type Prefixer interface {
	SetPrefix(prefix string)
}

// Registry is a closed dispatch table from kind to action. Kinds are
// registered at construction time; executing an unregistered kind is a
// configuration error, not a lookup miss to be tolerated.
type Registry struct {
	actions map[schema.Kind]Action
	order   []schema.Kind
}

// NewRegistry builds a registry from the given actions. Duplicate kinds are
// rejected.
func NewRegistry(actions ...Action) (*Registry, error) {
	r := &Registry{actions: make(map[schema.Kind]Action, len(actions))}
	for _, a := range actions {
		if _, dup := r.actions[a.Name()]; dup {
			return nil, fmt.Errorf("action: kind %q registered twice", a.Name())
		}
		r.actions[a.Name()] = a
		r.order = append(r.order, a.Name())
	}
	return r, nil
}

// Get returns the action registered for kind.
func (r *Registry) Get(kind schema.Kind) (Action, bool) {
	a, ok := r.actions[kind]
	return a, ok
}

// Kinds returns the registered kinds in registration order.
func (r *Registry) Kinds() []schema.Kind {
	out := make([]schema.Kind, len(r.order))
	copy(out, r.order)
	return out
}

// Execute runs the action registered for kind.
func (r *Registry) Execute(ctx context.Context, kind schema.Kind, history []schema.Message) (Output, error) {
	a, ok := r.actions[kind]
	if !ok {
		return Output{}, fmt.Errorf("action kind %q: %w", kind, cerrors.ErrUnknownStep)
	}
	return a.Run(ctx, history)
}

// FormatHistory renders messages the way prompts expect them: one
// "Role: content" line per message.
func FormatHistory(history []schema.Message) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, m.String())
	}
	return strings.Join(lines, "\n")
}
