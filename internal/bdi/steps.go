package bdi

import (
	"context"
	"fmt"
	"strings"

	"github.com/p-blackswan/colony/internal/action"
	cerrors "github.com/p-blackswan/colony/internal/errors"
	"github.com/p-blackswan/colony/internal/schema"
)

// StepTable is the closed dispatch table from plan step to the action that
// executes it. Steps resolve by exact name first, then by registered
// prefix, then to the fallback. A step that resolves nowhere is a
// configuration error (errors.ErrUnknownStep), fatal to that act cycle.
type StepTable struct {
	exact    map[Step]action.Action
	prefixes []prefixRule
	fallback action.Action
}

type prefixRule struct {
	prefix string
	act    action.Action
}

// NewStepTable creates an empty table.
func NewStepTable() *StepTable {
	return &StepTable{exact: make(map[Step]action.Action)}
}

// Handle routes an exact step name to an action.
func (t *StepTable) Handle(step Step, a action.Action) *StepTable {
	t.exact[step] = a
	return t
}

// HandlePrefix routes every step starting with prefix to an action.
// Prefixes match in registration order.
func (t *StepTable) HandlePrefix(prefix string, a action.Action) *StepTable {
	t.prefixes = append(t.prefixes, prefixRule{prefix: prefix, act: a})
	return t
}

// Fallback routes any otherwise-unresolved step to an action.
func (t *StepTable) Fallback(a action.Action) *StepTable {
	t.fallback = a
	return t
}

// Resolve returns the action for step.
func (t *StepTable) Resolve(step Step) (action.Action, bool) {
	if a, ok := t.exact[step]; ok {
		return a, true
	}
	for _, rule := range t.prefixes {
		if strings.HasPrefix(string(step), rule.prefix) {
			return rule.act, true
		}
	}
	if t.fallback != nil {
		return t.fallback, true
	}
	return nil, false
}

// Execute resolves and runs step against history.
func (t *StepTable) Execute(ctx context.Context, step Step, history []schema.Message) (action.Output, schema.Kind, error) {
	a, ok := t.Resolve(step)
	if !ok {
		return action.Output{}, "", fmt.Errorf("step %q: %w", step, cerrors.ErrUnknownStep)
	}
	out, err := a.Run(ctx, history)
	return out, a.Name(), err
}
