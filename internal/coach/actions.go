package coach

import (
	"context"
	"fmt"

	"github.com/p-blackswan/colony/internal/action"
	"github.com/p-blackswan/colony/internal/llm"
	"github.com/p-blackswan/colony/internal/schema"
)

const assessTemplate = `%s

Conversation so far:
===
%s
===

Assess the person's current state in one short paragraph: energy level,
ability to focus, and mood. Be specific about what in the conversation
supports the assessment.`

// Assess produces a short state assessment from the watched history.
type Assess struct {
	provider llm.Provider
	prefix   string
}

// NewAssess creates the assessment action.
func NewAssess(provider llm.Provider) *Assess {
	return &Assess{provider: provider}
}

func (a *Assess) Name() schema.Kind       { return schema.KindAssess }
func (a *Assess) SetPrefix(prefix string) { a.prefix = prefix }

func (a *Assess) Run(ctx context.Context, history []schema.Message) (action.Output, error) {
	prompt := fmt.Sprintf(assessTemplate, a.prefix, action.FormatHistory(history))
	text, err := a.provider.Generate(ctx, prompt)
	if err != nil {
		return action.Output{}, fmt.Errorf("assess: %w", err)
	}
	return action.Output{Content: text}, nil
}

const motivateTemplate = `%s

Conversation so far:
===
%s
===

Write the next motivational intervention message. Keep it short, warm, and
actionable — one concrete suggestion the person can act on right now.`

// Motivate produces one intervention message.
type Motivate struct {
	provider llm.Provider
	prefix   string
}

// NewMotivate creates the intervention action.
func NewMotivate(provider llm.Provider) *Motivate {
	return &Motivate{provider: provider}
}

func (m *Motivate) Name() schema.Kind       { return schema.KindMotivate }
func (m *Motivate) SetPrefix(prefix string) { m.prefix = prefix }

func (m *Motivate) Run(ctx context.Context, history []schema.Message) (action.Output, error) {
	prompt := fmt.Sprintf(motivateTemplate, m.prefix, action.FormatHistory(history))
	text, err := m.provider.Generate(ctx, prompt)
	if err != nil {
		return action.Output{}, fmt.Errorf("motivate: %w", err)
	}
	return action.Output{Content: text}, nil
}
