package action

import (
	"context"
	"fmt"
	"strings"

	cerrors "github.com/p-blackswan/colony/internal/errors"
	"github.com/p-blackswan/colony/internal/fanout"
	"github.com/p-blackswan/colony/internal/llm"
	"github.com/p-blackswan/colony/internal/parse"
	"github.com/p-blackswan/colony/internal/schema"
	"github.com/p-blackswan/colony/internal/workspace"
)

// Requirement is the marker action for externally injected requirements.
// It never runs on its own: messages it "causes" come from the driver, and
// its Run simply echoes the latest recorded requirement so a role whose
// task list starts with it has a sane default.
type Requirement struct{}

func (Requirement) Name() schema.Kind { return schema.KindRequirement }

func (Requirement) Run(_ context.Context, history []schema.Message) (Output, error) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].CauseBy == schema.KindRequirement {
			return Output{Content: history[i].Content}, nil
		}
	}
	return Output{}, fmt.Errorf("requirement: no requirement recorded: %w", cerrors.ErrNotFound)
}

const respondTemplate = `%s

Here is the conversation so far:
===
%s
===

Write your response to the latest request. Be concrete and complete.`

// Respond is the generic generation-backed action: prompt from history,
// one completion, content out.
type Respond struct {
	provider llm.Provider
	prefix   string
}

// NewRespond creates a Respond backed by the given provider.
func NewRespond(provider llm.Provider) *Respond {
	return &Respond{provider: provider}
}

func (a *Respond) Name() schema.Kind       { return schema.KindRespond }
func (a *Respond) SetPrefix(prefix string) { a.prefix = prefix }

func (a *Respond) Run(ctx context.Context, history []schema.Message) (Output, error) {
	prompt := fmt.Sprintf(respondTemplate, a.prefix, FormatHistory(history))
	text, err := a.provider.Generate(ctx, prompt)
	if err != nil {
		return Output{}, fmt.Errorf("respond: %w", err)
	}
	return Output{Content: text}, nil
}

const artifactTemplate = `%s

Context:
===
%s
===

Produce the artifact %q. Return exactly one fenced code block containing the
full artifact body and nothing else.`

// Gate validates a generated artifact before it is persisted. Returning an
// error (typically *errors.PolicyViolation) rejects the artifact.
type Gate func(key, content string) error

// WriteArtifact generates one artifact per configured key, extracts the
// fenced body, runs it through the gate, and persists it to the workspace.
// Keys are processed through the bounded ordered executor so several
// long-running generations can overlap without reordering the results.
type WriteArtifact struct {
	provider    llm.Provider
	store       *workspace.Store
	keys        []string
	gate        Gate
	maxParallel int
	prefix      string
	producer    string
}

// NewWriteArtifact creates the action. maxParallel bounds concurrent
// generations (minimum 1). gate may be nil.
func NewWriteArtifact(provider llm.Provider, store *workspace.Store, producer string, keys []string, maxParallel int, gate Gate) *WriteArtifact {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &WriteArtifact{
		provider:    provider,
		store:       store,
		keys:        keys,
		gate:        gate,
		maxParallel: maxParallel,
		producer:    producer,
	}
}

func (a *WriteArtifact) Name() schema.Kind       { return schema.KindWriteArtifact }
func (a *WriteArtifact) SetPrefix(prefix string) { a.prefix = prefix }

func (a *WriteArtifact) Run(ctx context.Context, history []schema.Message) (Output, error) {
	contextText := FormatHistory(history)

	jobs := make([]fanout.Job[string], len(a.keys))
	for i, key := range a.keys {
		key := key
		jobs[i] = func(ctx context.Context) (string, error) {
			prompt := fmt.Sprintf(artifactTemplate, a.prefix, contextText, key)
			text, err := a.provider.Generate(ctx, prompt)
			if err != nil {
				return "", fmt.Errorf("artifact %q: %w", key, err)
			}
			body, err := parse.ExtractCode(text, "")
			if err != nil {
				return "", fmt.Errorf("artifact %q: %w", key, err)
			}
			if a.gate != nil {
				if err := a.gate(key, body); err != nil {
					return "", err
				}
			}
			if err := a.store.Put(ctx, key, body, a.producer); err != nil {
				return "", err
			}
			return body, nil
		}
	}

	bodies, err := fanout.GatherOrdered(ctx, a.maxParallel, jobs)
	if err != nil {
		return Output{}, err
	}

	instruct := make(map[string]string, len(a.keys))
	var summary []string
	for i, key := range a.keys {
		instruct[key] = fmt.Sprintf("%d bytes", len(bodies[i]))
		summary = append(summary, key)
	}
	return Output{
		Content:  "Wrote artifacts: " + strings.Join(summary, ", "),
		Instruct: instruct,
	}, nil
}

// NonEmptyGate rejects empty artifact bodies with a policy violation.
func NonEmptyGate(key, content string) error {
	if strings.TrimSpace(content) == "" {
		return &cerrors.PolicyViolation{Rule: "non_empty_artifact", Reason: "artifact " + key + " is empty"}
	}
	return nil
}
