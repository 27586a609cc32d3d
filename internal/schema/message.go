// Package schema defines the Message type — the unit of communication
// between roles. Every observation, instruction, and action result flows
// through the environment as a Message.
package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the action capability that caused a message to be
// produced. Roles filter their observations by Kind.
type Kind string

// Well-known kinds. Domain actions register their own.
const (
	KindRequirement   Kind = "requirement"
	KindRespond       Kind = "respond"
	KindWriteArtifact Kind = "write_artifact"
	KindAssess        Kind = "assess"
	KindMotivate      Kind = "motivate"
)

// Message is an immutable unit of communication. Create one with New (or a
// struct literal in tests) and never mutate it afterwards — the environment
// and every role's log share the same value.
type Message struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Instruct  map[string]string `json:"instruct,omitempty"` // structured payload parsed from Content
	Role      string            `json:"role"`               // producing role's profile
	CauseBy   Kind              `json:"cause_by"`
	SendTo    string            `json:"send_to,omitempty"` // explicit recipient, empty = broadcast
	CreatedAt time.Time         `json:"created_at"`
}

// New constructs a Message with a generated ID and current timestamp.
func New(content, role string, causeBy Kind) Message {
	return Message{
		ID:        "msg_" + uuid.NewString(),
		Content:   content,
		Role:      role,
		CauseBy:   causeBy,
		CreatedAt: time.Now().UTC(),
	}
}

// Key returns the identity used for deduplication. Messages built through
// New always have an ID; hand-rolled values without one fall back to a
// composite of producer, timestamp and content.
func (m Message) Key() string {
	if m.ID != "" {
		return m.ID
	}
	return fmt.Sprintf("%s|%d|%s", m.Role, m.CreatedAt.UnixNano(), m.Content)
}

// String renders the message the way it appears in conversation history.
func (m Message) String() string {
	return m.Role + ": " + strings.TrimSpace(m.Content)
}
