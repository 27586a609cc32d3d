// Package memory provides each role's message log and the durable archive.
// The Log is the in-process working memory: an append-only, de-duplicating
// sequence of messages indexed by the action kind that produced them.
package memory

import (
	"github.com/p-blackswan/colony/internal/schema"
)

// Log is an ordered, de-duplicating store of messages. Insertion order is
// the causal/conversational order. A Log does no locking of its own: its
// owner (a role, or the environment bus) guards every access with its own
// lock.
type Log struct {
	msgs  []schema.Message
	seen  map[string]struct{}
	index map[schema.Kind][]schema.Message
}

// NewLog creates an empty Log.
func NewLog() *Log {
	return &Log{
		seen:  make(map[string]struct{}),
		index: make(map[schema.Kind][]schema.Message),
	}
}

// Add records a message. Recording a message whose Key is already present
// is a no-op and returns false.
func (l *Log) Add(m schema.Message) bool {
	key := m.Key()
	if _, dup := l.seen[key]; dup {
		return false
	}
	l.seen[key] = struct{}{}
	l.msgs = append(l.msgs, m)
	l.index[m.CauseBy] = append(l.index[m.CauseBy], m)
	return true
}

// Contains reports whether a message with the given dedup key was recorded.
func (l *Log) Contains(key string) bool {
	_, ok := l.seen[key]
	return ok
}

// Len returns the number of recorded messages.
func (l *Log) Len() int { return len(l.msgs) }

// Get returns the full ordered history. The returned slice is a copy; the
// messages themselves are shared and must not be mutated.
func (l *Log) Get() []schema.Message {
	out := make([]schema.Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// GetByAction returns the ordered messages caused by kind. Unknown kinds
// yield an empty slice, never an error.
func (l *Log) GetByAction(kind schema.Kind) []schema.Message {
	src := l.index[kind]
	out := make([]schema.Message, len(src))
	copy(out, src)
	return out
}

// GetByActions returns the ordered subsequence of messages whose causing
// kind is in kinds. This is how a role computes its "important memory".
func (l *Log) GetByActions(kinds map[schema.Kind]struct{}) []schema.Message {
	var out []schema.Message
	for _, m := range l.msgs {
		if _, ok := kinds[m.CauseBy]; ok {
			out = append(out, m)
		}
	}
	return out
}

// LatestByAction returns the most recently recorded message caused by kind.
func (l *Log) LatestByAction(kind schema.Kind) (schema.Message, bool) {
	src := l.index[kind]
	if len(src) == 0 {
		return schema.Message{}, false
	}
	return src[len(src)-1], true
}
