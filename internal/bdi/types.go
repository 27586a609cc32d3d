// Package bdi implements the belief–desire–intention deliberation cycle as
// a specialization of the base role: observations become beliefs, beliefs
// trigger desires, the highest-priority unserved desire becomes the current
// intention, and the act phase consumes the intention's plan one step at a
// time.
package bdi

import (
	"time"
)

// Belief is a fact derived from an observed message. Confidence is always
// written as 1.0 on creation; the field is an extensibility hook.
type Belief struct {
	Name       string
	Confidence float64
	Timestamp  time.Time
	Data       BeliefData
}

// BeliefData references where the belief came from.
type BeliefData struct {
	Source  string // producing role of the observed message
	Content string
}

// Desire is a goal candidate generated from belief analysis.
type Desire struct {
	Name            string
	Priority        float64
	Conditions      []string
	SuccessCriteria []string

	// Intervention classifies the desire for specialized planners
	// (empty for the base policy).
	Intervention string

	// seq is the creation order, used as the deterministic tie-break:
	// on equal priority the first-created desire wins.
	seq int
}

// Step is one identifier in an intention's plan.
type Step string

// Status tracks an intention's lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
)

// Intention is a committed plan for a desire. Progress is
// 1 − remaining/total against the originally generated plan.
type Intention struct {
	Desire   string
	Plan     []Step
	Status   Status
	Progress float64

	total int
}

// Remaining returns how many plan steps are left.
func (i *Intention) Remaining() int { return len(i.Plan) }

// Total returns the length of the originally generated plan.
func (i *Intention) Total() int { return i.total }

// Planner turns a desire into an ordered plan. It must be pure: same
// desire, same plan.
type Planner func(d Desire) []Step

// DesireGen inspects a belief and optionally proposes a desire. The
// returned desire's Name is used as-is; Priority, Conditions and
// SuccessCriteria must be fully populated.
type DesireGen func(b Belief) (Desire, bool)

// BasePlan derives one "check" step per precondition plus a trailing
// generic execution step.
func BasePlan(d Desire) []Step {
	steps := make([]Step, 0, len(d.Conditions)+1)
	for _, cond := range d.Conditions {
		steps = append(steps, Step("check_"+cond))
	}
	return append(steps, Step("execute_main_action"))
}
