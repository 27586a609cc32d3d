// Package coach is a BDI specialization: a motivation coach whose desires
// classify the user's state (energy, focus, mood) and whose plans are fixed
// intervention sequences keyed by that classification.
package coach

import (
	"strings"

	"github.com/p-blackswan/colony/internal/action"
	"github.com/p-blackswan/colony/internal/bdi"
	"github.com/p-blackswan/colony/internal/llm"
	"github.com/p-blackswan/colony/internal/role"
)

// Intervention types.
const (
	InterventionEnergy = "energy_boost"
	InterventionFocus  = "focus_enhancement"
	InterventionMood   = "mood_improvement"
)

var interventionPlans = map[string][]bdi.Step{
	InterventionEnergy: {
		"assess_current_energy",
		"identify_energy_drains",
		"suggest_energy_management",
		"provide_encouragement",
		"check_progress",
	},
	InterventionFocus: {
		"assess_distractions",
		"set_clear_goals",
		"break_down_tasks",
		"establish_focus_routine",
		"monitor_progress",
	},
	InterventionMood: {
		"acknowledge_feelings",
		"identify_mood_triggers",
		"suggest_positive_actions",
		"provide_support",
		"check_emotional_state",
	},
}

// genericPlan covers desires with no recognized intervention type.
var genericPlan = []bdi.Step{"assess_situation", "provide_motivation", "check_response"}

// Plan returns the fixed intervention plan for the desire's type. Desires
// without an intervention fall back to the base check-then-execute plan.
func Plan(d bdi.Desire) []bdi.Step {
	if d.Intervention == "" {
		return bdi.BasePlan(d)
	}
	if plan, ok := interventionPlans[d.Intervention]; ok {
		return append([]bdi.Step(nil), plan...)
	}
	return append([]bdi.Step(nil), genericPlan...)
}

// DesireGen classifies a belief's content into an intervention desire.
// Priorities: mood 0.95 > energy 0.90 > focus 0.85.
func DesireGen(b bdi.Belief) (bdi.Desire, bool) {
	content := strings.ToLower(b.Data.Content)

	switch {
	case containsAny(content, "sad", "frustrated", "hopeless", "miserable"):
		return bdi.Desire{
			Name:            "improve_mood_" + b.Name,
			Priority:        0.95,
			Conditions:      []string{"user_receptive", "has_mood_intervention"},
			SuccessCriteria: []string{"mood_improved"},
			Intervention:    InterventionMood,
		}, true
	case containsAny(content, "tired", "exhausted", "drained", "no energy"):
		return bdi.Desire{
			Name:            "boost_energy_" + b.Name,
			Priority:        0.90,
			Conditions:      []string{"user_receptive", "has_energy_intervention"},
			SuccessCriteria: []string{"energy_restored"},
			Intervention:    InterventionEnergy,
		}, true
	case containsAny(content, "distracted", "can't focus", "cannot focus", "unfocused"):
		return bdi.Desire{
			Name:            "enhance_focus_" + b.Name,
			Priority:        0.85,
			Conditions:      []string{"user_receptive", "has_focus_intervention"},
			SuccessCriteria: []string{"focus_improved"},
			Intervention:    InterventionFocus,
		}, true
	}
	return bdi.Desire{}, false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// New builds the coach: assessment steps route to the Assess action,
// everything else in a plan routes to the Motivate action.
func New(setting role.Setting, provider llm.Provider, roleOpts ...role.Option) (*bdi.Agent, error) {
	assess := NewAssess(provider)
	motivate := NewMotivate(provider)

	registry, err := action.NewRegistry(assess, motivate)
	if err != nil {
		return nil, err
	}

	steps := bdi.NewStepTable().
		HandlePrefix("assess", assess).
		HandlePrefix("check", assess).
		Fallback(motivate)

	agent := bdi.NewAgent(setting, registry, steps, roleOpts,
		bdi.WithDesireGen(DesireGen),
		bdi.WithPlanner(Plan),
	)
	return agent, nil
}
