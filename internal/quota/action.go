package quota

import "fmt"

// Action is a metered operation a user can attempt.
type Action string

const (
	ActionTrackPodcast Action = "track_podcast"
	ActionAIAnalysis   Action = "ai_analysis"
	ActionAccessCharts Action = "access_charts"
)

// Actions returns every metered action in a stable order.
func Actions() []Action {
	return []Action{ActionTrackPodcast, ActionAIAnalysis, ActionAccessCharts}
}

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionTrackPodcast, ActionAIAnalysis, ActionAccessCharts:
		return true
	}
	return false
}

// ParseAction converts a wire value into an Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
	return a, nil
}

// noun is the user-facing name of what the action counts.
func (a Action) noun() string {
	switch a {
	case ActionTrackPodcast:
		return "tracked podcasts"
	case ActionAIAnalysis:
		return "AI analyses"
	case ActionAccessCharts:
		return "chart accesses"
	}
	return string(a)
}
