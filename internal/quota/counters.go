package quota

// Counters is the persisted usage of one account.
// AIAnalysesUsed and ChartsAccessed count since the last monthly reset;
// PodcastsTracked mirrors the number of active tracking relations.
type Counters struct {
	Plan            PlanID
	PodcastsTracked int64
	AIAnalysesUsed  int64
	ChartsAccessed  int64
}

// Used returns the counter governed by action.
func (c Counters) Used(action Action) (int64, error) {
	switch action {
	case ActionTrackPodcast:
		return c.PodcastsTracked, nil
	case ActionAIAnalysis:
		return c.AIAnalysesUsed, nil
	case ActionAccessCharts:
		return c.ChartsAccessed, nil
	}
	return 0, ErrInvalidAction
}

// Snapshot pairs an account's counters with the ceilings of its plan.
type Snapshot struct {
	Counters
	Limits
}

// NewSnapshot resolves the limits for c.Plan from the catalog.
func NewSnapshot(c Counters) Snapshot {
	return Snapshot{Counters: c, Limits: LimitsFor(c.Plan)}
}

// Meters returns the UI meter of every action.
func (s Snapshot) Meters() map[Action]Meter {
	meters := make(map[Action]Meter, len(Actions()))
	for _, a := range Actions() {
		used, _ := s.Used(a)
		ceiling, _ := s.Ceiling(a)
		meters[a] = MeterFor(used, ceiling)
	}
	return meters
}
