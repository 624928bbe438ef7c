package quota

// PlanID identifies a subscription plan.
type PlanID string

const (
	PlanFree    PlanID = "free"
	PlanStarter PlanID = "starter"
	PlanPro     PlanID = "pro"
	PlanAgency  PlanID = "agency"
)

// Limits is the set of ceilings a plan grants.
type Limits struct {
	MaxPodcasts    Ceiling
	MaxAIAnalyses  Ceiling
	MaxChartAccess Ceiling
}

type planEntry struct {
	id     PlanID
	limits Limits
	paid   bool
}

// catalog is the only plan table in the codebase. Enforcement, storage and
// the limits shown to users all read it. Entries are ordered from the least
// to the most generous tier.
var catalog = []planEntry{
	{
		id: PlanFree,
		limits: Limits{
			MaxPodcasts:    Finite(1),
			MaxAIAnalyses:  Finite(1),
			MaxChartAccess: Finite(10),
		},
	},
	{
		id: PlanStarter,
		limits: Limits{
			MaxPodcasts:    Finite(5),
			MaxAIAnalyses:  Finite(10),
			MaxChartAccess: Finite(50),
		},
		paid: true,
	},
	{
		id: PlanPro,
		limits: Limits{
			MaxPodcasts:    Finite(20),
			MaxAIAnalyses:  Unbounded(),
			MaxChartAccess: Unbounded(),
		},
		paid: true,
	},
	{
		id: PlanAgency,
		limits: Limits{
			MaxPodcasts:    Unbounded(),
			MaxAIAnalyses:  Unbounded(),
			MaxChartAccess: Unbounded(),
		},
		paid: true,
	},
}

func lookup(plan PlanID) (planEntry, bool) {
	for _, e := range catalog {
		if e.id == plan {
			return e, true
		}
	}
	return planEntry{}, false
}

// LimitsFor returns the ceilings of plan. Unknown plans get zero ceilings
// for every action.
func LimitsFor(plan PlanID) Limits {
	e, ok := lookup(plan)
	if !ok {
		return Limits{}
	}
	return e.limits
}

// Known reports whether p is in the catalog.
func (p PlanID) Known() bool {
	_, ok := lookup(p)
	return ok
}

// IsPaid reports whether p is a paid tier. Monthly counters of paid tiers
// are zeroed by the periodic reset.
func (p PlanID) IsPaid() bool {
	e, ok := lookup(p)
	return ok && e.paid
}

// CanExport reports whether p may download its data. Export is a paid-tier
// feature with no counter.
func (p PlanID) CanExport() bool {
	return p.IsPaid()
}

// Rank orders plans by generosity; unknown plans rank -1.
func (p PlanID) Rank() int {
	for i, e := range catalog {
		if e.id == p {
			return i
		}
	}
	return -1
}

// Plans returns all plan ids from least to most generous.
func Plans() []PlanID {
	ids := make([]PlanID, 0, len(catalog))
	for _, e := range catalog {
		ids = append(ids, e.id)
	}
	return ids
}

// PaidPlans returns the plan ids whose monthly counters are reset.
func PaidPlans() []PlanID {
	var ids []PlanID
	for _, e := range catalog {
		if e.paid {
			ids = append(ids, e.id)
		}
	}
	return ids
}

// Ceiling returns the ceiling that governs action.
func (l Limits) Ceiling(action Action) (Ceiling, error) {
	switch action {
	case ActionTrackPodcast:
		return l.MaxPodcasts, nil
	case ActionAIAnalysis:
		return l.MaxAIAnalyses, nil
	case ActionAccessCharts:
		return l.MaxChartAccess, nil
	}
	return Ceiling{}, ErrInvalidAction
}

// CeilingsFor returns, for action, the plan ids and their ceilings as
// parallel slices with nil meaning unbounded. Stores bind these as arrays so
// the plan lookup happens inside the same atomic statement as the increment.
func CeilingsFor(action Action) ([]string, []*int64, error) {
	if !action.Valid() {
		return nil, nil, ErrInvalidAction
	}
	plans := make([]string, 0, len(catalog))
	ceilings := make([]*int64, 0, len(catalog))
	for _, e := range catalog {
		c, _ := e.limits.Ceiling(action)
		plans = append(plans, string(e.id))
		ceilings = append(ceilings, c.Ptr())
	}
	return plans, ceilings, nil
}
