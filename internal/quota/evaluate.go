package quota

import "math"

// nearLimitRatio is the usage fraction from which a meter is flagged as
// close to its ceiling.
const nearLimitRatio = 0.8

// Evaluation is the outcome of Evaluate.
type Evaluation struct {
	Allowed   bool
	Remaining Ceiling
}

// Evaluate decides whether one more action fits in limits given counters.
// It performs no I/O and never panics; an unknown action is not allowed.
func Evaluate(limits Limits, counters Counters, action Action) Evaluation {
	ceiling, err := limits.Ceiling(action)
	if err != nil {
		return Evaluation{}
	}
	used, err := counters.Used(action)
	if err != nil {
		return Evaluation{}
	}
	return Evaluation{
		Allowed:   ceiling.Allows(used),
		Remaining: ceiling.Remaining(used),
	}
}

// Meter is the progress-bar view of one counter.
type Meter struct {
	Used      int64
	Max       Ceiling
	Percent   float64
	NearLimit bool
	AtLimit   bool
}

// MeterFor computes the meter of used against max. Unbounded ceilings
// always read 0% and are never near or at the limit.
func MeterFor(used int64, max Ceiling) Meter {
	m := Meter{Used: used, Max: max}
	n, finite := max.Max()
	if !finite {
		return m
	}
	if n == 0 {
		m.Percent = 100
		m.NearLimit = true
		m.AtLimit = true
		return m
	}
	ratio := float64(used) / float64(n)
	m.Percent = math.Min(100, 100*ratio)
	m.NearLimit = ratio >= nearLimitRatio
	m.AtLimit = used >= n
	return m
}
