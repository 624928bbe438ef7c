package quota

import (
	"errors"
	"fmt"
)

var (
	// ErrAccountNotFound means the user has no account row yet.
	ErrAccountNotFound = errors.New("account not found")
	// ErrLimitExceeded means the plan ceiling for the action is reached.
	ErrLimitExceeded = errors.New("limit exceeded")
	// ErrStoreUnavailable means the counter store could not be reached.
	ErrStoreUnavailable = errors.New("usage store unavailable")
	// ErrInvalidAction means an unknown action reached the quota layer.
	ErrInvalidAction = errors.New("invalid action type")
)

// Reason classifies a denial.
type Reason string

const (
	ReasonLimitExceeded Reason = "limit_exceeded"
	ReasonUnavailable   Reason = "store_unavailable"
)

// DeniedError is returned by Guard when an action must not run.
// Snapshot is populated for limit denials only.
type DeniedError struct {
	Reason   Reason
	Action   Action
	Message  string
	Snapshot Snapshot
	Err      error
}

func (e *DeniedError) Error() string {
	return e.Message
}

// Unwrap exposes the matching sentinel and the underlying store error.
func (e *DeniedError) Unwrap() []error {
	errs := make([]error, 0, 2)
	switch e.Reason {
	case ReasonLimitExceeded:
		errs = append(errs, ErrLimitExceeded)
	case ReasonUnavailable:
		errs = append(errs, ErrStoreUnavailable)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// HasSnapshot reports whether the denial carries the user's limits.
func (e *DeniedError) HasSnapshot() bool {
	return e.Reason == ReasonLimitExceeded
}

func limitExceeded(action Action, snap Snapshot) *DeniedError {
	ceiling, _ := snap.Ceiling(action)
	var hint string
	switch action {
	case ActionTrackPodcast:
		hint = "Upgrade to track more podcasts."
	case ActionAIAnalysis:
		hint = "Upgrade for more analyses."
	default:
		hint = "Upgrade for unlimited access."
	}
	return &DeniedError{
		Reason:   ReasonLimitExceeded,
		Action:   action,
		Snapshot: snap,
		Message: fmt.Sprintf("You've reached the limit of %s %s for your %s plan. %s",
			ceiling, action.noun(), snap.Plan, hint),
	}
}

func unavailable(action Action, err error) *DeniedError {
	return &DeniedError{
		Reason:  ReasonUnavailable,
		Action:  action,
		Message: "Usage limits could not be verified. Please try again later.",
		Err:     err,
	}
}
