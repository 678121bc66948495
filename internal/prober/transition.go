package prober

import (
	"time"

	"x402index/internal/storage"
)

// Transition is the bookkeeping that follows one probe.
type Transition struct {
	State storage.ProbeState
	// Deactivated is true only when this outcome flipped the endpoint from
	// active to inactive.
	Deactivated bool
}

// ApplyOutcome folds a ping into the target's failure streak. A success
// clears the streak but never reactivates an inactive endpoint; only
// re-ingestion does that.
func ApplyOutcome(target storage.ProbeTarget, ping storage.Ping, now time.Time, threshold int) Transition {
	if threshold <= 0 {
		threshold = DefaultInactiveThreshold
	}
	at := now.UTC()

	state := storage.ProbeState{
		EndpointID:        target.ID,
		IsActive:          target.IsActive,
		Success:           ping.Success,
		InactiveThreshold: threshold,
	}
	if ping.Success {
		state.LastSeenAt = &at
		state.ConsecutiveFailures = 0
	} else {
		state.LastErrorAt = &at
		state.ConsecutiveFailures = target.ConsecutiveFailures + 1
	}
	state.IsActive = target.IsActive && state.ConsecutiveFailures < threshold

	return Transition{
		State:       state,
		Deactivated: target.IsActive && !state.IsActive,
	}
}

// Apply is ApplyOutcome with the prober's configured threshold.
func (p *Prober) Apply(target storage.ProbeTarget, ping storage.Ping, now time.Time) Transition {
	return ApplyOutcome(target, ping, now, p.opts.InactiveThreshold)
}
