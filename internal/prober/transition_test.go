package prober

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"x402index/internal/storage"
)

var at = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestApplyOutcomeSuccessResetsStreak(t *testing.T) {
	tr := ApplyOutcome(
		storage.ProbeTarget{ID: "ep", IsActive: true, ConsecutiveFailures: 4},
		storage.Ping{Success: true},
		at, 10,
	)

	if tr.State.ConsecutiveFailures != 0 || !tr.State.IsActive || tr.Deactivated {
		t.Fatalf("unexpected transition %+v", tr)
	}
	if tr.State.LastSeenAt == nil || !tr.State.LastSeenAt.Equal(at) {
		t.Fatalf("expected last seen %s, got %v", at, tr.State.LastSeenAt)
	}
	if tr.State.LastErrorAt != nil {
		t.Fatalf("last error must be left unchanged")
	}
}

func TestApplyOutcomeFailureIncrements(t *testing.T) {
	tr := ApplyOutcome(
		storage.ProbeTarget{ID: "ep", IsActive: true, ConsecutiveFailures: 2},
		storage.Ping{Success: false},
		at, 10,
	)

	if tr.State.ConsecutiveFailures != 3 || !tr.State.IsActive || tr.Deactivated {
		t.Fatalf("unexpected transition %+v", tr)
	}
	if tr.State.LastErrorAt == nil || tr.State.LastSeenAt != nil {
		t.Fatalf("unexpected timestamps %+v", tr.State)
	}
	if tr.State.Success || tr.State.InactiveThreshold != 10 {
		t.Fatalf("state must carry the outcome and threshold, got %+v", tr.State)
	}
}

func TestApplyOutcomeDeactivatesAtThreshold(t *testing.T) {
	tr := ApplyOutcome(
		storage.ProbeTarget{ID: "ep", IsActive: true, ConsecutiveFailures: 9},
		storage.Ping{Success: false},
		at, 10,
	)

	if tr.State.ConsecutiveFailures != 10 {
		t.Fatalf("expected 10 failures, got %d", tr.State.ConsecutiveFailures)
	}
	if tr.State.IsActive || !tr.Deactivated {
		t.Fatalf("expected deactivation on the tenth failure, got %+v", tr)
	}

	again := ApplyOutcome(
		storage.ProbeTarget{ID: "ep", IsActive: false, ConsecutiveFailures: 10},
		storage.Ping{Success: false},
		at, 10,
	)
	if again.Deactivated {
		t.Fatalf("already inactive endpoint must not report a new deactivation")
	}
}

func TestApplyOutcomeSuccessDoesNotReactivate(t *testing.T) {
	tr := ApplyOutcome(
		storage.ProbeTarget{ID: "ep", IsActive: false, ConsecutiveFailures: 10},
		storage.Ping{Success: true},
		at, 10,
	)

	if tr.State.IsActive {
		t.Fatalf("success must not reactivate an inactive endpoint")
	}
	if tr.State.ConsecutiveFailures != 0 {
		t.Fatalf("expected streak reset, got %d", tr.State.ConsecutiveFailures)
	}
}

func TestApplyUsesConfiguredThreshold(t *testing.T) {
	p := New(Options{InactiveThreshold: 3}, zerolog.Nop())
	tr := p.Apply(storage.ProbeTarget{ID: "ep", IsActive: true, ConsecutiveFailures: 2}, storage.Ping{}, at)

	if !tr.Deactivated {
		t.Fatalf("expected deactivation at custom threshold")
	}
	if p.InactiveThreshold() != 3 {
		t.Fatalf("unexpected threshold %d", p.InactiveThreshold())
	}
}
