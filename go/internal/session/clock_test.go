package session

import (
	"testing"
	"time"

	"github.com/sidelinehq/sideline/go/internal/models"
)

func TestOverrunActionsPauseAtBoundary(t *testing.T) {
	s := testSession()
	s = mustApply(t, s, AdvancePhase{Meta: at(0)})
	s = mustApply(t, s, StartClock{at(0)})

	// The app was suspended; the coach comes back 47 minutes into a
	// 45 minute half.
	now := t0.Add(47 * time.Minute)
	actions := OverrunActions(s, now, "device-a")
	if len(actions) != 2 {
		t.Fatalf("OverrunActions = %d actions, want 2", len(actions))
	}

	for _, action := range actions {
		s = mustApply(t, s, action)
	}

	if s.GamePhase != models.GamePhaseHalftime {
		t.Errorf("phase = %s, want HALFTIME", s.GamePhase)
	}
	if s.Clock.IsRunning {
		t.Error("clock must be paused after the overrun correction")
	}
	if s.Clock.AccumulatedMs != (45 * time.Minute).Milliseconds() {
		t.Errorf("AccumulatedMs = %d, want exactly the period duration", s.Clock.AccumulatedMs)
	}

	found := false
	for _, ev := range s.Events {
		if ev.Type == models.EventTypePeriodElapsed {
			found = true
		}
	}
	if !found {
		t.Error("overrun correction should log a PERIOD_ELAPSED event")
	}
}

func TestOverrunActionsBoundaryRespectsAccumulated(t *testing.T) {
	s := testSession()
	s = mustApply(t, s, AdvancePhase{Meta: at(0)})
	s = mustApply(t, s, StartClock{at(0)})
	s = mustApply(t, s, PauseClock{at(20 * time.Minute)})
	// Resumed with 20 minutes on the clock.
	s = mustApply(t, s, StartClock{at(30 * time.Minute)})

	now := t0.Add(90 * time.Minute)
	for _, action := range OverrunActions(s, now, "device-a") {
		s = mustApply(t, s, action)
	}
	if s.Clock.AccumulatedMs != (45 * time.Minute).Milliseconds() {
		t.Errorf("AccumulatedMs = %d, want 45m", s.Clock.AccumulatedMs)
	}
}

func TestOverrunActionsNoopCases(t *testing.T) {
	paused := testSession()
	if got := OverrunActions(paused, t0.Add(time.Hour), "device-a"); got != nil {
		t.Error("a stopped clock needs no correction")
	}

	running := testSession()
	running = mustApply(t, running, AdvancePhase{Meta: at(0)})
	running = mustApply(t, running, StartClock{at(0)})
	if got := OverrunActions(running, t0.Add(10*time.Minute), "device-a"); got != nil {
		t.Error("a clock inside the period needs no correction")
	}
	if PeriodElapsed(running, t0.Add(10*time.Minute)) {
		t.Error("PeriodElapsed inside the period should be false")
	}
	if !PeriodElapsed(running, t0.Add(45*time.Minute)) {
		t.Error("PeriodElapsed at the boundary should be true")
	}
}
