package session

import (
	"time"

	"github.com/sidelinehq/sideline/go/internal/models"
)

// OverrunActions inspects a freshly loaded session whose clock may have
// kept "running" while the app was suspended. If the derived elapsed
// time has passed the period duration, it returns the corrective
// actions: a pause at the exact period boundary followed by an
// automatic phase advance. The engine never silently keeps a timer
// that overran while the tab was inactive.
func OverrunActions(s *models.GameSession, now time.Time, deviceID string) []Action {
	if s == nil || !s.Clock.IsRunning {
		return nil
	}
	period := s.PeriodDuration()
	if period <= 0 || s.Clock.Elapsed(now) < period {
		return nil
	}

	// The pause is stamped at the instant the period actually ended,
	// not at reload time, so accumulated lands exactly on the period
	// duration.
	boundary := now
	if s.Clock.StartedAtEpochMs != nil {
		startedAt := time.UnixMilli(*s.Clock.StartedAtEpochMs)
		already := time.Duration(s.Clock.AccumulatedMs) * time.Millisecond
		boundary = startedAt.Add(period - already)
	}

	return []Action{
		PauseClock{Meta{DeviceID: deviceID, At: boundary}},
		AdvancePhase{Meta: Meta{DeviceID: deviceID, At: now}, Auto: true},
	}
}

// PeriodElapsed reports whether a running clock has reached the
// configured period duration at now. The 1 Hz display tick uses this
// to ask for an automatic phase advance; the tick itself never
// advances state.
func PeriodElapsed(s *models.GameSession, now time.Time) bool {
	if s == nil || !s.Clock.IsRunning {
		return false
	}
	period := s.PeriodDuration()
	return period > 0 && s.Clock.Elapsed(now) >= period
}
