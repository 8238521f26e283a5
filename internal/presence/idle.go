package presence

import (
	"context"
	"log/slog"
	"time"

	"github.com/roostchat/roost/internal/models"
	"github.com/roostchat/roost/internal/registry"
)

// SystemAwayText is the generated away message applied by the idle monitor.
const SystemAwayText = "Away due to inactivity"

// IdleMonitor periodically demotes users whose sessions have all gone quiet
// to Away, through the same status-change path an explicit request takes.
// It never promotes anyone back; returning from Away requires an explicit
// status change.
type IdleMonitor struct {
	reg       *registry.Registry
	svc       *Service
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
}

// NewIdleMonitor builds a monitor sweeping every interval and demoting users
// idle for at least threshold.
func NewIdleMonitor(reg *registry.Registry, svc *Service, interval, threshold time.Duration) *IdleMonitor {
	return &IdleMonitor{
		reg:       reg,
		svc:       svc,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
	}
}

// SetClock overrides the monitor's clock. Tests only.
func (m *IdleMonitor) SetClock(now func() time.Time) {
	m.now = now
}

// Run sweeps on a fixed interval until ctx is cancelled. The server owns the
// context and stops the monitor deterministically on shutdown.
func (m *IdleMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	slog.Info("idle monitor started", "interval", m.interval, "threshold", m.threshold)
	for {
		select {
		case <-ctx.Done():
			slog.Info("idle monitor stopped")
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep demotes every Online user whose most recent activity across all of
// their sessions is older than the threshold. Users already Away, Invisible,
// or gone are skipped.
func (m *IdleMonitor) Sweep() {
	now := m.now().UTC()

	lastSeen := make(map[string]time.Time)
	for _, s := range m.reg.AllSessions() {
		if s.Status != models.StatusOnline {
			continue
		}
		if cur, ok := lastSeen[s.UserID]; !ok || s.LastActivity.After(cur) {
			lastSeen[s.UserID] = s.LastActivity
		}
	}

	for userID, at := range lastSeen {
		if now.Sub(at) < m.threshold {
			continue
		}
		if err := m.svc.SetStatus(userID, models.StatusAway, SystemAwayText, false); err != nil {
			slog.Warn("idle demotion failed", "user_id", userID, "error", err)
			continue
		}
		m.svc.metrics.IdleDemotions.Inc()
		slog.Debug("user demoted to away", "user_id", userID, "idle", now.Sub(at))
	}
}
