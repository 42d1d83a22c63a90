// Package alerts turns state-machine transitions into alert records: a
// bounded in-memory history, per-service muting, and the decision whether a
// notification sound should play on the dashboard.
package alerts

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulsewatch/pulsewatch/pkg/bus"
	"github.com/pulsewatch/pulsewatch/pkg/config"
	"github.com/pulsewatch/pulsewatch/pkg/pulse"
)

// historyCap bounds the retained alert history.
const historyCap = 100

// Alert types.
const (
	TypeDegraded = "degraded"
	TypeRecovery = "recovery"
	TypeFlatline = "flatline"
)

// Severity levels, lowest to highest.
const (
	SeverityInfo     = "info"
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert is one produced alert record.
type Alert struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Service   string    `json:"service"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	// Sound is true when the dashboard should play a notification sound.
	// Playback itself is the client's job.
	Sound bool `json:"sound"`
}

// Manager observes status transitions on the bus and maintains the alert
// history and mute registry.
type Manager struct {
	bus    *bus.Bus
	audio  config.AudioConfig
	logger *slog.Logger

	mu      sync.RWMutex
	history []Alert // ring, oldest first
	muted   map[string]bool

	subs []bus.Subscription
}

// NewManager creates an alert manager with the given audio settings.
func NewManager(b *bus.Bus, audio config.AudioConfig) *Manager {
	return &Manager{
		bus:    b,
		audio:  audio,
		logger: slog.Default(),
		muted:  make(map[string]bool),
	}
}

// Start subscribes the manager to derived state events. Idempotent.
func (m *Manager) Start() {
	if len(m.subs) > 0 {
		return
	}
	m.subs = append(m.subs,
		m.bus.Subscribe(bus.EventPulseChanged, func(payload any) {
			if ev, ok := payload.(bus.PulseChanged); ok {
				m.onPulseChanged(ev)
			}
		}),
		m.bus.Subscribe(bus.EventFlatlineDetected, func(payload any) {
			if ev, ok := payload.(bus.FlatlineDetected); ok {
				m.onFlatline(ev)
			}
		}),
		m.bus.Subscribe(bus.EventServiceRecovered, func(payload any) {
			if ev, ok := payload.(bus.ServiceRecovered); ok {
				m.onRecovered(ev)
			}
		}),
	)
}

// Stop removes the manager's bus subscriptions.
func (m *Manager) Stop() {
	for _, s := range m.subs {
		m.bus.Unsubscribe(s)
	}
	m.subs = nil
}

func (m *Manager) onPulseChanged(ev bus.PulseChanged) {
	// Degradations only; recovery and flatline produce their own alerts.
	var severity string
	switch ev.NewStatus {
	case pulse.StatusWarning:
		severity = SeverityLow
	case pulse.StatusCritical:
		severity = SeverityMedium
	default:
		return
	}
	m.record(Alert{
		Type:     TypeDegraded,
		Service:  ev.Service,
		Severity: severity,
		Message: fmt.Sprintf("%s degraded: %s → %s",
			ev.Service, ev.OldStatus, ev.NewStatus),
		Timestamp: ev.Timestamp,
	})
}

func (m *Manager) onFlatline(ev bus.FlatlineDetected) {
	severity := SeverityHigh
	if ev.Severity == bus.FlatlineSeverityCritical || ev.Severity == bus.FlatlineSeverityCatastrophic {
		severity = SeverityCritical
	}
	m.record(Alert{
		Type:     TypeFlatline,
		Service:  ev.Service,
		Severity: severity,
		Message: fmt.Sprintf("%s flatlined after %d consecutive failures",
			ev.Service, ev.ConsecutiveFailures),
		Timestamp: ev.Timestamp,
	})
}

func (m *Manager) onRecovered(ev bus.ServiceRecovered) {
	m.record(Alert{
		Type:     TypeRecovery,
		Service:  ev.Service,
		Severity: SeverityInfo,
		Message: fmt.Sprintf("%s recovered after %s down",
			ev.Service, time.Duration(ev.Downtime)*time.Millisecond),
		Timestamp: ev.Timestamp,
	})
}

// record appends the alert to the bounded history and, unless the service is
// muted, republishes it as alert_triggered.
func (m *Manager) record(a Alert) {
	a.ID = uuid.New().String()
	a.Sound = m.shouldPlaySound(a.Severity)

	m.mu.Lock()
	m.history = append(m.history, a)
	if len(m.history) > historyCap {
		m.history = m.history[len(m.history)-historyCap:]
	}
	muted := m.muted[a.Service]
	m.mu.Unlock()

	if muted {
		m.logger.Debug("Alert suppressed for muted service",
			"service", a.Service, "type", a.Type)
		return
	}
	m.bus.Publish(bus.EventAlertTriggered, a)
}

// shouldPlaySound decides the audio cue: only when audio is enabled and the
// alert is at least high severity.
func (m *Manager) shouldPlaySound(severity string) bool {
	if !m.audio.Enabled {
		return false
	}
	return severity == SeverityHigh || severity == SeverityCritical
}

// History returns up to limit recent alerts, newest first. limit <= 0 means
// the full retained history.
func (m *Manager) History(limit int) []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Alert, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.history[i])
	}
	return out
}

// MuteService suppresses alert_triggered for a service. Alerts are still
// recorded in history.
func (m *Manager) MuteService(service string) {
	m.mu.Lock()
	m.muted[service] = true
	m.mu.Unlock()
}

// UnmuteService re-enables alert_triggered for a service. Unmuting a
// service that was never muted is a no-op.
func (m *Manager) UnmuteService(service string) {
	m.mu.Lock()
	delete(m.muted, service)
	m.mu.Unlock()
}

// IsMuted reports whether a service is muted.
func (m *Manager) IsMuted(service string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.muted[service]
}

// MutedServices returns the currently muted service names.
func (m *Manager) MutedServices() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.muted))
	for name := range m.muted {
		out = append(out, name)
	}
	return out
}
