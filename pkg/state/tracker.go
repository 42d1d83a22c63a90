package state

import (
	"log/slog"
	"sync"

	"github.com/pulsewatch/pulsewatch/pkg/bus"
	"github.com/pulsewatch/pulsewatch/pkg/pulse"
)

// TierResolver returns the tier for a service name. Unknown services get
// TierStandard.
type TierResolver func(service string) pulse.Tier

// Tracker is the per-service state machine. It subscribes to heartbeat
// outcomes on the event bus and republishes derived events (pulse_changed,
// flatline_detected, service_recovered).
//
// Mutations are serialized per service with a per-entry mutex. The bus
// dispatches synchronously and the scheduler never overlaps runs of the same
// (service, check), so the order in which the tracker observes events for a
// service is the order they occurred.
type Tracker struct {
	bus       *bus.Bus
	evaluator *pulse.Evaluator
	tierFor   TierResolver
	logger    *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry

	subs []bus.Subscription
}

type entry struct {
	mu sync.Mutex
	st ServiceState
}

// NewTracker creates a Tracker. evaluator supplies the current
// sustainedCount and per-tier flatline thresholds.
func NewTracker(b *bus.Bus, evaluator *pulse.Evaluator, tierFor TierResolver) *Tracker {
	return &Tracker{
		bus:       b,
		evaluator: evaluator,
		tierFor:   tierFor,
		logger:    slog.Default(),
		entries:   make(map[string]*entry),
	}
}

// Start subscribes the tracker to heartbeat outcomes. Idempotent.
func (t *Tracker) Start() {
	if len(t.subs) > 0 {
		return
	}
	t.subs = append(t.subs,
		t.bus.Subscribe(bus.EventHeartbeatFailed, func(payload any) {
			if hb, ok := payload.(bus.HeartbeatResult); ok {
				t.onFailure(hb)
			}
		}),
		t.bus.Subscribe(bus.EventHeartbeatReceived, func(payload any) {
			if hb, ok := payload.(bus.HeartbeatResult); ok {
				t.onSuccess(hb)
			}
		}),
	)
}

// Stop removes the tracker's bus subscriptions.
func (t *Tracker) Stop() {
	for _, s := range t.subs {
		t.bus.Unsubscribe(s)
	}
	t.subs = nil
}

// entryFor returns the entry for a service, creating it lazily on first use.
func (t *Tracker) entryFor(service string) *entry {
	t.mu.RLock()
	e, ok := t.entries[service]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.entries[service]; ok {
		return e
	}
	e = &entry{st: ServiceState{
		Name:          service,
		Tier:          t.tierFor(service),
		CurrentStatus: pulse.StatusHealthy,
	}}
	t.entries[service] = e
	return e
}

func (t *Tracker) onFailure(hb bus.HeartbeatResult) {
	e := t.entryFor(hb.Service)
	e.mu.Lock()
	defer e.mu.Unlock()
	st := &e.st

	ts := hb.Timestamp
	st.ConsecutiveFailures++
	st.FailureCount++
	st.LastFailure = &ts
	st.LastCheck = &ts
	if hb.HTTPStatus != 0 {
		st.LastHTTPStatus = hb.HTTPStatus
	}

	st.appendHistory(HistoryEntry{
		Timestamp: ts,
		Latency:   hb.ResponseTime,
		Status:    pulse.StatusCritical,
		IsFailure: true,
	}, t.evaluator.SustainedCount())

	// Only transport loss counts toward flatline. An upstream that answers
	// with an error status is observably sick, not unreachable.
	threshold := t.evaluator.FlatlineThreshold(st.Tier)
	if !hb.HasResponse && !st.IsFlatlined && st.ConsecutiveFailures >= threshold {
		st.IsFlatlined = true
		st.FlatlineStartTime = &ts

		ev := bus.FlatlineDetected{
			Service:             hb.Service,
			ConsecutiveFailures: st.ConsecutiveFailures,
			Severity:            flatlineSeverity(st.ConsecutiveFailures),
			Timestamp:           ts,
		}
		if st.LastSuccess != nil {
			last := *st.LastSuccess
			ev.LastSuccess = &last
			ev.TimeSinceLastSuccess = ts.Sub(last).Milliseconds()
		}
		t.logger.Warn("Flatline detected",
			"service", hb.Service,
			"consecutive_failures", st.ConsecutiveFailures,
			"severity", ev.Severity)
		t.bus.Publish(bus.EventFlatlineDetected, ev)

		if st.CurrentStatus != pulse.StatusFlatline {
			old := st.CurrentStatus
			st.CurrentStatus = pulse.StatusFlatline
			t.bus.Publish(bus.EventPulseChanged, bus.PulseChanged{
				Service:   hb.Service,
				OldStatus: old,
				NewStatus: pulse.StatusFlatline,
				Timestamp: ts,
			})
		}
	}
}

func (t *Tracker) onSuccess(hb bus.HeartbeatResult) {
	e := t.entryFor(hb.Service)
	e.mu.Lock()
	defer e.mu.Unlock()
	st := &e.st

	ts := hb.Timestamp

	if st.IsFlatlined {
		downtime := int64(0)
		if st.FlatlineStartTime != nil {
			downtime = ts.Sub(*st.FlatlineStartTime).Milliseconds()
		}
		t.logger.Info("Service recovered from flatline",
			"service", hb.Service,
			"downtime_ms", downtime,
			"failures", st.ConsecutiveFailures)
		t.bus.Publish(bus.EventServiceRecovered, bus.ServiceRecovered{
			Service:      hb.Service,
			Downtime:     downtime,
			FailureCount: st.ConsecutiveFailures,
			Timestamp:    ts,
		})
		st.IsFlatlined = false
		st.FlatlineStartTime = nil
	}

	st.ConsecutiveFailures = 0
	st.SuccessCount++
	st.LastSuccess = &ts
	st.LastCheck = &ts
	if hb.HTTPStatus != 0 {
		st.LastHTTPStatus = hb.HTTPStatus
	}

	sustained := t.evaluator.SustainedCount()
	st.appendHistory(HistoryEntry{
		Timestamp: ts,
		Latency:   hb.ResponseTime,
		Status:    hb.Pulse.Status,
		IsFailure: false,
	}, sustained)

	// One-sided hysteresis: recovery to healthy is immediate, entry into
	// warning requires a full window of warning-range samples.
	var newStatus pulse.Status
	switch hb.Pulse.Status {
	case pulse.StatusCritical:
		newStatus = pulse.StatusCritical
	case pulse.StatusWarning:
		if st.sustainedWarning(sustained) {
			newStatus = pulse.StatusWarning
		} else {
			newStatus = pulse.StatusHealthy
		}
	default:
		newStatus = pulse.StatusHealthy
	}

	if newStatus != st.CurrentStatus {
		old := st.CurrentStatus
		st.CurrentStatus = newStatus
		t.bus.Publish(bus.EventPulseChanged, bus.PulseChanged{
			Service:      hb.Service,
			OldStatus:    old,
			NewStatus:    newStatus,
			ResponseTime: hb.ResponseTime,
			Timestamp:    ts,
		})
	}
}

// flatlineSeverity derives the severity scale from the consecutive-failure
// count at the moment of detection.
func flatlineSeverity(failures int) string {
	switch {
	case failures >= 10:
		return bus.FlatlineSeverityCatastrophic
	case failures >= 5:
		return bus.FlatlineSeverityCritical
	default:
		return bus.FlatlineSeverityWarning
	}
}

// Snapshot returns a copy of one service's state. ok is false when the
// service has not been observed yet.
func (t *Tracker) Snapshot(service string) (ServiceState, bool) {
	t.mu.RLock()
	e, ok := t.entries[service]
	t.mu.RUnlock()
	if !ok {
		return ServiceState{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.clone(), true
}

// SnapshotAll returns copies of every tracked service state.
func (t *Tracker) SnapshotAll() map[string]ServiceState {
	t.mu.RLock()
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	t.mu.RUnlock()

	out := make(map[string]ServiceState, len(names))
	for _, name := range names {
		if st, ok := t.Snapshot(name); ok {
			out[name] = st
		}
	}
	return out
}

// Reset destroys one service's state; the next observed event recreates it
// fresh. Used by explicit resets and config reloads that drop a service.
func (t *Tracker) Reset(service string) {
	t.mu.Lock()
	delete(t.entries, service)
	t.mu.Unlock()
}

// Retain drops state for any service not in keep. Called after a config
// reload replaces the service list.
func (t *Tracker) Retain(keep []string) {
	allowed := make(map[string]bool, len(keep))
	for _, name := range keep {
		allowed[name] = true
	}
	t.mu.Lock()
	for name := range t.entries {
		if !allowed[name] {
			delete(t.entries, name)
		}
	}
	t.mu.Unlock()
}
