package pulse

import "sync"

// Evaluator classifies a probe outcome into a Pulse using the configured
// latency thresholds. Thresholds may be swapped at runtime (the config API
// hot-applies updates); all access goes through the internal lock.
//
// The evaluator never returns StatusFlatline. Flatline is a service-level
// judgement owned by the state machine.
type Evaluator struct {
	mu sync.RWMutex
	t  Thresholds
}

// NewEvaluator creates an Evaluator with the given thresholds.
func NewEvaluator(t Thresholds) *Evaluator {
	return &Evaluator{t: t}
}

// Evaluate maps (latency, success) to a Pulse.
//
//	success && latency <= healthy.max  → healthy
//	success && latency <= warning.max  → warning
//	success                            → critical
//	!success                           → critical
func (e *Evaluator) Evaluate(latencyMS int64, success bool) Pulse {
	e.mu.RLock()
	healthyMax := e.t.Default.Healthy.Max
	warningMax := e.t.Default.Warning.Max
	e.mu.RUnlock()

	p := Pulse{ResponseTime: latencyMS}
	switch {
	case !success:
		p.Status = StatusCritical
	case latencyMS <= healthyMax:
		p.Status = StatusHealthy
	case latencyMS <= warningMax:
		p.Status = StatusWarning
	default:
		p.Status = StatusCritical
	}
	return p
}

// Thresholds returns a copy of the current thresholds.
func (e *Evaluator) Thresholds() Thresholds {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.t
}

// SetThresholds atomically replaces the thresholds. Probes classified after
// the swap use the new bounds.
func (e *Evaluator) SetThresholds(t Thresholds) {
	e.mu.Lock()
	e.t = t
	e.mu.Unlock()
}

// SustainedCount returns the current sustained-warning entry count.
func (e *Evaluator) SustainedCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.t.SustainedCount()
}

// FlatlineThreshold returns the flatline threshold for a tier under the
// current thresholds.
func (e *Evaluator) FlatlineThreshold(tier Tier) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.t.FlatlineThreshold(tier)
}
