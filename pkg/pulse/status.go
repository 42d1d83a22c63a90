// Package pulse defines the pulse classification model: status values,
// service tiers, latency thresholds, and the evaluator that turns a probe
// outcome into a status.
package pulse

import "fmt"

// Status is the classification of a probe outcome or a service.
type Status string

const (
	// StatusHealthy means the last probe succeeded within the healthy latency bound.
	StatusHealthy Status = "healthy"
	// StatusWarning means latency is elevated but the probe succeeded.
	StatusWarning Status = "warning"
	// StatusCritical means latency exceeded the warning bound or the probe failed.
	StatusCritical Status = "critical"
	// StatusFlatline means consecutive transport failures reached the tier
	// threshold. Only the state machine assigns this status; the evaluator
	// never produces it.
	StatusFlatline Status = "flatline"
)

// Valid reports whether s is one of the defined status values.
func (s Status) Valid() bool {
	switch s {
	case StatusHealthy, StatusWarning, StatusCritical, StatusFlatline:
		return true
	}
	return false
}

// Tier is the priority class of a monitored service. It controls the
// flatline threshold (and, by convention, default probe cadence).
type Tier string

const (
	TierCritical Tier = "critical"
	TierStandard Tier = "standard"
	TierLow      Tier = "low"
)

// ParseTier validates and returns a Tier. Empty input defaults to standard.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierCritical, TierStandard, TierLow:
		return Tier(s), nil
	case "":
		return TierStandard, nil
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

// Pulse is one classified probe outcome: a status plus the measured latency.
type Pulse struct {
	Status       Status `json:"status"`
	ResponseTime int64  `json:"responseTime"` // milliseconds
}
