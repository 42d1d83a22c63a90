package pulse

// Bound holds a single latency bound in milliseconds.
type Bound struct {
	Max int64 `json:"max"`
}

// WarningBound extends Bound with the sustained-entry count for warning status.
type WarningBound struct {
	Max int64 `json:"max"`
	// SustainedCount is how many consecutive warning-range successes are
	// required before a service enters warning status. Zero means default.
	SustainedCount int `json:"sustainedCount,omitempty"`
}

// CriticalBound configures the failure side of the scale.
type CriticalBound struct {
	Min *int64 `json:"min,omitempty"`
	// ConsecutiveFailures is the default flatline threshold across tiers.
	ConsecutiveFailures int `json:"consecutiveFailures,omitempty"`
}

// TierOverride is a per-tier partial override of the defaults.
type TierOverride struct {
	Healthy  *Bound         `json:"healthy,omitempty"`
	Critical *CriticalBound `json:"critical,omitempty"`
}

// Thresholds is the semantic threshold configuration (thresholds.json).
type Thresholds struct {
	Default struct {
		Healthy  Bound         `json:"healthy"`
		Warning  WarningBound  `json:"warning"`
		Critical CriticalBound `json:"critical"`
	} `json:"default"`
	Tiers map[Tier]TierOverride `json:"tiers,omitempty"`
}

const (
	defaultSustainedCount      = 3
	defaultConsecutiveFailures = 3
)

// SustainedCount returns the configured sustained-warning entry count,
// falling back to the built-in default when unset.
func (t *Thresholds) SustainedCount() int {
	if t.Default.Warning.SustainedCount > 0 {
		return t.Default.Warning.SustainedCount
	}
	return defaultSustainedCount
}

// FlatlineThreshold returns the consecutive-failure count that triggers
// flatline for the given tier, honoring per-tier overrides.
func (t *Thresholds) FlatlineThreshold(tier Tier) int {
	if ov, ok := t.Tiers[tier]; ok && ov.Critical != nil && ov.Critical.ConsecutiveFailures > 0 {
		return ov.Critical.ConsecutiveFailures
	}
	if t.Default.Critical.ConsecutiveFailures > 0 {
		return t.Default.Critical.ConsecutiveFailures
	}
	return defaultConsecutiveFailures
}

// HealthyMax returns the healthy latency bound for the given tier.
func (t *Thresholds) HealthyMax(tier Tier) int64 {
	if ov, ok := t.Tiers[tier]; ok && ov.Healthy != nil && ov.Healthy.Max > 0 {
		return ov.Healthy.Max
	}
	return t.Default.Healthy.Max
}
