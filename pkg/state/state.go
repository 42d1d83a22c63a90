// Package state maintains the authoritative per-service record: failure
// counters, response history, sustained-warning hysteresis, and the
// flatline/recovery transitions derived from probe outcomes.
package state

import (
	"time"

	"github.com/pulsewatch/pulsewatch/pkg/pulse"
)

// HistoryEntry is one probe outcome in the bounded response history ring.
type HistoryEntry struct {
	Timestamp time.Time    `json:"timestamp"`
	Latency   int64        `json:"latency"` // milliseconds
	Status    pulse.Status `json:"status"`
	IsFailure bool         `json:"isFailure"`
}

// ServiceState is the in-memory authoritative record for one service.
// Instances are owned by the Tracker; callers receive value copies.
type ServiceState struct {
	Name string     `json:"name"`
	Tier pulse.Tier `json:"tier"`

	ConsecutiveFailures int `json:"consecutiveFailures"`

	LastSuccess *time.Time `json:"lastSuccess,omitempty"`
	LastFailure *time.Time `json:"lastFailure,omitempty"`
	LastCheck   *time.Time `json:"lastCheck,omitempty"`

	CurrentStatus     pulse.Status `json:"currentStatus"`
	IsFlatlined       bool         `json:"isFlatlined"`
	FlatlineStartTime *time.Time   `json:"flatlineStartTime,omitempty"`

	// Lifetime counters, used for the uptime percentage.
	SuccessCount int64 `json:"successCount"`
	FailureCount int64 `json:"failureCount"`

	// ResponseHistory holds the most recent sustainedCount outcomes,
	// oldest first.
	ResponseHistory []HistoryEntry `json:"responseHistory"`

	LastHTTPStatus int `json:"lastHttpStatus,omitempty"`
}

// Uptime returns successCount / (successCount + failureCount) as a
// percentage, defined as 100 before any probe has been observed.
func (s *ServiceState) Uptime() float64 {
	total := s.SuccessCount + s.FailureCount
	if total == 0 {
		return 100
	}
	return float64(s.SuccessCount) / float64(total) * 100
}

// appendHistory appends an entry, evicting the oldest when the ring exceeds
// capacity.
func (s *ServiceState) appendHistory(e HistoryEntry, capacity int) {
	s.ResponseHistory = append(s.ResponseHistory, e)
	if capacity > 0 && len(s.ResponseHistory) > capacity {
		s.ResponseHistory = s.ResponseHistory[len(s.ResponseHistory)-capacity:]
	}
}

// sustainedWarning reports whether the ring is full and every entry is a
// non-failure warning-range outcome. This gates entry into warning status.
func (s *ServiceState) sustainedWarning(capacity int) bool {
	if capacity <= 0 || len(s.ResponseHistory) < capacity {
		return false
	}
	recent := s.ResponseHistory[len(s.ResponseHistory)-capacity:]
	for _, e := range recent {
		if e.IsFailure || e.Status != pulse.StatusWarning {
			return false
		}
	}
	return true
}

// clone returns a deep copy safe to hand to readers.
func (s *ServiceState) clone() ServiceState {
	cp := *s
	cp.ResponseHistory = append([]HistoryEntry(nil), s.ResponseHistory...)
	if s.LastSuccess != nil {
		t := *s.LastSuccess
		cp.LastSuccess = &t
	}
	if s.LastFailure != nil {
		t := *s.LastFailure
		cp.LastFailure = &t
	}
	if s.LastCheck != nil {
		t := *s.LastCheck
		cp.LastCheck = &t
	}
	if s.FlatlineStartTime != nil {
		t := *s.FlatlineStartTime
		cp.FlatlineStartTime = &t
	}
	return cp
}
