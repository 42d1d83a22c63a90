package bus

import (
	"time"

	"github.com/pulsewatch/pulsewatch/pkg/pulse"
)

// Event names are the wire contract between core components. They are
// published with the typed payloads defined below.
const (
	EventHeartbeatSent     = "heartbeat_sent"
	EventHeartbeatReceived = "heartbeat_received"
	EventHeartbeatFailed   = "heartbeat_failed"
	EventPulseChanged      = "pulse_changed"
	EventFlatlineDetected  = "flatline_detected"
	EventServiceRecovered  = "service_recovered"
	EventAlertTriggered    = "alert_triggered"
	EventConfigUpdated     = "config_updated"
)

// Flatline severity scale, derived from the consecutive-failure count at the
// moment of detection. Not updated as failures continue.
const (
	FlatlineSeverityWarning      = "warning"
	FlatlineSeverityCritical     = "critical"
	FlatlineSeverityCatastrophic = "catastrophic"
)

// HeartbeatSent announces that a probe is about to run.
type HeartbeatSent struct {
	Service   string    `json:"service"`
	Check     string    `json:"check"`
	Timestamp time.Time `json:"timestamp"`
}

// HeartbeatResult is the payload of heartbeat_received and heartbeat_failed.
type HeartbeatResult struct {
	Service      string      `json:"service"`
	Check        string      `json:"check"`
	Timestamp    time.Time   `json:"timestamp"`
	Pulse        pulse.Pulse `json:"pulse"`
	ResponseTime int64       `json:"responseTime"` // milliseconds
	Success      bool        `json:"success"`
	HTTPStatus   int         `json:"httpStatus"`
	Error        string      `json:"error,omitempty"`
	HasResponse  bool        `json:"hasResponse"`
}

// PulseChanged is published by the state machine on every status transition.
// OldStatus != NewStatus always holds.
type PulseChanged struct {
	Service      string       `json:"service"`
	OldStatus    pulse.Status `json:"oldStatus"`
	NewStatus    pulse.Status `json:"newStatus"`
	ResponseTime int64        `json:"responseTime,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}

// FlatlineDetected is published once when a service crosses its tier's
// consecutive-failure threshold. Single-shot while flatlined.
type FlatlineDetected struct {
	Service              string     `json:"service"`
	ConsecutiveFailures  int        `json:"consecutiveFailures"`
	LastSuccess          *time.Time `json:"lastSuccess,omitempty"`
	TimeSinceLastSuccess int64      `json:"timeSinceLastSuccess,omitempty"` // milliseconds
	Severity             string     `json:"severity"`
	Timestamp            time.Time  `json:"timestamp"`
}

// ServiceRecovered is published on the first success after a flatline.
type ServiceRecovered struct {
	Service      string    `json:"service"`
	Downtime     int64     `json:"downtime"` // milliseconds since flatline start
	FailureCount int       `json:"failureCount"`
	Timestamp    time.Time `json:"timestamp"`
}

// ConfigUpdated is published when a runtime configuration field changes.
type ConfigUpdated struct {
	Service   string    `json:"service,omitempty"`
	Field     string    `json:"field"`
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}
