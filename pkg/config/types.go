package config

import (
	"time"

	"github.com/pulsewatch/pulsewatch/pkg/pulse"
)

// DefaultCheckTimeout applies when a check does not declare its own timeout.
const DefaultCheckTimeout = 10_000 * time.Millisecond

// DefaultHeartbeatInterval applies when a service does not declare one.
const DefaultHeartbeatInterval = 30 // seconds

// CheckConfig is one named probe definition on a service.
type CheckConfig struct {
	Name      string         `json:"name"`
	Strategy  string         `json:"strategy"`
	Query     string         `json:"query,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
	// TimeoutMS bounds one probe invocation, in milliseconds.
	TimeoutMS int64 `json:"timeout,omitempty"`
}

// Timeout returns the per-check probe deadline.
func (c *CheckConfig) Timeout() time.Duration {
	if c.TimeoutMS > 0 {
		return time.Duration(c.TimeoutMS) * time.Millisecond
	}
	return DefaultCheckTimeout
}

// ServiceConfig describes one monitored upstream endpoint.
type ServiceConfig struct {
	Name string     `json:"name"`
	URL  string     `json:"url"`
	Tier pulse.Tier `json:"tier"`
	// HeartbeatIntervalSec is the probe cadence in seconds.
	HeartbeatIntervalSec int           `json:"heartbeatInterval"`
	Checks               []CheckConfig `json:"checks"`
	AuthToken            string        `json:"authToken,omitempty"`
}

// Interval returns the probe cadence as a duration.
func (s *ServiceConfig) Interval() time.Duration {
	sec := s.HeartbeatIntervalSec
	if sec <= 0 {
		sec = DefaultHeartbeatInterval
	}
	return time.Duration(sec) * time.Second
}

// ServicesFile is the shape of services.json.
type ServicesFile struct {
	Services []ServiceConfig `json:"services"`
}

// ServerConfig holds the two listener ports.
type ServerConfig struct {
	Port          int `json:"port"`
	WebsocketPort int `json:"websocketPort"`
}

// MonitoringConfig holds log store settings.
type MonitoringConfig struct {
	LogPath string `json:"logPath"`
	// HistoryRetentionHours bounds how long daily log files are kept.
	HistoryRetentionHours int `json:"historyRetention"`
}

// Retention returns the log retention window.
func (m *MonitoringConfig) Retention() time.Duration {
	h := m.HistoryRetentionHours
	if h <= 0 {
		h = 24
	}
	return time.Duration(h) * time.Hour
}

// AudioConfig controls the client-side alert sound decision. Playback itself
// happens in the browser; the core only decides whether a sound should play.
type AudioConfig struct {
	Enabled bool    `json:"enabled"`
	Volume  float64 `json:"volume,omitempty"`
}

// AlertsConfig groups alerting settings.
type AlertsConfig struct {
	Audio AudioConfig `json:"audio"`
}

// AppFile is the shape of config.json.
type AppFile struct {
	Server     ServerConfig     `json:"server"`
	Monitoring MonitoringConfig `json:"monitoring"`
	Alerts     AlertsConfig     `json:"alerts"`
}

// Config is the umbrella configuration object returned by Initialize.
type Config struct {
	configDir string

	Services   []ServiceConfig
	Thresholds pulse.Thresholds
	App        AppFile

	byName map[string]*ServiceConfig
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string { return c.configDir }

// Service returns the service with the given name, or nil.
func (c *Config) Service(name string) *ServiceConfig {
	return c.byName[name]
}

// ServiceNames returns the configured service names in declaration order.
func (c *Config) ServiceNames() []string {
	names := make([]string, len(c.Services))
	for i := range c.Services {
		names[i] = c.Services[i].Name
	}
	return names
}

func (c *Config) index() {
	c.byName = make(map[string]*ServiceConfig, len(c.Services))
	for i := range c.Services {
		c.byName[c.Services[i].Name] = &c.Services[i]
	}
}
