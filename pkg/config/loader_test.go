package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/pulsewatch/pkg/pulse"
)

const validServices = `{
  "services": [
    {
      "name": "Demo API",
      "url": "http://localhost:4000/graphql",
      "tier": "critical",
      "heartbeatInterval": 15,
      "checks": [
        {"name": "Basic Health", "strategy": "basic"},
        {"name": "Deep Query", "strategy": "query", "query": "{ ok }", "timeout": 5000}
      ]
    },
    {
      "name": "Bare Service",
      "url": "http://localhost:5000/graphql"
    }
  ]
}`

const validThresholds = `{
  "default": {
    "healthy": {"max": 500},
    "warning": {"max": 2000, "sustainedCount": 3},
    "critical": {"consecutiveFailures": 3}
  }
}`

const validApp = `{
  "server": {"port": 4001, "websocketPort": 4002},
  "monitoring": {"logPath": "./test-logs", "historyRetention": 48},
  "alerts": {"audio": {"enabled": true, "volume": 0.5}}
}`

func writeConfigDir(t *testing.T, services, thresholds, app string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ServicesFileName), []byte(services), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ThresholdsFileName), []byte(thresholds), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, AppFileName), []byte(app), 0o644))
	return dir
}

func TestInitializeLoadsAllFiles(t *testing.T) {
	dir := writeConfigDir(t, validServices, validThresholds, validApp)

	cfg, err := Initialize(t.Context(), dir)
	require.NoError(t, err)

	require.Len(t, cfg.Services, 2)
	assert.Equal(t, "Demo API", cfg.Services[0].Name)
	assert.Equal(t, pulse.TierCritical, cfg.Services[0].Tier)
	assert.Len(t, cfg.Services[0].Checks, 2)

	assert.Equal(t, int64(500), cfg.Thresholds.Default.Healthy.Max)
	assert.Equal(t, 4001, cfg.App.Server.Port)
	assert.Equal(t, 4002, cfg.App.Server.WebsocketPort)
	assert.Equal(t, 48, cfg.App.Monitoring.HistoryRetentionHours)
	assert.True(t, cfg.App.Alerts.Audio.Enabled)
}

func TestInitializeAppliesDefaults(t *testing.T) {
	dir := writeConfigDir(t, validServices, validThresholds, `{}`)

	cfg, err := Initialize(t.Context(), dir)
	require.NoError(t, err)

	// Bare service gets tier, interval, and a default check.
	bare := cfg.Service("Bare Service")
	require.NotNil(t, bare)
	assert.Equal(t, pulse.TierStandard, bare.Tier)
	assert.Equal(t, DefaultHeartbeatInterval, bare.HeartbeatIntervalSec)
	require.Len(t, bare.Checks, 1)
	assert.Equal(t, "Basic Health", bare.Checks[0].Name)
	assert.Equal(t, StrategyBasic, bare.Checks[0].Strategy)

	assert.Equal(t, 3001, cfg.App.Server.Port)
	assert.Equal(t, 3002, cfg.App.Server.WebsocketPort)
	assert.Equal(t, "./logs", cfg.App.Monitoring.LogPath)
}

func TestInitializeMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Initialize(t.Context(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestInitializeInvalidJSON(t *testing.T) {
	dir := writeConfigDir(t, `{not json`, validThresholds, validApp)
	_, err := Initialize(t.Context(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestInitializeRejectsDuplicateServiceNames(t *testing.T) {
	dup := `{"services":[
		{"name":"Same","url":"http://localhost:1/graphql"},
		{"name":"Same","url":"http://localhost:2/graphql"}
	]}`
	dir := writeConfigDir(t, dup, validThresholds, validApp)

	_, err := Initialize(t.Context(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestInitializeRejectsBadThresholds(t *testing.T) {
	bad := `{"default":{"healthy":{"max":1000},"warning":{"max":500}}}`
	dir := writeConfigDir(t, validServices, bad, validApp)

	_, err := Initialize(t.Context(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestExpandEnvInConfigFiles(t *testing.T) {
	t.Setenv("PW_TEST_TOKEN", "tok-123")

	services := `{"services":[{
		"name": "Authed",
		"url": "http://localhost:4000/graphql",
		"authToken": "{{.PW_TEST_TOKEN}}"
	}]}`
	dir := writeConfigDir(t, services, validThresholds, validApp)

	cfg, err := Initialize(t.Context(), dir)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", cfg.Service("Authed").AuthToken)
}

func TestExpandEnvLeavesPlainContentAlone(t *testing.T) {
	in := []byte(`{"query": "query($id: ID!) { user(id: $id) }"}`)
	assert.Equal(t, in, ExpandEnv(in))
}

func TestValidateServiceErrors(t *testing.T) {
	tests := []struct {
		name string
		svc  ServiceConfig
	}{
		{"missing name", ServiceConfig{URL: "http://x/graphql"}},
		{"missing url", ServiceConfig{Name: "x"}},
		{"relative url", ServiceConfig{Name: "x", URL: "/graphql"}},
		{"bad tier", ServiceConfig{Name: "x", URL: "http://x/graphql", Tier: "platinum"}},
		{"unnamed check", ServiceConfig{Name: "x", URL: "http://x/graphql",
			Checks: []CheckConfig{{Strategy: StrategyBasic}}}},
		{"unknown strategy", ServiceConfig{Name: "x", URL: "http://x/graphql",
			Checks: []CheckConfig{{Name: "c", Strategy: "carrier-pigeon"}}}},
		{"negative timeout", ServiceConfig{Name: "x", URL: "http://x/graphql",
			Checks: []CheckConfig{{Name: "c", Strategy: StrategyBasic, TimeoutMS: -1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateService(&tt.svc)
			require.Error(t, err)
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		})
	}
}

func TestSaveServicesRoundTrip(t *testing.T) {
	dir := writeConfigDir(t, validServices, validThresholds, validApp)
	cfg, err := Initialize(t.Context(), dir)
	require.NoError(t, err)

	replacement := []ServiceConfig{{
		Name: "Replacement", URL: "http://localhost:9000/graphql",
		Tier: pulse.TierLow, HeartbeatIntervalSec: 45,
		Checks: []CheckConfig{{Name: "c", Strategy: StrategyBasic}},
	}}
	require.NoError(t, cfg.SaveServices(replacement))

	// In-memory view updated.
	assert.Nil(t, cfg.Service("Demo API"))
	require.NotNil(t, cfg.Service("Replacement"))

	// And the file on disk reflects it.
	cfg2, err := Initialize(t.Context(), dir)
	require.NoError(t, err)
	require.Len(t, cfg2.Services, 1)
	assert.Equal(t, "Replacement", cfg2.Services[0].Name)
}

func TestSaveServicesRejectsInvalid(t *testing.T) {
	dir := writeConfigDir(t, validServices, validThresholds, validApp)
	cfg, err := Initialize(t.Context(), dir)
	require.NoError(t, err)

	err = cfg.SaveServices([]ServiceConfig{{Name: "", URL: "http://x/graphql"}})
	require.Error(t, err)

	// Original config untouched.
	assert.NotNil(t, cfg.Service("Demo API"))
}

func TestSaveThresholdsRoundTrip(t *testing.T) {
	dir := writeConfigDir(t, validServices, validThresholds, validApp)
	cfg, err := Initialize(t.Context(), dir)
	require.NoError(t, err)

	next := cfg.Thresholds
	next.Default.Healthy.Max = 250
	require.NoError(t, cfg.SaveThresholds(next))

	cfg2, err := Initialize(t.Context(), dir)
	require.NoError(t, err)
	assert.Equal(t, int64(250), cfg2.Thresholds.Default.Healthy.Max)
}

func TestSaveThresholdsRejectsInvalid(t *testing.T) {
	dir := writeConfigDir(t, validServices, validThresholds, validApp)
	cfg, err := Initialize(t.Context(), dir)
	require.NoError(t, err)

	var bad pulse.Thresholds
	bad.Default.Healthy.Max = 1000
	bad.Default.Warning.Max = 500
	assert.Error(t, cfg.SaveThresholds(bad))
}

func TestCheckTimeoutDefault(t *testing.T) {
	c := CheckConfig{}
	assert.Equal(t, DefaultCheckTimeout, c.Timeout())
	c.TimeoutMS = 5000
	assert.Equal(t, 5*int64(1000), c.Timeout().Milliseconds())
}
