package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pulsewatch/pulsewatch/pkg/pulse"
)

// File names inside the config directory.
const (
	ServicesFileName   = "services.json"
	ThresholdsFileName = "thresholds.json"
	AppFileName        = "config.json"
)

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load JSON files from configDir
//  2. Expand environment variables
//  3. Apply defaults for unset fields
//  4. Validate all configuration
//  5. Return Config ready for use
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	log.Info("Configuration initialized successfully",
		"services", len(cfg.Services),
		"port", cfg.App.Server.Port,
		"websocket_port", cfg.App.Server.WebsocketPort,
		"log_path", cfg.App.Monitoring.LogPath)

	return cfg, nil
}

func load(configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	var services ServicesFile
	if err := loader.loadJSON(ServicesFileName, &services); err != nil {
		return nil, NewLoadError(ServicesFileName, err)
	}

	var thresholds pulse.Thresholds
	if err := loader.loadJSON(ThresholdsFileName, &thresholds); err != nil {
		return nil, NewLoadError(ThresholdsFileName, err)
	}

	var app AppFile
	if err := loader.loadJSON(AppFileName, &app); err != nil {
		return nil, NewLoadError(AppFileName, err)
	}

	applyDefaults(&services, &app)

	cfg := &Config{
		configDir:  configDir,
		Services:   services.Services,
		Thresholds: thresholds,
		App:        app,
	}
	cfg.index()
	return cfg, nil
}

// applyDefaults fills unset fields with built-in values before validation.
func applyDefaults(services *ServicesFile, app *AppFile) {
	for i := range services.Services {
		svc := &services.Services[i]
		if svc.Tier == "" {
			svc.Tier = pulse.TierStandard
		}
		if svc.HeartbeatIntervalSec <= 0 {
			svc.HeartbeatIntervalSec = DefaultHeartbeatInterval
		}
		if len(svc.Checks) == 0 {
			svc.Checks = []CheckConfig{{Name: "Basic Health", Strategy: "basic"}}
		}
	}

	if app.Server.Port == 0 {
		app.Server.Port = 3001
	}
	if app.Server.WebsocketPort == 0 {
		app.Server.WebsocketPort = 3002
	}
	if app.Monitoring.LogPath == "" {
		app.Monitoring.LogPath = "./logs"
	}
	if app.Monitoring.HistoryRetentionHours <= 0 {
		app.Monitoring.HistoryRetentionHours = 24
	}
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadJSON(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax so auth
	// tokens never need to live in the file itself.
	data = ExpandEnv(data)

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	return nil
}
