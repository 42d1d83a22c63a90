package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pulsewatch/pulsewatch/pkg/pulse"
)

// SaveServices persists a replacement service list to services.json.
// The write goes through a temp file + rename so a crash mid-write never
// leaves a truncated config on disk.
func (c *Config) SaveServices(services []ServiceConfig) error {
	for i := range services {
		if err := ValidateService(&services[i]); err != nil {
			return err
		}
	}
	if err := c.writeJSON(ServicesFileName, ServicesFile{Services: services}); err != nil {
		return err
	}
	c.Services = services
	c.index()
	return nil
}

// SaveThresholds persists updated thresholds to thresholds.json and updates
// the in-memory copy.
func (c *Config) SaveThresholds(t pulse.Thresholds) error {
	if err := ValidateThresholds(&t); err != nil {
		return err
	}
	if err := c.writeJSON(ThresholdsFileName, t); err != nil {
		return err
	}
	c.Thresholds = t
	return nil
}

func (c *Config) writeJSON(filename string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filename, err)
	}
	data = append(data, '\n')

	path := filepath.Join(c.configDir, filename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", filename, err)
	}
	return nil
}
