package config

import (
	"fmt"
	"net/url"

	"github.com/pulsewatch/pulsewatch/pkg/pulse"
)

// Strategy identifiers accepted in check configuration.
const (
	StrategyBasic         = "basic"
	StrategyAuthenticated = "authenticated"
	StrategyQuery         = "query"
)

// KnownStrategy reports whether id names a built-in probe strategy.
func KnownStrategy(id string) bool {
	switch id {
	case StrategyBasic, StrategyAuthenticated, StrategyQuery:
		return true
	}
	return false
}

func validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Services))
	for i := range cfg.Services {
		if err := ValidateService(&cfg.Services[i]); err != nil {
			return err
		}
		name := cfg.Services[i].Name
		if seen[name] {
			return NewValidationError("service", name, "name",
				fmt.Errorf("%w: duplicate service name", ErrInvalidValue))
		}
		seen[name] = true
	}

	return ValidateThresholds(&cfg.Thresholds)
}

// ValidateThresholds checks the latency threshold document. Used at startup
// and when the config API replaces the thresholds.
func ValidateThresholds(t *pulse.Thresholds) error {
	if t.Default.Healthy.Max <= 0 {
		return NewValidationError("thresholds", "default", "healthy.max", ErrMissingRequiredField)
	}
	if t.Default.Warning.Max <= t.Default.Healthy.Max {
		return NewValidationError("thresholds", "default", "warning.max",
			fmt.Errorf("%w: must exceed healthy.max", ErrInvalidValue))
	}
	return nil
}

// ValidateService checks a single service descriptor. Used both at startup
// and when the config API replaces the service list.
func ValidateService(svc *ServiceConfig) error {
	if svc.Name == "" {
		return NewValidationError("service", "(unnamed)", "name", ErrMissingRequiredField)
	}
	if svc.URL == "" {
		return NewValidationError("service", svc.Name, "url", ErrMissingRequiredField)
	}
	if u, err := url.Parse(svc.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return NewValidationError("service", svc.Name, "url",
			fmt.Errorf("%w: not an absolute URL", ErrInvalidValue))
	}
	if _, err := pulse.ParseTier(string(svc.Tier)); err != nil {
		return NewValidationError("service", svc.Name, "tier",
			fmt.Errorf("%w: %v", ErrInvalidValue, err))
	}
	for i := range svc.Checks {
		check := &svc.Checks[i]
		if check.Name == "" {
			return NewValidationError("service", svc.Name, "checks.name", ErrMissingRequiredField)
		}
		if !KnownStrategy(check.Strategy) {
			return NewValidationError("service", svc.Name, "checks.strategy",
				fmt.Errorf("%w: unknown strategy %q", ErrInvalidValue, check.Strategy))
		}
		if check.TimeoutMS < 0 {
			return NewValidationError("service", svc.Name, "checks.timeout",
				fmt.Errorf("%w: must be positive", ErrInvalidValue))
		}
	}
	return nil
}
