package api

import (
	"fmt"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/pulsewatch/pulsewatch/pkg/config"
	"github.com/pulsewatch/pulsewatch/pkg/pulse"
)

// getConfigHandler handles GET /api/config.
func (s *Server) getConfigHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"services":   s.cfg.Services,
		"thresholds": s.cfg.Thresholds,
		"server":     s.cfg.App.Server,
		"monitoring": s.cfg.App.Monitoring,
		"alerts":     s.cfg.App.Alerts,
	})
}

// getConfigServicesHandler handles GET /api/config/services.
func (s *Server) getConfigServicesHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, config.ServicesFile{Services: s.cfg.Services})
}

// getConfigThresholdsHandler handles GET /api/config/thresholds.
func (s *Server) getConfigThresholdsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.cfg.Thresholds)
}

// getConfigAudioHandler handles GET /api/config/audio.
func (s *Server) getConfigAudioHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.cfg.App.Alerts.Audio)
}

// updateServicesHandler handles POST /api/config/services. The new list is
// validated, persisted, and applied live: the scheduler rebuilds its jobs and
// state for removed services is dropped.
func (s *Server) updateServicesHandler(c *echo.Context) error {
	var req config.ServicesFile
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := s.cfg.SaveServices(req.Services); err != nil {
		return mapServiceError(err)
	}

	s.sched.Reload(s.cfg.Services)
	s.tracker.Retain(s.cfg.ServiceNames())

	s.logger.Info("Service configuration replaced",
		"services", len(s.cfg.Services))
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("saved %d services", len(s.cfg.Services)),
	})
}

// updateThresholdsHandler handles POST /api/config/thresholds. Thresholds
// apply atomically to subsequent probe classifications; no restart needed.
func (s *Server) updateThresholdsHandler(c *echo.Context) error {
	var req pulse.Thresholds
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := s.cfg.SaveThresholds(req); err != nil {
		return mapServiceError(err)
	}
	s.evaluator.SetThresholds(req)

	s.logger.Info("Thresholds replaced")
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "updated",
		"timestamp": time.Now(),
	})
}
