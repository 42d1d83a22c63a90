package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/pulsewatch/pulsewatch/pkg/version"
)

// healthHandler handles GET /api/health.
func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "healthy",
		"version":     version.Full(),
		"uptime":      int64(time.Since(s.startTime).Seconds()),
		"timestamp":   time.Now(),
		"services":    len(s.cfg.Services),
		"connections": s.hub.ActiveConnections(),
	})
}
