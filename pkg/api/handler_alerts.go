package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"
)

// listAlertsHandler handles GET /api/alerts?limit=N.
func (s *Server) listAlertsHandler(c *echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	return c.JSON(http.StatusOK, map[string]any{
		"alerts": s.alerts.History(limit),
		"muted":  s.alerts.MutedServices(),
	})
}

// muteAlertsHandler handles POST /api/alerts/mute/:name.
func (s *Server) muteAlertsHandler(c *echo.Context) error {
	name := c.Param("name")
	if s.cfg.Service(name) == nil {
		return echo.NewHTTPError(http.StatusNotFound, "service not found")
	}
	s.alerts.MuteService(name)
	return c.JSON(http.StatusOK, map[string]any{"service": name, "muted": true})
}

// unmuteAlertsHandler handles POST /api/alerts/unmute/:name.
func (s *Server) unmuteAlertsHandler(c *echo.Context) error {
	name := c.Param("name")
	if s.cfg.Service(name) == nil {
		return echo.NewHTTPError(http.StatusNotFound, "service not found")
	}
	s.alerts.UnmuteService(name)
	return c.JSON(http.StatusOK, map[string]any{"service": name, "muted": false})
}
