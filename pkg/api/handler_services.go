package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"
)

// listServicesHandler handles GET /api/services.
func (s *Server) listServicesHandler(c *echo.Context) error {
	states := s.tracker.SnapshotAll()

	out := make([]ServiceSummary, 0, len(s.cfg.Services))
	for i := range s.cfg.Services {
		svc := &s.cfg.Services[i]
		st, tracked := states[svc.Name]
		out = append(out, summarize(svc, st, tracked))
	}
	return c.JSON(http.StatusOK, out)
}

// getServiceHandler handles GET /api/services/:name.
func (s *Server) getServiceHandler(c *echo.Context) error {
	name := c.Param("name")
	svc := s.cfg.Service(name)
	if svc == nil {
		return echo.NewHTTPError(http.StatusNotFound, "service not found")
	}

	st, tracked := s.tracker.Snapshot(name)
	detail := ServiceDetail{
		ServiceSummary:    summarize(svc, st, tracked),
		HeartbeatInterval: int(svc.Interval().Seconds()),
		Checks:            svc.Checks,
		ResponseHistory:   st.ResponseHistory,
		TodaySummary:      s.store.Summary(name),
	}
	return c.JSON(http.StatusOK, detail)
}

// triggerCheckHandler handles POST /api/services/:name/check. Runs all of a
// service's checks immediately and returns their results.
func (s *Server) triggerCheckHandler(c *echo.Context) error {
	name := c.Param("name")

	results, err := s.sched.TriggerCheck(c.Request().Context(), name)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"service": name,
		"results": results,
	})
}

// historyHandler handles GET /api/history/:name?hours=N.
func (s *Server) historyHandler(c *echo.Context) error {
	name := c.Param("name")
	if s.cfg.Service(name) == nil {
		return echo.NewHTTPError(http.StatusNotFound, "service not found")
	}

	hours := 24
	if v := c.QueryParam("hours"); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil || h <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "hours must be a positive integer")
		}
		hours = h
	}

	return c.JSON(http.StatusOK, map[string]any{
		"service": name,
		"hours":   hours,
		"entries": s.store.History(name, hours),
	})
}
