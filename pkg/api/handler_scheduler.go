package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
)

// updateIntervalRequest is the body for POST /api/scheduler/interval/:name.
type updateIntervalRequest struct {
	Interval int `json:"interval"` // seconds
}

// schedulerStatusHandler handles GET /api/scheduler.
func (s *Server) schedulerStatusHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"running": s.sched.Running(),
		"jobs":    s.sched.Statuses(),
	})
}

// pauseServiceHandler handles POST /api/scheduler/pause/:name.
func (s *Server) pauseServiceHandler(c *echo.Context) error {
	name := c.Param("name")
	if err := s.sched.PauseService(name); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"service": name, "paused": true})
}

// resumeServiceHandler handles POST /api/scheduler/resume/:name.
func (s *Server) resumeServiceHandler(c *echo.Context) error {
	name := c.Param("name")
	if err := s.sched.ResumeService(name); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"service": name, "paused": false})
}

// updateIntervalHandler handles POST /api/scheduler/interval/:name. The new
// interval takes effect at each job's next tick.
func (s *Server) updateIntervalHandler(c *echo.Context) error {
	name := c.Param("name")

	var req updateIntervalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Interval <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "interval must be a positive number of seconds")
	}

	if err := s.sched.UpdateInterval(name, time.Duration(req.Interval)*time.Second); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"service":  name,
		"interval": req.Interval,
	})
}
