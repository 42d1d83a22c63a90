// Package api exposes the REST control surface and the WebSocket listener.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/pulsewatch/pulsewatch/pkg/alerts"
	"github.com/pulsewatch/pulsewatch/pkg/broadcast"
	"github.com/pulsewatch/pulsewatch/pkg/config"
	"github.com/pulsewatch/pulsewatch/pkg/logstore"
	"github.com/pulsewatch/pulsewatch/pkg/pulse"
	"github.com/pulsewatch/pulsewatch/pkg/scheduler"
	"github.com/pulsewatch/pulsewatch/pkg/state"
)

// Server is the REST API server.
type Server struct {
	cfg       *config.Config
	evaluator *pulse.Evaluator
	tracker   *state.Tracker
	sched     *scheduler.Scheduler
	store     *logstore.Store
	alerts    *alerts.Manager
	hub       *broadcast.Hub
	logger    *slog.Logger

	startTime time.Time
	echo      *echo.Echo
	http      *http.Server
}

// NewServer wires the REST routes over the given components.
func NewServer(
	cfg *config.Config,
	evaluator *pulse.Evaluator,
	tracker *state.Tracker,
	sched *scheduler.Scheduler,
	store *logstore.Store,
	alertMgr *alerts.Manager,
	hub *broadcast.Hub,
) *Server {
	s := &Server{
		cfg:       cfg,
		evaluator: evaluator,
		tracker:   tracker,
		sched:     sched,
		store:     store,
		alerts:    alertMgr,
		hub:       hub,
		logger:    slog.Default(),
		startTime: time.Now(),
	}
	s.echo = s.routes()
	return s
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.Use(corsHeaders())

	api := e.Group("/api")
	api.GET("/health", s.healthHandler)

	api.GET("/services", s.listServicesHandler)
	api.GET("/services/:name", s.getServiceHandler)
	api.POST("/services/:name/check", s.triggerCheckHandler)
	api.GET("/history/:name", s.historyHandler)

	api.GET("/config", s.getConfigHandler)
	api.GET("/config/services", s.getConfigServicesHandler)
	api.GET("/config/thresholds", s.getConfigThresholdsHandler)
	api.GET("/config/audio", s.getConfigAudioHandler)
	api.POST("/config/services", s.updateServicesHandler)
	api.POST("/config/thresholds", s.updateThresholdsHandler)

	api.GET("/alerts", s.listAlertsHandler)
	api.POST("/alerts/mute/:name", s.muteAlertsHandler)
	api.POST("/alerts/unmute/:name", s.unmuteAlertsHandler)

	api.GET("/scheduler", s.schedulerStatusHandler)
	api.POST("/scheduler/pause/:name", s.pauseServiceHandler)
	api.POST("/scheduler/resume/:name", s.resumeServiceHandler)
	api.POST("/scheduler/interval/:name", s.updateIntervalHandler)

	return e
}

// Handler exposes the underlying router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start begins serving on addr. Blocks until the listener closes.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server listening", "addr", addr)
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
