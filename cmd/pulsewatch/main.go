// Pulsewatch monitoring server: probes configured GraphQL services on a
// heartbeat schedule, tracks per-service health state, and serves the REST
// API plus the live WebSocket feed.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pulsewatch/pulsewatch/pkg/alerts"
	"github.com/pulsewatch/pulsewatch/pkg/api"
	"github.com/pulsewatch/pulsewatch/pkg/broadcast"
	"github.com/pulsewatch/pulsewatch/pkg/bus"
	"github.com/pulsewatch/pulsewatch/pkg/config"
	"github.com/pulsewatch/pulsewatch/pkg/logstore"
	"github.com/pulsewatch/pulsewatch/pkg/probe"
	"github.com/pulsewatch/pulsewatch/pkg/pulse"
	"github.com/pulsewatch/pulsewatch/pkg/scheduler"
	"github.com/pulsewatch/pulsewatch/pkg/state"
	"github.com/pulsewatch/pulsewatch/pkg/version"
)

const shutdownTimeout = 10 * time.Second

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Parse command-line flags
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting pulsewatch",
		"version", version.Full(),
		"config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Configuration loaded", "services", len(cfg.Services))

	// 2. Core wiring: event bus, evaluator, probe engine
	eventBus := bus.New()
	evaluator := pulse.NewEvaluator(cfg.Thresholds)
	strategies := probe.NewRegistry(&http.Client{})
	engine := probe.NewEngine(eventBus, evaluator, strategies)

	// 3. State tracker
	tierFor := func(service string) pulse.Tier {
		if svc := cfg.Service(service); svc != nil {
			return svc.Tier
		}
		return pulse.TierStandard
	}
	tracker := state.NewTracker(eventBus, evaluator, tierFor)
	tracker.Start()

	// 4. Log store (fatal if the directory cannot be created)
	store, err := logstore.New(cfg.App.Monitoring.LogPath,
		cfg.App.Monitoring.Retention(), eventBus)
	if err != nil {
		slog.Error("Failed to initialize log store", "error", err)
		os.Exit(1)
	}
	store.Start()

	// 5. Alerts and live feed
	alertMgr := alerts.NewManager(eventBus, cfg.App.Alerts.Audio)
	alertMgr.Start()

	hub := broadcast.NewHub(eventBus)
	hub.Start()

	// 6. Scheduler (before the HTTP servers so probes flow immediately)
	sched := scheduler.New(eventBus, engine, cfg.Services)
	sched.Start(ctx)

	// 7. HTTP servers: REST API and WebSocket feed on separate ports
	apiServer := api.NewServer(cfg, evaluator, tracker, sched, store, alertMgr, hub)
	wsServer := api.NewWSServer(hub)

	errCh := make(chan error, 2)
	go func() {
		addr := ":" + getEnv("PORT", strconv.Itoa(cfg.App.Server.Port))
		if err := apiServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("API server error", "error", err)
			errCh <- err
		}
	}()
	go func() {
		addr := ":" + getEnv("WEBSOCKET_PORT", strconv.Itoa(cfg.App.Server.WebsocketPort))
		if err := wsServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("WebSocket server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Pulsewatch started successfully",
		"api_port", cfg.App.Server.Port,
		"ws_port", cfg.App.Server.WebsocketPort)

	// 8. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	exitCode := 0
	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
		exitCode = 1
	}

	// 9. Graceful shutdown: stop producing probes first, then drain the
	// HTTP surfaces, then detach the consumers.
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	schedDone := make(chan struct{})
	go func() {
		sched.Stop()
		close(schedDone)
	}()
	select {
	case <-schedDone:
		slog.Info("Scheduler stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("Scheduler shutdown timeout exceeded")
	}

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server shutdown error", "error", err)
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("WebSocket server shutdown error", "error", err)
	}

	hub.Stop()
	alertMgr.Stop()
	store.Stop()
	tracker.Stop()

	slog.Info("Shutdown complete")
	os.Exit(exitCode)
}
