package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pulsewatch/pulsewatch/pkg/bus"
	"github.com/pulsewatch/pulsewatch/pkg/config"
	"github.com/pulsewatch/pulsewatch/pkg/pulse"
)

// Engine orchestrates one probe: it emits the lifecycle events, invokes the
// strategy under the per-check deadline, classifies the outcome, and routes
// it onto the event bus.
type Engine struct {
	bus        *bus.Bus
	evaluator  *pulse.Evaluator
	strategies *Registry
	logger     *slog.Logger
}

// NewEngine creates a probe engine publishing onto b and classifying with
// evaluator.
func NewEngine(b *bus.Bus, evaluator *pulse.Evaluator, strategies *Registry) *Engine {
	return &Engine{
		bus:        b,
		evaluator:  evaluator,
		strategies: strategies,
		logger:     slog.Default(),
	}
}

// RunProbe executes one (service, check) probe and returns the assembled
// heartbeat. The result is also published: heartbeat_received when the probe
// succeeded with HTTP 200, heartbeat_failed otherwise.
func (e *Engine) RunProbe(ctx context.Context, svc *config.ServiceConfig, check *config.CheckConfig) bus.HeartbeatResult {
	e.bus.Publish(bus.EventHeartbeatSent, bus.HeartbeatSent{
		Service:   svc.Name,
		Check:     check.Name,
		Timestamp: time.Now(),
	})

	start := time.Now()

	strategy := e.strategies.Get(check.Strategy)
	if strategy == nil {
		// Unknown strategy is a configuration defect, not an upstream
		// failure; surface it as a flatline-status failure so it is
		// impossible to miss on the dashboard.
		hb := bus.HeartbeatResult{
			Service:   svc.Name,
			Check:     check.Name,
			Timestamp: time.Now(),
			Pulse:     pulse.Pulse{Status: pulse.StatusFlatline},
			Error:     fmt.Sprintf("unknown strategy %q", check.Strategy),
		}
		e.bus.Publish(bus.EventHeartbeatFailed, hb)
		return hb
	}

	probeCtx, cancel := context.WithTimeout(ctx, check.Timeout())
	defer cancel()

	result, panicked := e.invoke(probeCtx, strategy, svc, check)
	latency := time.Since(start).Milliseconds()
	p := e.evaluator.Evaluate(latency, result.Success)
	if panicked {
		p.Status = pulse.StatusFlatline
	}

	hb := bus.HeartbeatResult{
		Service:      svc.Name,
		Check:        check.Name,
		Timestamp:    time.Now(),
		Pulse:        p,
		ResponseTime: latency,
		Success:      result.Success,
		HTTPStatus:   result.HTTPStatus,
		Error:        result.Error,
		HasResponse:  result.HasResponse,
	}

	if result.Success && result.HTTPStatus == http.StatusOK {
		e.bus.Publish(bus.EventHeartbeatReceived, hb)
	} else {
		e.bus.Publish(bus.EventHeartbeatFailed, hb)
	}
	return hb
}

// invoke calls the strategy, converting a panic into a transport-style
// failure so a buggy strategy cannot take down the scheduler loop.
func (e *Engine) invoke(ctx context.Context, s Strategy, svc *config.ServiceConfig, check *config.CheckConfig) (result Result, panicked bool) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("Probe strategy panicked",
				"service", svc.Name, "check", check.Name, "panic", rec)
			result = failure(fmt.Sprintf("strategy panic: %v", rec))
			panicked = true
		}
	}()
	return s.Probe(ctx, svc, check), false
}
