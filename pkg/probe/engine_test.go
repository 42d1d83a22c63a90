package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/pulsewatch/pkg/bus"
	"github.com/pulsewatch/pulsewatch/pkg/config"
	"github.com/pulsewatch/pulsewatch/pkg/pulse"
)

func testEvaluator() *pulse.Evaluator {
	var th pulse.Thresholds
	th.Default.Healthy.Max = 500
	th.Default.Warning.Max = 2000
	return pulse.NewEvaluator(th)
}

// collect records every publication of the given events.
func collect(b *bus.Bus, events ...string) *[]bus.HistoryEntry {
	var got []bus.HistoryEntry
	for _, evt := range events {
		evt := evt
		b.Subscribe(evt, func(payload any) {
			got = append(got, bus.HistoryEntry{Event: evt, Payload: payload})
		})
	}
	return &got
}

func TestRunProbeSuccessPublishesHeartbeatReceived(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"__typename":"Query"}}`))
	}))
	defer srv.Close()

	b := bus.New()
	got := collect(b, bus.EventHeartbeatSent, bus.EventHeartbeatReceived, bus.EventHeartbeatFailed)

	e := NewEngine(b, testEvaluator(), NewRegistry(srv.Client()))
	svc := testService(srv.URL)
	check := &config.CheckConfig{Name: "Basic Health", Strategy: config.StrategyBasic}

	hb := e.RunProbe(context.Background(), svc, check)

	assert.True(t, hb.Success)
	assert.Equal(t, "svc", hb.Service)
	assert.Equal(t, "Basic Health", hb.Check)
	assert.Equal(t, pulse.StatusHealthy, hb.Pulse.Status)

	require.Len(t, *got, 2)
	assert.Equal(t, bus.EventHeartbeatSent, (*got)[0].Event)
	assert.Equal(t, bus.EventHeartbeatReceived, (*got)[1].Event)
}

func TestRunProbeFailurePublishesHeartbeatFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{}`)) // valid JSON, wrong status
	}))
	defer srv.Close()

	b := bus.New()
	got := collect(b, bus.EventHeartbeatReceived, bus.EventHeartbeatFailed)

	e := NewEngine(b, testEvaluator(), NewRegistry(srv.Client()))
	hb := e.RunProbe(context.Background(), testService(srv.URL),
		&config.CheckConfig{Name: "c", Strategy: config.StrategyBasic})

	assert.False(t, hb.Success)
	assert.True(t, hb.HasResponse)
	assert.Equal(t, http.StatusInternalServerError, hb.HTTPStatus)

	require.Len(t, *got, 1)
	assert.Equal(t, bus.EventHeartbeatFailed, (*got)[0].Event)
}

func TestRunProbeUnknownStrategy(t *testing.T) {
	b := bus.New()
	got := collect(b, bus.EventHeartbeatFailed)

	e := NewEngine(b, testEvaluator(), NewRegistry(nil))
	hb := e.RunProbe(context.Background(), testService("http://localhost:1"),
		&config.CheckConfig{Name: "c", Strategy: "bogus"})

	assert.False(t, hb.Success)
	assert.Equal(t, pulse.StatusFlatline, hb.Pulse.Status)
	assert.Contains(t, hb.Error, `unknown strategy "bogus"`)
	require.Len(t, *got, 1)
}

type panickingStrategy struct{}

func (panickingStrategy) Probe(context.Context, *config.ServiceConfig, *config.CheckConfig) Result {
	panic("strategy bug")
}

func TestRunProbeStrategyPanicBecomesFlatlineFailure(t *testing.T) {
	b := bus.New()
	got := collect(b, bus.EventHeartbeatFailed)

	reg := NewRegistry(nil)
	reg.Register("panicky", panickingStrategy{})

	e := NewEngine(b, testEvaluator(), reg)

	var hb bus.HeartbeatResult
	assert.NotPanics(t, func() {
		hb = e.RunProbe(context.Background(), testService("http://localhost:1"),
			&config.CheckConfig{Name: "c", Strategy: "panicky"})
	})

	assert.False(t, hb.Success)
	assert.False(t, hb.HasResponse)
	assert.Equal(t, pulse.StatusFlatline, hb.Pulse.Status)
	assert.Contains(t, hb.Error, "strategy panic")
	require.Len(t, *got, 1)
}
