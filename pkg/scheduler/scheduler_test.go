package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/pulsewatch/pkg/bus"
	"github.com/pulsewatch/pulsewatch/pkg/config"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	block chan struct{} // when non-nil, RunProbe blocks until closed
	count atomic.Int64
}

func (f *fakeRunner) RunProbe(ctx context.Context, svc *config.ServiceConfig, check *config.CheckConfig) bus.HeartbeatResult {
	f.count.Add(1)
	f.mu.Lock()
	f.calls = append(f.calls, svc.Name+"/"+check.Name)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return bus.HeartbeatResult{Service: svc.Name, Check: check.Name, Success: true}
}

func (f *fakeRunner) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func testServices() []config.ServiceConfig {
	return []config.ServiceConfig{
		{
			Name: "alpha", URL: "http://localhost:1", HeartbeatIntervalSec: 30,
			Checks: []config.CheckConfig{
				{Name: "basic", Strategy: config.StrategyBasic},
				{Name: "deep", Strategy: config.StrategyQuery},
			},
		},
		{
			Name: "beta", URL: "http://localhost:2", HeartbeatIntervalSec: 60,
			Checks: []config.CheckConfig{
				{Name: "basic", Strategy: config.StrategyBasic},
			},
		},
	}
}

func TestSchedulerRunsInitialProbes(t *testing.T) {
	runner := &fakeRunner{}
	s := New(bus.New(), runner, testServices())

	s.Start(context.Background())
	defer s.Stop()

	// First runs fire roughly one second after start.
	require.Eventually(t, func() bool {
		return runner.count.Load() >= 3
	}, 3*time.Second, 20*time.Millisecond)

	assert.ElementsMatch(t, []string{"alpha/basic", "alpha/deep", "beta/basic"},
		runner.snapshot()[:3])
}

func TestTriggerCheckRunsAllChecksImmediately(t *testing.T) {
	runner := &fakeRunner{}
	s := New(bus.New(), runner, testServices())

	results, err := s.TriggerCheck(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.ElementsMatch(t, []string{"alpha/basic", "alpha/deep"}, runner.snapshot())
}

func TestTriggerCheckUnknownService(t *testing.T) {
	s := New(bus.New(), &fakeRunner{}, testServices())

	_, err := s.TriggerCheck(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrServiceNotFound)
}

func TestTriggerCheckSkipsInFlightProbe(t *testing.T) {
	block := make(chan struct{})
	runner := &fakeRunner{block: block}
	s := New(bus.New(), runner, testServices())

	// Occupy beta's only job.
	firstDone := make(chan struct{})
	go func() {
		_, _ = s.TriggerCheck(context.Background(), "beta")
		close(firstDone)
	}()
	require.Eventually(t, func() bool {
		return runner.count.Load() == 1
	}, time.Second, 10*time.Millisecond)

	// Second trigger must skip the in-flight check rather than queue behind it.
	results, err := s.TriggerCheck(context.Background(), "beta")
	require.NoError(t, err)
	assert.Empty(t, results)

	close(block)
	<-firstDone
}

func TestUpdateIntervalPublishesConfigUpdated(t *testing.T) {
	b := bus.New()
	var got []bus.ConfigUpdated
	b.Subscribe(bus.EventConfigUpdated, func(payload any) {
		got = append(got, payload.(bus.ConfigUpdated))
	})

	s := New(b, &fakeRunner{}, testServices())
	require.NoError(t, s.UpdateInterval("alpha", 10*time.Second))

	require.Len(t, got, 1)
	assert.Equal(t, "alpha", got[0].Service)
	assert.Equal(t, "heartbeatInterval", got[0].Field)
	assert.Equal(t, 10, got[0].Value)

	for _, js := range s.Statuses() {
		if js.Service == "alpha" {
			assert.Equal(t, 10, js.Interval)
		}
	}
}

func TestUpdateIntervalValidation(t *testing.T) {
	s := New(bus.New(), &fakeRunner{}, testServices())
	assert.Error(t, s.UpdateInterval("alpha", 0))
	assert.ErrorIs(t, s.UpdateInterval("nope", time.Second), ErrServiceNotFound)
}

func TestPauseAndResume(t *testing.T) {
	s := New(bus.New(), &fakeRunner{}, testServices())

	require.NoError(t, s.PauseService("alpha"))
	for _, js := range s.Statuses() {
		if js.Service == "alpha" {
			assert.True(t, js.Paused)
		} else {
			assert.False(t, js.Paused)
		}
	}

	require.NoError(t, s.ResumeService("alpha"))
	for _, js := range s.Statuses() {
		assert.False(t, js.Paused)
	}

	assert.ErrorIs(t, s.PauseService("nope"), ErrServiceNotFound)
}

func TestStatusesListsEveryJob(t *testing.T) {
	s := New(bus.New(), &fakeRunner{}, testServices())

	statuses := s.Statuses()
	require.Len(t, statuses, 3)

	keys := make([]string, len(statuses))
	for i, js := range statuses {
		keys[i] = js.Service + "/" + js.Check
	}
	assert.ElementsMatch(t, []string{"alpha/basic", "alpha/deep", "beta/basic"}, keys)
}

func TestReloadReplacesJobs(t *testing.T) {
	s := New(bus.New(), &fakeRunner{}, testServices())

	s.Reload([]config.ServiceConfig{
		{
			Name: "gamma", URL: "http://localhost:3",
			Checks: []config.CheckConfig{{Name: "basic", Strategy: config.StrategyBasic}},
		},
	})

	statuses := s.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, "gamma", statuses[0].Service)
}

func TestStopWaitsForJobs(t *testing.T) {
	runner := &fakeRunner{}
	s := New(bus.New(), runner, testServices())
	s.Start(context.Background())
	s.Stop()

	// Idempotent.
	s.Stop()
	count := runner.count.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, count, runner.count.Load())
}
