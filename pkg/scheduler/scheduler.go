// Package scheduler owns the probe cadence: one goroutine per
// (service, check) pair, firing on the service's heartbeat interval with a
// short initial delay so the dashboard populates quickly after startup.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pulsewatch/pulsewatch/pkg/bus"
	"github.com/pulsewatch/pulsewatch/pkg/config"
)

// initialDelay spaces the very first probe away from process start so the
// rest of the wiring is listening before heartbeats flow.
const initialDelay = time.Second

// ErrServiceNotFound is returned when an operation names a service the
// scheduler is not running jobs for.
var ErrServiceNotFound = fmt.Errorf("scheduler: service not found")

// Runner executes a single probe. Satisfied by *probe.Engine.
type Runner interface {
	RunProbe(ctx context.Context, svc *config.ServiceConfig, check *config.CheckConfig) bus.HeartbeatResult
}

// JobStatus describes one scheduled (service, check) job.
type JobStatus struct {
	Service  string    `json:"service"`
	Check    string    `json:"check"`
	Interval int       `json:"interval"` // seconds
	Paused   bool      `json:"paused"`
	NextRun  time.Time `json:"nextRun"`
}

// Scheduler runs the periodic probe jobs.
type Scheduler struct {
	bus    *bus.Bus
	runner Runner
	logger *slog.Logger

	mu      sync.Mutex
	jobs    map[string]*job // keyed by service + "/" + check
	started bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type job struct {
	svc   config.ServiceConfig
	check config.CheckConfig

	mu       sync.Mutex
	interval time.Duration
	paused   bool
	nextRun  time.Time

	inFlight atomic.Bool
	stop     chan struct{}
}

func jobKey(service, check string) string { return service + "/" + check }

func (j *job) currentInterval() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.interval
}

func (j *job) isPaused() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.paused
}

func (j *job) setNext(t time.Time) {
	j.mu.Lock()
	j.nextRun = t
	j.mu.Unlock()
}

// New creates a Scheduler over the given service configs.
func New(b *bus.Bus, runner Runner, services []config.ServiceConfig) *Scheduler {
	s := &Scheduler{
		bus:    b,
		runner: runner,
		logger: slog.Default(),
		jobs:   make(map[string]*job),
	}
	s.addJobs(services)
	return s
}

// addJobs registers jobs for the given services.
func (s *Scheduler) addJobs(services []config.ServiceConfig) {
	for _, svc := range services {
		for _, check := range svc.Checks {
			j := &job{
				svc:      svc,
				check:    check,
				interval: svc.Interval(),
				stop:     make(chan struct{}),
			}
			s.jobs[jobKey(svc.Name, check.Name)] = j
		}
	}
}

// Start launches one goroutine per job. Idempotent.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	s.runCtx, s.cancel = context.WithCancel(ctx)
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.runJob(s.runCtx, j)
	}
	s.logger.Info("Scheduler started", "jobs", len(s.jobs))
}

// Running reports whether the scheduler has been started and not stopped.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Stop cancels all jobs and waits for in-flight probes to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// runJob is the per-job loop: initial short delay, then the service's
// heartbeat interval. Interval changes take effect at the next tick.
func (s *Scheduler) runJob(ctx context.Context, j *job) {
	defer s.wg.Done()

	delay := initialDelay
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		j.setNext(time.Now().Add(delay))
		select {
		case <-ctx.Done():
			return
		case <-j.stop:
			return
		case <-timer.C:
			if !j.isPaused() {
				s.execute(ctx, j)
			}
			delay = j.currentInterval()
			timer.Reset(delay)
		}
	}
}

// execute runs one probe unless the same (service, check) is already in
// flight, in which case the tick is skipped rather than queued.
func (s *Scheduler) execute(ctx context.Context, j *job) {
	if !j.inFlight.CompareAndSwap(false, true) {
		s.logger.Warn("Probe still in flight, skipping tick",
			"service", j.svc.Name, "check", j.check.Name)
		return
	}
	defer j.inFlight.Store(false)
	s.runner.RunProbe(ctx, &j.svc, &j.check)
}

// UpdateInterval changes a service's heartbeat interval for all its checks.
// The new interval applies from each job's next tick. Publishes
// config_updated.
func (s *Scheduler) UpdateInterval(service string, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("scheduler: interval must be positive, got %s", interval)
	}

	s.mu.Lock()
	found := false
	for _, j := range s.jobs {
		if j.svc.Name != service {
			continue
		}
		found = true
		j.mu.Lock()
		j.interval = interval
		j.mu.Unlock()
	}
	s.mu.Unlock()

	if !found {
		return fmt.Errorf("%w: %s", ErrServiceNotFound, service)
	}

	s.bus.Publish(bus.EventConfigUpdated, bus.ConfigUpdated{
		Service:   service,
		Field:     "heartbeatInterval",
		Value:     int(interval / time.Second),
		Timestamp: time.Now(),
	})
	s.logger.Info("Heartbeat interval updated",
		"service", service, "interval", interval)
	return nil
}

// PauseService stops scheduled probes for a service. Ticks still fire but
// are skipped, so resuming needs no goroutine bookkeeping.
func (s *Scheduler) PauseService(service string) error {
	return s.setPaused(service, true)
}

// ResumeService re-enables scheduled probes for a service.
func (s *Scheduler) ResumeService(service string) error {
	return s.setPaused(service, false)
}

func (s *Scheduler) setPaused(service string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, j := range s.jobs {
		if j.svc.Name != service {
			continue
		}
		found = true
		j.mu.Lock()
		j.paused = paused
		j.mu.Unlock()
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrServiceNotFound, service)
	}
	s.logger.Info("Service schedule changed", "service", service, "paused", paused)
	return nil
}

// TriggerCheck runs all of a service's checks immediately and concurrently,
// outside the normal cadence. Checks whose scheduled probe is currently in
// flight are skipped. The scheduled timers are not disturbed.
func (s *Scheduler) TriggerCheck(ctx context.Context, service string) ([]bus.HeartbeatResult, error) {
	s.mu.Lock()
	var jobs []*job
	for _, j := range s.jobs {
		if j.svc.Name == service {
			jobs = append(jobs, j)
		}
	}
	s.mu.Unlock()

	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, service)
	}

	var (
		resMu   sync.Mutex
		results []bus.HeartbeatResult
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		g.Go(func() error {
			if !j.inFlight.CompareAndSwap(false, true) {
				s.logger.Warn("Probe in flight, manual trigger skipped",
					"service", j.svc.Name, "check", j.check.Name)
				return nil
			}
			defer j.inFlight.Store(false)

			hb := s.runner.RunProbe(gctx, &j.svc, &j.check)
			resMu.Lock()
			results = append(results, hb)
			resMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Reload replaces the job set with one built from the given services. Jobs
// for removed services stop; existing and new services start fresh loops.
func (s *Scheduler) Reload(services []config.ServiceConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, j := range s.jobs {
		close(j.stop)
	}
	s.jobs = make(map[string]*job)
	s.addJobs(services)

	if s.started {
		for _, j := range s.jobs {
			s.wg.Add(1)
			go s.runJob(s.runCtx, j)
		}
	}
	s.logger.Info("Scheduler reloaded", "jobs", len(s.jobs))
}

// Statuses returns a snapshot of every job, for the scheduler endpoint.
func (s *Scheduler) Statuses() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		j.mu.Lock()
		out = append(out, JobStatus{
			Service:  j.svc.Name,
			Check:    j.check.Name,
			Interval: int(j.interval / time.Second),
			Paused:   j.paused,
			NextRun:  j.nextRun,
		})
		j.mu.Unlock()
	}
	return out
}
