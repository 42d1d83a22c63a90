// Package logstore persists per-service, per-day heartbeat logs as flat JSON
// files and serves time-windowed history queries from them.
package logstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/pulsewatch/pulsewatch/pkg/bus"
	"github.com/pulsewatch/pulsewatch/pkg/pulse"
)

const dateLayout = "2006-01-02"

var whitespaceRe = regexp.MustCompile(`\s+`)

// HeartbeatRecord is one probe outcome as persisted to the day log.
type HeartbeatRecord struct {
	Timestamp    time.Time    `json:"timestamp"`
	Check        string       `json:"check"`
	Status       pulse.Status `json:"status"`
	ResponseTime int64        `json:"responseTime"`
	Success      bool         `json:"success"`
	HTTPStatus   int          `json:"httpStatus,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// EventRecord is a lifecycle event (flatline, recovery) in the day log.
type EventRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
}

// DaySummary is the aggregate block recomputed on every append.
type DaySummary struct {
	CheckCount      int     `json:"checkCount"`
	SuccessCount    int     `json:"successCount"`
	FailureCount    int     `json:"failureCount"`
	AvgResponseTime float64 `json:"avgResponseTime"`
	Uptime          float64 `json:"uptime"`
}

// DayLog is the on-disk document: one service, one calendar day.
type DayLog struct {
	Service    string            `json:"service"`
	Date       string            `json:"date"`
	Heartbeats []HeartbeatRecord `json:"heartbeats"`
	Events     []EventRecord     `json:"events"`
	Summary    DaySummary        `json:"summary"`
}

// Store owns the log directory. Day logs are cached in memory and written
// through to disk on every append.
type Store struct {
	dir       string
	retention time.Duration
	bus       *bus.Bus
	logger    *slog.Logger

	mu    sync.Mutex
	cache map[string]*DayLog // keyed by file path

	subs   []bus.Subscription
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, retention time.Duration, b *bus.Bus) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	return &Store{
		dir:       dir,
		retention: retention,
		bus:       b,
		logger:    slog.Default(),
		cache:     make(map[string]*DayLog),
	}, nil
}

// Start subscribes to probe and lifecycle events and launches the rotation
// loop. Idempotent.
func (s *Store) Start() {
	if len(s.subs) > 0 {
		return
	}

	onHeartbeat := func(payload any) {
		if hb, ok := payload.(bus.HeartbeatResult); ok {
			s.AppendHeartbeat(hb)
		}
	}
	s.subs = append(s.subs,
		s.bus.Subscribe(bus.EventHeartbeatReceived, onHeartbeat),
		s.bus.Subscribe(bus.EventHeartbeatFailed, onHeartbeat),
		s.bus.Subscribe(bus.EventFlatlineDetected, func(payload any) {
			if ev, ok := payload.(bus.FlatlineDetected); ok {
				s.AppendEvent(ev.Service, ev.Timestamp, "flatline",
					fmt.Sprintf("flatlined after %d consecutive failures (%s)",
						ev.ConsecutiveFailures, ev.Severity))
			}
		}),
		s.bus.Subscribe(bus.EventServiceRecovered, func(payload any) {
			if ev, ok := payload.(bus.ServiceRecovered); ok {
				s.AppendEvent(ev.Service, ev.Timestamp, "recovery",
					fmt.Sprintf("recovered after %s down",
						time.Duration(ev.Downtime)*time.Millisecond))
			}
		}),
	)

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.rotateLoop()
}

// Stop removes bus subscriptions and stops the rotation loop.
func (s *Store) Stop() {
	for _, sub := range s.subs {
		s.bus.Unsubscribe(sub)
	}
	s.subs = nil
	if s.stopCh != nil {
		close(s.stopCh)
		<-s.doneCh
		s.stopCh = nil
	}
}

// logPath builds the day-log file path. Whitespace in the service name is
// collapsed to underscores so names stay shell-friendly.
func (s *Store) logPath(service string, day time.Time) string {
	name := whitespaceRe.ReplaceAllString(service, "_")
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.json", name, day.Format(dateLayout)))
}

// freshDayLog builds an empty day document. The summary starts at the
// zero-sample aggregate so a never-probed day reports full uptime.
func freshDayLog(service string, day time.Time) *DayLog {
	return &DayLog{
		Service: service,
		Date:    day.Format(dateLayout),
		Summary: summarize(nil),
	}
}

// load returns the day log for (service, day), from cache, then disk, then
// a fresh empty document. Caller holds s.mu.
func (s *Store) load(service string, day time.Time) *DayLog {
	path := s.logPath(service, day)
	if dl, ok := s.cache[path]; ok {
		return dl
	}

	dl := freshDayLog(service, day)
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if uerr := json.Unmarshal(raw, dl); uerr != nil {
			s.logger.Error("Corrupt day log, starting fresh",
				"path", path, "error", uerr)
			dl = freshDayLog(service, day)
		}
	case !errors.Is(err, fs.ErrNotExist):
		s.logger.Error("Failed to read day log", "path", path, "error", err)
	}

	s.cache[path] = dl
	return dl
}

// flush writes the day log through to disk. Caller holds s.mu.
func (s *Store) flush(dl *DayLog, day time.Time) {
	path := s.logPath(dl.Service, day)
	raw, err := json.MarshalIndent(dl, "", "  ")
	if err != nil {
		s.logger.Error("Failed to encode day log", "path", path, "error", err)
		return
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		s.logger.Error("Failed to write day log", "path", path, "error", err)
	}
}

// AppendHeartbeat records one probe outcome and recomputes the day summary.
func (s *Store) AppendHeartbeat(hb bus.HeartbeatResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dl := s.load(hb.Service, hb.Timestamp)
	dl.Heartbeats = append(dl.Heartbeats, HeartbeatRecord{
		Timestamp:    hb.Timestamp,
		Check:        hb.Check,
		Status:       hb.Pulse.Status,
		ResponseTime: hb.ResponseTime,
		Success:      hb.Success,
		HTTPStatus:   hb.HTTPStatus,
		Error:        hb.Error,
	})
	dl.Summary = summarize(dl.Heartbeats)
	s.flush(dl, hb.Timestamp)
}

// AppendEvent records a lifecycle event in the service's day log.
func (s *Store) AppendEvent(service string, ts time.Time, kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dl := s.load(service, ts)
	dl.Events = append(dl.Events, EventRecord{
		Timestamp: ts,
		Type:      kind,
		Message:   message,
	})
	s.flush(dl, ts)
}

// summarize recomputes the aggregate block. An empty day reports 100%
// uptime rather than zero, and the latency average covers only successful
// heartbeats that carry a positive latency.
func summarize(hbs []HeartbeatRecord) DaySummary {
	sum := DaySummary{Uptime: 100}
	if len(hbs) == 0 {
		return sum
	}

	var totalLatency int64
	var latencySamples int
	for _, hb := range hbs {
		sum.CheckCount++
		if hb.Success {
			sum.SuccessCount++
			if hb.ResponseTime > 0 {
				totalLatency += hb.ResponseTime
				latencySamples++
			}
		} else {
			sum.FailureCount++
		}
	}
	if latencySamples > 0 {
		sum.AvgResponseTime = float64(totalLatency) / float64(latencySamples)
	}
	sum.Uptime = float64(sum.SuccessCount) / float64(sum.CheckCount) * 100
	return sum
}

// History returns a service's heartbeats from the last `hours` hours,
// oldest first, stitched together across day-log boundaries.
func (s *Store) History(service string, hours int) []HeartbeatRecord {
	if hours <= 0 {
		hours = 24
	}
	now := time.Now()
	cutoff := now.Add(-time.Duration(hours) * time.Hour)
	days := (hours + 23) / 24

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []HeartbeatRecord
	for d := days; d >= 0; d-- {
		day := now.AddDate(0, 0, -d)
		if day.Before(cutoff.AddDate(0, 0, -1)) {
			continue
		}
		dl := s.load(service, day)
		for _, hb := range dl.Heartbeats {
			if !hb.Timestamp.Before(cutoff) {
				out = append(out, hb)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Summary returns today's aggregate block for a service.
func (s *Store) Summary(service string) DaySummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(service, time.Now()).Summary
}
