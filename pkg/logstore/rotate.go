package logstore

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// rotateLoop runs one rotation immediately, then at every local midnight.
func (s *Store) rotateLoop() {
	defer close(s.doneCh)

	s.Rotate(time.Now())
	for {
		now := time.Now()
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
			AddDate(0, 0, 1)
		timer := time.NewTimer(midnight.Sub(now))
		select {
		case <-s.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			s.Rotate(time.Now())
		}
	}
}

// Rotate deletes day-log files whose last modification is older than the
// retention window and evicts them from the cache.
func (s *Store) Rotate(now time.Time) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("Failed to scan log directory", "dir", s.dir, "error", err)
		return
	}

	cutoff := now.Add(-s.retention)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Error("Failed to remove expired day log",
				"path", path, "error", err)
			continue
		}
		s.mu.Lock()
		delete(s.cache, path)
		s.mu.Unlock()
		removed++
	}
	if removed > 0 {
		s.logger.Info("Rotated day logs", "removed", removed)
	}
}
