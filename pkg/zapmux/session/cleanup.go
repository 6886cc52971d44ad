package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// TeardownError reports a cache directory that survived every removal
// attempt during session deletion.
type TeardownError struct {
	SessionID string
	Dir       string
	Attempts  int
	Err       error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("removing cache for session %q (%s) failed after %d attempts: %v",
		e.SessionID, e.Dir, e.Attempts, e.Err)
}

func (e *TeardownError) Unwrap() error { return e.Err }

// removeCacheDir deletes a session's cache directory with bounded
// retry-with-backoff. The just-closed client can still hold OS file locks on
// the store for a moment, so the first attempts are expected to occasionally
// fail; only exhaustion surfaces a TeardownError.
func (m *Manager) removeCacheDir(ctx context.Context, sessionID, dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	backoff := m.cfg.Cleanup.Backoff
	var lastErr error

	for attempt := 1; attempt <= m.cfg.Cleanup.MaxAttempts; attempt++ {
		lastErr = os.RemoveAll(dir)
		if lastErr == nil {
			return nil
		}

		m.logger.Debug("cache removal attempt failed",
			"session", sessionID,
			"attempt", attempt,
			"error", lastErr)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return &TeardownError{
				SessionID: sessionID,
				Dir:       dir,
				Attempts:  attempt,
				Err:       ctx.Err(),
			}
		}
	}

	return &TeardownError{
		SessionID: sessionID,
		Dir:       dir,
		Attempts:  m.cfg.Cleanup.MaxAttempts,
		Err:       lastErr,
	}
}

// StartJanitor schedules the orphan sweep: session-* directories in the
// cache root with no live registry entry and no recent modification are
// removed. Best-effort housekeeping for caches left behind by crashed
// processes or failed deletions.
func (m *Manager) StartJanitor() error {
	if m.cfg.Cleanup.JanitorSchedule == "" {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(m.cfg.Cleanup.JanitorSchedule, m.sweepOrphans); err != nil {
		return fmt.Errorf("scheduling cache janitor: %w", err)
	}
	c.Start()
	m.janitor = c

	m.logger.Info("cache janitor scheduled", "schedule", m.cfg.Cleanup.JanitorSchedule)
	return nil
}

// StopJanitor cancels the scheduled sweep, if any.
func (m *Manager) StopJanitor() {
	if m.janitor != nil {
		m.janitor.Stop()
		m.janitor = nil
	}
}

// sweepOrphans removes stale cache directories for ids absent from the
// registry.
func (m *Manager) sweepOrphans() {
	entries, err := os.ReadDir(m.cfg.CacheRoot)
	if err != nil {
		m.logger.Warn("janitor cannot read cache root", "error", err)
		return
	}

	m.mu.Lock()
	live := make(map[string]bool, len(m.sessions))
	for id := range m.sessions {
		live[id] = true
	}
	m.mu.Unlock()

	cutoff := time.Now().Add(-m.cfg.Cleanup.JanitorMinAge)
	var removed int

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), cacheDirPrefix) {
			continue
		}
		id := strings.TrimPrefix(entry.Name(), cacheDirPrefix)
		if live[id] {
			continue
		}

		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		dir := filepath.Join(m.cfg.CacheRoot, entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			m.logger.Warn("janitor failed to remove orphan cache",
				"dir", dir,
				"error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.Info("janitor removed orphan session caches", "count", removed)
	}
}
