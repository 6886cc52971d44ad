package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jholhewres/zapmux/pkg/zapmux/address"
	"github.com/jholhewres/zapmux/pkg/zapmux/dispatch"
	"github.com/jholhewres/zapmux/pkg/zapmux/media"
	"github.com/jholhewres/zapmux/pkg/zapmux/safeevents"
	"github.com/jholhewres/zapmux/pkg/zapmux/waclient"
)

// cacheDirPrefix names per-session cache directories under the cache root.
const cacheDirPrefix = "session-"

// ErrEmptySessionID rejects Connect calls without an identity.
var ErrEmptySessionID = fmt.Errorf("session id must not be empty")

// ClientFactory constructs the underlying protocol client for a session,
// bound to an authentication store rooted at cacheDir. Injected so tests can
// substitute fakes and production can plug in the wameow adapter.
type ClientFactory func(sessionID, cacheDir string, logger *slog.Logger) (waclient.Client, error)

// Config holds session manager configuration.
type Config struct {
	// CacheRoot is the directory holding one session-<id> subdirectory per
	// identity.
	CacheRoot string `yaml:"cache_root"`

	// Address configures recipient normalization for dispatchers.
	Address address.Config `yaml:"address"`

	// Dispatch configures the send pipeline.
	Dispatch dispatch.Config `yaml:"dispatch"`

	// Media configures transcoding and downloads.
	Media media.Config `yaml:"media"`

	// Cleanup configures cache teardown and the orphan janitor.
	Cleanup CleanupConfig `yaml:"cleanup"`
}

// CleanupConfig controls cache-directory removal behavior.
type CleanupConfig struct {
	// MaxAttempts bounds the delete retry loop. The just-closed client
	// process can briefly hold OS file locks on the store, so removal
	// retries with backoff instead of failing on the first attempt.
	MaxAttempts int `yaml:"max_attempts"`

	// Backoff is the initial retry delay; it doubles per attempt.
	Backoff time.Duration `yaml:"backoff"`

	// JanitorSchedule is a cron expression for the orphan sweep. Empty
	// disables the janitor.
	JanitorSchedule string `yaml:"janitor_schedule"`

	// JanitorMinAge protects recently touched directories from the sweep.
	JanitorMinAge time.Duration `yaml:"janitor_min_age"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CacheRoot: "./sessions",
		Address:   address.DefaultConfig(),
		Dispatch:  dispatch.DefaultConfig(),
		Media:     media.DefaultConfig(),
		Cleanup: CleanupConfig{
			MaxAttempts:     5,
			Backoff:         200 * time.Millisecond,
			JanitorSchedule: "0 */6 * * *",
			JanitorMinAge:   24 * time.Hour,
		},
	}
}

// Manager owns the process-wide session registry. All registry access is
// serialized through its mutex: check-and-insert in Connect is atomic per
// id, and Delete never interleaves with an in-flight Connect for the same id.
type Manager struct {
	cfg     Config
	factory ClientFactory
	logger  *slog.Logger

	norm     *address.Normalizer
	pipeline *media.Pipeline

	mu       sync.Mutex
	sessions map[string]*Session

	janitor *cron.Cron
}

// NewManager creates a session manager. factory must not be nil.
func NewManager(cfg Config, factory ClientFactory, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Cleanup.MaxAttempts <= 0 {
		cfg.Cleanup.MaxAttempts = 5
	}
	if cfg.Cleanup.Backoff <= 0 {
		cfg.Cleanup.Backoff = 200 * time.Millisecond
	}

	return &Manager{
		cfg:      cfg,
		factory:  factory,
		logger:   logger.With("component", "session"),
		norm:     address.New(cfg.Address),
		pipeline: media.NewPipeline(cfg.Media, logger),
		sessions: make(map[string]*Session),
	}
}

// CacheDir returns the deterministic cache directory for a session id.
func (m *Manager) CacheDir(sessionID string) string {
	return filepath.Join(m.cfg.CacheRoot, cacheDirPrefix+sessionID)
}

// Connect returns a handle for sessionID, creating the session when absent.
//
// The call is idempotent: an existing session (in any state) yields a fresh
// handle bound to its existing client rather than a second client. For a new
// id the client is constructed and registered atomically with respect to
// other Connect and Delete calls, then the handle is returned immediately
// while initialization proceeds in the background. If background
// initialization fails the session is evicted; callers re-Connect to retry.
func (m *Manager) Connect(ctx context.Context, sessionID string) (*Handle, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}

	m.mu.Lock()
	if s, ok := m.sessions[sessionID]; ok {
		m.mu.Unlock()
		return m.newHandle(s), nil
	}

	cacheDir := m.CacheDir(sessionID)
	client, err := m.factory(sessionID, cacheDir, m.logger)
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("creating client for session %q: %w", sessionID, err)
	}

	s := newSession(sessionID, cacheDir, client)
	m.sessions[sessionID] = s
	m.mu.Unlock()

	// Watch for the first successful authentication through the supervised
	// subscribe surface.
	on := safeevents.Wrap(client.On, m.logger)
	on(waclient.EventReady, func(any) { s.markReady() })

	s.setState(StateInitializing)
	go m.initialize(s)

	m.logger.Info("session created", "session", sessionID, "cache_dir", cacheDir)
	return m.newHandle(s), nil
}

// initialize runs the client's blocking startup. A failed session is logged
// and evicted so the id becomes available for a clean retry.
func (m *Manager) initialize(s *Session) {
	if err := s.client.Initialize(context.Background()); err != nil {
		m.logger.Error("session initialization failed",
			"session", s.id,
			"error", err)

		s.setState(StateDestroyed)

		m.mu.Lock()
		if cur, ok := m.sessions[s.id]; ok && cur == s {
			delete(m.sessions, s.id)
		}
		m.mu.Unlock()
		return
	}

	// Some clients resume an existing store and are authenticated as soon
	// as Initialize returns, without a separate ready notification.
	if s.client.ConnectedID() != "" {
		s.markReady()
	}
}

// Delete tears a session down: orderly close of a still-connected client,
// removal of the on-disk cache, eviction from the registry. Close failures
// are logged, not raised; only exhausted cache removal surfaces an error,
// as a *TeardownError.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	cacheDir := m.CacheDir(sessionID)
	if ok {
		cacheDir = s.cacheDir
		if s.client.Runtime().Live() {
			if err := s.client.Destroy(ctx); err != nil {
				m.logger.Warn("closing client during deletion failed",
					"session", sessionID,
					"error", err)
			}
		}
		s.mu.Lock()
		s.state = StateDestroyed
		s.mu.Unlock()
	}

	if err := m.removeCacheDir(ctx, sessionID, cacheDir); err != nil {
		m.logger.Error("cache removal failed after retries",
			"session", sessionID,
			"dir", cacheDir,
			"error", err)
		return err
	}

	m.logger.Info("session deleted", "session", sessionID)
	return nil
}

// Sessions lists the ids currently in the registry.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Close shuts down all sessions' clients and stops the janitor. On-disk
// caches are left intact so identities survive a process restart.
func (m *Manager) Close(ctx context.Context) {
	m.StopJanitor()

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		if err := s.client.Destroy(ctx); err != nil {
			m.logger.Warn("closing client during shutdown failed",
				"session", s.id,
				"error", err)
		}
		s.mu.Lock()
		s.state = StateDestroyed
		s.mu.Unlock()
	}

	m.logger.Info("session manager closed", "sessions", len(sessions))
}
