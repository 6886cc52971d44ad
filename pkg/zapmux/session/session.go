// Package session owns the registry of messaging-bot sessions: one long-lived
// identity per entry, each backed by its own protocol client and an on-disk
// authentication cache. The manager hides per-session lifecycle, keeps
// failures isolated between sessions, and hands callers wrapped handles that
// layer address normalization, supervised events, resilient dispatch, group
// monitoring and the media pipeline over the raw client.
package session

import (
	"sync"

	"github.com/jholhewres/zapmux/pkg/zapmux/waclient"
)

// State is the lifecycle state of a session. Transitions only advance:
// Uninitialized → Initializing → {Ready | Destroyed}, Ready → Destroyed.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateDestroyed     State = "destroyed"
)

// Session is one live entry in the registry. The client handle is created
// exactly once per Session lifetime and owned exclusively by it; a reused
// session id after destruction always gets a brand-new Session.
type Session struct {
	id       string
	cacheDir string
	client   waclient.Client

	mu    sync.Mutex
	state State

	// ready is closed once, on the first successful authentication. It is
	// never reopened; readiness is monotonic for a Session's lifetime.
	ready     chan struct{}
	readyOnce sync.Once
}

func newSession(id, cacheDir string, client waclient.Client) *Session {
	return &Session{
		id:       id,
		cacheDir: cacheDir,
		client:   client,
		state:    StateUninitialized,
		ready:    make(chan struct{}),
	}
}

// ID returns the session identity.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// setState advances the lifecycle state. Regressions and updates after
// destruction are ignored.
func (s *Session) setState(next State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDestroyed {
		return
	}
	s.state = next
}

// markReady flips the monotonic ready flag and advances the state.
func (s *Session) markReady() {
	s.setState(StateReady)
	s.readyOnce.Do(func() { close(s.ready) })
}
