package session

import (
	"context"

	"github.com/jholhewres/zapmux/pkg/zapmux/dispatch"
	"github.com/jholhewres/zapmux/pkg/zapmux/groupmon"
	"github.com/jholhewres/zapmux/pkg/zapmux/media"
	"github.com/jholhewres/zapmux/pkg/zapmux/safeevents"
	"github.com/jholhewres/zapmux/pkg/zapmux/waclient"
)

// Handle is the caller-facing wrapper around one session. Handles are cheap
// and disposable: every Connect returns a fresh one, all bound to the same
// underlying client. A Handle never exposes destructive logout; removing
// credentials is exclusively Manager.Delete's job.
type Handle struct {
	session    *Session
	on         waclient.Subscriber
	dispatcher *dispatch.Dispatcher
	monitor    *groupmon.Monitor
	pipeline   *media.Pipeline
}

// newHandle layers the wrapper stack over a session's raw client.
func (m *Manager) newHandle(s *Session) *Handle {
	logger := m.logger.With("session", s.id)
	on := safeevents.Wrap(s.client.On, logger)

	return &Handle{
		session:    s,
		on:         on,
		dispatcher: dispatch.New(m.cfg.Dispatch, s.client, m.norm, logger),
		monitor:    groupmon.New(on, logger),
		pipeline:   m.pipeline,
	}
}

// SessionID returns the session identity this handle is bound to.
func (h *Handle) SessionID() string { return h.session.id }

// State returns the session's lifecycle state.
func (h *Handle) State() State { return h.session.State() }

// Client exposes the underlying client handle. Intended for diagnostics and
// tests; sends should go through the dispatcher methods.
func (h *Handle) Client() waclient.Client { return h.session.client }

// Start blocks until the session is Ready. It returns immediately when the
// client already reports an established identity, otherwise it resolves on
// the first ready notification. It never un-resolves on later disconnects.
func (h *Handle) Start(ctx context.Context) error {
	if h.session.client.ConnectedID() != "" {
		h.session.markReady()
		return nil
	}

	select {
	case <-h.session.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// On registers an isolated handler for a client event. Handler failures are
// logged and never propagate.
func (h *Handle) On(event string, handler waclient.Handler) {
	h.on(event, handler)
}

// SendText delivers a text message best-effort. See dispatch.Outcome.
func (h *Handle) SendText(ctx context.Context, to, text string) dispatch.Outcome {
	return h.dispatcher.SendText(ctx, to, text)
}

// SendVoice delivers an audio file as a voice note. The file must already be
// in the voice-note format; see ConvertToVoiceNote.
func (h *Handle) SendVoice(ctx context.Context, to, audioPath string, viewOnce bool) dispatch.Outcome {
	return h.dispatcher.SendVoice(ctx, to, audioPath, viewOnce)
}

// SendImage delivers one or more images; with several, only the last carries
// the caption.
func (h *Handle) SendImage(ctx context.Context, to string, paths []string, caption string, viewOnce bool) dispatch.Outcome {
	return h.dispatcher.SendImage(ctx, to, paths, caption, viewOnce)
}

// OnGroupActivity begins monitoring group join/leave notifications.
func (h *Handle) OnGroupActivity(cb func(groupmon.Record)) {
	h.monitor.OnActivity(cb)
}

// ConvertToVoiceNote transcodes an audio file into the voice-note format.
// This is the one media operation whose failure surfaces to the caller.
func (h *Handle) ConvertToVoiceNote(ctx context.Context, inputPath, outputPath string) (string, error) {
	return h.pipeline.ConvertToVoiceNote(ctx, inputPath, outputPath)
}
