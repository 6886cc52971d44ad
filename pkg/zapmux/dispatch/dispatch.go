// Package dispatch implements the resilient send path: normalize the
// recipient, verify the client runtime is still live, try the primary client
// API, and fall back to the runtime's raw send route when the primary path
// fails.
//
// Sends never return an error. Every attempt instead yields an explicit
// Outcome so callers can tell delivered from dropped without the pipeline
// ever throwing at them; failures are contained and logged here.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jholhewres/zapmux/pkg/zapmux/address"
	"github.com/jholhewres/zapmux/pkg/zapmux/media"
	"github.com/jholhewres/zapmux/pkg/zapmux/waclient"
)

// Outcome classifies the result of a send attempt.
type Outcome string

const (
	// OutcomeDelivered: the primary client API accepted the message.
	OutcomeDelivered Outcome = "delivered"

	// OutcomeFallback: the primary path failed but the raw fallback route
	// accepted the message.
	OutcomeFallback Outcome = "delivered_fallback"

	// OutcomeFailed: both the primary and the fallback path failed.
	OutcomeFailed Outcome = "failed"

	// OutcomeSkipped: the runtime surface was no longer live; no send was
	// attempted.
	OutcomeSkipped Outcome = "skipped"
)

// Sent reports whether the outcome corresponds to an accepted message.
func (o Outcome) Sent() bool {
	return o == OutcomeDelivered || o == OutcomeFallback
}

// Config holds dispatcher settings.
type Config struct {
	// ReadyTimeout bounds the pre-send readiness wait. A timeout is
	// non-fatal; the send proceeds anyway.
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{ReadyTimeout: 3 * time.Second}
}

// Dispatcher sends outbound content through one client.
type Dispatcher struct {
	cfg    Config
	client waclient.Client
	norm   *address.Normalizer
	logger *slog.Logger
}

// New creates a Dispatcher bound to a client.
func New(cfg Config, client waclient.Client, norm *address.Normalizer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = 3 * time.Second
	}
	return &Dispatcher{
		cfg:    cfg,
		client: client,
		norm:   norm,
		logger: logger.With("component", "dispatch"),
	}
}

// SendText sends a text message, falling back to the raw route when the
// primary API fails.
func (d *Dispatcher) SendText(ctx context.Context, rawAddr, text string) Outcome {
	addr := d.norm.Format(rawAddr)
	log := d.logger.With("send_id", shortID(), "to", addr, "type", "text")

	if !d.preflight(ctx, log) {
		return OutcomeSkipped
	}

	err := d.client.SendText(ctx, addr, text)
	if err == nil {
		log.Debug("sent via primary path")
		return OutcomeDelivered
	}
	log.Warn("primary send failed, trying fallback", "error", err)

	if fbErr := d.client.Runtime().SendRaw(ctx, addr, text); fbErr != nil {
		log.Error("fallback send failed",
			"primary_error", err,
			"fallback_error", fbErr)
		return OutcomeFailed
	}

	log.Info("sent via fallback path")
	return OutcomeFallback
}

// SendVoice sends an audio file as a voice note. The file must already be in
// the voice-note format.
func (d *Dispatcher) SendVoice(ctx context.Context, rawAddr, audioPath string, viewOnce bool) Outcome {
	addr := d.norm.Format(rawAddr)
	log := d.logger.With("send_id", shortID(), "to", addr, "type", "voice")

	if !d.preflight(ctx, log) {
		return OutcomeSkipped
	}

	payload, err := media.LoadVoice(audioPath, viewOnce)
	if err != nil {
		log.Error("building voice payload failed", "path", audioPath, "error", err)
		return OutcomeFailed
	}

	if err := d.client.SendMedia(ctx, addr, payload); err != nil {
		log.Error("voice send failed", "error", err)
		return OutcomeFailed
	}

	log.Debug("voice note sent")
	return OutcomeDelivered
}

// SendImage sends one or more image files. For multi-image sends only the
// last payload carries the caption.
func (d *Dispatcher) SendImage(ctx context.Context, rawAddr string, paths []string, caption string, viewOnce bool) Outcome {
	addr := d.norm.Format(rawAddr)
	log := d.logger.With("send_id", shortID(), "to", addr, "type", "image", "count", len(paths))

	if len(paths) == 0 {
		log.Warn("no image paths supplied")
		return OutcomeFailed
	}
	if !d.preflight(ctx, log) {
		return OutcomeSkipped
	}

	outcome := OutcomeDelivered
	for i, path := range paths {
		itemCaption := ""
		if i == len(paths)-1 {
			itemCaption = caption
		}

		payload, err := media.LoadImage(path, itemCaption, viewOnce)
		if err != nil {
			log.Error("building image payload failed", "path", path, "error", err)
			outcome = OutcomeFailed
			continue
		}

		if err := d.client.SendMedia(ctx, addr, payload); err != nil {
			log.Error("image send failed", "path", path, "error", err)
			outcome = OutcomeFailed
		}
	}

	if outcome == OutcomeDelivered {
		log.Debug("images sent")
	}
	return outcome
}

// preflight checks the runtime surface and waits briefly for readiness.
// Returns false when the surface is gone and the send must be skipped.
func (d *Dispatcher) preflight(ctx context.Context, log *slog.Logger) bool {
	rt := d.client.Runtime()
	if !rt.Live() {
		log.Debug("runtime not live, skipping send")
		return false
	}

	if err := rt.WaitReady(ctx, d.cfg.ReadyTimeout); err != nil {
		// Readiness is a best-effort precondition; proceed regardless.
		log.Debug("readiness wait did not complete", "error", err)
	}
	return true
}

// shortID produces a compact correlation id for send logs.
func shortID() string {
	return uuid.NewString()[:8]
}
