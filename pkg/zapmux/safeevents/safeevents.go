// Package safeevents supervises event handler execution. Handlers registered
// through a wrapped subscriber run inside an isolation boundary: a panicking
// handler is captured into a structured log entry and never takes down the
// client's dispatch loop or its sibling handlers.
package safeevents

import (
	"log/slog"

	"github.com/jholhewres/zapmux/pkg/zapmux/waclient"
)

// Wrap returns a subscriber that registers every handler through raw with an
// isolation boundary around it. The payload is forwarded to the handler
// untouched.
func Wrap(raw waclient.Subscriber, logger *slog.Logger) waclient.Subscriber {
	if logger == nil {
		logger = slog.Default()
	}

	return func(event string, h waclient.Handler) {
		raw(event, func(data any) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("event handler panicked",
						"event", event,
						"panic", r)
				}
			}()
			h(data)
		})
	}
}
