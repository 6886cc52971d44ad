// Package waclient defines the surface of the underlying WhatsApp protocol
// client as consumed by zapmux. The client itself is an external collaborator:
// zapmux only needs an opaque handle it can initialize, send through, subscribe
// to, and tear down. Production code plugs in the wameow adapter; tests plug in
// fakes.
package waclient

import (
	"context"
	"fmt"
	"time"
)

// Event names emitted by client implementations.
const (
	// EventReady fires once the client has an authenticated, established
	// identity and can send messages.
	EventReady = "ready"

	// EventQR carries a login QR code string that must be scanned.
	EventQR = "qr"

	// EventMessage carries a *Message for each incoming message.
	EventMessage = "message"

	// EventGroupJoin and EventGroupLeave carry a *GroupNotification for
	// group membership changes.
	EventGroupJoin  = "group_join"
	EventGroupLeave = "group_leave"

	// EventDisconnected fires when the transport drops.
	EventDisconnected = "disconnected"

	// EventLoggedOut fires when the server invalidates the session.
	// Implementations must NOT delete credentials in response; credential
	// removal belongs exclusively to session deletion.
	EventLoggedOut = "logged_out"
)

// Handler receives the event payload exactly as the client produced it.
type Handler func(data any)

// Subscriber is the raw subscribe primitive of a client.
type Subscriber func(event string, h Handler)

// Client is the opaque handle to one underlying protocol client. A Client is
// exclusively owned by a single session and is never shared between sessions.
type Client interface {
	// Initialize connects and authenticates. It blocks until the client is
	// usable or the attempt failed; sessions run it in the background.
	Initialize(ctx context.Context) error

	// SendText sends a text message through the primary client API.
	// addr must already be in canonical form.
	SendText(ctx context.Context, addr, text string) error

	// SendMedia sends a single media payload through the primary client API.
	SendMedia(ctx context.Context, addr string, media *Media) error

	// Destroy closes the client and its transport. The session store on disk
	// is left intact.
	Destroy(ctx context.Context) error

	// Logout handles protocol-level logout. Implementations keep this
	// non-destructive: disconnect, but never remove credentials.
	Logout(ctx context.Context) error

	// On registers a handler for a named event. Multiple handlers per event
	// are supported and all fire for each occurrence.
	On(event string, h Handler)

	// ConnectedID returns the authenticated identity, or "" before the
	// client has established one.
	ConnectedID() string

	// Runtime exposes the client's low-level runtime surface.
	Runtime() Runtime
}

// Runtime is the lower-level surface of a client, used by the dispatch
// fallback path and for liveness checks.
type Runtime interface {
	// Live reports whether the runtime is still usable (transport open,
	// client not destroyed).
	Live() bool

	// WaitReady blocks until the runtime's internal store is usable or the
	// timeout elapses. A timeout is expected to be treated as non-fatal by
	// callers.
	WaitReady(ctx context.Context, timeout time.Duration) error

	// SendRaw delivers text by the most direct route available, bypassing
	// the primary client API. Used only after the primary path failed.
	SendRaw(ctx context.Context, addr, text string) error
}

// MediaKind classifies an outbound media payload.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVoice MediaKind = "voice"
)

// Media is an outbound media payload.
type Media struct {
	Kind     MediaKind
	Data     []byte
	MimeType string
	Filename string
	Caption  string

	// PTT marks audio as a push-to-talk voice note rather than a plain
	// audio attachment.
	PTT bool

	// ViewOnce requests view-once delivery.
	ViewOnce bool

	// Seconds is the audio duration, when known.
	Seconds uint32
}

// Message is an incoming message as surfaced to subscribers.
type Message struct {
	ID        string
	Chat      string
	Sender    string
	PushName  string
	Text      string
	IsGroup   bool
	Timestamp time.Time
}

// GroupNotification is a raw group membership notification. Fields mirror
// what the protocol delivers; normalization into activity records happens in
// the groupmon package.
type GroupNotification struct {
	// ChatID identifies the group chat, when present.
	ChatID string

	// MessageRemoteID is the remote field of the notification's message id,
	// used as the group id when ChatID is absent.
	MessageRemoteID string

	// Author is the participant who caused the notification.
	Author string

	// Recipients lists the affected participants.
	Recipients []string

	// ChatName is the group display name, when known.
	ChatName string
}

// Errors common to client implementations.
var (
	ErrNotLive      = fmt.Errorf("client runtime is not live")
	ErrNotConnected = fmt.Errorf("client is not connected")
)
