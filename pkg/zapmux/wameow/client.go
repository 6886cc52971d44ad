// Package wameow adapts whatsmeow — a native Go WhatsApp Web API library —
// to the opaque client surface zapmux consumes. Each adapter instance owns
// one whatsmeow client with a sqlite session store rooted in the session's
// cache directory.
//
// Protocol-level logout is deliberately neutralized here: Logout disconnects
// but never deletes the store, so closing a session cannot destroy its own
// credentials as a side effect. Credential removal belongs to session
// deletion alone.
package wameow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/jholhewres/zapmux/pkg/zapmux/waclient"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for the session store.
)

// storeFileName is the sqlite database inside each session cache directory.
const storeFileName = "session.db"

// Config holds adapter configuration.
type Config struct {
	// DeviceName is shown in the linked-devices list.
	DeviceName string `yaml:"device_name"`

	// QRTimeout bounds the first-login QR scan wait.
	QRTimeout time.Duration `yaml:"qr_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DeviceName: "Zapmux",
		QRTimeout:  3 * time.Minute,
	}
}

// Client implements waclient.Client over whatsmeow.
type Client struct {
	cfg       Config
	sessionID string
	logger    *slog.Logger

	wm *whatsmeow.Client

	handlersMu sync.RWMutex
	handlers   map[string][]waclient.Handler

	destroyed atomic.Bool
}

// NewFactory returns a client factory bound to cfg, suitable for
// session.NewManager.
func NewFactory(cfg Config) func(sessionID, cacheDir string, logger *slog.Logger) (waclient.Client, error) {
	return func(sessionID, cacheDir string, logger *slog.Logger) (waclient.Client, error) {
		return New(cfg, sessionID, cacheDir, logger)
	}
}

// New creates an adapter with its session store at cacheDir/session.db.
func New(cfg Config, sessionID, cacheDir string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = "Zapmux"
	}
	if cfg.QRTimeout == 0 {
		cfg.QRTimeout = 3 * time.Minute
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	dbPath := filepath.Join(cacheDir, storeFileName)
	container, err := sqlstore.New(context.Background(), "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL", dbPath),
		waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}

	device, err := getDevice(context.Background(), container)
	if err != nil {
		return nil, fmt.Errorf("getting device: %w", err)
	}

	store.SetOSInfo(cfg.DeviceName, [3]uint32{1, 0, 0})

	c := &Client{
		cfg:       cfg,
		sessionID: sessionID,
		logger:    logger.With("component", "wameow", "session", sessionID),
		handlers:  make(map[string][]waclient.Handler),
	}
	c.wm = whatsmeow.NewClient(device, waLog.Noop)
	c.wm.AddEventHandler(c.handleEvent)
	c.wm.EnableAutoReconnect = true

	return c, nil
}

// getDevice retrieves the stored device or creates a fresh one.
func getDevice(ctx context.Context, container *sqlstore.Container) (*store.Device, error) {
	devices, err := container.GetAllDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) > 0 {
		return devices[0], nil
	}
	return container.NewDevice(), nil
}

// Initialize connects and authenticates. With an existing store it resumes
// the session; otherwise it runs the QR login flow, streaming codes to "qr"
// subscribers until scanned or timed out.
func (c *Client) Initialize(ctx context.Context) error {
	if c.wm.Store.ID != nil {
		if err := c.wm.Connect(); err != nil {
			return fmt.Errorf("connecting: %w", err)
		}
		c.logger.Info("session resumed", "jid", c.ConnectedID())
		return nil
	}
	return c.loginWithQR(ctx)
}

// loginWithQR drives the first-login pairing flow.
func (c *Client) loginWithQR(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.QRTimeout)
	defer cancel()

	qrChan, err := c.wm.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("getting QR channel: %w", err)
	}
	if err := c.wm.Connect(); err != nil {
		return fmt.Errorf("connecting for QR: %w", err)
	}

	c.logger.Info("waiting for QR code scan")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-qrChan:
			if !ok {
				return fmt.Errorf("QR channel closed unexpectedly")
			}
			switch evt.Event {
			case "code":
				c.emit(waclient.EventQR, evt.Code)
			case "success":
				c.logger.Info("login successful", "jid", c.ConnectedID())
				return nil
			case "timeout":
				return fmt.Errorf("QR code timed out before scan")
			default:
				if evt.Error != nil {
					return fmt.Errorf("QR login: %w", evt.Error)
				}
			}
		}
	}
}

// Destroy closes the transport. The on-disk store stays untouched.
func (c *Client) Destroy(_ context.Context) error {
	if c.destroyed.Swap(true) {
		return nil
	}
	c.wm.Disconnect()
	c.logger.Info("client destroyed")
	return nil
}

// Logout is non-destructive: it only disconnects. The session store is never
// deleted here, regardless of what the protocol considers a logout.
func (c *Client) Logout(_ context.Context) error {
	c.wm.Disconnect()
	c.logger.Info("logout handled as disconnect, credentials kept")
	return nil
}

// On registers a handler for a named event.
func (c *Client) On(event string, h waclient.Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// emit dispatches an event to all its handlers, in registration order.
// Handlers are expected to come wrapped in their own isolation boundary.
func (c *Client) emit(event string, data any) {
	c.handlersMu.RLock()
	hs := append([]waclient.Handler(nil), c.handlers[event]...)
	c.handlersMu.RUnlock()

	for _, h := range hs {
		h(data)
	}
}

// ConnectedID returns the authenticated JID, or "" before pairing.
func (c *Client) ConnectedID() string {
	if c.wm.Store.ID != nil {
		return c.wm.Store.ID.String()
	}
	return ""
}

// Runtime exposes the low-level surface.
func (c *Client) Runtime() waclient.Runtime {
	return &runtime{c: c}
}

// parseJID converts a canonical address into a whatsmeow JID.
func parseJID(addr string) (types.JID, error) {
	jid, err := types.ParseJID(addr)
	if err != nil {
		return types.JID{}, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return jid, nil
}

// runtime implements waclient.Runtime over the same whatsmeow client.
type runtime struct {
	c *Client
}

// Live reports whether the client is still usable: not destroyed and holding
// an open socket.
func (r *runtime) Live() bool {
	return !r.c.destroyed.Load() && r.c.wm != nil && r.c.wm.IsConnected()
}

// WaitReady polls until the client reports a logged-in state or the timeout
// elapses. Callers treat a timeout as non-fatal.
func (r *runtime) WaitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if r.c.wm.IsLoggedIn() {
			return nil
		}
		if time.Now().After(deadline) {
			return context.DeadlineExceeded
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SendRaw delivers text as a bare conversation stanza, skipping the rich
// message builder used by the primary path.
func (r *runtime) SendRaw(ctx context.Context, addr, text string) error {
	jid, err := parseJID(addr)
	if err != nil {
		return err
	}
	_, err = r.c.wm.SendMessage(ctx, jid, rawTextMessage(text))
	if err != nil {
		return fmt.Errorf("raw send: %w", err)
	}
	return nil
}
