package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jholhewres/zapmux/pkg/zapmux/address"
	"github.com/jholhewres/zapmux/pkg/zapmux/waclient"
)

func newDispatcher(client waclient.Client) *Dispatcher {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return New(DefaultConfig(), client, address.New(address.DefaultConfig()), logger)
}

func TestSendText(t *testing.T) {
	ctx := context.Background()

	t.Run("delivered via primary path", func(t *testing.T) {
		c := newFakeClient()
		d := newDispatcher(c)

		got := d.SendText(ctx, "44999999999", "hello")
		if got != OutcomeDelivered {
			t.Errorf("expected delivered, got %s", got)
		}
		if len(c.sentTexts) != 1 {
			t.Fatalf("expected 1 primary send, got %d", len(c.sentTexts))
		}
		if c.sentTexts[0].addr != "5544999999999"+address.Suffix {
			t.Errorf("expected normalized address, got %q", c.sentTexts[0].addr)
		}
	})

	t.Run("falls back when primary fails", func(t *testing.T) {
		c := newFakeClient()
		c.sendTextErr = fmt.Errorf("serialize error")
		d := newDispatcher(c)

		got := d.SendText(ctx, "5511888888888", "hi")
		if got != OutcomeFallback {
			t.Errorf("expected fallback outcome, got %s", got)
		}
		if len(c.rt.rawSends) != 1 {
			t.Fatalf("expected 1 raw send, got %d", len(c.rt.rawSends))
		}
	})

	t.Run("both paths fail, no panic, outcome failed", func(t *testing.T) {
		c := newFakeClient()
		c.sendTextErr = fmt.Errorf("primary down")
		c.rt.rawErr = fmt.Errorf("eval failed")
		d := newDispatcher(c)

		got := d.SendText(ctx, "5511888888888", "hi")
		if got != OutcomeFailed {
			t.Errorf("expected failed, got %s", got)
		}
	})

	t.Run("skips silently when runtime not live", func(t *testing.T) {
		c := newFakeClient()
		c.rt.live = false
		d := newDispatcher(c)

		got := d.SendText(ctx, "5511888888888", "hi")
		if got != OutcomeSkipped {
			t.Errorf("expected skipped, got %s", got)
		}
		if len(c.sentTexts) != 0 || len(c.rt.rawSends) != 0 {
			t.Error("expected no send attempts when not live")
		}
	})

	t.Run("readiness timeout is non-fatal", func(t *testing.T) {
		c := newFakeClient()
		c.rt.waitErr = context.DeadlineExceeded
		d := newDispatcher(c)

		got := d.SendText(ctx, "5511888888888", "hi")
		if got != OutcomeDelivered {
			t.Errorf("expected delivered despite readiness timeout, got %s", got)
		}
	})
}

func TestSendVoice(t *testing.T) {
	ctx := context.Background()

	t.Run("sends PTT payload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "note.ogg")
		if err := os.WriteFile(path, []byte("OggS"), 0o600); err != nil {
			t.Fatal(err)
		}

		c := newFakeClient()
		d := newDispatcher(c)

		got := d.SendVoice(ctx, "5511888888888", path, true)
		if got != OutcomeDelivered {
			t.Errorf("expected delivered, got %s", got)
		}
		if len(c.sentMedia) != 1 {
			t.Fatalf("expected 1 media send, got %d", len(c.sentMedia))
		}
		m := c.sentMedia[0].media
		if !m.PTT || m.Kind != waclient.MediaVoice || !m.ViewOnce {
			t.Errorf("unexpected voice payload: %+v", m)
		}
	})

	t.Run("missing file swallowed as failed", func(t *testing.T) {
		c := newFakeClient()
		d := newDispatcher(c)

		got := d.SendVoice(ctx, "5511888888888", "/nonexistent.ogg", false)
		if got != OutcomeFailed {
			t.Errorf("expected failed, got %s", got)
		}
	})
}

func TestSendImage(t *testing.T) {
	ctx := context.Background()
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}

	writeImage := func(t *testing.T, dir, name string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, png, 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	t.Run("caption only on last image", func(t *testing.T) {
		dir := t.TempDir()
		paths := []string{
			writeImage(t, dir, "a.png"),
			writeImage(t, dir, "b.png"),
			writeImage(t, dir, "c.png"),
		}

		c := newFakeClient()
		d := newDispatcher(c)

		got := d.SendImage(ctx, "5511888888888", paths, "the caption", false)
		if got != OutcomeDelivered {
			t.Errorf("expected delivered, got %s", got)
		}
		if len(c.sentMedia) != 3 {
			t.Fatalf("expected 3 media sends, got %d", len(c.sentMedia))
		}
		for i, sent := range c.sentMedia {
			want := ""
			if i == 2 {
				want = "the caption"
			}
			if sent.media.Caption != want {
				t.Errorf("image %d: expected caption %q, got %q", i, want, sent.media.Caption)
			}
		}
	})

	t.Run("empty path list is failed", func(t *testing.T) {
		c := newFakeClient()
		d := newDispatcher(c)

		if got := d.SendImage(ctx, "5511888888888", nil, "", false); got != OutcomeFailed {
			t.Errorf("expected failed, got %s", got)
		}
	})

	t.Run("partial failure reported as failed, remaining images still sent", func(t *testing.T) {
		dir := t.TempDir()
		paths := []string{
			writeImage(t, dir, "a.png"),
			filepath.Join(dir, "missing.png"),
			writeImage(t, dir, "c.png"),
		}

		c := newFakeClient()
		d := newDispatcher(c)

		got := d.SendImage(ctx, "5511888888888", paths, "cap", false)
		if got != OutcomeFailed {
			t.Errorf("expected failed, got %s", got)
		}
		if len(c.sentMedia) != 2 {
			t.Errorf("expected the 2 readable images sent, got %d", len(c.sentMedia))
		}
	})
}

func TestOutcomeSent(t *testing.T) {
	cases := map[Outcome]bool{
		OutcomeDelivered: true,
		OutcomeFallback:  true,
		OutcomeFailed:    false,
		OutcomeSkipped:   false,
	}
	for o, want := range cases {
		if o.Sent() != want {
			t.Errorf("Outcome(%s).Sent() = %v, want %v", o, o.Sent(), want)
		}
	}
}

// ---------- Fakes ----------

type sentText struct {
	addr, text string
}

type sentMedia struct {
	addr  string
	media *waclient.Media
}

type fakeRuntime struct {
	live     bool
	waitErr  error
	rawErr   error
	rawSends []sentText
}

func (r *fakeRuntime) Live() bool { return r.live }

func (r *fakeRuntime) WaitReady(_ context.Context, _ time.Duration) error { return r.waitErr }

func (r *fakeRuntime) SendRaw(_ context.Context, addr, text string) error {
	if r.rawErr != nil {
		return r.rawErr
	}
	r.rawSends = append(r.rawSends, sentText{addr, text})
	return nil
}

type fakeClient struct {
	rt          *fakeRuntime
	sendTextErr error
	sendMediaErr error
	sentTexts   []sentText
	sentMedia   []sentMedia
}

func newFakeClient() *fakeClient {
	return &fakeClient{rt: &fakeRuntime{live: true}}
}

func (c *fakeClient) Initialize(context.Context) error { return nil }

func (c *fakeClient) SendText(_ context.Context, addr, text string) error {
	if c.sendTextErr != nil {
		return c.sendTextErr
	}
	c.sentTexts = append(c.sentTexts, sentText{addr, text})
	return nil
}

func (c *fakeClient) SendMedia(_ context.Context, addr string, m *waclient.Media) error {
	if c.sendMediaErr != nil {
		return c.sendMediaErr
	}
	c.sentMedia = append(c.sentMedia, sentMedia{addr, m})
	return nil
}

func (c *fakeClient) Destroy(context.Context) error          { return nil }
func (c *fakeClient) Logout(context.Context) error           { return nil }
func (c *fakeClient) On(string, waclient.Handler)            {}
func (c *fakeClient) ConnectedID() string                    { return "5511000000000" + address.Suffix }
func (c *fakeClient) Runtime() waclient.Runtime              { return c.rt }
