package media

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jholhewres/zapmux/pkg/zapmux/waclient"
)

func TestNewPipeline(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	t.Run("applies defaults", func(t *testing.T) {
		p := NewPipeline(Config{}, logger)
		if p.cfg.FFmpegPath != "ffmpeg" {
			t.Errorf("expected default ffmpeg path, got %q", p.cfg.FFmpegPath)
		}
		if p.cfg.MaxDownloadMB != 50 {
			t.Errorf("expected default download cap 50, got %d", p.cfg.MaxDownloadMB)
		}
	})

	t.Run("uses default logger if nil", func(t *testing.T) {
		p := NewPipeline(DefaultConfig(), nil)
		if p.logger == nil {
			t.Error("expected logger to be set")
		}
	})
}

func TestVoiceNoteArgs(t *testing.T) {
	args := voiceNoteArgs("in.mp3", "out.ogg")

	joined := strings.Join(args, " ")
	for _, want := range []string{"-i in.mp3", "-c:a libopus", "-ac 1", "-ar 48000", "out.ogg"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected args to contain %q, got %q", want, joined)
		}
	}
	if args[len(args)-1] != "out.ogg" {
		t.Errorf("expected output path last, got %q", args[len(args)-1])
	}
}

func TestConvertToVoiceNote(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	t.Run("missing transcoder surfaces TranscodeError", func(t *testing.T) {
		p := NewPipeline(Config{FFmpegPath: "/nonexistent/ffmpeg-zapmux-test"}, logger)

		_, err := p.ConvertToVoiceNote(context.Background(), "in.mp3", "out.ogg")
		if err == nil {
			t.Fatal("expected error for missing transcoder")
		}

		var te *TranscodeError
		if !errors.As(err, &te) {
			t.Fatalf("expected *TranscodeError, got %T", err)
		}
		if te.Input != "in.mp3" {
			t.Errorf("expected input path in error, got %q", te.Input)
		}
	})

	t.Run("empty output path generates temp file name", func(t *testing.T) {
		fake := writeFakeTranscoder(t)
		p := NewPipeline(Config{FFmpegPath: fake}, logger)

		out, err := p.ConvertToVoiceNote(context.Background(), "in.mp3", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasSuffix(out, ".ogg") {
			t.Errorf("expected generated .ogg path, got %q", out)
		}
		os.Remove(out)
	})

	t.Run("transcoder failure carries tool detail", func(t *testing.T) {
		fake := writeFailingTranscoder(t, "Invalid data found when processing input")
		p := NewPipeline(Config{FFmpegPath: fake}, logger)

		_, err := p.ConvertToVoiceNote(context.Background(), "broken.mp3", "out.ogg")

		var te *TranscodeError
		if !errors.As(err, &te) {
			t.Fatalf("expected *TranscodeError, got %v", err)
		}
		if !strings.Contains(te.Detail, "Invalid data") {
			t.Errorf("expected tool detail in error, got %q", te.Detail)
		}
	})
}

func TestDownload(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	p := NewPipeline(DefaultConfig(), logger)

	t.Run("downloads bytes and filename from URL path", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("audio-bytes"))
		}))
		defer srv.Close()

		data, name, err := p.Download(context.Background(), srv.URL+"/files/note.mp3")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "audio-bytes" {
			t.Errorf("unexpected data: %q", data)
		}
		if name != "note.mp3" {
			t.Errorf("expected filename from URL, got %q", name)
		}
	})

	t.Run("prefers Content-Disposition filename", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Disposition", `attachment; filename="real-name.ogg"`)
			w.Write([]byte("x"))
		}))
		defer srv.Close()

		_, name, err := p.Download(context.Background(), srv.URL+"/whatever")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if name != "real-name.ogg" {
			t.Errorf("expected header filename, got %q", name)
		}
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		if _, _, err := p.Download(context.Background(), srv.URL); err == nil {
			t.Error("expected error for 404")
		}
	})
}

func TestLoadPayloads(t *testing.T) {
	t.Run("image payload sniffs mime and keeps caption", func(t *testing.T) {
		// Minimal PNG header is enough for content sniffing.
		path := filepath.Join(t.TempDir(), "pic.png")
		png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
		if err := os.WriteFile(path, png, 0o600); err != nil {
			t.Fatal(err)
		}

		m, err := LoadImage(path, "a caption", true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m.Kind != waclient.MediaImage {
			t.Errorf("expected image kind, got %s", m.Kind)
		}
		if m.MimeType != "image/png" {
			t.Errorf("expected image/png, got %q", m.MimeType)
		}
		if m.Caption != "a caption" || !m.ViewOnce {
			t.Errorf("caption/viewOnce not preserved: %+v", m)
		}
	})

	t.Run("voice payload is PTT with opus mime", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "note.ogg")
		if err := os.WriteFile(path, []byte("OggS"), 0o600); err != nil {
			t.Fatal(err)
		}

		m, err := LoadVoice(path, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !m.PTT {
			t.Error("expected PTT flag set")
		}
		if m.MimeType != voiceMimeType {
			t.Errorf("expected %q, got %q", voiceMimeType, m.MimeType)
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		if _, err := LoadImage("/nonexistent/pic.png", "", false); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

// writeFakeTranscoder creates a stub executable that writes its last argument
// and exits 0, standing in for ffmpeg.
func writeFakeTranscoder(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	script := "#!/bin/sh\nfor last; do :; done\necho converted > \"$last\"\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

// writeFailingTranscoder creates a stub executable that prints detail to
// stderr and exits 1.
func writeFailingTranscoder(t *testing.T, detail string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "failing-ffmpeg")
	script := "#!/bin/sh\necho \"" + detail + "\" >&2\nexit 1\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}
