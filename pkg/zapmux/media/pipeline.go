// Package media prepares outbound media for dispatch: transcoding arbitrary
// audio into the voice-note format via ffmpeg, downloading remote files, and
// loading local files into send-ready payloads.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Config holds media pipeline configuration.
type Config struct {
	// FFmpegPath is the transcoder binary. Defaults to "ffmpeg" on PATH.
	FFmpegPath string `yaml:"ffmpeg_path"`

	// MaxDownloadMB caps remote media downloads.
	MaxDownloadMB int `yaml:"max_download_mb"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		FFmpegPath:    "ffmpeg",
		MaxDownloadMB: 50,
	}
}

// TranscodeError reports a failed conversion, carrying the tool's own error
// output. This is the one media failure that propagates to the caller.
type TranscodeError struct {
	Input  string
	Detail string
	Err    error
}

func (e *TranscodeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("transcoding %s: %v: %s", e.Input, e.Err, e.Detail)
	}
	return fmt.Sprintf("transcoding %s: %v", e.Input, e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// Pipeline converts and loads media files.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// NewPipeline creates a media pipeline.
func NewPipeline(cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.MaxDownloadMB <= 0 {
		cfg.MaxDownloadMB = 50
	}
	return &Pipeline{
		cfg:    cfg,
		logger: logger.With("component", "media"),
	}
}

// ConvertToVoiceNote transcodes inputPath into the ogg/opus voice-note format
// and returns the output path. An empty outputPath writes to a uniquely named
// file in the system temp directory. The call blocks for the duration of the
// external process; cancel via ctx.
func (p *Pipeline) ConvertToVoiceNote(ctx context.Context, inputPath, outputPath string) (string, error) {
	if outputPath == "" {
		outputPath = filepath.Join(os.TempDir(), fmt.Sprintf("zapmux-voice-%s.ogg", uuid.NewString()))
	}

	cmd := exec.CommandContext(ctx, p.cfg.FFmpegPath, voiceNoteArgs(inputPath, outputPath)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", &TranscodeError{
			Input:  inputPath,
			Detail: strings.TrimSpace(string(out)),
			Err:    err,
		}
	}

	p.logger.Debug("audio transcoded to voice note",
		"input", inputPath,
		"output", outputPath)

	return outputPath, nil
}

// voiceNoteArgs builds the ffmpeg invocation for the PTT codec/container:
// mono opus in ogg at 48 kHz, the format the backend renders as a recorded
// voice message.
func voiceNoteArgs(in, out string) []string {
	return []string{
		"-y",
		"-loglevel", "error",
		"-i", in,
		"-c:a", "libopus",
		"-b:a", "24k",
		"-vbr", "on",
		"-compression_level", "10",
		"-ac", "1",
		"-ar", "48000",
		out,
	}
}
