package media

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jholhewres/zapmux/pkg/zapmux/waclient"
)

// voiceMimeType is the codec/container the backend renders as a recorded
// voice message.
const voiceMimeType = "audio/ogg; codecs=opus"

// LoadImage reads an image file into a send-ready payload. The MIME type is
// sniffed from the content.
func LoadImage(path, caption string, viewOnce bool) (*waclient.Media, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image %s: %w", path, err)
	}

	return &waclient.Media{
		Kind:     waclient.MediaImage,
		Data:     data,
		MimeType: http.DetectContentType(data),
		Filename: filepath.Base(path),
		Caption:  caption,
		ViewOnce: viewOnce,
	}, nil
}

// LoadVoice reads an already-converted voice-note file into a send-ready PTT
// payload. The file is expected to be in the voice-note format; run it
// through Pipeline.ConvertToVoiceNote first when in doubt.
func LoadVoice(path string, viewOnce bool) (*waclient.Media, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading audio %s: %w", path, err)
	}

	return &waclient.Media{
		Kind:     waclient.MediaVoice,
		Data:     data,
		MimeType: voiceMimeType,
		Filename: filepath.Base(path),
		PTT:      true,
		ViewOnce: viewOnce,
	}, nil
}
