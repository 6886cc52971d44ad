package wameow

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"google.golang.org/protobuf/proto"

	"github.com/jholhewres/zapmux/pkg/zapmux/waclient"
)

// SendText sends text through the rich message path.
func (c *Client) SendText(ctx context.Context, addr, text string) error {
	jid, err := parseJID(addr)
	if err != nil {
		return err
	}
	_, err = c.wm.SendMessage(ctx, jid, buildTextMessage(text))
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// SendMedia uploads the payload and sends the matching message type.
func (c *Client) SendMedia(ctx context.Context, addr string, media *waclient.Media) error {
	jid, err := parseJID(addr)
	if err != nil {
		return err
	}

	var mediaType whatsmeow.MediaType
	switch media.Kind {
	case waclient.MediaVoice:
		mediaType = whatsmeow.MediaAudio
	default:
		mediaType = whatsmeow.MediaImage
	}

	uploaded, err := c.wm.Upload(ctx, media.Data, mediaType)
	if err != nil {
		return fmt.Errorf("uploading media: %w", err)
	}

	waMsg := buildMediaMessage(media, uploaded)
	if media.ViewOnce {
		waMsg = wrapViewOnce(waMsg)
	}

	_, err = c.wm.SendMessage(ctx, jid, waMsg)
	if err != nil {
		return fmt.Errorf("sending media: %w", err)
	}
	return nil
}

func buildTextMessage(text string) *waE2E.Message {
	return &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String(text),
		},
	}
}

// rawTextMessage is the minimal stanza used by the fallback path.
func rawTextMessage(text string) *waE2E.Message {
	return &waE2E.Message{
		Conversation: proto.String(text),
	}
}

func buildMediaMessage(media *waclient.Media, uploaded whatsmeow.UploadResponse) *waE2E.Message {
	switch media.Kind {
	case waclient.MediaVoice:
		return &waE2E.Message{
			AudioMessage: &waE2E.AudioMessage{
				URL:           proto.String(uploaded.URL),
				DirectPath:    proto.String(uploaded.DirectPath),
				MediaKey:      uploaded.MediaKey,
				Mimetype:      proto.String(media.MimeType),
				FileEncSHA256: uploaded.FileEncSHA256,
				FileSHA256:    uploaded.FileSHA256,
				FileLength:    proto.Uint64(uploaded.FileLength),
				Seconds:       proto.Uint32(media.Seconds),
				PTT:           proto.Bool(media.PTT),
			},
		}
	default:
		return &waE2E.Message{
			ImageMessage: &waE2E.ImageMessage{
				URL:           proto.String(uploaded.URL),
				DirectPath:    proto.String(uploaded.DirectPath),
				MediaKey:      uploaded.MediaKey,
				Mimetype:      proto.String(media.MimeType),
				Caption:       proto.String(media.Caption),
				FileEncSHA256: uploaded.FileEncSHA256,
				FileSHA256:    uploaded.FileSHA256,
				FileLength:    proto.Uint64(uploaded.FileLength),
			},
		}
	}
}

// wrapViewOnce nests a message in the view-once envelope.
func wrapViewOnce(msg *waE2E.Message) *waE2E.Message {
	return &waE2E.Message{
		ViewOnceMessageV2: &waE2E.FutureProofMessage{
			Message: msg,
		},
	}
}
