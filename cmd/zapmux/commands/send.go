package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"github.com/jholhewres/zapmux/pkg/zapmux/dispatch"
	"github.com/jholhewres/zapmux/pkg/zapmux/session"
	"github.com/jholhewres/zapmux/pkg/zapmux/waclient"
	"github.com/jholhewres/zapmux/pkg/zapmux/wameow"
)

// newSendCmd creates the `zapmux send` command group for one-shot sends.
func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message through a session",
		Long: `Send a one-shot message through a session. The session is brought up,
the message is dispatched, and the client is torn down again.

Examples:
  zapmux send text --session support 44999999999 "Hello!"
  zapmux send image --session support --caption "Invoice" 44999999999 ./invoice.png
  zapmux send voice --session support 44999999999 ./note.mp3`,
	}

	cmd.PersistentFlags().String("session", "default", "session ID to send through")
	cmd.PersistentFlags().Duration("timeout", 2*time.Minute, "overall send timeout")

	cmd.AddCommand(newSendTextCmd(), newSendImageCmd(), newSendVoiceCmd())
	return cmd
}

func newSendTextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "text <to> <message>",
		Short: "Send a text message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, h *session.Handle) dispatch.Outcome {
				return h.SendText(ctx, args[0], args[1])
			})
		},
	}
}

func newSendImageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image <to> <path>...",
		Short: "Send one or more images",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caption, _ := cmd.Flags().GetString("caption")
			viewOnce, _ := cmd.Flags().GetBool("view-once")
			return withSession(cmd, func(ctx context.Context, h *session.Handle) dispatch.Outcome {
				return h.SendImage(ctx, args[0], args[1:], caption, viewOnce)
			})
		},
	}
	cmd.Flags().String("caption", "", "caption attached to the last image")
	cmd.Flags().Bool("view-once", false, "send as view-once")
	return cmd
}

func newSendVoiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voice <to> <audio-file>",
		Short: "Send an audio file as a voice note",
		Long: `Send an audio file as a push-to-talk voice note. The file is
transcoded to opus before sending, so any ffmpeg-readable input works.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewOnce, _ := cmd.Flags().GetBool("view-once")
			return withSession(cmd, func(ctx context.Context, h *session.Handle) dispatch.Outcome {
				converted, err := h.ConvertToVoiceNote(ctx, args[1], "")
				if err != nil {
					fmt.Printf("transcode failed: %v\n", err)
					return dispatch.OutcomeFailed
				}
				return h.SendVoice(ctx, args[0], converted, viewOnce)
			})
		},
	}
	cmd.Flags().Bool("view-once", false, "send as view-once")
	return cmd
}

// withSession brings a session up, waits for readiness, runs fn, and tears
// the client down. A failed outcome turns into a non-zero exit.
func withSession(cmd *cobra.Command, fn func(context.Context, *session.Handle) dispatch.Outcome) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	sessionID, _ := cmd.Flags().GetString("session")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	manager := session.NewManager(cfg.Session, wameow.NewFactory(cfg.Client), logger)
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		manager.Close(closeCtx)
	}()

	handle, err := manager.Connect(ctx, sessionID)
	if err != nil {
		return err
	}
	handle.On(waclient.EventQR, func(data any) {
		if code, ok := data.(string); ok {
			fmt.Printf("\nScan the QR code below to log in session %q:\n\n", sessionID)
			qrterminal.GenerateHalfBlock(code, qrterminal.L, os.Stdout)
			fmt.Println()
		}
	})
	if err := handle.Start(ctx); err != nil {
		return fmt.Errorf("session %q not ready: %w", sessionID, err)
	}

	outcome := fn(ctx, handle)
	fmt.Printf("outcome: %s\n", outcome)
	if !outcome.Sent() {
		return fmt.Errorf("send failed (outcome %s)", outcome)
	}
	return nil
}
