package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"github.com/jholhewres/zapmux/pkg/zapmux/groupmon"
	"github.com/jholhewres/zapmux/pkg/zapmux/session"
	"github.com/jholhewres/zapmux/pkg/zapmux/waclient"
	"github.com/jholhewres/zapmux/pkg/zapmux/wameow"
)

// newServeCmd creates the `zapmux serve` command that runs the daemon.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon with all configured sessions",
		Long: `Run zapmux as a daemon, bringing up every session listed in the
configuration. First-login sessions print a QR code to scan.

Examples:
  zapmux serve
  zapmux serve --session support --session sales
  zapmux serve --config ./zapmux.yaml`,
		RunE: runServe,
	}

	cmd.Flags().StringSlice("session", nil, "session IDs to bring up (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	sessionIDs, _ := cmd.Flags().GetStringSlice("session")
	if len(sessionIDs) == 0 {
		sessionIDs = cfg.Sessions
	}
	if len(sessionIDs) == 0 {
		sessionIDs = []string{"default"}
	}

	manager := session.NewManager(cfg.Session, wameow.NewFactory(cfg.Client), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, id := range sessionIDs {
		handle, err := manager.Connect(ctx, id)
		if err != nil {
			logger.Error("failed to connect session", "session", id, "error", err)
			continue
		}

		sid := id
		handle.On(waclient.EventQR, func(data any) {
			code, ok := data.(string)
			if !ok {
				return
			}
			fmt.Printf("\nScan the QR code below to log in session %q:\n\n", sid)
			qrterminal.GenerateHalfBlock(code, qrterminal.L, os.Stdout)
			fmt.Println()
		})
		handle.On(waclient.EventLoggedOut, func(any) {
			logger.Warn("session logged out by server", "session", sid)
		})
		handle.OnGroupActivity(func(rec groupmon.Record) {
			logger.Info("group activity",
				"session", sid,
				"group", rec.GroupID,
				"group_name", rec.GroupName,
				"actor", rec.ActorNumber,
				"action", rec.Action)
		})

		logger.Info("session connecting", "session", id)
	}

	if err := manager.StartJanitor(); err != nil {
		logger.Warn("cache janitor not started", "error", err)
	}

	logger.Info("zapmux running", "sessions", len(sessionIDs))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping...")

	manager.StopJanitor()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	manager.Close(shutdownCtx)

	logger.Info("shutdown complete")
	return nil
}
