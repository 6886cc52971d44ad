package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/jholhewres/zapmux/pkg/zapmux/session"
	"github.com/jholhewres/zapmux/pkg/zapmux/wameow"
)

// newSessionsCmd creates the `zapmux sessions` command group.
func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage stored sessions",
		Long: `Inspect and manage the sessions stored under the cache root.

Examples:
  zapmux sessions list
  zapmux sessions delete support
  zapmux sessions delete support --yes`,
	}

	cmd.AddCommand(newSessionsListCmd(), newSessionsDeleteCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions found under the cache root",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			entries, err := os.ReadDir(cfg.Session.CacheRoot)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("No sessions found.")
					return nil
				}
				return fmt.Errorf("reading cache root: %w", err)
			}

			found := 0
			for _, entry := range entries {
				id, ok := strings.CutPrefix(entry.Name(), "session-")
				if !ok || !entry.IsDir() {
					continue
				}
				found++

				status := "no credentials"
				if _, err := os.Stat(filepath.Join(cfg.Session.CacheRoot, entry.Name(), "session.db")); err == nil {
					status = "paired"
				}
				modified := "unknown"
				if info, err := entry.Info(); err == nil {
					modified = info.ModTime().Format(time.DateTime)
				}
				fmt.Printf("  %-20s %-16s last used %s\n", id, status, modified)
			}
			if found == 0 {
				fmt.Println("No sessions found.")
			}
			return nil
		},
	}
}

func newSessionsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its cached credentials",
		Long: `Delete a session: its client is destroyed if running and the cache
directory, including stored credentials, is removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]

			assumeYes, _ := cmd.Flags().GetBool("yes")
			if !assumeYes {
				confirmed := false
				err := huh.NewConfirm().
					Title(fmt.Sprintf("Delete session %q?", sessionID)).
					Description("Stored credentials will be removed. The session will need a new QR login.").
					Value(&confirmed).
					Run()
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Println("Aborted.")
					return nil
				}
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)
			manager := session.NewManager(cfg.Session, wameow.NewFactory(cfg.Client), logger)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := manager.Delete(ctx, sessionID); err != nil {
				return err
			}
			fmt.Printf("Session %q deleted.\n", sessionID)
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	return cmd
}
