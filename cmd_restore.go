package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/autoqac-go/autoqac/backup"
	"github.com/autoqac-go/autoqac/cliconfirm"
)

func newRestoreCommand(deps *rootDeps) *cobra.Command {
	var gameDataDir string
	var sessionID string
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "List backup sessions, or restore a plugin backup session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if gameDataDir == "" {
				return fmt.Errorf("--game-data-dir is required")
			}
			logger, err := deps.logger()
			if err != nil {
				return err
			}
			mgr := backup.New(gameDataDir, logger)

			sessions, err := mgr.ListSessions()
			if err != nil {
				return fmt.Errorf("list backup sessions: %w", err)
			}

			if sessionID == "" {
				if len(sessions) == 0 {
					fmt.Println("no backup sessions found")
					return nil
				}
				for _, s := range sessions {
					fmt.Printf("%s  %s  %s  %d plugin(s)\n", s.ID, s.Timestamp.Format("2006-01-02 15:04:05"), s.Game, len(s.Plugins))
				}
				return nil
			}

			id, err := uuid.Parse(sessionID)
			if err != nil {
				return fmt.Errorf("invalid --session id %q: %w", sessionID, err)
			}
			for _, s := range sessions {
				if s.ID != id {
					continue
				}
				if !yes {
					ok, err := cliconfirm.Confirm(os.Stdin, os.Stdout, fmt.Sprintf("restore %d plugin(s)? this overwrites files currently in place", len(s.Plugins)))
					if err != nil {
						return fmt.Errorf("read confirmation: %w", err)
					}
					if !ok {
						fmt.Println("restore cancelled")
						return nil
					}
				}
				results := backup.RestoreSession(s)
				var errs []error
				for _, r := range results {
					if r.Err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", r.FileName, r.Err))
						continue
					}
					fmt.Printf("restored %s\n", r.FileName)
				}
				return multierr.Combine(errs...)
			}
			return fmt.Errorf("no backup session with id %s", sessionID)
		},
	}

	cmd.Flags().StringVar(&gameDataDir, "game-data-dir", "", "the game's Data directory whose backups to list or restore")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to restore (omit to list sessions)")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	return cmd
}
