package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/autoqac-go/autoqac/config"
	"github.com/autoqac-go/autoqac/model"
)

// cleanFlags are bound directly by cobra and applied over the persisted
// UserConfig; each is applied conditionally so an unset flag never clobbers
// a value already saved in "AutoQAC Config.yaml".
type cleanFlags struct {
	loadOrder        string
	xedit            string
	mo2              string
	mo2Mode          bool
	partialForms     bool
	disableSkipLists bool
	game             string
	variant          string
	backup           bool
	maxSessions      int
	timeoutSeconds   int
}

func (f *cleanFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.loadOrder, "load-order", "", "path to the load order file (plugins.txt / loadorder.txt)")
	cmd.Flags().StringVar(&f.xedit, "xedit", "", "path to the xEdit executable")
	cmd.Flags().StringVar(&f.mo2, "mo2", "", "path to ModOrganizer.exe, if running under MO2")
	cmd.Flags().BoolVar(&f.mo2Mode, "mo2-mode", false, "launch xEdit through Mod Organizer 2")
	cmd.Flags().BoolVar(&f.partialForms, "partial-forms", false, "pass xEdit's partial forms flag")
	cmd.Flags().BoolVar(&f.disableSkipLists, "disable-skip-lists", false, "clean every selected plugin, ignoring skip lists")
	cmd.Flags().StringVar(&f.game, "game", "", "override game detection (e.g. SSE, FO4, FNV, FO3, TES4)")
	cmd.Flags().StringVar(&f.variant, "variant", "", "skip-list variant, e.g. \"Special Edition\"")
	cmd.Flags().BoolVar(&f.backup, "backup", false, "back up each plugin before cleaning it")
	cmd.Flags().IntVar(&f.maxSessions, "max-backup-sessions", 0, "backup sessions to retain (0 keeps the configured default)")
	cmd.Flags().IntVar(&f.timeoutSeconds, "timeout", 0, "per-plugin timeout in seconds (0 keeps the configured default)")
}

func (f *cleanFlags) apply(cfg *config.UserConfig) {
	if f.loadOrder != "" {
		cfg.LoadOrderPath = f.loadOrder
	}
	if f.xedit != "" {
		cfg.XEditExePath = f.xedit
	}
	if f.mo2 != "" {
		cfg.MO2ExePath = f.mo2
	}
	cfg.MO2Mode = cfg.MO2Mode || f.mo2Mode
	cfg.PartialForms = cfg.PartialForms || f.partialForms
	cfg.DisableSkipLists = cfg.DisableSkipLists || f.disableSkipLists
	if f.game != "" {
		cfg.SelectedGame = model.Game(f.game)
	}
	cfg.Backup.Enabled = cfg.Backup.Enabled || f.backup
	if f.maxSessions > 0 {
		cfg.Backup.MaxSessions = f.maxSessions
	}
	if f.timeoutSeconds > 0 {
		cfg.Settings.TimeoutSeconds = f.timeoutSeconds
	}
}

func newCleanCommand(deps *rootDeps) *cobra.Command {
	var flags cleanFlags
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Run one cleaning session over the configured load order",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := deps.logger()
			if err != nil {
				return err
			}
			store := deps.store(logger)
			cfg, err := store.LoadUserConfig()
			if err != nil {
				return fmt.Errorf("load user config: %w", err)
			}
			flags.apply(cfg)

			sess, err := wireSession(store, logger, cfg)
			if err != nil {
				return err
			}
			defer sess.close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				logger.Info("shutdown signal received, requesting cooperative stop")
				if _, err := sess.orch.StopCleaning(); err != nil {
					logger.Error("stop cleaning failed", "error", err)
				}
			}()

			opts := startOptionsFromConfig(cfg)
			opts.Variant = flags.variant
			result, err := sess.orch.StartCleaning(ctx, opts)
			if err != nil {
				return fmt.Errorf("cleaning session failed: %w", err)
			}

			printSessionResult(result)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func printSessionResult(result model.SessionResult) {
	fmt.Printf("game: %s\n", result.Game)
	for _, r := range result.PluginResults {
		fmt.Printf("  %-40s %s\n", r.PluginName, r.Status)
	}
	if result.WasCancelled {
		fmt.Println("session was cancelled")
	}
	fmt.Fprintf(os.Stderr, "cleaned %d plugin(s)\n", result.SessionSummary().Cleaned)
}
