package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autoqac-go/autoqac/model"
)

func newDryRunCommand(deps *rootDeps) *cobra.Command {
	var flags cleanFlags
	cmd := &cobra.Command{
		Use:   "dry-run",
		Short: "Report which plugins would be cleaned or skipped, without launching xEdit",
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

			opts := startOptionsFromConfig(cfg)
			opts.Variant = flags.variant
			results, game, err := sess.orch.DryRun(opts)
			if err != nil {
				return fmt.Errorf("dry run failed: %w", err)
			}

			fmt.Printf("game: %s\n", game)
			for _, r := range results {
				if r.Status == model.DryRunWillClean {
					fmt.Printf("  %-40s will_clean\n", r.PluginName)
				} else {
					fmt.Printf("  %-40s will_skip (%s)\n", r.PluginName, r.Reason)
				}
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
