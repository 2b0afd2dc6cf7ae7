package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autoqac-go/autoqac/model"
)

func newSkipListCommand(deps *rootDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skiplist",
		Short: "Inspect or edit a (game, variant) skip list",
	}
	cmd.AddCommand(newSkipListGetCommand(deps), newSkipListSetCommand(deps))
	return cmd
}

func newSkipListGetCommand(deps *rootDeps) *cobra.Command {
	var game, variant string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the effective skip list for a game and optional variant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if game == "" {
				return fmt.Errorf("--game is required")
			}
			logger, err := deps.logger()
			if err != nil {
				return err
			}
			store := deps.store(logger)
			if _, err := store.LoadMainConfig(); err != nil {
				return fmt.Errorf("load main config: %w", err)
			}
			for _, name := range store.GetSkipList(model.Game(game), variant) {
				fmt.Println(name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&game, "game", "", "game code, e.g. SSE, FO4, FNV, FO3, TES4")
	cmd.Flags().StringVar(&variant, "variant", "", "skip-list variant")
	return cmd
}

func newSkipListSetCommand(deps *rootDeps) *cobra.Command {
	var game, variant string
	cmd := &cobra.Command{
		Use:   "set [plugin names...]",
		Short: "Replace a (game, variant) skip list with the given plugin names",
		RunE: func(cmd *cobra.Command, args []string) error {
			if game == "" {
				return fmt.Errorf("--game is required")
			}
			logger, err := deps.logger()
			if err != nil {
				return err
			}
			store := deps.store(logger)
			if _, err := store.LoadMainConfig(); err != nil {
				return fmt.Errorf("load main config: %w", err)
			}
			if err := store.UpdateSkipList(model.Game(game), variant, args); err != nil {
				return fmt.Errorf("update skip list: %w", err)
			}
			fmt.Printf("skip list for %s%s now has %d entries\n", game, variantSuffix(variant), len(args))
			return nil
		},
	}
	cmd.Flags().StringVar(&game, "game", "", "game code, e.g. SSE, FO4, FNV, FO3, TES4")
	cmd.Flags().StringVar(&variant, "variant", "", "skip-list variant")
	return cmd
}

func variantSuffix(variant string) string {
	if variant == "" {
		return ""
	}
	return fmt.Sprintf(" (%s)", variant)
}
