// autoqac drives xEdit's "Quick Auto Clean" mode over a Bethesda game's load
// order, one plugin at a time, with optional pre-clean backups and an
// optional Prometheus metrics endpoint.
//
// Usage:
//
//	autoqac clean --load-order <path> --xedit <path> [flags]
//	autoqac dry-run --load-order <path> --xedit <path> [flags]
//	autoqac restore --game-data-dir <path> [--session <id>]
//	autoqac skiplist get|set --game <game> [--variant <name>] [names...]
//	autoqac config show
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/autoqac-go/autoqac/config"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// rootDeps bundles the shared, lazily-built dependencies every subcommand
// needs, mirroring the teacher's single daemon struct but split by concern
// now that each is its own composed component.
type rootDeps struct {
	configDir string
	verbose   bool
}

// logger builds the process logger writing to both stderr and an appended
// <config_dir>/autoqac.log file, the same io.MultiWriter setup the teacher's
// main.go uses.
func (d *rootDeps) logger() (*slog.Logger, error) {
	level := slog.LevelInfo
	if d.verbose {
		level = slog.LevelDebug
	}

	dir := d.configDir
	if dir == "" {
		dir = config.DefaultConfigDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	logFile, err := os.OpenFile(filepath.Join(dir, "autoqac.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	out := io.MultiWriter(os.Stderr, logFile)
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), nil
}

func (d *rootDeps) store(logger *slog.Logger) *config.Store {
	dir := d.configDir
	if dir == "" {
		dir = config.DefaultConfigDir()
	}
	return config.NewStore(dir, logger)
}

func main() {
	deps := &rootDeps{}

	root := &cobra.Command{
		Use:     "autoqac",
		Short:   "Drive xEdit's Quick Auto Clean over a load order",
		Version: fmt.Sprintf("%s (%s)", version, commit),
	}
	root.PersistentFlags().StringVar(&deps.configDir, "config-dir", "", "AutoQAC Data directory (default: platform config dir)")
	root.PersistentFlags().BoolVar(&deps.verbose, "verbose", false, "enable debug logging")

	root.AddCommand(
		newCleanCommand(deps),
		newDryRunCommand(deps),
		newRestoreCommand(deps),
		newSkipListCommand(deps),
		newConfigCommand(deps),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
