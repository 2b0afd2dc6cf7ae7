package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autoqac-go/autoqac/model"
)

func newConfigCommand(deps *rootDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit the persisted AutoQAC configuration",
	}
	cmd.AddCommand(newConfigShowCommand(deps), newConfigSetCommand(deps))
	return cmd
}

func newConfigShowCommand(deps *rootDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective user configuration",
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
			fmt.Printf("load_order_path: %s\n", cfg.LoadOrderPath)
			fmt.Printf("xedit_exe_path: %s\n", cfg.XEditExePath)
			fmt.Printf("mo2_exe_path: %s\n", cfg.MO2ExePath)
			fmt.Printf("mo2_mode: %t\n", cfg.MO2Mode)
			fmt.Printf("partial_forms: %t\n", cfg.PartialForms)
			fmt.Printf("disable_skip_lists: %t\n", cfg.DisableSkipLists)
			fmt.Printf("selected_game: %s\n", cfg.SelectedGame)
			fmt.Printf("backup.enabled: %t\n", cfg.Backup.Enabled)
			fmt.Printf("backup.max_sessions: %d\n", cfg.Backup.MaxSessions)
			fmt.Printf("settings.timeout_seconds: %d\n", cfg.Settings.TimeoutSeconds)
			fmt.Printf("settings.cpu_threshold: %g\n", cfg.Settings.CPUThreshold)
			fmt.Printf("observability.metrics_enabled: %t\n", cfg.Observability.MetricsEnabled)
			fmt.Printf("observability.metrics_port: %d\n", cfg.Observability.MetricsPort)
			fmt.Printf("observability.heartbeat_path: %s\n", cfg.Observability.HeartbeatPath)
			return nil
		},
	}
}

// configSetFlags covers the paths, selected game, backup enablement, runtime
// settings and observability fields of UserConfig (mo2_mode, partial_forms,
// disable_skip_lists, backup.max_sessions, log retention and nats_url have no
// flag here); each is applied only if the caller actually passed the flag, so
// "config set --backup=true" never resets unrelated fields to their zero value.
type configSetFlags struct {
	loadOrder      string
	xedit          string
	mo2            string
	game           string
	timeoutSeconds int
	cpuThreshold   float64
	metricsPort    int
	heartbeatPath  string
}

func newConfigSetCommand(deps *rootDeps) *cobra.Command {
	var flags configSetFlags
	var backup, metricsEnabled bool

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update one or more persisted configuration fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := deps.logger()
			if err != nil {
				return err
			}
			store := deps.store(logger)
			if _, err := store.LoadUserConfig(); err != nil {
				return fmt.Errorf("load user config: %w", err)
			}

			if cmd.Flags().Changed("load-order") {
				if err := store.SetLoadOrderPath(flags.loadOrder); err != nil {
					return fmt.Errorf("set load order path: %w", err)
				}
			}
			if cmd.Flags().Changed("xedit") {
				if err := store.SetXEditExePath(flags.xedit); err != nil {
					return fmt.Errorf("set xedit path: %w", err)
				}
			}
			if cmd.Flags().Changed("mo2") {
				if err := store.SetMO2ExePath(flags.mo2); err != nil {
					return fmt.Errorf("set mo2 path: %w", err)
				}
			}
			if cmd.Flags().Changed("game") {
				if err := store.SetSelectedGame(model.Game(flags.game)); err != nil {
					return fmt.Errorf("set selected game: %w", err)
				}
			}
			if cmd.Flags().Changed("backup") {
				if err := store.SetBackupEnabled(backup); err != nil {
					return fmt.Errorf("set backup enabled: %w", err)
				}
			}
			if cmd.Flags().Changed("timeout") {
				store.SetTimeoutSeconds(flags.timeoutSeconds)
			}
			if cmd.Flags().Changed("cpu-threshold") {
				store.SetCPUThreshold(flags.cpuThreshold)
			}
			if cmd.Flags().Changed("metrics-enabled") || cmd.Flags().Changed("metrics-port") || cmd.Flags().Changed("heartbeat-path") {
				cfg, err := store.LoadUserConfig()
				if err != nil {
					return fmt.Errorf("load user config: %w", err)
				}
				if cmd.Flags().Changed("metrics-enabled") {
					cfg.Observability.MetricsEnabled = metricsEnabled
				}
				if cmd.Flags().Changed("metrics-port") {
					cfg.Observability.MetricsPort = flags.metricsPort
				}
				if cmd.Flags().Changed("heartbeat-path") {
					cfg.Observability.HeartbeatPath = flags.heartbeatPath
				}
				if err := store.SaveUserConfig(cfg); err != nil {
					return fmt.Errorf("save observability settings: %w", err)
				}
			}

			if err := store.FlushPendingSaves(); err != nil {
				return fmt.Errorf("flush pending saves: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.loadOrder, "load-order", "", "path to the load order file")
	cmd.Flags().StringVar(&flags.xedit, "xedit", "", "path to the xEdit executable")
	cmd.Flags().StringVar(&flags.mo2, "mo2", "", "path to ModOrganizer.exe")
	cmd.Flags().StringVar(&flags.game, "game", "", "selected game code")
	cmd.Flags().BoolVar(&backup, "backup", false, "enable pre-clean backups")
	cmd.Flags().IntVar(&flags.timeoutSeconds, "timeout", 0, "per-plugin timeout in seconds")
	cmd.Flags().Float64Var(&flags.cpuThreshold, "cpu-threshold", 0, "hang-detection CPU usage threshold")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", false, "expose the Prometheus /metrics endpoint")
	cmd.Flags().IntVar(&flags.metricsPort, "metrics-port", 0, "Prometheus /metrics port")
	cmd.Flags().StringVar(&flags.heartbeatPath, "heartbeat-path", "", "heartbeat JSON file path")
	return cmd
}
