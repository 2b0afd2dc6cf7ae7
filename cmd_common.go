package main

import (
	"log/slog"

	"github.com/autoqac-go/autoqac/config"
	"github.com/autoqac-go/autoqac/heartbeat"
	"github.com/autoqac-go/autoqac/metrics"
	"github.com/autoqac-go/autoqac/orchestrator"
	"github.com/autoqac-go/autoqac/process"
	"github.com/autoqac-go/autoqac/state"
)

// session bundles the composed components a cleaning or dry-run invocation
// needs, torn down together via close(). The State Hub and Config Store are
// the only components other packages hold by reference (spec §3); everything
// else here is this command's own.
type session struct {
	store   *config.Store
	hub     *state.Hub
	orch    *orchestrator.Orchestrator
	metrics *metrics.Server
	hb      *heartbeat.Writer

	logger *slog.Logger
}

// wireSession wires the State Hub, Process Executor and Orchestrator around
// an already-loaded store and config, then attaches the optional
// metrics/heartbeat subscribers per cfg.Observability. NATSURL, if set, makes
// the hub's state changes available to external dashboards the way the
// teacher's daemon published to its bus.
func wireSession(store *config.Store, logger *slog.Logger, cfg *config.UserConfig) (*session, error) {
	hub := state.NewHub(logger)
	if cfg.NATSURL != "" {
		bridge, err := state.NewNATSBridge(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn("NATS bridge unavailable, continuing without it", "error", err)
		} else {
			hub = hub.WithNATSBridge(bridge)
		}
	}

	exec := process.NewExecutor(1, logger)
	orch := orchestrator.New(hub, store, exec, logger)

	s := &session{store: store, hub: hub, orch: orch, logger: logger}

	if cfg.Observability.MetricsEnabled {
		collector := metrics.NewCollector()
		metrics.Attach(collector, hub)
		s.metrics = metrics.NewServer(cfg.Observability.MetricsPort, collector, logger)
		go s.metrics.Start()
	}

	if cfg.Observability.HeartbeatPath != "" {
		w := heartbeat.NewWriter(cfg.Observability.HeartbeatPath)
		heartbeat.Attach(w, hub)
		s.hb = w
	}

	return s, nil
}

func (s *session) close() {
	if s.metrics != nil {
		s.metrics.Stop()
	}
	if err := s.store.FlushPendingSaves(); err != nil {
		s.logger.Error("flush pending config saves on shutdown failed", "error", err)
	}
}

// startOptionsFromConfig maps the persisted UserConfig onto the Orchestrator's
// entry contract; CLI flags bound directly to cfg fields before this call
// take precedence since they've already overwritten cfg in place.
func startOptionsFromConfig(cfg *config.UserConfig) orchestrator.StartOptions {
	return orchestrator.StartOptions{
		LoadOrderPath:     cfg.LoadOrderPath,
		XEditExePath:      cfg.XEditExePath,
		MO2ExePath:        cfg.MO2ExePath,
		MO2Mode:           cfg.MO2Mode,
		PartialForms:      cfg.PartialForms,
		DisableSkipLists:  cfg.DisableSkipLists,
		SelectedGame:      cfg.SelectedGame,
		BackupEnabled:     cfg.Backup.Enabled,
		MaxBackupSessions: cfg.Backup.MaxSessions,
		TimeoutSeconds:    cfg.Settings.TimeoutSeconds,
		CPUThreshold:      cfg.Settings.CPUThreshold,
	}
}
