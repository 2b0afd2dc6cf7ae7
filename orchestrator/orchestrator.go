// Package orchestrator implements the Orchestrator (spec §4.3): the session
// state machine that composes the Config Store, State Hub, Plugin Enumerator,
// Skip-List Filter, Game Detector, Command Builder, Process Executor, Output
// Parser, Backup Manager and Log-File Reader into one cleaning run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/autoqac-go/autoqac/backup"
	"github.com/autoqac-go/autoqac/cmdbuilder"
	"github.com/autoqac-go/autoqac/config"
	"github.com/autoqac-go/autoqac/gamedetect"
	"github.com/autoqac-go/autoqac/loadorder"
	"github.com/autoqac-go/autoqac/model"
	"github.com/autoqac-go/autoqac/process"
	"github.com/autoqac-go/autoqac/skiplist"
	"github.com/autoqac-go/autoqac/state"
)

// maxRetryAttempts bounds the per-plugin timeout-retry loop (spec §4.3 step 4).
const maxRetryAttempts = 3

// StartOptions is the entry contract for a cleaning session: `start_cleaning`
// plus everything the per-session preconditions and setup sequence need.
type StartOptions struct {
	LoadOrderPath string
	XEditExePath  string
	MO2ExePath    string

	MO2Mode          bool
	PartialForms     bool
	DisableSkipLists bool

	// SelectedGame, if not GameUnknown, is trusted as-is. Otherwise the
	// Orchestrator tries to detect it from the executable, then from the
	// load order's first recognized master.
	SelectedGame model.Game
	// Variant selects a (game, variant) skip list. The spec defers concrete
	// variant-identification rules to the caller (see DESIGN.md); an empty
	// variant uses only the game-universal list.
	Variant string

	BackupEnabled     bool
	MaxBackupSessions int

	TimeoutSeconds int
	CPUThreshold   float64

	// OnTimeoutRetry is consulted when an attempt times out and attempts
	// remain; returning true retries the same plugin.
	OnTimeoutRetry func(pluginName string, timeoutSeconds, attempt int) bool
	// OnBackupFailure is consulted when a per-plugin backup copy fails; the
	// default (nil callback) is ContinueWithoutBackup, logged at warning.
	OnBackupFailure func(pluginName string, err error) BackupFailureAction
}

func (o StartOptions) timeout() time.Duration {
	if o.TimeoutSeconds <= 0 {
		return process.DefaultTimeout
	}
	return time.Duration(o.TimeoutSeconds) * time.Second
}

func (o StartOptions) cpuThreshold() float64 {
	if o.CPUThreshold <= 0 {
		return process.DefaultCPUThreshold
	}
	return o.CPUThreshold
}

// Orchestrator owns the session cancellation handle and the reference to the
// currently running subprocess for the lifetime of a foreground plugin
// iteration (spec §3's ownership rule). Config Store and State Hub are held
// by reference and owned elsewhere.
type Orchestrator struct {
	hub      *state.Hub
	cfgStore *config.Store
	exec     *process.Executor
	logger   *slog.Logger

	ctl control
}

// New creates an Orchestrator driving hub and cfgStore through exec.
func New(hub *state.Hub, cfgStore *config.Store, exec *process.Executor, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{hub: hub, cfgStore: cfgStore, exec: exec, logger: logger}
}

// StartCleaning runs one full cleaning session to completion, cancellation,
// or a fatal setup error. It is synchronous — the orchestration loop is a
// single logical flow of control (spec §5); callers wanting a non-blocking
// session run it on their own goroutine and drive StopCleaning/
// ForceStopCleaning from elsewhere.
func (o *Orchestrator) StartCleaning(ctx context.Context, opts StartOptions) (model.SessionResult, error) {
	if err := o.checkPreconditions(opts); err != nil {
		return model.SessionResult{}, err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	o.ctl.beginSession(cancel)
	defer o.ctl.endSession()

	result := model.SessionResult{
		ID:        uuid.New(),
		StartTime: time.Now().UTC(),
	}

	filtered, game, bmgr, backupDir, backupSession, err := o.setup(opts)
	if err != nil {
		result.EndTime = time.Now().UTC()
		o.hub.FinishCleaningWithResults(result)
		return result, err
	}
	result.Game = game

	o.hub.StartCleaning(filtered)

	results, wasCancelled, loopErr := o.runLoop(sessionCtx, opts, filtered, bmgr, backupDir, backupSession)
	result.PluginResults = results
	result.WasCancelled = wasCancelled

	if bmgr != nil && backupSession != nil {
		if err := bmgr.WriteSessionMetadata(backupDir, backupSession); err != nil {
			o.logger.Error("write backup session metadata failed", "error", err)
		}
		if err := bmgr.Retain(opts.effectiveMaxSessions()); err != nil {
			o.logger.Error("backup retention failed", "error", err)
		}
	}

	result.EndTime = time.Now().UTC()
	o.hub.FinishCleaningWithResults(result)

	if loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		return result, loopErr
	}
	return result, nil
}

func (o StartOptions) effectiveMaxSessions() int {
	if o.MaxBackupSessions <= 0 {
		return 5
	}
	return o.MaxBackupSessions
}

// checkPreconditions enforces spec §4.3's per-session preconditions; any
// failure throws ConfigInvalid with a remediation hint.
func (o *Orchestrator) checkPreconditions(opts StartOptions) error {
	if opts.LoadOrderPath == "" {
		return configInvalid("load_order_path", "set the load order file path before cleaning")
	}
	if opts.XEditExePath == "" {
		return configInvalid("xedit_exe_path", "set the xEdit executable path before cleaning")
	}
	if _, err := os.Stat(opts.XEditExePath); err != nil {
		return configInvalid("xedit_exe_path", fmt.Sprintf("xEdit executable not found at %q", opts.XEditExePath))
	}
	if opts.MO2Mode {
		if opts.MO2ExePath == "" {
			return configInvalid("mo2_exe_path", "set the Mod Organizer 2 executable path, or disable mo2_mode")
		}
		if _, err := os.Stat(opts.MO2ExePath); err != nil {
			return configInvalid("mo2_exe_path", fmt.Sprintf("MO2 executable not found at %q", opts.MO2ExePath))
		}
	}
	return nil
}

// prepareEntries runs spec §4.3 setup steps 2-5: enumerate the load order,
// detect the game, and annotate every entry against the active skip list.
// Unlike setup, it returns every entry — selected or not, skip-listed or not
// — since DryRun needs to report on all of them, not just the eligible
// subset the session loop will actually iterate.
func (o *Orchestrator) prepareEntries(opts StartOptions) ([]model.PluginEntry, model.Game, error) {
	dataDir := ""
	if !opts.MO2Mode {
		dataDir = filepath.Dir(opts.LoadOrderPath)
	}
	entries, err := loadorder.Enumerate(opts.LoadOrderPath, dataDir)
	if err != nil {
		return nil, model.GameUnknown, fmt.Errorf("orchestrator: enumerate load order: %w", err)
	}

	game := opts.SelectedGame
	if game == model.GameUnknown {
		game = gamedetect.FromExecutable(opts.XEditExePath)
	}
	if game == model.GameUnknown {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.FileName
		}
		game = gamedetect.FromLoadOrder(names)
	}
	if game == model.GameUnknown {
		return nil, model.GameUnknown, configInvalid("selected_game",
			"game could not be determined from the xEdit executable or load order; select it explicitly (skip lists cannot be applied safely otherwise)")
	}

	for i := range entries {
		entries[i].DetectedGame = game
	}

	if !opts.DisableSkipLists {
		skipNames := o.cfgStore.GetSkipList(game, gamedetect.NormalizeVariant(opts.Variant))
		entries = skiplist.Annotate(entries, skiplist.New(skipNames))
	}
	return entries, game, nil
}

// setup runs spec §4.3's full setup sequence (steps 1-6), returning the
// filtered plugin list the session will iterate and, if backup is enabled
// and possible, the backup manager/session/directory triple.
func (o *Orchestrator) setup(opts StartOptions) ([]model.PluginEntry, model.Game, *backup.Manager, string, *model.BackupSession, error) {
	cleanOrphanedProcesses()

	if err := o.cfgStore.FlushPendingSaves(); err != nil {
		o.logger.Warn("flush pending config saves failed", "error", err)
	}

	entries, game, err := o.prepareEntries(opts)
	if err != nil {
		return nil, model.GameUnknown, nil, "", nil, err
	}
	filtered := skiplist.Filter(entries)

	var bmgr *backup.Manager
	var backupDir string
	var backupSession *model.BackupSession
	if opts.BackupEnabled && !opts.MO2Mode {
		rootedDir := ""
		for _, e := range filtered {
			if e.AbsolutePath != "" {
				rootedDir = filepath.Dir(e.AbsolutePath)
				break
			}
		}
		if rootedDir == "" {
			o.logger.Warn("backup enabled but no plugin has a resolved path; skipping backup for this session")
		} else {
			bmgr = backup.New(rootedDir, o.logger)
			dir, session, err := bmgr.StartSession(game, time.Now())
			if err != nil {
				o.logger.Error("start backup session failed", "error", err)
				bmgr = nil
			} else {
				backupDir, backupSession = dir, session
			}
		}
	}

	return filtered, game, bmgr, backupDir, backupSession, nil
}

// buildInvocation produces the subprocess argv per spec §4.5.
func buildInvocation(opts StartOptions, entry model.PluginEntry, game model.Game) (cmdbuilder.Invocation, error) {
	direct, err := cmdbuilder.BuildDirect(opts.XEditExePath, entry.FileName, gamedetect.IsUniversalBuild(opts.XEditExePath), game, opts.PartialForms)
	if err != nil {
		return cmdbuilder.Invocation{}, err
	}
	if opts.MO2Mode {
		return cmdbuilder.BuildMO2(opts.MO2ExePath, direct), nil
	}
	return direct, nil
}
