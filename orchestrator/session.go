package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/autoqac-go/autoqac/backup"
	"github.com/autoqac-go/autoqac/logreader"
	"github.com/autoqac-go/autoqac/model"
	"github.com/autoqac-go/autoqac/parser"
	"github.com/autoqac-go/autoqac/process"
)

// runLoop is spec §4.3's per-plugin loop: strictly sequential, one active
// subprocess at any instant.
func (o *Orchestrator) runLoop(ctx context.Context, opts StartOptions, filtered []model.PluginEntry, bmgr *backup.Manager, backupDir string, backupSession *model.BackupSession) ([]model.PluginResult, bool, error) {
	results := make([]model.PluginResult, 0, len(filtered))

	for i, entry := range filtered {
		select {
		case <-ctx.Done():
			return results, true, nil
		default:
		}

		o.hub.UpdateProgress(entry.FileName, i)

		if bmgr != nil && backupSession != nil && entry.AbsolutePath != "" {
			action, skip, abort := o.backupPlugin(bmgr, backupDir, backupSession, entry, opts)
			if abort {
				if err := bmgr.WriteSessionMetadata(backupDir, backupSession); err != nil {
					o.logger.Error("write partial backup session metadata failed", "error", err)
				}
				return results, true, nil
			}
			if skip {
				res := model.PluginResult{PluginName: entry.FileName, Status: model.StatusSkipped, Message: action}
				results = append(results, res)
				o.hub.AddDetailedCleaningResult(res)
				continue
			}
		}

		res := o.runPlugin(ctx, opts, entry)
		results = append(results, res)
		o.hub.AddDetailedCleaningResult(res)
	}

	return results, ctx.Err() != nil, nil
}

// backupPlugin copies entry into the session directory, consulting
// OnBackupFailure on a copy error. Returns (message, skip, abort).
func (o *Orchestrator) backupPlugin(bmgr *backup.Manager, backupDir string, session *model.BackupSession, entry model.PluginEntry, opts StartOptions) (string, bool, bool) {
	err := bmgr.BackupPlugin(backupDir, session, entry.FileName, entry.AbsolutePath)
	o.hub.RecordBackupOutcome(err == nil)
	if err == nil {
		return "", false, false
	}

	action := ContinueWithoutBackup
	if opts.OnBackupFailure != nil {
		action = opts.OnBackupFailure(entry.FileName, err)
	} else {
		o.logger.Warn("backup failed, continuing without backup", "plugin", entry.FileName, "error", err)
	}

	switch action {
	case SkipPlugin:
		return err.Error(), true, false
	case AbortSession:
		return err.Error(), false, true
	default:
		return "", false, false
	}
}

// runPlugin drives one plugin's attempt loop (spec §4.3 step 4), preferring
// xEdit's own log-file statistics over stdout-derived ones once a run is
// classified as cleaned (step 6).
func (o *Orchestrator) runPlugin(ctx context.Context, opts StartOptions, entry model.PluginEntry) model.PluginResult {
	start := time.Now()

	var execResult process.Result
	var execErr error
	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		execResult, execErr = o.attempt(ctx, opts, entry)
		if execErr != nil {
			break
		}
		if execResult.TimedOut && attempt < maxRetryAttempts && opts.OnTimeoutRetry != nil {
			if opts.OnTimeoutRetry(entry.FileName, int(opts.timeout().Seconds()), attempt) {
				continue
			}
		}
		break
	}
	duration := time.Since(start)

	if execErr != nil {
		return model.PluginResult{PluginName: entry.FileName, Status: model.StatusFailed, Message: execErr.Error(), Duration: duration}
	}

	stats, completed := parser.Parse(execResult.StdoutLines)
	status := parser.DetermineStatus(stats, completed, execResult.TimedOut)
	res := model.PluginResult{PluginName: entry.FileName, Status: status, Duration: duration, Statistics: &stats, TimedOut: execResult.TimedOut}
	if execResult.TimedOut {
		res.Message = fmt.Sprintf("xEdit timed out after %s", opts.timeout())
	}

	if status == model.StatusCleaned {
		if lines, err := logreader.Read(opts.XEditExePath, start); err != nil {
			res.LogParseWarning = err.Error()
		} else {
			logStats, _ := parser.Parse(lines)
			res.Statistics = &logStats
		}
	}

	return res
}

// attempt launches one subprocess run for entry, registering it with the
// Orchestrator's control handle so StopCleaning/ForceStopCleaning can reach
// it while this call is blocked awaiting exit.
func (o *Orchestrator) attempt(ctx context.Context, opts StartOptions, entry model.PluginEntry) (process.Result, error) {
	inv, err := buildInvocation(opts, entry, entry.DetectedGame)
	if err != nil {
		return process.Result{}, err
	}

	procOpts := process.Options{
		Timeout:          opts.timeout(),
		CPUThreshold:     opts.cpuThreshold(),
		HasVisibleWindow: false, // xEdit/MO2 always run windowless under QAC automation (spec §4.4)
		TargetFilePath:   entry.AbsolutePath,
		OnHangChanged:    func(hanging bool) { o.hub.SetHangDetected(hanging) },
		OnStarted: func(pid int) {
			o.ctl.registerProcess(pid, process.Options{
				GracePeriod:      process.DefaultGracePeriod,
				TargetFilePath:   entry.AbsolutePath,
				HasVisibleWindow: false,
			})
		},
	}

	res, err := o.exec.Execute(ctx, inv, procOpts)
	o.ctl.clearProcess()
	return res, err
}
