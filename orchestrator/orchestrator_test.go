//go:build !windows

package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoqac-go/autoqac/config"
	"github.com/autoqac-go/autoqac/model"
	"github.com/autoqac-go/autoqac/process"
	"github.com/autoqac-go/autoqac/state"
)

// writeFakeXEdit writes an executable shell script at dir/name that echoes
// the given stdout lines and exits 0, standing in for a real xEdit build.
// The name determines the game the Game Detector infers (spec §4.8), so
// tests pick it deliberately (e.g. "SSEEdit" maps to GameSSE).
func writeFakeXEdit(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n"
	for _, l := range lines {
		script += "echo '" + l + "'\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *config.Store) {
	t.Helper()
	cfgStore := config.NewStore(t.TempDir(), nil)
	hub := state.NewHub(nil)
	exec := process.NewExecutor(1, nil)
	return New(hub, cfgStore, exec, nil), cfgStore
}

func TestStartCleaningRejectsMissingXEditPath(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	_, err := orch.StartCleaning(context.Background(), StartOptions{LoadOrderPath: "loadorder.txt"})

	var invalid *ConfigInvalidError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "xedit_exe_path", invalid.Field)
}

func TestStartCleaningRejectsMO2ModeWithoutMO2Path(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	dir := t.TempDir()
	xedit := writeFakeXEdit(t, dir, "SSEEdit")
	loadOrder := filepath.Join(dir, "loadorder.txt")
	require.NoError(t, os.WriteFile(loadOrder, []byte("Test.esp\n"), 0o644))

	_, err := orch.StartCleaning(context.Background(), StartOptions{
		LoadOrderPath: loadOrder,
		XEditExePath:  xedit,
		MO2Mode:       true,
	})

	var invalid *ConfigInvalidError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "mo2_exe_path", invalid.Field)
}

func TestStartCleaningCleansSinglePluginViaGameDetectionFromExecutable(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	dir := t.TempDir()
	xedit := writeFakeXEdit(t, dir, "SSEEdit", "Removing: foo", "Done.")

	loadOrder := filepath.Join(dir, "loadorder.txt")
	require.NoError(t, os.WriteFile(loadOrder, []byte("Test.esp\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Test.esp"), []byte("data"), 0o644))

	result, err := orch.StartCleaning(context.Background(), StartOptions{
		LoadOrderPath:  loadOrder,
		XEditExePath:   xedit,
		TimeoutSeconds: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, model.GameSSE, result.Game)
	require.Len(t, result.PluginResults, 1)
	assert.Equal(t, model.StatusCleaned, result.PluginResults[0].Status)
	require.NotNil(t, result.PluginResults[0].Statistics)
	assert.Equal(t, 1, result.PluginResults[0].Statistics.ItemsRemoved)
	assert.False(t, result.WasCancelled)
}

func TestStartCleaningAppliesSkipListFilter(t *testing.T) {
	orch, cfgStore := newTestOrchestrator(t)
	dir := t.TempDir()
	xedit := writeFakeXEdit(t, dir, "SSEEdit", "Removing: foo", "Done.")

	loadOrder := filepath.Join(dir, "loadorder.txt")
	require.NoError(t, os.WriteFile(loadOrder, []byte("Test.esp\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Test.esp"), []byte("data"), 0o644))

	require.NoError(t, cfgStore.UpdateSkipList(model.GameSSE, "", []string{"Test.esp"}))

	result, err := orch.StartCleaning(context.Background(), StartOptions{
		LoadOrderPath:  loadOrder,
		XEditExePath:   xedit,
		TimeoutSeconds: 5,
	})
	require.NoError(t, err)
	assert.Empty(t, result.PluginResults)
}

func TestStartCleaningUnknownGameIsConfigInvalid(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	dir := t.TempDir()
	xedit := writeFakeXEdit(t, dir, "xedit", "Removing: foo") // universal build, no game hint

	loadOrder := filepath.Join(dir, "loadorder.txt")
	require.NoError(t, os.WriteFile(loadOrder, []byte("Unrelated.esp\n"), 0o644))

	_, err := orch.StartCleaning(context.Background(), StartOptions{
		LoadOrderPath:  loadOrder,
		XEditExePath:   xedit,
		TimeoutSeconds: 5,
	})

	var invalid *ConfigInvalidError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "selected_game", invalid.Field)
}

func TestStartCleaningBacksUpPluginWhenEnabled(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	dir := t.TempDir()
	xedit := writeFakeXEdit(t, dir, "SSEEdit", "Removing: foo", "Done.")

	loadOrder := filepath.Join(dir, "loadorder.txt")
	require.NoError(t, os.WriteFile(loadOrder, []byte("Test.esp\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Test.esp"), []byte("plugin-bytes"), 0o644))

	result, err := orch.StartCleaning(context.Background(), StartOptions{
		LoadOrderPath:     loadOrder,
		XEditExePath:      xedit,
		TimeoutSeconds:    5,
		BackupEnabled:     true,
		MaxBackupSessions: 5,
	})
	require.NoError(t, err)
	require.Len(t, result.PluginResults, 1)

	backupsRoot := filepath.Join(dir, "AutoQAC Data", "backups")
	sessions, err := os.ReadDir(backupsRoot)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	backedUp := filepath.Join(backupsRoot, sessions[0].Name(), "Test.esp")
	got, err := os.ReadFile(backedUp)
	require.NoError(t, err)
	assert.Equal(t, "plugin-bytes", string(got))
}

func TestStopCleaningWithNoActiveSessionIsNoop(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	res, err := orch.StopCleaning()
	require.NoError(t, err)
	assert.Equal(t, model.TerminationResult{}, res)
}

func TestForceStopCleaningWithNoActiveSessionIsNoop(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	res, err := orch.ForceStopCleaning()
	require.NoError(t, err)
	assert.Equal(t, model.TerminationResult{}, res)
}

// waitForRegisteredPID polls the orchestrator's control handle until a
// subprocess pid is registered (OnStarted having fired) or t fails the test.
func waitForRegisteredPID(t *testing.T, orch *Orchestrator) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		orch.ctl.mu.Lock()
		ok := orch.ctl.hasPID
		orch.ctl.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for a registered subprocess pid")
}

// TestStopCleaningAgainstLiveProcessExitsGracefully exercises spec §8
// Scenario 4 end to end: a real running subprocess, stopped mid-attempt,
// that exits on its own within the grace window. It guards the race where
// Execute's own ctx.Done() handling force-killed the process out from under
// StopCleaning's explicit graceful Terminate call.
func TestStopCleaningAgainstLiveProcessExitsGracefully(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	dir := t.TempDir()
	xedit := filepath.Join(dir, "SSEEdit")
	require.NoError(t, os.WriteFile(xedit, []byte("#!/bin/sh\nsleep 0.3\necho Done.\n"), 0o755))

	loadOrder := filepath.Join(dir, "loadorder.txt")
	require.NoError(t, os.WriteFile(loadOrder, []byte("Test.esp\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Test.esp"), []byte("data"), 0o644))

	done := make(chan model.SessionResult, 1)
	go func() {
		result, err := orch.StartCleaning(context.Background(), StartOptions{
			LoadOrderPath:  loadOrder,
			XEditExePath:   xedit,
			TimeoutSeconds: 30,
		})
		require.NoError(t, err)
		done <- result
	}()

	waitForRegisteredPID(t, orch)
	stopResult, err := orch.StopCleaning()
	require.NoError(t, err)
	assert.True(t, stopResult.ExitedGracefully, "process should exit on its own well inside the 2s grace window")
	assert.False(t, stopResult.ForceKilled, "a grace-window exit must not be mislabeled as a force-kill")

	select {
	case result := <-done:
		assert.True(t, result.WasCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("StartCleaning did not return after StopCleaning")
	}
}

func TestStartCleaningHonoursCancellationBetweenPlugins(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	dir := t.TempDir()
	xedit := writeFakeXEdit(t, dir, "SSEEdit", "Removing: foo", "Done.")

	loadOrder := filepath.Join(dir, "loadorder.txt")
	require.NoError(t, os.WriteFile(loadOrder, []byte("A.esp\nB.esp\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A.esp"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "B.esp"), []byte("b"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already cancelled before the loop's first iteration

	result, err := orch.StartCleaning(ctx, StartOptions{
		LoadOrderPath:  loadOrder,
		XEditExePath:   xedit,
		TimeoutSeconds: 5,
	})
	require.NoError(t, err)
	assert.True(t, result.WasCancelled)
	assert.Empty(t, result.PluginResults)
}

func TestDryRunReportsWillCleanAndWillSkipWithoutLaunchingXEdit(t *testing.T) {
	orch, cfgStore := newTestOrchestrator(t)
	dir := t.TempDir()
	// Deliberately wrong exit behavior: if DryRun ever executed this, the
	// test would hang or fail, since Removing/Done lines are never echoed.
	xedit := writeFakeXEdit(t, dir, "SSEEdit")

	loadOrder := filepath.Join(dir, "loadorder.txt")
	require.NoError(t, os.WriteFile(loadOrder, []byte("Keep.esp\nSkipped.esp\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Keep.esp"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Skipped.esp"), []byte("b"), 0o644))

	require.NoError(t, cfgStore.UpdateSkipList(model.GameSSE, "", []string{"Skipped.esp"}))

	results, game, err := orch.DryRun(StartOptions{
		LoadOrderPath: loadOrder,
		XEditExePath:  xedit,
	})
	require.NoError(t, err)
	assert.Equal(t, model.GameSSE, game)
	require.Len(t, results, 2)
	assert.Equal(t, model.DryRunWillClean, results[0].Status)
	assert.Equal(t, model.DryRunWillSkip, results[1].Status)
	assert.NotEmpty(t, results[1].Reason)

	backupsRoot := filepath.Join(dir, "AutoQAC Data", "backups")
	_, statErr := os.Stat(backupsRoot)
	assert.True(t, os.IsNotExist(statErr), "DryRun must not create a backup session")
}

func TestStartOptionsDefaults(t *testing.T) {
	var o StartOptions
	assert.Equal(t, process.DefaultTimeout, o.timeout())
	assert.Equal(t, process.DefaultCPUThreshold, o.cpuThreshold())
	assert.Equal(t, 5, o.effectiveMaxSessions())
}

func TestRunPluginFailsWhenTimeoutSecondsElapse(t *testing.T) {
	orch, _ := newTestOrchestrator(t)
	dir := t.TempDir()
	// sleeps far longer than the configured timeout, forcing the escalation
	// ladder's force-kill path.
	xedit := filepath.Join(dir, "SSEEdit")
	require.NoError(t, os.WriteFile(xedit, []byte("#!/bin/sh\nsleep 30\n"), 0o755))

	loadOrder := filepath.Join(dir, "loadorder.txt")
	require.NoError(t, os.WriteFile(loadOrder, []byte("Test.esp\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Test.esp"), []byte("data"), 0o644))

	start := time.Now()
	result, err := orch.StartCleaning(context.Background(), StartOptions{
		LoadOrderPath:  loadOrder,
		XEditExePath:   xedit,
		TimeoutSeconds: 1,
	})
	require.NoError(t, err)
	require.Len(t, result.PluginResults, 1)
	assert.Equal(t, model.StatusFailed, result.PluginResults[0].Status)
	assert.Contains(t, result.PluginResults[0].Message, "timed out")
	assert.Less(t, time.Since(start), 10*time.Second)
}
