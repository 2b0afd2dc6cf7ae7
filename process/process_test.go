//go:build !windows

package process

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoqac-go/autoqac/cmdbuilder"
)

func sh(script string) cmdbuilder.Invocation {
	return cmdbuilder.Invocation{Argv: []string{"/bin/sh", "-c", script}, Dir: "."}
}

func TestExecuteCapturesStdoutLines(t *testing.T) {
	e := NewExecutor(1, nil)
	var progress []string

	res, err := e.Execute(context.Background(), sh(`echo "Removing: foo"; echo "Undeleting: bar"`), Options{
		Timeout:        5 * time.Second,
		OnProgressLine: func(l string) { progress = append(progress, l) },
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.TimedOut)
	assert.Equal(t, []string{"Removing: foo", "Undeleting: bar"}, res.StdoutLines)
	assert.Equal(t, res.StdoutLines, progress)
}

func TestExecuteCapturesNonZeroExit(t *testing.T) {
	e := NewExecutor(1, nil)
	res, err := e.Execute(context.Background(), sh(`exit 7`), Options{Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 7, res.ExitCode)
}

func TestExecuteTimesOutAndKillsProcess(t *testing.T) {
	e := NewExecutor(1, nil)
	start := time.Now()

	res, err := e.Execute(context.Background(), sh(`sleep 30`), Options{
		Timeout:     500 * time.Millisecond,
		GracePeriod: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.True(t, res.Termination.ForceKilled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecuteSlotSerializesConcurrentLaunches(t *testing.T) {
	e := NewExecutor(1, nil)
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")

	done := make(chan struct{})
	go func() {
		_, _ = e.Execute(context.Background(), sh(`sleep 0.3; touch `+marker), Options{Timeout: 5 * time.Second})
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	res, err := e.Execute(context.Background(), sh(`test -f `+marker), Options{Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode, "marker should already exist once the slot is free")
	<-done

	_, err = os.Stat(marker)
	assert.NoError(t, err)
}

func TestPollHandleReleasedEmptyPathIsTrivial(t *testing.T) {
	assert.True(t, pollHandleReleased(""))
}

func TestPollHandleReleasedExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Patch.esp")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	assert.True(t, pollHandleReleased(path))
}
