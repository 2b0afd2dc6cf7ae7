package logreader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathForUppercasesStemAndAppendsSuffix(t *testing.T) {
	assert.Equal(t, filepath.Join("/opt/xedit", "SSEEDIT_log.txt"), PathFor("/opt/xedit/SSEEdit.exe"))
}

func TestReadReturnsLinesWhenFresh(t *testing.T) {
	dir := t.TempDir()
	xedit := filepath.Join(dir, "SSEEdit.exe")
	logPath := PathFor(xedit)

	processStart := time.Now().Add(-time.Minute)
	require.NoError(t, os.WriteFile(logPath, []byte("Removing: a\nUndeleting: b\n"), 0o644))
	require.NoError(t, os.Chtimes(logPath, time.Now(), time.Now()))

	lines, err := Read(xedit, processStart)
	require.NoError(t, err)
	assert.Equal(t, []string{"Removing: a", "Undeleting: b"}, lines)
}

func TestReadRejectsStaleLog(t *testing.T) {
	dir := t.TempDir()
	xedit := filepath.Join(dir, "SSEEdit.exe")
	logPath := PathFor(xedit)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.WriteFile(logPath, []byte("Removing: a\n"), 0o644))
	require.NoError(t, os.Chtimes(logPath, old, old))

	processStart := time.Now()
	_, err := Read(xedit, processStart)
	assert.Error(t, err)
}

func TestReadMissingFileErrorsAfterRetry(t *testing.T) {
	dir := t.TempDir()
	xedit := filepath.Join(dir, "SSEEdit.exe")

	start := time.Now()
	_, err := Read(xedit, time.Now())
	assert.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), retryDelay)
}
