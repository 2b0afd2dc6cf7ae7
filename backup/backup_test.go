package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoqac-go/autoqac/model"
)

func TestStartSessionCreatesTimestampedDirectory(t *testing.T) {
	gameDataDir := t.TempDir()
	m := New(gameDataDir, nil)

	ts := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	dir, session, err := m.StartSession(model.GameSSE, ts)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(gameDataDir, "AutoQAC Data/backups/20260305_143000Z"), dir)
	assert.Equal(t, model.GameSSE, session.Game)
	_, err = os.Stat(dir)
	assert.NoError(t, err)
}

func TestBackupPluginCopiesAndRecords(t *testing.T) {
	gameDataDir := t.TempDir()
	m := New(gameDataDir, nil)

	pluginPath := filepath.Join(gameDataDir, "Patch.esp")
	require.NoError(t, os.WriteFile(pluginPath, []byte("plugin-data"), 0o644))

	dir, session, err := m.StartSession(model.GameSSE, time.Now())
	require.NoError(t, err)

	require.NoError(t, m.BackupPlugin(dir, session, "Patch.esp", pluginPath))
	require.Len(t, session.Plugins, 1)
	assert.Equal(t, int64(len("plugin-data")), session.Plugins[0].FileSizeBytes)

	got, err := os.ReadFile(filepath.Join(dir, "Patch.esp"))
	require.NoError(t, err)
	assert.Equal(t, "plugin-data", string(got))
}

func TestWriteSessionMetadata(t *testing.T) {
	gameDataDir := t.TempDir()
	m := New(gameDataDir, nil)
	dir, session, err := m.StartSession(model.GameFO4, time.Now())
	require.NoError(t, err)

	require.NoError(t, m.WriteSessionMetadata(dir, session))
	_, err = os.Stat(filepath.Join(dir, "session.json"))
	assert.NoError(t, err)
}

func TestRetainKeepsNewestSessionsOnly(t *testing.T) {
	gameDataDir := t.TempDir()
	m := New(gameDataDir, nil)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var dirs []string
	for i := 0; i < 8; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		dir, _, err := m.StartSession(model.GameSSE, ts)
		require.NoError(t, err)
		dirs = append(dirs, dir)
	}

	require.NoError(t, m.Retain(5))

	for i, dir := range dirs {
		_, err := os.Stat(dir)
		if i < 3 {
			assert.True(t, os.IsNotExist(err), "expected %s removed", dir)
		} else {
			assert.NoError(t, err, "expected %s retained", dir)
		}
	}
}

func TestRetainNeverTouchesOutsideRoot(t *testing.T) {
	gameDataDir := t.TempDir()
	m := New(gameDataDir, nil)

	sentinel := filepath.Join(gameDataDir, "sentinel.txt")
	require.NoError(t, os.WriteFile(sentinel, []byte("keep me"), 0o644))

	_, _, err := m.StartSession(model.GameSSE, time.Now())
	require.NoError(t, err)
	require.NoError(t, m.Retain(1))

	_, err = os.Stat(sentinel)
	assert.NoError(t, err)
}

func TestRestoreSessionCopiesBackAndReportsPartialFailures(t *testing.T) {
	dir := t.TempDir()
	goodOriginal := filepath.Join(dir, "Good.esp")
	badOriginal := filepath.Join(dir, "Bad.esp")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Good.esp"), []byte("original"), 0o644))

	sessionDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(sessionDir, "Good.esp"), []byte("restored"), 0o644))
	// Bad.esp is deliberately absent from sessionDir, so its restore fails.

	session := model.BackupSession{
		SessionDirectory: sessionDir,
		Plugins: []model.BackupPluginEntry{
			{FileName: "Good.esp", OriginalPath: goodOriginal},
			{FileName: "Bad.esp", OriginalPath: badOriginal},
		},
	}

	results := RestoreSession(session)
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)

	got, err := os.ReadFile(goodOriginal)
	require.NoError(t, err)
	assert.Equal(t, "restored", string(got))
}

func TestListSessionsReturnsNewestFirst(t *testing.T) {
	gameDataDir := t.TempDir()
	m := New(gameDataDir, nil)

	older := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	dir1, s1, err := m.StartSession(model.GameSSE, older)
	require.NoError(t, err)
	require.NoError(t, m.WriteSessionMetadata(dir1, s1))

	dir2, s2, err := m.StartSession(model.GameSSE, newer)
	require.NoError(t, err)
	require.NoError(t, m.WriteSessionMetadata(dir2, s2))

	sessions, err := m.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.True(t, sessions[0].Timestamp.After(sessions[1].Timestamp))
}

func TestListSessionsOnMissingRootReturnsEmpty(t *testing.T) {
	m := New(t.TempDir(), nil)
	sessions, err := m.ListSessions()
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
