// Package backup implements the Backup Manager: pre-clean copies of target
// plugins into timestamped session directories, session metadata, retention,
// and restore, adapted from the teacher's on-disk backup eviction pattern.
package backup

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/autoqac-go/autoqac/model"
	"github.com/autoqac-go/autoqac/pkg/fsops"
)

const (
	backupsDirName    = "AutoQAC Data/backups"
	sessionMetaFile   = "session.json"
	sessionTimeLayout = "20060102_150405Z"
)

// Manager owns one game's backup root (<game_data_dir>/AutoQAC Data/backups)
// and never touches anything outside it.
type Manager struct {
	root   string
	logger *slog.Logger
}

// New creates a Manager rooted at <gameDataDir>/AutoQAC Data/backups.
func New(gameDataDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{root: filepath.Join(gameDataDir, backupsDirName), logger: logger}
}

// Root returns the backup root directory.
func (m *Manager) Root() string { return m.root }

// StartSession creates a new timestamped session directory and returns its
// path plus the BackupSession metadata accumulator, keyed by ts (the caller
// supplies the UTC instant so it's reproducible in tests and so retention
// sorting has a stable, test-controlled clock).
func (m *Manager) StartSession(game model.Game, ts time.Time) (string, *model.BackupSession, error) {
	dir := filepath.Join(m.root, ts.UTC().Format(sessionTimeLayout))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("backup: create session dir: %w", err)
	}
	session := &model.BackupSession{
		ID:               uuid.New(),
		Timestamp:        ts.UTC(),
		Game:             game,
		SessionDirectory: dir,
	}
	return dir, session, nil
}

// BackupPlugin copies a plugin file into the session directory and records
// its entry in session. Only rooted absolute paths are ever passed in by the
// Orchestrator (spec §4.3 step 6); MO2 mode never calls this at all.
func (m *Manager) BackupPlugin(sessionDir string, session *model.BackupSession, fileName, absolutePath string) error {
	dst := filepath.Join(sessionDir, fileName)
	size, err := fsops.CopyFile(absolutePath, dst)
	if err != nil {
		return fmt.Errorf("backup: copy %s: %w", fileName, err)
	}
	session.Plugins = append(session.Plugins, model.BackupPluginEntry{
		FileName:      fileName,
		OriginalPath:  absolutePath,
		FileSizeBytes: size,
	})
	return nil
}

// WriteSessionMetadata writes session.json into the session directory,
// whether the session completed, was cancelled, or aborted mid-backup.
func (m *Manager) WriteSessionMetadata(sessionDir string, session *model.BackupSession) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("backup: marshal session metadata: %w", err)
	}
	return fsops.AtomicWriteFile(filepath.Join(sessionDir, sessionMetaFile), data, 0o644)
}

// Retain keeps the maxSessions most recent session directories under root
// (sorted descending by the UTC timestamp parsed from their name; directories
// whose name doesn't parse sort last and are treated as eligible for
// deletion first) and recursively deletes the rest. It never touches
// anything outside m.root.
func (m *Manager) Retain(maxSessions int) error {
	if maxSessions < 1 {
		maxSessions = 1
	}

	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("backup: list sessions: %w", err)
	}

	type session struct {
		path string
		ts   time.Time
		ok   bool
	}
	var sessions []session
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ts, err := time.Parse(sessionTimeLayout, e.Name())
		sessions = append(sessions, session{path: filepath.Join(m.root, e.Name()), ts: ts, ok: err == nil})
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].ok != sessions[j].ok {
			return sessions[i].ok // parseable timestamps sort before unparseable ones
		}
		return sessions[i].ts.After(sessions[j].ts)
	})

	var errs []error
	for i := maxSessions; i < len(sessions); i++ {
		if err := os.RemoveAll(sessions[i].path); err != nil {
			errs = append(errs, fmt.Errorf("backup: remove %s: %w", sessions[i].path, err))
		}
	}
	return multierr.Combine(errs...)
}

// ListSessions reads every session.json under m.root, newest first, for a
// caller (the restore CLI subcommand) to present as a pick list.
func (m *Manager) ListSessions() ([]model.BackupSession, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("backup: list sessions: %w", err)
	}

	var sessions []model.BackupSession
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.root, e.Name(), sessionMetaFile))
		if err != nil {
			continue
		}
		var s model.BackupSession
		if err := json.Unmarshal(data, &s); err != nil {
			continue
		}
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].Timestamp.After(sessions[j].Timestamp) })
	return sessions, nil
}

// RestoreResult records one plugin's restore outcome.
type RestoreResult struct {
	FileName string
	Err      error
}

// RestoreSession copies every backed-up plugin in session back over its
// original path, in order, collecting per-plugin failures rather than
// aborting on the first one.
func RestoreSession(session model.BackupSession) []RestoreResult {
	results := make([]RestoreResult, 0, len(session.Plugins))
	for _, p := range session.Plugins {
		src := filepath.Join(session.SessionDirectory, p.FileName)
		_, err := fsops.CopyFile(src, p.OriginalPath)
		results = append(results, RestoreResult{FileName: p.FileName, Err: err})
	}
	return results
}
