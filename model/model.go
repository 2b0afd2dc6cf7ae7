// Package model holds the data types shared across AutoQAC's components:
// the session state snapshot, plugin list entries, and the per-plugin and
// per-session result types produced by a cleaning run.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Game identifies a Bethesda title by its xEdit variant.
type Game string

const (
	GameUnknown   Game = ""
	GameFO3       Game = "FO3"
	GameFNV       Game = "FNV"
	GameFO4       Game = "FO4"
	GameFO4VR     Game = "FO4VR"
	GameSSE       Game = "SSE"
	GameSkyrimVR  Game = "SkyrimVR"
	GameTES4      Game = "TES4"
)

// WarningKind annotates a PluginEntry with why it may not be safely cleanable.
type WarningKind string

const (
	WarningNone           WarningKind = "none"
	WarningNotFound       WarningKind = "not_found"
	WarningUnreadable     WarningKind = "unreadable"
	WarningZeroByte       WarningKind = "zero_byte"
	WarningMalformedEntry WarningKind = "malformed_entry"
	WarningInvalidExt     WarningKind = "invalid_extension"
)

// PluginEntry is one plugin in a load order, annotated by the Enumerator,
// Skip-List Filter, and Game Detector as it flows toward the Orchestrator.
type PluginEntry struct {
	FileName      string
	AbsolutePath  string
	IsSelected    bool
	IsInSkipList  bool
	DetectedGame  Game
	WarningKind   WarningKind
	WarningDetail string // e.g. a did-you-mean suggestion for WarningNotFound
}

// CleaningStatistics are the counts the Output Parser extracts from a single
// plugin's xEdit run. All fields are non-negative.
type CleaningStatistics struct {
	ItemsRemoved       int // ITM
	ItemsUndeleted     int // UDR
	ItemsSkipped       int
	PartialFormsCreated int
}

// PluginStatus is the terminal classification of a single plugin's attempt.
type PluginStatus string

const (
	StatusCleaned PluginStatus = "cleaned"
	StatusSkipped PluginStatus = "skipped"
	StatusFailed  PluginStatus = "failed"
)

// PluginResult is the outcome of cleaning (or skipping, or failing to clean)
// one plugin.
type PluginResult struct {
	PluginName      string
	Status          PluginStatus
	Success         bool
	Message         string
	TimedOut        bool
	Duration        time.Duration
	Statistics      *CleaningStatistics
	LogParseWarning string
}

// SessionResult is published once a cleaning session ends, whether it ran to
// completion, was cancelled, or aborted on a fatal error.
type SessionResult struct {
	ID            uuid.UUID
	StartTime     time.Time
	EndTime       time.Time
	Game          Game
	WasCancelled  bool
	PluginResults []PluginResult
}

// Summary aggregates PluginResults into the counts a caller typically wants
// without re-walking the slice.
type Summary struct {
	Cleaned int
	Skipped int
	Failed  int
	TotalITM int
	TotalUDR int
}

// SessionSummary computes SessionResult's derived summary.
func (r SessionResult) SessionSummary() Summary {
	var s Summary
	for _, pr := range r.PluginResults {
		switch pr.Status {
		case StatusCleaned:
			s.Cleaned++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
		if pr.Statistics != nil {
			s.TotalITM += pr.Statistics.ItemsRemoved
			s.TotalUDR += pr.Statistics.ItemsUndeleted
		}
	}
	return s
}

// BackupPluginEntry records one backed-up plugin file within a BackupSession.
type BackupPluginEntry struct {
	FileName      string
	OriginalPath  string
	FileSizeBytes int64
}

// BackupSession is the metadata written once at session end (or partially,
// on cancellation/backup-abort) describing a single backup run.
type BackupSession struct {
	ID              uuid.UUID
	Timestamp       time.Time // UTC
	Game            Game
	SessionDirectory string
	Plugins         []BackupPluginEntry
}

// DryRunStatus classifies a plugin under -dry-run.
type DryRunStatus string

const (
	DryRunWillClean DryRunStatus = "will_clean"
	DryRunWillSkip  DryRunStatus = "will_skip"
)

// DryRunResult is produced per plugin when the Orchestrator runs in dry-run
// mode: no subprocess is ever launched.
type DryRunResult struct {
	PluginName string
	Status     DryRunStatus
	Reason     string
}

// TerminationResult is the outcome of the Process Executor's escalation
// ladder (§4.4).
type TerminationResult struct {
	ExitedGracefully   bool
	GracePeriodExpired bool
	ForceKilled        bool
	HandleReleased     bool
}
