package orchestrator

import "fmt"

// ConfigInvalidError reports a failed per-session precondition (spec §4.3).
// It always carries a remediation hint naming which field is wrong and where
// to fix it, since these are surfaced to the user as actionable text.
type ConfigInvalidError struct {
	Field string
	Hint  string
}

func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("orchestrator: invalid configuration: %s (%s)", e.Field, e.Hint)
}

func configInvalid(field, hint string) error {
	return &ConfigInvalidError{Field: field, Hint: hint}
}

// BackupFailureAction is the caller's decision when a per-plugin backup copy
// fails, returned from the OnBackupFailure callback.
type BackupFailureAction int

const (
	// ContinueWithoutBackup proceeds to clean the plugin despite the failed
	// backup. This is also the default when no callback is supplied.
	ContinueWithoutBackup BackupFailureAction = iota
	// SkipPlugin records the plugin as skipped and moves to the next one.
	SkipPlugin
	// AbortSession ends the session early, writing partial backup metadata
	// first, as though the user had requested a stop.
	AbortSession
)
