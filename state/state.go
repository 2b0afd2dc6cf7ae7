// Package state implements the Reactive State Service (spec §4.1): a
// single-writer, many-reader hub holding the authoritative AppState snapshot
// and broadcasting ordered snapshots and domain events to observers.
package state

import (
	"time"

	"github.com/mitchellh/copystructure"

	"github.com/autoqac-go/autoqac/model"
)

// Settings holds the tunables spec.md's AppState groups under "settings".
type Settings struct {
	TimeoutSeconds int
	CPUThreshold   float64 // fraction, e.g. 0.01 for 1%
	MaxConcurrent  int     // contractually 1; see spec §4.4
}

// AppState is the deep-copyable value describing the whole UI-relevant world
// at an instant (spec §3). State Hub is the only writer; every other
// component holds snapshots by value.
type AppState struct {
	// Configuration paths
	LoadOrderPath  string
	XEditExePath   string
	MO2ExePath     string

	// Flags
	MO2Mode           bool
	PartialForms      bool
	DisableSkipLists  bool

	SelectedGame model.Game
	Plugins      []model.PluginEntry

	// Runtime fields — every one is a function of prior events.
	IsCleaning     bool
	CurrentPlugin  string
	Progress       int
	Total          int
	IsTerminating  bool
	HangDetected   bool

	// Result accumulators
	Cleaned []string
	Failed  []string
	Skipped []string
	Results []model.PluginResult

	Settings Settings

	lastUpdated time.Time
}

// NewAppState returns a zero-value AppState with sane defaults.
func NewAppState() AppState {
	return AppState{
		Settings: Settings{
			TimeoutSeconds: 300,
			CPUThreshold:   0.01,
			MaxConcurrent:  1,
		},
	}
}

// Clone deep-copies the state using copystructure, so a function passed to
// update_state can freely mutate slices/maps on the copy it receives without
// aliasing the authoritative value held by the Hub.
func (s AppState) Clone() AppState {
	cpy, err := copystructure.Config{Lock: true}.Copy(s)
	if err != nil {
		// copystructure only fails on unsupported kinds (channels, funcs);
		// AppState has neither, so this is unreachable in practice. Fall
		// back to the shallow copy rather than panicking on a snapshot read.
		return s
	}
	out := cpy.(AppState)
	out.lastUpdated = time.Now()
	return out
}

// invariant checks (not exhaustive, called by tests only; the Hub does not
// run them) encode spec §3's AppState invariants:
// progress <= total, and cleaned/failed/skipped are pairwise disjoint.
func (s AppState) invariantViolations() []string {
	var problems []string
	if s.Progress > s.Total {
		problems = append(problems, "progress exceeds total")
	}
	seen := make(map[string]string, len(s.Cleaned)+len(s.Failed)+len(s.Skipped))
	check := func(bucket string, names []string) {
		for _, n := range names {
			if prev, ok := seen[n]; ok && prev != bucket {
				problems = append(problems, n+" present in both "+prev+" and "+bucket)
				continue
			}
			seen[n] = bucket
		}
	}
	check("cleaned", s.Cleaned)
	check("failed", s.Failed)
	check("skipped", s.Skipped)
	return problems
}
