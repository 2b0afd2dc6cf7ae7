// Package parser implements the Output Parser: extracting per-plugin
// ITM/UDR/skip/partial-form counts from xEdit's stdout and log-file lines.
package parser

import (
	"strings"

	"github.com/autoqac-go/autoqac/model"
)

// Patterns matched in order, first match wins, per line.
const (
	markerUndeleting   = "Undeleting:"
	markerRemoving     = "Removing:"
	markerSkipping     = "Skipping:"
	markerPartialForm  = "Making Partial Form:"
	markerDone         = "Done."
	markerCleaningDone = "Cleaning completed"
)

// Counter accumulates CleaningStatistics line-by-line; it's the incremental
// variant used for live progress during a running subprocess, and it's also
// the engine behind the stateless batch Parse function below.
type Counter struct {
	stats model.CleaningStatistics
}

// Feed applies one output line to the running counters. Blank lines are
// ignored. Returns true if the line was a recognized statistics marker.
func (c *Counter) Feed(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	switch {
	case strings.Contains(line, markerUndeleting):
		c.stats.ItemsUndeleted++
	case strings.Contains(line, markerRemoving):
		c.stats.ItemsRemoved++
	case strings.Contains(line, markerSkipping):
		c.stats.ItemsSkipped++
	case strings.Contains(line, markerPartialForm):
		c.stats.PartialFormsCreated++
	default:
		return false
	}
	return true
}

// Statistics returns the counts accumulated so far.
func (c *Counter) Statistics() model.CleaningStatistics {
	return c.stats
}

// IsCompletionLine reports whether line signals the end of an xEdit run,
// independent of the statistics markers above.
func IsCompletionLine(line string) bool {
	return strings.Contains(line, markerDone) || strings.Contains(line, markerCleaningDone)
}

// Parse runs the full matching pass over a batch of lines (used for
// end-of-run log-file parsing, where there's no live progress to report)
// and returns the resulting statistics plus whether a completion line was
// observed.
func Parse(lines []string) (model.CleaningStatistics, bool) {
	var c Counter
	completed := false
	for _, line := range lines {
		c.Feed(line)
		if IsCompletionLine(line) {
			completed = true
		}
	}
	return c.Statistics(), completed
}

// DetermineStatus classifies a plugin's outcome per spec §4.6: xEdit may
// exit non-zero even on success (e.g. "no ITMs found"), so the exit code is
// not consulted at all. A timed-out run is always "failed"; otherwise
// "cleaned" holds when at least one statistics marker matched or a
// completion line appeared, regardless of the process exit code.
func DetermineStatus(stats model.CleaningStatistics, sawCompletionLine, timedOut bool) model.PluginStatus {
	if timedOut {
		return model.StatusFailed
	}
	matchedAny := stats.ItemsRemoved > 0 || stats.ItemsUndeleted > 0 ||
		stats.ItemsSkipped > 0 || stats.PartialFormsCreated > 0
	if matchedAny || sawCompletionLine {
		return model.StatusCleaned
	}
	return model.StatusFailed
}
