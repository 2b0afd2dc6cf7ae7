package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autoqac-go/autoqac/model"
)

func TestFeedCountsEachMarkerKind(t *testing.T) {
	var c Counter
	lines := []string{
		"Removing: [REFR:12345] foo",
		"Removing: [REFR:67890] bar",
		"Undeleting: [REFR:11111] baz",
		"Skipping: [REFR:22222] qux",
		"Making Partial Form: [REFR:33333]",
		"",
		"some unrelated line",
	}
	for _, l := range lines {
		c.Feed(l)
	}

	stats := c.Statistics()
	assert.Equal(t, 2, stats.ItemsRemoved)
	assert.Equal(t, 1, stats.ItemsUndeleted)
	assert.Equal(t, 1, stats.ItemsSkipped)
	assert.Equal(t, 1, stats.PartialFormsCreated)
}

func TestIsCompletionLine(t *testing.T) {
	assert.True(t, IsCompletionLine("Done."))
	assert.True(t, IsCompletionLine("Background Loader: Cleaning completed."))
	assert.False(t, IsCompletionLine("Removing: [REFR:1]"))
}

func TestParseIsDeterministicAcrossRepeatedRuns(t *testing.T) {
	lines := []string{"Removing: a", "Undeleting: b", "Done."}

	stats1, done1 := Parse(lines)
	stats2, done2 := Parse(lines)

	assert.Equal(t, stats1, stats2)
	assert.Equal(t, done1, done2)
	assert.True(t, done1)
}

func TestDetermineStatusTimeoutAlwaysFails(t *testing.T) {
	stats := model.CleaningStatistics{ItemsRemoved: 5}
	assert.Equal(t, model.StatusFailed, DetermineStatus(stats, true, true))
}

func TestDetermineStatusNoMatchesNoCompletionFails(t *testing.T) {
	assert.Equal(t, model.StatusFailed, DetermineStatus(model.CleaningStatistics{}, false, false))
}

func TestDetermineStatusCompletionLineWithZeroStatsIsCleaned(t *testing.T) {
	// xEdit's "no ITMs found" case: non-zero exit is a secondary signal and
	// is not modeled here at all — only the completion line matters.
	assert.Equal(t, model.StatusCleaned, DetermineStatus(model.CleaningStatistics{}, true, false))
}

func TestDetermineStatusAnyMarkerIsCleaned(t *testing.T) {
	assert.Equal(t, model.StatusCleaned, DetermineStatus(model.CleaningStatistics{ItemsSkipped: 1}, false, false))
}
