package skiplist

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autoqac-go/autoqac/model"
)

func TestSetContainsIsCaseInsensitive(t *testing.T) {
	s := New([]string{"Skyrim.esm", "Update.esm"})
	assert.True(t, s.Contains("skyrim.esm"))
	assert.True(t, s.Contains("SKYRIM.ESM"))
	assert.False(t, s.Contains("Dawnguard.esm"))
}

func TestAnnotateSetsFlagWithoutMutatingInput(t *testing.T) {
	entries := []model.PluginEntry{
		{FileName: "Skyrim.esm", IsSelected: true},
		{FileName: "Patch.esp", IsSelected: true},
	}
	s := New([]string{"skyrim.esm"})

	got := Annotate(entries, s)
	assert.True(t, got[0].IsInSkipList)
	assert.False(t, got[1].IsInSkipList)
	assert.False(t, entries[0].IsInSkipList, "input slice must not be mutated")
}

func TestFilterKeepsOnlySelectedAndNotSkipped(t *testing.T) {
	entries := []model.PluginEntry{
		{FileName: "A.esp", IsSelected: true, IsInSkipList: false},
		{FileName: "B.esp", IsSelected: true, IsInSkipList: true},
		{FileName: "C.esp", IsSelected: false, IsInSkipList: false},
	}
	got := Filter(entries)
	assert.Len(t, got, 1)
	assert.Equal(t, "A.esp", got[0].FileName)
}
