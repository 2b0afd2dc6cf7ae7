// Package skiplist implements the Skip-List Filter: annotating a plugin list
// against a case-insensitive (game, variant) skip set.
package skiplist

import (
	"strings"

	"github.com/autoqac-go/autoqac/model"
)

// Set is a case-insensitive membership test over a (game, variant) skip
// list, built once per session from the Config Store's GetSkipList result.
type Set struct {
	members map[string]struct{}
}

// New builds a Set from the plugin file names returned by
// config.Store.GetSkipList.
func New(names []string) Set {
	members := make(map[string]struct{}, len(names))
	for _, name := range names {
		members[strings.ToLower(name)] = struct{}{}
	}
	return Set{members: members}
}

// Contains reports whether fileName is in the skip list, case-insensitively.
func (s Set) Contains(fileName string) bool {
	_, ok := s.members[strings.ToLower(fileName)]
	return ok
}

// Annotate sets IsInSkipList on every entry whose file name is a member of
// s, returning the annotated slice (entries are copied, not mutated in
// place, so callers holding the original slice are unaffected).
func Annotate(entries []model.PluginEntry, s Set) []model.PluginEntry {
	out := make([]model.PluginEntry, len(entries))
	for i, e := range entries {
		e.IsInSkipList = s.Contains(e.FileName)
		out[i] = e
	}
	return out
}

// Eligible reports whether an entry should be cleaned: selected, not in the
// skip list. The Orchestrator applies this after Annotate to build the
// filtered plugin list it actually runs.
func Eligible(e model.PluginEntry) bool {
	return e.IsSelected && !e.IsInSkipList
}

// Filter returns only the entries Eligible approves, preserving order.
func Filter(entries []model.PluginEntry) []model.PluginEntry {
	out := make([]model.PluginEntry, 0, len(entries))
	for _, e := range entries {
		if Eligible(e) {
			out = append(out, e)
		}
	}
	return out
}
