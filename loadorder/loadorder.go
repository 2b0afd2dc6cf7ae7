// Package loadorder implements the Plugin Enumerator: parsing a load-order
// text file into a validated, ordered list of plugin entries with resolved
// absolute paths.
package loadorder

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/autoqac-go/autoqac/model"
)

// pluginSuffix matches a plugin file name ending in .esp/.esm/.esl
// (case-insensitive), capturing everything up to and including the suffix
// and discarding trailing content on the line.
var pluginSuffix = regexp.MustCompile(`(?i)^(.+?\.(?:esp|esm|esl))\b`)

// prefixMarkers are characters some load-order formats (xEdit itself, LOOT)
// prepend to an active/inactive plugin line; they are stripped, not treated
// as comment markers.
const prefixMarkers = "*+-"

// suggestionThreshold bounds how dissimilar a did-you-mean candidate may be
// (Levenshtein similarity, 0..1) before it's not worth surfacing.
const suggestionThreshold = 0.6

// Enumerate parses the load order at path and resolves each entry against
// dataDir (the game's plugin directory). dataDir may be empty, in which case
// every entry is annotated not_found since nothing can be resolved.
func Enumerate(path, dataDir string) ([]model.PluginEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loadorder: open %s: %w", path, err)
	}
	defer f.Close()

	var existing []string
	if dataDir != "" {
		if entries, err := os.ReadDir(dataDir); err == nil {
			for _, e := range entries {
				if !e.IsDir() {
					existing = append(existing, e.Name())
				}
			}
		}
	}

	var out []model.PluginEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := stripBOM(scanner.Text())
		name, malformed, ok := parseLine(line)
		if !ok {
			continue
		}
		if malformed {
			out = append(out, model.PluginEntry{
				FileName:    name,
				IsSelected:  true,
				WarningKind: model.WarningMalformedEntry,
			})
			continue
		}
		out = append(out, resolve(name, dataDir, existing))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("loadorder: read %s: %w", path, err)
	}
	return out, nil
}

// stripBOM removes a leading UTF-8 byte-order mark, tolerated per spec.
func stripBOM(s string) string {
	return strings.TrimPrefix(s, "﻿")
}

// parseLine applies the skip/strip/extract rules to one raw line. It returns
// ok = false for lines that contribute nothing (blank, comment); otherwise it
// returns the extracted plugin file name, or the full trimmed line with
// malformed = true when no recognizable plugin suffix is present.
func parseLine(line string) (name string, malformed, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", false, false
	}
	if strings.ContainsRune(prefixMarkers, rune(trimmed[0])) {
		trimmed = strings.TrimSpace(trimmed[1:])
	}
	if trimmed == "" {
		return "", false, false
	}

	m := pluginSuffix.FindStringSubmatch(trimmed)
	if m == nil {
		return trimmed, true, true
	}
	return m[1], false, true
}

// resolve builds a PluginEntry for name, attempting to find its absolute
// path under dataDir and, failing that, suggesting the closest existing file
// name by Levenshtein similarity.
func resolve(name, dataDir string, existing []string) model.PluginEntry {
	entry := model.PluginEntry{
		FileName:    name,
		IsSelected:  true,
		WarningKind: model.WarningNone,
	}

	if dataDir == "" {
		entry.WarningKind = model.WarningNotFound
		return entry
	}

	abs := filepath.Join(dataDir, name)
	info, err := os.Stat(abs)
	if err != nil {
		entry.WarningKind = model.WarningNotFound
		if suggestion := closestMatch(name, existing); suggestion != "" {
			entry.WarningDetail = suggestion
		}
		return entry
	}

	entry.AbsolutePath = abs
	if info.Size() == 0 {
		entry.WarningKind = model.WarningZeroByte
	}
	return entry
}

// closestMatch returns the existing file name most similar to name by
// Levenshtein similarity, or "" if nothing clears suggestionThreshold.
func closestMatch(name string, existing []string) string {
	best := ""
	bestScore := 0.0
	folded := strings.ToLower(name)
	for _, candidate := range existing {
		score := levenshtein.Match(folded, strings.ToLower(candidate), nil)
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}
	if bestScore < suggestionThreshold {
		return ""
	}
	return best
}
