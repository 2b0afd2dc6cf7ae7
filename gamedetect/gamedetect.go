// Package gamedetect infers which Bethesda title a session targets, either
// from the xEdit executable's file stem or from the first unskipped master
// in a load order.
package gamedetect

import (
	"path/filepath"
	"strings"

	"github.com/ettle/strcase"

	"github.com/autoqac-go/autoqac/model"
)

// stemGames maps a case-folded xEdit executable stem to the game it edits.
var stemGames = map[string]model.Game{
	"fo3edit":      model.GameFO3,
	"fnvedit":      model.GameFNV,
	"fo4edit":      model.GameFO4,
	"fo4vredit":    model.GameFO4VR,
	"sseedit":      model.GameSSE,
	"tes5edit":     model.GameSSE,
	"skyrimvredit": model.GameSkyrimVR,
	"tes4edit":     model.GameTES4,
}

// masterGames maps a master file name (case-folded) to the game it belongs
// to, used to infer the game from a load order's first non-skipped line.
var masterGames = map[string]model.Game{
	"skyrim.esm":   model.GameSSE,
	"fallout4.esm": model.GameFO4,
	"falloutnv.esm": model.GameFNV,
	"fallout3.esm": model.GameFO3,
	"oblivion.esm": model.GameTES4,
}

// FromExecutable infers the game from an xEdit executable's path. The
// universal build ("xEdit.exe", any case) has no fixed game and yields
// GameUnknown; an unrecognized stem also yields GameUnknown.
func FromExecutable(path string) model.Game {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if g, ok := stemGames[strings.ToLower(stem)]; ok {
		return g
	}
	return model.GameUnknown
}

// IsUniversalBuild reports whether path names the universal "xEdit" build,
// which requires an explicit -<Game> flag (see cmdbuilder).
func IsUniversalBuild(path string) bool {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.EqualFold(stem, "xedit")
}

// FromMaster inspects a master file name and returns the game it belongs to,
// or GameUnknown if the name isn't a recognized master.
func FromMaster(masterFileName string) model.Game {
	return masterGames[strings.ToLower(masterFileName)]
}

// FromLoadOrder infers the game from the first entry in an ordered plugin
// list whose file name is a recognized master, mirroring the Enumerator's
// "first non-skipped line" rule once comment/blank lines have already been
// filtered out by the caller.
func FromLoadOrder(fileNames []string) model.Game {
	for _, name := range fileNames {
		if g := FromMaster(name); g != model.GameUnknown {
			return g
		}
	}
	return model.GameUnknown
}

// NormalizeVariant canonicalizes a caller-supplied variant identifier (e.g.
// "Special Edition", "anniversary-edition", "AE") into a stable snake_case
// skip-list key. Unlike the stem/master lookups above, this is free-form
// human input with no fixed casing convention to fold against, which is
// exactly what strcase's naming-convention conversion is for; it is never
// used for the exact-match stem comparisons in this file, where
// strings.ToLower already matches stemGames'/masterGames' lowercase keys.
func NormalizeVariant(variant string) string {
	return strcase.ToSnake(variant)
}
