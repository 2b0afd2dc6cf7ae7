package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/autoqac-go/autoqac/model"
)

// TestUserConfigRoundtrip verifies spec §8's "save then load returns a
// semantically equal document" property across randomly generated settings.
func TestUserConfigRoundtrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	rapid.Check(t, func(rt *rapid.T) {
		cfg := DefaultUserConfig()
		cfg.LoadOrderPath = rapid.StringMatching(`[a-zA-Z0-9/_.]{0,40}`).Draw(rt, "load_order_path")
		cfg.XEditExePath = rapid.StringMatching(`[a-zA-Z0-9/_.]{0,40}`).Draw(rt, "xedit_exe_path")
		cfg.MO2Mode = rapid.Bool().Draw(rt, "mo2_mode")
		cfg.PartialForms = rapid.Bool().Draw(rt, "partial_forms")
		cfg.DisableSkipLists = rapid.Bool().Draw(rt, "disable_skip_lists")
		cfg.Backup.Enabled = rapid.Bool().Draw(rt, "backup_enabled")
		cfg.Backup.MaxSessions = rapid.IntRange(1, 50).Draw(rt, "max_sessions")
		cfg.Settings.TimeoutSeconds = rapid.IntRange(10, 3600).Draw(rt, "timeout_seconds")
		cfg.Settings.CPUThreshold = rapid.Float64Range(0, 1).Draw(rt, "cpu_threshold")

		suffix := rapid.StringMatching(`[a-z0-9]{8}`).Draw(rt, "suffix")
		dir := tmpDir + string(os.PathSeparator) + suffix
		require.NoError(rt, os.MkdirAll(dir, 0o755))

		s := NewStore(dir, testLogger())
		if err := s.SaveUserConfig(cfg); err != nil {
			rt.Fatalf("SaveUserConfig failed: %v", err)
		}

		loaded, err := NewStore(dir, testLogger()).LoadUserConfig()
		if err != nil {
			rt.Fatalf("LoadUserConfig failed: %v", err)
		}

		if loaded.LoadOrderPath != cfg.LoadOrderPath {
			rt.Fatalf("LoadOrderPath mismatch: %q != %q", loaded.LoadOrderPath, cfg.LoadOrderPath)
		}
		if loaded.MO2Mode != cfg.MO2Mode {
			rt.Fatalf("MO2Mode mismatch")
		}
		if loaded.Backup.MaxSessions != cfg.Backup.MaxSessions {
			rt.Fatalf("MaxSessions mismatch: %d != %d", loaded.Backup.MaxSessions, cfg.Backup.MaxSessions)
		}
		if loaded.Settings.TimeoutSeconds != cfg.Settings.TimeoutSeconds {
			rt.Fatalf("TimeoutSeconds mismatch: %d != %d", loaded.Settings.TimeoutSeconds, cfg.Settings.TimeoutSeconds)
		}
	})
}

// TestGetSkipListIsOrderAndCaseInsensitiveDeduped checks that an arbitrary
// variant name list (for a game with no built-in universal list) always
// comes back with every entry kept and no case-insensitive duplicates.
func TestGetSkipListIsOrderAndCaseInsensitiveDeduped(t *testing.T) {
	dir := t.TempDir()

	rapid.Check(t, func(rt *rapid.T) {
		names := rapid.SliceOfNDistinct(
			rapid.StringMatching(`[A-Za-z]{3,10}\.es[pm]`),
			1, 8,
			func(s string) string { return caseFold(s) },
		).Draw(rt, "names")

		s := NewStore(dir, testLogger())
		if err := s.UpdateSkipList(model.GameSkyrimVR, "pbt", names); err != nil {
			rt.Fatalf("UpdateSkipList failed: %v", err)
		}

		got := s.GetSkipList(model.GameSkyrimVR, "pbt")
		if len(got) != len(names) {
			rt.Fatalf("expected %d entries, got %d: %v", len(names), len(got), got)
		}

		seen := make(map[string]bool)
		for _, n := range got {
			folded := caseFold(n)
			if seen[folded] {
				rt.Fatalf("duplicate case-insensitive entry: %s", n)
			}
			seen[folded] = true
		}
	})
}

// TestDedupeOrderedPreservesFirstSeenCasing exercises the internal helper
// directly: whichever casing appears first in the input survives.
func TestDedupeOrderedPreservesFirstSeenCasing(t *testing.T) {
	got := dedupeOrdered([]string{"Patch.esp", "PATCH.ESP", "patch.esp", "Other.esp"})
	require.Equal(t, []string{"Patch.esp", "Other.esp"}, got)
}

// TestDefaultMainConfigValid checks invariants a complete MainConfig must
// hold regardless of how it was built.
func TestDefaultMainConfigValid(t *testing.T) {
	cfg := DefaultMainConfig()
	for game, gl := range cfg.SkipLists {
		for _, name := range gl.Universal {
			require.NotEmpty(t, name, "empty universal skip-list entry for %s", game)
		}
	}
}
