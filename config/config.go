// Package config implements the Configuration Persistence component
// (spec §4.2): two YAML documents — immutable defaults plus per-(game,
// variant) skip lists, and user paths/settings/backup options — with
// criticality-classified immediate-vs-deferred saves and atomic on-disk
// replacement.
package config

import (
	"os"
	"runtime"

	"github.com/apparentlymart/go-userdirs/userdirs"
	"gopkg.in/yaml.v3"

	"github.com/autoqac-go/autoqac/model"
)

// GameSkipList is the universal-plus-variant skip list for one game.
type GameSkipList struct {
	Universal []string            `yaml:"universal"`
	Variants  map[string][]string `yaml:"variants,omitempty"`
}

// MainConfig holds AutoQAC's shipped defaults and skip lists. It is treated
// as read-mostly: the application never writes to "AutoQAC Main.yaml" on its
// own, only loads it, but SaveMainConfig exists so an operator tool can seed
// or update it.
type MainConfig struct {
	SkipLists map[model.Game]GameSkipList `yaml:"skip_lists"`
}

// DefaultMainConfig returns the built-in skip lists shipped with AutoQAC.
func DefaultMainConfig() *MainConfig {
	return &MainConfig{
		SkipLists: map[model.Game]GameSkipList{
			model.GameSSE: {
				Universal: []string{"Skyrim.esm", "Update.esm", "Dawnguard.esm", "HearthFires.esm", "Dragonborn.esm"},
			},
			model.GameFO4: {
				Universal: []string{"Fallout4.esm", "DLCRobot.esm", "DLCworkshop01.esm", "DLCCoast.esm", "DLCworkshop02.esm", "DLCworkshop03.esm", "DLCNukaWorld.esm"},
			},
			model.GameFNV: {
				Universal: []string{"FalloutNV.esm"},
			},
			model.GameFO3: {
				Universal: []string{"Fallout3.esm"},
			},
			model.GameTES4: {
				Universal: []string{"Oblivion.esm"},
			},
		},
	}
}

// BackupOptions controls the Backup Manager's behavior (spec §4.7).
type BackupOptions struct {
	Enabled     bool `yaml:"enabled"`
	MaxSessions int  `yaml:"max_sessions"`
}

// RuntimeSettings are the UI-only, deferred-save tunables (spec §4.2).
type RuntimeSettings struct {
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	CPUThreshold   float64 `yaml:"cpu_threshold"`
}

// ObservabilitySettings controls the optional Prometheus /metrics endpoint
// and heartbeat file (spec §9 Supplemented Features). Disabled by default:
// AutoQAC's core operation never depends on either being reachable.
type ObservabilitySettings struct {
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsPort    int    `yaml:"metrics_port"`
	HeartbeatPath  string `yaml:"heartbeat_path,omitempty"`
}

// UserConfig holds the user's paths, flags, game selection, backup options,
// and log retention — i.e. everything "AutoQAC Config.yaml" persists.
type UserConfig struct {
	LoadOrderPath string `yaml:"load_order_path"`
	XEditExePath  string `yaml:"xedit_exe_path"`
	MO2ExePath    string `yaml:"mo2_exe_path"`

	MO2Mode          bool       `yaml:"mo2_mode"`
	PartialForms     bool       `yaml:"partial_forms"`
	DisableSkipLists bool       `yaml:"disable_skip_lists"`
	SelectedGame     model.Game `yaml:"selected_game"`

	Backup        BackupOptions         `yaml:"backup"`
	LogRetention  int                   `yaml:"log_retention_days"`
	Settings      RuntimeSettings       `yaml:"settings"`
	Observability ObservabilitySettings `yaml:"observability"`

	NATSURL string `yaml:"nats_url,omitempty"`
}

// DefaultUserConfig returns the defaults merged in on load when no file (or
// a partial one) exists, mirroring the teacher's DefaultConfig pattern.
func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		Backup: BackupOptions{
			Enabled:     false,
			MaxSessions: 5,
		},
		LogRetention: 5,
		Settings: RuntimeSettings{
			TimeoutSeconds: 300,
			CPUThreshold:   0.01,
		},
		Observability: ObservabilitySettings{
			MetricsPort: 9090,
		},
	}
}

// On-disk document names (spec §6).
const (
	MainConfigFileName = "AutoQAC Main.yaml"
	UserConfigFileName = "AutoQAC Config.yaml"
	dataDirName         = "AutoQAC Data"
)

// DefaultConfigDir resolves "<config_dir>/AutoQAC Data" using go-userdirs'
// platform-appropriate per-user config directory, falling back to the home
// directory if the OS doesn't expose one (e.g. a minimal container used in
// tests).
func DefaultConfigDir() string {
	dirs := userdirs.ForApp("AutoQAC", "", "io.autoqac")
	base := dirs.ConfigHome
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil {
			base = home
		} else {
			base = "."
		}
	}
	return base + string(os.PathSeparator) + dataDirName
}

// DefaultGameDataDir returns a platform-specific fallback game data
// directory. The Orchestrator does not use it: when no plugin has a rooted
// absolute path, it skips backup for the session instead.
func DefaultGameDataDir() string {
	if runtime.GOOS == "windows" {
		return "C:\\Games"
	}
	return "/tmp/autoqac-data"
}

func marshalYAML(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

func unmarshalYAML(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}
