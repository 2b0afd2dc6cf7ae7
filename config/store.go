package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/autoqac-go/autoqac/model"
	"github.com/autoqac-go/autoqac/pkg/fsops"
)

// caseFold normalizes a plugin file name for case-insensitive skip-list
// membership, matching Windows' case-insensitive filesystem semantics.
func caseFold(s string) string {
	return strings.ToLower(s)
}

// ErrConfigCorrupt wraps a YAML parse failure with the offending path, per
// spec §4.2's ConfigCorrupt error kind.
var ErrConfigCorrupt = errors.New("config: corrupt document")

// ConfigCorruptError carries the file path and underlying parse error.
type ConfigCorruptError struct {
	Path string
	Err  error
}

func (e *ConfigCorruptError) Error() string {
	return fmt.Sprintf("config: %s is corrupt: %v", e.Path, e.Err)
}

func (e *ConfigCorruptError) Unwrap() error { return ErrConfigCorrupt }

// deferredFlushDelay is the "quiet window" before a deferred save is forced
// to disk (spec §4.2: "schedule a flush after a 500 ms quiet window").
const deferredFlushDelay = 500 * time.Millisecond

// ChangeKind identifies which part of the user config changed, for
// ChangeNotification subscribers (skip lists vs. everything else).
type ChangeKind string

const (
	ChangeSkipList     ChangeKind = "skip_list"
	ChangeSelectedGame ChangeKind = "selected_game"
	ChangeGeneric      ChangeKind = "generic"
)

// ChangeNotification is emitted by UpdateSkipList and SetSelectedGame after
// their change has been written. The other mutators, SaveUserConfig and
// deferred flushes emit none, so ChangeGeneric is never sent.
type ChangeNotification struct {
	Kind ChangeKind
	Game model.Game
}

// Store owns the on-disk YAML documents and the in-memory cache, per
// spec §4.2 and §3's ownership rule ("Config Store exclusively owns the
// on-disk YAML and the in-memory cache").
type Store struct {
	mu sync.Mutex

	mainPath string
	userPath string

	main *MainConfig
	user *UserConfig

	dirty         bool
	debounceTimer *time.Timer

	logger    *slog.Logger
	listeners []func(ChangeNotification)
}

// NewStore creates a Store rooted at dir (typically DefaultConfigDir()).
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		mainPath: filepath.Join(dir, MainConfigFileName),
		userPath: filepath.Join(dir, UserConfigFileName),
		main:     DefaultMainConfig(),
		user:     DefaultUserConfig(),
		logger:   logger,
	}
}

// OnChange registers a listener invoked synchronously after UpdateSkipList or
// SetSelectedGame commits its change; no other save invokes it.
func (s *Store) OnChange(fn func(ChangeNotification)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify(n ChangeNotification) {
	for _, fn := range s.listeners {
		fn(n)
	}
}

// LoadMainConfig loads "AutoQAC Main.yaml", tolerating an absent file by
// keeping the built-in defaults.
func (s *Store) LoadMainConfig() (*MainConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadMainLocked()
}

func (s *Store) loadMainLocked() (*MainConfig, error) {
	data, err := os.ReadFile(s.mainPath)
	if err != nil {
		if os.IsNotExist(err) {
			return s.main, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", s.mainPath, err)
	}

	cfg := DefaultMainConfig()
	if err := unmarshalYAML(data, cfg); err != nil {
		return nil, &ConfigCorruptError{Path: s.mainPath, Err: err}
	}
	s.main = cfg
	return cfg, nil
}

// LoadUserConfig loads "AutoQAC Config.yaml", merging with defaults for any
// field the file omits (the file is unmarshalled onto DefaultUserConfig(),
// so zero-valued fields in the document never shadow sensible defaults for
// fields it didn't set, except where YAML's zero value is itself the
// intended override).
func (s *Store) LoadUserConfig() (*UserConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadUserLocked()
}

func (s *Store) loadUserLocked() (*UserConfig, error) {
	data, err := os.ReadFile(s.userPath)
	if err != nil {
		if os.IsNotExist(err) {
			return s.user, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", s.userPath, err)
	}

	cfg := DefaultUserConfig()
	if err := unmarshalYAML(data, cfg); err != nil {
		return nil, &ConfigCorruptError{Path: s.userPath, Err: err}
	}
	s.user = cfg
	return cfg, nil
}

// SaveUserConfig persists cfg immediately (atomic rename) and updates the
// cache. Idempotent: saving the same document twice is a no-op observably.
func (s *Store) SaveUserConfig(cfg *UserConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = cfg
	return s.flushUserLocked()
}

func (s *Store) flushUserLocked() error {
	data, err := marshalYAML(s.user)
	if err != nil {
		return fmt.Errorf("config: marshal user config: %w", err)
	}
	if err := fsops.AtomicWriteFile(s.userPath, data, 0o644); err != nil {
		// In-memory cache retains the attempted new state; the next
		// flush_pending_saves retries (spec §4.2 failure semantics).
		return fmt.Errorf("config: save user config: %w", err)
	}
	s.dirty = false
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
	return nil
}

// markDirtyAndScheduleFlush implements the "deferred" criticality class:
// mark the cache dirty, then (re)schedule a flush after the quiet window,
// coalescing rapid edits into a single write.
func (s *Store) markDirtyAndScheduleFlush() {
	s.dirty = true
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(deferredFlushDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.dirty {
			return
		}
		if err := s.flushUserLocked(); err != nil {
			s.logger.Error("deferred config flush failed", "error", err)
		}
	})
}

// SetLoadOrderPath is an "immediate" mutator (spec §4.2): path changes flush
// synchronously before returning.
func (s *Store) SetLoadOrderPath(path string) error {
	return s.immediateUserEdit(func(u *UserConfig) { u.LoadOrderPath = path })
}

// SetXEditExePath is immediate.
func (s *Store) SetXEditExePath(path string) error {
	return s.immediateUserEdit(func(u *UserConfig) { u.XEditExePath = path })
}

// SetMO2ExePath is immediate.
func (s *Store) SetMO2ExePath(path string) error {
	return s.immediateUserEdit(func(u *UserConfig) { u.MO2ExePath = path })
}

// SetBackupEnabled is immediate (backup enablement is criticality-classified
// as immediate in spec §4.2).
func (s *Store) SetBackupEnabled(enabled bool) error {
	return s.immediateUserEdit(func(u *UserConfig) { u.Backup.Enabled = enabled })
}

// SetSelectedGame is immediate and emits a ChangeSelectedGame notification.
func (s *Store) SetSelectedGame(game model.Game) error {
	s.mu.Lock()
	s.user.SelectedGame = game
	err := s.flushUserLocked()
	s.mu.Unlock()
	if err == nil {
		s.notify(ChangeNotification{Kind: ChangeSelectedGame, Game: game})
	}
	return err
}

// SetTimeoutSeconds is a "deferred" mutator: UI-only, coalesced.
func (s *Store) SetTimeoutSeconds(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user.Settings.TimeoutSeconds = seconds
	s.markDirtyAndScheduleFlush()
}

// SetCPUThreshold is a "deferred" mutator.
func (s *Store) SetCPUThreshold(threshold float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user.Settings.CPUThreshold = threshold
	s.markDirtyAndScheduleFlush()
}

func (s *Store) immediateUserEdit(edit func(*UserConfig)) error {
	s.mu.Lock()
	edit(s.user)
	err := s.flushUserLocked()
	s.mu.Unlock()
	return err
}

// UpdateSkipList validates and replaces the (game, variant) skip list,
// writes the main document it's stored under before returning — skip-list
// changes are "immediate" (they govern destructive behavior), not deferred —
// and emits a ChangeSkipList notification.
func (s *Store) UpdateSkipList(game model.Game, variant string, list []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range list {
		if name == "" {
			return fmt.Errorf("config: skip list entry cannot be empty")
		}
	}

	gl := s.main.SkipLists[game]
	if variant == "" {
		gl.Universal = dedupeOrdered(list)
	} else {
		if gl.Variants == nil {
			gl.Variants = make(map[string][]string)
		}
		gl.Variants[variant] = dedupeOrdered(list)
	}
	s.main.SkipLists[game] = gl

	data, err := marshalYAML(s.main)
	if err != nil {
		return fmt.Errorf("config: marshal main config: %w", err)
	}
	if err := fsops.AtomicWriteFile(s.mainPath, data, 0o644); err != nil {
		return fmt.Errorf("config: save main config: %w", err)
	}

	s.notify(ChangeNotification{Kind: ChangeSkipList, Game: game})
	return nil
}

// GetSkipList returns the ordered, de-duplicated (case-insensitively) union
// of the game-universal list and the variant-specific list, per spec §4.2.
func (s *Store) GetSkipList(game model.Game, variant string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	gl := s.main.SkipLists[game]
	om := orderedmap.NewOrderedMap[string, string]()
	for _, name := range gl.Universal {
		key := caseFold(name)
		if _, ok := om.Get(key); !ok {
			om.Set(key, name)
		}
	}
	if variant != "" {
		for _, name := range gl.Variants[variant] {
			key := caseFold(name)
			if _, ok := om.Get(key); !ok {
				om.Set(key, name)
			}
		}
	}

	out := make([]string, 0, om.Len())
	for el := om.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value)
	}
	return out
}

// FlushPendingSaves forces any scheduled deferred write to complete before
// returning (spec §4.2's forced-flush contract, called before every
// cleaning session and on orderly shutdown).
func (s *Store) FlushPendingSaves() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.flushUserLocked()
}

func dedupeOrdered(list []string) []string {
	om := orderedmap.NewOrderedMap[string, string]()
	for _, v := range list {
		key := caseFold(v)
		if _, ok := om.Get(key); !ok {
			om.Set(key, v)
		}
	}
	out := make([]string, 0, om.Len())
	for el := om.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value)
	}
	return out
}
