package state

import (
	"log/slog"
	"sync"

	"github.com/autoqac-go/autoqac/model"
)

// StateChangedFunc observes a freshly published AppState snapshot.
type StateChangedFunc func(AppState)

// DetailedResultFunc observes one PluginResult as it is appended.
type DetailedResultFunc func(model.PluginResult)

// CleaningCompletedFunc observes a finished (or cancelled) session.
type CleaningCompletedFunc func(model.SessionResult)

// IsTerminatingChangedFunc observes a flip of the is_terminating flag.
type IsTerminatingChangedFunc func(bool)

// BackupOutcomeFunc observes one per-plugin backup attempt's outcome.
type BackupOutcomeFunc func(ok bool)

// Hub is the single authoritative owner of AppState. It serializes writes
// behind an exclusive lock and publishes to subscribers only after that lock
// is released, so a subscriber may safely call back into CurrentState()
// without deadlocking (spec §4.1's documented reentrancy pitfall).
type Hub struct {
	mu    sync.RWMutex
	state AppState

	logger *slog.Logger
	bridge *NATSBridge

	subMu                 sync.Mutex
	stateSubs             []namedSub[StateChangedFunc]
	detailedResultSubs    []namedSub[DetailedResultFunc]
	cleaningCompletedSubs []namedSub[CleaningCompletedFunc]
	terminatingSubs       []namedSub[IsTerminatingChangedFunc]
	backupOutcomeSubs     []namedSub[BackupOutcomeFunc]
}

type namedSub[F any] struct {
	name string
	fn   F
}

// NewHub creates a Hub seeded with a default AppState.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		state:  NewAppState(),
		logger: logger,
	}
}

// WithNATSBridge attaches an optional best-effort remote publisher (see
// nats_bridge.go). Safe to call with a nil bridge to disable it.
func (h *Hub) WithNATSBridge(b *NATSBridge) *Hub {
	h.bridge = b
	return h
}

// CurrentState returns a consistent snapshot without blocking writers for
// longer than a read.
func (h *Hub) CurrentState() AppState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// UpdateState applies f atomically to the current state and publishes the
// result. f must be pure: it runs under the write lock and must not block or
// have side effects, since it operates on a private clone of the state.
func (h *Hub) UpdateState(f func(AppState) AppState) AppState {
	h.mu.Lock()
	next := f(h.state.Clone())
	h.state = next
	h.mu.Unlock()

	// Publication happens strictly after the write lock is released.
	h.publishStateChanged(next)
	return next
}

func (h *Hub) publishStateChanged(s AppState) {
	h.subMu.Lock()
	subs := append([]namedSub[StateChangedFunc](nil), h.stateSubs...)
	h.subMu.Unlock()

	for _, sub := range subs {
		h.safeCall(sub.name, func() { sub.fn(s) })
	}
	if h.bridge != nil {
		h.bridge.PublishStateChanged(s)
	}
}

// safeCall isolates a subscriber panic: it is logged and does not propagate,
// so one misbehaving observer cannot abort the others or poison the state.
func (h *Hub) safeCall(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("state subscriber panicked", "subscriber", name, "recovered", r)
		}
	}()
	fn()
}

// SubscribeStateChanged registers fn to be invoked, on the publisher's
// goroutine, every time UpdateState publishes a new snapshot.
func (h *Hub) SubscribeStateChanged(name string, fn StateChangedFunc) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.stateSubs = append(h.stateSubs, namedSub[StateChangedFunc]{name, fn})
}

// SubscribeDetailedResult registers fn for the detailed_plugin_result stream.
func (h *Hub) SubscribeDetailedResult(name string, fn DetailedResultFunc) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.detailedResultSubs = append(h.detailedResultSubs, namedSub[DetailedResultFunc]{name, fn})
}

// SubscribeCleaningCompleted registers fn for the cleaning_completed stream.
func (h *Hub) SubscribeCleaningCompleted(name string, fn CleaningCompletedFunc) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.cleaningCompletedSubs = append(h.cleaningCompletedSubs, namedSub[CleaningCompletedFunc]{name, fn})
}

// SubscribeIsTerminatingChanged registers fn for the is_terminating_changed stream.
func (h *Hub) SubscribeIsTerminatingChanged(name string, fn IsTerminatingChangedFunc) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.terminatingSubs = append(h.terminatingSubs, namedSub[IsTerminatingChangedFunc]{name, fn})
}

// SubscribeBackupOutcome registers fn for the per-plugin backup-attempt
// outcome stream (spec §4.7 Backup Manager).
func (h *Hub) SubscribeBackupOutcome(name string, fn BackupOutcomeFunc) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.backupOutcomeSubs = append(h.backupOutcomeSubs, namedSub[BackupOutcomeFunc]{name, fn})
}

// RecordBackupOutcome publishes one backup attempt's outcome to subscribers
// without touching AppState; the Backup Manager's result already reaches the
// caller directly, this is purely an observability fan-out.
func (h *Hub) RecordBackupOutcome(ok bool) {
	h.subMu.Lock()
	subs := append([]namedSub[BackupOutcomeFunc](nil), h.backupOutcomeSubs...)
	h.subMu.Unlock()
	for _, sub := range subs {
		h.safeCall(sub.name, func() { sub.fn(ok) })
	}
}

// UpdateConfigurationPaths sets the three configured paths in one snapshot.
func (h *Hub) UpdateConfigurationPaths(loadOrder, xedit, mo2 string) AppState {
	return h.UpdateState(func(s AppState) AppState {
		s.LoadOrderPath = loadOrder
		s.XEditExePath = xedit
		s.MO2ExePath = mo2
		return s
	})
}

// StartCleaning transitions the state to is_cleaning = true with the
// filtered plugin list, resetting progress and result accumulators.
func (h *Hub) StartCleaning(plugins []model.PluginEntry) AppState {
	return h.UpdateState(func(s AppState) AppState {
		s.IsCleaning = true
		s.Plugins = plugins
		s.Progress = 0
		s.Total = len(plugins)
		s.CurrentPlugin = ""
		s.Cleaned = nil
		s.Failed = nil
		s.Skipped = nil
		s.Results = nil
		return s
	})
}

// UpdateProgress advances progress/current-plugin without touching results.
func (h *Hub) UpdateProgress(current string, progress int) AppState {
	return h.UpdateState(func(s AppState) AppState {
		s.CurrentPlugin = current
		s.Progress = progress
		return s
	})
}

// SetHangDetected flips the hang_detected flag (§4.4 hang detection).
func (h *Hub) SetHangDetected(detected bool) AppState {
	return h.UpdateState(func(s AppState) AppState {
		s.HangDetected = detected
		return s
	})
}

// SetTerminating flips is_terminating and fires the dedicated stream.
func (h *Hub) SetTerminating(terminating bool) AppState {
	next := h.UpdateState(func(s AppState) AppState {
		s.IsTerminating = terminating
		return s
	})

	h.subMu.Lock()
	subs := append([]namedSub[IsTerminatingChangedFunc](nil), h.terminatingSubs...)
	h.subMu.Unlock()
	for _, sub := range subs {
		h.safeCall(sub.name, func() { sub.fn(terminating) })
	}
	return next
}

// AddDetailedCleaningResult appends a PluginResult to the accumulating list,
// updates the disjoint cleaned/failed/skipped sets, and publishes both the
// new snapshot and a detailed_plugin_result event.
func (h *Hub) AddDetailedCleaningResult(r model.PluginResult) AppState {
	next := h.UpdateState(func(s AppState) AppState {
		s.Results = append(s.Results, r)
		switch r.Status {
		case model.StatusCleaned:
			s.Cleaned = append(s.Cleaned, r.PluginName)
		case model.StatusFailed:
			s.Failed = append(s.Failed, r.PluginName)
		case model.StatusSkipped:
			s.Skipped = append(s.Skipped, r.PluginName)
		}
		return s
	})

	h.subMu.Lock()
	subs := append([]namedSub[DetailedResultFunc](nil), h.detailedResultSubs...)
	h.subMu.Unlock()
	for _, sub := range subs {
		h.safeCall(sub.name, func() { sub.fn(r) })
	}
	if h.bridge != nil {
		h.bridge.PublishDetailedResult(r)
	}
	return next
}

// FinishCleaningWithResults transitions is_cleaning back to false and
// publishes the cleaning_completed event with the final SessionResult.
func (h *Hub) FinishCleaningWithResults(result model.SessionResult) AppState {
	next := h.UpdateState(func(s AppState) AppState {
		s.IsCleaning = false
		s.CurrentPlugin = ""
		return s
	})

	h.subMu.Lock()
	subs := append([]namedSub[CleaningCompletedFunc](nil), h.cleaningCompletedSubs...)
	h.subMu.Unlock()
	for _, sub := range subs {
		h.safeCall(sub.name, func() { sub.fn(result) })
	}
	if h.bridge != nil {
		h.bridge.PublishCleaningCompleted(result)
	}
	return next
}
