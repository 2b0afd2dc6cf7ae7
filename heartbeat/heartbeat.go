// Package heartbeat writes a liveness file for external watchdogs, modeled
// on the teacher's daemon/subscribers.go HeartbeatSubscriber: a JSON file
// written atomically after every completed session and whenever Tick is
// called, recording uptime, sessions run, and total ITM/UDR counts (spec §9
// Supplemented Features). Nothing in this repo reads it back; it exists
// purely for an external liveness check.
package heartbeat

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/autoqac-go/autoqac/model"
	"github.com/autoqac-go/autoqac/pkg/fsops"
	"github.com/autoqac-go/autoqac/state"
)

// Writer accumulates session totals and flushes them to path.
type Writer struct {
	path      string
	startTime time.Time

	mu            sync.Mutex
	sessionsRun   int64
	totalITM      int64
	totalUDR      int64
	lastSessionAt time.Time
}

// NewWriter creates a Writer targeting path. Call Attach to drive it from a
// State Hub, or Tick to fire it from an external ticker.
func NewWriter(path string) *Writer {
	return &Writer{path: path, startTime: time.Now()}
}

// Attach subscribes w to hub's cleaning_completed stream, folding each
// finished (or cancelled) session's ITM/UDR totals into the running counts
// before writing.
func Attach(w *Writer, hub *state.Hub) {
	hub.SubscribeCleaningCompleted("heartbeat", func(result model.SessionResult) {
		w.recordSession(result)
	})
}

func (w *Writer) recordSession(result model.SessionResult) {
	w.mu.Lock()
	w.sessionsRun++
	w.lastSessionAt = result.EndTime
	for _, r := range result.PluginResults {
		if r.Statistics == nil {
			continue
		}
		w.totalITM += int64(r.Statistics.ItemsRemoved)
		w.totalUDR += int64(r.Statistics.ItemsUndeleted)
	}
	w.mu.Unlock()
	w.write()
}

// Tick writes the current snapshot without waiting for a session event, for
// a periodic ticker driven by the caller; main.go does not run one.
func (w *Writer) Tick() {
	w.write()
}

func (w *Writer) write() {
	w.mu.Lock()
	data := map[string]interface{}{
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds":  time.Since(w.startTime).Seconds(),
		"sessions_run":    w.sessionsRun,
		"total_itm":       w.totalITM,
		"total_udr":       w.totalUDR,
		"last_session_at": w.lastSessionAt.UTC().Format(time.RFC3339),
		"pid":             os.Getpid(),
	}
	w.mu.Unlock()

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return
	}

	fsops.AtomicWriteFile(w.path, encoded, 0o644)
}
