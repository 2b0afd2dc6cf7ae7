package metrics

import (
	"sync/atomic"

	"github.com/autoqac-go/autoqac/model"
	"github.com/autoqac-go/autoqac/state"
)

// Attach subscribes c to hub's event streams so every plugin result and
// session completion is folded into the Prometheus instruments without the
// Orchestrator itself importing this package (spec §3: Orchestrator and
// State Hub are composed, not coupled, through the Hub's publish/subscribe
// surface).
func Attach(c *Collector, hub *state.Hub) {
	var hangActive int32  // debounces the hang false->true edge into one count
	var cleaningActive int32 // debounces the is_cleaning false->true edge

	hub.SubscribeStateChanged("metrics", func(s state.AppState) {
		if s.HangDetected {
			if atomic.CompareAndSwapInt32(&hangActive, 0, 1) {
				c.RecordHang()
			}
		} else {
			atomic.StoreInt32(&hangActive, 0)
		}

		if s.IsCleaning {
			if atomic.CompareAndSwapInt32(&cleaningActive, 0, 1) {
				c.RecordSessionStart()
			}
		} else {
			atomic.StoreInt32(&cleaningActive, 0)
		}
	})

	hub.SubscribeDetailedResult("metrics", func(r model.PluginResult) {
		c.RecordPluginResult(r)
	})

	hub.SubscribeCleaningCompleted("metrics", func(result model.SessionResult) {
		c.RecordSessionEnd(result)
	})

	hub.SubscribeBackupOutcome("metrics", func(ok bool) {
		c.RecordBackup(ok)
	})
}
