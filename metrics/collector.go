// Package metrics exposes AutoQAC's cleaning-session counters and
// histograms as Prometheus instruments, replacing the teacher's otel/
// fallback-observability package with a real prometheus/client_golang
// registry (spec §9 Supplemented Features).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/autoqac-go/autoqac/model"
)

// Collector owns a private Prometheus registry (never the global default
// one, so multiple Collectors in tests don't collide) and the instruments
// driven by session/plugin events.
type Collector struct {
	registry *prometheus.Registry

	sessionsTotal   prometheus.Counter
	cancelledTotal  prometheus.Counter
	pluginsTotal    *prometheus.CounterVec // by status: cleaned/failed/skipped
	itmTotal        prometheus.Counter
	udrTotal        prometheus.Counter
	timeoutsTotal   prometheus.Counter
	hangsTotal      prometheus.Counter
	backupsTotal    *prometheus.CounterVec // by outcome: ok/failed

	sessionDuration prometheus.Histogram
	pluginDuration  *prometheus.HistogramVec // by status
}

// NewCollector builds a Collector and registers all instruments on its own
// registry.
func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.sessionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "autoqac",
		Name:      "sessions_total",
		Help:      "Cleaning sessions started.",
	})
	c.cancelledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "autoqac",
		Name:      "sessions_cancelled_total",
		Help:      "Cleaning sessions that ended cancelled.",
	})
	c.pluginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autoqac",
		Name:      "plugins_processed_total",
		Help:      "Plugins processed, by terminal status.",
	}, []string{"status"})
	c.itmTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "autoqac",
		Name:      "itm_removed_total",
		Help:      "Identical To Master records removed, summed across all plugins.",
	})
	c.udrTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "autoqac",
		Name:      "udr_removed_total",
		Help:      "Undisturbed Deleted References removed, summed across all plugins.",
	})
	c.timeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "autoqac",
		Name:      "plugin_timeouts_total",
		Help:      "Plugin cleaning attempts that hit the xEdit timeout.",
	})
	c.hangsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "autoqac",
		Name:      "hangs_detected_total",
		Help:      "CPU-idle hang conditions detected during a plugin attempt (spec §4.4).",
	})
	c.backupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "autoqac",
		Name:      "plugin_backups_total",
		Help:      "Per-plugin backup copies attempted, by outcome.",
	}, []string{"outcome"})
	c.sessionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "autoqac",
		Name:      "session_duration_seconds",
		Help:      "Wall-clock duration of a cleaning session.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1s .. 8192s (~2.3h)
	})
	c.pluginDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "autoqac",
		Name:      "plugin_duration_seconds",
		Help:      "Wall-clock duration of a single plugin's xEdit attempt, by terminal status.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"status"})

	c.registry.MustRegister(
		c.sessionsTotal, c.cancelledTotal, c.pluginsTotal, c.itmTotal, c.udrTotal,
		c.timeoutsTotal, c.hangsTotal, c.backupsTotal, c.sessionDuration, c.pluginDuration,
	)
	return c
}

// Registry exposes the underlying registry for a server (server.go) or for
// tests that want to scrape instruments directly.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordPluginResult folds one finished plugin attempt into the counters and
// per-status duration histogram.
func (c *Collector) RecordPluginResult(r model.PluginResult) {
	status := string(r.Status)
	c.pluginsTotal.WithLabelValues(status).Inc()
	c.pluginDuration.WithLabelValues(status).Observe(r.Duration.Seconds())

	if r.TimedOut {
		c.timeoutsTotal.Inc()
	}
	if r.Statistics != nil {
		c.itmTotal.Add(float64(r.Statistics.ItemsRemoved))
		c.udrTotal.Add(float64(r.Statistics.ItemsUndeleted))
	}
}

// RecordSessionStart increments the session counter.
func (c *Collector) RecordSessionStart() {
	c.sessionsTotal.Inc()
}

// RecordSessionEnd folds a finished (or cancelled) session's wall-clock
// duration and cancellation flag into the histograms/counters.
func (c *Collector) RecordSessionEnd(result model.SessionResult) {
	c.sessionDuration.Observe(result.EndTime.Sub(result.StartTime).Seconds())
	if result.WasCancelled {
		c.cancelledTotal.Inc()
	}
}

// RecordHang increments the hang-detected counter. Callers debounce the
// false->true edge themselves (see Attach in hub_wiring.go); this method
// just counts.
func (c *Collector) RecordHang() {
	c.hangsTotal.Inc()
}

// RecordBackup records one per-plugin backup attempt's outcome.
func (c *Collector) RecordBackup(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	c.backupsTotal.WithLabelValues(outcome).Inc()
}
