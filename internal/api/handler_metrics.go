package api

import (
	"net/http"
	"time"

	"github.com/Resinat/Inlay/internal/metrics"
)

// parseMetricsTimeRange extracts from/to from query params (RFC3339Nano).
// Defaults: to=now, from=to-1h. Returns 400 on parse error or from>=to.
func parseMetricsTimeRange(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	q := r.URL.Query()
	to = time.Now()

	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeInvalidArgument(w, "invalid 'to': expected RFC3339Nano")
			return time.Time{}, time.Time{}, false
		}
		to = t
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeInvalidArgument(w, "invalid 'from': expected RFC3339Nano")
			return time.Time{}, time.Time{}, false
		}
		from = t
	} else {
		from = to.Add(-1 * time.Hour)
	}

	if !from.Before(to) {
		writeInvalidArgument(w, "'from' must be before 'to'")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

type metricsSummary struct {
	Global       metrics.CountersSnapshot            `json:"global"`
	Placeholders map[string]metrics.CountersSnapshot `json:"placeholders"`
	Reloads      metrics.ReloadSnapshot              `json:"reloads"`
}

// HandleMetricsSummary handles GET /api/v1/metrics/summary.
func HandleMetricsSummary(mgr *metrics.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mgr.Collector()
		WriteJSON(w, http.StatusOK, metricsSummary{
			Global:       c.Snapshot(),
			Placeholders: c.PlaceholderSnapshots(),
			Reloads:      c.ReloadSnapshot(),
		})
	}
}

// HandleRealtimeSelections handles GET /api/v1/metrics/realtime.
func HandleRealtimeSelections(mgr *metrics.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, ok := parseMetricsTimeRange(w, r)
		if !ok {
			return
		}
		items := mgr.Ring().Query(from, to)
		if items == nil {
			items = []metrics.RealtimeSample{}
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"step_seconds": mgr.SampleIntervalSeconds(),
			"items":        items,
		})
	}
}
