// Package monitoring collects plan and telemetry health metrics and raises
// webhook alerts when they cross configured thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/plantcare/internal/model"
	"github.com/sells-group/plantcare/internal/store"
)

// dueScanLimit bounds the due-retry scan.
const dueScanLimit = 10000

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Plan generation (within lookback window).
	PlansGenerated int     `json:"plans_generated"`
	PlansFallback  int     `json:"plans_fallback"`
	FallbackRate   float64 `json:"fallback_rate"`
	AvgConfidence  float64 `json:"avg_confidence"`

	// Telemetry sync statuses (all time).
	SyncCounts      map[string]int `json:"sync_counts"`
	SyncFailed      int            `json:"sync_failed"`
	SyncConflicts   int            `json:"sync_conflicts"`
	SyncFailureRate float64        `json:"sync_failure_rate"`
	DueRetries      int            `json:"due_retries"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// MetricsSource is the store surface the collector reads.
type MetricsSource interface {
	PlanStats(ctx context.Context, since time.Time) (*store.PlanStats, error)
	SyncStatusCounts(ctx context.Context) (map[model.SyncStatus]int, error)
	ListDueSyncStatuses(ctx context.Context, now time.Time, limit int) ([]model.TelemetrySyncStatus, error)
}

// Collector gathers metrics from the store.
type Collector struct {
	source  MetricsSource
	nowFunc func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(src MetricsSource) *Collector {
	return &Collector{source: src, nowFunc: time.Now}
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.nowFunc().UTC()
	snap := &MetricsSnapshot{
		SyncCounts:    make(map[string]int),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	stats, err := c.source.PlanStats(ctx, now.Add(-time.Duration(lookbackHours)*time.Hour))
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: plan stats")
	}
	snap.PlansGenerated = stats.Generated
	snap.PlansFallback = stats.Fallback
	snap.AvgConfidence = stats.AvgConfidence
	if stats.Generated > 0 {
		snap.FallbackRate = float64(stats.Fallback) / float64(stats.Generated)
	}

	counts, err := c.source.SyncStatusCounts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: sync status counts")
	}
	for status, n := range counts {
		snap.SyncCounts[string(status)] = n
	}
	snap.SyncFailed = counts[model.SyncFailed]
	snap.SyncConflicts = counts[model.SyncConflict]
	if finished := counts[model.SyncSynced] + snap.SyncFailed; finished > 0 {
		snap.SyncFailureRate = float64(snap.SyncFailed) / float64(finished)
	}

	due, err := c.source.ListDueSyncStatuses(ctx, now, dueScanLimit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list due retries")
	}
	snap.DueRetries = len(due)

	return snap, nil
}
