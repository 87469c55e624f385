package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/plantcare/internal/model"
	"github.com/sells-group/plantcare/internal/store"
)

type fakeSource struct {
	stats    store.PlanStats
	counts   map[model.SyncStatus]int
	due      int
	statsErr error
	since    time.Time
	dueLimit int
}

func (f *fakeSource) PlanStats(_ context.Context, since time.Time) (*store.PlanStats, error) {
	f.since = since
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	st := f.stats
	return &st, nil
}

func (f *fakeSource) SyncStatusCounts(context.Context) (map[model.SyncStatus]int, error) {
	return f.counts, nil
}

func (f *fakeSource) ListDueSyncStatuses(_ context.Context, _ time.Time, limit int) ([]model.TelemetrySyncStatus, error) {
	f.dueLimit = limit
	return make([]model.TelemetrySyncStatus, f.due), nil
}

func TestCollector_Collect(t *testing.T) {
	now := time.Date(2026, 4, 20, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{
		stats: store.PlanStats{Generated: 20, Fallback: 5, AvgConfidence: 0.72},
		counts: map[model.SyncStatus]int{
			model.SyncSynced:   30,
			model.SyncFailed:   10,
			model.SyncConflict: 2,
		},
		due: 7,
	}
	c := NewCollector(src)
	c.nowFunc = func() time.Time { return now }

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, now.Add(-24*time.Hour), src.since)
	assert.Equal(t, dueScanLimit, src.dueLimit)
	assert.Equal(t, 20, snap.PlansGenerated)
	assert.Equal(t, 5, snap.PlansFallback)
	assert.InDelta(t, 0.25, snap.FallbackRate, 1e-9)
	assert.InDelta(t, 0.72, snap.AvgConfidence, 1e-9)
	assert.Equal(t, 10, snap.SyncFailed)
	assert.Equal(t, 2, snap.SyncConflicts)
	assert.InDelta(t, 0.25, snap.SyncFailureRate, 1e-9)
	assert.Equal(t, 30, snap.SyncCounts["synced"])
	assert.Equal(t, 7, snap.DueRetries)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.Equal(t, now, snap.CollectedAt)
}

func TestCollector_Collect_Empty(t *testing.T) {
	snap, err := NewCollector(&fakeSource{}).Collect(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, snap.FallbackRate)
	assert.Zero(t, snap.SyncFailureRate)
	assert.NotNil(t, snap.SyncCounts)
}

func TestCollector_Collect_Error(t *testing.T) {
	_, err := NewCollector(&fakeSource{statsErr: errors.New("db down")}).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: plan stats")
}
