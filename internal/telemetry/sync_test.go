package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/plantcare/internal/model"
)

func TestRetryDue_Recovers(t *testing.T) {
	svc, fs := newTestService(t)
	ctx := context.Background()
	fs.failInserts.Store(1)

	_, err := svc.IngestLightReading(ctx, reading("c-1", 150))
	require.ErrorIs(t, err, ErrDeferred)

	// Not due yet.
	sum, err := svc.RetryDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Attempted)

	svc.nowFunc = func() time.Time { return testNow.Add(time.Minute) }
	sum, err = svc.RetryDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, &RetrySummary{Attempted: 1, Synced: 1}, sum)

	stored, err := fs.GetLightReadingByClientID(ctx, "u1", "c-1")
	require.NoError(t, err)
	assert.InDelta(t, 150.0, stored.PPFD, 1e-9)

	counts, err := fs.SyncStatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[model.SyncSynced])
}

func TestRetryDue_Exhausts(t *testing.T) {
	svc, fs := newTestService(t)
	ctx := context.Background()
	svc.schedule.MaxRetries = 2
	fs.failInserts.Store(10)

	_, err := svc.IngestLightReading(ctx, reading("c-1", 150))
	require.ErrorIs(t, err, ErrDeferred)

	now := testNow
	var last *RetrySummary
	for i := 0; i < 2; i++ {
		now = now.Add(2 * time.Hour)
		at := now
		svc.nowFunc = func() time.Time { return at }
		last, err = svc.RetryDue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, last.Failed)
	}
	assert.Equal(t, 1, last.Exhausted)

	svc.nowFunc = func() time.Time { return now.Add(48 * time.Hour) }
	sum, err := svc.RetryDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Attempted)

	counts, err := fs.SyncStatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[model.SyncFailed])
}

func TestResolveConflict(t *testing.T) {
	ctx := context.Background()
	height := 12.0

	t.Run("keep_server", func(t *testing.T) {
		svc, fs := newTestService(t)
		_, err := svc.IngestLightReading(ctx, reading("c-1", 100))
		require.NoError(t, err)
		rec, err := svc.IngestLightReading(ctx, reading("c-1", 300))
		require.NoError(t, err)

		st, err := svc.ResolveConflict(ctx, rec.SyncID, "u1", model.ResolveKeepServer)
		require.NoError(t, err)
		assert.Equal(t, model.SyncSynced, st.Status)
		assert.Equal(t, model.ResolveKeepServer, st.Resolution)

		got, err := fs.GetLightReadingByClientID(ctx, "u1", "c-1")
		require.NoError(t, err)
		assert.InDelta(t, 100.0, got.PPFD, 1e-9)

		_, err = svc.ResolveConflict(ctx, rec.SyncID, "u1", model.ResolveKeepServer)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("keep_client", func(t *testing.T) {
		svc, fs := newTestService(t)
		_, err := svc.IngestLightReading(ctx, reading("c-1", 100))
		require.NoError(t, err)
		rec, err := svc.IngestLightReading(ctx, reading("c-1", 300))
		require.NoError(t, err)

		_, err = svc.ResolveConflict(ctx, rec.SyncID, "u1", model.ResolveKeepClient)
		require.NoError(t, err)
		got, err := fs.GetLightReadingByClientID(ctx, "u1", "c-1")
		require.NoError(t, err)
		assert.InDelta(t, 300.0, got.PPFD, 1e-9)
		assert.Equal(t, rec.ID, got.ID)
	})

	t.Run("merge", func(t *testing.T) {
		svc, fs := newTestService(t)
		p := photo("g-1")
		p.Notes = "first leaf"
		_, err := svc.IngestGrowthPhoto(ctx, p)
		require.NoError(t, err)

		client := photo("g-1")
		client.Notes = "second leaf"
		client.HeightCM = &height
		rec, err := svc.IngestGrowthPhoto(ctx, client)
		require.NoError(t, err)
		require.Equal(t, model.SyncConflict, rec.Status)

		_, err = svc.ResolveConflict(ctx, rec.SyncID, "u1", model.ResolveMerge)
		require.NoError(t, err)
		got, err := fs.GetGrowthPhotoByClientID(ctx, "u1", "g-1")
		require.NoError(t, err)
		assert.Equal(t, "first leaf\nsecond leaf", got.Notes)
		require.NotNil(t, got.HeightCM)
		assert.InDelta(t, 12.0, *got.HeightCM, 1e-9)
	})

	t.Run("errors", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.IngestLightReading(ctx, reading("c-1", 100))
		require.NoError(t, err)
		rec, err := svc.IngestLightReading(ctx, reading("c-1", 300))
		require.NoError(t, err)

		_, err = svc.ResolveConflict(ctx, rec.SyncID, "u1", "overwrite")
		assert.ErrorIs(t, err, ErrInvalidItem)
		_, err = svc.ResolveConflict(ctx, rec.SyncID, "u2", model.ResolveMerge)
		assert.ErrorIs(t, err, ErrInvalidItem)
		_, err = svc.ResolveConflict(ctx, "missing", "u1", model.ResolveMerge)
		assert.ErrorIs(t, err, ErrSyncNotFound)
	})
}

func TestMergeLightReadings(t *testing.T) {
	lux := 8000.0
	server := &model.LightReading{ID: "s", PPFD: 100, DurationMinutes: 5}
	client := &model.LightReading{PPFD: 300, Lux: &lux, DurationMinutes: 20}

	got := mergeLightReadings(server, client)
	assert.InDelta(t, 200.0, got.PPFD, 1e-9)
	assert.Equal(t, &lux, got.Lux)
	assert.Equal(t, 20, got.DurationMinutes)
	assert.Equal(t, "s", got.ID)
	assert.InDelta(t, 100.0, server.PPFD, 1e-9)
}
