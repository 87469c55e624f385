package telemetry

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/plantcare/internal/model"
	"github.com/sells-group/plantcare/internal/resilience"
	"github.com/sells-group/plantcare/internal/store"
)

var testNow = time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

// flakyStore fails the next n inserts.
type flakyStore struct {
	*store.SQLiteStore
	failInserts atomic.Int32
}

var errDown = errors.New("connection refused")

func (f *flakyStore) InsertLightReading(ctx context.Context, r *model.LightReading) error {
	if f.failInserts.Add(-1) >= 0 {
		return errDown
	}
	return f.SQLiteStore.InsertLightReading(ctx, r)
}

func (f *flakyStore) InsertGrowthPhoto(ctx context.Context, p *model.GrowthPhoto) error {
	if f.failInserts.Add(-1) >= 0 {
		return errDown
	}
	return f.SQLiteStore.InsertGrowthPhoto(ctx, p)
}

func newTestService(t *testing.T) (*Service, *flakyStore) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.UpsertPlant(context.Background(), &model.Plant{ID: "p1", UserID: "u1", Species: "monstera"}))

	fs := &flakyStore{SQLiteStore: st}
	svc, err := NewService(fs, DefaultConfig())
	require.NoError(t, err)
	svc.nowFunc = func() time.Time { return testNow }
	return svc, fs
}

func reading(clientID string, ppfd float64) *model.LightReading {
	return &model.LightReading{
		ClientID: clientID, PlantID: "p1", UserID: "u1", PPFD: ppfd, DurationMinutes: 10,
		RecordedAt: testNow.Add(-time.Hour),
	}
}

func photo(clientID string) *model.GrowthPhoto {
	return &model.GrowthPhoto{
		ClientID: clientID, PlantID: "p1", UserID: "u1", PhotoURL: "https://img.example.com/" + clientID + ".jpg",
		RecordedAt: testNow.Add(-time.Hour),
	}
}

func TestIngestLightReading(t *testing.T) {
	svc, fs := newTestService(t)
	ctx := context.Background()

	rec, err := svc.IngestLightReading(ctx, reading("c-1", 220))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, model.SyncSynced, rec.Status)
	assert.False(t, rec.Duplicate)

	st, err := svc.GetSyncStatus(ctx, rec.SyncID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncSynced, st.Status)
	assert.Equal(t, rec.ID, st.ItemID)

	stored, err := fs.GetLightReadingByClientID(ctx, "u1", "c-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, stored.ID)
}

func TestIngestLightReading_IdempotentDuplicate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.IngestLightReading(ctx, reading("c-1", 220))
	require.NoError(t, err)
	again, err := svc.IngestLightReading(ctx, reading("c-1", 220))
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.Duplicate)
	assert.Equal(t, model.SyncSynced, again.Status)
}

func TestIngestLightReading_Conflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.IngestLightReading(ctx, reading("c-1", 220))
	require.NoError(t, err)
	rec, err := svc.IngestLightReading(ctx, reading("c-1", 400))
	require.NoError(t, err)

	assert.Equal(t, model.SyncConflict, rec.Status)
	assert.Equal(t, first.ID, rec.ID)
	st, err := svc.GetSyncStatus(ctx, rec.SyncID)
	require.NoError(t, err)
	assert.Equal(t, model.SyncConflict, st.Status)
	assert.Equal(t, first.ID, st.ItemID)
	assert.JSONEq(t, `400`, string(mustField(t, st.Payload, "ppfd")))
}

func TestIngest_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	neg := -1.0

	tests := []struct {
		name string
		r    *model.LightReading
	}{
		{"nil", nil},
		{"no plant", &model.LightReading{UserID: "u1", PPFD: 10, RecordedAt: testNow}},
		{"no user", &model.LightReading{PlantID: "p1", PPFD: 10, RecordedAt: testNow}},
		{"no time", &model.LightReading{PlantID: "p1", UserID: "u1", PPFD: 10}},
		{"future", &model.LightReading{PlantID: "p1", UserID: "u1", PPFD: 10, RecordedAt: testNow.Add(time.Hour)}},
		{"ppfd", &model.LightReading{PlantID: "p1", UserID: "u1", PPFD: 5000, RecordedAt: testNow}},
		{"lux", &model.LightReading{PlantID: "p1", UserID: "u1", PPFD: 10, Lux: &neg, RecordedAt: testNow}},
		{"unknown plant", &model.LightReading{PlantID: "p9", UserID: "u1", PPFD: 10, RecordedAt: testNow}},
		{"other owner", &model.LightReading{PlantID: "p1", UserID: "u2", PPFD: 10, RecordedAt: testNow}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.IngestLightReading(ctx, tt.r)
			assert.ErrorIs(t, err, ErrInvalidItem)
		})
	}

	p := photo("g-1")
	p.PhotoURL = "not a url"
	_, err := svc.IngestGrowthPhoto(ctx, p)
	assert.ErrorIs(t, err, ErrInvalidItem)

	leaves := -3
	p = photo("g-2")
	p.LeafCount = &leaves
	_, err = svc.IngestGrowthPhoto(ctx, p)
	assert.ErrorIs(t, err, ErrInvalidItem)
}

func TestIngest_StoreFailureDefers(t *testing.T) {
	svc, fs := newTestService(t)
	ctx := context.Background()
	fs.failInserts.Store(1)

	_, err := svc.IngestGrowthPhoto(ctx, photo("g-1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeferred)
	assert.True(t, resilience.IsTransient(err))

	due, err := fs.ListDueSyncStatuses(ctx, testNow.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, model.SyncFailed, due[0].Status)
	assert.Equal(t, 0, due[0].RetryCount)
	require.NotNil(t, due[0].NextRetryAt)
	assert.True(t, due[0].NextRetryAt.Equal(testNow.Add(30*time.Second)))
	assert.Contains(t, due[0].LastError, "connection refused")
}

func TestIngest_WithoutClientID(t *testing.T) {
	svc, _ := newTestService(t)

	rec, err := svc.IngestLightReading(context.Background(), reading("", 90))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Empty(t, rec.SyncID)
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, ValidateConfig(DefaultConfig()))

	bad := DefaultConfig()
	bad.BatchConcurrency = 0
	bad.RetryMaxSecs = 1
	err := ValidateConfig(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_concurrency")
	assert.Contains(t, err.Error(), "retry_max_secs")

	_, err = NewService(nil, bad)
	assert.Error(t, err)
}
