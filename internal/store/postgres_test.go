package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/plantcare/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var planColumnNames = []string{
	"id", "plant_id", "user_id", "version", "status", "plan", "rationale", "confidence_score",
	"valid_from", "valid_to", "acknowledged_at", "generation_time_ms", "data_sources", "fallback_used", "created_at",
}

func TestPostgresStore_MigrateAndPing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS plants`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPlant_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, user_id, name, species, age_days, pot_size_cm, indoor, location, created_at FROM plants WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetPlant(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPlant_DecodesLocation(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	loc, err := encodeLocation(model.NewLocation(51.5, -0.12))
	require.NoError(t, err)
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM plants WHERE id = \$1`).
		WithArgs("plant-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "name", "species", "age_days", "pot_size_cm", "indoor", "location", "created_at"}).
			AddRow("plant-1", "user-1", "Fiddle", "Ficus lyrata", 400, 20.0, true, loc, created))

	p, err := s.GetPlant(context.Background(), "plant-1")
	require.NoError(t, err)
	assert.Equal(t, "Ficus lyrata", p.Species)
	require.NotNil(t, p.Location)
	assert.InDelta(t, 51.5, p.Location.Lat(), 1e-9)
	assert.InDelta(t, -0.12, p.Location.Lon(), 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SavePlan_AssignsNextVersion(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	validFrom := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	plan := &model.CarePlan{
		PlantID:   "plant-1",
		UserID:    "user-1",
		Status:    model.PlanStatusActive,
		ValidFrom: validFrom,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("plant-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(version\), 0\) FROM care_plans WHERE plant_id = \$1`).
		WithArgs("plant-1").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(2))
	mock.ExpectExec(`UPDATE care_plans\s+SET status = 'superseded'`).
		WithArgs("plant-1", validFrom).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO care_plans`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.SavePlan(context.Background(), plan))
	assert.Equal(t, 3, plan.Version)
	assert.NotEmpty(t, plan.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SavePlan_InsertFailureRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	plan := &model.CarePlan{PlantID: "plant-1", UserID: "user-1", Status: model.PlanStatusActive, ValidFrom: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery(`COALESCE\(MAX\(version\)`).WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(0))
	mock.ExpectExec(`SET status = 'superseded'`).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(`INSERT INTO care_plans`).WillReturnError(errors.New("unique violation"))
	mock.ExpectRollback()

	err := s.SavePlan(context.Background(), plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert plan")
	assert.Equal(t, 0, plan.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPlan(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	validFrom := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	validTo := validFrom.Add(30 * 24 * time.Hour)

	mock.ExpectQuery(`FROM care_plans WHERE id = \$1`).
		WithArgs("plan-1").
		WillReturnRows(pgxmock.NewRows(planColumnNames).AddRow(
			"plan-1", "plant-1", "user-1", 4, "active",
			[]byte(`{"watering_schedule":{"interval_days":5,"amount_ml":250}}`),
			[]byte(`{"summary":"ok"}`), 0.82, validFrom, &validTo, nil, int64(41),
			[]byte(`["sensor","environmental"]`), false, validFrom,
		))

	p, err := s.GetPlan(context.Background(), "plan-1")
	require.NoError(t, err)
	assert.Equal(t, 4, p.Version)
	assert.Equal(t, model.PlanStatusActive, p.Status)
	assert.InDelta(t, 5.0, p.Plan.WateringSchedule.IntervalDays, 1e-9)
	assert.Equal(t, "ok", p.Rationale.Summary)
	assert.Equal(t, []string{"sensor", "environmental"}, p.DataSources)
	require.NotNil(t, p.ValidTo)
	assert.Nil(t, p.AcknowledgedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AcknowledgePlan(t *testing.T) {
	t.Run("active plan", func(t *testing.T) {
		s, mock := newMockPostgresStore(t)
		mock.ExpectExec(`UPDATE care_plans SET status = 'acknowledged'`).
			WithArgs("plan-1", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, s.AcknowledgePlan(context.Background(), "plan-1", time.Now()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("superseded plan", func(t *testing.T) {
		s, mock := newMockPostgresStore(t)
		mock.ExpectExec(`UPDATE care_plans SET status = 'acknowledged'`).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(`SELECT status FROM care_plans WHERE id = \$1`).
			WithArgs("plan-1").
			WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("superseded"))

		err := s.AcknowledgePlan(context.Background(), "plan-1", time.Now())
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStateConflict))
		assert.Contains(t, err.Error(), "superseded")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing plan", func(t *testing.T) {
		s, mock := newMockPostgresStore(t)
		mock.ExpectExec(`UPDATE care_plans SET status = 'acknowledged'`).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(`SELECT status FROM care_plans`).
			WillReturnError(pgx.ErrNoRows)

		err := s.AcknowledgePlan(context.Background(), "plan-1", time.Now())
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_InvalidatePlan_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`UPDATE care_plans SET status = 'expired', valid_to = \$2 WHERE id = \$1`).
		WithArgs("nope", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.InvalidatePlan(context.Background(), "nope", time.Now())
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExpirePlans(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE care_plans SET status = 'expired'\s+WHERE status IN \('active', 'acknowledged'\)`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := s.ExpirePlans(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PlanStats(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	since := time.Now().Add(-24 * time.Hour)
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(since).
		WillReturnRows(pgxmock.NewRows([]string{"count", "fallback", "avg"}).AddRow(10, 2, 0.74))

	st, err := s.PlanStats(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, 10, st.Generated)
	assert.Equal(t, 2, st.Fallback)
	assert.InDelta(t, 0.74, st.AvgConfidence, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSensorReadings_IncludesLight(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	since := time.Now().Add(-14 * 24 * time.Hour)
	t1 := time.Now().Add(-2 * time.Hour)
	t2 := time.Now().Add(-time.Hour)

	mock.ExpectQuery(`UNION ALL\s+SELECT id, plant_id, 'light', ppfd, 'ppfd', recorded_at`).
		WithArgs("plant-1", since).
		WillReturnRows(pgxmock.NewRows([]string{"id", "plant_id", "sensor_type", "value", "unit", "recorded_at"}).
			AddRow("r1", "plant-1", "soil_moisture", 0.42, "ratio", t1).
			AddRow("l1", "plant-1", "light", 180.0, "ppfd", t2))

	readings, err := s.ListSensorReadings(context.Background(), "plant-1", since)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, model.SensorLight, readings[1].SensorType)
	assert.InDelta(t, 180.0, readings[1].Value, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertLightReading_Duplicate(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`(?s)INSERT INTO light_readings.*ON CONFLICT DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err := s.InsertLightReading(context.Background(), &model.LightReading{
		ClientID: "c-1", PlantID: "plant-1", UserID: "user-1", PPFD: 200, RecordedAt: time.Now(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertLightReading_NullClientID(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`INSERT INTO light_readings`).
		WithArgs(pgxmock.AnyArg(), nil, "plant-1", "user-1", 200.0, (*float64)(nil), 0, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	r := &model.LightReading{PlantID: "plant-1", UserID: "user-1", PPFD: 200, RecordedAt: time.Now()}
	require.NoError(t, s.InsertLightReading(context.Background(), r))
	assert.NotEmpty(t, r.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateLightReading(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Now().UTC()
	mock.ExpectExec(`UPDATE light_readings SET ppfd`).
		WithArgs("lr-1", 350.0, (*float64)(nil), 15, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE light_readings SET ppfd`).
		WithArgs("lr-2", 1.0, (*float64)(nil), 0, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, s.UpdateLightReading(context.Background(), &model.LightReading{
		ID: "lr-1", PPFD: 350, DurationMinutes: 15, RecordedAt: at,
	}))
	err := s.UpdateLightReading(context.Background(), &model.LightReading{ID: "lr-2", PPFD: 1, RecordedAt: at})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateGrowthPhoto(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Now().UTC()
	height := 30.0
	mock.ExpectExec(`UPDATE growth_photos SET photo_url`).
		WithArgs("gp-1", "https://img/1.jpg", &height, (*int)(nil), "repotted", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateGrowthPhoto(context.Background(), &model.GrowthPhoto{
		ID: "gp-1", PhotoURL: "https://img/1.jpg", HeightCM: &height, Notes: "repotted", RecordedAt: at,
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListDueSyncStatuses(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	due := now.Add(-time.Minute)

	mock.ExpectQuery(`FROM sync_statuses\s+WHERE status = 'failed'`).
		WithArgs(now, 50).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "item_type", "item_id", "client_id", "user_id", "status", "retry_count", "max_retries",
			"next_retry_at", "last_error", "resolution", "payload", "created_at", "updated_at",
		}).AddRow("sync-1", model.ItemLightReading, "", "c-1", "user-1", "failed", 2, 5,
			&due, "connection reset", "", []byte(`{"ppfd":120}`), now, now))

	out, err := s.ListDueSyncStatuses(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, model.SyncFailed, out[0].Status)
	assert.Equal(t, 2, out[0].RetryCount)
	assert.JSONEq(t, `{"ppfd":120}`, string(out[0].Payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SyncStatusCounts(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM sync_statuses GROUP BY status`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("synced", 12).
			AddRow("failed", 3))

	counts, err := s.SyncStatusCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, counts[model.SyncSynced])
	assert.Equal(t, 3, counts[model.SyncFailed])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_QueryErrorsAreWrapped(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectQuery(`FROM care_events`).WillReturnError(errors.New("connection refused"))

	_, err := s.ListCareEvents(context.Background(), "plant-1", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: list care events plant-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
