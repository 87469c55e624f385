package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/plantcare/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	planColumns = `id, plant_id, user_id, version, status, plan, rationale, confidence_score,
	valid_from, valid_to, acknowledged_at, generation_time_ms, data_sources, fallback_used, created_at`

	insertPlanSQL = `INSERT INTO care_plans (` + planColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	supersedePlansSQL = `UPDATE care_plans
	SET status = 'superseded',
	    valid_to = CASE WHEN valid_to IS NULL OR valid_to > $2 THEN $2 ELSE valid_to END
	WHERE plant_id = $1 AND status IN ('active', 'acknowledged')`

	sensorReadingsSQL = `SELECT id, plant_id, sensor_type, value, unit, recorded_at
	FROM sensor_readings WHERE plant_id = $1 AND recorded_at >= $2
	UNION ALL
	SELECT id, plant_id, 'light', ppfd, 'ppfd', recorded_at
	FROM light_readings WHERE plant_id = $1 AND recorded_at >= $2
	ORDER BY recorded_at`

	syncStatusColumns = `id, item_type, item_id, client_id, user_id, status, retry_count, max_retries,
	next_retry_at, last_error, resolution, payload, created_at, updated_at`
)

// preparedStatements lists queries to prepare on each new connection for
// the hot path of plan generation.
var preparedStatements = map[string]string{
	"select_plant":         `SELECT id, user_id, name, species, age_days, pot_size_cm, indoor, location, created_at FROM plants WHERE id = $1`,
	"latest_plan":          `SELECT ` + planColumns + ` FROM care_plans WHERE plant_id = $1 ORDER BY version DESC LIMIT 1`,
	"insert_plan":          insertPlanSQL,
	"supersede_plans":      supersedePlansSQL,
	"list_sensor_readings": sensorReadingsSQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS plants (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	species     TEXT NOT NULL DEFAULT '',
	age_days    INTEGER NOT NULL DEFAULT 0,
	pot_size_cm DOUBLE PRECISION NOT NULL DEFAULT 0,
	indoor      BOOLEAN NOT NULL DEFAULT true,
	location    BYTEA,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS care_plans (
	id                 TEXT PRIMARY KEY,
	plant_id           TEXT NOT NULL REFERENCES plants(id),
	user_id            TEXT NOT NULL,
	version            INTEGER NOT NULL,
	status             TEXT NOT NULL,
	plan               JSONB NOT NULL,
	rationale          JSONB NOT NULL,
	confidence_score   DOUBLE PRECISION NOT NULL,
	valid_from         TIMESTAMPTZ NOT NULL,
	valid_to           TIMESTAMPTZ,
	acknowledged_at    TIMESTAMPTZ,
	generation_time_ms BIGINT NOT NULL DEFAULT 0,
	data_sources       JSONB NOT NULL DEFAULT '[]',
	fallback_used      BOOLEAN NOT NULL DEFAULT false,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (plant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_care_plans_status_valid_to ON care_plans(status, valid_to);
CREATE INDEX IF NOT EXISTS idx_care_plans_created_at ON care_plans(created_at);

CREATE TABLE IF NOT EXISTS sensor_readings (
	id          TEXT PRIMARY KEY,
	plant_id    TEXT NOT NULL,
	sensor_type TEXT NOT NULL,
	value       DOUBLE PRECISION NOT NULL,
	unit        TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sensor_readings_plant ON sensor_readings(plant_id, recorded_at);

CREATE TABLE IF NOT EXISTS health_assessments (
	id                TEXT PRIMARY KEY,
	plant_id          TEXT NOT NULL,
	status            TEXT NOT NULL,
	score             DOUBLE PRECISION NOT NULL,
	stress_indicators JSONB NOT NULL DEFAULT '[]',
	assessed_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_health_assessments_plant ON health_assessments(plant_id, assessed_at);

CREATE TABLE IF NOT EXISTS care_events (
	id          TEXT PRIMARY KEY,
	plant_id    TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	amount_ml   DOUBLE PRECISION NOT NULL DEFAULT 0,
	on_schedule BOOLEAN NOT NULL DEFAULT false,
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_care_events_plant ON care_events(plant_id, occurred_at);

CREATE TABLE IF NOT EXISTS plan_outcomes (
	id                       TEXT PRIMARY KEY,
	plan_id                  TEXT NOT NULL,
	plant_id                 TEXT NOT NULL,
	success                  BOOLEAN NOT NULL,
	watering_interval_days   DOUBLE PRECISION NOT NULL DEFAULT 0,
	fertilizer_interval_days DOUBLE PRECISION NOT NULL DEFAULT 0,
	season                   TEXT NOT NULL DEFAULT '',
	recorded_at              TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_plan_outcomes_plant ON plan_outcomes(plant_id);

CREATE TABLE IF NOT EXISTS light_readings (
	id               TEXT PRIMARY KEY,
	client_id        TEXT,
	plant_id         TEXT NOT NULL,
	user_id          TEXT NOT NULL,
	ppfd             DOUBLE PRECISION NOT NULL,
	lux              DOUBLE PRECISION,
	duration_minutes INTEGER NOT NULL DEFAULT 0,
	recorded_at      TIMESTAMPTZ NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_light_readings_client ON light_readings(user_id, client_id) WHERE client_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_light_readings_plant ON light_readings(plant_id, recorded_at);

CREATE TABLE IF NOT EXISTS growth_photos (
	id          TEXT PRIMARY KEY,
	client_id   TEXT,
	plant_id    TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	photo_url   TEXT NOT NULL,
	height_cm   DOUBLE PRECISION,
	leaf_count  INTEGER,
	notes       TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_growth_photos_client ON growth_photos(user_id, client_id) WHERE client_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_growth_photos_plant ON growth_photos(plant_id, recorded_at);

CREATE TABLE IF NOT EXISTS sync_statuses (
	id            TEXT PRIMARY KEY,
	item_type     TEXT NOT NULL,
	item_id       TEXT NOT NULL DEFAULT '',
	client_id     TEXT NOT NULL DEFAULT '',
	user_id       TEXT NOT NULL,
	status        TEXT NOT NULL,
	retry_count   INTEGER NOT NULL DEFAULT 0,
	max_retries   INTEGER NOT NULL DEFAULT 5,
	next_retry_at TIMESTAMPTZ,
	last_error    TEXT NOT NULL DEFAULT '',
	resolution    TEXT NOT NULL DEFAULT '',
	payload       JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK (retry_count >= 0 AND retry_count <= max_retries)
);

CREATE INDEX IF NOT EXISTS idx_sync_statuses_due ON sync_statuses(status, next_retry_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- plants ---

func (s *PostgresStore) UpsertPlant(ctx context.Context, p *model.Plant) error {
	loc, err := encodeLocation(p.Location)
	if err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO plants (id, user_id, name, species, age_days, pot_size_cm, indoor, location, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id, name = EXCLUDED.name, species = EXCLUDED.species,
			age_days = EXCLUDED.age_days, pot_size_cm = EXCLUDED.pot_size_cm,
			indoor = EXCLUDED.indoor, location = EXCLUDED.location`,
		p.ID, p.UserID, p.Name, p.Species, p.AgeDays, p.PotSizeCM, p.Indoor, loc, p.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert plant %s", p.ID)
}

func (s *PostgresStore) GetPlant(ctx context.Context, plantID string) (*model.Plant, error) {
	var p model.Plant
	var loc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, name, species, age_days, pot_size_cm, indoor, location, created_at FROM plants WHERE id = $1`,
		plantID,
	).Scan(&p.ID, &p.UserID, &p.Name, &p.Species, &p.AgeDays, &p.PotSizeCM, &p.Indoor, &loc, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "plant %s", plantID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get plant %s", plantID)
	}
	if p.Location, err = decodeLocation(loc); err != nil {
		return nil, err
	}
	return &p, nil
}

// --- care plans ---

func (s *PostgresStore) SavePlan(ctx context.Context, plan *model.CarePlan) error {
	blobs, err := encodePlan(plan)
	if err != nil {
		return err
	}
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save plan")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Serialise version assignment per plant.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, plan.PlantID); err != nil {
		return eris.Wrapf(err, "postgres: lock plant %s", plan.PlantID)
	}

	var maxVersion int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM care_plans WHERE plant_id = $1`, plan.PlantID,
	).Scan(&maxVersion); err != nil {
		return eris.Wrapf(err, "postgres: max plan version %s", plan.PlantID)
	}

	if _, err := tx.Exec(ctx, supersedePlansSQL, plan.PlantID, plan.ValidFrom); err != nil {
		return eris.Wrapf(err, "postgres: supersede plans %s", plan.PlantID)
	}

	version := maxVersion + 1
	if _, err := tx.Exec(ctx, insertPlanSQL,
		plan.ID, plan.PlantID, plan.UserID, version, string(plan.Status), blobs.plan, blobs.rationale,
		plan.ConfidenceScore, plan.ValidFrom, plan.ValidTo, plan.AcknowledgedAt, plan.GenerationTimeMS,
		blobs.sources, plan.FallbackUsed, plan.CreatedAt,
	); err != nil {
		return eris.Wrapf(err, "postgres: insert plan %s", plan.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit save plan")
	}
	plan.Version = version
	return nil
}

func (s *PostgresStore) GetPlan(ctx context.Context, planID string) (*model.CarePlan, error) {
	p, err := scanPlan(s.pool.QueryRow(ctx,
		`SELECT `+planColumns+` FROM care_plans WHERE id = $1`, planID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "plan %s", planID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get plan %s", planID)
	}
	return p, nil
}

func (s *PostgresStore) LatestPlan(ctx context.Context, plantID string) (*model.CarePlan, error) {
	p, err := scanPlan(s.pool.QueryRow(ctx,
		`SELECT `+planColumns+` FROM care_plans WHERE plant_id = $1 ORDER BY version DESC LIMIT 1`, plantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "plans for plant %s", plantID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest plan %s", plantID)
	}
	return p, nil
}

func (s *PostgresStore) ListPlanVersions(ctx context.Context, plantID string) ([]model.CarePlan, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+planColumns+` FROM care_plans WHERE plant_id = $1 ORDER BY version DESC`, plantID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list plan versions %s", plantID)
	}
	defer rows.Close()

	var plans []model.CarePlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan plan")
		}
		plans = append(plans, *p)
	}
	return plans, eris.Wrap(rows.Err(), "postgres: iterate plans")
}

func (s *PostgresStore) AcknowledgePlan(ctx context.Context, planID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE care_plans SET status = 'acknowledged', acknowledged_at = $2 WHERE id = $1 AND status = 'active'`,
		planID, at,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: acknowledge plan %s", planID)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var status string
	err = s.pool.QueryRow(ctx, `SELECT status FROM care_plans WHERE id = $1`, planID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "plan %s", planID)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: plan status %s", planID)
	}
	return eris.Wrapf(ErrStateConflict, "plan %s is %s", planID, status)
}

func (s *PostgresStore) InvalidatePlan(ctx context.Context, planID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE care_plans SET status = 'expired', valid_to = $2 WHERE id = $1`, planID, at)
	if err != nil {
		return eris.Wrapf(err, "postgres: invalidate plan %s", planID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "plan %s", planID)
	}
	return nil
}

func (s *PostgresStore) ExpirePlans(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE care_plans SET status = 'expired'
		WHERE status IN ('active', 'acknowledged') AND valid_to IS NOT NULL AND valid_to <= $1`, now)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: expire plans")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) PlanStats(ctx context.Context, since time.Time) (*PlanStats, error) {
	var st PlanStats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN fallback_used THEN 1 ELSE 0 END), 0), COALESCE(AVG(confidence_score), 0)
		FROM care_plans WHERE created_at >= $1`, since,
	).Scan(&st.Generated, &st.Fallback, &st.AvgConfidence)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: plan stats")
	}
	return &st, nil
}

// --- signals ---

func (s *PostgresStore) AddSensorReading(ctx context.Context, r *model.SensorReading) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sensor_readings (id, plant_id, sensor_type, value, unit, recorded_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.PlantID, r.SensorType, r.Value, r.Unit, r.RecordedAt,
	)
	return eris.Wrap(err, "postgres: insert sensor reading")
}

func (s *PostgresStore) ListSensorReadings(ctx context.Context, plantID string, since time.Time) ([]model.SensorReading, error) {
	rows, err := s.pool.Query(ctx, sensorReadingsSQL, plantID, since)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list sensor readings %s", plantID)
	}
	defer rows.Close()

	var out []model.SensorReading
	for rows.Next() {
		var r model.SensorReading
		if err := rows.Scan(&r.ID, &r.PlantID, &r.SensorType, &r.Value, &r.Unit, &r.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sensor reading")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate sensor readings")
}

func (s *PostgresStore) AddHealthAssessment(ctx context.Context, a *model.HealthAssessment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	stress, err := encodeStrings(a.StressIndicators)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO health_assessments (id, plant_id, status, score, stress_indicators, assessed_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.PlantID, string(a.Status), a.Score, stress, a.AssessedAt,
	)
	return eris.Wrap(err, "postgres: insert health assessment")
}

func (s *PostgresStore) ListHealthAssessments(ctx context.Context, plantID string, since time.Time) ([]model.HealthAssessment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, plant_id, status, score, stress_indicators, assessed_at
		FROM health_assessments WHERE plant_id = $1 AND assessed_at >= $2 ORDER BY assessed_at`,
		plantID, since,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list health assessments %s", plantID)
	}
	defer rows.Close()

	var out []model.HealthAssessment
	for rows.Next() {
		var a model.HealthAssessment
		var status string
		var stress []byte
		if err := rows.Scan(&a.ID, &a.PlantID, &status, &a.Score, &stress, &a.AssessedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan health assessment")
		}
		a.Status = model.HealthStatus(status)
		if a.StressIndicators, err = decodeStrings(stress); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate health assessments")
}

func (s *PostgresStore) AddCareEvent(ctx context.Context, e *model.CareEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO care_events (id, plant_id, user_id, event_type, amount_ml, on_schedule, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.PlantID, e.UserID, e.EventType, e.AmountML, e.OnSchedule, e.OccurredAt,
	)
	return eris.Wrap(err, "postgres: insert care event")
}

func (s *PostgresStore) ListCareEvents(ctx context.Context, plantID string, since time.Time) ([]model.CareEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, plant_id, user_id, event_type, amount_ml, on_schedule, occurred_at
		FROM care_events WHERE plant_id = $1 AND occurred_at >= $2 ORDER BY occurred_at`,
		plantID, since,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list care events %s", plantID)
	}
	defer rows.Close()

	var out []model.CareEvent
	for rows.Next() {
		var e model.CareEvent
		if err := rows.Scan(&e.ID, &e.PlantID, &e.UserID, &e.EventType, &e.AmountML, &e.OnSchedule, &e.OccurredAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan care event")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate care events")
}

func (s *PostgresStore) AddPlanOutcome(ctx context.Context, o *model.PlanOutcome) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO plan_outcomes (id, plan_id, plant_id, success, watering_interval_days, fertilizer_interval_days, season, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.PlanID, o.PlantID, o.Success, o.WateringIntervalDays, o.FertilizerIntervalDays, string(o.Season), o.RecordedAt,
	)
	return eris.Wrap(err, "postgres: insert plan outcome")
}

func (s *PostgresStore) ListPlanOutcomes(ctx context.Context, plantID string) ([]model.PlanOutcome, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, plan_id, plant_id, success, watering_interval_days, fertilizer_interval_days, season, recorded_at
		FROM plan_outcomes WHERE plant_id = $1 ORDER BY recorded_at`,
		plantID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list plan outcomes %s", plantID)
	}
	defer rows.Close()

	var out []model.PlanOutcome
	for rows.Next() {
		var o model.PlanOutcome
		var season string
		if err := rows.Scan(&o.ID, &o.PlanID, &o.PlantID, &o.Success, &o.WateringIntervalDays,
			&o.FertilizerIntervalDays, &season, &o.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan plan outcome")
		}
		o.Season = model.Season(season)
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate plan outcomes")
}

func (s *PostgresStore) ListGrowthPhotos(ctx context.Context, plantID string, since time.Time) ([]model.GrowthPhoto, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, client_id, plant_id, user_id, photo_url, height_cm, leaf_count, notes, recorded_at, created_at
		FROM growth_photos WHERE plant_id = $1 AND recorded_at >= $2 ORDER BY recorded_at`,
		plantID, since,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list growth photos %s", plantID)
	}
	defer rows.Close()

	var out []model.GrowthPhoto
	for rows.Next() {
		p, err := scanGrowthPhoto(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan growth photo")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate growth photos")
}

// --- telemetry ---

func (s *PostgresStore) InsertLightReading(ctx context.Context, r *model.LightReading) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO light_readings (id, client_id, plant_id, user_id, ppfd, lux, duration_minutes, recorded_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT DO NOTHING`,
		r.ID, nullIfEmpty(r.ClientID), r.PlantID, r.UserID, r.PPFD, r.Lux, r.DurationMinutes, r.RecordedAt, r.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert light reading")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrDuplicate, "light reading client_id %s", r.ClientID)
	}
	return nil
}

func (s *PostgresStore) InsertGrowthPhoto(ctx context.Context, p *model.GrowthPhoto) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO growth_photos (id, client_id, plant_id, user_id, photo_url, height_cm, leaf_count, notes, recorded_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) ON CONFLICT DO NOTHING`,
		p.ID, nullIfEmpty(p.ClientID), p.PlantID, p.UserID, p.PhotoURL, p.HeightCM, p.LeafCount, p.Notes, p.RecordedAt, p.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert growth photo")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrDuplicate, "growth photo client_id %s", p.ClientID)
	}
	return nil
}

func (s *PostgresStore) UpdateLightReading(ctx context.Context, r *model.LightReading) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE light_readings SET ppfd = $2, lux = $3, duration_minutes = $4, recorded_at = $5 WHERE id = $1`,
		r.ID, r.PPFD, r.Lux, r.DurationMinutes, r.RecordedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update light reading %s", r.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "light reading %s", r.ID)
	}
	return nil
}

func (s *PostgresStore) UpdateGrowthPhoto(ctx context.Context, p *model.GrowthPhoto) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE growth_photos SET photo_url = $2, height_cm = $3, leaf_count = $4, notes = $5, recorded_at = $6 WHERE id = $1`,
		p.ID, p.PhotoURL, p.HeightCM, p.LeafCount, p.Notes, p.RecordedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update growth photo %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "growth photo %s", p.ID)
	}
	return nil
}

func (s *PostgresStore) GetLightReadingByClientID(ctx context.Context, userID, clientID string) (*model.LightReading, error) {
	var r model.LightReading
	var client *string
	err := s.pool.QueryRow(ctx,
		`SELECT id, client_id, plant_id, user_id, ppfd, lux, duration_minutes, recorded_at, created_at
		FROM light_readings WHERE user_id = $1 AND client_id = $2`,
		userID, clientID,
	).Scan(&r.ID, &client, &r.PlantID, &r.UserID, &r.PPFD, &r.Lux, &r.DurationMinutes, &r.RecordedAt, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "light reading client_id %s", clientID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get light reading")
	}
	r.ClientID = derefString(client)
	return &r, nil
}

func (s *PostgresStore) GetGrowthPhotoByClientID(ctx context.Context, userID, clientID string) (*model.GrowthPhoto, error) {
	p, err := scanGrowthPhoto(s.pool.QueryRow(ctx,
		`SELECT id, client_id, plant_id, user_id, photo_url, height_cm, leaf_count, notes, recorded_at, created_at
		FROM growth_photos WHERE user_id = $1 AND client_id = $2`,
		userID, clientID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "growth photo client_id %s", clientID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get growth photo")
	}
	return p, nil
}

// --- sync status ---

func (s *PostgresStore) SaveSyncStatus(ctx context.Context, st *model.TelemetrySyncStatus) error {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_statuses (`+syncStatusColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			item_id = EXCLUDED.item_id, status = EXCLUDED.status, retry_count = EXCLUDED.retry_count,
			max_retries = EXCLUDED.max_retries, next_retry_at = EXCLUDED.next_retry_at,
			last_error = EXCLUDED.last_error, resolution = EXCLUDED.resolution,
			payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		st.ID, st.ItemType, st.ItemID, st.ClientID, st.UserID, string(st.Status), st.RetryCount, st.MaxRetries,
		st.NextRetryAt, st.LastError, string(st.Resolution), []byte(st.Payload), st.CreatedAt, st.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: save sync status %s", st.ID)
}

func (s *PostgresStore) GetSyncStatus(ctx context.Context, id string) (*model.TelemetrySyncStatus, error) {
	st, err := scanSyncStatus(s.pool.QueryRow(ctx,
		`SELECT `+syncStatusColumns+` FROM sync_statuses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sync status %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get sync status %s", id)
	}
	return st, nil
}

func (s *PostgresStore) ListDueSyncStatuses(ctx context.Context, now time.Time, limit int) ([]model.TelemetrySyncStatus, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+syncStatusColumns+` FROM sync_statuses
		WHERE status = 'failed' AND next_retry_at IS NOT NULL AND next_retry_at <= $1 AND retry_count < max_retries
		ORDER BY next_retry_at LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list due sync statuses")
	}
	defer rows.Close()

	var out []model.TelemetrySyncStatus
	for rows.Next() {
		st, err := scanSyncStatus(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan sync status")
		}
		out = append(out, *st)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate sync statuses")
}

func (s *PostgresStore) SyncStatusCounts(ctx context.Context) (map[model.SyncStatus]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM sync_statuses GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: sync status counts")
	}
	defer rows.Close()

	counts := make(map[model.SyncStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sync status count")
		}
		counts[model.SyncStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: iterate sync status counts")
}
