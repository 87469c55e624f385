package store

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/plantcare/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
	// writeMu serialises plan version assignment; SQLite has one writer anyway.
	writeMu sync.Mutex
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. Pragmas go through the DSN so every pooled connection gets them.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS plants (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	species     TEXT NOT NULL DEFAULT '',
	age_days    INTEGER NOT NULL DEFAULT 0,
	pot_size_cm REAL NOT NULL DEFAULT 0,
	indoor      BOOLEAN NOT NULL DEFAULT 1,
	location    BLOB,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS care_plans (
	id                 TEXT PRIMARY KEY,
	plant_id           TEXT NOT NULL REFERENCES plants(id),
	user_id            TEXT NOT NULL,
	version            INTEGER NOT NULL,
	status             TEXT NOT NULL,
	plan               TEXT NOT NULL,
	rationale          TEXT NOT NULL,
	confidence_score   REAL NOT NULL,
	valid_from         DATETIME NOT NULL,
	valid_to           DATETIME,
	acknowledged_at    DATETIME,
	generation_time_ms INTEGER NOT NULL DEFAULT 0,
	data_sources       TEXT NOT NULL DEFAULT '[]',
	fallback_used      BOOLEAN NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (plant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_care_plans_status_valid_to ON care_plans(status, valid_to);
CREATE INDEX IF NOT EXISTS idx_care_plans_created_at ON care_plans(created_at);

CREATE TABLE IF NOT EXISTS sensor_readings (
	id          TEXT PRIMARY KEY,
	plant_id    TEXT NOT NULL,
	sensor_type TEXT NOT NULL,
	value       REAL NOT NULL,
	unit        TEXT NOT NULL DEFAULT '',
	recorded_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sensor_readings_plant ON sensor_readings(plant_id, recorded_at);

CREATE TABLE IF NOT EXISTS health_assessments (
	id                TEXT PRIMARY KEY,
	plant_id          TEXT NOT NULL,
	status            TEXT NOT NULL,
	score             REAL NOT NULL,
	stress_indicators TEXT NOT NULL DEFAULT '[]',
	assessed_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_health_assessments_plant ON health_assessments(plant_id, assessed_at);

CREATE TABLE IF NOT EXISTS care_events (
	id          TEXT PRIMARY KEY,
	plant_id    TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	amount_ml   REAL NOT NULL DEFAULT 0,
	on_schedule BOOLEAN NOT NULL DEFAULT 0,
	occurred_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_care_events_plant ON care_events(plant_id, occurred_at);

CREATE TABLE IF NOT EXISTS plan_outcomes (
	id                       TEXT PRIMARY KEY,
	plan_id                  TEXT NOT NULL,
	plant_id                 TEXT NOT NULL,
	success                  BOOLEAN NOT NULL,
	watering_interval_days   REAL NOT NULL DEFAULT 0,
	fertilizer_interval_days REAL NOT NULL DEFAULT 0,
	season                   TEXT NOT NULL DEFAULT '',
	recorded_at              DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_plan_outcomes_plant ON plan_outcomes(plant_id);

CREATE TABLE IF NOT EXISTS light_readings (
	id               TEXT PRIMARY KEY,
	client_id        TEXT,
	plant_id         TEXT NOT NULL,
	user_id          TEXT NOT NULL,
	ppfd             REAL NOT NULL,
	lux              REAL,
	duration_minutes INTEGER NOT NULL DEFAULT 0,
	recorded_at      DATETIME NOT NULL,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_light_readings_client ON light_readings(user_id, client_id) WHERE client_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_light_readings_plant ON light_readings(plant_id, recorded_at);

CREATE TABLE IF NOT EXISTS growth_photos (
	id          TEXT PRIMARY KEY,
	client_id   TEXT,
	plant_id    TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	photo_url   TEXT NOT NULL,
	height_cm   REAL,
	leaf_count  INTEGER,
	notes       TEXT NOT NULL DEFAULT '',
	recorded_at DATETIME NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
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
	next_retry_at DATETIME,
	last_error    TEXT NOT NULL DEFAULT '',
	resolution    TEXT NOT NULL DEFAULT '',
	payload       BLOB,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	CHECK (retry_count >= 0 AND retry_count <= max_retries)
);

CREATE INDEX IF NOT EXISTS idx_sync_statuses_due ON sync_statuses(status, next_retry_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Stored times are UTC so text comparisons in SQLite order correctly.
func utc(t time.Time) time.Time {
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// --- plants ---

func (s *SQLiteStore) UpsertPlant(ctx context.Context, p *model.Plant) error {
	loc, err := encodeLocation(p.Location)
	if err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plants (id, user_id, name, species, age_days, pot_size_cm, indoor, location, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id, name = excluded.name, species = excluded.species,
			age_days = excluded.age_days, pot_size_cm = excluded.pot_size_cm,
			indoor = excluded.indoor, location = excluded.location`,
		p.ID, p.UserID, p.Name, p.Species, p.AgeDays, p.PotSizeCM, p.Indoor, loc, utc(p.CreatedAt),
	)
	return eris.Wrapf(err, "sqlite: upsert plant %s", p.ID)
}

func (s *SQLiteStore) GetPlant(ctx context.Context, plantID string) (*model.Plant, error) {
	var p model.Plant
	var loc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, species, age_days, pot_size_cm, indoor, location, created_at FROM plants WHERE id = ?`,
		plantID,
	).Scan(&p.ID, &p.UserID, &p.Name, &p.Species, &p.AgeDays, &p.PotSizeCM, &p.Indoor, &loc, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "plant %s", plantID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get plant %s", plantID)
	}
	if p.Location, err = decodeLocation(loc); err != nil {
		return nil, err
	}
	return &p, nil
}

// --- care plans ---

func (s *SQLiteStore) SavePlan(ctx context.Context, plan *model.CarePlan) error {
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

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save plan")
	}
	defer tx.Rollback() //nolint:errcheck

	var maxVersion int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM care_plans WHERE plant_id = ?`, plan.PlantID,
	).Scan(&maxVersion); err != nil {
		return eris.Wrapf(err, "sqlite: max plan version %s", plan.PlantID)
	}

	validFrom := utc(plan.ValidFrom)
	if _, err := tx.ExecContext(ctx,
		`UPDATE care_plans
		SET status = 'superseded',
		    valid_to = CASE WHEN valid_to IS NULL OR valid_to > ? THEN ? ELSE valid_to END
		WHERE plant_id = ? AND status IN ('active', 'acknowledged')`,
		validFrom, validFrom, plan.PlantID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: supersede plans %s", plan.PlantID)
	}

	version := maxVersion + 1
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO care_plans (`+planColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID, plan.PlantID, plan.UserID, version, string(plan.Status), string(blobs.plan), string(blobs.rationale),
		plan.ConfidenceScore, validFrom, utcPtr(plan.ValidTo), utcPtr(plan.AcknowledgedAt), plan.GenerationTimeMS,
		string(blobs.sources), plan.FallbackUsed, utc(plan.CreatedAt),
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert plan %s", plan.ID)
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit save plan")
	}
	plan.Version = version
	return nil
}

func (s *SQLiteStore) GetPlan(ctx context.Context, planID string) (*model.CarePlan, error) {
	p, err := scanPlan(s.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM care_plans WHERE id = ?`, planID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "plan %s", planID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get plan %s", planID)
	}
	return p, nil
}

func (s *SQLiteStore) LatestPlan(ctx context.Context, plantID string) (*model.CarePlan, error) {
	p, err := scanPlan(s.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM care_plans WHERE plant_id = ? ORDER BY version DESC LIMIT 1`, plantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "plans for plant %s", plantID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest plan %s", plantID)
	}
	return p, nil
}

func (s *SQLiteStore) ListPlanVersions(ctx context.Context, plantID string) ([]model.CarePlan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+planColumns+` FROM care_plans WHERE plant_id = ? ORDER BY version DESC`, plantID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list plan versions %s", plantID)
	}
	defer rows.Close()

	var plans []model.CarePlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan plan")
		}
		plans = append(plans, *p)
	}
	return plans, eris.Wrap(rows.Err(), "sqlite: iterate plans")
}

func (s *SQLiteStore) AcknowledgePlan(ctx context.Context, planID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE care_plans SET status = 'acknowledged', acknowledged_at = ? WHERE id = ? AND status = 'active'`,
		utc(at), planID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: acknowledge plan %s", planID)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM care_plans WHERE id = ?`, planID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "plan %s", planID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: plan status %s", planID)
	}
	return eris.Wrapf(ErrStateConflict, "plan %s is %s", planID, status)
}

func (s *SQLiteStore) InvalidatePlan(ctx context.Context, planID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE care_plans SET status = 'expired', valid_to = ? WHERE id = ?`, utc(at), planID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: invalidate plan %s", planID)
	}
	return checkRowsAffected(res, "plan", planID)
}

func (s *SQLiteStore) ExpirePlans(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE care_plans SET status = 'expired'
		WHERE status IN ('active', 'acknowledged') AND valid_to IS NOT NULL AND valid_to <= ?`, utc(now))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: expire plans")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) PlanStats(ctx context.Context, since time.Time) (*PlanStats, error) {
	var st PlanStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN fallback_used THEN 1 ELSE 0 END), 0), COALESCE(AVG(confidence_score), 0)
		FROM care_plans WHERE created_at >= ?`, utc(since),
	).Scan(&st.Generated, &st.Fallback, &st.AvgConfidence)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: plan stats")
	}
	return &st, nil
}

// --- signals ---

func (s *SQLiteStore) AddSensorReading(ctx context.Context, r *model.SensorReading) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sensor_readings (id, plant_id, sensor_type, value, unit, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.PlantID, r.SensorType, r.Value, r.Unit, utc(r.RecordedAt),
	)
	return eris.Wrap(err, "sqlite: insert sensor reading")
}

// ListSensorReadings merges sensor and light readings in Go; a compound
// SELECT would lose the DATETIME column type the driver needs to parse times.
func (s *SQLiteStore) ListSensorReadings(ctx context.Context, plantID string, since time.Time) ([]model.SensorReading, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, plant_id, sensor_type, value, unit, recorded_at
		FROM sensor_readings WHERE plant_id = ? AND recorded_at >= ?`, plantID, utc(since))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list sensor readings %s", plantID)
	}
	defer rows.Close()

	var out []model.SensorReading
	for rows.Next() {
		var r model.SensorReading
		if err := rows.Scan(&r.ID, &r.PlantID, &r.SensorType, &r.Value, &r.Unit, &r.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sensor reading")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate sensor readings")
	}

	lightRows, err := s.db.QueryContext(ctx,
		`SELECT id, plant_id, ppfd, recorded_at FROM light_readings WHERE plant_id = ? AND recorded_at >= ?`,
		plantID, utc(since))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list light readings %s", plantID)
	}
	defer lightRows.Close()
	for lightRows.Next() {
		r := model.SensorReading{SensorType: model.SensorLight, Unit: "ppfd"}
		if err := lightRows.Scan(&r.ID, &r.PlantID, &r.Value, &r.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan light reading")
		}
		out = append(out, r)
	}
	if err := lightRows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate light readings")
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

func (s *SQLiteStore) AddHealthAssessment(ctx context.Context, a *model.HealthAssessment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	stress, err := encodeStrings(a.StressIndicators)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO health_assessments (id, plant_id, status, score, stress_indicators, assessed_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.PlantID, string(a.Status), a.Score, string(stress), utc(a.AssessedAt),
	)
	return eris.Wrap(err, "sqlite: insert health assessment")
}

func (s *SQLiteStore) ListHealthAssessments(ctx context.Context, plantID string, since time.Time) ([]model.HealthAssessment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, plant_id, status, score, stress_indicators, assessed_at
		FROM health_assessments WHERE plant_id = ? AND assessed_at >= ? ORDER BY assessed_at`,
		plantID, utc(since),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list health assessments %s", plantID)
	}
	defer rows.Close()

	var out []model.HealthAssessment
	for rows.Next() {
		var a model.HealthAssessment
		var status string
		var stress []byte
		if err := rows.Scan(&a.ID, &a.PlantID, &status, &a.Score, &stress, &a.AssessedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan health assessment")
		}
		a.Status = model.HealthStatus(status)
		if a.StressIndicators, err = decodeStrings(stress); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate health assessments")
}

func (s *SQLiteStore) AddCareEvent(ctx context.Context, e *model.CareEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO care_events (id, plant_id, user_id, event_type, amount_ml, on_schedule, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.PlantID, e.UserID, e.EventType, e.AmountML, e.OnSchedule, utc(e.OccurredAt),
	)
	return eris.Wrap(err, "sqlite: insert care event")
}

func (s *SQLiteStore) ListCareEvents(ctx context.Context, plantID string, since time.Time) ([]model.CareEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, plant_id, user_id, event_type, amount_ml, on_schedule, occurred_at
		FROM care_events WHERE plant_id = ? AND occurred_at >= ? ORDER BY occurred_at`,
		plantID, utc(since),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list care events %s", plantID)
	}
	defer rows.Close()

	var out []model.CareEvent
	for rows.Next() {
		var e model.CareEvent
		if err := rows.Scan(&e.ID, &e.PlantID, &e.UserID, &e.EventType, &e.AmountML, &e.OnSchedule, &e.OccurredAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan care event")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate care events")
}

func (s *SQLiteStore) AddPlanOutcome(ctx context.Context, o *model.PlanOutcome) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO plan_outcomes (id, plan_id, plant_id, success, watering_interval_days, fertilizer_interval_days, season, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.PlanID, o.PlantID, o.Success, o.WateringIntervalDays, o.FertilizerIntervalDays, string(o.Season), utc(o.RecordedAt),
	)
	return eris.Wrap(err, "sqlite: insert plan outcome")
}

func (s *SQLiteStore) ListPlanOutcomes(ctx context.Context, plantID string) ([]model.PlanOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, plan_id, plant_id, success, watering_interval_days, fertilizer_interval_days, season, recorded_at
		FROM plan_outcomes WHERE plant_id = ? ORDER BY recorded_at`,
		plantID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list plan outcomes %s", plantID)
	}
	defer rows.Close()

	var out []model.PlanOutcome
	for rows.Next() {
		var o model.PlanOutcome
		var season string
		if err := rows.Scan(&o.ID, &o.PlanID, &o.PlantID, &o.Success, &o.WateringIntervalDays,
			&o.FertilizerIntervalDays, &season, &o.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan plan outcome")
		}
		o.Season = model.Season(season)
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate plan outcomes")
}

func (s *SQLiteStore) ListGrowthPhotos(ctx context.Context, plantID string, since time.Time) ([]model.GrowthPhoto, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_id, plant_id, user_id, photo_url, height_cm, leaf_count, notes, recorded_at, created_at
		FROM growth_photos WHERE plant_id = ? AND recorded_at >= ? ORDER BY recorded_at`,
		plantID, utc(since),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list growth photos %s", plantID)
	}
	defer rows.Close()

	var out []model.GrowthPhoto
	for rows.Next() {
		p, err := scanGrowthPhoto(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan growth photo")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate growth photos")
}

// --- telemetry ---

func (s *SQLiteStore) InsertLightReading(ctx context.Context, r *model.LightReading) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO light_readings (id, client_id, plant_id, user_id, ppfd, lux, duration_minutes, recorded_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		r.ID, nullIfEmpty(r.ClientID), r.PlantID, r.UserID, r.PPFD, r.Lux, r.DurationMinutes, utc(r.RecordedAt), utc(r.CreatedAt),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert light reading")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrDuplicate, "light reading client_id %s", r.ClientID)
	}
	return nil
}

func (s *SQLiteStore) InsertGrowthPhoto(ctx context.Context, p *model.GrowthPhoto) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO growth_photos (id, client_id, plant_id, user_id, photo_url, height_cm, leaf_count, notes, recorded_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		p.ID, nullIfEmpty(p.ClientID), p.PlantID, p.UserID, p.PhotoURL, p.HeightCM, p.LeafCount, p.Notes,
		utc(p.RecordedAt), utc(p.CreatedAt),
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert growth photo")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Wrapf(ErrDuplicate, "growth photo client_id %s", p.ClientID)
	}
	return nil
}

func (s *SQLiteStore) UpdateLightReading(ctx context.Context, r *model.LightReading) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE light_readings SET ppfd = ?, lux = ?, duration_minutes = ?, recorded_at = ? WHERE id = ?`,
		r.PPFD, r.Lux, r.DurationMinutes, utc(r.RecordedAt), r.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update light reading %s", r.ID)
	}
	return checkRowsAffected(res, "light reading", r.ID)
}

func (s *SQLiteStore) UpdateGrowthPhoto(ctx context.Context, p *model.GrowthPhoto) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE growth_photos SET photo_url = ?, height_cm = ?, leaf_count = ?, notes = ?, recorded_at = ? WHERE id = ?`,
		p.PhotoURL, p.HeightCM, p.LeafCount, p.Notes, utc(p.RecordedAt), p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update growth photo %s", p.ID)
	}
	return checkRowsAffected(res, "growth photo", p.ID)
}

func (s *SQLiteStore) GetLightReadingByClientID(ctx context.Context, userID, clientID string) (*model.LightReading, error) {
	var r model.LightReading
	var client *string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, client_id, plant_id, user_id, ppfd, lux, duration_minutes, recorded_at, created_at
		FROM light_readings WHERE user_id = ? AND client_id = ?`,
		userID, clientID,
	).Scan(&r.ID, &client, &r.PlantID, &r.UserID, &r.PPFD, &r.Lux, &r.DurationMinutes, &r.RecordedAt, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "light reading client_id %s", clientID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get light reading")
	}
	r.ClientID = derefString(client)
	return &r, nil
}

func (s *SQLiteStore) GetGrowthPhotoByClientID(ctx context.Context, userID, clientID string) (*model.GrowthPhoto, error) {
	p, err := scanGrowthPhoto(s.db.QueryRowContext(ctx,
		`SELECT id, client_id, plant_id, user_id, photo_url, height_cm, leaf_count, notes, recorded_at, created_at
		FROM growth_photos WHERE user_id = ? AND client_id = ?`,
		userID, clientID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "growth photo client_id %s", clientID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get growth photo")
	}
	return p, nil
}

// --- sync status ---

func (s *SQLiteStore) SaveSyncStatus(ctx context.Context, st *model.TelemetrySyncStatus) error {
	if st.ID == "" {
		st.ID = uuid.New().String()
	}
	var payload any
	if len(st.Payload) > 0 {
		payload = []byte(st.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_statuses (`+syncStatusColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			item_id = excluded.item_id, status = excluded.status, retry_count = excluded.retry_count,
			max_retries = excluded.max_retries, next_retry_at = excluded.next_retry_at,
			last_error = excluded.last_error, resolution = excluded.resolution,
			payload = excluded.payload, updated_at = excluded.updated_at`,
		st.ID, st.ItemType, st.ItemID, st.ClientID, st.UserID, string(st.Status), st.RetryCount, st.MaxRetries,
		utcPtr(st.NextRetryAt), st.LastError, string(st.Resolution), payload, utc(st.CreatedAt), utc(st.UpdatedAt),
	)
	return eris.Wrapf(err, "sqlite: save sync status %s", st.ID)
}

func (s *SQLiteStore) GetSyncStatus(ctx context.Context, id string) (*model.TelemetrySyncStatus, error) {
	st, err := scanSyncStatus(s.db.QueryRowContext(ctx,
		`SELECT `+syncStatusColumns+` FROM sync_statuses WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sync status %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get sync status %s", id)
	}
	return st, nil
}

func (s *SQLiteStore) ListDueSyncStatuses(ctx context.Context, now time.Time, limit int) ([]model.TelemetrySyncStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+syncStatusColumns+` FROM sync_statuses
		WHERE status = 'failed' AND next_retry_at IS NOT NULL AND next_retry_at <= ? AND retry_count < max_retries
		ORDER BY next_retry_at LIMIT ?`,
		utc(now), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list due sync statuses")
	}
	defer rows.Close()

	var out []model.TelemetrySyncStatus
	for rows.Next() {
		st, err := scanSyncStatus(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sync status")
		}
		out = append(out, *st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate sync statuses")
}

func (s *SQLiteStore) SyncStatusCounts(ctx context.Context) (map[model.SyncStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_statuses GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: sync status counts")
	}
	defer rows.Close()

	counts := make(map[model.SyncStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sync status count")
		}
		counts[model.SyncStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: iterate sync status counts")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
