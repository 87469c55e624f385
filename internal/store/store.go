package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/plantcare/internal/model"
)

// Sentinel errors returned by every Store implementation.
var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrDuplicate is returned when a client-originated item was already stored.
	ErrDuplicate = eris.New("store: duplicate")
	// ErrStateConflict is returned when a conditional status update finds the
	// row in a state it may not leave.
	ErrStateConflict = eris.New("store: state conflict")
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it as well.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PlanStats summarises plans created since a point in time.
type PlanStats struct {
	Generated     int     `json:"generated"`
	Fallback      int     `json:"fallback"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// Store defines the persistence interface for the care plan pipeline.
type Store interface {
	// Plants
	UpsertPlant(ctx context.Context, p *model.Plant) error
	GetPlant(ctx context.Context, plantID string) (*model.Plant, error)

	// Care plans. SavePlan assigns the next version for the plant and marks
	// every previously current plan superseded in the same transaction.
	SavePlan(ctx context.Context, plan *model.CarePlan) error
	GetPlan(ctx context.Context, planID string) (*model.CarePlan, error)
	LatestPlan(ctx context.Context, plantID string) (*model.CarePlan, error)
	ListPlanVersions(ctx context.Context, plantID string) ([]model.CarePlan, error)
	AcknowledgePlan(ctx context.Context, planID string, at time.Time) error
	InvalidatePlan(ctx context.Context, planID string, at time.Time) error
	ExpirePlans(ctx context.Context, now time.Time) (int, error)
	PlanStats(ctx context.Context, since time.Time) (*PlanStats, error)

	// Signals read by the context aggregator. Sensor readings include light
	// readings reported as sensor type "light".
	AddSensorReading(ctx context.Context, r *model.SensorReading) error
	ListSensorReadings(ctx context.Context, plantID string, since time.Time) ([]model.SensorReading, error)
	AddHealthAssessment(ctx context.Context, a *model.HealthAssessment) error
	ListHealthAssessments(ctx context.Context, plantID string, since time.Time) ([]model.HealthAssessment, error)
	AddCareEvent(ctx context.Context, e *model.CareEvent) error
	ListCareEvents(ctx context.Context, plantID string, since time.Time) ([]model.CareEvent, error)
	AddPlanOutcome(ctx context.Context, o *model.PlanOutcome) error
	ListPlanOutcomes(ctx context.Context, plantID string) ([]model.PlanOutcome, error)
	ListGrowthPhotos(ctx context.Context, plantID string, since time.Time) ([]model.GrowthPhoto, error)

	// Telemetry. Inserts return ErrDuplicate when (user_id, client_id) exists.
	InsertLightReading(ctx context.Context, r *model.LightReading) error
	InsertGrowthPhoto(ctx context.Context, p *model.GrowthPhoto) error
	GetLightReadingByClientID(ctx context.Context, userID, clientID string) (*model.LightReading, error)
	GetGrowthPhotoByClientID(ctx context.Context, userID, clientID string) (*model.GrowthPhoto, error)
	// Updates overwrite the measured fields of an existing item by ID.
	UpdateLightReading(ctx context.Context, r *model.LightReading) error
	UpdateGrowthPhoto(ctx context.Context, p *model.GrowthPhoto) error

	// Sync status
	SaveSyncStatus(ctx context.Context, s *model.TelemetrySyncStatus) error
	GetSyncStatus(ctx context.Context, id string) (*model.TelemetrySyncStatus, error)
	ListDueSyncStatuses(ctx context.Context, now time.Time, limit int) ([]model.TelemetrySyncStatus, error)
	SyncStatusCounts(ctx context.Context) (map[model.SyncStatus]int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
