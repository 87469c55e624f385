package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// SensorReading is one sensor sample for a plant.
type SensorReading struct {
	ID         string    `json:"id"`
	PlantID    string    `json:"plant_id"`
	SensorType string    `json:"sensor_type"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// HealthAssessment is a manual or automated health check of a plant.
type HealthAssessment struct {
	ID               string       `json:"id"`
	PlantID          string       `json:"plant_id"`
	Status           HealthStatus `json:"status"`
	Score            float64      `json:"score"`
	StressIndicators []string     `json:"stress_indicators,omitempty"`
	AssessedAt       time.Time    `json:"assessed_at"`
}

// Care event types.
const (
	EventWatering    = "watering"
	EventFertilizing = "fertilizing"
	EventRepotting   = "repotting"
	EventPruning     = "pruning"
	EventMisting     = "misting"
)

// CareEvent is an action the owner logged against a plant.
type CareEvent struct {
	ID         string    `json:"id"`
	PlantID    string    `json:"plant_id"`
	UserID     string    `json:"user_id"`
	EventType  string    `json:"event_type"`
	AmountML   float64   `json:"amount_ml,omitempty"`
	OnSchedule bool      `json:"on_schedule"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PlanOutcome records how an earlier plan worked out.
type PlanOutcome struct {
	ID                     string    `json:"id"`
	PlanID                 string    `json:"plan_id"`
	PlantID                string    `json:"plant_id"`
	Success                bool      `json:"success"`
	WateringIntervalDays   float64   `json:"watering_interval_days"`
	FertilizerIntervalDays float64   `json:"fertilizer_interval_days"`
	Season                 Season    `json:"season"`
	RecordedAt             time.Time `json:"recorded_at"`
}

// LightReading is a client-captured light measurement.
type LightReading struct {
	ID              string    `json:"id"`
	ClientID        string    `json:"client_id,omitempty"`
	PlantID         string    `json:"plant_id"`
	UserID          string    `json:"user_id"`
	PPFD            float64   `json:"ppfd"`
	Lux             *float64  `json:"lux,omitempty"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	RecordedAt      time.Time `json:"recorded_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// GrowthPhoto is a client-captured growth observation. The photo itself is
// stored elsewhere; only its reference and measurements are kept here.
type GrowthPhoto struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id,omitempty"`
	PlantID    string    `json:"plant_id"`
	UserID     string    `json:"user_id"`
	PhotoURL   string    `json:"photo_url"`
	HeightCM   *float64  `json:"height_cm,omitempty"`
	LeafCount  *int      `json:"leaf_count,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// SyncStatus is the offline sync state of a client-originated item.
type SyncStatus string

const (
	SyncPending    SyncStatus = "pending"
	SyncInProgress SyncStatus = "in_progress"
	SyncSynced     SyncStatus = "synced"
	SyncFailed     SyncStatus = "failed"
	SyncConflict   SyncStatus = "conflict"
	SyncCancelled  SyncStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s SyncStatus) Terminal() bool {
	return s == SyncSynced || s == SyncCancelled
}

var syncTransitions = map[SyncStatus][]SyncStatus{
	SyncPending:    {SyncInProgress, SyncFailed, SyncConflict, SyncCancelled},
	SyncInProgress: {SyncSynced, SyncFailed, SyncConflict, SyncCancelled},
	SyncFailed:     {SyncInProgress, SyncCancelled},
	SyncConflict:   {SyncCancelled},
}

// CanTransition reports whether from → to is a legal forward move.
// Conflict → synced is only reachable through Resolve.
func CanTransition(from, to SyncStatus) bool {
	for _, s := range syncTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ConflictResolution is an explicit owner decision on a conflicting item.
type ConflictResolution string

const (
	ResolveKeepServer ConflictResolution = "keep_server"
	ResolveKeepClient ConflictResolution = "keep_client"
	ResolveMerge      ConflictResolution = "merge"
)

// Valid reports whether r is a known resolution.
func (r ConflictResolution) Valid() bool {
	switch r {
	case ResolveKeepServer, ResolveKeepClient, ResolveMerge:
		return true
	}
	return false
}

// Sync item types.
const (
	ItemLightReading = "light_reading"
	ItemGrowthPhoto  = "growth_photo"
)

// ErrInvalidSyncStatus is returned when a sync status violates its invariants.
var ErrInvalidSyncStatus = eris.New("invalid sync status")

// TelemetrySyncStatus tracks the sync state of one client item.
type TelemetrySyncStatus struct {
	ID          string             `json:"id"`
	ItemType    string             `json:"item_type"`
	ItemID      string             `json:"item_id,omitempty"`
	ClientID    string             `json:"client_id,omitempty"`
	UserID      string             `json:"user_id"`
	Status      SyncStatus         `json:"status"`
	RetryCount  int                `json:"retry_count"`
	MaxRetries  int                `json:"max_retries"`
	NextRetryAt *time.Time         `json:"next_retry_at,omitempty"`
	LastError   string             `json:"last_error,omitempty"`
	Resolution  ConflictResolution `json:"resolution,omitempty"`
	Payload     json.RawMessage    `json:"payload,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// NewSyncStatus validates s against now and returns it with timestamps set.
func NewSyncStatus(s TelemetrySyncStatus, now time.Time) (*TelemetrySyncStatus, error) {
	if s.Status == "" {
		s.Status = SyncPending
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	if err := s.Validate(now); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks retry bounds and that next_retry_at lies strictly after now.
func (s *TelemetrySyncStatus) Validate(now time.Time) error {
	switch s.Status {
	case SyncPending, SyncInProgress, SyncSynced, SyncFailed, SyncConflict, SyncCancelled:
	default:
		return eris.Wrapf(ErrInvalidSyncStatus, "unknown status %q", s.Status)
	}
	if s.MaxRetries < 0 {
		return eris.Wrapf(ErrInvalidSyncStatus, "max_retries %d is negative", s.MaxRetries)
	}
	if s.RetryCount < 0 || s.RetryCount > s.MaxRetries {
		return eris.Wrapf(ErrInvalidSyncStatus, "retry_count %d outside [0,%d]", s.RetryCount, s.MaxRetries)
	}
	if s.NextRetryAt != nil && !s.NextRetryAt.After(now) {
		return eris.Wrapf(ErrInvalidSyncStatus, "next_retry_at %s is not in the future", s.NextRetryAt.Format(time.RFC3339))
	}
	return nil
}

// CanRetry reports whether a failed item still has retry budget.
func (s *TelemetrySyncStatus) CanRetry() bool {
	return s.Status == SyncFailed && s.RetryCount < s.MaxRetries
}

// BatchItem is one entry of a mixed telemetry batch; exactly one payload is set.
type BatchItem struct {
	Type         string        `json:"type"`
	LightReading *LightReading `json:"light_reading,omitempty"`
	GrowthPhoto  *GrowthPhoto  `json:"growth_photo,omitempty"`
}

// BatchItemError describes why one batch item failed.
type BatchItemError struct {
	Index    int    `json:"index"`
	ClientID string `json:"client_id,omitempty"`
	Error    string `json:"error"`
}

// BatchResult is the itemised outcome of a telemetry batch.
type BatchResult struct {
	TotalItems      int              `json:"total_items"`
	SuccessfulItems int              `json:"successful_items"`
	FailedItems     int              `json:"failed_items"`
	CreatedIDs      []string         `json:"created_ids"`
	Errors          []BatchItemError `json:"errors"`
}

// ErrMalformedBatchResult marks a batch result whose counters do not add up.
var ErrMalformedBatchResult = eris.New("malformed batch result")

// Validate rejects results whose counters disagree with each other or with the item lists.
func (r *BatchResult) Validate() error {
	if r.SuccessfulItems < 0 || r.FailedItems < 0 {
		return eris.Wrap(ErrMalformedBatchResult, "negative counters")
	}
	if r.SuccessfulItems+r.FailedItems != r.TotalItems {
		return eris.Wrapf(ErrMalformedBatchResult, "successful %d + failed %d != total %d",
			r.SuccessfulItems, r.FailedItems, r.TotalItems)
	}
	if len(r.CreatedIDs) != r.SuccessfulItems {
		return eris.Wrapf(ErrMalformedBatchResult, "%d created ids for %d successful items", len(r.CreatedIDs), r.SuccessfulItems)
	}
	if len(r.Errors) != r.FailedItems {
		return eris.Wrapf(ErrMalformedBatchResult, "%d errors for %d failed items", len(r.Errors), r.FailedItems)
	}
	return nil
}

// DailyWeather is one day of observed or forecast weather.
type DailyWeather struct {
	Date            time.Time `json:"date"`
	MaxTemperatureC float64   `json:"max_temperature_c"`
	MinTemperatureC float64   `json:"min_temperature_c"`
	MeanHumidity    float64   `json:"mean_humidity"`
	DaylightHours   float64   `json:"daylight_hours"`
}

// MeanTemperatureC is the midpoint of the day's range.
func (d DailyWeather) MeanTemperatureC() float64 {
	return (d.MaxTemperatureC + d.MinTemperatureC) / 2
}

// EnvironmentalData is what the environmental provider returns for a plant.
type EnvironmentalData struct {
	Days                []DailyWeather `json:"days"`
	DaysRequested       int            `json:"days_requested"`
	AvgTemperatureC     float64        `json:"avg_temperature_c"`
	MaxTemperatureC     float64        `json:"max_temperature_c"`
	MinTemperatureC     float64        `json:"min_temperature_c"`
	AvgHumidity         float64        `json:"avg_humidity"`
	DaylightHours       float64        `json:"daylight_hours"`
	Season              Season         `json:"season"`
	HeatwaveDays        int            `json:"heatwave_days"`
	ColdSnapDays        int            `json:"cold_snap_days"`
	ExtremeHumidityDays int            `json:"extreme_humidity_days"`
}
