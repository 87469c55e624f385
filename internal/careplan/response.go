package careplan

import (
	"time"

	"github.com/sells-group/plantcare/internal/model"
)

// GenerateRequest asks for a plant's care plan.
type GenerateRequest struct {
	PlantID         string               `json:"plant_id"`
	UserID          string               `json:"user_id"`
	ForceRegenerate bool                 `json:"force_regenerate"`
	TargetDays      int                  `json:"target_days,omitempty"`
	Overrides       *model.UserOverrides `json:"overrides,omitempty"`
}

// PlanResponse is the consumer-facing view of a versioned plan.
type PlanResponse struct {
	PlanID             string                   `json:"plan_id"`
	PlantID            string                   `json:"plant_id"`
	UserID             string                   `json:"user_id"`
	Version            int                      `json:"version"`
	Status             model.PlanStatus         `json:"status"`
	WateringSchedule   model.WateringSchedule   `json:"watering_schedule"`
	FertilizerSchedule model.FertilizerSchedule `json:"fertilizer_schedule"`
	LightTargets       model.LightTargets       `json:"light_targets"`
	SoilMoistureTarget float64                  `json:"soil_moisture_target"`
	ReviewIntervalDays float64                  `json:"review_interval_days"`
	ConfidenceScore    float64                  `json:"confidence_score"`
	GenerationTimeMS   int64                    `json:"generation_time_ms"`
	DataSources        []string                 `json:"data_sources"`
	Rationale          model.PlanRationale      `json:"rationale"`
	Alerts             []model.Alert            `json:"alerts"`
	ValidFrom          time.Time                `json:"valid_from"`
	ValidTo            *time.Time               `json:"valid_to,omitempty"`
	AcknowledgedAt     *time.Time               `json:"acknowledged_at,omitempty"`
	FallbackUsed       bool                     `json:"fallback_used"`
	FromCache          bool                     `json:"from_cache"`
}

// NewResponse builds the response view of a stored plan.
func NewResponse(p *model.CarePlan) *PlanResponse {
	return &PlanResponse{
		PlanID:             p.ID,
		PlantID:            p.PlantID,
		UserID:             p.UserID,
		Version:            p.Version,
		Status:             p.Status,
		WateringSchedule:   p.Plan.WateringSchedule,
		FertilizerSchedule: p.Plan.FertilizerSchedule,
		LightTargets:       p.Plan.LightTargets,
		SoilMoistureTarget: p.Plan.SoilMoistureTarget,
		ReviewIntervalDays: p.Plan.ReviewIntervalDays,
		ConfidenceScore:    p.ConfidenceScore,
		GenerationTimeMS:   p.GenerationTimeMS,
		DataSources:        p.DataSources,
		Rationale:          p.Rationale,
		Alerts:             p.Plan.Alerts,
		ValidFrom:          p.ValidFrom,
		ValidTo:            p.ValidTo,
		AcknowledgedAt:     p.AcknowledgedAt,
		FallbackUsed:       p.FallbackUsed,
	}
}

// usableAt reports whether a cached response may still be served at now.
func (r *PlanResponse) usableAt(now time.Time) bool {
	if !r.Status.Current() {
		return false
	}
	return r.ValidTo == nil || now.Before(*r.ValidTo)
}
