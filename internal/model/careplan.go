package model

import "time"

// PlanStatus is the lifecycle state of a care plan.
type PlanStatus string

const (
	PlanStatusDraft        PlanStatus = "draft"
	PlanStatusActive       PlanStatus = "active"
	PlanStatusAcknowledged PlanStatus = "acknowledged"
	PlanStatusExpired      PlanStatus = "expired"
	PlanStatusSuperseded   PlanStatus = "superseded"
)

// Current reports whether the status counts toward a plant's current plan.
func (s PlanStatus) Current() bool {
	return s == PlanStatusActive || s == PlanStatusAcknowledged
}

// CarePlan is a persisted, versioned plan for one plant.
type CarePlan struct {
	ID               string        `json:"id"`
	PlantID          string        `json:"plant_id"`
	UserID           string        `json:"user_id"`
	Version          int           `json:"version"`
	Status           PlanStatus    `json:"status"`
	Plan             PlanContent   `json:"plan"`
	Rationale        PlanRationale `json:"rationale"`
	ConfidenceScore  float64       `json:"confidence_score"`
	ValidFrom        time.Time     `json:"valid_from"`
	ValidTo          *time.Time    `json:"valid_to,omitempty"`
	AcknowledgedAt   *time.Time    `json:"acknowledged_at,omitempty"`
	GenerationTimeMS int64         `json:"generation_time_ms"`
	DataSources      []string      `json:"data_sources"`
	FallbackUsed     bool          `json:"fallback_used"`
	CreatedAt        time.Time     `json:"created_at"`
}

// ValidAt reports whether now falls inside [ValidFrom, ValidTo).
func (p *CarePlan) ValidAt(now time.Time) bool {
	if now.Before(p.ValidFrom) {
		return false
	}
	return p.ValidTo == nil || now.Before(*p.ValidTo)
}

// CurrentAt reports whether the plan is the plant's usable plan at now.
func (p *CarePlan) CurrentAt(now time.Time) bool {
	return p.Status.Current() && p.ValidAt(now)
}

// PlanContent is the schedule blob stored with each plan.
type PlanContent struct {
	WateringSchedule   WateringSchedule   `json:"watering_schedule"`
	FertilizerSchedule FertilizerSchedule `json:"fertilizer_schedule"`
	LightTargets       LightTargets       `json:"light_targets"`
	SoilMoistureTarget float64            `json:"soil_moisture_target"`
	ReviewIntervalDays float64            `json:"review_interval_days"`
	Alerts             []Alert            `json:"alerts"`
}

// WateringSchedule is the watering part of a plan.
type WateringSchedule struct {
	IntervalDays float64   `json:"interval_days"`
	AmountML     float64   `json:"amount_ml"`
	NextDate     time.Time `json:"next_date"`
	Adjustment   float64   `json:"ml_adjustment"`
}

// FertilizerSchedule is the fertilizing part of a plan.
type FertilizerSchedule struct {
	IntervalDays float64   `json:"interval_days"`
	Type         string    `json:"type"`
	NextDate     time.Time `json:"next_date"`
	Adjustment   float64   `json:"ml_adjustment"`
}

// LightTargets is the light intensity band in PPFD (µmol/m²/s).
type LightTargets struct {
	PPFDMin       float64 `json:"ppfd_min"`
	PPFDMax       float64 `json:"ppfd_max"`
	DaylightHours float64 `json:"daylight_hours,omitempty"`
}

// Explanation categories, in tie-break order.
const (
	CategoryRuleBased     = "rule_based"
	CategoryMLPrediction  = "ml_prediction"
	CategoryContextual    = "contextual"
	CategoryEnvironmental = "environmental"
	CategorySeasonal      = "seasonal"
)

// ExplanationCategories lists categories in tie-break order.
var ExplanationCategories = []string{
	CategoryRuleBased, CategoryMLPrediction, CategoryContextual, CategoryEnvironmental, CategorySeasonal,
}

// Explanation is one reason contributing to a recommendation.
type Explanation struct {
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	Weight      float64 `json:"weight"`
}

// Score is confidence times weight, used to pick the primary reason.
func (e Explanation) Score() float64 {
	return e.Confidence * e.Weight
}

// Recommendation is a single schedule recommendation before explanation.
type Recommendation struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	Confidence float64 `json:"confidence"`
}

// RecommendationRationale explains one recommendation.
type RecommendationRationale struct {
	Recommendation    Recommendation `json:"recommendation"`
	PrimaryReason     Explanation    `json:"primary_reason"`
	Components        []Explanation  `json:"components"`
	OverallConfidence float64        `json:"overall_confidence"`
}

// PlanRationale is the explainability blob stored with each plan.
type PlanRationale struct {
	Summary             string                    `json:"summary"`
	PrimaryReason       string                    `json:"primary_reason"`
	SupportingFactors   []string                  `json:"supporting_factors"`
	ConfidenceNarrative string                    `json:"confidence_narrative"`
	ConfidenceLevel     string                    `json:"confidence_level"`
	Recommendations     []RecommendationRationale `json:"recommendations"`
	RulesApplied        []RuleApplication         `json:"rules_applied"`
	MLFeatures          []FeatureImportance       `json:"ml_features"`
	GatedAdjustments    []string                  `json:"gated_adjustments,omitempty"`
}
