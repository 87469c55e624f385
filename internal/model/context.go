package model

import (
	"math"
	"time"
)

// Context source names, also reported as plan data sources.
const (
	SourceSensor        = "sensor"
	SourceEnvironmental = "environmental"
	SourceHealth        = "health"
	SourceBehavior      = "behavior"
	SourceHistorical    = "historical"
)

// Trend describes the direction of a sensor series over the lookback window.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
	TrendUnknown Trend = "unknown"
)

// Sensor types tracked by the aggregator.
const (
	SensorSoilMoisture = "soil_moisture"
	SensorTemperature  = "temperature"
	SensorHumidity     = "humidity"
	SensorLight        = "light"
)

// SensorTypes lists every sensor type the aggregator expects, in report order.
var SensorTypes = []string{SensorSoilMoisture, SensorTemperature, SensorHumidity, SensorLight}

// HealthStatus is the coarse health classification of a plant.
type HealthStatus string

const (
	HealthThriving HealthStatus = "thriving"
	HealthHealthy  HealthStatus = "healthy"
	HealthStressed HealthStatus = "stressed"
	HealthPoor     HealthStatus = "poor"
	HealthCritical HealthStatus = "critical"
	HealthUnknown  HealthStatus = "unknown"
)

// Stress indicators recorded on health assessments.
const (
	StressOverwatered  = "overwatered"
	StressUnderwatered = "underwatered"
	StressPests        = "pests"
	StressNutrient     = "nutrient_deficiency"
)

// WateringTendency summarises whether a user waters ahead of or behind plan.
type WateringTendency string

const (
	TendencyOverwatering  WateringTendency = "overwatering"
	TendencyUnderwatering WateringTendency = "underwatering"
	TendencyBalanced      WateringTendency = "balanced"
	TendencyUnknown       WateringTendency = "unknown"
)

// Season of the year at the plant's location.
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
	SeasonWinter Season = "winter"
)

// PlantContext is the merged snapshot consumed by the rule engine and ML layer.
// It is rebuilt for every generation and never mutated after scoring.
type PlantContext struct {
	PlantID   string  `json:"plant_id"`
	Species   string  `json:"species"`
	AgeDays   int     `json:"age_days"`
	PotSizeCM float64 `json:"pot_size_cm"`
	Indoor    bool    `json:"indoor"`

	Sensor        SensorContext        `json:"sensor"`
	Environmental EnvironmentalContext `json:"environmental"`
	Health        HealthContext        `json:"health"`
	Behavior      UserBehaviorContext  `json:"behavior"`
	Historical    HistoricalContext    `json:"historical"`

	ConfidenceScore float64            `json:"confidence_score"`
	SourceScores    map[string]float64 `json:"source_scores"`
	DataSources     []string           `json:"data_sources"`
	Alerts          []Alert            `json:"alerts"`
	Recommendations []string           `json:"recommendations"`
	Overrides       *UserOverrides     `json:"overrides,omitempty"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

// SensorContext summarises sensor telemetry over the lookback window.
type SensorContext struct {
	Averages       map[string]float64 `json:"averages"`
	Trends         map[string]Trend   `json:"trends"`
	Reliability    float64            `json:"reliability"`
	FreshnessHours float64            `json:"freshness_hours"`
	MissingSensors []string           `json:"missing_sensors"`
	ReadingCount   int                `json:"reading_count"`
}

// Average returns the average for a sensor type and whether it was observed.
func (s SensorContext) Average(sensorType string) (float64, bool) {
	v, ok := s.Averages[sensorType]
	return v, ok
}

// EnvironmentalContext summarises weather and climate around the plant.
type EnvironmentalContext struct {
	Available           bool    `json:"available"`
	AvgTemperatureC     float64 `json:"avg_temperature_c"`
	MaxTemperatureC     float64 `json:"max_temperature_c"`
	MinTemperatureC     float64 `json:"min_temperature_c"`
	AvgHumidity         float64 `json:"avg_humidity"`
	DaylightHours       float64 `json:"daylight_hours"`
	Season              Season  `json:"season"`
	HeatwaveDays        int     `json:"heatwave_days"`
	ColdSnapDays        int     `json:"cold_snap_days"`
	ExtremeHumidityDays int     `json:"extreme_humidity_days"`
	DaysCovered         int     `json:"days_covered"`
	DaysRequested       int     `json:"days_requested"`
}

// HealthContext summarises recent health assessments.
type HealthContext struct {
	Status                  HealthStatus `json:"status"`
	Score                   float64      `json:"score"`
	GrowthRateCMPerWeek     float64      `json:"growth_rate_cm_per_week"`
	StressIndicators        []string     `json:"stress_indicators"`
	DaysSinceLastAssessment int          `json:"days_since_last_assessment"`
	AssessmentCount         int          `json:"assessment_count"`
	GrowthObservationCount  int          `json:"growth_observation_count"`
}

// HasStress reports whether the named stress indicator is present.
func (h HealthContext) HasStress(indicator string) bool {
	for _, s := range h.StressIndicators {
		if s == indicator {
			return true
		}
	}
	return false
}

// UserBehaviorContext summarises how the owner has cared for the plant.
type UserBehaviorContext struct {
	WateringConsistency float64          `json:"watering_consistency"`
	CareFrequencyPerWk  float64          `json:"care_frequency_per_week"`
	PlanAdherenceRate   float64          `json:"plan_adherence_rate"`
	Tendency            WateringTendency `json:"tendency"`
	AvgWateringInterval float64          `json:"avg_watering_interval_days"`
	EventCount          int              `json:"event_count"`
}

// HistoricalContext summarises outcomes of earlier plans.
type HistoricalContext struct {
	SuccessCount           int                `json:"success_count"`
	FailureCount           int                `json:"failure_count"`
	BestWateringInterval   float64            `json:"best_watering_interval_days"`
	BestFertilizerInterval float64            `json:"best_fertilizer_interval_days"`
	SeasonalSuccessRates   map[Season]float64 `json:"seasonal_success_rates"`
}

// OutcomeCount returns the number of recorded outcomes.
func (h HistoricalContext) OutcomeCount() int {
	return h.SuccessCount + h.FailureCount
}

// SuccessRate returns the fraction of successful outcomes, or 0 with no data.
func (h HistoricalContext) SuccessRate() float64 {
	n := h.OutcomeCount()
	if n == 0 {
		return 0
	}
	return float64(h.SuccessCount) / float64(n)
}

// UserOverrides carries explicit owner preferences applied at the highest rule priority.
type UserOverrides struct {
	WateringIntervalDays   *float64 `json:"watering_interval_days,omitempty"`
	WaterAmountML          *float64 `json:"water_amount_ml,omitempty"`
	FertilizerIntervalDays *float64 `json:"fertilizer_interval_days,omitempty"`
}

// Clamp01 bounds v to [0,1]; NaN maps to 0.
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Clamp bounds v to [lo,hi]; NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Finite reports whether every value is a finite number.
func Finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
