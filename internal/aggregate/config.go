package aggregate

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/plantcare/internal/config"
)

// DefaultConfig returns a config.AggregateConfig with the production defaults.
// Source weights sum to 1.
func DefaultConfig() config.AggregateConfig {
	return config.AggregateConfig{
		Weights: config.SourceWeights{
			Sensor:        0.35,
			Environmental: 0.20,
			Health:        0.20,
			Behavior:      0.10,
			Historical:    0.15,
		},
		NoDataConfidence:        0.5,
		StaleSensorHours:        24,
		SustainedWeatherDays:    3,
		HealthDecayDays:         30,
		HealthMinRecency:        0.3,
		BehaviorSaturation:      10,
		HistoricalSaturation:    5,
		AssessmentReminderDays:  14,
		LowConsistencyThreshold: 0.5,
		ExpectedReadingsPerDay:  4,
		TrendThreshold:          0.05,
		SourceTimeoutMS:         1000,
	}
}

// ValidateConfig checks that an AggregateConfig is internally consistent.
func ValidateConfig(c config.AggregateConfig) error {
	var errs []string

	weights := []struct {
		name string
		w    float64
	}{
		{"weights.sensor", c.Weights.Sensor},
		{"weights.environmental", c.Weights.Environmental},
		{"weights.health", c.Weights.Health},
		{"weights.behavior", c.Weights.Behavior},
		{"weights.historical", c.Weights.Historical},
	}
	var sum float64
	for _, w := range weights {
		if w.w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", w.name))
		}
		sum += w.w
	}
	if sum <= 0 {
		errs = append(errs, "weight sum must be > 0")
	}

	if c.NoDataConfidence < 0 || c.NoDataConfidence > 1 {
		errs = append(errs, "no_data_confidence must be between 0 and 1")
	}
	if c.StaleSensorHours <= 0 {
		errs = append(errs, "stale_sensor_hours must be > 0")
	}
	if c.SustainedWeatherDays < 1 {
		errs = append(errs, "sustained_weather_days must be >= 1")
	}
	if c.HealthDecayDays < 1 {
		errs = append(errs, "health_decay_days must be >= 1")
	}
	if c.HealthMinRecency < 0 || c.HealthMinRecency > 1 {
		errs = append(errs, "health_min_recency must be between 0 and 1")
	}
	if c.BehaviorSaturation < 1 {
		errs = append(errs, "behavior_saturation must be >= 1")
	}
	if c.HistoricalSaturation < 1 {
		errs = append(errs, "historical_saturation must be >= 1")
	}
	if c.ExpectedReadingsPerDay <= 0 {
		errs = append(errs, "expected_readings_per_day must be > 0")
	}
	if c.SourceTimeoutMS < 0 {
		errs = append(errs, "source_timeout_ms must be >= 0")
	}
	if c.TrendThreshold < 0 {
		errs = append(errs, "trend_threshold must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("aggregate: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
