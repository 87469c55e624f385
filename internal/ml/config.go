// Package ml layers bounded, confidence-gated adjustments on top of the rule
// engine's schedule.
package ml

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/plantcare/internal/config"
)

// DefaultConfig returns a config.MLConfig with the production defaults.
func DefaultConfig() config.MLConfig {
	return config.MLConfig{
		FactorCap:               0.1,
		MaxWateringAdjustment:   0.3,
		MaxAmountAdjustment:     0.3,
		MaxFertilizerAdjustment: 0.2,
		WateringThreshold:       0.7,
		AmountThreshold:         0.7,
		FertilizerThreshold:     0.8,
		FallbackConfidence:      0.3,
		HorizonUncertainty:      0.01,
		HotTempC:                28,
		ColdTempC:               12,
		DryHumidity:             35,
		HumidHumidity:           75,
		FastGrowthCMPerWeek:     2,
	}
}

// ValidateConfig checks that an MLConfig is internally consistent.
func ValidateConfig(c config.MLConfig) error {
	var errs []string

	if c.FactorCap <= 0 || c.FactorCap > 1 {
		errs = append(errs, "factor_cap must be in (0, 1]")
	}
	maxes := []struct {
		name string
		v    float64
	}{
		{"max_watering_adjustment", c.MaxWateringAdjustment},
		{"max_amount_adjustment", c.MaxAmountAdjustment},
		{"max_fertilizer_adjustment", c.MaxFertilizerAdjustment},
	}
	for _, m := range maxes {
		if m.v < 0 || m.v >= 1 {
			errs = append(errs, fmt.Sprintf("%s must be in [0, 1)", m.name))
		}
	}
	unit := []struct {
		name string
		v    float64
	}{
		{"watering_threshold", c.WateringThreshold},
		{"amount_threshold", c.AmountThreshold},
		{"fertilizer_threshold", c.FertilizerThreshold},
		{"fallback_confidence", c.FallbackConfidence},
		{"horizon_uncertainty", c.HorizonUncertainty},
	}
	for _, u := range unit {
		if u.v < 0 || u.v > 1 {
			errs = append(errs, fmt.Sprintf("%s must be between 0 and 1", u.name))
		}
	}
	if c.ColdTempC >= c.HotTempC {
		errs = append(errs, "cold_temp_c must be < hot_temp_c")
	}
	if c.DryHumidity >= c.HumidHumidity {
		errs = append(errs, "dry_humidity must be < humid_humidity")
	}
	if c.FastGrowthCMPerWeek <= 0 {
		errs = append(errs, "fast_growth_cm_per_week must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("ml: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
