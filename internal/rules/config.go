package rules

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/plantcare/internal/config"
)

// DefaultConfig returns a config.RulesConfig with the production defaults.
func DefaultConfig() config.RulesConfig {
	return config.RulesConfig{
		PotReferenceCM:        15,
		SmallPotCM:            12,
		LargePotCM:            30,
		SmallPotWateringDelta: -1,
		LargePotWateringDelta: 1,

		HeatwaveMinDays:       3,
		HeatwaveDelta:         -2,
		ColdSnapMinDays:       3,
		ColdSnapDelta:         2,
		LowHumidityThreshold:  30,
		LowHumidityDelta:      -1,
		HighHumidityThreshold: 80,
		HighHumidityDelta:     1,
		SummerWateringDelta:   -1,
		WinterWateringDelta:   2,
		WinterFertilizerDelta: 30,

		StressFertilizerDelta:   14,
		OverwateredDelta:        2,
		UnderwateredDelta:       -1,
		CriticalReviewDays:      3,
		LowHealthScoreThreshold: 0.4,

		ViolationPenalty:      0.1,
		DefaultProfilePenalty: 0.2,
		PartialMatchPenalty:   0.1,
		HealthRuleBonus:       0.1,
		MinConfidence:         0.1,
		FallbackConfidence:    0.3,

		Constraints: config.ConstraintsConfig{
			WateringIntervalDays:   config.Bound{Min: 1, Max: 30},
			WaterAmountML:          config.Bound{Min: 10, Max: 3000},
			FertilizerIntervalDays: config.Bound{Min: 7, Max: 120},
			LightPPFD:              config.Bound{Min: 10, Max: 1500},
			SoilMoistureTarget:     config.Bound{Min: 0.1, Max: 0.9},
			ReviewIntervalDays:     config.Bound{Min: 1, Max: 30},
		},
	}
}

// ValidateConfig checks that a RulesConfig is internally consistent.
func ValidateConfig(c config.RulesConfig) error {
	var errs []string

	bounds := []struct {
		name string
		b    config.Bound
	}{
		{"constraints.watering_interval_days", c.Constraints.WateringIntervalDays},
		{"constraints.water_amount_ml", c.Constraints.WaterAmountML},
		{"constraints.fertilizer_interval_days", c.Constraints.FertilizerIntervalDays},
		{"constraints.light_ppfd", c.Constraints.LightPPFD},
		{"constraints.soil_moisture_target", c.Constraints.SoilMoistureTarget},
		{"constraints.review_interval_days", c.Constraints.ReviewIntervalDays},
	}
	for _, b := range bounds {
		if b.b.Min < 0 {
			errs = append(errs, fmt.Sprintf("%s.min must be >= 0", b.name))
		}
		if b.b.Max <= b.b.Min {
			errs = append(errs, fmt.Sprintf("%s.max must be > min", b.name))
		}
	}
	if c.Constraints.SoilMoistureTarget.Max > 1 {
		errs = append(errs, "constraints.soil_moisture_target.max must be <= 1")
	}

	if c.PotReferenceCM <= 0 {
		errs = append(errs, "pot_reference_cm must be > 0")
	}
	if c.SmallPotCM >= c.LargePotCM {
		errs = append(errs, "small_pot_cm must be < large_pot_cm")
	}
	if c.HeatwaveMinDays < 1 || c.ColdSnapMinDays < 1 {
		errs = append(errs, "heatwave_min_days and cold_snap_min_days must be >= 1")
	}
	if c.LowHumidityThreshold >= c.HighHumidityThreshold {
		errs = append(errs, "low_humidity_threshold must be < high_humidity_threshold")
	}
	if c.LowHealthScoreThreshold < 0 || c.LowHealthScoreThreshold > 1 {
		errs = append(errs, "low_health_score_threshold must be between 0 and 1")
	}
	if c.CriticalReviewDays <= 0 {
		errs = append(errs, "critical_review_days must be > 0")
	}

	unit := []struct {
		name string
		v    float64
	}{
		{"violation_penalty", c.ViolationPenalty},
		{"default_profile_penalty", c.DefaultProfilePenalty},
		{"partial_match_penalty", c.PartialMatchPenalty},
		{"health_rule_bonus", c.HealthRuleBonus},
		{"min_confidence", c.MinConfidence},
		{"fallback_confidence", c.FallbackConfidence},
	}
	for _, u := range unit {
		if u.v < 0 || u.v > 1 {
			errs = append(errs, fmt.Sprintf("%s must be between 0 and 1", u.name))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("rules: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
