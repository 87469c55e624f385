// Package rationale turns rule applications, ML predictions and plant
// context into per-recommendation and plan-level explanations.
package rationale

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/plantcare/internal/config"
	"github.com/sells-group/plantcare/internal/model"
)

// DefaultConfig returns a config.RationaleConfig with the production defaults.
func DefaultConfig() config.RationaleConfig {
	return config.RationaleConfig{
		RuleWeight:          0.35,
		MLWeight:            0.25,
		ContextualWeight:    0.15,
		EnvironmentalWeight: 0.15,
		SeasonalWeight:      0.10,
		HighConfidence:      0.8,
		ModerateConfidence:  0.6,
	}
}

// ValidateConfig checks that a RationaleConfig is internally consistent.
func ValidateConfig(c config.RationaleConfig) error {
	var errs []string
	var sum float64
	ws := weights(c)
	for _, cat := range model.ExplanationCategories {
		w := ws[cat]
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s weight must be >= 0", cat))
		}
		sum += w
	}
	if sum <= 0 {
		errs = append(errs, "category weights must sum to > 0")
	}
	if c.ModerateConfidence < 0 || c.HighConfidence > 1 || c.ModerateConfidence >= c.HighConfidence {
		errs = append(errs, "confidence levels must satisfy 0 <= moderate < high <= 1")
	}
	if len(errs) > 0 {
		return eris.Errorf("rationale: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func weights(c config.RationaleConfig) map[string]float64 {
	return map[string]float64{
		model.CategoryRuleBased:     c.RuleWeight,
		model.CategoryMLPrediction:  c.MLWeight,
		model.CategoryContextual:    c.ContextualWeight,
		model.CategoryEnvironmental: c.EnvironmentalWeight,
		model.CategorySeasonal:      c.SeasonalWeight,
	}
}
