package ml

import (
	"fmt"
	"math"

	"github.com/sells-group/plantcare/internal/config"
	"github.com/sells-group/plantcare/internal/model"
)

// Factor names, reported as feature importances.
const (
	FactorTemperature     = "temperature"
	FactorHumidity        = "humidity"
	FactorHealth          = "health"
	FactorGrowth          = "growth"
	FactorUserConsistency = "user_consistency"
	FactorHistorical      = "historical_success"
	FactorSeason          = "season"
)

// Confidence assigned to a factor with no data behind it.
const noDataConfidence = 0.3

// factor is one input's contribution to each adjustment. Contributions are
// fractional changes: watering and fertilizer lengthen the interval when
// positive, amount adds water when positive.
type factor struct {
	name        string
	watering    float64
	amount      float64
	fertilizer  float64
	confidence  float64
	explanation string
}

func (f factor) capped(limit float64) factor {
	f.watering = model.Clamp(f.watering, -limit, limit)
	f.amount = model.Clamp(f.amount, -limit, limit)
	f.fertilizer = model.Clamp(f.fertilizer, -limit, limit)
	f.confidence = model.Clamp01(f.confidence)
	return f
}

// intensity is positive when the factor calls for more care overall.
func (f factor) intensity() float64 {
	return -f.watering + f.amount - f.fertilizer
}

// ramp maps x in [0, span] onto [0, 1].
func ramp(x, span float64) float64 {
	if span <= 0 || x <= 0 {
		return 0
	}
	return math.Min(x/span, 1)
}

func computeFactors(pctx *model.PlantContext, rr *model.RuleResult, cfg config.MLConfig) []factor {
	c := cfg.FactorCap
	fs := []factor{
		temperatureFactor(pctx.Environmental, cfg),
		humidityFactor(pctx.Environmental, cfg),
		healthFactor(pctx.Health, cfg),
		growthFactor(pctx.Health, cfg),
		consistencyFactor(pctx.Behavior, cfg),
		historicalFactor(pctx.Historical, rr, cfg),
		seasonFactor(pctx.Environmental.Season, pctx.Historical, cfg),
	}
	for i := range fs {
		fs[i] = fs[i].capped(c)
	}
	return fs
}

// temperatureFactor scales with distance past the hot or cold threshold,
// saturating 10°C beyond it.
func temperatureFactor(env model.EnvironmentalContext, cfg config.MLConfig) factor {
	f := factor{name: FactorTemperature, confidence: noDataConfidence, explanation: "No weather data for this location"}
	if !env.Available {
		return f
	}
	c, t := cfg.FactorCap, env.AvgTemperatureC
	f.confidence = 0.9
	switch {
	case t > cfg.HotTempC:
		s := ramp(t-cfg.HotTempC, 10)
		f.watering, f.amount = -c*s, c*s
		f.explanation = fmt.Sprintf("Warm conditions (avg %.1f°C) dry the soil faster", t)
	case t < cfg.ColdTempC:
		s := ramp(cfg.ColdTempC-t, 10)
		f.watering, f.amount, f.fertilizer = c*s, -c*s, c*s
		f.explanation = fmt.Sprintf("Cool conditions (avg %.1f°C) slow water use and growth", t)
	default:
		f.explanation = fmt.Sprintf("Temperatures (avg %.1f°C) are in a comfortable range", t)
	}
	return f
}

func humidityFactor(env model.EnvironmentalContext, cfg config.MLConfig) factor {
	f := factor{name: FactorHumidity, confidence: noDataConfidence, explanation: "No humidity data for this location"}
	if !env.Available {
		return f
	}
	c, h := cfg.FactorCap, env.AvgHumidity
	f.confidence = 0.85
	switch {
	case h < cfg.DryHumidity:
		s := ramp(cfg.DryHumidity-h, 20)
		f.watering, f.amount = -c*s, c*s/2
		f.explanation = fmt.Sprintf("Dry air (%.0f%% humidity) increases transpiration", h)
	case h > cfg.HumidHumidity:
		s := ramp(h-cfg.HumidHumidity, 20)
		f.watering, f.amount = c*s, -c*s/2
		f.explanation = fmt.Sprintf("Humid air (%.0f%% humidity) slows soil drying", h)
	default:
		f.explanation = fmt.Sprintf("Humidity (%.0f%%) is moderate", h)
	}
	return f
}

func healthFactor(h model.HealthContext, cfg config.MLConfig) factor {
	f := factor{name: FactorHealth, confidence: noDataConfidence, explanation: "No health assessments recorded"}
	if h.AssessmentCount == 0 {
		return f
	}
	c := cfg.FactorCap
	switch {
	case h.DaysSinceLastAssessment <= 14:
		f.confidence = 0.9
	case h.DaysSinceLastAssessment <= 30:
		f.confidence = 0.7
	default:
		f.confidence = 0.5
	}

	f.explanation = fmt.Sprintf("Latest health score %.2f (%s)", h.Score, h.Status)
	switch {
	case h.HasStress(model.StressOverwatered):
		f.watering, f.amount = c, -c/2
		f.explanation += "; signs of overwatering"
	case h.HasStress(model.StressUnderwatered):
		f.watering, f.amount = -c, c/2
		f.explanation += "; signs of underwatering"
	}
	switch {
	case h.HasStress(model.StressNutrient):
		f.fertilizer = -c
		f.explanation += "; possible nutrient deficiency"
	case h.Score < 0.5:
		f.fertilizer = c * ramp(0.5-h.Score, 0.5)
	}
	return f
}

func growthFactor(h model.HealthContext, cfg config.MLConfig) factor {
	f := factor{name: FactorGrowth, confidence: 0.4, explanation: "Not enough growth photos to estimate a growth rate"}
	if h.GrowthObservationCount < 2 {
		return f
	}
	c := cfg.FactorCap
	f.confidence = 0.6
	if h.GrowthObservationCount >= 3 {
		f.confidence = 0.8
	}
	s := ramp(h.GrowthRateCMPerWeek, cfg.FastGrowthCMPerWeek)
	f.watering, f.amount, f.fertilizer = -c*s/2, c*s/2, -c*s
	if s > 0 {
		f.explanation = fmt.Sprintf("Growing %.1f cm/week; active growth uses more water and nutrients", h.GrowthRateCMPerWeek)
	} else {
		f.explanation = "No measurable growth recently"
	}
	return f
}

func consistencyFactor(b model.UserBehaviorContext, cfg config.MLConfig) factor {
	f := factor{name: FactorUserConsistency, confidence: noDataConfidence, explanation: "No care events logged yet"}
	if b.EventCount == 0 {
		return f
	}
	c := cfg.FactorCap
	f.confidence = 0.4 + 0.5*model.Clamp01(b.WateringConsistency)
	switch b.Tendency {
	case model.TendencyOverwatering:
		f.watering, f.amount = c, -c/2
		f.explanation = "Watering tends to happen earlier than planned"
	case model.TendencyUnderwatering:
		f.watering, f.amount = -c, c/2
		f.explanation = "Watering tends to happen later than planned"
	default:
		f.explanation = fmt.Sprintf("Watering consistency %.0f%%", b.WateringConsistency*100)
	}
	return f
}

// historicalFactor pulls toward the intervals of earlier successful plans,
// weighted by how often those plans succeeded.
func historicalFactor(h model.HistoricalContext, rr *model.RuleResult, cfg config.MLConfig) factor {
	f := factor{name: FactorHistorical, confidence: noDataConfidence, explanation: "No outcomes recorded for earlier plans"}
	n := h.OutcomeCount()
	if n == 0 {
		return f
	}
	f.confidence = 0.5 + 0.4*math.Min(float64(n)/10, 1)
	rate := h.SuccessRate()
	if h.BestWateringInterval > 0 && rr.WateringIntervalDays > 0 {
		f.watering = rate * (h.BestWateringInterval - rr.WateringIntervalDays) / rr.WateringIntervalDays
	}
	if h.BestFertilizerInterval > 0 && rr.FertilizerIntervalDays > 0 {
		f.fertilizer = rate * (h.BestFertilizerInterval - rr.FertilizerIntervalDays) / rr.FertilizerIntervalDays
	}
	f.explanation = fmt.Sprintf("%d of %d earlier plans succeeded", h.SuccessCount, n)
	return f
}

func seasonFactor(season model.Season, h model.HistoricalContext, cfg config.MLConfig) factor {
	f := factor{name: FactorSeason, confidence: 0.5, explanation: "Season unknown"}
	if season == "" {
		return f
	}
	c := cfg.FactorCap
	f.confidence = 0.9
	if rate, ok := h.SeasonalSuccessRates[season]; ok {
		f.confidence = 0.6 + 0.3*model.Clamp01(rate)
	}
	switch season {
	case model.SeasonSummer:
		f.watering, f.amount, f.fertilizer = -c/2, c/2, -c/2
		f.explanation = "Summer is peak growing season"
	case model.SeasonWinter:
		f.watering, f.amount, f.fertilizer = c/2, -c/2, c
		f.explanation = "Winter growth is slow"
	default:
		f.explanation = fmt.Sprintf("%s conditions are moderate", season)
	}
	return f
}
