package rationale

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/plantcare/internal/config"
	"github.com/sells-group/plantcare/internal/environment"
	"github.com/sells-group/plantcare/internal/model"
)

// Confidence levels reported on a plan rationale.
const (
	LevelHigh     = "high"
	LevelModerate = "moderate"
	LevelLow      = "low"
)

// Input is everything the builder explains. Now is used instead of the clock.
type Input struct {
	Recommendations []model.Recommendation
	Context         *model.PlantContext
	Rules           *model.RuleResult
	Prediction      *model.MLPrediction
	Southern        bool
	Now             time.Time
}

// Builder produces plan rationales. Build has no side effects.
type Builder struct {
	cfg     config.RationaleConfig
	weights map[string]float64
}

// NewBuilder creates a Builder with cfg.
func NewBuilder(cfg config.RationaleConfig) *Builder {
	return &Builder{cfg: cfg, weights: weights(cfg)}
}

// Build explains each recommendation and the plan as a whole.
func (b *Builder) Build(in Input) model.PlanRationale {
	pr := model.PlanRationale{}
	if in.Rules != nil {
		pr.RulesApplied = in.Rules.Fired()
	}
	if in.Prediction != nil {
		pr.MLFeatures = in.Prediction.Features
		pr.GatedAdjustments = in.Prediction.GatedAdjustments
	}

	var best model.Explanation
	var bestSet bool
	var supporting []string
	seen := map[string]bool{}
	var confSum float64

	for _, rec := range in.Recommendations {
		rr := b.explain(rec, in)
		pr.Recommendations = append(pr.Recommendations, rr)
		confSum += rr.OverallConfidence
		if rr.Components == nil {
			continue
		}
		if !bestSet || rr.PrimaryReason.Score() > best.Score() {
			best, bestSet = rr.PrimaryReason, true
		}
		for _, c := range rr.Components {
			if !seen[c.Description] {
				seen[c.Description] = true
				supporting = append(supporting, c.Description)
			}
		}
	}

	if bestSet {
		pr.PrimaryReason = best.Description
	}
	for _, s := range supporting {
		if s != pr.PrimaryReason {
			pr.SupportingFactors = append(pr.SupportingFactors, s)
		}
	}
	for _, f := range pr.MLFeatures {
		if f.Importance > 0 && len(pr.SupportingFactors) < 8 && !seen[f.Explanation] {
			seen[f.Explanation] = true
			pr.SupportingFactors = append(pr.SupportingFactors, f.Explanation)
		}
	}

	overall := 0.0
	if n := len(in.Recommendations); n > 0 {
		overall = confSum / float64(n)
	}
	pr.ConfidenceLevel, pr.ConfidenceNarrative = b.narrative(overall, in.Context)
	pr.Summary = summary(in.Recommendations, in.Rules)
	return pr
}

// explain builds the components of one recommendation. The primary reason
// is the highest confidence×weight component, ties going to the earlier
// category.
func (b *Builder) explain(rec model.Recommendation, in Input) model.RecommendationRationale {
	out := model.RecommendationRationale{Recommendation: rec, OverallConfidence: rec.Confidence}

	var comps []model.Explanation
	add := func(cat, desc string, conf float64) {
		comps = append(comps, model.Explanation{
			Category: cat, Description: desc, Confidence: model.Clamp01(conf), Weight: b.weights[cat],
		})
	}
	if desc, ok := ruleReason(rec.Name, in.Rules); ok {
		add(model.CategoryRuleBased, desc, in.Rules.Confidence)
	}
	if desc, conf, ok := mlReason(rec.Name, in.Prediction); ok {
		add(model.CategoryMLPrediction, desc, conf)
	}
	if in.Context != nil {
		if desc, ok := contextualReason(in.Context); ok {
			add(model.CategoryContextual, desc, in.Context.ConfidenceScore)
		}
		if desc, ok := environmentalReason(in.Context.Environmental); ok {
			conf, scored := in.Context.SourceScores[model.SourceEnvironmental]
			if !scored {
				conf = 0.5
			}
			add(model.CategoryEnvironmental, desc, conf)
		}
	}
	desc, conf := seasonalReason(in)
	add(model.CategorySeasonal, desc, conf)

	if len(comps) == 0 {
		return out
	}
	out.Components = comps
	out.PrimaryReason = comps[0]
	var num, den float64
	for _, c := range comps {
		if c.Score() > out.PrimaryReason.Score() {
			out.PrimaryReason = c
		}
		num += c.Confidence * c.Weight
		den += c.Weight
	}
	if den > 0 {
		out.OverallConfidence = (rec.Confidence + num/den) / 2
	}
	return out
}

func ruleReason(param string, rr *model.RuleResult) (string, bool) {
	if rr == nil {
		return "", false
	}
	var parts []string
	for _, a := range rr.Applications {
		if a.Fired && a.Parameter == param && a.Rationale != "" {
			parts = append(parts, a.Rationale)
		}
	}
	base := fmt.Sprintf("Starts from the %s care profile", rr.ProfileName)
	if rr.FallbackUsed {
		base = "Default care schedule"
	}
	if len(parts) == 0 {
		return base, true
	}
	return base + "; " + strings.Join(parts, "; "), true
}

// adjustmentFor maps a recommendation to the ML adjustment that moved it.
func adjustmentFor(param string, p *model.MLPrediction) (model.Adjustment, bool) {
	switch param {
	case model.ParamWateringInterval:
		return p.Watering, true
	case model.ParamWaterAmount:
		return p.Amount, true
	case model.ParamFertilizerInterval:
		return p.Fertilizer, true
	}
	return model.Adjustment{}, false
}

func mlReason(param string, p *model.MLPrediction) (string, float64, bool) {
	if p == nil || p.FallbackUsed {
		return "", 0, false
	}
	adj, ok := adjustmentFor(param, p)
	if !ok {
		return "", 0, false
	}
	switch {
	case adj.Gated:
		return fmt.Sprintf("Fine-tuning withheld: confidence %.0f%% is below the %.0f%% threshold",
			adj.Confidence*100, adj.Threshold*100), adj.Confidence, true
	case adj.Value == 0:
		return "Recent patterns suggest no change", adj.Confidence, true
	}
	desc := fmt.Sprintf("Fine-tuned by %+.0f%% from recent patterns", adj.Value*100)
	if len(p.Features) > 0 && p.Features[0].Importance > 0 {
		desc += " (mainly " + strings.ReplaceAll(p.Features[0].Name, "_", " ") + ")"
	}
	return desc, adj.Confidence, true
}

func contextualReason(pctx *model.PlantContext) (string, bool) {
	var parts []string
	if pctx.AgeDays > 0 {
		parts = append(parts, fmt.Sprintf("plant is %d days old", pctx.AgeDays))
	}
	if n := pctx.Historical.OutcomeCount(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d of %d earlier plans succeeded", pctx.Historical.SuccessCount, n))
	}
	if pctx.Behavior.EventCount > 0 {
		parts = append(parts, fmt.Sprintf("%d care events logged", pctx.Behavior.EventCount))
	}
	if len(parts) == 0 {
		return "", false
	}
	s := strings.Join(parts, ", ")
	return strings.ToUpper(s[:1]) + s[1:], true
}

func environmentalReason(env model.EnvironmentalContext) (string, bool) {
	if !env.Available {
		return "", false
	}
	desc := fmt.Sprintf("Local weather averaged %.1f°C and %.0f%% humidity over %d days",
		env.AvgTemperatureC, env.AvgHumidity, env.DaysCovered)
	switch {
	case env.HeatwaveDays > 0:
		desc += fmt.Sprintf(", including %d hot days", env.HeatwaveDays)
	case env.ColdSnapDays > 0:
		desc += fmt.Sprintf(", including %d cold days", env.ColdSnapDays)
	}
	return desc, true
}

// seasonalReason uses the observed season, or the calendar season at Now
// with lower confidence.
func seasonalReason(in Input) (string, float64) {
	season, conf := model.Season(""), 0.8
	if in.Context != nil {
		season = in.Context.Environmental.Season
		if !in.Context.Environmental.Available {
			conf = 0.6
		}
	}
	if season == "" {
		season, conf = environment.SeasonAt(in.Now, in.Southern), 0.5
	}
	return fmt.Sprintf("Adjusted for %s", season), conf
}

func (b *Builder) narrative(conf float64, pctx *model.PlantContext) (string, string) {
	switch {
	case conf >= b.cfg.HighConfidence:
		return LevelHigh, fmt.Sprintf("High confidence (%.0f%%): the plan is backed by recent, consistent data.", conf*100)
	case conf >= b.cfg.ModerateConfidence:
		return LevelModerate, fmt.Sprintf("Moderate confidence (%.0f%%): some inputs are sparse or dated.", conf*100)
	}
	s := fmt.Sprintf("Low confidence (%.0f%%)", conf*100)
	if missing := missingData(pctx); len(missing) > 0 {
		s += ": missing " + strings.Join(missing, ", ")
	}
	return LevelLow, s + "."
}

func missingData(pctx *model.PlantContext) []string {
	if pctx == nil {
		return []string{"plant context"}
	}
	var out []string
	if pctx.Sensor.ReadingCount == 0 {
		out = append(out, "sensor readings")
	}
	if !pctx.Environmental.Available {
		out = append(out, "local weather")
	}
	if pctx.Health.AssessmentCount == 0 {
		out = append(out, "health assessments")
	}
	if pctx.Behavior.EventCount == 0 {
		out = append(out, "care history")
	}
	if pctx.Historical.OutcomeCount() == 0 {
		out = append(out, "plan outcomes")
	}
	return out
}

func summary(recs []model.Recommendation, rr *model.RuleResult) string {
	vals := map[string]float64{}
	for _, r := range recs {
		vals[r.Name] = r.Value
	}
	var parts []string
	if v, ok := vals[model.ParamWateringInterval]; ok {
		p := fmt.Sprintf("Water every %s days", trim(v))
		if amt, ok := vals[model.ParamWaterAmount]; ok {
			p += fmt.Sprintf(" with about %.0f ml", amt)
		}
		parts = append(parts, p)
	}
	if v, ok := vals[model.ParamFertilizerInterval]; ok {
		parts = append(parts, fmt.Sprintf("fertilize every %s days", trim(v)))
	}
	if lo, ok := vals[model.ParamLightPPFDMin]; ok {
		if hi, ok := vals[model.ParamLightPPFDMax]; ok {
			parts = append(parts, fmt.Sprintf("keep light between %.0f and %.0f PPFD", lo, hi))
		}
	}
	s := strings.Join(parts, ", ")
	if s == "" {
		s = "No schedule changes"
	}
	if rr != nil && rr.ProfileName != "" {
		s += fmt.Sprintf(" (%s profile)", rr.ProfileName)
	}
	return s + "."
}

func trim(v float64) string {
	s := fmt.Sprintf("%.1f", v)
	return strings.TrimSuffix(s, ".0")
}
