// Package rules is the deterministic rule engine: a species care profile
// adjusted by pot size, environmental, plant-health, and owner-override rule
// groups applied in ascending priority.
package rules

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/plantcare/internal/config"
	"github.com/sells-group/plantcare/internal/model"
)

// Mode selects which rule groups run.
type Mode string

const (
	// ModeFull runs every group.
	ModeFull Mode = "full"
	// ModeConservative halves environmental and health deltas and skips owner overrides.
	ModeConservative Mode = "conservative"
	// ModeBaseOnly runs the species and pot-size groups only.
	ModeBaseOnly Mode = "base_only"
)

// Rule group names recorded on each RuleApplication.
const (
	GroupSpeciesBase   = "species_base"
	GroupPotSize       = "pot_size"
	GroupEnvironmental = "environmental_current"
	GroupPlantHealth   = "plant_health"
	GroupUserOverride  = "user_override"
)

var (
	// ErrUnknownMode is returned for a mode other than full, conservative or base_only.
	ErrUnknownMode = eris.New("rules: unknown mode")
	// ErrInvalidContext is returned when the context holds non-finite or negative values.
	ErrInvalidContext = eris.New("rules: invalid context")
)

// ParseMode converts a config string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFull, ModeConservative, ModeBaseOnly:
		return Mode(s), nil
	case "":
		return ModeFull, nil
	}
	return "", eris.Wrapf(ErrUnknownMode, "%q", s)
}

func (m Mode) runs(priority int) bool {
	switch m {
	case ModeBaseOnly:
		return priority <= model.PriorityPotSize
	case ModeConservative:
		return priority < model.PriorityUserOverride
	}
	return true
}

func (m Mode) scale(priority int) float64 {
	if m == ModeConservative && (priority == model.PriorityEnvironmental || priority == model.PriorityPlantHealth) {
		return 0.5
	}
	return 1
}

// rule is one conditional adjustment of a single parameter.
type rule struct {
	name      string
	group     string
	priority  int
	param     string
	condition string
	rationale string
	when      func(pctx *model.PlantContext, rr *model.RuleResult) bool
	delta     func(pctx *model.PlantContext, rr *model.RuleResult) float64
	alert     func(pctx *model.PlantContext) *model.Alert
}

// Engine applies species profiles and rule groups to plant contexts. It is
// safe for concurrent use.
type Engine struct {
	catalog *Catalog
	cfg     config.RulesConfig
	rules   []rule
}

// NewEngine creates an Engine over catalog. A nil catalog resolves every
// species to the default profile.
func NewEngine(catalog *Catalog, cfg config.RulesConfig) *Engine {
	if catalog == nil {
		catalog, _ = NewCatalog(nil)
	}
	return &Engine{catalog: catalog, cfg: cfg, rules: buildRules(cfg)}
}

// Catalog returns the engine's species catalog.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Constraints returns the global parameter bounds.
func (e *Engine) Constraints() config.ConstraintsConfig {
	return e.cfg.Constraints
}

// Apply runs the rule groups for mode against pctx using the engine catalog.
func (e *Engine) Apply(pctx *model.PlantContext, mode Mode) (*model.RuleResult, error) {
	return e.ApplyWith(pctx, e.catalog, mode)
}

// ApplyWith is Apply with an explicit species catalog.
func (e *Engine) ApplyWith(pctx *model.PlantContext, catalog *Catalog, mode Mode) (*model.RuleResult, error) {
	mode, err := ParseMode(string(mode))
	if err != nil {
		return nil, err
	}
	if err := checkContext(pctx); err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = e.catalog
	}

	profile, match := catalog.Resolve(pctx.Species)
	rr := &model.RuleResult{
		WateringIntervalDays:   profile.WateringIntervalDays,
		WaterAmountML:          profile.WaterAmountML,
		FertilizerIntervalDays: profile.FertilizerIntervalDays,
		FertilizerType:         profile.FertilizerType,
		LightPPFDMin:           profile.LightPPFDMin,
		LightPPFDMax:           profile.LightPPFDMax,
		SoilMoistureTarget:     profile.SoilMoistureTarget,
		ReviewIntervalDays:     profile.ReviewIntervalDays,
		ProfileName:            profile.Name,
		ProfileMatch:           match,
	}
	rr.Applications = append(rr.Applications, model.RuleApplication{
		Rule:      "species_profile",
		Group:     GroupSpeciesBase,
		Priority:  model.PrioritySpeciesBase,
		Condition: fmt.Sprintf("species %q resolved by %s match", pctx.Species, match),
		Fired:     true,
		Rationale: fmt.Sprintf("Base schedule from the %s care profile", profile.Name),
	})
	if match == model.MatchDefault {
		rr.Alerts = append(rr.Alerts, model.Alert{
			Level:   model.AlertWarning,
			Code:    model.AlertCodeUnknownSpecies,
			Message: fmt.Sprintf("No care profile for %q; using general houseplant defaults", pctx.Species),
		})
	}

	for _, r := range e.rules {
		if !mode.runs(r.priority) {
			continue
		}
		app := model.RuleApplication{
			Rule:      r.name,
			Group:     r.group,
			Priority:  r.priority,
			Condition: r.condition,
			Parameter: r.param,
			Rationale: r.rationale,
		}
		if r.when(pctx, rr) {
			d := r.delta(pctx, rr) * mode.scale(r.priority)
			*param(rr, r.param) += d
			app.Fired = true
			app.Delta = d
			if r.alert != nil {
				if a := r.alert(pctx); a != nil {
					rr.Alerts = append(rr.Alerts, *a)
				}
			}
		}
		rr.Applications = append(rr.Applications, app)
	}

	rr.Violations = Validate(rr, e.cfg.Constraints)
	if len(rr.Violations) > 0 {
		rr.Alerts = append(rr.Alerts, ViolationAlert(rr.Violations))
	}
	rr.Confidence = e.confidence(pctx, rr)
	return rr, nil
}

func (e *Engine) confidence(pctx *model.PlantContext, rr *model.RuleResult) float64 {
	c := pctx.ConfidenceScore - e.cfg.ViolationPenalty*float64(len(rr.Violations))
	switch rr.ProfileMatch {
	case model.MatchDefault:
		c -= e.cfg.DefaultProfilePenalty
	case model.MatchPartial:
		c -= e.cfg.PartialMatchPenalty
	}
	if rr.FiredInGroup(model.PriorityPlantHealth) {
		c += e.cfg.HealthRuleBonus
	}
	return model.Clamp(c, e.cfg.MinConfidence, 1)
}

// Fallback returns the fixed result used when Apply fails: default profile
// values at the configured fallback confidence with a warning alert.
func (e *Engine) Fallback(reason string) *model.RuleResult {
	p := DefaultProfile()
	rr := &model.RuleResult{
		WateringIntervalDays:   p.WateringIntervalDays,
		WaterAmountML:          p.WaterAmountML,
		FertilizerIntervalDays: p.FertilizerIntervalDays,
		FertilizerType:         p.FertilizerType,
		LightPPFDMin:           p.LightPPFDMin,
		LightPPFDMax:           p.LightPPFDMax,
		SoilMoistureTarget:     p.SoilMoistureTarget,
		ReviewIntervalDays:     p.ReviewIntervalDays,
		ProfileName:            p.Name,
		ProfileMatch:           model.MatchDefault,
		FallbackUsed:           true,
		Confidence:             e.cfg.FallbackConfidence,
		Applications: []model.RuleApplication{{
			Rule:      "fallback",
			Group:     GroupSpeciesBase,
			Priority:  model.PrioritySpeciesBase,
			Condition: "rule evaluation failed",
			Fired:     true,
			Rationale: "Default care schedule used because rules could not be evaluated",
		}},
		Alerts: []model.Alert{{
			Level:   model.AlertWarning,
			Code:    model.AlertCodeRuleEngineFallback,
			Message: "Care rules could not be evaluated (" + reason + "); using a default schedule",
		}},
	}
	rr.Violations = Validate(rr, e.cfg.Constraints)
	return rr
}

func checkContext(pctx *model.PlantContext) error {
	if pctx == nil {
		return eris.Wrap(ErrInvalidContext, "context is nil")
	}
	env, h, b := pctx.Environmental, pctx.Health, pctx.Behavior
	if !model.Finite(
		pctx.ConfidenceScore, pctx.PotSizeCM,
		env.AvgTemperatureC, env.MaxTemperatureC, env.MinTemperatureC, env.AvgHumidity, env.DaylightHours,
		h.Score, h.GrowthRateCMPerWeek,
		b.WateringConsistency, b.CareFrequencyPerWk, b.PlanAdherenceRate, b.AvgWateringInterval,
	) {
		return eris.Wrapf(ErrInvalidContext, "plant %s has non-finite values", pctx.PlantID)
	}
	if pctx.PotSizeCM < 0 || pctx.AgeDays < 0 {
		return eris.Wrapf(ErrInvalidContext, "plant %s has negative pot size or age", pctx.PlantID)
	}
	if o := pctx.Overrides; o != nil {
		for _, v := range []*float64{o.WateringIntervalDays, o.WaterAmountML, o.FertilizerIntervalDays} {
			if v != nil && (!model.Finite(*v) || *v <= 0) {
				return eris.Wrapf(ErrInvalidContext, "plant %s has a non-positive override", pctx.PlantID)
			}
		}
	}
	for _, s := range pctx.Sensor.Averages {
		if !model.Finite(s) {
			return eris.Wrapf(ErrInvalidContext, "plant %s has a non-finite sensor average", pctx.PlantID)
		}
	}
	return nil
}

func stressedStatus(h model.HealthContext, threshold float64) bool {
	switch h.Status {
	case model.HealthStressed, model.HealthPoor, model.HealthCritical:
		return true
	case model.HealthUnknown, "":
		return false
	}
	return h.Score < threshold
}

func fixed(v float64) func(*model.PlantContext, *model.RuleResult) float64 {
	return func(*model.PlantContext, *model.RuleResult) float64 { return v }
}

// override builds a rule body that replaces the named parameter with the
// owner's value.
func override(get func(*model.UserOverrides) *float64, name string) (func(*model.PlantContext, *model.RuleResult) bool, func(*model.PlantContext, *model.RuleResult) float64) {
	when := func(pctx *model.PlantContext, _ *model.RuleResult) bool {
		return pctx.Overrides != nil && get(pctx.Overrides) != nil
	}
	delta := func(pctx *model.PlantContext, rr *model.RuleResult) float64 {
		return *get(pctx.Overrides) - *param(rr, name)
	}
	return when, delta
}

// buildRules returns every rule in evaluation order: ascending priority,
// declaration order within a priority.
func buildRules(cfg config.RulesConfig) []rule {
	alert := func(level model.AlertLevel, code, msg string) func(*model.PlantContext) *model.Alert {
		return func(*model.PlantContext) *model.Alert {
			return &model.Alert{Level: level, Code: code, Message: msg}
		}
	}

	rs := []rule{
		{
			name: "pot_size_amount", group: GroupPotSize, priority: model.PriorityPotSize,
			param:     model.ParamWaterAmount,
			condition: fmt.Sprintf("pot_size_cm > 0 and != %.0f", cfg.PotReferenceCM),
			rationale: "Water amount scaled to the pot's soil area",
			when: func(pctx *model.PlantContext, _ *model.RuleResult) bool {
				return pctx.PotSizeCM > 0 && pctx.PotSizeCM != cfg.PotReferenceCM
			},
			delta: func(pctx *model.PlantContext, rr *model.RuleResult) float64 {
				scale := math.Pow(pctx.PotSizeCM/cfg.PotReferenceCM, 2)
				return rr.WaterAmountML*scale - rr.WaterAmountML
			},
		},
		{
			name: "small_pot_watering", group: GroupPotSize, priority: model.PriorityPotSize,
			param:     model.ParamWateringInterval,
			condition: fmt.Sprintf("0 < pot_size_cm < %.0f", cfg.SmallPotCM),
			rationale: "Small pots dry out faster",
			when: func(pctx *model.PlantContext, _ *model.RuleResult) bool {
				return pctx.PotSizeCM > 0 && pctx.PotSizeCM < cfg.SmallPotCM
			},
			delta: fixed(cfg.SmallPotWateringDelta),
		},
		{
			name: "large_pot_watering", group: GroupPotSize, priority: model.PriorityPotSize,
			param:     model.ParamWateringInterval,
			condition: fmt.Sprintf("pot_size_cm > %.0f", cfg.LargePotCM),
			rationale: "Large pots hold moisture longer",
			when: func(pctx *model.PlantContext, _ *model.RuleResult) bool {
				return pctx.PotSizeCM > cfg.LargePotCM
			},
			delta: fixed(cfg.LargePotWateringDelta),
		},
		{
			name: "heatwave_watering", group: GroupEnvironmental, priority: model.PriorityEnvironmental,
			param:     model.ParamWateringInterval,
			condition: fmt.Sprintf("heatwave_days >= %d", cfg.HeatwaveMinDays),
			rationale: "Sustained heat increases water demand",
			when: func(pctx *model.PlantContext, _ *model.RuleResult) bool {
				return pctx.Environmental.HeatwaveDays >= cfg.HeatwaveMinDays
			},
			delta: fixed(cfg.HeatwaveDelta),
			alert: func(pctx *model.PlantContext) *model.Alert {
				return &model.Alert{
					Level:   model.AlertWarning,
					Code:    model.AlertCodeHeatwave,
					Message: fmt.Sprintf("%d-day heatwave: water more often and keep out of afternoon sun", pctx.Environmental.HeatwaveDays),
				}
			},
		},
		{
			name: "cold_snap_watering", group: GroupEnvironmental, priority: model.PriorityEnvironmental,
			param:     model.ParamWateringInterval,
			condition: fmt.Sprintf("cold_snap_days >= %d", cfg.ColdSnapMinDays),
			rationale: "Cold slows growth and water uptake",
			when: func(pctx *model.PlantContext, _ *model.RuleResult) bool {
				return pctx.Environmental.ColdSnapDays >= cfg.ColdSnapMinDays
			},
			delta: fixed(cfg.ColdSnapDelta),
			alert: func(pctx *model.PlantContext) *model.Alert {
				return &model.Alert{
					Level:   model.AlertWarning,
					Code:    model.AlertCodeColdSnap,
					Message: fmt.Sprintf("%d-day cold snap: water less and protect from frost", pctx.Environmental.ColdSnapDays),
				}
			},
		},
		{
			name: "low_humidity_watering", group: GroupEnvironmental, priority: model.PriorityEnvironmental,
			param:     model.ParamWateringInterval,
			condition: fmt.Sprintf("avg_humidity < %.0f", cfg.LowHumidityThreshold),
			rationale: "Dry air increases transpiration",
			when: func(pctx *model.PlantContext, _ *model.RuleResult) bool {
				return pctx.Environmental.Available && pctx.Environmental.AvgHumidity < cfg.LowHumidityThreshold
			},
			delta: fixed(cfg.LowHumidityDelta),
			alert: alert(model.AlertTip, model.AlertCodeLowHumidity, "Air is dry: mist leaves or group plants together"),
		},
		{
			name: "high_humidity_watering", group: GroupEnvironmental, priority: model.PriorityEnvironmental,
			param:     model.ParamWateringInterval,
			condition: fmt.Sprintf("avg_humidity > %.0f", cfg.HighHumidityThreshold),
			rationale: "Humid air slows soil drying",
			when: func(pctx *model.PlantContext, _ *model.RuleResult) bool {
				return pctx.Environmental.Available && pctx.Environmental.AvgHumidity > cfg.HighHumidityThreshold
			},
			delta: fixed(cfg.HighHumidityDelta),
			alert: alert(model.AlertInfo, model.AlertCodeHighHumidity, "Air is humid: check soil before watering and improve airflow"),
		},
		{
			name: "summer_watering", group: GroupEnvironmental, priority: model.PriorityEnvironmental,
			param:     model.ParamWateringInterval,
			condition: "season == summer",
			rationale: "Active summer growth uses more water",
			when: func(pctx *model.PlantContext, _ *model.RuleResult) bool {
				return pctx.Environmental.Season == model.SeasonSummer
			},
			delta: fixed(cfg.SummerWateringDelta),
		},
		{
			name: "winter_watering", group: GroupEnvironmental, priority: model.PriorityEnvironmental,
			param:     model.ParamWateringInterval,
			condition: "season == winter",
			rationale: "Winter dormancy needs less water",
			when: func(pctx *model.PlantContext, _ *model.RuleResult) bool {
				return pctx.Environmental.Season == model.SeasonWinter
			},
			delta: fixed(cfg.WinterWateringDelta),
		},
		{
			name: "winter_fertilizer", group: GroupEnvironmental, priority: model.PriorityEnvironmental,
			param:     model.ParamFertilizerInterval,
			condition: "season == winter",
			rationale: "Feeding is reduced during winter dormancy",
			when: func(pctx *model.PlantContext, _ *model.RuleResult) bool {
				return pctx.Environmental.Season == model.SeasonWinter
			},
			delta: fixed(cfg.WinterFertilizerDelta),
			alert: alert(model.AlertTip, model.AlertCodeFertilizerPaused, "Feeding slowed for winter; resume in spring"),
		},
		{
			name: "overwatered_watering", group: GroupPlantHealth, priority: model.PriorityPlantHealth,
			param:     model.ParamWateringInterval,
			condition: "stress indicator overwatered",
			rationale: "Signs of overwatering: let the soil dry longer",
			when: func(pctx *model.PlantContext, _ *model.RuleResult) bool {
				return pctx.Health.HasStress(model.StressOverwatered)
			},
			delta: fixed(cfg.OverwateredDelta),
		},
		{
			name: "underwatered_watering", group: GroupPlantHealth, priority: model.PriorityPlantHealth,
			param:     model.ParamWateringInterval,
			condition: "stress indicator underwatered",
			rationale: "Signs of underwatering: water sooner",
			when: func(pctx *model.PlantContext, _ *model.RuleResult) bool {
				return pctx.Health.HasStress(model.StressUnderwatered)
			},
			delta: fixed(cfg.UnderwateredDelta),
		},
		{
			name: "stressed_fertilizer", group: GroupPlantHealth, priority: model.PriorityPlantHealth,
			param:     model.ParamFertilizerInterval,
			condition: fmt.Sprintf("health status stressed/poor/critical or score < %.2f", cfg.LowHealthScoreThreshold),
			rationale: "Stressed plants should not be pushed with fertilizer",
			when: func(pctx *model.PlantContext, _ *model.RuleResult) bool {
				return stressedStatus(pctx.Health, cfg.LowHealthScoreThreshold)
			},
			delta: fixed(cfg.StressFertilizerDelta),
		},
		{
			name: "critical_review", group: GroupPlantHealth, priority: model.PriorityPlantHealth,
			param:     model.ParamReviewInterval,
			condition: fmt.Sprintf("health status critical and review interval > %.0f days", cfg.CriticalReviewDays),
			rationale: "Critical plants are reviewed more often",
			when: func(pctx *model.PlantContext, rr *model.RuleResult) bool {
				return pctx.Health.Status == model.HealthCritical && rr.ReviewIntervalDays > cfg.CriticalReviewDays
			},
			delta: func(_ *model.PlantContext, rr *model.RuleResult) float64 {
				return cfg.CriticalReviewDays - rr.ReviewIntervalDays
			},
		},
	}

	overrides := []struct {
		name  string
		param string
		get   func(*model.UserOverrides) *float64
	}{
		{"override_watering_interval", model.ParamWateringInterval, func(o *model.UserOverrides) *float64 { return o.WateringIntervalDays }},
		{"override_water_amount", model.ParamWaterAmount, func(o *model.UserOverrides) *float64 { return o.WaterAmountML }},
		{"override_fertilizer_interval", model.ParamFertilizerInterval, func(o *model.UserOverrides) *float64 { return o.FertilizerIntervalDays }},
	}
	for _, o := range overrides {
		when, delta := override(o.get, o.param)
		rs = append(rs, rule{
			name: o.name, group: GroupUserOverride, priority: model.PriorityUserOverride,
			param:     o.param,
			condition: "owner set " + o.param,
			rationale: "Owner preference takes precedence",
			when:      when,
			delta:     delta,
		})
	}
	return rs
}
