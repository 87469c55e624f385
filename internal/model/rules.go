package model

// AlertLevel grades an alert attached to a context, rule result, or plan.
type AlertLevel string

const (
	AlertCritical AlertLevel = "critical"
	AlertWarning  AlertLevel = "warning"
	AlertInfo     AlertLevel = "info"
	AlertTip      AlertLevel = "tip"
)

// Alert is a leveled, coded message surfaced to the plant owner.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
}

// Alert codes shared across the pipeline.
const (
	AlertCodeUnknownSpecies      = "unknown_species_using_defaults"
	AlertCodeStaleSensorData     = "stale_sensor_data"
	AlertCodeMissingSensors      = "missing_sensors"
	AlertCodeCriticalHealth      = "critical_health"
	AlertCodeSustainedHeat       = "sustained_heat"
	AlertCodeSustainedCold       = "sustained_cold"
	AlertCodeSourceUnavailable   = "data_source_unavailable"
	AlertCodeNoContextData       = "no_context_data"
	AlertCodeHeatwave            = "heatwave"
	AlertCodeColdSnap            = "cold_snap"
	AlertCodeLowHumidity         = "low_humidity"
	AlertCodeHighHumidity        = "high_humidity"
	AlertCodeFertilizerPaused    = "fertilizer_paused"
	AlertCodeConstraintViolation = "constraint_violation"
	AlertCodeRuleEngineFallback  = "rule_engine_fallback"
	AlertCodeMLFallback          = "ml_fallback"
	AlertCodeMLGated             = "ml_adjustment_gated"
)

// HasAlert reports whether alerts contain the given code.
func HasAlert(alerts []Alert, code string) bool {
	for _, a := range alerts {
		if a.Code == code {
			return true
		}
	}
	return false
}

// FindAlert returns the first alert with the given code.
func FindAlert(alerts []Alert, code string) (Alert, bool) {
	for _, a := range alerts {
		if a.Code == code {
			return a, true
		}
	}
	return Alert{}, false
}

// Rule group priorities; groups run in ascending order.
const (
	PrioritySpeciesBase   = 100
	PriorityPotSize       = 200
	PriorityEnvironmental = 300
	PriorityPlantHealth   = 400
	PriorityUserOverride  = 500
)

// Care parameters a rule may adjust.
const (
	ParamWateringInterval   = "watering_interval_days"
	ParamWaterAmount        = "water_amount_ml"
	ParamFertilizerInterval = "fertilizer_interval_days"
	ParamLightPPFDMin       = "light_ppfd_min"
	ParamLightPPFDMax       = "light_ppfd_max"
	ParamSoilMoistureTarget = "soil_moisture_target"
	ParamReviewInterval     = "review_interval_days"
)

// ProfileMatch describes how a species profile was resolved.
type ProfileMatch string

const (
	MatchExact   ProfileMatch = "exact"
	MatchPartial ProfileMatch = "partial"
	MatchDefault ProfileMatch = "default"
)

// RuleApplication is the audit record of a single rule evaluation.
type RuleApplication struct {
	Rule      string  `json:"rule"`
	Group     string  `json:"group"`
	Priority  int     `json:"priority"`
	Condition string  `json:"condition"`
	Fired     bool    `json:"fired"`
	Parameter string  `json:"parameter,omitempty"`
	Delta     float64 `json:"delta"`
	Rationale string  `json:"rationale"`
}

// ConstraintViolation records a parameter clamped into its global bounds.
type ConstraintViolation struct {
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	ClampedTo float64 `json:"clamped_to"`
}

// RuleResult is the deterministic base recommendation produced by the rule engine.
type RuleResult struct {
	WateringIntervalDays   float64 `json:"watering_interval_days"`
	WaterAmountML          float64 `json:"water_amount_ml"`
	FertilizerIntervalDays float64 `json:"fertilizer_interval_days"`
	FertilizerType         string  `json:"fertilizer_type"`
	LightPPFDMin           float64 `json:"light_ppfd_min"`
	LightPPFDMax           float64 `json:"light_ppfd_max"`
	SoilMoistureTarget     float64 `json:"soil_moisture_target"`
	ReviewIntervalDays     float64 `json:"review_interval_days"`

	Applications []RuleApplication     `json:"applications"`
	Alerts       []Alert               `json:"alerts"`
	Confidence   float64               `json:"confidence"`
	Violations   []ConstraintViolation `json:"violations"`

	ProfileName  string       `json:"profile_name"`
	ProfileMatch ProfileMatch `json:"profile_match"`
	FallbackUsed bool         `json:"fallback_used"`
}

// Fired returns the applications whose condition held.
func (r *RuleResult) Fired() []RuleApplication {
	var out []RuleApplication
	for _, a := range r.Applications {
		if a.Fired {
			out = append(out, a)
		}
	}
	return out
}

// FiredInGroup reports whether any rule with the given priority fired.
func (r *RuleResult) FiredInGroup(priority int) bool {
	for _, a := range r.Applications {
		if a.Fired && a.Priority == priority {
			return true
		}
	}
	return false
}
