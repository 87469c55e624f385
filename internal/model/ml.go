package model

// Adjustment names reported in GatedAdjustments and feature explanations.
const (
	AdjustWatering   = "watering"
	AdjustAmount     = "amount"
	AdjustFertilizer = "fertilizer"
)

// Direction of a feature's influence on the schedule.
const (
	DirectionIncrease = "increase"
	DirectionDecrease = "decrease"
	DirectionNeutral  = "neutral"
)

// Adjustment is one bounded multiplicative delta proposed by the ML layer.
// Value is what gets applied; it is exactly 0.0 whenever Gated is true.
type Adjustment struct {
	Raw        float64 `json:"raw"`
	Value      float64 `json:"value"`
	Confidence float64 `json:"confidence"`
	Threshold  float64 `json:"threshold"`
	Gated      bool    `json:"gated"`
}

// FeatureImportance explains how much one input drove the prediction.
type FeatureImportance struct {
	Name        string  `json:"name"`
	Importance  float64 `json:"importance"`
	Direction   string  `json:"direction"`
	Explanation string  `json:"explanation"`
}

// MLPrediction holds the adjustments layered on top of a RuleResult.
type MLPrediction struct {
	Watering         Adjustment          `json:"watering"`
	Amount           Adjustment          `json:"amount"`
	Fertilizer       Adjustment          `json:"fertilizer"`
	Features         []FeatureImportance `json:"features"`
	Uncertainty      float64             `json:"uncertainty"`
	Confidence       float64             `json:"confidence"`
	HorizonDays      int                 `json:"horizon_days"`
	GatedAdjustments []string            `json:"gated_adjustments"`
	FallbackUsed     bool                `json:"fallback_used"`
}

// AnyApplied reports whether at least one adjustment survived gating with a non-zero value.
func (p *MLPrediction) AnyApplied() bool {
	for _, a := range []Adjustment{p.Watering, p.Amount, p.Fertilizer} {
		if !a.Gated && a.Value != 0 {
			return true
		}
	}
	return false
}
