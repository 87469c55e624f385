package ml

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/plantcare/internal/config"
	"github.com/sells-group/plantcare/internal/model"
)

// ErrInvalidInput is returned by Predict for missing or non-finite inputs.
var ErrInvalidInput = eris.New("ml: invalid input")

// Model computes schedule adjustments from a plant context. It holds no
// mutable state and is safe for concurrent use.
type Model struct {
	cfg config.MLConfig
}

// New creates a Model with cfg.
func New(cfg config.MLConfig) *Model {
	return &Model{cfg: cfg}
}

// Predict returns the adjustments for rr over horizonDays. Each adjustment is
// the mean of the capped factor contributions. Its confidence is the mean
// confidence of the factors that moved it, and an adjustment whose confidence
// is below its threshold is applied as exactly zero. The prediction's overall
// confidence averages every factor.
func (m *Model) Predict(pctx *model.PlantContext, rr *model.RuleResult, horizonDays int) (*model.MLPrediction, error) {
	if pctx == nil || rr == nil {
		return nil, eris.Wrap(ErrInvalidInput, "context and rule result are required")
	}
	if horizonDays < 0 {
		return nil, eris.Wrapf(ErrInvalidInput, "horizon %d days", horizonDays)
	}
	if !model.Finite(pctx.ConfidenceScore, pctx.Sensor.Reliability, rr.WateringIntervalDays, rr.FertilizerIntervalDays) {
		return nil, eris.Wrapf(ErrInvalidInput, "plant %s has non-finite inputs", pctx.PlantID)
	}

	fs := computeFactors(pctx, rr, m.cfg)

	var w, a, f, conf float64
	for _, x := range fs {
		w += x.watering
		a += x.amount
		f += x.fertilizer
		conf += x.confidence
	}
	n := float64(len(fs))
	decay := (0.5 + 0.5*model.Clamp01(pctx.Sensor.Reliability)) * (0.5 + 0.5*model.Clamp01(pctx.ConfidenceScore))
	mean := conf / n
	conf = model.Clamp01(mean * decay)
	wConf := model.Clamp01(contributorConfidence(fs, func(x factor) float64 { return x.watering }, mean) * decay)
	aConf := model.Clamp01(contributorConfidence(fs, func(x factor) float64 { return x.amount }, mean) * decay)
	fConf := model.Clamp01(contributorConfidence(fs, func(x factor) float64 { return x.fertilizer }, mean) * decay)

	pred := &model.MLPrediction{
		Watering:    gate(w/n, m.cfg.MaxWateringAdjustment, wConf, m.cfg.WateringThreshold),
		Amount:      gate(a/n, m.cfg.MaxAmountAdjustment, aConf, m.cfg.AmountThreshold),
		Fertilizer:  gate(f/n, m.cfg.MaxFertilizerAdjustment, fConf, m.cfg.FertilizerThreshold),
		Features:    importances(fs),
		Confidence:  conf,
		Uncertainty: model.Clamp01(1 - conf + m.cfg.HorizonUncertainty*float64(horizonDays)),
		HorizonDays: horizonDays,
	}
	for _, g := range []struct {
		name string
		adj  model.Adjustment
	}{
		{model.AdjustWatering, pred.Watering},
		{model.AdjustAmount, pred.Amount},
		{model.AdjustFertilizer, pred.Fertilizer},
	} {
		if g.adj.Gated {
			pred.GatedAdjustments = append(pred.GatedAdjustments, g.name)
		}
	}
	if !model.Finite(pred.Watering.Value, pred.Amount.Value, pred.Fertilizer.Value, pred.Confidence, pred.Uncertainty) {
		return nil, eris.Wrapf(ErrInvalidInput, "plant %s produced non-finite adjustments", pctx.PlantID)
	}
	return pred, nil
}

// Fallback returns the fixed prediction used when Predict fails: every
// adjustment zero at the configured fallback confidence.
func (m *Model) Fallback() *model.MLPrediction {
	zero := func(threshold float64) model.Adjustment {
		return model.Adjustment{Confidence: m.cfg.FallbackConfidence, Threshold: threshold}
	}
	return &model.MLPrediction{
		Watering:     zero(m.cfg.WateringThreshold),
		Amount:       zero(m.cfg.AmountThreshold),
		Fertilizer:   zero(m.cfg.FertilizerThreshold),
		Confidence:   m.cfg.FallbackConfidence,
		Uncertainty:  1,
		FallbackUsed: true,
	}
}

// contributorConfidence averages the confidence of factors with a non-zero
// contribution under pick, or returns fallback when no factor contributes.
func contributorConfidence(fs []factor, pick func(factor) float64, fallback float64) float64 {
	var sum float64
	var n int
	for _, x := range fs {
		if pick(x) != 0 {
			sum += x.confidence
			n++
		}
	}
	if n == 0 {
		return fallback
	}
	return sum / float64(n)
}

func gate(raw, limit, conf, threshold float64) model.Adjustment {
	adj := model.Adjustment{
		Raw:        model.Clamp(raw, -limit, limit),
		Confidence: conf,
		Threshold:  threshold,
	}
	if conf < threshold {
		adj.Gated = true
		return adj
	}
	adj.Value = adj.Raw
	return adj
}

// importances ranks factors by their share of total absolute contribution.
func importances(fs []factor) []model.FeatureImportance {
	total := 0.0
	for _, f := range fs {
		total += absSum(f)
	}
	out := make([]model.FeatureImportance, 0, len(fs))
	for _, f := range fs {
		fi := model.FeatureImportance{
			Name:        f.name,
			Direction:   model.DirectionNeutral,
			Explanation: f.explanation,
		}
		if total > 0 {
			fi.Importance = absSum(f) / total
		}
		switch in := f.intensity(); {
		case in > 1e-12:
			fi.Direction = model.DirectionIncrease
		case in < -1e-12:
			fi.Direction = model.DirectionDecrease
		}
		out = append(out, fi)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func absSum(f factor) float64 {
	return math.Abs(f.watering) + math.Abs(f.amount) + math.Abs(f.fertilizer)
}

// GatedAlert describes gated adjustments, if any.
func GatedAlert(pred *model.MLPrediction) (model.Alert, bool) {
	if pred == nil || pred.FallbackUsed || len(pred.GatedAdjustments) == 0 {
		return model.Alert{}, false
	}
	return model.Alert{
		Level: model.AlertInfo,
		Code:  model.AlertCodeMLGated,
		Message: fmt.Sprintf("Not enough confidence (%.0f%%) to fine-tune %s; using the base schedule",
			pred.Confidence*100, strings.Join(pred.GatedAdjustments, ", ")),
	}, true
}

// FallbackAlert is attached to plans built on the fallback prediction.
func FallbackAlert(reason string) model.Alert {
	return model.Alert{
		Level:   model.AlertWarning,
		Code:    model.AlertCodeMLFallback,
		Message: "Fine-tuning unavailable (" + reason + "); using the base schedule",
	}
}
