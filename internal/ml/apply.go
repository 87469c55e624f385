package ml

import (
	"github.com/sells-group/plantcare/internal/config"
	"github.com/sells-group/plantcare/internal/model"
	"github.com/sells-group/plantcare/internal/rules"
)

// Apply returns a copy of rr with the prediction's applied adjustments
// scaled into the watering interval, water amount and fertilizer interval,
// clamped back into c. The returned violations are those introduced by the
// adjustment; they are also appended to the copy.
func Apply(rr *model.RuleResult, pred *model.MLPrediction, c config.ConstraintsConfig) (*model.RuleResult, []model.ConstraintViolation) {
	out := *rr
	out.Applications = append([]model.RuleApplication(nil), rr.Applications...)
	out.Alerts = append([]model.Alert(nil), rr.Alerts...)
	out.Violations = append([]model.ConstraintViolation(nil), rr.Violations...)
	if pred == nil {
		return &out, nil
	}

	out.WateringIntervalDays *= 1 + pred.Watering.Value
	out.WaterAmountML *= 1 + pred.Amount.Value
	out.FertilizerIntervalDays *= 1 + pred.Fertilizer.Value

	v := rules.Validate(&out, c)
	if len(v) > 0 {
		out.Violations = append(out.Violations, v...)
		out.Alerts = append(out.Alerts, rules.ViolationAlert(v))
	}
	return &out, v
}
