package rules

import (
	"fmt"
	"strings"

	"github.com/sells-group/plantcare/internal/config"
	"github.com/sells-group/plantcare/internal/model"
)

// Validate clamps every numeric parameter of rr into its bound and returns
// one violation per clamped parameter, in a fixed parameter order.
func Validate(rr *model.RuleResult, c config.ConstraintsConfig) []model.ConstraintViolation {
	var out []model.ConstraintViolation
	check := func(param string, v *float64, b config.Bound) {
		clamped := model.Clamp(*v, b.Min, b.Max)
		if clamped == *v {
			return
		}
		out = append(out, model.ConstraintViolation{
			Parameter: param, Value: *v, Min: b.Min, Max: b.Max, ClampedTo: clamped,
		})
		*v = clamped
	}

	check(model.ParamWateringInterval, &rr.WateringIntervalDays, c.WateringIntervalDays)
	check(model.ParamWaterAmount, &rr.WaterAmountML, c.WaterAmountML)
	check(model.ParamFertilizerInterval, &rr.FertilizerIntervalDays, c.FertilizerIntervalDays)
	check(model.ParamLightPPFDMin, &rr.LightPPFDMin, c.LightPPFD)
	check(model.ParamLightPPFDMax, &rr.LightPPFDMax, c.LightPPFD)
	check(model.ParamSoilMoistureTarget, &rr.SoilMoistureTarget, c.SoilMoistureTarget)
	check(model.ParamReviewInterval, &rr.ReviewIntervalDays, c.ReviewIntervalDays)

	if rr.LightPPFDMin > rr.LightPPFDMax {
		out = append(out, model.ConstraintViolation{
			Parameter: model.ParamLightPPFDMin, Value: rr.LightPPFDMin,
			Min: c.LightPPFD.Min, Max: rr.LightPPFDMax, ClampedTo: rr.LightPPFDMax,
		})
		rr.LightPPFDMin = rr.LightPPFDMax
	}
	return out
}

// ViolationAlert summarises violations as one info alert.
func ViolationAlert(violations []model.ConstraintViolation) model.Alert {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, fmt.Sprintf("%s %.4g clamped to %.4g", v.Parameter, v.Value, v.ClampedTo))
	}
	return model.Alert{
		Level:   model.AlertInfo,
		Code:    model.AlertCodeConstraintViolation,
		Message: "Adjusted to safe limits: " + strings.Join(parts, "; "),
	}
}

// param returns a pointer to the named numeric parameter of rr.
func param(rr *model.RuleResult, name string) *float64 {
	switch name {
	case model.ParamWateringInterval:
		return &rr.WateringIntervalDays
	case model.ParamWaterAmount:
		return &rr.WaterAmountML
	case model.ParamFertilizerInterval:
		return &rr.FertilizerIntervalDays
	case model.ParamLightPPFDMin:
		return &rr.LightPPFDMin
	case model.ParamLightPPFDMax:
		return &rr.LightPPFDMax
	case model.ParamSoilMoistureTarget:
		return &rr.SoilMoistureTarget
	case model.ParamReviewInterval:
		return &rr.ReviewIntervalDays
	}
	return nil
}
