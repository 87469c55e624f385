package rationale

import "github.com/sells-group/plantcare/internal/model"

// Recommendations lists the schedule values of a final rule result. Values
// the ML layer moved carry the mean of the rule and adjustment confidences.
func Recommendations(rr *model.RuleResult, pred *model.MLPrediction) []model.Recommendation {
	if rr == nil {
		return nil
	}
	recs := []model.Recommendation{
		{Name: model.ParamWateringInterval, Value: rr.WateringIntervalDays, Unit: "days"},
		{Name: model.ParamWaterAmount, Value: rr.WaterAmountML, Unit: "ml"},
		{Name: model.ParamFertilizerInterval, Value: rr.FertilizerIntervalDays, Unit: "days"},
		{Name: model.ParamLightPPFDMin, Value: rr.LightPPFDMin, Unit: "ppfd"},
		{Name: model.ParamLightPPFDMax, Value: rr.LightPPFDMax, Unit: "ppfd"},
		{Name: model.ParamSoilMoistureTarget, Value: rr.SoilMoistureTarget, Unit: "fraction"},
		{Name: model.ParamReviewInterval, Value: rr.ReviewIntervalDays, Unit: "days"},
	}
	for i := range recs {
		recs[i].Confidence = rr.Confidence
		if pred == nil || pred.FallbackUsed {
			continue
		}
		if adj, ok := adjustmentFor(recs[i].Name, pred); ok && !adj.Gated && adj.Value != 0 {
			recs[i].Confidence = (rr.Confidence + adj.Confidence) / 2
		}
	}
	return recs
}
