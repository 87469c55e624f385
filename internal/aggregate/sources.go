package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/sells-group/plantcare/internal/config"
	"github.com/sells-group/plantcare/internal/environment"
	"github.com/sells-group/plantcare/internal/model"
)

// sourceScore is a sub-aggregation's quality score. A source without data
// carries no weight in the context confidence.
type sourceScore struct {
	score   float64
	hasData bool
}

// freshnessFactor is 1 while data is within staleHours and decays as
// staleHours/age afterwards, never below 0.2.
func freshnessFactor(ageHours, staleHours float64) float64 {
	if ageHours <= staleHours {
		return 1
	}
	return math.Max(0.2, staleHours/ageHours)
}

func summarizeSensors(readings []model.SensorReading, now time.Time, lookbackDays int, cfg config.AggregateConfig) (model.SensorContext, sourceScore) {
	sc := model.SensorContext{
		Averages:     map[string]float64{},
		Trends:       map[string]model.Trend{},
		ReadingCount: len(readings),
	}

	byType := map[string][]model.SensorReading{}
	var latest time.Time
	for _, r := range readings {
		if !model.Finite(r.Value) {
			sc.ReadingCount--
			continue
		}
		byType[r.SensorType] = append(byType[r.SensorType], r)
		if r.RecordedAt.After(latest) {
			latest = r.RecordedAt
		}
	}

	for _, st := range model.SensorTypes {
		rs, ok := byType[st]
		if !ok {
			sc.MissingSensors = append(sc.MissingSensors, st)
			sc.Trends[st] = model.TrendUnknown
			continue
		}
		var sum float64
		for _, r := range rs {
			sum += r.Value
		}
		sc.Averages[st] = sum / float64(len(rs))
		sc.Trends[st] = trend(rs, cfg.TrendThreshold)
	}

	if sc.ReadingCount == 0 {
		return sc, sourceScore{}
	}

	sc.FreshnessHours = math.Max(0, now.Sub(latest).Hours())
	observed := len(model.SensorTypes) - len(sc.MissingSensors)
	coverage := float64(observed) / float64(len(model.SensorTypes))
	expected := cfg.ExpectedReadingsPerDay * float64(lookbackDays) * float64(observed)
	completeness := 1.0
	if expected > 0 {
		completeness = math.Min(1, float64(sc.ReadingCount)/expected)
	}
	sc.Reliability = model.Clamp01(0.5*coverage + 0.5*completeness)

	return sc, sourceScore{
		score:   model.Clamp01(sc.Reliability * freshnessFactor(sc.FreshnessHours, cfg.StaleSensorHours)),
		hasData: true,
	}
}

// trend compares the mean of the older half of a series with the newer half.
func trend(rs []model.SensorReading, threshold float64) model.Trend {
	if len(rs) < 2 {
		return model.TrendUnknown
	}
	sorted := make([]model.SensorReading, len(rs))
	copy(sorted, rs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RecordedAt.Before(sorted[j].RecordedAt) })

	mid := len(sorted) / 2
	mean := func(xs []model.SensorReading) float64 {
		var s float64
		for _, x := range xs {
			s += x.Value
		}
		return s / float64(len(xs))
	}
	older, newer := mean(sorted[:mid]), mean(sorted[mid:])
	rel := (newer - older) / math.Max(math.Abs(older), 1)
	switch {
	case rel > threshold:
		return model.TrendRising
	case rel < -threshold:
		return model.TrendFalling
	default:
		return model.TrendStable
	}
}

func summarizeEnvironment(data *model.EnvironmentalData) (model.EnvironmentalContext, sourceScore) {
	if data == nil {
		return model.EnvironmentalContext{}, sourceScore{}
	}
	ec := model.EnvironmentalContext{
		Available:           true,
		AvgTemperatureC:     data.AvgTemperatureC,
		MaxTemperatureC:     data.MaxTemperatureC,
		MinTemperatureC:     data.MinTemperatureC,
		AvgHumidity:         data.AvgHumidity,
		DaylightHours:       data.DaylightHours,
		Season:              data.Season,
		HeatwaveDays:        data.HeatwaveDays,
		ColdSnapDays:        data.ColdSnapDays,
		ExtremeHumidityDays: data.ExtremeHumidityDays,
		DaysCovered:         len(data.Days),
		DaysRequested:       data.DaysRequested,
	}
	if ec.DaysCovered == 0 {
		ec.Available = false
		return ec, sourceScore{}
	}
	score := 1.0
	if ec.DaysCovered*2 < ec.DaysRequested {
		score = 0.8
	}
	return ec, sourceScore{score: score, hasData: true}
}

// seasonOnly is the environmental context for plants whose weather could not
// be fetched: season is still known from the calendar.
func seasonOnly(plant *model.Plant, now time.Time) model.EnvironmentalContext {
	return model.EnvironmentalContext{
		Season:        environment.SeasonAt(now, plant.Location.SouthernHemisphere()),
		DaylightHours: environment.DaylightHours(plant.Location.Lat(), now),
	}
}

func summarizeHealth(assessments []model.HealthAssessment, photos []model.GrowthPhoto, now time.Time, cfg config.AggregateConfig) (model.HealthContext, sourceScore) {
	hc := model.HealthContext{
		Status:                  model.HealthUnknown,
		AssessmentCount:         len(assessments),
		DaysSinceLastAssessment: -1,
	}
	hc.GrowthRateCMPerWeek, hc.GrowthObservationCount = growthRate(photos)

	if len(assessments) == 0 {
		return hc, sourceScore{}
	}

	last := assessments[0]
	for _, a := range assessments[1:] {
		if a.AssessedAt.After(last.AssessedAt) {
			last = a
		}
	}
	hc.Status = last.Status
	hc.Score = model.Clamp01(last.Score)
	hc.StressIndicators = append([]string(nil), last.StressIndicators...)
	days := int(math.Max(0, now.Sub(last.AssessedAt).Hours()/24))
	hc.DaysSinceLastAssessment = days

	decay := float64(days) / float64(cfg.HealthDecayDays)
	recency := 1 - decay*(1-cfg.HealthMinRecency)
	return hc, sourceScore{score: model.Clamp(recency, cfg.HealthMinRecency, 1), hasData: true}
}

// growthRate derives cm/week from the first and last photos with a height
// measurement at least a day apart.
func growthRate(photos []model.GrowthPhoto) (float64, int) {
	var measured []model.GrowthPhoto
	for _, p := range photos {
		if p.HeightCM != nil && model.Finite(*p.HeightCM) {
			measured = append(measured, p)
		}
	}
	if len(measured) < 2 {
		return 0, len(measured)
	}
	sort.SliceStable(measured, func(i, j int) bool { return measured[i].RecordedAt.Before(measured[j].RecordedAt) })
	first, last := measured[0], measured[len(measured)-1]
	weeks := last.RecordedAt.Sub(first.RecordedAt).Hours() / (24 * 7)
	if weeks < 1.0/7 {
		return 0, len(measured)
	}
	return (*last.HeightCM - *first.HeightCM) / weeks, len(measured)
}

func summarizeBehavior(events []model.CareEvent, lookbackDays int, cfg config.AggregateConfig) (model.UserBehaviorContext, sourceScore) {
	bc := model.UserBehaviorContext{
		EventCount:          len(events),
		Tendency:            model.TendencyUnknown,
		WateringConsistency: 0.5,
	}
	if len(events) == 0 {
		return bc, sourceScore{}
	}

	weeks := math.Max(float64(lookbackDays)/7, 1.0/7)
	bc.CareFrequencyPerWk = float64(len(events)) / weeks

	var onSchedule int
	var waterings []model.CareEvent
	for _, e := range events {
		if e.OnSchedule {
			onSchedule++
		}
		if e.EventType == model.EventWatering {
			waterings = append(waterings, e)
		}
	}
	bc.PlanAdherenceRate = model.Clamp01(float64(onSchedule) / float64(len(events)))

	sort.SliceStable(waterings, func(i, j int) bool { return waterings[i].OccurredAt.Before(waterings[j].OccurredAt) })
	intervals := make([]float64, 0, len(waterings))
	for i := 1; i < len(waterings); i++ {
		intervals = append(intervals, waterings[i].OccurredAt.Sub(waterings[i-1].OccurredAt).Hours()/24)
	}
	if len(intervals) > 0 {
		mean, sd := meanStd(intervals)
		bc.AvgWateringInterval = mean
		if len(intervals) >= 2 && mean > 0 {
			bc.WateringConsistency = model.Clamp01(1 - sd/mean)
		}
		bc.Tendency = tendency(waterings[1:], intervals, mean)
	}

	return bc, sourceScore{
		score:   model.Clamp01(float64(len(events)) / float64(cfg.BehaviorSaturation)),
		hasData: true,
	}
}

// tendency classifies off-schedule waterings as early or late relative to the
// owner's own average interval. Two more in one direction decides it.
func tendency(waterings []model.CareEvent, intervals []float64, mean float64) model.WateringTendency {
	var early, late int
	for i, e := range waterings {
		if e.OnSchedule {
			continue
		}
		switch {
		case intervals[i] < mean:
			early++
		case intervals[i] > mean:
			late++
		}
	}
	switch {
	case early >= late+2:
		return model.TendencyOverwatering
	case late >= early+2:
		return model.TendencyUnderwatering
	default:
		return model.TendencyBalanced
	}
}

func meanStd(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(xs)))
}

func summarizeHistory(outcomes []model.PlanOutcome, cfg config.AggregateConfig) (model.HistoricalContext, sourceScore) {
	hc := model.HistoricalContext{SeasonalSuccessRates: map[model.Season]float64{}}
	if len(outcomes) == 0 {
		return hc, sourceScore{}
	}

	var waterSum, fertSum float64
	var waterN, fertN int
	seasonTotal := map[model.Season]int{}
	seasonWins := map[model.Season]int{}
	for _, o := range outcomes {
		if o.Season != "" {
			seasonTotal[o.Season]++
		}
		if !o.Success {
			hc.FailureCount++
			continue
		}
		hc.SuccessCount++
		if o.Season != "" {
			seasonWins[o.Season]++
		}
		if o.WateringIntervalDays > 0 {
			waterSum += o.WateringIntervalDays
			waterN++
		}
		if o.FertilizerIntervalDays > 0 {
			fertSum += o.FertilizerIntervalDays
			fertN++
		}
	}
	if waterN > 0 {
		hc.BestWateringInterval = waterSum / float64(waterN)
	}
	if fertN > 0 {
		hc.BestFertilizerInterval = fertSum / float64(fertN)
	}
	for s, n := range seasonTotal {
		hc.SeasonalSuccessRates[s] = float64(seasonWins[s]) / float64(n)
	}

	return hc, sourceScore{
		score:   model.Clamp01(float64(len(outcomes)) / float64(cfg.HistoricalSaturation)),
		hasData: true,
	}
}
