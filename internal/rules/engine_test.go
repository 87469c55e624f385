package rules

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/plantcare/internal/model"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	c, err := LoadCatalog("")
	require.NoError(t, err)
	return NewEngine(c, DefaultConfig())
}

func springContext(species string) *model.PlantContext {
	return &model.PlantContext{
		PlantID:   "p1",
		Species:   species,
		AgeDays:   200,
		PotSizeCM: 15,
		Environmental: model.EnvironmentalContext{
			Available: true, AvgTemperatureC: 21, MaxTemperatureC: 25, MinTemperatureC: 16,
			AvgHumidity: 55, DaylightHours: 13, Season: model.SeasonSpring,
		},
		Health:          model.HealthContext{Status: model.HealthHealthy, Score: 0.8},
		ConfidenceScore: 0.8,
	}
}

func application(rr *model.RuleResult, name string) (model.RuleApplication, bool) {
	for _, a := range rr.Applications {
		if a.Rule == name {
			return a, true
		}
	}
	return model.RuleApplication{}, false
}

func ptr(v float64) *float64 { return &v }

func TestApply_Heatwave(t *testing.T) {
	e := newTestEngine(t)
	pctx := springContext("monstera")
	pctx.Environmental.HeatwaveDays = 4

	rr, err := e.Apply(pctx, ModeFull)
	require.NoError(t, err)

	assert.Equal(t, 5.0, rr.WateringIntervalDays)
	assert.Equal(t, 500.0, rr.WaterAmountML)
	assert.Equal(t, "monstera", rr.ProfileName)
	assert.Equal(t, model.MatchExact, rr.ProfileMatch)
	assert.InDelta(t, 0.8, rr.Confidence, 1e-9)
	assert.Empty(t, rr.Violations)

	a, ok := model.FindAlert(rr.Alerts, model.AlertCodeHeatwave)
	require.True(t, ok)
	assert.Equal(t, model.AlertWarning, a.Level)

	app, ok := application(rr, "heatwave_watering")
	require.True(t, ok)
	assert.True(t, app.Fired)
	assert.Equal(t, -2.0, app.Delta)
	assert.Equal(t, model.PriorityEnvironmental, app.Priority)

	app, ok = application(rr, "cold_snap_watering")
	require.True(t, ok)
	assert.False(t, app.Fired)
}

func TestApply_RecordsRulesInPriorityOrder(t *testing.T) {
	e := newTestEngine(t)
	rr, err := e.Apply(springContext("monstera"), ModeFull)
	require.NoError(t, err)

	require.NotEmpty(t, rr.Applications)
	assert.Equal(t, GroupSpeciesBase, rr.Applications[0].Group)
	for i := 1; i < len(rr.Applications); i++ {
		assert.LessOrEqual(t, rr.Applications[i-1].Priority, rr.Applications[i].Priority)
	}
}

func TestApply_ProfileMatch(t *testing.T) {
	e := newTestEngine(t)

	t.Run("partial", func(t *testing.T) {
		rr, err := e.Apply(springContext("ficus_lyrata"), ModeFull)
		require.NoError(t, err)
		assert.Equal(t, "ficus", rr.ProfileName)
		assert.Equal(t, model.MatchPartial, rr.ProfileMatch)
		assert.False(t, model.HasAlert(rr.Alerts, model.AlertCodeUnknownSpecies))
		assert.InDelta(t, 0.7, rr.Confidence, 1e-9)
	})

	t.Run("default", func(t *testing.T) {
		rr, err := e.Apply(springContext("Triffid"), ModeFull)
		require.NoError(t, err)
		assert.Equal(t, DefaultProfileName, rr.ProfileName)
		assert.Equal(t, 7.0, rr.WateringIntervalDays)
		a, ok := model.FindAlert(rr.Alerts, model.AlertCodeUnknownSpecies)
		require.True(t, ok)
		assert.Equal(t, model.AlertWarning, a.Level)
		assert.InDelta(t, 0.6, rr.Confidence, 1e-9)
	})
}

func TestApply_Deterministic(t *testing.T) {
	e := newTestEngine(t)
	pctx := springContext("pothos")
	pctx.Environmental.HeatwaveDays = 5
	pctx.Environmental.AvgHumidity = 20
	pctx.Health.StressIndicators = []string{model.StressUnderwatered}

	first, err := e.Apply(pctx, ModeFull)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := e.Apply(pctx, ModeFull)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestApply_Modes(t *testing.T) {
	e := newTestEngine(t)
	pctx := springContext("monstera")
	pctx.Environmental.HeatwaveDays = 4
	pctx.Overrides = &model.UserOverrides{WaterAmountML: ptr(650)}

	full, err := e.Apply(pctx, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 5.0, full.WateringIntervalDays)
	assert.Equal(t, 650.0, full.WaterAmountML)

	cons, err := e.Apply(pctx, ModeConservative)
	require.NoError(t, err)
	assert.Equal(t, 6.0, cons.WateringIntervalDays)
	assert.Equal(t, 500.0, cons.WaterAmountML)
	_, ok := application(cons, "override_water_amount")
	assert.False(t, ok)

	base, err := e.Apply(pctx, ModeBaseOnly)
	require.NoError(t, err)
	assert.Equal(t, 7.0, base.WateringIntervalDays)
	assert.False(t, model.HasAlert(base.Alerts, model.AlertCodeHeatwave))
	for _, a := range base.Applications {
		assert.LessOrEqual(t, a.Priority, model.PriorityPotSize)
	}

	_, err = e.Apply(pctx, Mode("aggressive"))
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestApply_PotSize(t *testing.T) {
	e := newTestEngine(t)

	small := springContext("monstera")
	small.PotSizeCM = 10
	rr, err := e.Apply(small, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 6.0, rr.WateringIntervalDays)
	assert.InDelta(t, 500*100.0/225.0, rr.WaterAmountML, 1e-9)

	large := springContext("monstera")
	large.PotSizeCM = 40
	rr, err = e.Apply(large, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 8.0, rr.WateringIntervalDays)
	assert.Equal(t, 3000.0, rr.WaterAmountML)
	require.Len(t, rr.Violations, 1)
	assert.Equal(t, model.ParamWaterAmount, rr.Violations[0].Parameter)

	unknown := springContext("monstera")
	unknown.PotSizeCM = 0
	rr, err = e.Apply(unknown, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 500.0, rr.WaterAmountML)
}

func TestApply_SeasonAndHumidity(t *testing.T) {
	e := newTestEngine(t)

	winter := springContext("monstera")
	winter.Environmental.Season = model.SeasonWinter
	winter.Environmental.AvgHumidity = 85
	rr, err := e.Apply(winter, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 10.0, rr.WateringIntervalDays)
	assert.Equal(t, 60.0, rr.FertilizerIntervalDays)
	assert.True(t, model.HasAlert(rr.Alerts, model.AlertCodeFertilizerPaused))
	a, ok := model.FindAlert(rr.Alerts, model.AlertCodeHighHumidity)
	require.True(t, ok)
	assert.Equal(t, model.AlertInfo, a.Level)

	summer := springContext("monstera")
	summer.Environmental.Season = model.SeasonSummer
	summer.Environmental.AvgHumidity = 25
	rr, err = e.Apply(summer, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 5.0, rr.WateringIntervalDays)
	a, ok = model.FindAlert(rr.Alerts, model.AlertCodeLowHumidity)
	require.True(t, ok)
	assert.Equal(t, model.AlertTip, a.Level)

	noEnv := springContext("monstera")
	noEnv.Environmental = model.EnvironmentalContext{}
	rr, err = e.Apply(noEnv, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 7.0, rr.WateringIntervalDays)
}

func TestApply_Health(t *testing.T) {
	e := newTestEngine(t)

	critical := springContext("monstera")
	critical.Health = model.HealthContext{
		Status: model.HealthCritical, Score: 0.15,
		StressIndicators: []string{model.StressOverwatered},
	}
	rr, err := e.Apply(critical, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 9.0, rr.WateringIntervalDays)
	assert.Equal(t, 44.0, rr.FertilizerIntervalDays)
	assert.Equal(t, 3.0, rr.ReviewIntervalDays)
	assert.True(t, rr.FiredInGroup(model.PriorityPlantHealth))
	assert.InDelta(t, 0.9, rr.Confidence, 1e-9)

	cons, err := e.Apply(critical, ModeConservative)
	require.NoError(t, err)
	assert.Equal(t, 8.0, cons.WateringIntervalDays)
	assert.Equal(t, 37.0, cons.FertilizerIntervalDays)
	assert.Equal(t, 5.0, cons.ReviewIntervalDays)

	lowScore := springContext("monstera")
	lowScore.Health = model.HealthContext{Status: model.HealthHealthy, Score: 0.3}
	rr, err = e.Apply(lowScore, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 44.0, rr.FertilizerIntervalDays)

	unknown := springContext("monstera")
	unknown.Health = model.HealthContext{Status: model.HealthUnknown}
	rr, err = e.Apply(unknown, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 30.0, rr.FertilizerIntervalDays)
	assert.False(t, rr.FiredInGroup(model.PriorityPlantHealth))
}

func TestApply_OverrideClamped(t *testing.T) {
	e := newTestEngine(t)
	pctx := springContext("monstera")
	pctx.Overrides = &model.UserOverrides{WateringIntervalDays: ptr(45), FertilizerIntervalDays: ptr(21)}

	rr, err := e.Apply(pctx, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 30.0, rr.WateringIntervalDays)
	assert.Equal(t, 21.0, rr.FertilizerIntervalDays)
	require.Len(t, rr.Violations, 1)
	assert.Equal(t, model.ConstraintViolation{
		Parameter: model.ParamWateringInterval, Value: 45, Min: 1, Max: 30, ClampedTo: 30,
	}, rr.Violations[0])

	a, ok := model.FindAlert(rr.Alerts, model.AlertCodeConstraintViolation)
	require.True(t, ok)
	assert.Equal(t, model.AlertInfo, a.Level)
	assert.InDelta(t, 0.7, rr.Confidence, 1e-9)
}

func TestApply_ConfidenceFloor(t *testing.T) {
	e := newTestEngine(t)
	pctx := springContext("Triffid")
	pctx.ConfidenceScore = 0.1

	rr, err := e.Apply(pctx, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().MinConfidence, rr.Confidence)
}

func TestApply_InvalidContext(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Apply(nil, ModeFull)
	assert.ErrorIs(t, err, ErrInvalidContext)

	nan := springContext("monstera")
	nan.Environmental.AvgTemperatureC = math.NaN()
	_, err = e.Apply(nan, ModeFull)
	assert.ErrorIs(t, err, ErrInvalidContext)

	inf := springContext("monstera")
	inf.Sensor.Averages = map[string]float64{model.SensorSoilMoisture: math.Inf(1)}
	_, err = e.Apply(inf, ModeFull)
	assert.ErrorIs(t, err, ErrInvalidContext)

	neg := springContext("monstera")
	neg.PotSizeCM = -3
	_, err = e.Apply(neg, ModeFull)
	assert.ErrorIs(t, err, ErrInvalidContext)

	zero := springContext("monstera")
	zero.Overrides = &model.UserOverrides{WaterAmountML: ptr(0)}
	_, err = e.Apply(zero, ModeFull)
	assert.ErrorIs(t, err, ErrInvalidContext)
}

func TestApplyWith_Catalog(t *testing.T) {
	e := NewEngine(nil, DefaultConfig())
	rr, err := e.Apply(springContext("monstera"), ModeFull)
	require.NoError(t, err)
	assert.Equal(t, model.MatchDefault, rr.ProfileMatch)

	custom, err := NewCatalog([]Profile{{
		Name: "monstera", WateringIntervalDays: 11, WaterAmountML: 300, FertilizerIntervalDays: 30,
		FertilizerType: "balanced_liquid", LightPPFDMin: 100, LightPPFDMax: 300,
		SoilMoistureTarget: 0.5, ReviewIntervalDays: 7,
	}})
	require.NoError(t, err)
	rr, err = e.ApplyWith(springContext("monstera"), custom, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, 11.0, rr.WateringIntervalDays)
	assert.Equal(t, model.MatchExact, rr.ProfileMatch)
}

func TestFallback(t *testing.T) {
	e := newTestEngine(t)
	rr := e.Fallback("boom")

	assert.True(t, rr.FallbackUsed)
	assert.Equal(t, DefaultProfileName, rr.ProfileName)
	assert.Equal(t, model.MatchDefault, rr.ProfileMatch)
	assert.Equal(t, 0.3, rr.Confidence)
	assert.Equal(t, 7.0, rr.WateringIntervalDays)
	assert.Empty(t, rr.Violations)
	a, ok := model.FindAlert(rr.Alerts, model.AlertCodeRuleEngineFallback)
	require.True(t, ok)
	assert.Equal(t, model.AlertWarning, a.Level)
	assert.Contains(t, a.Message, "boom")
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"full", "conservative", "base_only"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, Mode(s), m)
	}
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeFull, m)

	_, err = ParseMode("FULL")
	assert.ErrorIs(t, err, ErrUnknownMode)
}
