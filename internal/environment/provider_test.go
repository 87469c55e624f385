package environment

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/plantcare/internal/config"
	"github.com/sells-group/plantcare/internal/model"
	"github.com/sells-group/plantcare/internal/resilience"
	"github.com/sells-group/plantcare/pkg/weather"
)

type fakeWeather struct {
	calls atomic.Int32
	errs  []error
	resp  *weather.DailyResponse
	last  weather.DailyRequest
}

func (f *fakeWeather) Daily(_ context.Context, req weather.DailyRequest) (*weather.DailyResponse, error) {
	n := int(f.calls.Add(1)) - 1
	f.last = req
	if n < len(f.errs) && f.errs[n] != nil {
		return nil, f.errs[n]
	}
	return f.resp, nil
}

func testConfig() config.WeatherConfig {
	return config.WeatherConfig{
		TimeoutSecs:        1,
		ForecastDays:       3,
		HeatwaveTempC:      32,
		ColdSnapTempC:      5,
		LowHumidity:        25,
		HighHumidity:       85,
		IndoorBaseTempC:    21,
		IndoorBaseHumidity: 50,
		IndoorWeight:       0.7,
	}
}

func f64(v float64) *float64 { return &v }

func day(date string, maxT, minT, hum, light *float64) weather.Day {
	d, _ := time.Parse("2006-01-02", date)
	return weather.Day{Date: d, MaxTempC: maxT, MinTempC: minT, MeanHumidity: hum, DaylightHours: light}
}

func newTestProvider(client weather.Client) *Provider {
	p := NewProvider(client, nil, testConfig())
	p.retry.InitialBackoff = time.Millisecond
	p.retry.MaxBackoff = 2 * time.Millisecond
	p.nowFunc = func() time.Time { return time.Date(2026, 7, 10, 12, 0, 0, 0, time.UTC) }
	return p
}

func outdoorPlant() *model.Plant {
	return &model.Plant{ID: "p1", Species: "monstera", Location: model.NewLocation(40.7, -74.0)}
}

func TestConditions_NoLocation(t *testing.T) {
	p := newTestProvider(&fakeWeather{})

	_, err := p.Conditions(context.Background(), &model.Plant{ID: "p1"}, 7)
	assert.ErrorIs(t, err, ErrNoLocation)

	_, err = p.Conditions(context.Background(), nil, 7)
	assert.ErrorIs(t, err, ErrNoLocation)
}

func TestConditions_InvalidLookback(t *testing.T) {
	p := newTestProvider(&fakeWeather{})
	_, err := p.Conditions(context.Background(), outdoorPlant(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookback_days")
}

func TestConditions_Summarizes(t *testing.T) {
	fw := &fakeWeather{resp: &weather.DailyResponse{Days: []weather.Day{
		day("2026-07-05", f64(30), f64(20), f64(60), f64(15)),
		day("2026-07-06", f64(33), f64(22), f64(55), f64(15)),
		day("2026-07-07", f64(34), f64(23), f64(50), f64(15)),
		day("2026-07-08", f64(35), f64(24), f64(20), f64(15)),
		day("2026-07-09", f64(29), f64(21), nil, f64(15)),
		day("2026-07-10", nil, f64(21), f64(60), f64(15)),
	}}}
	p := newTestProvider(fw)

	data, err := p.Conditions(context.Background(), outdoorPlant(), 7)
	require.NoError(t, err)

	assert.Equal(t, 7, fw.last.PastDays)
	assert.Equal(t, 3, fw.last.ForecastDays)
	assert.InDelta(t, 40.7, fw.last.Lat, 1e-9)

	require.Len(t, data.Days, 5, "day without max temperature is dropped")
	assert.Equal(t, 10, data.DaysRequested)
	assert.Equal(t, 3, data.HeatwaveDays)
	assert.Equal(t, 0, data.ColdSnapDays)
	assert.Equal(t, 1, data.ExtremeHumidityDays)
	assert.Equal(t, 35.0, data.MaxTemperatureC)
	assert.Equal(t, 20.0, data.MinTemperatureC)
	assert.InDelta(t, 15.0, data.DaylightHours, 1e-9)
	assert.Equal(t, model.SeasonSummer, data.Season)
	// Missing humidity on 07-09 is filled with the mean of the five present values.
	assert.InDelta(t, 49.0, data.Days[4].MeanHumidity, 1e-9)
}

func TestConditions_RetriesTransient(t *testing.T) {
	fw := &fakeWeather{
		errs: []error{resilience.NewTransientError(errors.New("503"), 503)},
		resp: &weather.DailyResponse{Days: []weather.Day{day("2026-07-09", f64(25), f64(15), f64(50), nil)}},
	}
	p := newTestProvider(fw)

	data, err := p.Conditions(context.Background(), outdoorPlant(), 3)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fw.calls.Load())
	require.Len(t, data.Days, 1)
	assert.Greater(t, data.Days[0].DaylightHours, 14.0, "daylight computed from latitude in July")
}

func TestConditions_PermanentErrorNotRetried(t *testing.T) {
	fw := &fakeWeather{errs: []error{errors.New("weather: unexpected status 400")}}
	p := newTestProvider(fw)

	_, err := p.Conditions(context.Background(), outdoorPlant(), 3)
	require.Error(t, err)
	assert.Equal(t, int32(1), fw.calls.Load())
	assert.Contains(t, err.Error(), "plant p1")
}

func TestSummarize_IndoorDampening(t *testing.T) {
	days := []weather.Day{
		day("2026-01-10", f64(35), f64(-5), f64(90), f64(9)),
		day("2026-01-11", f64(35), f64(-5), f64(90), f64(9)),
		day("2026-01-12", f64(35), f64(-5), f64(90), f64(9)),
	}
	in := SummaryInput{Lat: 40, Now: time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), DaysRequested: 3}

	outdoor := Summarize(days, in, testConfig())
	assert.Equal(t, 3, outdoor.HeatwaveDays)
	assert.Equal(t, 3, outdoor.ColdSnapDays)
	assert.Equal(t, 3, outdoor.ExtremeHumidityDays)

	in.Indoor = true
	indoor := Summarize(days, in, testConfig())
	assert.InDelta(t, 25.2, indoor.MaxTemperatureC, 1e-9)
	assert.InDelta(t, 13.2, indoor.MinTemperatureC, 1e-9)
	assert.InDelta(t, 62.0, indoor.AvgHumidity, 1e-9)
	assert.Equal(t, 0, indoor.HeatwaveDays)
	assert.Equal(t, 0, indoor.ColdSnapDays)
	assert.Equal(t, 0, indoor.ExtremeHumidityDays)
	assert.Equal(t, model.SeasonWinter, indoor.Season)
}

func TestSummarize_NoDays(t *testing.T) {
	in := SummaryInput{Lat: -33.9, Now: time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), DaysRequested: 7}
	data := Summarize(nil, in, testConfig())
	assert.Empty(t, data.Days)
	assert.Equal(t, model.SeasonSummer, data.Season)
	assert.Greater(t, data.DaylightHours, 13.0)
}

func TestLongestRun(t *testing.T) {
	days := []model.DailyWeather{
		{MaxTemperatureC: 33}, {MaxTemperatureC: 34}, {MaxTemperatureC: 20},
		{MaxTemperatureC: 33}, {MaxTemperatureC: 33}, {MaxTemperatureC: 35}, {MaxTemperatureC: 10},
	}
	hot := func(d model.DailyWeather) bool { return d.MaxTemperatureC >= 32 }
	assert.Equal(t, 3, longestRun(days, hot))
	assert.Equal(t, 0, longestRun(nil, hot))
}
