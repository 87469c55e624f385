// Package environment turns daily weather around a plant's location into the
// environmental summary the context aggregator consumes.
package environment

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sells-group/plantcare/internal/config"
	"github.com/sells-group/plantcare/internal/model"
	"github.com/sells-group/plantcare/internal/resilience"
	"github.com/sells-group/plantcare/internal/tracing"
	"github.com/sells-group/plantcare/pkg/weather"
)

// ErrNoLocation is returned for plants without a usable location.
var ErrNoLocation = eris.New("environment: plant has no location")

// Provider looks up weather for plants through a rate-limited, retried,
// circuit-broken weather client.
type Provider struct {
	client  weather.Client
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	cfg     config.WeatherConfig
	nowFunc func() time.Time
}

// NewProvider creates a Provider. breakers may be nil, in which case the
// provider gets a private breaker.
func NewProvider(client weather.Client, breakers *resilience.ServiceBreakers, cfg config.WeatherConfig) *Provider {
	var cb *resilience.CircuitBreaker
	if breakers != nil {
		cb = breakers.Get(resilience.ServiceWeather)
	} else {
		cbCfg := resilience.DefaultCircuitBreakerConfig()
		cbCfg.Name = resilience.ServiceWeather
		cb = resilience.NewCircuitBreaker(cbCfg)
	}
	rc := resilience.FromWeatherConfig(cfg)
	rc.OnRetry = resilience.RetryLogger(resilience.ServiceWeather, "daily")
	return &Provider{
		client:  client,
		breaker: cb,
		retry:   rc,
		cfg:     cfg,
		nowFunc: time.Now,
	}
}

// Conditions returns the environmental summary for plant over the last
// lookbackDays plus the configured forecast window.
func (p *Provider) Conditions(ctx context.Context, plant *model.Plant, lookbackDays int) (*model.EnvironmentalData, error) {
	if plant == nil || !plant.Location.Valid() {
		return nil, ErrNoLocation
	}
	if lookbackDays < 1 {
		return nil, eris.Errorf("environment: lookback_days must be >= 1, got %d", lookbackDays)
	}

	ctx, span := tracing.StartSpan(ctx, "environment.conditions", attribute.String("plant_id", plant.ID))
	req := weather.DailyRequest{
		Lat:          plant.Location.Lat(),
		Lon:          plant.Location.Lon(),
		PastDays:     lookbackDays,
		ForecastDays: p.cfg.ForecastDays,
	}
	resp, err := resilience.Call(ctx, p.breaker, p.retry, func(ctx context.Context) (*weather.DailyResponse, error) {
		return p.client.Daily(ctx, req)
	})
	span.End(err)
	if err != nil {
		return nil, eris.Wrapf(err, "environment: weather for plant %s", plant.ID)
	}

	now := p.nowFunc()
	data := Summarize(resp.Days, SummaryInput{
		Lat:           plant.Location.Lat(),
		Indoor:        plant.Indoor,
		Now:           now,
		DaysRequested: lookbackDays + p.cfg.ForecastDays,
	}, p.cfg)

	zap.L().Debug("environment: conditions",
		zap.String("plant_id", plant.ID),
		zap.Int("days", len(data.Days)),
		zap.Int("heatwave_days", data.HeatwaveDays),
		zap.String("season", string(data.Season)),
	)
	return data, nil
}

// SummaryInput carries what Summarize needs besides the raw days.
type SummaryInput struct {
	Lat           float64
	Indoor        bool
	Now           time.Time
	DaysRequested int
}

// Summarize converts API days into EnvironmentalData. Days without both
// temperatures are dropped; missing humidity takes the window mean; missing
// daylight is computed from latitude and date. Indoor plants see values
// pulled toward the configured indoor baseline.
func Summarize(days []weather.Day, in SummaryInput, cfg config.WeatherConfig) *model.EnvironmentalData {
	data := &model.EnvironmentalData{
		DaysRequested: in.DaysRequested,
		Season:        SeasonAt(in.Now, in.Lat < 0),
	}

	var humSum float64
	var humN int
	for _, d := range days {
		if d.MeanHumidity != nil && model.Finite(*d.MeanHumidity) {
			humSum += *d.MeanHumidity
			humN++
		}
	}
	fillHumidity := cfg.IndoorBaseHumidity
	if humN > 0 {
		fillHumidity = humSum / float64(humN)
	}

	for _, d := range days {
		if d.MaxTempC == nil || d.MinTempC == nil || !model.Finite(*d.MaxTempC, *d.MinTempC) {
			continue
		}
		dw := model.DailyWeather{
			Date:            d.Date,
			MaxTemperatureC: *d.MaxTempC,
			MinTemperatureC: *d.MinTempC,
			MeanHumidity:    fillHumidity,
		}
		if d.MeanHumidity != nil && model.Finite(*d.MeanHumidity) {
			dw.MeanHumidity = *d.MeanHumidity
		}
		if d.DaylightHours != nil && model.Finite(*d.DaylightHours) {
			dw.DaylightHours = *d.DaylightHours
		} else {
			dw.DaylightHours = DaylightHours(in.Lat, d.Date)
		}
		if in.Indoor {
			dw = dampen(dw, cfg)
		}
		data.Days = append(data.Days, dw)
	}

	if len(data.Days) == 0 {
		data.DaylightHours = DaylightHours(in.Lat, in.Now)
		return data
	}

	data.MaxTemperatureC = math.Inf(-1)
	data.MinTemperatureC = math.Inf(1)
	var tempSum, humTotal, lightSum float64
	for _, d := range data.Days {
		tempSum += d.MeanTemperatureC()
		humTotal += d.MeanHumidity
		lightSum += d.DaylightHours
		data.MaxTemperatureC = math.Max(data.MaxTemperatureC, d.MaxTemperatureC)
		data.MinTemperatureC = math.Min(data.MinTemperatureC, d.MinTemperatureC)
	}
	n := float64(len(data.Days))
	data.AvgTemperatureC = tempSum / n
	data.AvgHumidity = humTotal / n
	data.DaylightHours = lightSum / n

	data.HeatwaveDays = longestRun(data.Days, func(d model.DailyWeather) bool {
		return d.MaxTemperatureC >= cfg.HeatwaveTempC
	})
	data.ColdSnapDays = longestRun(data.Days, func(d model.DailyWeather) bool {
		return d.MinTemperatureC <= cfg.ColdSnapTempC
	})
	data.ExtremeHumidityDays = longestRun(data.Days, func(d model.DailyWeather) bool {
		return d.MeanHumidity <= cfg.LowHumidity || d.MeanHumidity >= cfg.HighHumidity
	})
	return data
}

func dampen(d model.DailyWeather, cfg config.WeatherConfig) model.DailyWeather {
	w := model.Clamp01(cfg.IndoorWeight)
	pull := func(v, base float64) float64 { return base*w + v*(1-w) }
	d.MaxTemperatureC = pull(d.MaxTemperatureC, cfg.IndoorBaseTempC)
	d.MinTemperatureC = pull(d.MinTemperatureC, cfg.IndoorBaseTempC)
	d.MeanHumidity = pull(d.MeanHumidity, cfg.IndoorBaseHumidity)
	return d
}

// longestRun counts the longest streak of consecutive days matching pred.
func longestRun(days []model.DailyWeather, pred func(model.DailyWeather) bool) int {
	best, cur := 0, 0
	for _, d := range days {
		if pred(d) {
			cur++
			if cur > best {
				best = cur
			}
		} else {
			cur = 0
		}
	}
	return best
}
