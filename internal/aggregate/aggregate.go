// Package aggregate builds the PlantContext snapshot the rule engine and ML
// layer score against. Sub-aggregations run concurrently and degrade to
// empty sub-contexts on failure.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/plantcare/internal/config"
	"github.com/sells-group/plantcare/internal/environment"
	"github.com/sells-group/plantcare/internal/model"
	"github.com/sells-group/plantcare/internal/tracing"
)

var (
	// ErrInvalidInput is returned for a missing plant or non-positive lookback.
	ErrInvalidInput = eris.New("aggregate: invalid input")
	// ErrSourceTimeout marks a source that did not answer within its budget.
	ErrSourceTimeout = eris.New("aggregate: source timed out")
)

// SignalSource is the read side of the store the aggregator consumes.
type SignalSource interface {
	ListSensorReadings(ctx context.Context, plantID string, since time.Time) ([]model.SensorReading, error)
	ListHealthAssessments(ctx context.Context, plantID string, since time.Time) ([]model.HealthAssessment, error)
	ListGrowthPhotos(ctx context.Context, plantID string, since time.Time) ([]model.GrowthPhoto, error)
	ListCareEvents(ctx context.Context, plantID string, since time.Time) ([]model.CareEvent, error)
	ListPlanOutcomes(ctx context.Context, plantID string) ([]model.PlanOutcome, error)
}

// EnvironmentProvider supplies weather for a plant's location.
type EnvironmentProvider interface {
	Conditions(ctx context.Context, plant *model.Plant, lookbackDays int) (*model.EnvironmentalData, error)
}

// Aggregator merges every signal source into one PlantContext.
type Aggregator struct {
	signals SignalSource
	env     EnvironmentProvider
	cfg     config.AggregateConfig
	nowFunc func() time.Time
}

// New creates an Aggregator. env may be nil, in which case the environmental
// source is always reported unavailable.
func New(signals SignalSource, env EnvironmentProvider, cfg config.AggregateConfig) *Aggregator {
	return &Aggregator{signals: signals, env: env, cfg: cfg, nowFunc: time.Now}
}

// Aggregate builds the context for plant from the last lookbackDays of data.
// It only fails on invalid input; source failures are logged, defaulted, and
// reported as data_source_unavailable alerts.
func (a *Aggregator) Aggregate(ctx context.Context, plant *model.Plant, lookbackDays int) (*model.PlantContext, error) {
	if plant == nil || plant.ID == "" {
		return nil, eris.Wrap(ErrInvalidInput, "plant is required")
	}
	if lookbackDays <= 0 {
		return nil, eris.Wrapf(ErrInvalidInput, "lookback_days must be > 0, got %d", lookbackDays)
	}

	log := zap.L().With(zap.String("plant_id", plant.ID))
	now := a.nowFunc()
	since := now.AddDate(0, 0, -lookbackDays)
	healthSince := since
	if d := now.AddDate(0, 0, -a.cfg.HealthDecayDays); d.Before(healthSince) {
		healthSince = d
	}

	pctx := &model.PlantContext{
		PlantID:     plant.ID,
		Species:     plant.Species,
		AgeDays:     plant.AgeDays,
		PotSizeCM:   plant.PotSizeCM,
		Indoor:      plant.Indoor,
		GeneratedAt: now,
	}

	var (
		scores      = map[string]sourceScore{}
		unavailable = map[string]error{}
		mu          sync.Mutex
	)
	record := func(source string, res sourceResult) {
		mu.Lock()
		defer mu.Unlock()
		if res.err != nil {
			unavailable[source] = res.err
			return
		}
		if res.apply != nil {
			res.apply(pctx)
		}
		scores[source] = res.score
	}

	// trackSource runs one sub-aggregation under its own budget with logging
	// and a span. A source that overruns is abandoned and its late result
	// discarded. Errors never propagate to the group so siblings are not
	// cancelled.
	trackSource := func(source string, fn func(ctx context.Context) sourceResult) {
		start := time.Now()
		sctx, cancel := a.sourceContext(ctx)
		defer cancel()
		sctx, span := tracing.StartSpan(sctx, "aggregate."+source, attribute.String("plant_id", plant.ID))

		done := make(chan sourceResult, 1)
		go func() { done <- fn(sctx) }()

		var res sourceResult
		select {
		case res = <-done:
		case <-sctx.Done():
			res = sourceResult{err: eris.Wrapf(ErrSourceTimeout, "%s after %dms: %v",
				source, time.Since(start).Milliseconds(), sctx.Err())}
		}
		span.End(res.err)
		if res.err != nil {
			log.Warn("aggregate: source unavailable",
				zap.String("source", source),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.Error(res.err),
			)
		} else {
			log.Debug("aggregate: source complete",
				zap.String("source", source),
				zap.Bool("has_data", res.score.hasData),
				zap.Float64("score", res.score.score),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		}
		record(source, res)
	}

	var g errgroup.Group

	g.Go(func() error {
		trackSource(model.SourceSensor, func(ctx context.Context) sourceResult {
			readings, err := a.signals.ListSensorReadings(ctx, plant.ID, since)
			if err != nil {
				return sourceResult{err: err}
			}
			sc, s := summarizeSensors(readings, now, lookbackDays, a.cfg)
			return sourceResult{score: s, apply: func(p *model.PlantContext) { p.Sensor = sc }}
		})
		return nil
	})

	g.Go(func() error {
		trackSource(model.SourceEnvironmental, func(ctx context.Context) sourceResult {
			if a.env == nil {
				return sourceResult{err: eris.New("aggregate: no environment provider configured")}
			}
			data, err := a.env.Conditions(ctx, plant, lookbackDays)
			if err != nil {
				return sourceResult{err: err}
			}
			ec, s := summarizeEnvironment(data)
			return sourceResult{score: s, apply: func(p *model.PlantContext) { p.Environmental = ec }}
		})
		return nil
	})

	g.Go(func() error {
		trackSource(model.SourceHealth, func(ctx context.Context) sourceResult {
			assessments, err := a.signals.ListHealthAssessments(ctx, plant.ID, healthSince)
			if err != nil {
				return sourceResult{err: err}
			}
			// Growth photos only feed the growth rate; losing them keeps the
			// assessments.
			photos, err := a.signals.ListGrowthPhotos(ctx, plant.ID, since)
			if err != nil {
				log.Warn("aggregate: growth photos unavailable, skipping growth rate", zap.Error(err))
				photos = nil
			}
			hc, s := summarizeHealth(assessments, photos, now, a.cfg)
			return sourceResult{score: s, apply: func(p *model.PlantContext) { p.Health = hc }}
		})
		return nil
	})

	g.Go(func() error {
		trackSource(model.SourceBehavior, func(ctx context.Context) sourceResult {
			events, err := a.signals.ListCareEvents(ctx, plant.ID, since)
			if err != nil {
				return sourceResult{err: err}
			}
			bc, s := summarizeBehavior(events, lookbackDays, a.cfg)
			return sourceResult{score: s, apply: func(p *model.PlantContext) { p.Behavior = bc }}
		})
		return nil
	})

	g.Go(func() error {
		trackSource(model.SourceHistorical, func(ctx context.Context) sourceResult {
			outcomes, err := a.signals.ListPlanOutcomes(ctx, plant.ID)
			if err != nil {
				return sourceResult{err: err}
			}
			hc, s := summarizeHistory(outcomes, a.cfg)
			return sourceResult{score: s, apply: func(p *model.PlantContext) { p.Historical = hc }}
		})
		return nil
	})

	_ = g.Wait()

	a.defaultFailed(pctx, plant, now, unavailable)
	a.score(pctx, scores)
	a.annotate(pctx, unavailable)

	log.Info("aggregate: context built",
		zap.Float64("confidence", pctx.ConfidenceScore),
		zap.Strings("data_sources", pctx.DataSources),
		zap.Int("alerts", len(pctx.Alerts)),
	)
	return pctx, nil
}

// sourceResult is what one sub-aggregation produced. apply writes the
// sub-context and only runs for results that arrived in time.
type sourceResult struct {
	score sourceScore
	apply func(*model.PlantContext)
	err   error
}

// sourceContext bounds a single source by source_timeout_ms, inside any
// deadline ctx already carries. A zero budget leaves ctx as is.
func (a *Aggregator) sourceContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.SourceTimeoutMS <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(a.cfg.SourceTimeoutMS)*time.Millisecond)
}

// sourceOrder fixes the order of data sources, scores and alerts.
var sourceOrder = []string{
	model.SourceSensor, model.SourceEnvironmental, model.SourceHealth, model.SourceBehavior, model.SourceHistorical,
}

func (a *Aggregator) weight(source string) float64 {
	switch source {
	case model.SourceSensor:
		return a.cfg.Weights.Sensor
	case model.SourceEnvironmental:
		return a.cfg.Weights.Environmental
	case model.SourceHealth:
		return a.cfg.Weights.Health
	case model.SourceBehavior:
		return a.cfg.Weights.Behavior
	case model.SourceHistorical:
		return a.cfg.Weights.Historical
	}
	return 0
}

// defaultFailed resets the sub-context of every failed source to its empty
// value so a half-written summary never leaks into scoring.
func (a *Aggregator) defaultFailed(pctx *model.PlantContext, plant *model.Plant, now time.Time, unavailable map[string]error) {
	for source := range unavailable {
		switch source {
		case model.SourceSensor:
			pctx.Sensor, _ = summarizeSensors(nil, now, 1, a.cfg)
		case model.SourceEnvironmental:
			pctx.Environmental = seasonOnly(plant, now)
		case model.SourceHealth:
			pctx.Health, _ = summarizeHealth(nil, nil, now, a.cfg)
		case model.SourceBehavior:
			pctx.Behavior, _ = summarizeBehavior(nil, 1, a.cfg)
		case model.SourceHistorical:
			pctx.Historical, _ = summarizeHistory(nil, a.cfg)
		}
	}
}

// score combines per-source scores, weighting only sources that produced data.
func (a *Aggregator) score(pctx *model.PlantContext, scores map[string]sourceScore) {
	pctx.SourceScores = make(map[string]float64, len(sourceOrder))
	var num, den float64
	for _, source := range sourceOrder {
		s := scores[source]
		if !s.hasData {
			pctx.SourceScores[source] = 0
			continue
		}
		pctx.SourceScores[source] = model.Clamp01(s.score)
		pctx.DataSources = append(pctx.DataSources, source)
		w := a.weight(source)
		num += w * model.Clamp01(s.score)
		den += w
	}

	if den == 0 {
		pctx.ConfidenceScore = model.Clamp01(a.cfg.NoDataConfidence)
		pctx.Alerts = append(pctx.Alerts, model.Alert{
			Level:   model.AlertWarning,
			Code:    model.AlertCodeNoContextData,
			Message: "No sensor, weather, health, care or history data is available; recommendations use species defaults",
		})
		return
	}
	pctx.ConfidenceScore = model.Clamp01(num / den)
}

func (a *Aggregator) annotate(pctx *model.PlantContext, unavailable map[string]error) {
	sc := pctx.Sensor
	if sc.ReadingCount > 0 && sc.FreshnessHours > a.cfg.StaleSensorHours {
		pctx.Alerts = append(pctx.Alerts, model.Alert{
			Level:   model.AlertWarning,
			Code:    model.AlertCodeStaleSensorData,
			Message: fmt.Sprintf("Latest sensor reading is %.0f hours old", sc.FreshnessHours),
		})
	}
	if _, failed := unavailable[model.SourceSensor]; !failed && len(sc.MissingSensors) > 0 {
		pctx.Alerts = append(pctx.Alerts, model.Alert{
			Level:   model.AlertInfo,
			Code:    model.AlertCodeMissingSensors,
			Message: "No readings for: " + strings.Join(sc.MissingSensors, ", "),
		})
		pctx.Recommendations = append(pctx.Recommendations,
			"Add sensors for "+strings.Join(sc.MissingSensors, ", ")+" to improve plan accuracy")
	}

	env := pctx.Environmental
	if env.HeatwaveDays >= a.cfg.SustainedWeatherDays {
		pctx.Alerts = append(pctx.Alerts, model.Alert{
			Level:   model.AlertWarning,
			Code:    model.AlertCodeSustainedHeat,
			Message: fmt.Sprintf("%d consecutive days of extreme heat", env.HeatwaveDays),
		})
	}
	if env.ColdSnapDays >= a.cfg.SustainedWeatherDays {
		pctx.Alerts = append(pctx.Alerts, model.Alert{
			Level:   model.AlertWarning,
			Code:    model.AlertCodeSustainedCold,
			Message: fmt.Sprintf("%d consecutive days of extreme cold", env.ColdSnapDays),
		})
	}

	h := pctx.Health
	if h.Status == model.HealthCritical {
		pctx.Alerts = append(pctx.Alerts, model.Alert{
			Level:   model.AlertCritical,
			Code:    model.AlertCodeCriticalHealth,
			Message: "Latest health assessment is critical",
		})
	}
	switch {
	case h.AssessmentCount == 0 && unavailable[model.SourceHealth] == nil:
		pctx.Recommendations = append(pctx.Recommendations, "Log a health assessment so the plan can account for plant condition")
	case h.DaysSinceLastAssessment >= a.cfg.AssessmentReminderDays:
		pctx.Recommendations = append(pctx.Recommendations,
			fmt.Sprintf("Log a health assessment; the last one was %d days ago", h.DaysSinceLastAssessment))
	}

	if pctx.Behavior.AvgWateringInterval > 0 && pctx.Behavior.WateringConsistency < a.cfg.LowConsistencyThreshold {
		pctx.Recommendations = append(pctx.Recommendations, "Water on a more consistent schedule")
	}

	for _, source := range sourceOrder {
		err, ok := unavailable[source]
		if !ok {
			continue
		}
		msg := source + " data is temporarily unavailable"
		if errors.Is(err, environment.ErrNoLocation) {
			msg = "Set a location for this plant to include local weather"
		}
		pctx.Alerts = append(pctx.Alerts, model.Alert{
			Level:   model.AlertInfo,
			Code:    model.AlertCodeSourceUnavailable,
			Message: msg,
		})
	}
}
