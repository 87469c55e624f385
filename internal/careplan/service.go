// Package careplan orchestrates care plan generation: context aggregation,
// rules, ML adjustment, rationale, persistence and caching, plus the plan
// lifecycle transitions.
package careplan

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/plantcare/internal/aggregate"
	"github.com/sells-group/plantcare/internal/cache"
	"github.com/sells-group/plantcare/internal/config"
	"github.com/sells-group/plantcare/internal/ml"
	"github.com/sells-group/plantcare/internal/model"
	"github.com/sells-group/plantcare/internal/rationale"
	"github.com/sells-group/plantcare/internal/resilience"
	"github.com/sells-group/plantcare/internal/rules"
	"github.com/sells-group/plantcare/internal/store"
	"github.com/sells-group/plantcare/internal/tracing"
)

// Store is the persistence the orchestrator needs. store.Store satisfies it.
type Store interface {
	GetPlant(ctx context.Context, plantID string) (*model.Plant, error)
	SavePlan(ctx context.Context, plan *model.CarePlan) error
	GetPlan(ctx context.Context, planID string) (*model.CarePlan, error)
	LatestPlan(ctx context.Context, plantID string) (*model.CarePlan, error)
	ListPlanVersions(ctx context.Context, plantID string) ([]model.CarePlan, error)
	AcknowledgePlan(ctx context.Context, planID string, at time.Time) error
	InvalidatePlan(ctx context.Context, planID string, at time.Time) error
	ExpirePlans(ctx context.Context, now time.Time) (int, error)
	Ping(ctx context.Context) error
}

// ContextBuilder assembles the plant context. *aggregate.Aggregator satisfies it.
type ContextBuilder interface {
	Aggregate(ctx context.Context, plant *model.Plant, lookbackDays int) (*model.PlantContext, error)
}

// Service generates and manages care plans.
type Service struct {
	cfg      config.CarePlanConfig
	cacheCfg config.CacheConfig
	store    Store
	builder  ContextBuilder
	engine   *rules.Engine
	mode     rules.Mode
	model    *ml.Model
	explain  *rationale.Builder
	cache    cache.Cache
	flight   singleflight.Group
	nowFunc  func() time.Time
}

// NewService validates the pipeline configuration and wires the stages. A nil
// cache uses an in-memory cache.
func NewService(cfg *config.Config, st Store, cb ContextBuilder, catalog *rules.Catalog, c cache.Cache) (*Service, error) {
	mode, err := rules.ParseMode(cfg.CarePlan.Mode)
	if err != nil {
		return nil, eris.Wrap(err, "careplan: mode")
	}
	for _, validate := range []func() error{
		func() error { return aggregate.ValidateConfig(cfg.Aggregate) },
		func() error { return rules.ValidateConfig(cfg.Rules) },
		func() error { return ml.ValidateConfig(cfg.ML) },
		func() error { return rationale.ValidateConfig(cfg.Rationale) },
	} {
		if err := validate(); err != nil {
			return nil, err
		}
	}
	if c == nil {
		c = cache.NewMemory()
	}
	return &Service{
		cfg:      cfg.CarePlan,
		cacheCfg: cfg.Cache,
		store:    st,
		builder:  cb,
		engine:   rules.NewEngine(catalog, cfg.Rules),
		mode:     mode,
		model:    ml.New(cfg.ML),
		explain:  rationale.NewBuilder(cfg.Rationale),
		cache:    c,
		nowFunc:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Generate returns the plant's current plan, running the pipeline when no
// cached or recent plan exists or when forced.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*PlanResponse, error) {
	if strings.TrimSpace(req.PlantID) == "" || strings.TrimSpace(req.UserID) == "" {
		return nil, eris.Wrap(ErrInvalidInput, "plant_id and user_id are required")
	}
	if req.TargetDays == 0 {
		req.TargetDays = s.cfg.DefaultTargetDays
	}
	if req.TargetDays < 1 || req.TargetDays > s.cfg.MaxTargetDays {
		return nil, eris.Wrapf(ErrInvalidInput, "target_days must be between 1 and %d", s.cfg.MaxTargetDays)
	}

	plant, err := s.loadPlant(ctx, req.PlantID)
	if err != nil {
		return nil, err
	}
	if plant.UserID != "" && plant.UserID != req.UserID {
		return nil, eris.Wrapf(ErrInvalidInput, "plant %s belongs to another user", plant.ID)
	}

	log := zap.L().With(zap.String("plant_id", plant.ID))
	if !req.ForceRegenerate {
		if resp, ok := s.reuse(ctx, plant.ID); ok {
			return resp, nil
		}
	}

	v, err, shared := s.flight.Do(plant.ID, func() (any, error) {
		gctx := context.WithoutCancel(ctx)
		// A generation that finished between the check above and this
		// flight has already produced the plan.
		if !req.ForceRegenerate {
			if resp, ok := s.reuse(gctx, plant.ID); ok {
				return resp, nil
			}
		}
		return s.generate(gctx, plant, req)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug("careplan: joined in-flight generation")
	}
	resp := *v.(*PlanResponse)
	return &resp, nil
}

func (s *Service) generate(ctx context.Context, plant *model.Plant, req GenerateRequest) (_ *PlanResponse, err error) {
	start := s.nowFunc()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.GenerationDeadlineMS)*time.Millisecond)
	defer cancel()
	ctx, span := tracing.StartSpan(ctx, "careplan.generate",
		attribute.String("plant_id", plant.ID),
		attribute.Int("target_days", req.TargetDays),
	)
	defer func() { span.End(err) }()

	log := zap.L().With(zap.String("plant_id", plant.ID), zap.Bool("forced", req.ForceRegenerate))
	log.Info("careplan: generating")

	pctx, err := s.builder.Aggregate(ctx, plant, s.cfg.LookbackDays)
	if err != nil {
		return nil, s.stageErr(ctx, err, "aggregate context")
	}
	if req.Overrides != nil {
		pctx.Overrides = req.Overrides
	}
	if err := s.checkDeadline(ctx, plant.ID); err != nil {
		return nil, err
	}

	rr, err := s.engine.Apply(pctx, s.mode)
	if err != nil {
		log.Warn("careplan: rule engine failed, using fallback", zap.Error(err))
		rr = s.engine.Fallback(err.Error())
	}

	var mlAlerts []model.Alert
	pred, err := s.model.Predict(pctx, rr, req.TargetDays)
	if err != nil {
		log.Warn("careplan: ml adjustment failed, using fallback", zap.Error(err))
		pred = s.model.Fallback()
		mlAlerts = append(mlAlerts, ml.FallbackAlert(err.Error()))
	} else if a, ok := ml.GatedAlert(pred); ok {
		mlAlerts = append(mlAlerts, a)
	}

	final, _ := ml.Apply(rr, pred, s.engine.Constraints())
	southern := plant.Location.SouthernHemisphere()
	rat := s.explain.Build(rationale.Input{
		Recommendations: rationale.Recommendations(final, pred),
		Context:         pctx,
		Rules:           final,
		Prediction:      pred,
		Southern:        southern,
		Now:             start,
	})

	confidence := final.Confidence
	if pred.FallbackUsed {
		confidence = math.Min(confidence, pred.Confidence)
	}
	validTo := start.AddDate(0, 0, req.TargetDays)
	plan := &model.CarePlan{
		PlantID: plant.ID,
		UserID:  req.UserID,
		Status:  model.PlanStatusActive,
		Plan: model.PlanContent{
			WateringSchedule: model.WateringSchedule{
				IntervalDays: final.WateringIntervalDays,
				AmountML:     final.WaterAmountML,
				NextDate:     addDays(start, final.WateringIntervalDays),
				Adjustment:   pred.Watering.Value,
			},
			FertilizerSchedule: model.FertilizerSchedule{
				IntervalDays: final.FertilizerIntervalDays,
				Type:         final.FertilizerType,
				NextDate:     addDays(start, final.FertilizerIntervalDays),
				Adjustment:   pred.Fertilizer.Value,
			},
			LightTargets: model.LightTargets{
				PPFDMin:       final.LightPPFDMin,
				PPFDMax:       final.LightPPFDMax,
				DaylightHours: pctx.Environmental.DaylightHours,
			},
			SoilMoistureTarget: final.SoilMoistureTarget,
			ReviewIntervalDays: final.ReviewIntervalDays,
			Alerts:             mergeAlerts(pctx.Alerts, final.Alerts, mlAlerts),
		},
		Rationale:       rat,
		ConfidenceScore: model.Clamp01(confidence),
		ValidFrom:       start,
		ValidTo:         &validTo,
		DataSources:     pctx.DataSources,
		FallbackUsed:    final.FallbackUsed || pred.FallbackUsed,
		CreatedAt:       start,
	}

	if err := s.checkDeadline(ctx, plant.ID); err != nil {
		return nil, err
	}
	plan.GenerationTimeMS = s.nowFunc().Sub(start).Milliseconds()
	if err := s.store.SavePlan(ctx, plan); err != nil {
		return nil, s.stageErr(ctx, err, "save plan")
	}

	resp := NewResponse(plan)
	s.writeCache(ctx, resp)

	span.SetAttributes(attribute.Int("version", plan.Version), attribute.Float64("confidence", plan.ConfidenceScore))
	log.Info("careplan: plan generated",
		zap.Int("version", plan.Version),
		zap.Float64("confidence", plan.ConfidenceScore),
		zap.Bool("fallback", plan.FallbackUsed),
		zap.Int64("generation_ms", plan.GenerationTimeMS),
	)
	return resp, nil
}

// Acknowledge moves an active plan to acknowledged.
func (s *Service) Acknowledge(ctx context.Context, planID, userID string) (*PlanResponse, error) {
	plan, err := s.loadPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if userID == "" || plan.UserID != userID {
		return nil, eris.Wrapf(ErrInvalidInput, "plan %s does not belong to user %q", planID, userID)
	}
	now := s.nowFunc()
	if plan.Status != model.PlanStatusActive || !plan.ValidAt(now) {
		return nil, eris.Wrapf(ErrInvalidTransition, "plan %s is %s", planID, plan.Status)
	}
	if err := s.store.AcknowledgePlan(ctx, planID, now); err != nil {
		if errors.Is(err, store.ErrStateConflict) {
			return nil, eris.Wrapf(ErrInvalidTransition, "plan %s changed state", planID)
		}
		return nil, eris.Wrapf(err, "careplan: acknowledge %s", planID)
	}
	s.dropCache(ctx, plan.PlantID)
	zap.L().Info("careplan: plan acknowledged", zap.String("plan_id", planID), zap.String("plant_id", plan.PlantID))
	return s.GetPlan(ctx, planID)
}

// Invalidate ends a plan's validity now, whatever its state.
func (s *Service) Invalidate(ctx context.Context, planID string) (*PlanResponse, error) {
	plan, err := s.loadPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := s.store.InvalidatePlan(ctx, planID, s.nowFunc()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(ErrPlanNotFound, "plan %s", planID)
		}
		return nil, eris.Wrapf(err, "careplan: invalidate %s", planID)
	}
	s.dropCache(ctx, plan.PlantID)
	zap.L().Info("careplan: plan invalidated", zap.String("plan_id", planID), zap.String("plant_id", plan.PlantID))
	return s.GetPlan(ctx, planID)
}

// ExpireSweep marks plans whose validity window has elapsed as expired.
func (s *Service) ExpireSweep(ctx context.Context) (int, error) {
	n, err := s.store.ExpirePlans(ctx, s.nowFunc())
	if err != nil {
		return 0, eris.Wrap(err, "careplan: expire sweep")
	}
	if n > 0 {
		zap.L().Info("careplan: expired plans", zap.Int("count", n))
	}
	return n, nil
}

// GetPlan returns one plan by ID.
func (s *Service) GetPlan(ctx context.Context, planID string) (*PlanResponse, error) {
	plan, err := s.loadPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	return NewResponse(plan), nil
}

// ListVersions returns every stored plan version for a plant, newest first.
func (s *Service) ListVersions(ctx context.Context, plantID string) ([]PlanResponse, error) {
	if _, err := s.loadPlant(ctx, plantID); err != nil {
		return nil, err
	}
	plans, err := s.store.ListPlanVersions(ctx, plantID)
	if err != nil {
		return nil, eris.Wrapf(err, "careplan: list versions %s", plantID)
	}
	out := make([]PlanResponse, 0, len(plans))
	for i := range plans {
		out = append(out, *NewResponse(&plans[i]))
	}
	return out, nil
}

// Ready reports whether the store and cache are reachable. Configuration is
// validated by NewService.
func (s *Service) Ready(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return eris.Wrap(err, "careplan: store not ready")
	}
	if err := s.cache.Ping(ctx); err != nil {
		return eris.Wrap(err, "careplan: cache not ready")
	}
	return nil
}

// Catalog returns the species catalog used by the rule engine.
func (s *Service) Catalog() *rules.Catalog {
	return s.engine.Catalog()
}

func (s *Service) loadPlant(ctx context.Context, plantID string) (*model.Plant, error) {
	plant, err := s.store.GetPlant(ctx, plantID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(ErrPlantNotFound, "plant %s", plantID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "careplan: load plant %s", plantID)
	}
	return plant, nil
}

func (s *Service) loadPlan(ctx context.Context, planID string) (*model.CarePlan, error) {
	plan, err := s.store.GetPlan(ctx, planID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(ErrPlanNotFound, "plan %s", planID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "careplan: load plan %s", planID)
	}
	return plan, nil
}

// reuse returns the cached response or, failing that, a recent current plan,
// which it caches.
func (s *Service) reuse(ctx context.Context, plantID string) (*PlanResponse, bool) {
	log := zap.L().With(zap.String("plant_id", plantID))
	if resp, ok := s.cached(ctx, plantID); ok {
		log.Debug("careplan: cache hit")
		return resp, true
	}
	if resp, ok := s.recent(ctx, plantID); ok {
		log.Debug("careplan: recent plan reused", zap.Int("version", resp.Version))
		s.writeCache(ctx, resp)
		return resp, true
	}
	return nil, false
}

// cached returns the stored response bytes for the plant, decoded.
func (s *Service) cached(ctx context.Context, plantID string) (*PlanResponse, bool) {
	data, err := s.cache.Get(ctx, s.key(plantID))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			zap.L().Warn("careplan: cache read failed", zap.String("plant_id", plantID), zap.Error(err))
		}
		return nil, false
	}
	var resp PlanResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		zap.L().Warn("careplan: discarding undecodable cache entry", zap.String("plant_id", plantID), zap.Error(err))
		s.dropCache(ctx, plantID)
		return nil, false
	}
	if !resp.usableAt(s.nowFunc()) {
		s.dropCache(ctx, plantID)
		return nil, false
	}
	resp.FromCache = true
	return &resp, true
}

// recent returns the latest plan when it is current and younger than the
// recent-plan window.
func (s *Service) recent(ctx context.Context, plantID string) (*PlanResponse, bool) {
	if s.cfg.RecentPlanHours <= 0 {
		return nil, false
	}
	plan, err := s.store.LatestPlan(ctx, plantID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			zap.L().Warn("careplan: latest plan lookup failed", zap.String("plant_id", plantID), zap.Error(err))
		}
		return nil, false
	}
	now := s.nowFunc()
	if !plan.CurrentAt(now) || now.Sub(plan.CreatedAt) > time.Duration(s.cfg.RecentPlanHours)*time.Hour {
		return nil, false
	}
	return NewResponse(plan), true
}

func (s *Service) writeCache(ctx context.Context, resp *PlanResponse) {
	if s.cacheCfg.TTLMinutes <= 0 {
		return
	}
	stored := *resp
	stored.FromCache = false
	data, err := json.Marshal(&stored)
	if err != nil {
		zap.L().Warn("careplan: encode cache entry", zap.String("plant_id", resp.PlantID), zap.Error(err))
		return
	}
	ttl := time.Duration(s.cacheCfg.TTLMinutes) * time.Minute
	if err := s.cache.Set(ctx, s.key(resp.PlantID), data, ttl); err != nil {
		zap.L().Warn("careplan: cache write failed", zap.String("plant_id", resp.PlantID), zap.Error(err))
	}
}

func (s *Service) dropCache(ctx context.Context, plantID string) {
	if err := s.cache.Delete(ctx, s.key(plantID)); err != nil {
		zap.L().Warn("careplan: cache delete failed", zap.String("plant_id", plantID), zap.Error(err))
	}
}

func (s *Service) key(plantID string) string {
	return cache.PlanKey(s.cacheCfg.KeyPrefix, plantID)
}

func (s *Service) checkDeadline(ctx context.Context, plantID string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return resilience.NewTransientError(
			eris.Wrapf(ErrGenerationTimeout, "plant %s after %dms", plantID, s.cfg.GenerationDeadlineMS), 0)
	}
	return nil
}

// stageErr converts a deadline hit during a stage into ErrGenerationTimeout.
func (s *Service) stageErr(ctx context.Context, err error, stage string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return resilience.NewTransientError(
			eris.Wrapf(ErrGenerationTimeout, "%s after %dms", stage, s.cfg.GenerationDeadlineMS), 0)
	}
	return eris.Wrapf(err, "careplan: %s", stage)
}

func addDays(t time.Time, days float64) time.Time {
	return t.Add(time.Duration(days * float64(24*time.Hour)))
}

// mergeAlerts concatenates alert lists, dropping repeats of the same code
// and message.
func mergeAlerts(lists ...[]model.Alert) []model.Alert {
	seen := map[model.Alert]bool{}
	out := []model.Alert{}
	for _, l := range lists {
		for _, a := range l {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	return out
}
