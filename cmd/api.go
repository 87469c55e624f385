package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/plantcare/internal/advice"
	"github.com/sells-group/plantcare/internal/careplan"
	"github.com/sells-group/plantcare/internal/model"
	"github.com/sells-group/plantcare/internal/resilience"
	"github.com/sells-group/plantcare/internal/telemetry"
)

// maxBodyBytes caps request bodies; a full telemetry batch fits well inside.
const maxBodyBytes = 4 << 20

// buildRouter wires the HTTP API onto env. Routes whose service is nil
// answer 503.
func buildRouter(env *appEnv, corsOrigins []string, lookbackHours int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	h := &handlers{env: env, lookbackHours: lookbackHours}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", h.ready)
	r.Get("/metrics", h.metrics)

	r.Route("/plants/{plantID}", func(r chi.Router) {
		r.Post("/care-plan", h.generate)
		r.Get("/care-plan/versions", h.versions)
		r.Post("/advice", h.ask)
	})
	r.Route("/care-plans/{planID}", func(r chi.Router) {
		r.Get("/", h.getPlan)
		r.Post("/acknowledge", h.acknowledge)
		r.Post("/invalidate", h.invalidate)
	})
	r.Route("/telemetry", func(r chi.Router) {
		r.Post("/light-readings", h.lightReading)
		r.Post("/growth-photos", h.growthPhoto)
		r.Post("/batch", h.batch)
		r.Get("/sync/{syncID}", h.syncStatus)
		r.Post("/sync/{syncID}/resolve", h.resolve)
	})
	return r
}

type handlers struct {
	env           *appEnv
	lookbackHours int
}

func (h *handlers) ready(w http.ResponseWriter, r *http.Request) {
	if h.env == nil || h.env.Plans == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.env.Plans.Ready(ctx); err != nil {
		zap.L().Warn("readiness check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	body := map[string]any{"status": "ready"}
	if h.env.Breakers != nil {
		body["circuits"] = h.env.Breakers.States()
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handlers) metrics(w http.ResponseWriter, r *http.Request) {
	if h.env == nil || h.env.Collector == nil {
		writeError(w, errUnavailable)
		return
	}
	snap, err := h.env.Collector.Collect(r.Context(), h.lookbackHours)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	if !h.plansReady(w) {
		return
	}
	var req careplan.GenerateRequest
	if !decode(w, r, &req) {
		return
	}
	req.PlantID = chi.URLParam(r, "plantID")
	resp, err := h.env.Plans.Generate(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) versions(w http.ResponseWriter, r *http.Request) {
	if !h.plansReady(w) {
		return
	}
	plans, err := h.env.Plans.ListVersions(r.Context(), chi.URLParam(r, "plantID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": plans})
}

func (h *handlers) getPlan(w http.ResponseWriter, r *http.Request) {
	if !h.plansReady(w) {
		return
	}
	resp, err := h.env.Plans.GetPlan(r.Context(), chi.URLParam(r, "planID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) acknowledge(w http.ResponseWriter, r *http.Request) {
	if !h.plansReady(w) {
		return
	}
	var req struct {
		UserID string `json:"user_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.env.Plans.Acknowledge(r.Context(), chi.URLParam(r, "planID"), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) invalidate(w http.ResponseWriter, r *http.Request) {
	if !h.plansReady(w) {
		return
	}
	resp, err := h.env.Plans.Invalidate(r.Context(), chi.URLParam(r, "planID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) ask(w http.ResponseWriter, r *http.Request) {
	if h.env == nil || h.env.Advice == nil {
		writeError(w, errUnavailable)
		return
	}
	var req advice.Request
	if !decode(w, r, &req) {
		return
	}
	req.PlantID = chi.URLParam(r, "plantID")
	ans, err := h.env.Advice.Ask(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func (h *handlers) lightReading(w http.ResponseWriter, r *http.Request) {
	if !h.telemetryReady(w) {
		return
	}
	var lr model.LightReading
	if !decode(w, r, &lr) {
		return
	}
	receipt, err := h.env.Telemetry.IngestLightReading(r.Context(), &lr)
	writeReceipt(w, receipt, err)
}

func (h *handlers) growthPhoto(w http.ResponseWriter, r *http.Request) {
	if !h.telemetryReady(w) {
		return
	}
	var p model.GrowthPhoto
	if !decode(w, r, &p) {
		return
	}
	receipt, err := h.env.Telemetry.IngestGrowthPhoto(r.Context(), &p)
	writeReceipt(w, receipt, err)
}

func (h *handlers) batch(w http.ResponseWriter, r *http.Request) {
	if !h.telemetryReady(w) {
		return
	}
	var req struct {
		UserID string            `json:"user_id"`
		Items  []model.BatchItem `json:"items"`
	}
	if !decode(w, r, &req) {
		return
	}
	res, err := h.env.Telemetry.IngestBatch(r.Context(), req.UserID, req.Items)
	switch {
	case errors.Is(err, telemetry.ErrBatchFailed) && res != nil:
		writeJSON(w, http.StatusUnprocessableEntity, res)
	case err != nil:
		writeError(w, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *handlers) syncStatus(w http.ResponseWriter, r *http.Request) {
	if !h.telemetryReady(w) {
		return
	}
	st, err := h.env.Telemetry.GetSyncStatus(r.Context(), chi.URLParam(r, "syncID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handlers) resolve(w http.ResponseWriter, r *http.Request) {
	if !h.telemetryReady(w) {
		return
	}
	var req struct {
		UserID     string                   `json:"user_id"`
		Resolution model.ConflictResolution `json:"resolution"`
	}
	if !decode(w, r, &req) {
		return
	}
	st, err := h.env.Telemetry.ResolveConflict(r.Context(), chi.URLParam(r, "syncID"), req.UserID, req.Resolution)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handlers) plansReady(w http.ResponseWriter) bool {
	if h.env == nil || h.env.Plans == nil {
		writeError(w, errUnavailable)
		return false
	}
	return true
}

func (h *handlers) telemetryReady(w http.ResponseWriter) bool {
	if h.env == nil || h.env.Telemetry == nil {
		writeError(w, errUnavailable)
		return false
	}
	return true
}

// writeReceipt answers a single-item ingest: 201 for a new item, 200 for an
// idempotent duplicate, 409 for a conflict awaiting resolution.
func writeReceipt(w http.ResponseWriter, receipt *telemetry.Receipt, err error) {
	switch {
	case err != nil:
		writeError(w, err)
	case receipt.Status == model.SyncConflict:
		writeJSON(w, http.StatusConflict, receipt)
	case receipt.Duplicate:
		writeJSON(w, http.StatusOK, receipt)
	default:
		writeJSON(w, http.StatusCreated, receipt)
	}
}

var errUnavailable = errors.New("service unavailable")

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, careplan.ErrPlantNotFound),
		errors.Is(err, careplan.ErrPlanNotFound),
		errors.Is(err, telemetry.ErrSyncNotFound),
		errors.Is(err, advice.ErrPlantNotFound):
		return http.StatusNotFound
	case errors.Is(err, careplan.ErrInvalidInput),
		errors.Is(err, telemetry.ErrInvalidItem),
		errors.Is(err, telemetry.ErrInvalidBatch),
		errors.Is(err, advice.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, careplan.ErrInvalidTransition),
		errors.Is(err, telemetry.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, advice.ErrEmptyAnswer):
		return http.StatusBadGateway
	case errors.Is(err, errUnavailable),
		errors.Is(err, careplan.ErrGenerationTimeout),
		errors.Is(err, telemetry.ErrDeferred),
		resilience.IsTransient(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// decode reads a JSON body into dst. An empty body leaves dst zero.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
