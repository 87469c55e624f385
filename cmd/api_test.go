package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/plantcare/internal/advice"
	"github.com/sells-group/plantcare/internal/careplan"
	"github.com/sells-group/plantcare/internal/config"
	"github.com/sells-group/plantcare/internal/model"
	"github.com/sells-group/plantcare/internal/resilience"
	"github.com/sells-group/plantcare/internal/telemetry"
)

func newTestEnv(t *testing.T) *appEnv {
	t.Helper()
	c, err := config.Load()
	require.NoError(t, err)
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "plantcare.db")
	c.Anthropic.Key = ""
	c.Tracing.Endpoint = ""

	env, err := initEnv(context.Background(), c, "serve")
	require.NoError(t, err)
	t.Cleanup(env.Close)

	require.NoError(t, env.Store.UpsertPlant(context.Background(), &model.Plant{
		ID:        "plant-1",
		UserID:    "user-1",
		Name:      "Monty",
		Species:   "monstera",
		AgeDays:   200,
		PotSizeCM: 20,
		Indoor:    true,
		CreatedAt: time.Now().UTC(),
	}))
	return env
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	h := buildRouter(nil, []string{"*"}, 24)

	rr := doJSON(t, h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRoutes_NilEnvUnavailable(t *testing.T) {
	h := buildRouter(nil, nil, 24)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/ready"},
		{http.MethodGet, "/metrics"},
		{http.MethodPost, "/plants/plant-1/care-plan"},
		{http.MethodPost, "/plants/plant-1/advice"},
		{http.MethodPost, "/telemetry/light-readings"},
	} {
		rr := doJSON(t, h, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code, "%s %s", tc.method, tc.path)
	}
}

func TestCarePlanLifecycle(t *testing.T) {
	env := newTestEnv(t)
	h := buildRouter(env, []string{"*"}, 24)

	rr := doJSON(t, h, http.MethodPost, "/plants/plant-1/care-plan", map[string]any{"user_id": "user-1"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var plan careplan.PlanResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &plan))
	assert.Equal(t, "plant-1", plan.PlantID)
	assert.Equal(t, 1, plan.Version)
	assert.Equal(t, model.PlanStatusActive, plan.Status)
	require.NotEmpty(t, plan.PlanID)

	rr = doJSON(t, h, http.MethodGet, "/care-plans/"+plan.PlanID, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, http.MethodPost, "/care-plans/"+plan.PlanID+"/acknowledge", map[string]string{"user_id": "someone-else"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, h, http.MethodPost, "/care-plans/"+plan.PlanID+"/acknowledge", map[string]string{"user_id": "user-1"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var acked careplan.PlanResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &acked))
	assert.Equal(t, model.PlanStatusAcknowledged, acked.Status)
	assert.NotNil(t, acked.AcknowledgedAt)

	rr = doJSON(t, h, http.MethodPost, "/care-plans/"+plan.PlanID+"/acknowledge", map[string]string{"user_id": "user-1"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/plants/plant-1/care-plan/versions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var versions struct {
		Versions []careplan.PlanResponse `json:"versions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &versions))
	assert.Len(t, versions.Versions, 1)
}

func TestCarePlan_UnknownPlant(t *testing.T) {
	env := newTestEnv(t)
	h := buildRouter(env, nil, 24)

	rr := doJSON(t, h, http.MethodPost, "/plants/missing/care-plan", map[string]any{"user_id": "user-1"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/care-plans/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCarePlan_InvalidBody(t *testing.T) {
	env := newTestEnv(t)
	h := buildRouter(env, nil, 24)

	req := httptest.NewRequest(http.MethodPost, "/plants/plant-1/care-plan", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdvice_DisabledWithoutKey(t *testing.T) {
	env := newTestEnv(t)
	h := buildRouter(env, nil, 24)

	rr := doJSON(t, h, http.MethodPost, "/plants/plant-1/advice", map[string]string{"question": "why are the leaves yellow?"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}

func TestTelemetry_LightReadingReceipts(t *testing.T) {
	env := newTestEnv(t)
	h := buildRouter(env, nil, 24)
	recorded := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	reading := map[string]any{
		"client_id":   "client-1",
		"plant_id":    "plant-1",
		"user_id":     "user-1",
		"ppfd":        220.0,
		"recorded_at": recorded,
	}

	rr := doJSON(t, h, http.MethodPost, "/telemetry/light-readings", reading)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var first telemetry.Receipt
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &first))
	assert.Equal(t, model.SyncSynced, first.Status)

	rr = doJSON(t, h, http.MethodPost, "/telemetry/light-readings", reading)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var dup telemetry.Receipt
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dup))
	assert.True(t, dup.Duplicate)
	assert.Equal(t, first.ID, dup.ID)

	reading["ppfd"] = 480.0
	rr = doJSON(t, h, http.MethodPost, "/telemetry/light-readings", reading)
	require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())
	var conflict telemetry.Receipt
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &conflict))
	require.NotEmpty(t, conflict.SyncID)

	rr = doJSON(t, h, http.MethodGet, "/telemetry/sync/"+conflict.SyncID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var st model.TelemetrySyncStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, model.SyncConflict, st.Status)

	rr = doJSON(t, h, http.MethodGet, "/telemetry/sync/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTelemetry_InvalidReading(t *testing.T) {
	env := newTestEnv(t)
	h := buildRouter(env, nil, 24)

	rr := doJSON(t, h, http.MethodPost, "/telemetry/light-readings", map[string]any{
		"plant_id":    "plant-1",
		"user_id":     "user-1",
		"ppfd":        -5.0,
		"recorded_at": time.Now().UTC().Add(-time.Minute),
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTelemetry_BatchAllFailed(t *testing.T) {
	env := newTestEnv(t)
	h := buildRouter(env, nil, 24)

	rr := doJSON(t, h, http.MethodPost, "/telemetry/batch", map[string]any{
		"user_id": "user-1",
		"items": []map[string]any{
			{"type": "light_reading", "light_reading": map[string]any{
				"plant_id": "missing", "user_id": "user-1", "ppfd": 100.0,
				"recorded_at": time.Now().UTC().Add(-time.Minute),
			}},
		},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
	var res model.BatchResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, 1, res.TotalItems)
	assert.Equal(t, 1, res.FailedItems)
	assert.Len(t, res.Errors, 1)
}

func TestTelemetry_EmptyBatch(t *testing.T) {
	env := newTestEnv(t)
	h := buildRouter(env, nil, 24)

	rr := doJSON(t, h, http.MethodPost, "/telemetry/batch", map[string]any{"user_id": "user-1"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	h := buildRouter(env, nil, 24)

	rr := doJSON(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plant not found", eris.Wrap(careplan.ErrPlantNotFound, "p"), http.StatusNotFound},
		{"plan not found", careplan.ErrPlanNotFound, http.StatusNotFound},
		{"sync not found", telemetry.ErrSyncNotFound, http.StatusNotFound},
		{"advice plant", advice.ErrPlantNotFound, http.StatusNotFound},
		{"invalid input", careplan.ErrInvalidInput, http.StatusBadRequest},
		{"invalid item", eris.Wrap(telemetry.ErrInvalidItem, "ppfd"), http.StatusBadRequest},
		{"invalid batch", telemetry.ErrInvalidBatch, http.StatusBadRequest},
		{"plan transition", careplan.ErrInvalidTransition, http.StatusConflict},
		{"sync transition", telemetry.ErrInvalidTransition, http.StatusConflict},
		{"empty answer", advice.ErrEmptyAnswer, http.StatusBadGateway},
		{"timeout", careplan.ErrGenerationTimeout, http.StatusServiceUnavailable},
		{"deferred", telemetry.ErrDeferred, http.StatusServiceUnavailable},
		{"transient", resilience.NewTransientError(errors.New("503"), 503), http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestWriteError_HidesInternalMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "password")
}
