package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 60, cfg.Cache.TTLMinutes)
	assert.Equal(t, 24, cfg.CarePlan.RecentPlanHours)
	assert.Equal(t, 1500, cfg.CarePlan.GenerationDeadlineMS)
	assert.Equal(t, 1000, cfg.Aggregate.SourceTimeoutMS)
	assert.Equal(t, 14, cfg.CarePlan.LookbackDays)
	assert.Equal(t, "full", cfg.CarePlan.Mode)
	assert.InDelta(t, -2.0, cfg.Rules.HeatwaveDelta, 0.001)
	assert.Equal(t, 3, cfg.Rules.HeatwaveMinDays)
	assert.InDelta(t, 0.2, cfg.Rules.DefaultProfilePenalty, 0.001)
	assert.InDelta(t, 1.0, cfg.Rules.Constraints.WateringIntervalDays.Min, 0.001)
	assert.InDelta(t, 30.0, cfg.Rules.Constraints.WateringIntervalDays.Max, 0.001)
	assert.InDelta(t, 0.7, cfg.ML.WateringThreshold, 0.001)
	assert.InDelta(t, 0.8, cfg.ML.FertilizerThreshold, 0.001)
	assert.InDelta(t, 0.2, cfg.ML.MaxFertilizerAdjustment, 0.001)
	assert.InDelta(t, 0.35, cfg.Aggregate.Weights.Sensor, 0.001)
	assert.InDelta(t, 0.15, cfg.Aggregate.Weights.Historical, 0.001)
	assert.InDelta(t, 0.5, cfg.Aggregate.NoDataConfidence, 0.001)
	assert.InDelta(t, 0.35, cfg.Rationale.RuleWeight, 0.001)
	assert.InDelta(t, 0.10, cfg.Rationale.SeasonalWeight, 0.001)
	assert.Equal(t, 5, cfg.Telemetry.MaxRetries)
	assert.Equal(t, "https://api.open-meteo.com", cfg.Weather.BaseURL)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, "plantcare-maintenance", cfg.Temporal.TaskQueue)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
	assert.Equal(t, 30, cfg.Circuit.ResetTimeoutSecs)
	assert.Equal(t, "plantcare", cfg.Tracing.ServiceName)
	assert.Empty(t, cfg.Tracing.Endpoint)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  database_url: plantcare.db
log:
  level: debug
  format: console
server:
  port: 9090
rules:
  heatwave_delta: -3
  constraints:
    watering_interval_days:
      max: 21
ml:
  fertilizer_threshold: 0.9
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "plantcare.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, -3.0, cfg.Rules.HeatwaveDelta, 0.001)
	assert.InDelta(t, 21.0, cfg.Rules.Constraints.WateringIntervalDays.Max, 0.001)
	assert.InDelta(t, 0.9, cfg.ML.FertilizerThreshold, 0.001)
	// Defaults still apply for unset values
	assert.InDelta(t, 1.0, cfg.Rules.Constraints.WateringIntervalDays.Min, 0.001)
	assert.InDelta(t, 0.7, cfg.ML.WateringThreshold, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PLANTCARE_STORE_DRIVER", "postgres")
	t.Setenv("PLANTCARE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("PLANTCARE_SERVER_PORT", "3000")
	t.Setenv("PLANTCARE_CAREPLAN_GENERATION_DEADLINE_MS", "300")
	t.Setenv("PLANTCARE_AGGREGATE_WEIGHTS_SENSOR", "0.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 300, cfg.CarePlan.GenerationDeadlineMS)
	assert.InDelta(t, 0.5, cfg.Aggregate.Weights.Sensor, 0.001)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/plantcare"
	cfg.Cache.Driver = "memory"
	cfg.Cache.TTLMinutes = 60
	cfg.CarePlan.GenerationDeadlineMS = 1500
	cfg.CarePlan.LookbackDays = 14
	cfg.CarePlan.DefaultTargetDays = 30
	cfg.CarePlan.MaxTargetDays = 90
	cfg.Telemetry.BatchConcurrency = 8
	cfg.Telemetry.MaxRetries = 5
	cfg.Server.Port = 8080
	cfg.Temporal.HostPort = "localhost:7233"
	cfg.Temporal.TaskQueue = "plantcare-maintenance"
	return cfg
}

func TestValidateServe(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidate_MissingStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "must be postgres or sqlite")
}

func TestValidateAdvice_RequiresKey(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("advice")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")

	cfg.Anthropic.Key = "sk-ant-key"
	assert.NoError(t, cfg.Validate("advice"))
}

func TestValidateWorker(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("worker"))

	cfg.Temporal.TaskQueue = ""
	err := cfg.Validate("worker")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "temporal.task_queue is required")
}

func TestValidate_RedisCacheNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Cache.Driver = "redis"
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis.url is required")

	cfg.Redis.URL = "redis://localhost:6379/0"
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Cache.Driver = "memcached"
	assert.Error(t, cfg.Validate("serve"))
}

func TestValidate_PlanBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.CarePlan.DefaultTargetDays = 120
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "default_target_days")

	cfg = validDefaults()
	cfg.CarePlan.GenerationDeadlineMS = 0
	cfg.Telemetry.BatchConcurrency = 0
	err = cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "generation_deadline_ms")
	assert.Contains(t, err.Error(), "batch_concurrency")
}

func TestValidate_SourceTimeoutBelowDeadline(t *testing.T) {
	cfg := validDefaults()
	cfg.Aggregate.SourceTimeoutMS = 1000
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Aggregate.SourceTimeoutMS = 1500
	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "aggregate.source_timeout_ms must be below")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
