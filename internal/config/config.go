package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Weather    WeatherConfig    `yaml:"weather" mapstructure:"weather"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	CarePlan   CarePlanConfig   `yaml:"careplan" mapstructure:"careplan"`
	Rules      RulesConfig      `yaml:"rules" mapstructure:"rules"`
	ML         MLConfig         `yaml:"ml" mapstructure:"ml"`
	Aggregate  AggregateConfig  `yaml:"aggregate" mapstructure:"aggregate"`
	Rationale  RationaleConfig  `yaml:"rationale" mapstructure:"rationale"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" mapstructure:"telemetry"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Tracing    TracingConfig    `yaml:"tracing" mapstructure:"tracing"`
	Temporal   TemporalConfig   `yaml:"temporal" mapstructure:"temporal"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
}

// RedisConfig holds the Redis connection URL used by the plan cache.
type RedisConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// CacheConfig configures the care plan response cache.
type CacheConfig struct {
	Driver     string `yaml:"driver" mapstructure:"driver"` // "memory" or "redis"
	TTLMinutes int    `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
	KeyPrefix  string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// WeatherConfig configures the weather API client and the environmental provider.
type WeatherConfig struct {
	BaseURL            string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs        int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimitPerSec    float64 `yaml:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
	RateBurst          int     `yaml:"rate_burst" mapstructure:"rate_burst"`
	ForecastDays       int     `yaml:"forecast_days" mapstructure:"forecast_days"`
	HeatwaveTempC      float64 `yaml:"heatwave_temp_c" mapstructure:"heatwave_temp_c"`
	ColdSnapTempC      float64 `yaml:"cold_snap_temp_c" mapstructure:"cold_snap_temp_c"`
	LowHumidity        float64 `yaml:"low_humidity" mapstructure:"low_humidity"`
	HighHumidity       float64 `yaml:"high_humidity" mapstructure:"high_humidity"`
	IndoorBaseTempC    float64 `yaml:"indoor_base_temp_c" mapstructure:"indoor_base_temp_c"`
	IndoorBaseHumidity float64 `yaml:"indoor_base_humidity" mapstructure:"indoor_base_humidity"`
	IndoorWeight       float64 `yaml:"indoor_weight" mapstructure:"indoor_weight"`
}

// AnthropicConfig holds Anthropic API settings for care advice.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TopK      int    `yaml:"top_k" mapstructure:"top_k"`
}

// CarePlanConfig configures the care plan orchestrator.
type CarePlanConfig struct {
	RecentPlanHours      int    `yaml:"recent_plan_hours" mapstructure:"recent_plan_hours"`
	GenerationDeadlineMS int    `yaml:"generation_deadline_ms" mapstructure:"generation_deadline_ms"`
	LookbackDays         int    `yaml:"lookback_days" mapstructure:"lookback_days"`
	DefaultTargetDays    int    `yaml:"default_target_days" mapstructure:"default_target_days"`
	MaxTargetDays        int    `yaml:"max_target_days" mapstructure:"max_target_days"`
	ProfilesPath         string `yaml:"profiles_path" mapstructure:"profiles_path"`
	Mode                 string `yaml:"mode" mapstructure:"mode"`
}

// Bound is an inclusive [Min, Max] range.
type Bound struct {
	Min float64 `yaml:"min" mapstructure:"min"`
	Max float64 `yaml:"max" mapstructure:"max"`
}

// ConstraintsConfig holds the global bounds every plan parameter must satisfy.
type ConstraintsConfig struct {
	WateringIntervalDays   Bound `yaml:"watering_interval_days" mapstructure:"watering_interval_days"`
	WaterAmountML          Bound `yaml:"water_amount_ml" mapstructure:"water_amount_ml"`
	FertilizerIntervalDays Bound `yaml:"fertilizer_interval_days" mapstructure:"fertilizer_interval_days"`
	LightPPFD              Bound `yaml:"light_ppfd" mapstructure:"light_ppfd"`
	SoilMoistureTarget     Bound `yaml:"soil_moisture_target" mapstructure:"soil_moisture_target"`
	ReviewIntervalDays     Bound `yaml:"review_interval_days" mapstructure:"review_interval_days"`
}

// RulesConfig configures the rule engine modifiers, bounds and confidence penalties.
type RulesConfig struct {
	// Pot size group.
	PotReferenceCM        float64 `yaml:"pot_reference_cm" mapstructure:"pot_reference_cm"`
	SmallPotCM            float64 `yaml:"small_pot_cm" mapstructure:"small_pot_cm"`
	LargePotCM            float64 `yaml:"large_pot_cm" mapstructure:"large_pot_cm"`
	SmallPotWateringDelta float64 `yaml:"small_pot_watering_delta" mapstructure:"small_pot_watering_delta"`
	LargePotWateringDelta float64 `yaml:"large_pot_watering_delta" mapstructure:"large_pot_watering_delta"`

	// Environmental group.
	HeatwaveMinDays       int     `yaml:"heatwave_min_days" mapstructure:"heatwave_min_days"`
	HeatwaveDelta         float64 `yaml:"heatwave_delta" mapstructure:"heatwave_delta"`
	ColdSnapMinDays       int     `yaml:"cold_snap_min_days" mapstructure:"cold_snap_min_days"`
	ColdSnapDelta         float64 `yaml:"cold_snap_delta" mapstructure:"cold_snap_delta"`
	LowHumidityThreshold  float64 `yaml:"low_humidity_threshold" mapstructure:"low_humidity_threshold"`
	LowHumidityDelta      float64 `yaml:"low_humidity_delta" mapstructure:"low_humidity_delta"`
	HighHumidityThreshold float64 `yaml:"high_humidity_threshold" mapstructure:"high_humidity_threshold"`
	HighHumidityDelta     float64 `yaml:"high_humidity_delta" mapstructure:"high_humidity_delta"`
	SummerWateringDelta   float64 `yaml:"summer_watering_delta" mapstructure:"summer_watering_delta"`
	WinterWateringDelta   float64 `yaml:"winter_watering_delta" mapstructure:"winter_watering_delta"`
	WinterFertilizerDelta float64 `yaml:"winter_fertilizer_delta" mapstructure:"winter_fertilizer_delta"`

	// Plant health group.
	StressFertilizerDelta   float64 `yaml:"stress_fertilizer_delta" mapstructure:"stress_fertilizer_delta"`
	OverwateredDelta        float64 `yaml:"overwatered_delta" mapstructure:"overwatered_delta"`
	UnderwateredDelta       float64 `yaml:"underwatered_delta" mapstructure:"underwatered_delta"`
	CriticalReviewDays      float64 `yaml:"critical_review_days" mapstructure:"critical_review_days"`
	LowHealthScoreThreshold float64 `yaml:"low_health_score_threshold" mapstructure:"low_health_score_threshold"`

	// Confidence.
	ViolationPenalty      float64 `yaml:"violation_penalty" mapstructure:"violation_penalty"`
	DefaultProfilePenalty float64 `yaml:"default_profile_penalty" mapstructure:"default_profile_penalty"`
	PartialMatchPenalty   float64 `yaml:"partial_match_penalty" mapstructure:"partial_match_penalty"`
	HealthRuleBonus       float64 `yaml:"health_rule_bonus" mapstructure:"health_rule_bonus"`
	MinConfidence         float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	FallbackConfidence    float64 `yaml:"fallback_confidence" mapstructure:"fallback_confidence"`

	Constraints ConstraintsConfig `yaml:"constraints" mapstructure:"constraints"`
}

// MLConfig configures the ML adjustment layer.
type MLConfig struct {
	FactorCap               float64 `yaml:"factor_cap" mapstructure:"factor_cap"`
	MaxWateringAdjustment   float64 `yaml:"max_watering_adjustment" mapstructure:"max_watering_adjustment"`
	MaxAmountAdjustment     float64 `yaml:"max_amount_adjustment" mapstructure:"max_amount_adjustment"`
	MaxFertilizerAdjustment float64 `yaml:"max_fertilizer_adjustment" mapstructure:"max_fertilizer_adjustment"`
	WateringThreshold       float64 `yaml:"watering_threshold" mapstructure:"watering_threshold"`
	AmountThreshold         float64 `yaml:"amount_threshold" mapstructure:"amount_threshold"`
	FertilizerThreshold     float64 `yaml:"fertilizer_threshold" mapstructure:"fertilizer_threshold"`
	FallbackConfidence      float64 `yaml:"fallback_confidence" mapstructure:"fallback_confidence"`
	HorizonUncertainty      float64 `yaml:"horizon_uncertainty" mapstructure:"horizon_uncertainty"`
	HotTempC                float64 `yaml:"hot_temp_c" mapstructure:"hot_temp_c"`
	ColdTempC               float64 `yaml:"cold_temp_c" mapstructure:"cold_temp_c"`
	DryHumidity             float64 `yaml:"dry_humidity" mapstructure:"dry_humidity"`
	HumidHumidity           float64 `yaml:"humid_humidity" mapstructure:"humid_humidity"`
	FastGrowthCMPerWeek     float64 `yaml:"fast_growth_cm_per_week" mapstructure:"fast_growth_cm_per_week"`
}

// SourceWeights holds the per-source weights of the context confidence score.
type SourceWeights struct {
	Sensor        float64 `yaml:"sensor" mapstructure:"sensor"`
	Environmental float64 `yaml:"environmental" mapstructure:"environmental"`
	Health        float64 `yaml:"health" mapstructure:"health"`
	Behavior      float64 `yaml:"behavior" mapstructure:"behavior"`
	Historical    float64 `yaml:"historical" mapstructure:"historical"`
}

// AggregateConfig configures the context aggregator.
type AggregateConfig struct {
	Weights                 SourceWeights `yaml:"weights" mapstructure:"weights"`
	NoDataConfidence        float64       `yaml:"no_data_confidence" mapstructure:"no_data_confidence"`
	StaleSensorHours        float64       `yaml:"stale_sensor_hours" mapstructure:"stale_sensor_hours"`
	SustainedWeatherDays    int           `yaml:"sustained_weather_days" mapstructure:"sustained_weather_days"`
	HealthDecayDays         int           `yaml:"health_decay_days" mapstructure:"health_decay_days"`
	HealthMinRecency        float64       `yaml:"health_min_recency" mapstructure:"health_min_recency"`
	BehaviorSaturation      int           `yaml:"behavior_saturation" mapstructure:"behavior_saturation"`
	HistoricalSaturation    int           `yaml:"historical_saturation" mapstructure:"historical_saturation"`
	AssessmentReminderDays  int           `yaml:"assessment_reminder_days" mapstructure:"assessment_reminder_days"`
	LowConsistencyThreshold float64       `yaml:"low_consistency_threshold" mapstructure:"low_consistency_threshold"`
	ExpectedReadingsPerDay  float64       `yaml:"expected_readings_per_day" mapstructure:"expected_readings_per_day"`
	TrendThreshold          float64       `yaml:"trend_threshold" mapstructure:"trend_threshold"`
	SourceTimeoutMS         int           `yaml:"source_timeout_ms" mapstructure:"source_timeout_ms"`
}

// RationaleConfig configures explanation weighting and narrative bands.
type RationaleConfig struct {
	RuleWeight          float64 `yaml:"rule_weight" mapstructure:"rule_weight"`
	MLWeight            float64 `yaml:"ml_weight" mapstructure:"ml_weight"`
	ContextualWeight    float64 `yaml:"contextual_weight" mapstructure:"contextual_weight"`
	EnvironmentalWeight float64 `yaml:"environmental_weight" mapstructure:"environmental_weight"`
	SeasonalWeight      float64 `yaml:"seasonal_weight" mapstructure:"seasonal_weight"`
	HighConfidence      float64 `yaml:"high_confidence" mapstructure:"high_confidence"`
	ModerateConfidence  float64 `yaml:"moderate_confidence" mapstructure:"moderate_confidence"`
}

// TelemetryConfig configures telemetry ingestion and sync retries.
type TelemetryConfig struct {
	MaxRetries       int `yaml:"max_retries" mapstructure:"max_retries"`
	BatchConcurrency int `yaml:"batch_concurrency" mapstructure:"batch_concurrency"`
	MaxBatchSize     int `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	RetryBaseSecs    int `yaml:"retry_base_secs" mapstructure:"retry_base_secs"`
	RetryMaxSecs     int `yaml:"retry_max_secs" mapstructure:"retry_max_secs"`
	RetryBatchSize   int `yaml:"retry_batch_size" mapstructure:"retry_batch_size"`
}

// MonitoringConfig configures metrics collection and alerting.
type MonitoringConfig struct {
	Enabled                  bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL               string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs        int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackHours            int     `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	LowConfidenceThreshold   float64 `yaml:"low_confidence_threshold" mapstructure:"low_confidence_threshold"`
	FallbackRateThreshold    float64 `yaml:"fallback_rate_threshold" mapstructure:"fallback_rate_threshold"`
	SyncFailureRateThreshold float64 `yaml:"sync_failure_rate_threshold" mapstructure:"sync_failure_rate_threshold"`
	SyncBacklogThreshold     int     `yaml:"sync_backlog_threshold" mapstructure:"sync_backlog_threshold"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	CORSOrigins         []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig configures OpenTelemetry trace export. An empty endpoint disables export.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint" mapstructure:"endpoint"`
	ServiceName string  `yaml:"service_name" mapstructure:"service_name"`
	Insecure    bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio" mapstructure:"sample_ratio"`
}

// CircuitConfig configures the per-service circuit breakers guarding the
// weather and Anthropic APIs.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// TemporalConfig configures the maintenance worker.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
	SweepCron string `yaml:"sweep_cron" mapstructure:"sweep_cron"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PLANTCARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("redis.url", "")
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("cache.key_prefix", "plantcare:careplan:")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout_secs", 10)

	v.SetDefault("weather.base_url", "https://api.open-meteo.com")
	v.SetDefault("weather.timeout_secs", 10)
	v.SetDefault("weather.rate_limit_per_sec", 5.0)
	v.SetDefault("weather.rate_burst", 5)
	v.SetDefault("weather.forecast_days", 3)
	v.SetDefault("weather.heatwave_temp_c", 32.0)
	v.SetDefault("weather.cold_snap_temp_c", 5.0)
	v.SetDefault("weather.low_humidity", 25.0)
	v.SetDefault("weather.high_humidity", 85.0)
	v.SetDefault("weather.indoor_base_temp_c", 21.0)
	v.SetDefault("weather.indoor_base_humidity", 50.0)
	v.SetDefault("weather.indoor_weight", 0.7)

	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.top_k", 4)

	v.SetDefault("careplan.recent_plan_hours", 24)
	v.SetDefault("careplan.generation_deadline_ms", 1500)
	v.SetDefault("careplan.lookback_days", 14)
	v.SetDefault("careplan.default_target_days", 30)
	v.SetDefault("careplan.max_target_days", 90)
	v.SetDefault("careplan.profiles_path", "")
	v.SetDefault("careplan.mode", "full")

	v.SetDefault("rules.pot_reference_cm", 15.0)
	v.SetDefault("rules.small_pot_cm", 12.0)
	v.SetDefault("rules.large_pot_cm", 30.0)
	v.SetDefault("rules.small_pot_watering_delta", -1.0)
	v.SetDefault("rules.large_pot_watering_delta", 1.0)
	v.SetDefault("rules.heatwave_min_days", 3)
	v.SetDefault("rules.heatwave_delta", -2.0)
	v.SetDefault("rules.cold_snap_min_days", 3)
	v.SetDefault("rules.cold_snap_delta", 2.0)
	v.SetDefault("rules.low_humidity_threshold", 30.0)
	v.SetDefault("rules.low_humidity_delta", -1.0)
	v.SetDefault("rules.high_humidity_threshold", 80.0)
	v.SetDefault("rules.high_humidity_delta", 1.0)
	v.SetDefault("rules.summer_watering_delta", -1.0)
	v.SetDefault("rules.winter_watering_delta", 2.0)
	v.SetDefault("rules.winter_fertilizer_delta", 30.0)
	v.SetDefault("rules.stress_fertilizer_delta", 14.0)
	v.SetDefault("rules.overwatered_delta", 2.0)
	v.SetDefault("rules.underwatered_delta", -1.0)
	v.SetDefault("rules.critical_review_days", 3.0)
	v.SetDefault("rules.low_health_score_threshold", 0.4)
	v.SetDefault("rules.violation_penalty", 0.1)
	v.SetDefault("rules.default_profile_penalty", 0.2)
	v.SetDefault("rules.partial_match_penalty", 0.1)
	v.SetDefault("rules.health_rule_bonus", 0.1)
	v.SetDefault("rules.min_confidence", 0.1)
	v.SetDefault("rules.fallback_confidence", 0.3)
	v.SetDefault("rules.constraints.watering_interval_days.min", 1.0)
	v.SetDefault("rules.constraints.watering_interval_days.max", 30.0)
	v.SetDefault("rules.constraints.water_amount_ml.min", 10.0)
	v.SetDefault("rules.constraints.water_amount_ml.max", 3000.0)
	v.SetDefault("rules.constraints.fertilizer_interval_days.min", 7.0)
	v.SetDefault("rules.constraints.fertilizer_interval_days.max", 120.0)
	v.SetDefault("rules.constraints.light_ppfd.min", 10.0)
	v.SetDefault("rules.constraints.light_ppfd.max", 1500.0)
	v.SetDefault("rules.constraints.soil_moisture_target.min", 0.1)
	v.SetDefault("rules.constraints.soil_moisture_target.max", 0.9)
	v.SetDefault("rules.constraints.review_interval_days.min", 1.0)
	v.SetDefault("rules.constraints.review_interval_days.max", 30.0)

	v.SetDefault("ml.factor_cap", 0.1)
	v.SetDefault("ml.max_watering_adjustment", 0.3)
	v.SetDefault("ml.max_amount_adjustment", 0.3)
	v.SetDefault("ml.max_fertilizer_adjustment", 0.2)
	v.SetDefault("ml.watering_threshold", 0.7)
	v.SetDefault("ml.amount_threshold", 0.7)
	v.SetDefault("ml.fertilizer_threshold", 0.8)
	v.SetDefault("ml.fallback_confidence", 0.3)
	v.SetDefault("ml.horizon_uncertainty", 0.01)
	v.SetDefault("ml.hot_temp_c", 28.0)
	v.SetDefault("ml.cold_temp_c", 12.0)
	v.SetDefault("ml.dry_humidity", 35.0)
	v.SetDefault("ml.humid_humidity", 75.0)
	v.SetDefault("ml.fast_growth_cm_per_week", 2.0)

	v.SetDefault("aggregate.weights.sensor", 0.35)
	v.SetDefault("aggregate.weights.environmental", 0.20)
	v.SetDefault("aggregate.weights.health", 0.20)
	v.SetDefault("aggregate.weights.behavior", 0.10)
	v.SetDefault("aggregate.weights.historical", 0.15)
	v.SetDefault("aggregate.no_data_confidence", 0.5)
	v.SetDefault("aggregate.stale_sensor_hours", 24.0)
	v.SetDefault("aggregate.sustained_weather_days", 3)
	v.SetDefault("aggregate.health_decay_days", 30)
	v.SetDefault("aggregate.health_min_recency", 0.3)
	v.SetDefault("aggregate.behavior_saturation", 10)
	v.SetDefault("aggregate.historical_saturation", 5)
	v.SetDefault("aggregate.assessment_reminder_days", 14)
	v.SetDefault("aggregate.low_consistency_threshold", 0.5)
	v.SetDefault("aggregate.expected_readings_per_day", 4.0)
	v.SetDefault("aggregate.trend_threshold", 0.05)
	v.SetDefault("aggregate.source_timeout_ms", 1000)

	v.SetDefault("rationale.rule_weight", 0.35)
	v.SetDefault("rationale.ml_weight", 0.25)
	v.SetDefault("rationale.contextual_weight", 0.15)
	v.SetDefault("rationale.environmental_weight", 0.15)
	v.SetDefault("rationale.seasonal_weight", 0.10)
	v.SetDefault("rationale.high_confidence", 0.8)
	v.SetDefault("rationale.moderate_confidence", 0.6)

	v.SetDefault("telemetry.max_retries", 5)
	v.SetDefault("telemetry.batch_concurrency", 8)
	v.SetDefault("telemetry.max_batch_size", 500)
	v.SetDefault("telemetry.retry_base_secs", 30)
	v.SetDefault("telemetry.retry_max_secs", 3600)
	v.SetDefault("telemetry.retry_batch_size", 100)

	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_hours", 24)
	v.SetDefault("monitoring.low_confidence_threshold", 0.5)
	v.SetDefault("monitoring.fallback_rate_threshold", 0.2)
	v.SetDefault("monitoring.sync_failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.sync_backlog_threshold", 100)

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "plantcare")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "plantcare-maintenance")
	v.SetDefault("temporal.sweep_cron", "*/15 * * * *")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
