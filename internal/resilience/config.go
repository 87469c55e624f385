package resilience

import (
	"time"

	"github.com/sells-group/plantcare/internal/config"
)

// FromWeatherConfig builds the retry policy for weather lookups. The overall
// request timeout bounds the backoff so retries stay inside one generation.
func FromWeatherConfig(cfg config.WeatherConfig) RetryConfig {
	rc := DefaultRetryConfig()
	if cfg.TimeoutSecs > 0 {
		rc.MaxBackoff = time.Duration(cfg.TimeoutSecs) * time.Second / 4
	}
	return rc
}

// FromTelemetryConfig builds the sync retry schedule.
func FromTelemetryConfig(cfg config.TelemetryConfig) SyncSchedule {
	s := DefaultSyncSchedule()
	if cfg.RetryBaseSecs > 0 {
		s.Base = time.Duration(cfg.RetryBaseSecs) * time.Second
	}
	if cfg.RetryMaxSecs > 0 {
		s.Max = time.Duration(cfg.RetryMaxSecs) * time.Second
	}
	if cfg.MaxRetries >= 0 {
		s.MaxRetries = cfg.MaxRetries
	}
	return s
}

// FromCircuitConfig converts config values to a CircuitBreakerConfig.
func FromCircuitConfig(failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetTimeoutSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetTimeoutSecs) * time.Second
	}
	return cfg
}
