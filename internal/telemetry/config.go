// Package telemetry ingests client-captured light readings and growth photos,
// tracks their offline sync state, and retries items the store rejected.
package telemetry

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/plantcare/internal/config"
)

// DefaultConfig returns the ingestion defaults.
func DefaultConfig() config.TelemetryConfig {
	return config.TelemetryConfig{
		MaxRetries:       5,
		BatchConcurrency: 8,
		MaxBatchSize:     500,
		RetryBaseSecs:    30,
		RetryMaxSecs:     3600,
		RetryBatchSize:   100,
	}
}

// ValidateConfig checks the ingestion configuration.
func ValidateConfig(c config.TelemetryConfig) error {
	var errs []string
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Sprintf("max_retries must be >= 0, got %d", c.MaxRetries))
	}
	if c.BatchConcurrency < 1 {
		errs = append(errs, fmt.Sprintf("batch_concurrency must be >= 1, got %d", c.BatchConcurrency))
	}
	if c.MaxBatchSize < 1 {
		errs = append(errs, fmt.Sprintf("max_batch_size must be >= 1, got %d", c.MaxBatchSize))
	}
	if c.RetryBaseSecs < 1 {
		errs = append(errs, fmt.Sprintf("retry_base_secs must be >= 1, got %d", c.RetryBaseSecs))
	}
	if c.RetryMaxSecs < c.RetryBaseSecs {
		errs = append(errs, fmt.Sprintf("retry_max_secs %d is below retry_base_secs %d", c.RetryMaxSecs, c.RetryBaseSecs))
	}
	if c.RetryBatchSize < 1 {
		errs = append(errs, fmt.Sprintf("retry_batch_size must be >= 1, got %d", c.RetryBatchSize))
	}
	if len(errs) > 0 {
		return eris.Errorf("telemetry: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
