package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the settings required by the given command mode are present
// and that shared settings are in range.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		errs = append(errs, c.requireStore()...)
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "generate", "migrate", "sweep", "status":
		errs = append(errs, c.requireStore()...)
	case "worker":
		errs = append(errs, c.requireStore()...)
		if c.Temporal.HostPort == "" {
			errs = append(errs, "temporal.host_port is required")
		}
		if c.Temporal.TaskQueue == "" {
			errs = append(errs, "temporal.task_queue is required")
		}
	case "advice":
		errs = append(errs, c.requireStore()...)
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Cache.Driver {
	case "memory", "":
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, "redis.url is required when cache.driver is redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.driver %q must be memory or redis", c.Cache.Driver))
	}
	if c.Cache.TTLMinutes < 0 {
		errs = append(errs, "cache.ttl_minutes must be >= 0")
	}

	if c.CarePlan.GenerationDeadlineMS <= 0 {
		errs = append(errs, "careplan.generation_deadline_ms must be > 0")
	} else if c.Aggregate.SourceTimeoutMS >= c.CarePlan.GenerationDeadlineMS {
		errs = append(errs, "aggregate.source_timeout_ms must be below careplan.generation_deadline_ms")
	}
	if c.CarePlan.LookbackDays < 1 {
		errs = append(errs, "careplan.lookback_days must be >= 1")
	}
	if c.CarePlan.DefaultTargetDays < 1 || c.CarePlan.DefaultTargetDays > c.CarePlan.MaxTargetDays {
		errs = append(errs, "careplan.default_target_days must be between 1 and careplan.max_target_days")
	}

	if c.Telemetry.BatchConcurrency < 1 || c.Telemetry.BatchConcurrency > 64 {
		errs = append(errs, "telemetry.batch_concurrency must be between 1 and 64")
	}
	if c.Telemetry.MaxRetries < 0 {
		errs = append(errs, "telemetry.max_retries must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) requireStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be postgres or sqlite", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
}
