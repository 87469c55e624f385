package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/plantcare/internal/advice"
	"github.com/sells-group/plantcare/internal/aggregate"
	"github.com/sells-group/plantcare/internal/cache"
	"github.com/sells-group/plantcare/internal/careplan"
	"github.com/sells-group/plantcare/internal/config"
	"github.com/sells-group/plantcare/internal/environment"
	"github.com/sells-group/plantcare/internal/maintenance"
	"github.com/sells-group/plantcare/internal/monitoring"
	"github.com/sells-group/plantcare/internal/resilience"
	"github.com/sells-group/plantcare/internal/rules"
	"github.com/sells-group/plantcare/internal/store"
	"github.com/sells-group/plantcare/internal/telemetry"
	"github.com/sells-group/plantcare/internal/tracing"
	anthropicpkg "github.com/sells-group/plantcare/pkg/anthropic"
	"github.com/sells-group/plantcare/pkg/weather"
)

// appEnv holds the store, cache and services shared by the commands.
type appEnv struct {
	Store     store.Store
	Cache     cache.Cache
	Breakers  *resilience.ServiceBreakers
	Plans     *careplan.Service
	Telemetry *telemetry.Service
	Advice    *advice.Service // nil without an Anthropic key
	Collector *monitoring.Collector
	Tracing   *tracing.Provider
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Tracing.Shutdown(ctx); err != nil {
		zap.L().Warn("tracing shutdown failed", zap.Error(err))
	}
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// Activities returns the maintenance activities backed by this environment.
func (e *appEnv) Activities() *maintenance.Activities {
	return &maintenance.Activities{Plans: e.Plans, Sync: e.Telemetry}
}

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store.Driver {
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = "plantcare.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		var poolCfg *store.PoolConfig
		if c.Store.MaxConns > 0 {
			poolCfg = &store.PoolConfig{MaxConns: int32(c.Store.MaxConns)}
		}
		return store.NewPostgres(ctx, c.Store.DatabaseURL, poolCfg)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// initEnv validates config for mode, opens and migrates the store, and wires
// every service. Callers should defer env.Close().
func initEnv(ctx context.Context, c *config.Config, mode string) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	env := &appEnv{Store: st}

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	env.Tracing, err = tracing.Setup(ctx, c.Tracing, version)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Cache, err = cache.New(ctx, c.Cache, c.Redis)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Breakers = resilience.NewServiceBreakers(
		resilience.FromCircuitConfig(c.Circuit.FailureThreshold, c.Circuit.ResetTimeoutSecs))

	catalog, err := rules.LoadCatalog(c.CarePlan.ProfilesPath)
	if err != nil {
		env.Close()
		return nil, err
	}

	weatherClient := weather.NewClient(
		weather.WithBaseURL(c.Weather.BaseURL),
		weather.WithRateLimit(c.Weather.RateLimitPerSec, c.Weather.RateBurst),
	)
	provider := environment.NewProvider(weatherClient, env.Breakers, c.Weather)
	aggregator := aggregate.New(st, provider, c.Aggregate)

	env.Plans, err = careplan.NewService(c, st, aggregator, catalog, env.Cache)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Telemetry, err = telemetry.NewService(st, c.Telemetry)
	if err != nil {
		env.Close()
		return nil, err
	}

	if c.Anthropic.Key != "" {
		client := anthropicpkg.NewClient(c.Anthropic.Key, "")
		env.Advice, err = advice.NewService(client, st, catalog, env.Breakers, c.Anthropic)
		if err != nil {
			env.Close()
			return nil, err
		}
	} else {
		zap.L().Debug("PLANTCARE_ANTHROPIC_KEY not set, advice disabled")
	}

	env.Collector = monitoring.NewCollector(st)
	return env, nil
}
