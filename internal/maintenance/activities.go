// Package maintenance runs the periodic plan expiry and telemetry sync retry
// passes, either as a Temporal cron workflow or inline from the CLI.
package maintenance

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/plantcare/internal/telemetry"
)

// PlanExpirer expires plans whose validity window has elapsed.
type PlanExpirer interface {
	ExpireSweep(ctx context.Context) (int, error)
}

// SyncRetrier replays telemetry items whose retry is due.
type SyncRetrier interface {
	RetryDue(ctx context.Context) (*telemetry.RetrySummary, error)
}

// SweepResult summarises one maintenance pass.
type SweepResult struct {
	Expired int                    `json:"expired"`
	Sync    telemetry.RetrySummary `json:"sync"`
}

// Activities holds the dependencies of the maintenance activities. Register
// a pointer so Temporal exposes each method as an activity.
type Activities struct {
	Plans PlanExpirer
	Sync  SyncRetrier
}

// ExpirePlans moves elapsed plans to expired.
func (a *Activities) ExpirePlans(ctx context.Context) (int, error) {
	n, err := a.Plans.ExpireSweep(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "maintenance: expire plans")
	}
	return n, nil
}

// RetrySync replays due telemetry sync items.
func (a *Activities) RetrySync(ctx context.Context) (telemetry.RetrySummary, error) {
	sum, err := a.Sync.RetryDue(ctx)
	if err != nil {
		return telemetry.RetrySummary{}, eris.Wrap(err, "maintenance: retry sync")
	}
	return *sum, nil
}

// Sweep runs both passes inline. Both always run; their errors are joined
// and returned alongside the partial result.
func Sweep(ctx context.Context, a *Activities) (*SweepResult, error) {
	var res SweepResult
	var errs []error

	n, err := a.ExpirePlans(ctx)
	if err != nil {
		zap.L().Error("maintenance: expire plans failed", zap.Error(err))
		errs = append(errs, err)
	}
	res.Expired = n

	sum, err := a.RetrySync(ctx)
	if err != nil {
		zap.L().Error("maintenance: retry sync failed", zap.Error(err))
		errs = append(errs, err)
	}
	res.Sync = sum

	zap.L().Info("maintenance: sweep complete",
		zap.Int("expired", res.Expired),
		zap.Int("sync_attempted", res.Sync.Attempted),
		zap.Int("sync_synced", res.Sync.Synced),
		zap.Int("sync_exhausted", res.Sync.Exhausted),
	)
	return &res, errors.Join(errs...)
}
