package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/sells-group/plantcare/internal/config"
)

// SweepWorkflowID is the fixed ID of the cron sweep, so starting it twice
// attaches to the existing run.
const SweepWorkflowID = "plantcare-maintenance-sweep"

var activityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 5 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    10 * time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    2 * time.Minute,
		MaximumAttempts:    3,
	},
}

// SweepWorkflow expires elapsed plans then retries due telemetry. A failure
// in one activity does not skip the other; the workflow fails with every
// activity error joined.
func SweepWorkflow(ctx workflow.Context) (SweepResult, error) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions)
	logger := workflow.GetLogger(ctx)

	var a *Activities
	var res SweepResult
	var errs []error

	if err := workflow.ExecuteActivity(ctx, a.ExpirePlans).Get(ctx, &res.Expired); err != nil {
		logger.Error("expire plans failed", "error", err)
		errs = append(errs, err)
	}
	if err := workflow.ExecuteActivity(ctx, a.RetrySync).Get(ctx, &res.Sync); err != nil {
		logger.Error("retry sync failed", "error", err)
		errs = append(errs, err)
	}

	logger.Info("sweep complete", "expired", res.Expired, "sync_attempted", res.Sync.Attempted)
	return res, errors.Join(errs...)
}

// Register adds the sweep workflow and activities to a worker.
func Register(r worker.Registry, a *Activities) {
	r.RegisterWorkflow(SweepWorkflow)
	r.RegisterActivity(a)
}

// StartCron starts the sweep on cfg.SweepCron. When the workflow is already
// running the existing run is returned.
func StartCron(ctx context.Context, c client.Client, cfg config.TemporalConfig) (client.WorkflowRun, error) {
	if cfg.SweepCron == "" {
		return nil, eris.New("maintenance: temporal.sweep_cron is empty")
	}
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:           SweepWorkflowID,
		TaskQueue:    cfg.TaskQueue,
		CronSchedule: cfg.SweepCron,
	}, SweepWorkflow)
	if err != nil {
		return nil, eris.Wrap(err, "maintenance: start sweep cron")
	}
	zap.L().Info("maintenance: sweep cron started",
		zap.String("workflow_id", run.GetID()),
		zap.String("run_id", run.GetRunID()),
		zap.String("cron", cfg.SweepCron),
	)
	return run, nil
}

// Dial connects to the Temporal frontend described by cfg.
func Dial(cfg config.TemporalConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "maintenance: dial temporal %s", cfg.HostPort)
	}
	return c, nil
}

// NewWorker creates a worker on cfg.TaskQueue with the sweep registered.
func NewWorker(c client.Client, cfg config.TemporalConfig, a *Activities) worker.Worker {
	w := worker.New(c, cfg.TaskQueue, worker.Options{})
	Register(w, a)
	return w
}
