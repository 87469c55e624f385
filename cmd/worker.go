package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/sells-group/plantcare/internal/maintenance"
)

var workerSchedule bool

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the Temporal maintenance worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "worker")
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := maintenance.Dial(cfg.Temporal)
		if err != nil {
			return err
		}
		defer c.Close()

		if workerSchedule {
			if _, err := maintenance.StartCron(ctx, c, cfg.Temporal); err != nil {
				return err
			}
		}

		w := maintenance.NewWorker(c, cfg.Temporal, env.Activities())
		zap.L().Info("starting maintenance worker",
			zap.String("task_queue", cfg.Temporal.TaskQueue),
			zap.String("namespace", cfg.Temporal.Namespace),
		)
		if err := w.Run(worker.InterruptCh()); err != nil {
			return eris.Wrap(err, "maintenance worker")
		}
		return nil
	},
}

func init() {
	workerCmd.Flags().BoolVar(&workerSchedule, "schedule", false, "also start the sweep cron workflow")
	rootCmd.AddCommand(workerCmd)
}
