package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/plantcare/internal/monitoring"
)

var statusLookback int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print plan and telemetry health metrics and any triggered alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "status")
		if err != nil {
			return err
		}
		defer env.Close()

		lookback := statusLookback
		if lookback <= 0 {
			lookback = cfg.Monitoring.LookbackHours
		}
		snap, err := env.Collector.Collect(ctx, lookback)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Metrics *monitoring.MetricsSnapshot `json:"metrics"`
			Alerts  []monitoring.Alert          `json:"alerts"`
		}{
			Metrics: snap,
			Alerts:  monitoring.NewAlerter(cfg.Monitoring).Evaluate(snap),
		})
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLookback, "lookback", 0, "lookback window in hours (default from config)")
	rootCmd.AddCommand(statusCmd)
}
