package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/plantcare/internal/maintenance"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire elapsed plans and retry due telemetry once, without Temporal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "sweep")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := maintenance.Sweep(ctx, env.Activities())
		if res != nil {
			_ = json.NewEncoder(os.Stdout).Encode(res)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
