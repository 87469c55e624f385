package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/plantcare/internal/config"
)

// version is set at build time.
var version = "dev"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "plantcare",
	Short: "Care plan generation pipeline",
	Long:  "Generates versioned plant care plans from sensor, weather, health and behavior signals, ingests offline telemetry, and answers care questions.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
