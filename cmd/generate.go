package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/plantcare/internal/careplan"
)

var (
	generatePlantID string
	generateUserID  string
	generateForce   bool
	generateDays    int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a care plan for one plant and print it as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "generate")
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Plans.Generate(ctx, careplan.GenerateRequest{
			PlantID:         generatePlantID,
			UserID:          generateUserID,
			ForceRegenerate: generateForce,
			TargetDays:      generateDays,
		})
		if err != nil {
			return eris.Wrapf(err, "generate plan for %s", generatePlantID)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	generateCmd.Flags().StringVar(&generatePlantID, "plant-id", "", "plant to generate a plan for (required)")
	generateCmd.Flags().StringVar(&generateUserID, "user-id", "", "owning user (required)")
	generateCmd.Flags().BoolVar(&generateForce, "force", false, "skip the cache and recent plan")
	generateCmd.Flags().IntVar(&generateDays, "days", 0, "plan validity in days (default from config)")
	_ = generateCmd.MarkFlagRequired("plant-id")
	_ = generateCmd.MarkFlagRequired("user-id")
	rootCmd.AddCommand(generateCmd)
}
