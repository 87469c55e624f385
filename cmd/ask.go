package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/plantcare/internal/advice"
)

var (
	askPlantID string
	askUserID  string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a care question about a plant",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "advice")
		if err != nil {
			return err
		}
		defer env.Close()

		ans, err := env.Advice.Ask(ctx, advice.Request{
			PlantID:  askPlantID,
			UserID:   askUserID,
			Question: strings.Join(args, " "),
		})
		if err != nil {
			return err
		}

		fmt.Println(ans.Text)
		if len(ans.Citations) > 0 {
			fmt.Printf("\nSources: %s\n", strings.Join(ans.Citations, ", "))
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askPlantID, "plant-id", "", "plant the question is about (required)")
	askCmd.Flags().StringVar(&askUserID, "user-id", "", "owning user")
	_ = askCmd.MarkFlagRequired("plant-id")
	rootCmd.AddCommand(askCmd)
}
