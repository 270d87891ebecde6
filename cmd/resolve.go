package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tablescout/tablescout/internal/model"
)

var (
	resolveCity  string
	resolveArea  string
	resolvePhone string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <name>",
	Short: "Resolve one restaurant's identity across platforms",
	Long:  "Runs the identity-resolution stages for a single restaurant name and prints the discovered platform links as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ref := model.NewRestaurant(args[0])
		ref.City = resolveCity
		ref.Area = resolveArea
		ref.Phone = resolvePhone

		resolution, err := env.Resolver.Resolve(ctx, ref)
		if err != nil {
			cmd.SilenceUsage = true
			return err
		}
		zap.L().Info("resolution finished",
			zap.String("name", ref.Name),
			zap.String("stage", resolution.Stage),
			zap.Int("links", len(resolution.Links)),
		)

		for platform, link := range resolution.Links {
			ref.PlatformLinks[platform] = link
		}
		if resolution.Score != nil {
			ref.Score = resolution.Score
		}

		line, err := model.StreamEvent{Type: model.EventResult, Restaurant: &ref}.Line()
		if err != nil {
			return err
		}
		_, _ = os.Stdout.Write(line)
		_, _ = os.Stdout.Write([]byte("\n"))
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveCity, "city", "", "city the restaurant is in")
	resolveCmd.Flags().StringVar(&resolveArea, "area", "", "neighborhood or area")
	resolveCmd.Flags().StringVar(&resolvePhone, "phone", "", "phone number, improves match confidence")
	rootCmd.AddCommand(resolveCmd)
}
