package main

import (
	"bufio"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tablescout/tablescout/internal/model"
)

var (
	searchCity      string
	searchDates     []string
	searchPartySize int
	searchMeal      string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search availability across all platforms",
	Long:  "Fans out to every enabled platform for each requested date and streams results to stdout as NDJSON, one event per line.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		query := model.SearchQuery{
			City:      searchCity,
			Dates:     searchDates,
			PartySize: searchPartySize,
			Meal:      searchMeal,
		}

		out := bufio.NewWriter(os.Stdout)
		defer out.Flush()

		var failed string
		for ev := range env.Aggregator.Search(ctx, query) {
			line, err := ev.Line()
			if err != nil {
				zap.L().Error("marshal event failed", zap.Error(err))
				continue
			}
			_, _ = out.Write(line)
			_ = out.WriteByte('\n')
			_ = out.Flush()

			if ev.Type == model.EventError {
				failed = ev.Error
			}
		}

		if failed != "" {
			cmd.SilenceUsage = true
			return eris.New(failed)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchCity, "city", "", "city to search (required)")
	searchCmd.Flags().StringSliceVar(&searchDates, "date", nil, "date to search, repeatable (YYYY-MM-DD)")
	searchCmd.Flags().IntVar(&searchPartySize, "party-size", 2, "party size")
	searchCmd.Flags().StringVar(&searchMeal, "meal", "", "meal filter: lunch or dinner")
	rootCmd.AddCommand(searchCmd)
}
