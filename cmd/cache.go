package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tablescout/tablescout/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and prune the on-disk caches",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entry counts and TTLs per cache domain",
	RunE: func(cmd *cobra.Command, args []string) error {
		caches := cache.Open(cfg.CacheDir())

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DOMAIN\tENTRIES\tTTL")
		for _, stat := range caches.Stats() {
			fmt.Fprintf(w, "%s\t%d\t%s\n", stat.Domain, stat.Entries, stat.TTL)
		}
		return w.Flush()
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop expired entries from every cache domain",
	RunE: func(cmd *cobra.Command, args []string) error {
		caches := cache.Open(cfg.CacheDir())

		removed, err := caches.Prune()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "pruned %d expired entries\n", removed)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}
