package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agrc/honeycomb/internal/statsstore"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print average cache and upload durations per basemap",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := envOverlay(mustLoadConfig())
		requireShare(cfg)

		store := statsstore.New(jobDir(cfg), logger)
		summary, err := store.Summary()
		fail(err)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "BASEMAP\tCACHE RUNS\tAVG CACHE TIME\tUPLOAD RUNS\tAVG UPLOAD TIME")
		for _, row := range summary {
			fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\n",
				row.Basemap, row.AverageCacheRuns, row.AverageCacheDuration, row.AverageUploadRuns, row.AverageUploadDuration)
		}
		w.Flush()
	},
}
