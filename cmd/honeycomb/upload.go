package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload NAME",
	Short: "Upload an exploded tile cache without touching the Job Store",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := envOverlay(mustLoadConfig())
		requireShare(cfg)

		bm, err := findBasemap(cfg, args[0])
		fail(err)

		ctx := context.Background()
		orch, err := buildOrchestrator(ctx, cfg)
		fail(err)

		report, err := orch.UploadOnly(ctx, bm)
		fail(err)

		fmt.Printf("uploaded %d tiles, skipped %d, removed %d row directories, %d error(s)\n",
			report.TilesUploaded, report.TilesSkipped, report.RowsRemoved, len(report.Errors))
	},
}
