package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agrc/honeycomb/internal/updater"
)

var updateDataOpts updater.Options

var updateDataCmd = &cobra.Command{
	Use:   "update-data",
	Short: "Run the external source-data refresh",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := envOverlay(mustLoadConfig())
		requireShare(cfg)
		fail(updater.NoopUpdater{}.Update(context.Background(), updateDataOpts))
	},
}

func init() {
	updateDataCmd.Flags().BoolVar(&updateDataOpts.StaticOnly, "static-only", false, "refresh only statically-sourced layers")
	updateDataCmd.Flags().BoolVar(&updateDataOpts.SGIDOnly, "sgid-only", false, "refresh only SGID-sourced layers")
	updateDataCmd.Flags().BoolVar(&updateDataOpts.ExternalOnly, "external-only", false, "refresh only externally-sourced layers")
	updateDataCmd.Flags().BoolVar(&updateDataOpts.DontWait, "dont-wait", false, "skip the nightly-hour wait")
}
