package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agrc/honeycomb/internal/jobstore"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete local tile directories and any live Job",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := envOverlay(mustLoadConfig())
		requireShare(cfg)

		jobs := jobstore.New(jobDir(cfg))
		fail(jobs.Finish())

		for _, bm := range cfg.Basemaps {
			for _, dir := range []string{
				filepath.Join(cacheRoot(cfg), bm.Name),
				filepath.Join(cacheRoot(cfg), bm.Name+"_Exploded"),
			} {
				if err := os.RemoveAll(dir); err != nil {
					fail(err)
				}
			}
		}
	},
}
