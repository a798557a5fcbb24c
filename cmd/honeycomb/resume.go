package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agrc/honeycomb/internal/errs"
	"github.com/agrc/honeycomb/internal/jobstore"
	"github.com/agrc/honeycomb/internal/orchestrator"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue the persisted Job",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := envOverlay(mustLoadConfig())
		requireShare(cfg)

		ctx := context.Background()
		jobs := jobstore.New(jobDir(cfg))
		job, err := jobs.Load()
		fail(err)
		if job == nil {
			fail(&errs.JobStateError{Detail: "no job is in progress; nothing to resume"})
		}

		bm, err := findBasemap(cfg, job.CacheArgs.Basemap)
		fail(err)

		orch, err := buildOrchestrator(ctx, cfg)
		fail(err)

		opts := orchestrator.RunOptions{
			Basemap:     bm,
			MissingOnly: true,
			SkipUpdate:  job.CacheArgs.SkipUpdate,
			SkipTest:    job.CacheArgs.SkipTest,
			SpotPath:    job.CacheArgs.SpotPath,
			Resume:      true,
		}
		if len(job.CacheArgs.Levels) == 2 {
			opts.Levels = &orchestrator.LevelRange{Min: job.CacheArgs.Levels[0], Max: job.CacheArgs.Levels[1]}
		}

		fail(orch.Run(ctx, opts))
	},
}
