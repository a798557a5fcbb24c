package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agrc/honeycomb/internal/orchestrator"
)

var (
	missingOnly bool
	skipUpdate  bool
	skipTest    bool
	spotPath    string
	levelsFlag  string
	dontWait    bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache NAME",
	Short: "Run the full cache and upload pipeline for one basemap",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := envOverlay(mustLoadConfig())
		requireShare(cfg)

		bm, err := findBasemap(cfg, args[0])
		fail(err)

		levels, err := parseLevels(levelsFlag)
		fail(err)

		ctx := context.Background()
		orch, err := buildOrchestrator(ctx, cfg)
		fail(err)

		err = orch.Run(ctx, orchestrator.RunOptions{
			Basemap:     bm,
			MissingOnly: missingOnly,
			SkipUpdate:  skipUpdate,
			SkipTest:    skipTest,
			SpotPath:    spotPath,
			Levels:      levels,
			DontWait:    dontWait,
		})
		fail(err)
	},
}

// parseLevels parses "N-M" into a LevelRange, or returns nil if flag is unset.
func parseLevels(flag string) (*orchestrator.LevelRange, error) {
	if flag == "" {
		return nil, nil
	}
	parts := strings.SplitN(flag, "-", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("--levels must be of the form N-M, got %q", flag)
	}
	min, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("parsing --levels lower bound: %w", err)
	}
	max, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("parsing --levels upper bound: %w", err)
	}
	return &orchestrator.LevelRange{Min: min, Max: max}, nil
}

func init() {
	cacheCmd.Flags().BoolVar(&missingOnly, "missing-only", false, "fill in missing tiles without clearing the existing cache")
	cacheCmd.Flags().BoolVar(&skipUpdate, "skip-update", false, "skip the source-data refresh step")
	cacheCmd.Flags().BoolVar(&skipTest, "skip-test", false, "skip the test cache build")
	cacheCmd.Flags().StringVar(&spotPath, "spot", "", "build a spot cache bounded by this AoI polygon path")
	cacheCmd.Flags().StringVar(&levelsFlag, "levels", "", "restrict the build to scale indices N-M")
	cacheCmd.Flags().BoolVar(&dontWait, "dont-wait", false, "skip the nightly-hour wait before the data refresh")
}
