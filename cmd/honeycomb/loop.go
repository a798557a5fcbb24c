package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agrc/honeycomb/internal/orchestrator"
)

var loopCmd = &cobra.Command{
	Use:   "loop",
	Short: "Interactively walk over every loop-eligible basemap",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := envOverlay(mustLoadConfig())
		requireShare(cfg)

		ctx := context.Background()
		orch, err := buildOrchestrator(ctx, cfg)
		fail(err)

		reader := bufio.NewReader(os.Stdin)
		for _, bm := range cfg.Basemaps {
			if !bm.LoopEligible {
				continue
			}

			fmt.Printf("cache %s now? [y/N] ", bm.Name)
			line, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(line)) != "y" {
				continue
			}

			if err := orch.Run(ctx, orchestrator.RunOptions{Basemap: bm}); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", bm.Name, err)
			}
		}
	},
}
