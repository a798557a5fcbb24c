package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agrc/honeycomb/internal/publisher"
)

var vectorCmd = &cobra.Command{
	Use:   "vector NAME",
	Short: "Publish one vector basemap's tile package",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := envOverlay(mustLoadConfig())
		requireShare(cfg)

		if _, err := findBasemap(cfg, args[0]); err != nil {
			fail(err)
		}

		fail(publisher.Noop{}.Publish(context.Background(), args[0]))
	},
}

var vectorAllCmd = &cobra.Command{
	Use:   "vector-all",
	Short: "Publish every registered vector basemap's tile package",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := envOverlay(mustLoadConfig())
		requireShare(cfg)

		pub := publisher.Noop{}
		for _, bm := range cfg.Basemaps {
			fail(pub.Publish(context.Background(), bm.Name))
		}
	},
}
