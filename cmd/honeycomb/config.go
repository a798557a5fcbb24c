package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agrc/honeycomb/internal/basemap"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the honeycomb configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write default configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configStore.Init()
		fail(err)
		fmt.Printf("wrote default configuration for %d basemap(s)\n", len(cfg.Basemaps))
	},
}

var (
	configSetKey   string
	configSetValue string
)

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update one configuration field",
	Run: func(cmd *cobra.Command, args []string) {
		fail(configStore.Set(configSetKey, configSetValue))
	},
}

var (
	addBasemapName string
	removeBasemap  string
	loopEligible   bool
)

var configBasemapsCmd = &cobra.Command{
	Use:   "basemaps",
	Short: "Register or unregister a basemap",
	Run: func(cmd *cobra.Command, args []string) {
		switch {
		case addBasemapName != "":
			bucket := addBasemapName
			if len(args) > 0 {
				bucket = args[0]
			}
			fail(configStore.AddBasemap(basemap.Basemap{
				Name:         addBasemapName,
				Bucket:       bucket,
				ImageType:    basemap.PNG,
				LoopEligible: loopEligible,
			}))
		case removeBasemap != "":
			fail(configStore.RemoveBasemap(removeBasemap))
		default:
			fail(fmt.Errorf("one of --add or --remove is required"))
		}
	},
}

func init() {
	configSetCmd.Flags().StringVar(&configSetKey, "key", "", "configuration key")
	configSetCmd.Flags().StringVar(&configSetValue, "value", "", "configuration value")

	configBasemapsCmd.Flags().StringVar(&addBasemapName, "add", "", "register a basemap by name")
	configBasemapsCmd.Flags().StringVar(&removeBasemap, "remove", "", "unregister a basemap by name")
	configBasemapsCmd.Flags().BoolVar(&loopEligible, "loop", false, "include the basemap in the interactive loop command")

	configCmd.AddCommand(configInitCmd, configSetCmd, configBasemapsCmd)
}
