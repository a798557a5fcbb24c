package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	honeycombconfig "github.com/agrc/honeycomb/internal/config"
	"github.com/agrc/honeycomb/internal/logging"
)

var cfgFile string
var logger *slog.Logger
var configStore *honeycombconfig.Store

var rootCmd = &cobra.Command{
	Use:   "honeycomb",
	Short: "Build and upload regional basemap tile caches",
	Long: `honeycomb drives a named basemap through data refresh, compact-cache
build, tile export, and parallel content-addressed upload to object storage.`,
}

func Execute() {
	if logger == nil {
		initLogging()
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file (default is the well-known honeycomb config path)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	if err := viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		panic(fmt.Sprintf("binding log-level flag: %v", err))
	}

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(updateDataCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(loopCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(vectorCmd)
	rootCmd.AddCommand(vectorAllCmd)
	rootCmd.AddCommand(cacheCmd)
}

func initConfig() {
	path := cfgFile
	if path == "" {
		var err error
		path, err = honeycombconfig.DefaultPath()
		if err != nil {
			fmt.Fprintln(os.Stderr, "resolving default config path:", err)
			os.Exit(1)
		}
	}
	configStore = honeycombconfig.New(path)

	viper.SetEnvPrefix("HONEYCOMB")
	viper.AutomaticEnv()
}

func initLogging() {
	level := logging.ParseLevel(viper.GetString("log-level"))
	logger = logging.New(level)
	slog.SetDefault(logger)
}

// mustLoadConfig reads the honeycomb configuration or exits with a
// ConfigurationError-shaped message, matching spec §7's "fail the run
// immediately" policy for missing configuration.
func mustLoadConfig() *honeycombconfig.Config {
	cfg, err := configStore.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}

func requireShare(cfg *honeycombconfig.Config) string {
	if cfg.Share == "" {
		fmt.Fprintln(os.Stderr, "HONEYCOMB_SHARE (or config \"share\") is required")
		os.Exit(1)
	}
	return cfg.Share
}
