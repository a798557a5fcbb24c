package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/agrc/honeycomb/internal/basemap"
	"github.com/agrc/honeycomb/internal/config"
	"github.com/agrc/honeycomb/internal/errs"
	"github.com/agrc/honeycomb/internal/jobstore"
	"github.com/agrc/honeycomb/internal/journal"
	"github.com/agrc/honeycomb/internal/notifier"
	"github.com/agrc/honeycomb/internal/orchestrator"
	"github.com/agrc/honeycomb/internal/renderer"
	"github.com/agrc/honeycomb/internal/statsstore"
	"github.com/agrc/honeycomb/internal/updater"
	"github.com/agrc/honeycomb/internal/uploader"
)

// envOverlay layers the process environment on top of the persisted
// configuration, the same precedence the teacher's .env/.env.local
// convention gave environment variables over file defaults.
func envOverlay(cfg *config.Config) *config.Config {
	v := viper.New()
	v.SetEnvPrefix("HONEYCOMB")
	v.AutomaticEnv()

	bind := func(key, env string) {
		_ = v.BindEnv(key, env)
	}
	bind("share", "HONEYCOMB_SHARE")
	bind("smtpServer", "HONEYCOMB_SMTP_SERVER")
	bind("smtpPort", "HONEYCOMB_SMTP_PORT")
	bind("gizaUsername", "HONEYCOMB_GIZA_USERNAME")
	bind("gizaPassword", "HONEYCOMB_GIZA_PASSWORD")
	bind("objectStoreAccessKeyID", "HONEYCOMB_OBJECT_STORE_ACCESS_KEY_ID")
	bind("objectStoreSecretAccessKey", "HONEYCOMB_OBJECT_STORE_SECRET_ACCESS_KEY")
	bind("rendererToolPath", "HONEYCOMB_RENDERER_TOOL_PATH")
	bind("rendererWorkspace", "HONEYCOMB_RENDERER_WORKSPACE")

	if s := v.GetString("share"); s != "" {
		cfg.Share = s
	}
	if s := v.GetString("smtpServer"); s != "" {
		cfg.SMTPServer = s
	}
	if s := v.GetString("smtpPort"); s != "" {
		cfg.SMTPPort = s
	}
	if s := v.GetString("rendererToolPath"); s != "" {
		cfg.RendererToolPath = s
	}
	if s := v.GetString("rendererWorkspace"); s != "" {
		cfg.RendererWorkspace = s
	}

	gizaUsername = v.GetString("gizaUsername")
	gizaPassword = v.GetString("gizaPassword")
	objectStoreAccessKeyID = v.GetString("objectStoreAccessKeyID")
	objectStoreSecretAccessKey = v.GetString("objectStoreSecretAccessKey")

	return cfg
}

// credentials sourced only from the environment, never persisted.
var (
	gizaUsername               string
	gizaPassword               string
	objectStoreAccessKeyID     string
	objectStoreSecretAccessKey string
)

func cacheRoot(cfg *config.Config) string {
	return filepath.Join(cfg.Share, "cache")
}

func jobDir(cfg *config.Config) string {
	return cfg.Share
}

func extentPolygonPath(cfg *config.Config, name string) string {
	return filepath.Join(cfg.Share, "extents", name+".geojson")
}

func gridSourcePath(cfg *config.Config, name string) string {
	return filepath.Join(cfg.Share, "grids", name+".geojson")
}

func testExtentPath(cfg *config.Config) string {
	return filepath.Join(cfg.Share, "extents", "test.geojson")
}

func workDir(cfg *config.Config) string {
	return filepath.Join(cfg.Share, "work")
}

// buildOrchestrator wires the full collaborator graph for one run: Job
// Store and Stats Store rooted at the share, the GIS toolbox subprocess
// adapter, the S3 uploader with Discover cache-busting, and the
// SMTP/webhook notifier fan-out.
func buildOrchestrator(ctx context.Context, cfg *config.Config) (*orchestrator.Orchestrator, error) {
	share := requireShare(cfg)

	jobs := jobstore.New(jobDir(cfg))
	stats := statsstore.New(jobDir(cfg), logger)

	rend := renderer.NewSubprocessAdapter(cfg.RendererToolPath, cacheRoot(cfg), cfg.RendererWorkspace, cfg.RendererInstances, logger)

	notif := notifier.Multi{Channels: []notifier.Notifier{
		notifier.NewSMTPNotifier(notifier.SMTPConfig{
			Server:     cfg.SMTPServer,
			Port:       cfg.SMTPPort,
			From:       "honeycomb@" + share,
			To:         cfg.NotifyEmails,
			SendEmails: cfg.SendEmails,
		}, logger),
		notifier.NewWebhookNotifier(notifier.WebhookConfig{
			URL:     cfg.WebhookURL,
			Enabled: cfg.WebhookURL != "",
		}, logger),
	}}

	up, err := uploader.New(ctx, uploader.S3Config{
		Endpoint:        cfg.ObjectStoreEndpoint,
		Region:          cfg.ObjectStoreRegion,
		AccessKeyID:     objectStoreAccessKeyID,
		SecretAccessKey: objectStoreSecretAccessKey,
		PoolSize:        cfg.UploadPoolSize,
	}, uploader.Config{
		PoolSize: cfg.UploadPoolSize,
		Discover: uploader.DiscoverConfig{
			BaseURL:  cfg.DiscoverBaseURL,
			Username: gizaUsername,
			Password: gizaPassword,
		},
	}, notif, logger)
	if err != nil {
		return nil, fmt.Errorf("building uploader: %w", err)
	}

	scheme := basemap.DefaultTileScheme

	extentPolygons := make(map[string]string, len(scheme.CacheExtents))
	for _, extent := range scheme.CacheExtents {
		extentPolygons[extent.Name] = extentPolygonPath(cfg, extent.Name)
	}
	gridSources := make(map[string]string, len(scheme.Grids))
	for _, grid := range scheme.Grids {
		gridSources[grid.Name] = gridSourcePath(cfg, grid.Name)
	}

	orchCfg := orchestrator.Config{
		CacheRoot:           cacheRoot(cfg),
		TestExtentPath:      testExtentPath(cfg),
		ExtentPolygons:      extentPolygons,
		GridSourcePaths:     gridSources,
		CacheExtent1819Path: extentPolygonPath(cfg, "CacheExtent_18_19"),
		ExpectedBundleCount: map[string]int{},
		NightlyHour:         cfg.NightlyHour,
		WorkDir:             workDir(cfg),
	}

	return orchestrator.New(jobs, stats, rend, up, notif, updater.NoopUpdater{}, journal.Noop{}, scheme, orchCfg, logger), nil
}

func findBasemap(cfg *config.Config, name string) (basemap.Basemap, error) {
	bm, ok := cfg.BasemapByName(name)
	if !ok {
		return basemap.Basemap{}, &errs.ConfigurationError{Detail: fmt.Sprintf("no basemap named %q is registered", name)}
	}
	return bm, nil
}

func fail(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
