// Package orchestrator drives one basemap through the full cache and
// upload lifecycle: job bookkeeping, layer validation, data refresh,
// test cache, the production extent/grid build with resumable phase
// checkpoints, export, upload, and journal updates.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/agrc/honeycomb/internal/basemap"
	"github.com/agrc/honeycomb/internal/journal"
	"github.com/agrc/honeycomb/internal/jobstore"
	"github.com/agrc/honeycomb/internal/notifier"
	"github.com/agrc/honeycomb/internal/renderer"
	"github.com/agrc/honeycomb/internal/statsstore"
	"github.com/agrc/honeycomb/internal/updater"
	"github.com/agrc/honeycomb/internal/uploader"
)

// maxCompletenessRetries bounds the completeness-recursion retry
// counter (spec §9: "cap at a small integer").
const maxCompletenessRetries = 3

// maxPhaseRetryPasses bounds how many times a full pass over the
// outstanding error list is retried before giving up and surfacing the
// remaining failures; it exists to stop a genuinely broken phase from
// looping forever.
const maxPhaseRetryPasses = 5

// tileUploader is the narrow contract the orchestrator drives the
// uploader through, kept as an interface so tests can substitute a
// fake without standing up object storage.
type tileUploader interface {
	Upload(ctx context.Context, req uploader.Request) (uploader.Report, error)
}

// Config carries the orchestrator's file-system and policy inputs:
// where the renderer writes its caches, the area-of-interest polygons
// for the fixed extents, and the per-basemap expected bundle counts
// used by the completeness check.
type Config struct {
	CacheRoot string

	// TestExtentPath is the AoI polygon bounding the test cache build.
	TestExtentPath string

	// ExtentPolygons maps an ExtentPhase name to its AoI polygon path.
	ExtentPolygons map[string]string

	// GridSourcePaths maps a GridLevel name to the GeoJSON feature
	// collection of grid-cell polygons it iterates.
	GridSourcePaths map[string]string

	// CacheExtent1819Path is the production cache extent polygon for
	// the 18/19 grid levels, used to bound spot mode's high-zoom pass.
	CacheExtent1819Path string

	// ExpectedBundleCount is the completeness-check threshold per basemap.
	ExpectedBundleCount map[string]int

	// NightlyHour, if set (0-23), delays data refresh until that local
	// hour unless the caller passes DontWait.
	NightlyHour *int

	// PreviewURL formats the test-cache preview URL for a basemap name.
	PreviewURL func(basemapName string) string

	// WorkDir holds scratch files, such as the spot-mode intersection
	// polygon written by basemap.IntersectBound.
	WorkDir string
}

// Orchestrator drives the Cache Build & Upload Pipeline for one basemap
// at a time. At most one Renderer Adapter call is ever in flight from a
// given Orchestrator (spec §5 "at most one Renderer Adapter call is in
// flight per process").
type Orchestrator struct {
	Jobs     *jobstore.Store
	Stats    *statsstore.Store
	Renderer renderer.Adapter
	Uploader tileUploader
	Notifier notifier.Notifier
	Updater  updater.Updater
	Journal  journal.Journal
	Scheme   basemap.TileScheme
	Config   Config
	Logger   *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, until time.Time) error
}

// New builds an Orchestrator. now/sleep default to real time and real
// sleeping; tests override them to avoid blocking on a nightly wait.
func New(jobs *jobstore.Store, stats *statsstore.Store, rend renderer.Adapter, up tileUploader, notif notifier.Notifier, upd updater.Updater, jrnl journal.Journal, scheme basemap.TileScheme, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		Jobs:     jobs,
		Stats:    stats,
		Renderer: rend,
		Uploader: up,
		Notifier: notif,
		Updater:  upd,
		Journal:  jrnl,
		Scheme:   scheme,
		Config:   cfg,
		Logger:   logger,
		now:      time.Now,
		sleep:    ctxSleep,
	}
}

// LevelRange restricts the orchestrator to scale indices [Min, Max]
// (inclusive), implementing `--levels N-M`.
type LevelRange struct {
	Min, Max int
}

// RunOptions mirrors the `<basemap> [flags]` and `resume` CLI surface.
type RunOptions struct {
	Basemap     basemap.Basemap
	MissingOnly bool
	SkipUpdate  bool
	SkipTest    bool
	SpotPath    string
	Levels      *LevelRange
	GroupLayers []string
	DontWait    bool
	Resume      bool
}

func (o *RunOptions) cacheArgs() jobstore.CacheArgs {
	args := jobstore.CacheArgs{
		Basemap:     o.Basemap.Name,
		MissingOnly: o.MissingOnly,
		SkipUpdate:  o.SkipUpdate,
		SkipTest:    o.SkipTest,
		SpotPath:    o.SpotPath,
		GroupLayers: o.GroupLayers,
	}
	if o.Levels != nil {
		args.Levels = []int{o.Levels.Min, o.Levels.Max}
	}
	return args
}

func (o *RunOptions) restrictedScales(scheme basemap.TileScheme) ([]float64, error) {
	if o.Levels == nil {
		return nil, nil
	}
	return scheme.RestrictedScales(o.Levels.Min, o.Levels.Max)
}

// Run executes the full cache+upload lifecycle for one basemap,
// implementing spec §4.6 step-for-step.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) error {
	logger := o.Logger.With("basemap", opts.Basemap.Name)

	restrict, err := opts.restrictedScales(o.Scheme)
	if err != nil {
		return fmt.Errorf("resolving level restriction: %w", err)
	}

	// Step 1: job init.
	job, err := o.initJob(opts)
	if err != nil {
		return err
	}
	if err := o.Stats.RecordStart(opts.Basemap.Name, statsstore.TaskCache); err != nil {
		logger.Warn("stats record start failed", "error", err)
	}

	// Step 2: validate layers.
	mapName := opts.Basemap.MapName
	if mapName == "" {
		mapName = opts.Basemap.Name
	}
	if err := o.Renderer.ValidateLayers(ctx, mapName); err != nil {
		return fmt.Errorf("validating layers for %s: %w", mapName, err)
	}

	// Step 3: data update.
	if err := o.dataUpdate(ctx, opts, job, logger); err != nil {
		return err
	}

	spotMode := opts.SpotPath != ""

	// Step 4: test cache.
	if err := o.testCache(ctx, opts, job, spotMode, restrict, logger); err != nil {
		return err
	}

	// Step 5: fresh-cache prep. A resumed job whose production build
	// already completed skips straight to upload.
	if !job.CachingComplete {
		if !opts.MissingOnly && !spotMode {
			o.removeCaches(opts.Basemap.Name, logger)
		}

		if spotMode {
			if err := o.runSpotBuild(ctx, opts, restrict, logger); err != nil {
				return err
			}
		} else {
			if err := o.runProductionBuild(ctx, opts, restrict, logger); err != nil {
				return err
			}
		}
	}

	// Step 9: finalize.
	if err := o.Stats.RecordFinish(opts.Basemap.Name, statsstore.TaskCache); err != nil {
		logger.Warn("stats record finish failed", "error", err)
	}
	job, err = o.Jobs.Load()
	if err != nil {
		return fmt.Errorf("reloading job before finalize: %w", err)
	}
	if !job.ExplodingComplete {
		if err := o.Renderer.Explode(ctx, opts.Basemap.Name); err != nil {
			return fmt.Errorf("exploding %s: %w", opts.Basemap.Name, err)
		}
		if _, err := o.Jobs.Update(func(j *jobstore.Job) { j.ExplodingComplete = true }); err != nil {
			return fmt.Errorf("marking exploding complete: %w", err)
		}
	}
	o.notify("Caching complete", fmt.Sprintf("%s caching complete", opts.Basemap.Name), logger)

	// Step 10: upload.
	if err := o.Stats.RecordStart(opts.Basemap.Name, statsstore.TaskUpload); err != nil {
		logger.Warn("stats record start failed", "error", err)
	}
	report, err := o.Uploader.Upload(ctx, uploader.Request{
		Basemap:   opts.Basemap,
		CacheRoot: o.Config.CacheRoot,
		IsTest:    false,
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", opts.Basemap.Name, err)
	}
	if err := o.Stats.RecordFinish(opts.Basemap.Name, statsstore.TaskUpload); err != nil {
		logger.Warn("stats record finish failed", "error", err)
	}
	if len(report.Errors) > 0 {
		logger.Warn("upload completed with errors", "count", len(report.Errors))
	}

	// Step 11: journal updates.
	now := o.now()
	if err := o.Journal.AppendChangelogRow(ctx, opts.Basemap.Name, now); err != nil {
		logger.Warn("journal changelog append failed", "error", err)
	}
	if err := o.Journal.UpdateLastUpdated(ctx, opts.Basemap.Name, now); err != nil {
		logger.Warn("journal last-updated update failed", "error", err)
	}

	// Step 12: cleanup.
	return o.Jobs.Finish()
}

// UploadOnly implements the `upload <NAME>` command: it skips straight
// to §4.5 without touching the Job Store.
func (o *Orchestrator) UploadOnly(ctx context.Context, bm basemap.Basemap) (uploader.Report, error) {
	return o.Uploader.Upload(ctx, uploader.Request{Basemap: bm, CacheRoot: o.Config.CacheRoot})
}

func (o *Orchestrator) initJob(opts RunOptions) (*jobstore.Job, error) {
	if opts.Resume {
		job, err := o.Jobs.Load()
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, fmt.Errorf("resume requested but no job is in progress")
		}
		return o.Jobs.RecordRestart(o.now())
	}
	return o.Jobs.Start(opts.cacheArgs(), false)
}

func (o *Orchestrator) dataUpdate(ctx context.Context, opts RunOptions, job *jobstore.Job, logger *slog.Logger) error {
	if opts.SkipUpdate || job.DataUpdated {
		return nil
	}

	if err := o.waitForNightlyHour(ctx, opts.DontWait); err != nil {
		return err
	}

	if err := o.Updater.Update(ctx, updater.Options{DontWait: opts.DontWait}); err != nil {
		return fmt.Errorf("updating data for %s: %w", opts.Basemap.Name, err)
	}

	if _, err := o.Jobs.Update(func(j *jobstore.Job) { j.DataUpdated = true }); err != nil {
		return fmt.Errorf("recording data update: %w", err)
	}
	o.notify("Data updated", fmt.Sprintf("%s source data refreshed", opts.Basemap.Name), logger)
	return nil
}

// waitForNightlyHour blocks until Config.NightlyHour, unless dontWait
// is set or no nightly hour is configured, grounded in the original
// pipeline's pause-at-night behavior ahead of a data refresh.
func (o *Orchestrator) waitForNightlyHour(ctx context.Context, dontWait bool) error {
	if dontWait || o.Config.NightlyHour == nil {
		return nil
	}

	now := o.now()
	target := time.Date(now.Year(), now.Month(), now.Day(), *o.Config.NightlyHour, 0, 0, 0, now.Location())
	if !target.After(now) {
		target = target.Add(24 * time.Hour)
	}
	return o.sleep(ctx, target)
}

func ctxSleep(ctx context.Context, until time.Time) error {
	timer := time.NewTimer(time.Until(until))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (o *Orchestrator) testCache(ctx context.Context, opts RunOptions, job *jobstore.Job, spotMode bool, restrict []float64, logger *slog.Logger) error {
	if opts.SkipTest || job.TestCacheComplete || spotMode {
		return nil
	}

	o.removeCaches(opts.Basemap.Name, logger)

	allScales := o.Scheme.Scales
	if err := o.buildTiles(ctx, opts.Basemap.Name, allScales, o.Config.TestExtentPath, renderer.RecreateAll, restrict); err != nil {
		return fmt.Errorf("building test cache for %s: %w", opts.Basemap.Name, err)
	}
	if err := o.Renderer.Explode(ctx, opts.Basemap.Name); err != nil {
		return fmt.Errorf("exploding test cache for %s: %w", opts.Basemap.Name, err)
	}

	previewURL := ""
	if o.Config.PreviewURL != nil {
		previewURL = o.Config.PreviewURL(opts.Basemap.Name)
	}
	if _, err := o.Uploader.Upload(ctx, uploader.Request{Basemap: opts.Basemap, CacheRoot: o.Config.CacheRoot, IsTest: true}); err != nil {
		return fmt.Errorf("uploading test cache for %s: %w", opts.Basemap.Name, err)
	}
	if previewURL != "" {
		logger.Info("test cache preview ready", "url", previewURL)
	}

	_, err := o.Jobs.Update(func(j *jobstore.Job) { j.TestCacheComplete = true })
	return err
}

func (o *Orchestrator) removeCaches(basemapName string, logger *slog.Logger) {
	for _, dir := range []string{
		filepath.Join(o.Config.CacheRoot, basemapName),
		filepath.Join(o.Config.CacheRoot, basemapName+"_Exploded"),
	} {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("failed to remove cache directory", "dir", dir, "error", err)
		}
	}
}

func (o *Orchestrator) buildTiles(ctx context.Context, basemapName string, scales []float64, aoiPath string, mode renderer.Mode, restrict []float64) error {
	effective := basemap.Intersect(scales, restrict)
	if len(effective) == 0 {
		return nil
	}
	return o.Renderer.BuildTiles(ctx, basemapName, effective, aoiPath, mode)
}

func (o *Orchestrator) notify(subject, body string, logger *slog.Logger) {
	if err := o.Notifier.Notify(context.Background(), subject, body); err != nil {
		logger.Warn("notification failed", "subject", subject, "error", err)
	}
}
