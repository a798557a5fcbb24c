package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/agrc/honeycomb/internal/basemap"
	"github.com/agrc/honeycomb/internal/catalog"
	"github.com/agrc/honeycomb/internal/jobstore"
	"github.com/agrc/honeycomb/internal/renderer"
)

// phase is one resumable unit of the production build: a named
// checkpoint key and the closure that reproduces it.
type phase struct {
	key string
	run func(ctx context.Context) error
}

// runProductionBuild implements spec §4.6 steps 6-8: the extent and
// grid phases, the per-phase error-list retry drain, and the bounded
// completeness-recursion retry.
func (o *Orchestrator) runProductionBuild(ctx context.Context, opts RunOptions, restrict []float64, logger *slog.Logger) error {
	dontSkip := false

	for attempt := 0; ; attempt++ {
		if err := o.runPhasesOnce(ctx, opts.Basemap.Name, restrict, dontSkip, logger); err != nil {
			return err
		}

		if restrict != nil {
			break // levels restriction disables the completeness recursion
		}

		expected := o.Config.ExpectedBundleCount[opts.Basemap.Name]
		if expected == 0 {
			break
		}
		count, err := catalog.CountBundles(o.Config.CacheRoot, opts.Basemap.Name)
		if err != nil {
			return fmt.Errorf("counting bundles for %s: %w", opts.Basemap.Name, err)
		}
		if count >= expected {
			break
		}
		if attempt >= maxCompletenessRetries {
			logger.Warn("bundle count still short of expected after max retries",
				"count", count, "expected", expected, "retries", attempt)
			break
		}

		logger.Info("bundle count short of expected, re-entering production build",
			"count", count, "expected", expected, "attempt", attempt+1)
		dontSkip = true
	}

	_, err := o.Jobs.Update(func(j *jobstore.Job) { j.CachingComplete = true })
	return err
}

// runPhasesOnce builds every extent phase then every grid phase once,
// draining any per-phase failures before returning.
func (o *Orchestrator) runPhasesOnce(ctx context.Context, basemapName string, restrict []float64, dontSkip bool, logger *slog.Logger) error {
	job, err := o.Jobs.Load()
	if err != nil {
		return err
	}

	phases, err := o.extentPhases(basemapName, restrict)
	if err != nil {
		return err
	}
	failed := o.runPhaseList(ctx, job, phases, dontSkip, logger)
	o.notify("Levels 0-17 completed", fmt.Sprintf("%s: levels 0-17 completed", basemapName), logger)

	for i, grid := range o.Scheme.Grids {
		gridPhases, err := o.gridPhases(basemapName, o.Scheme.Grids[i:i+1], restrict)
		if err != nil {
			return err
		}
		failed = append(failed, o.runPhaseList(ctx, job, gridPhases, dontSkip, logger)...)
		o.notify(fmt.Sprintf("%s completed", grid.Name), fmt.Sprintf("%s: %s completed", basemapName, grid.Name), logger)
	}

	return o.drainPhaseFailures(ctx, failed, logger)
}

// runPhaseList runs every phase not already recorded complete (unless
// dontSkip), appending the phase key on success and collecting failures
// rather than aborting (spec §4.6 step 7).
func (o *Orchestrator) runPhaseList(ctx context.Context, job *jobstore.Job, phases []phase, dontSkip bool, logger *slog.Logger) []phase {
	var failed []phase
	for _, p := range phases {
		if !dontSkip && job.HasPhase(p.key) {
			continue
		}
		if err := p.run(ctx); err != nil {
			logger.Warn("phase failed, will retry", "phase", p.key, "error", err)
			failed = append(failed, p)
			continue
		}
		if _, err := o.Jobs.AppendPhase(p.key); err != nil {
			logger.Warn("failed to record phase completion", "phase", p.key, "error", err)
		}
	}
	return failed
}

// drainPhaseFailures re-runs failed phases until the list is empty or
// maxPhaseRetryPasses is exhausted.
func (o *Orchestrator) drainPhaseFailures(ctx context.Context, failed []phase, logger *slog.Logger) error {
	for pass := 0; len(failed) > 0 && pass < maxPhaseRetryPasses; pass++ {
		var stillFailed []phase
		for _, p := range failed {
			if err := p.run(ctx); err != nil {
				logger.Warn("phase retry failed", "phase", p.key, "pass", pass, "error", err)
				stillFailed = append(stillFailed, p)
				continue
			}
			if _, err := o.Jobs.AppendPhase(p.key); err != nil {
				logger.Warn("failed to record phase completion", "phase", p.key, "error", err)
			}
		}
		failed = stillFailed
	}

	if len(failed) > 0 {
		keys := make([]string, len(failed))
		for i, p := range failed {
			keys[i] = p.key
		}
		return fmt.Errorf("phases never recovered after %d retry passes: %s", maxPhaseRetryPasses, strings.Join(keys, ", "))
	}
	return nil
}

func (o *Orchestrator) extentPhases(basemapName string, restrict []float64) ([]phase, error) {
	phases := make([]phase, 0, len(o.Scheme.CacheExtents))
	for _, extent := range o.Scheme.CacheExtents {
		extent := extent
		scales := o.Scheme.ScalesFor(extent.ScaleIndices)
		aoi, ok := o.Config.ExtentPolygons[extent.Name]
		if !ok {
			return nil, fmt.Errorf("no AoI polygon configured for extent %s", extent.Name)
		}

		phases = append(phases, phase{
			key: extentPhaseKey(extent.Name, scales),
			run: func(ctx context.Context) error {
				return o.buildTiles(ctx, basemapName, scales, aoi, renderer.RecreateEmpty, restrict)
			},
		})
	}
	return phases, nil
}

func (o *Orchestrator) gridPhases(basemapName string, grids []basemap.GridLevel, restrict []float64) ([]phase, error) {
	var phases []phase
	for _, grid := range grids {
		grid := grid
		source, ok := o.Config.GridSourcePaths[grid.Name]
		if !ok {
			return nil, fmt.Errorf("no grid source configured for %s", grid.Name)
		}

		features, err := basemap.LoadGridFeatures(source)
		if err != nil {
			return nil, fmt.Errorf("loading grid features for %s: %w", grid.Name, err)
		}

		scale := o.Scheme.Scales[grid.ScaleIndex]
		for _, feature := range features {
			feature := feature
			aoiPath, err := writeGridFeaturePolygon(o.Config.WorkDir, grid.Name, feature)
			if err != nil {
				return nil, err
			}

			phases = append(phases, phase{
				key: gridPhaseKey(grid.Name, feature.OID, scale),
				run: func(ctx context.Context) error {
					return o.buildTiles(ctx, basemapName, []float64{scale}, aoiPath, renderer.RecreateEmpty, restrict)
				},
			})
		}
	}
	return phases, nil
}

// extentPhaseKey formats the "<name>-<scales>" checkpoint key for an
// extent phase (spec §4.6 step 6).
func extentPhaseKey(name string, scales []float64) string {
	return fmt.Sprintf("%s-%s", name, formatScales(scales))
}

// gridPhaseKey formats the "<gridName>: OBJECTID: <oid>-[<scale>]"
// checkpoint key for one grid feature (spec §4.6 step 6).
func gridPhaseKey(gridName string, oid int, scale float64) string {
	return fmt.Sprintf("%s: OBJECTID: %d-[%s]", gridName, oid, formatScales([]float64{scale}))
}

// writeGridFeaturePolygon writes one grid feature's geometry out as a
// standalone GeoJSON file so it can be passed to the Renderer Adapter
// as an AoI path, named so repeated runs reuse (and overwrite) the same
// file per feature rather than accumulating scratch files.
func writeGridFeaturePolygon(workDir, gridName string, feature basemap.GridFeature) (string, error) {
	f := geojson.NewFeature(feature.Geometry)
	data, err := f.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshaling grid feature %s/%d: %w", gridName, feature.OID, err)
	}

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("creating work directory %s: %w", workDir, err)
	}

	path := filepath.Join(workDir, fmt.Sprintf("%s-%d.geojson", gridName, feature.OID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing grid feature polygon %s: %w", path, err)
	}
	return path, nil
}

func formatScales(scales []float64) string {
	parts := make([]string, len(scales))
	for i, s := range scales {
		parts[i] = strconv.FormatFloat(s, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
