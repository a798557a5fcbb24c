package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agrc/honeycomb/internal/basemap"
	"github.com/agrc/honeycomb/internal/jobstore"
	"github.com/agrc/honeycomb/internal/renderer"
)

// runSpotBuild implements spot mode: scales 0-17 bounded by the spot
// polygon, then scales 18-19 bounded by the intersection of the spot
// polygon with the production 18/19 cache extent (spec §4.6 "Spot
// mode"). Neither sub-phase is checkpointed beyond the two coarse Job
// booleans set at the end, since spot runs are short.
func (o *Orchestrator) runSpotBuild(ctx context.Context, opts RunOptions, restrict []float64, logger *slog.Logger) error {
	lowScales := o.Scheme.ScalesFor(lowZoomIndices(o.Scheme))
	if err := o.buildTiles(ctx, opts.Basemap.Name, lowScales, opts.SpotPath, renderer.RecreateEmpty, restrict); err != nil {
		return fmt.Errorf("building spot cache (0-17) for %s: %w", opts.Basemap.Name, err)
	}

	if o.Config.CacheExtent1819Path != "" {
		spotPolygon, err := basemap.LoadPolygon(opts.SpotPath)
		if err != nil {
			return fmt.Errorf("loading spot polygon %s: %w", opts.SpotPath, err)
		}
		extentPolygon, err := basemap.LoadPolygon(o.Config.CacheExtent1819Path)
		if err != nil {
			return fmt.Errorf("loading 18/19 cache extent polygon: %w", err)
		}

		intersectionPath, ok, err := basemap.IntersectBound(spotPolygon, extentPolygon, o.Config.WorkDir)
		if err != nil {
			return fmt.Errorf("intersecting spot polygon with 18/19 extent: %w", err)
		}
		if ok {
			highScales := o.Scheme.ScalesFor(highZoomIndices(o.Scheme))
			if err := o.buildTiles(ctx, opts.Basemap.Name, highScales, intersectionPath, renderer.RecreateEmpty, restrict); err != nil {
				return fmt.Errorf("building spot cache (18-19) for %s: %w", opts.Basemap.Name, err)
			}
		} else {
			logger.Info("spot polygon does not intersect the 18/19 cache extent, skipping high-zoom pass")
		}
	}

	_, err := o.Jobs.Update(func(j *jobstore.Job) { j.CachingComplete = true })
	return err
}

// lowZoomIndices returns every scale index covered by the extent phases
// (scales 0-17).
func lowZoomIndices(scheme basemap.TileScheme) []int {
	var indices []int
	for _, extent := range scheme.CacheExtents {
		indices = append(indices, extent.ScaleIndices...)
	}
	return indices
}

// highZoomIndices returns the grid levels' scale indices (18-19).
func highZoomIndices(scheme basemap.TileScheme) []int {
	indices := make([]int, len(scheme.Grids))
	for i, grid := range scheme.Grids {
		indices[i] = grid.ScaleIndex
	}
	return indices
}
