// Package renderer isolates the external GIS tile-rendering toolbox
// behind a narrow contract, including its license and global-state
// quirks (spec §9 "Global renderer singletons").
package renderer

import (
	"context"
)

// Mode selects how BuildTiles treats tiles that already exist.
type Mode string

const (
	// RecreateEmpty only fills in tiles that do not yet exist.
	RecreateEmpty Mode = "recreateEmpty"
	// RecreateAll rebuilds every tile in the requested extent.
	RecreateAll Mode = "recreateAll"
)

// MapHandle is an opaque reference to a map document. It is reusable
// across calls but cheap to obtain, per spec §4.4.
type MapHandle struct {
	Basemap string
	Path    string
}

// Adapter is the contract the Cache Orchestrator drives. Every method
// may block for minutes to hours and is treated as one atomic unit from
// the orchestrator's point of view; at most one call is in flight per
// process (spec §5, "at most one Renderer Adapter call is in flight").
type Adapter interface {
	// ValidateLayers fails with ConfigurationError if any layer's data
	// source backing mapName is missing.
	ValidateLayers(ctx context.Context, mapName string) error

	// BuildTiles generates tiles for the intersection of scales and the
	// basemap's restricted scale set, bounded by the polygon at aoiPath.
	// It returns normally on completion and fails with RenderError on
	// any rendering failure.
	BuildTiles(ctx context.Context, basemap string, scales []float64, aoiPath string, mode Mode) error

	// Explode converts the compact cache into the flat tile tree,
	// removing any prior exploded tree first.
	Explode(ctx context.Context, basemap string) error

	// GetMap returns a reusable handle to basemap's map document.
	GetMap(ctx context.Context, basemap string) (MapHandle, error)
}
