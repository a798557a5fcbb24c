// Package fake provides an in-memory renderer.Adapter test double for
// exercising the Cache Orchestrator without a real GIS toolbox.
package fake

import (
	"context"
	"sync"

	"github.com/agrc/honeycomb/internal/renderer"
)

// BuildCall records one BuildTiles invocation for assertions.
type BuildCall struct {
	Basemap string
	Scales  []float64
	AOIPath string
	Mode    renderer.Mode
}

// Adapter is a renderer.Adapter that records calls and lets tests inject
// failures on specific AoI paths.
type Adapter struct {
	mu sync.Mutex

	ValidateErr error
	FailAOI     map[string]error // aoiPath -> error to return from BuildTiles

	BuildCalls    []BuildCall
	ExplodeCalls  []string
	ValidateCalls []string
}

// NewAdapter returns a ready-to-use fake.
func NewAdapter() *Adapter {
	return &Adapter{FailAOI: map[string]error{}}
}

func (a *Adapter) ValidateLayers(ctx context.Context, mapName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ValidateCalls = append(a.ValidateCalls, mapName)
	return a.ValidateErr
}

func (a *Adapter) BuildTiles(ctx context.Context, basemap string, scales []float64, aoiPath string, mode renderer.Mode) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.BuildCalls = append(a.BuildCalls, BuildCall{Basemap: basemap, Scales: scales, AOIPath: aoiPath, Mode: mode})
	if err, ok := a.FailAOI[aoiPath]; ok {
		delete(a.FailAOI, aoiPath)
		return err
	}
	return nil
}

func (a *Adapter) Explode(ctx context.Context, basemap string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ExplodeCalls = append(a.ExplodeCalls, basemap)
	return nil
}

func (a *Adapter) GetMap(ctx context.Context, basemap string) (renderer.MapHandle, error) {
	return renderer.MapHandle{Basemap: basemap, Path: basemap + ".aprx"}, nil
}
