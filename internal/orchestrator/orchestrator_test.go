package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrc/honeycomb/internal/basemap"
	"github.com/agrc/honeycomb/internal/jobstore"
	"github.com/agrc/honeycomb/internal/renderer/fake"
	"github.com/agrc/honeycomb/internal/statsstore"
	"github.com/agrc/honeycomb/internal/uploader"
	"github.com/agrc/honeycomb/internal/updater"
)

type fakeUploader struct {
	mu    sync.Mutex
	calls []uploader.Request
}

func (f *fakeUploader) Upload(ctx context.Context, req uploader.Request) (uploader.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return uploader.Report{}, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	subjects []string
	fail     bool
}

func (f *fakeNotifier) Notify(ctx context.Context, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	if f.fail {
		return fmt.Errorf("smtp refused")
	}
	return nil
}

type fakeUpdater struct {
	calls int
}

func (f *fakeUpdater) Update(ctx context.Context, opts updater.Options) error {
	f.calls++
	return nil
}

type fakeJournal struct {
	changelogCalls, lastUpdatedCalls int
}

func (f *fakeJournal) AppendChangelogRow(ctx context.Context, basemapName string, completedAt time.Time) error {
	f.changelogCalls++
	return nil
}

func (f *fakeJournal) UpdateLastUpdated(ctx context.Context, basemapName string, updatedAt time.Time) error {
	f.lastUpdatedCalls++
	return nil
}

const testGridGeoJSON = `{"type":"FeatureCollection","features":[
  {"type":"Feature","properties":{"OBJECTID":2},"geometry":{"type":"Point","coordinates":[1,1]}},
  {"type":"Feature","properties":{"OBJECTID":1},"geometry":{"type":"Point","coordinates":[0,0]}}
]}`

func squarePolygon(minX, minY, maxX, maxY float64) string {
	return fmt.Sprintf(`{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[%g,%g],[%g,%g],[%g,%g],[%g,%g],[%g,%g]]]}}`,
		minX, minY, maxX, minY, maxX, maxY, minX, maxY, minX, minY)
}

type harness struct {
	orch           *Orchestrator
	jobs           *jobstore.Store
	stats          *statsstore.Store
	renderer       *fake.Adapter
	uploader       *fakeUploader
	notifier       *fakeNotifier
	updater        *fakeUpdater
	journal        *fakeJournal
	cacheRoot      string
	scheme         basemap.TileScheme
	extentPath     string
	extent1819Path string
	gridPath       string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cacheRoot := filepath.Join(dir, "cache")
	workDir := filepath.Join(dir, "work")
	require.NoError(t, os.MkdirAll(cacheRoot, 0o755))
	require.NoError(t, os.MkdirAll(workDir, 0o755))

	extentPath := filepath.Join(dir, "extent.geojson")
	require.NoError(t, os.WriteFile(extentPath, []byte(squarePolygon(0, 0, 1, 1)), 0o644))

	extent1819Path := filepath.Join(dir, "extent-1819.geojson")
	require.NoError(t, os.WriteFile(extent1819Path, []byte(squarePolygon(0, 0, 1, 1)), 0o644))

	gridPath := filepath.Join(dir, "grid.geojson")
	require.NoError(t, os.WriteFile(gridPath, []byte(testGridGeoJSON), 0o644))

	testExtentPath := filepath.Join(dir, "test-extent.geojson")
	require.NoError(t, os.WriteFile(testExtentPath, []byte(squarePolygon(0, 0, 1, 1)), 0o644))

	scheme := basemap.TileScheme{
		Scales: []float64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1},
		CacheExtents: []basemap.ExtentPhase{
			{Name: "Extent_0_1", ScaleIndices: []int{0, 1}},
		},
		Grids: []basemap.GridLevel{
			{Name: "Grid_2", ScaleIndex: 2},
		},
	}

	jobs := jobstore.New(dir)
	stats := statsstore.New(dir, nil)
	rend := fake.NewAdapter()
	up := &fakeUploader{}
	notif := &fakeNotifier{}
	upd := &fakeUpdater{}
	jrnl := &fakeJournal{}

	cfg := Config{
		CacheRoot:           cacheRoot,
		TestExtentPath:      testExtentPath,
		ExtentPolygons:      map[string]string{"Extent_0_1": extentPath},
		GridSourcePaths:     map[string]string{"Grid_2": gridPath},
		CacheExtent1819Path: extent1819Path,
		ExpectedBundleCount: map[string]int{},
		WorkDir:             workDir,
	}

	orch := New(jobs, stats, rend, up, notif, upd, jrnl, scheme, cfg, nil)

	return &harness{
		orch: orch, jobs: jobs, stats: stats, renderer: rend, uploader: up,
		notifier: notif, updater: upd, journal: jrnl, cacheRoot: cacheRoot,
		scheme: scheme, extentPath: extentPath, extent1819Path: extent1819Path, gridPath: gridPath,
	}
}

func (h *harness) basemap() basemap.Basemap {
	return basemap.Basemap{Name: "Terrain", Bucket: "tiles", ImageType: basemap.PNG}
}

func TestRunFreshBasemapNoRestrictions(t *testing.T) {
	h := newHarness(t)

	err := h.orch.Run(context.Background(), RunOptions{Basemap: h.basemap()})
	require.NoError(t, err)

	job, err := h.jobs.Load()
	require.NoError(t, err)
	assert.Nil(t, job, "job file should be removed on completion")

	assert.Equal(t, 1, h.updater.calls)
	assert.Len(t, h.renderer.ValidateCalls, 1)
	// one test build + one extent phase + two grid features = 4 BuildTiles calls
	assert.Len(t, h.renderer.BuildCalls, 4)
	assert.Len(t, h.renderer.ExplodeCalls, 2) // test explode + production explode
	assert.Len(t, h.uploader.calls, 2)        // test upload + production upload
	assert.Contains(t, h.notifier.subjects, "Caching complete")
	assert.Equal(t, 1, h.journal.changelogCalls)
	assert.Equal(t, 1, h.journal.lastUpdatedCalls)
}

func TestResumeContinuesFromRemainingPhases(t *testing.T) {
	h := newHarness(t)

	extentScales := h.scheme.ScalesFor(h.scheme.CacheExtents[0].ScaleIndices)
	_, err := h.jobs.Start(jobstore.CacheArgs{Basemap: "Terrain"}, false)
	require.NoError(t, err)
	_, err = h.jobs.Update(func(j *jobstore.Job) {
		j.DataUpdated = true
		j.TestCacheComplete = true
		j.CacheExtentsCompleted = append(j.CacheExtentsCompleted, extentPhaseKey("Extent_0_1", extentScales))
	})
	require.NoError(t, err)

	err = h.orch.Run(context.Background(), RunOptions{Basemap: h.basemap(), Resume: true})
	require.NoError(t, err)

	// Only the two grid feature phases should have run BuildTiles; the
	// extent phase and test cache were already marked complete.
	assert.Len(t, h.renderer.BuildCalls, 2)
	for _, call := range h.renderer.BuildCalls {
		assert.Equal(t, []float64{8}, call.Scales) // Grid_2's scale index is 2 -> scales[2] == 8
	}
}

func TestSpotModeBuildsTwoPasses(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	spotPath := filepath.Join(dir, "spot.geojson")
	require.NoError(t, os.WriteFile(spotPath, []byte(squarePolygon(0, 0, 10, 10)), 0o644))
	require.NoError(t, os.WriteFile(h.extent1819Path, []byte(squarePolygon(5, 5, 15, 15)), 0o644))

	err := h.orch.Run(context.Background(), RunOptions{Basemap: h.basemap(), SpotPath: spotPath})
	require.NoError(t, err)

	assert.Len(t, h.renderer.BuildCalls, 2)
	assert.Equal(t, spotPath, h.renderer.BuildCalls[0].AOIPath)
	assert.NotEqual(t, spotPath, h.renderer.BuildCalls[1].AOIPath)
}

func TestSpotModeSkipsHighZoomWhenNoIntersection(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	spotPath := filepath.Join(dir, "spot.geojson")
	require.NoError(t, os.WriteFile(spotPath, []byte(squarePolygon(0, 0, 1, 1)), 0o644))
	require.NoError(t, os.WriteFile(h.extent1819Path, []byte(squarePolygon(50, 50, 60, 60)), 0o644))

	err := h.orch.Run(context.Background(), RunOptions{Basemap: h.basemap(), SpotPath: spotPath})
	require.NoError(t, err)

	assert.Len(t, h.renderer.BuildCalls, 1, "non-intersecting spot polygon should skip the 18/19 pass")
}

func TestLevelsRestrictionExcludesOutOfRangeGridPhase(t *testing.T) {
	h := newHarness(t)

	err := h.orch.Run(context.Background(), RunOptions{
		Basemap: h.basemap(),
		Levels:  &LevelRange{Min: 0, Max: 1},
	})
	require.NoError(t, err)

	for _, call := range h.renderer.BuildCalls {
		for _, scale := range call.Scales {
			assert.Contains(t, []float64{10, 9}, scale)
		}
	}
}

func TestNotifierFailureDoesNotAbortBuild(t *testing.T) {
	h := newHarness(t)
	h.notifier.fail = true

	err := h.orch.Run(context.Background(), RunOptions{Basemap: h.basemap()})
	require.NoError(t, err)

	job, err := h.jobs.Load()
	require.NoError(t, err)
	assert.Nil(t, job)
}
