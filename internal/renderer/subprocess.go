package renderer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/agrc/honeycomb/internal/errs"
)

// SubprocessAdapter drives the GIS toolbox through its command-line
// front end, one call at a time. The toolbox keeps process-wide mutable
// state (parallelism factor, workspace, overwrite flag); this adapter
// owns the single initialization path and serializes every call through
// one owner via mu, so two goroutines never race the toolbox's globals.
type SubprocessAdapter struct {
	toolPath  string
	cacheRoot string
	workspace string
	instances int
	logger    *slog.Logger

	mu          sync.Mutex
	initialized bool
}

// NewSubprocessAdapter returns an Adapter that shells out to toolPath, the
// GIS toolbox's CLI front end, rooted at cacheRoot and workspace gdb.
func NewSubprocessAdapter(toolPath, cacheRoot, workspace string, instances int, logger *slog.Logger) *SubprocessAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	if instances <= 0 {
		instances = 6
	}
	return &SubprocessAdapter{
		toolPath:  toolPath,
		cacheRoot: cacheRoot,
		workspace: workspace,
		instances: instances,
		logger:    logger,
	}
}

func (a *SubprocessAdapter) ensureInitialized() error {
	if a.initialized {
		return nil
	}
	if a.toolPath == "" {
		return &errs.ConfigurationError{Detail: "renderer tool path is not configured"}
	}
	a.initialized = true
	return nil
}

// ValidateLayers opens a throwaway copy of the map document for mapName
// so schema-lock checks never hold a lock against the live project file
// that a subsequent BuildTiles call would need to write to (spec §9).
func (a *SubprocessAdapter) ValidateLayers(ctx context.Context, mapName string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureInitialized(); err != nil {
		return err
	}

	scratch, err := a.throwawayCopy(mapName)
	if err != nil {
		return fmt.Errorf("preparing throwaway copy for validation: %w", err)
	}
	defer os.Remove(scratch)

	out, err := a.run(ctx, "validate-layers", "--map", scratch)
	if err != nil {
		return &errs.ConfigurationError{Detail: fmt.Sprintf("layer validation failed for %s: %s", mapName, out)}
	}
	return nil
}

func (a *SubprocessAdapter) throwawayCopy(mapName string) (string, error) {
	src := filepath.Join(a.workspace, mapName+".aprx")
	dst := filepath.Join(os.TempDir(), "honeycomb-"+filepath.Base(mapName)+"-scratch.aprx")

	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("reading map document %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("writing scratch copy %s: %w", dst, err)
	}
	return dst, nil
}

// BuildTiles generates tiles for the intersection of scales and the
// toolbox's own restrictScales setting, bounded by aoiPath.
func (a *SubprocessAdapter) BuildTiles(ctx context.Context, basemap string, scales []float64, aoiPath string, mode Mode) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureInitialized(); err != nil {
		return err
	}
	if len(scales) == 0 {
		a.logger.Debug("skipping buildTiles with empty scale set", "basemap", basemap)
		return nil
	}

	scaleArgs := make([]string, len(scales))
	for i, s := range scales {
		scaleArgs[i] = strconv.FormatFloat(s, 'f', -1, 64)
	}

	args := []string{
		"build-tiles",
		"--basemap", basemap,
		"--cache-root", a.cacheRoot,
		"--aoi", aoiPath,
		"--mode", string(mode),
		"--instances", strconv.Itoa(a.instances),
		"--scales", strings.Join(scaleArgs, ","),
	}

	out, err := a.run(ctx, args...)
	if err != nil {
		return &errs.RenderError{Messages: []string{fmt.Sprintf("%s: %s", err, out)}}
	}
	return nil
}

// Explode removes any prior exploded tree and converts the compact
// cache into the flat tile tree.
func (a *SubprocessAdapter) Explode(ctx context.Context, basemap string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensureInitialized(); err != nil {
		return err
	}

	out, err := a.run(ctx, "explode", "--basemap", basemap, "--cache-root", a.cacheRoot)
	if err != nil {
		return &errs.RenderError{Messages: []string{fmt.Sprintf("%s: %s", err, out)}}
	}
	return nil
}

// GetMap returns a handle to basemap's map document, cheap to obtain
// because it only resolves the on-disk path without opening it.
func (a *SubprocessAdapter) GetMap(ctx context.Context, basemap string) (MapHandle, error) {
	return MapHandle{Basemap: basemap, Path: filepath.Join(a.workspace, basemap+".aprx")}, nil
}

func (a *SubprocessAdapter) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, a.toolPath, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	a.logger.Debug("invoking renderer toolbox", "args", args)
	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("renderer toolbox invocation failed: %w", err)
	}
	return out.String(), nil
}
