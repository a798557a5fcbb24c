// Package uploader drives the parallel, content-addressed export of an
// exploded tile cache to object storage: for every tile it skips
// uploads whose destination already carries a matching CRC32C
// checksum, converts PNG source tiles to JPEG when the basemap calls
// for it, and removes local tiles and row folders once they are
// durably stored.
package uploader

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/agrc/honeycomb/internal/basemap"
	"github.com/agrc/honeycomb/internal/catalog"
	"github.com/agrc/honeycomb/internal/errs"
	"github.com/agrc/honeycomb/internal/notifier"
	"github.com/agrc/honeycomb/internal/uploader/imageconv"
)

// Config configures an Uploader's concurrency and cache-busting hook.
type Config struct {
	PoolSize int
	Discover DiscoverConfig
}

// Uploader uploads an exploded tile cache to object storage.
type Uploader struct {
	store      objectStore
	notifier   notifier.Notifier
	httpClient *http.Client
	discover   DiscoverConfig
	poolSize   int
	logger     *slog.Logger
}

// New builds a production Uploader backed by S3Store.
func New(ctx context.Context, s3cfg S3Config, cfg Config, notif notifier.Notifier, logger *slog.Logger) (*Uploader, error) {
	store, err := NewS3Store(ctx, s3cfg)
	if err != nil {
		return nil, fmt.Errorf("building s3 store: %w", err)
	}
	return newUploader(store, cfg, notif, logger), nil
}

func newUploader(store objectStore, cfg Config, notif notifier.Notifier, logger *slog.Logger) *Uploader {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	return &Uploader{
		store:      store,
		notifier:   notif,
		httpClient: discoverHTTPClient(),
		discover:   cfg.Discover,
		poolSize:   poolSize,
		logger:     loggerOrDefault(logger),
	}
}

// Request describes one upload run.
type Request struct {
	Basemap   basemap.Basemap
	CacheRoot string
	IsTest    bool
}

// Report summarizes an upload run.
type Report struct {
	TilesUploaded int
	TilesSkipped  int
	RowsRemoved   int
	Errors        []error
}

// Upload walks req.Basemap's exploded tile tree, uploading every tile
// that does not already exist at its destination with a matching
// checksum, then busts the Discover tile cache and sends a completion
// notification. Permanent per-tile failures are collected and returned
// in the Report rather than aborting the run; a failure to remove an
// emptied row folder is logged and otherwise ignored.
func (u *Uploader) Upload(ctx context.Context, req Request) (Report, error) {
	logger := u.logger.With("basemap", req.Basemap.Name)

	rows, err := catalog.IterExplodedRows(req.CacheRoot, req.Basemap.Name)
	if err != nil {
		return Report{}, fmt.Errorf("listing exploded rows: %w", err)
	}

	var (
		uploaded, skipped, removed int64
		mu                         sync.Mutex
		errorsOut                  []error
	)
	recordError := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errorsOut = append(errorsOut, err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(u.poolSize)

	for row, iterErr := range rows {
		if iterErr != nil {
			recordError(iterErr)
			continue
		}

		row := row
		group.Go(func() error {
			tilesUp, tilesSkip, err := u.uploadRow(groupCtx, req.Basemap, row, logger)
			atomic.AddInt64(&uploaded, int64(tilesUp))
			atomic.AddInt64(&skipped, int64(tilesSkip))
			if err != nil {
				recordError(err)
			}

			if ok, err := removeIfEmpty(row.Path); err != nil {
				logger.Warn("row folder cleanup failed", "path", row.Path, "error", err)
			} else if ok {
				atomic.AddInt64(&removed, 1)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return Report{}, fmt.Errorf("uploading %s: %w", req.Basemap.Name, err)
	}

	report := Report{
		TilesUploaded: int(uploaded),
		TilesSkipped:  int(skipped),
		RowsRemoved:   int(removed),
		Errors:        errorsOut,
	}

	if err := bustDiscoverCache(ctx, u.httpClient, u.discover, req.Basemap.Name, logger); err != nil {
		logger.Warn("discover cache bust failed", "error", err)
	}

	subject := fmt.Sprintf("%s has been pushed to production", req.Basemap.Name)
	if req.IsTest {
		subject = fmt.Sprintf("%s-Test is ready for review", req.Basemap.Name)
	}
	if err := u.notifier.Notify(ctx, subject, subject); err != nil {
		logger.Warn("upload completion notification failed", "error", err)
	}

	return report, nil
}

// uploadRow uploads every tile file in one exploded row directory,
// sequentially: the row folder itself is the unit of concurrency.
func (u *Uploader) uploadRow(ctx context.Context, bm basemap.Basemap, row catalog.RowDir, logger *slog.Logger) (uploaded, skipped int, err error) {
	entries, readErr := os.ReadDir(row.Path)
	if readErr != nil {
		return 0, 0, fmt.Errorf("reading row dir %s: %w", row.Path, readErr)
	}

	var failures []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		did, skip, tileErr := u.uploadTile(ctx, bm, row, filepath.Join(row.Path, entry.Name()), logger)
		if tileErr != nil {
			failures = append(failures, tileErr)
			continue
		}
		if skip {
			skipped++
		} else if did {
			uploaded++
		}
	}

	if len(failures) > 0 {
		return uploaded, skipped, fmt.Errorf("row %s: %d tile(s) failed: %w", row.Path, len(failures), failures[0])
	}
	return uploaded, skipped, nil
}

// uploadTile uploads a single tile file, converting PNG to JPEG first
// when bm calls for JPEG storage, skipping the upload entirely when the
// destination's checksum already matches.
func (u *Uploader) uploadTile(ctx context.Context, bm basemap.Basemap, row catalog.RowDir, tilePath string, logger *slog.Logger) (uploaded bool, skipped bool, err error) {
	column, err := catalog.DecodeHex(filepath.Base(tilePath))
	if err != nil {
		return false, false, fmt.Errorf("decoding tile column from %s: %w", tilePath, err)
	}

	if bm.ImageType == basemap.JPEG && filepath.Ext(tilePath) == ".png" {
		converted, convErr := imageconv.ToJPEG(tilePath)
		if convErr != nil {
			return false, false, fmt.Errorf("converting %s to jpeg: %w", tilePath, convErr)
		}
		tilePath = converted
	}

	key := catalog.RemoteKey(bm.Name, row.Level, column, row.Row)

	localSum, sumErr := fileCRC32C(tilePath)
	if sumErr != nil {
		return false, false, fmt.Errorf("checksumming %s: %w", tilePath, sumErr)
	}

	err = withRetry(ctx, func() error {
		remoteSum, exists, headErr := u.store.HeadObject(ctx, bm.Bucket, key)
		if headErr != nil {
			return headErr
		}
		if exists && remoteSum == localSum {
			skipped = true
			return nil
		}

		f, openErr := os.Open(tilePath)
		if openErr != nil {
			return &errs.FilesystemError{Path: tilePath, Cause: openErr}
		}
		defer f.Close()

		if putErr := u.store.PutObject(ctx, bm.Bucket, key, f, bm.ContentType()); putErr != nil {
			return putErr
		}
		uploaded = true
		return nil
	})
	if err != nil {
		var permanent *errs.PermanentUploadError
		if stderrors.As(err, &permanent) {
			logger.Error("tile permanently failed to upload", "key", key, "error", err)
		}
		return false, false, fmt.Errorf("uploading %s: %w", key, err)
	}

	if uploaded || skipped {
		if removeErr := os.Remove(tilePath); removeErr != nil {
			logger.Warn("failed to remove local tile after upload", "path", tilePath, "error", removeErr)
		}
	}

	return uploaded, skipped, nil
}

// removeIfEmpty removes dir if it contains no entries. A non-empty
// directory (a tile that failed every retry) is left in place so the
// next upload run retries it. It reports whether dir was removed.
func removeIfEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	if len(entries) > 0 {
		return false, nil
	}
	if err := os.Remove(dir); err != nil {
		return false, err
	}
	return true, nil
}
