// Package catalog enumerates completed bundles and exploded tile rows on
// disk so the orchestrator can sample progress and the uploader can walk
// the tile tree.
package catalog

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const missingTileName = "missing.jpg"

// CompactCacheRoot returns <cacheRoot>/<basemap>/<basemap>/_alllayers,
// the root of the renderer's compact bundled cache for basemap.
func CompactCacheRoot(cacheRoot, basemap string) string {
	return filepath.Join(cacheRoot, basemap, basemap, "_alllayers")
}

// ExplodedRoot returns <cacheRoot>/<basemap>_Exploded/_alllayers, the
// root of the flat per-tile layout produced by Explode.
func ExplodedRoot(cacheRoot, basemap string) string {
	return filepath.Join(cacheRoot, basemap+"_Exploded", "_alllayers")
}

// CountBundles returns the number of second-level directories under the
// compact cache's _alllayers, skipping any file named missing.jpg. It is
// an estimate of progress toward the basemap's expected bundle count and
// is safe to call mid-build: a missing _alllayers directory counts as
// zero rather than erroring.
func CountBundles(cacheRoot, basemap string) (int, error) {
	root := CompactCacheRoot(cacheRoot, basemap)

	levelDirs, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading compact cache root %s: %w", root, err)
	}

	count := 0
	for _, level := range levelDirs {
		if !level.IsDir() {
			continue
		}

		rowEntries, err := os.ReadDir(filepath.Join(root, level.Name()))
		if err != nil {
			return 0, fmt.Errorf("reading level directory %s: %w", level.Name(), err)
		}

		for _, row := range rowEntries {
			if row.Name() == missingTileName {
				continue
			}
			if row.IsDir() {
				count++
			}
		}
	}

	return count, nil
}

// RowDir identifies one exploded row directory: its absolute path, the
// decimal level and the hex-decoded row parsed from the path, used to
// build the remote upload key.
type RowDir struct {
	Path  string
	Level int
	Row   int
}

// IterExplodedRows walks the exploded tile tree for basemap and yields
// its row directories ordered level-then-row lexicographically. Each
// call performs a fresh filesystem walk, so the sequence is restartable
// with no retained cursor state - safe to call again after a crash.
func IterExplodedRows(cacheRoot, basemap string) (iter.Seq2[RowDir, error], error) {
	root := ExplodedRoot(cacheRoot, basemap)

	levelEntries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return func(yield func(RowDir, error) bool) {}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading exploded root %s: %w", root, err)
	}

	levels := make([]string, 0, len(levelEntries))
	for _, e := range levelEntries {
		if e.IsDir() {
			levels = append(levels, e.Name())
		}
	}
	sort.Strings(levels)

	return func(yield func(RowDir, error) bool) {
		for _, levelName := range levels {
			levelDir := filepath.Join(root, levelName)
			level, err := strconv.Atoi(levelName)
			if err != nil {
				if !yield(RowDir{}, fmt.Errorf("parsing level dir name %q: %w", levelName, err)) {
					return
				}
				continue
			}

			rowEntries, err := os.ReadDir(levelDir)
			if err != nil {
				if !yield(RowDir{}, fmt.Errorf("reading level dir %s: %w", levelDir, err)) {
					return
				}
				continue
			}

			rowNames := make([]string, 0, len(rowEntries))
			for _, e := range rowEntries {
				if e.IsDir() {
					rowNames = append(rowNames, e.Name())
				}
			}
			sort.Strings(rowNames)

			for _, rowName := range rowNames {
				row, err := DecodeHex(rowName)
				if err != nil {
					if !yield(RowDir{}, fmt.Errorf("parsing row dir name %q: %w", rowName, err)) {
						return
					}
					continue
				}
				if !yield(RowDir{Path: filepath.Join(levelDir, rowName), Level: level, Row: row}, nil) {
					return
				}
			}
		}
	}, nil
}

// DecodeHex strips an optional leading R/C prefix and any file
// extension, then parses the remainder as a hexadecimal integer. It
// implements the hex->decimal row/column decoding rule: "R00abc" ->
// 2748, "C000f.png" -> 15.
func DecodeHex(name string) (int, error) {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.TrimPrefix(name, "R")
	name = strings.TrimPrefix(name, "r")
	name = strings.TrimPrefix(name, "C")
	name = strings.TrimPrefix(name, "c")

	n, err := strconv.ParseInt(name, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("decoding hex token %q: %w", name, err)
	}
	return int(n), nil
}

// EncodeHexRow re-encodes a decimal row number back into the "R<hex>"
// folder-name form, the inverse of DecodeHex for round-trip testing.
func EncodeHexRow(row int) string {
	return fmt.Sprintf("R%05x", row)
}

// EncodeHexColumn re-encodes a decimal column number back into the
// "C<hex>" file-stem form, the inverse of DecodeHex for round-trip testing.
func EncodeHexColumn(col int) string {
	return fmt.Sprintf("C%05x", col)
}

// RemoteKey projects a decoded (level, row, column) onto the upload
// destination key format: <basemap>/<level>/<column>/<row>.
func RemoteKey(basemap string, level, column, row int) string {
	return fmt.Sprintf("%s/%d/%d/%d", basemap, level, column, row)
}
