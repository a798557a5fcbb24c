package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHexRowAndColumn(t *testing.T) {
	row, err := DecodeHex("R00abc")
	require.NoError(t, err)
	assert.Equal(t, 2748, row)

	col, err := DecodeHex("C000f.png")
	require.NoError(t, err)
	assert.Equal(t, 15, col)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	row, err := DecodeHex(EncodeHexRow(2748))
	require.NoError(t, err)
	assert.Equal(t, 2748, row)

	col, err := DecodeHex(EncodeHexColumn(15) + ".png")
	require.NoError(t, err)
	assert.Equal(t, 15, col)
}

func TestCountBundlesSkipsMissingJpgAndCountsRowDirs(t *testing.T) {
	dir := t.TempDir()
	root := CompactCacheRoot(dir, "Terrain")

	require.NoError(t, os.MkdirAll(filepath.Join(root, "L01", "R00000"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "L01", "R00001"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "L02", "R00000"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "L01", "missing.jpg"), []byte{}, 0o644))

	count, err := CountBundles(dir, "Terrain")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestCountBundlesMissingCacheIsZero(t *testing.T) {
	count, err := CountBundles(t.TempDir(), "Terrain")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestIterExplodedRowsOrdersLevelThenRow(t *testing.T) {
	dir := t.TempDir()
	root := ExplodedRoot(dir, "Terrain")

	require.NoError(t, os.MkdirAll(filepath.Join(root, "02", "R00001"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "01", "R00002"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "01", "R00001"), 0o755))

	seq, err := IterExplodedRows(dir, "Terrain")
	require.NoError(t, err)

	var rows []RowDir
	for row, err := range seq {
		require.NoError(t, err)
		rows = append(rows, row)
	}

	require.Len(t, rows, 3)
	assert.Equal(t, 1, rows[0].Level)
	assert.Equal(t, 1, rows[0].Row)
	assert.Equal(t, 1, rows[1].Level)
	assert.Equal(t, 2, rows[1].Row)
	assert.Equal(t, 2, rows[2].Level)
	assert.Equal(t, 1, rows[2].Row)
}

func TestIterExplodedRowsRestartableWhenMissing(t *testing.T) {
	seq, err := IterExplodedRows(t.TempDir(), "Terrain")
	require.NoError(t, err)

	count := 0
	for range seq {
		count++
	}
	assert.Equal(t, 0, count)
}
