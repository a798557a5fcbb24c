package uploader

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrc/honeycomb/internal/basemap"
)

type object struct {
	crc32c string
}

type memStore struct {
	mu      sync.Mutex
	objects map[string]object
	puts    int
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]object{}}
}

func (m *memStore) HeadObject(ctx context.Context, bucket, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[bucket+"/"+key]
	if !ok {
		return "", false, nil
	}
	return obj.crc32c, true, nil
}

func (m *memStore) PutObject(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = object{crc32c: crc32cBase64(data)}
	m.puts++
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakeNotifier) Notify(ctx context.Context, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return nil
}

func writeTile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func explodedRoot(cacheRoot, basemapName string) string {
	return filepath.Join(cacheRoot, basemapName+"_Exploded", "_alllayers")
}

func TestUploadPNGBasemapUploadsAndRemovesLocalTiles(t *testing.T) {
	cacheRoot := t.TempDir()
	root := explodedRoot(cacheRoot, "Terrain")
	writeTile(t, filepath.Join(root, "03", "R00001", "C00001.png"), "tile-a")
	writeTile(t, filepath.Join(root, "03", "R00001", "C00002.png"), "tile-b")

	store := newMemStore()
	notif := &fakeNotifier{}
	u := newUploader(store, Config{PoolSize: 4}, notif, nil)

	bm := basemap.Basemap{Name: "Terrain", Bucket: "tiles-bucket", ImageType: basemap.PNG}
	report, err := u.Upload(context.Background(), Request{Basemap: bm, CacheRoot: cacheRoot})
	require.NoError(t, err)

	assert.Equal(t, 2, report.TilesUploaded)
	assert.Equal(t, 0, report.TilesSkipped)
	assert.Equal(t, 1, report.RowsRemoved)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 2, store.puts)
	assert.Equal(t, []string{"Terrain has been pushed to production"}, notif.subjects)

	_, statErr := os.Stat(filepath.Join(root, "03", "R00001"))
	assert.True(t, os.IsNotExist(statErr), "row folder should be removed once emptied")
}

func TestUploadIsIdempotentOnRerun(t *testing.T) {
	cacheRoot := t.TempDir()
	root := explodedRoot(cacheRoot, "Terrain")
	writeTile(t, filepath.Join(root, "03", "R00001", "C00001.png"), "tile-a")

	store := newMemStore()
	u := newUploader(store, Config{PoolSize: 4}, &fakeNotifier{}, nil)
	bm := basemap.Basemap{Name: "Terrain", Bucket: "tiles-bucket", ImageType: basemap.PNG}

	_, err := u.Upload(context.Background(), Request{Basemap: bm, CacheRoot: cacheRoot})
	require.NoError(t, err)
	assert.Equal(t, 1, store.puts)

	// Recreate the same tile (simulating a re-render) and upload again.
	writeTile(t, filepath.Join(root, "03", "R00001", "C00001.png"), "tile-a")
	report, err := u.Upload(context.Background(), Request{Basemap: bm, CacheRoot: cacheRoot})
	require.NoError(t, err)

	assert.Equal(t, 0, report.TilesUploaded)
	assert.Equal(t, 1, report.TilesSkipped)
	assert.Equal(t, 1, store.puts, "matching checksum should not trigger a second put")
}

func TestUploadOverwritesWhenContentChanges(t *testing.T) {
	cacheRoot := t.TempDir()
	root := explodedRoot(cacheRoot, "Terrain")
	writeTile(t, filepath.Join(root, "03", "R00001", "C00001.png"), "tile-a")

	store := newMemStore()
	u := newUploader(store, Config{PoolSize: 4}, &fakeNotifier{}, nil)
	bm := basemap.Basemap{Name: "Terrain", Bucket: "tiles-bucket", ImageType: basemap.PNG}

	_, err := u.Upload(context.Background(), Request{Basemap: bm, CacheRoot: cacheRoot})
	require.NoError(t, err)

	writeTile(t, filepath.Join(root, "03", "R00001", "C00001.png"), "tile-a-changed")
	report, err := u.Upload(context.Background(), Request{Basemap: bm, CacheRoot: cacheRoot})
	require.NoError(t, err)

	assert.Equal(t, 1, report.TilesUploaded)
	assert.Equal(t, 2, store.puts)
}

func TestUploadSendsTestSubjectWhenIsTest(t *testing.T) {
	cacheRoot := t.TempDir()
	root := explodedRoot(cacheRoot, "Terrain")
	writeTile(t, filepath.Join(root, "03", "R00001", "C00001.png"), "tile-a")

	notif := &fakeNotifier{}
	u := newUploader(newMemStore(), Config{PoolSize: 4}, notif, nil)
	bm := basemap.Basemap{Name: "Terrain", Bucket: "tiles-bucket", ImageType: basemap.PNG}

	_, err := u.Upload(context.Background(), Request{Basemap: bm, CacheRoot: cacheRoot, IsTest: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"Terrain-Test is ready for review"}, notif.subjects)
}

func TestUploadConvertsPNGToJPEGWhenBasemapIsJPEG(t *testing.T) {
	cacheRoot := t.TempDir()
	root := explodedRoot(cacheRoot, "Imagery")
	var pngData bytes.Buffer
	require.NoError(t, png.Encode(&pngData, image.NewNRGBA(image.Rect(0, 0, 2, 2))))
	writeTile(t, filepath.Join(root, "05", "R00001", "C00001.png"), pngData.String())

	store := newMemStore()
	u := newUploader(store, Config{PoolSize: 4}, &fakeNotifier{}, nil)
	bm := basemap.Basemap{Name: "Imagery", Bucket: "tiles-bucket", ImageType: basemap.JPEG}

	report, err := u.Upload(context.Background(), Request{Basemap: bm, CacheRoot: cacheRoot})
	require.NoError(t, err)

	assert.Equal(t, 1, report.TilesUploaded)
	_, ok := store.objects["tiles-bucket/Imagery/5/1/1"]
	assert.True(t, ok)
}

func TestUploadLeavesNonEmptyRowWhenATileFails(t *testing.T) {
	cacheRoot := t.TempDir()
	root := explodedRoot(cacheRoot, "Terrain")
	// An unparsable column name forces uploadTile to fail for this one file.
	writeTile(t, filepath.Join(root, "03", "R00001", "not-hex.png"), "tile-a")

	store := newMemStore()
	u := newUploader(store, Config{PoolSize: 4}, &fakeNotifier{}, nil)
	bm := basemap.Basemap{Name: "Terrain", Bucket: "tiles-bucket", ImageType: basemap.PNG}

	report, err := u.Upload(context.Background(), Request{Basemap: bm, CacheRoot: cacheRoot})
	require.NoError(t, err)

	assert.NotEmpty(t, report.Errors)
	_, statErr := os.Stat(filepath.Join(root, "03", "R00001", "not-hex.png"))
	assert.NoError(t, statErr, "the failed tile should remain for the next run to retry")
}
