package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrc/honeycomb/internal/basemap"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "config.json"))

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Basemaps)
	assert.Equal(t, 100, cfg.UploadPoolSize)
}

func TestInitWritesDefaultAndRejectsSecondCall(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "config.json"))

	cfg, err := store.Init()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = store.Init()
	assert.Error(t, err)
}

func TestAddBasemapThenRemoveBasemap(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "config.json"))
	_, err := store.Init()
	require.NoError(t, err)

	require.NoError(t, store.AddBasemap(basemap.Basemap{Name: "Terrain", Bucket: "tiles", ImageType: basemap.JPEG}))

	cfg, err := store.Load()
	require.NoError(t, err)
	require.Len(t, cfg.Basemaps, 1)
	assert.Equal(t, "Terrain", cfg.Basemaps[0].Name)

	bm, ok := cfg.BasemapByName("Terrain")
	require.True(t, ok)
	assert.Equal(t, basemap.JPEG, bm.ImageType)

	require.NoError(t, store.RemoveBasemap("Terrain"))
	cfg, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Basemaps)
}

func TestAddBasemapReplacesExistingEntryOfSameName(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "config.json"))
	_, err := store.Init()
	require.NoError(t, err)

	require.NoError(t, store.AddBasemap(basemap.Basemap{Name: "Terrain", Bucket: "tiles", ImageType: basemap.PNG}))
	require.NoError(t, store.AddBasemap(basemap.Basemap{Name: "Terrain", Bucket: "tiles-v2", ImageType: basemap.JPEG}))

	cfg, err := store.Load()
	require.NoError(t, err)
	require.Len(t, cfg.Basemaps, 1)
	assert.Equal(t, "tiles-v2", cfg.Basemaps[0].Bucket)
}

func TestSetKnownKeyPersists(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "config.json"))
	_, err := store.Init()
	require.NoError(t, err)

	require.NoError(t, store.Set("smtpServer", "smtp.example.com"))
	require.NoError(t, store.Set("sendEmails", "true"))

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com", cfg.SMTPServer)
	assert.True(t, cfg.SendEmails)
}

func TestSetUnknownKeyErrors(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "config.json"))
	_, err := store.Init()
	require.NoError(t, err)

	err = store.Set("notARealKey", "value")
	assert.Error(t, err)
}
