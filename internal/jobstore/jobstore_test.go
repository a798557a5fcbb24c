package jobstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAbsentReturnsNil(t *testing.T) {
	store := New(t.TempDir())

	job, err := store.Load()

	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestStartThenLoadRoundTrips(t *testing.T) {
	store := New(t.TempDir())

	started, err := store.Start(CacheArgs{Basemap: "Terrain"}, false)
	require.NoError(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, started.ID, loaded.ID)
	assert.Equal(t, "Terrain", loaded.CacheArgs.Basemap)
	assert.False(t, loaded.CachingComplete)
}

func TestStartFailsWhenJobAlreadyExists(t *testing.T) {
	store := New(t.TempDir())

	_, err := store.Start(CacheArgs{Basemap: "Terrain"}, false)
	require.NoError(t, err)

	_, err = store.Start(CacheArgs{Basemap: "Overlay"}, false)
	assert.Error(t, err)
}

func TestStartAllowsExistingForResume(t *testing.T) {
	store := New(t.TempDir())

	_, err := store.Start(CacheArgs{Basemap: "Terrain"}, false)
	require.NoError(t, err)

	_, err = store.Start(CacheArgs{Basemap: "Overlay"}, true)
	assert.NoError(t, err)
}

func TestAppendPhaseIsIdempotentAndAppendOnly(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.Start(CacheArgs{Basemap: "Terrain"}, false)
	require.NoError(t, err)

	_, err = store.AppendPhase("CacheExtent_0_7-[a]")
	require.NoError(t, err)
	job, err := store.AppendPhase("CacheExtent_0_7-[a]")
	require.NoError(t, err)

	assert.Equal(t, []string{"CacheExtent_0_7-[a]"}, job.CacheExtentsCompleted)
}

func TestUpdateWithNoJobFails(t *testing.T) {
	store := New(t.TempDir())

	_, err := store.Update(func(j *Job) { j.CachingComplete = true })

	assert.Error(t, err)
}

func TestUpdatePersistsAcrossNewStoreInstance(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	_, err := store.Start(CacheArgs{Basemap: "Terrain"}, false)
	require.NoError(t, err)

	_, err = store.Update(func(j *Job) { j.DataUpdated = true })
	require.NoError(t, err)

	reopened := New(dir)
	job, err := reopened.Load()
	require.NoError(t, err)
	assert.True(t, job.DataUpdated)
}

func TestFinishDeletesJobFile(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.Start(CacheArgs{Basemap: "Terrain"}, false)
	require.NoError(t, err)

	require.NoError(t, store.Finish())

	job, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestFinishWithNoJobIsNotAnError(t *testing.T) {
	store := New(t.TempDir())

	assert.NoError(t, store.Finish())
}
