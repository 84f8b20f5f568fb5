package syncinfo_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warestage/loadsheet-client/pkg/syncinfo"
)

func TestUpdateAndSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lastsync")
	sm, err := syncinfo.NewSyncManager(path)
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC)
	require.NoError(t, sm.UpdateAndSaveSyncInfo(syncinfo.SyncInfo{LastSync: at}))

	loaded, err := sm.LoadSyncInfoFromFile()
	require.NoError(t, err)
	assert.True(t, at.Equal(loaded))
	assert.True(t, at.Equal(sm.GetSyncInfo().LastSync))
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lastsync")
	sm, err := syncinfo.NewSyncManager(path)
	require.NoError(t, err)

	loaded, err := sm.LoadSyncInfoFromFile()
	require.NoError(t, err)
	assert.True(t, loaded.IsZero())
}

func TestGetTimeWithoutTimeZone(t *testing.T) {
	sm, err := syncinfo.NewSyncManager(filepath.Join(t.TempDir(), "lastsync"))
	require.NoError(t, err)
	assert.Equal(t, time.UTC, sm.GetTimeWithoutTimeZone().Location())
}
