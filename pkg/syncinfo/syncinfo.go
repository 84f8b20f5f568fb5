// Package syncinfo provides functions for working with synchronization information.
package syncinfo

import (
	"os"
	"sync"
	"time"
)

// SyncInfo represents data about the last synchronization.
type SyncInfo struct {
	LastSync time.Time // LastSync represents the timestamp of the last successful drain.
}

// SyncManager manages access to and updates of synchronization data.
type SyncManager struct {
	fileMutex sync.RWMutex // RWMutex to ensure thread safety when working with the file
	mu        sync.RWMutex
	syncData  SyncInfo
	filename  string // File name where synchronization data is stored
}

// NewSyncManager creates a new SyncManager and initializes a file for storing synchronization data.
func NewSyncManager(fileName string) (*SyncManager, error) {
	file, err := os.OpenFile(fileName, os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	file.Close()

	return &SyncManager{
		filename: fileName,
	}, nil
}

// UpdateSyncInfo updates synchronization data.
func (sm *SyncManager) UpdateSyncInfo(info SyncInfo) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.syncData = info
}

// GetSyncInfo returns the current synchronization data.
func (sm *SyncManager) GetSyncInfo() SyncInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.syncData
}

// SaveSyncInfoToFile saves synchronization data to a file.
func (sm *SyncManager) SaveSyncInfoToFile() error {
	sm.fileMutex.Lock()
	defer sm.fileMutex.Unlock()

	syncInfo := sm.GetSyncInfo()
	lastSyncStr := syncInfo.LastSync.Format(time.RFC3339)

	return os.WriteFile(sm.filename, []byte(lastSyncStr), 0644)
}

// LoadSyncInfoFromFile loads the last synchronization time from the file and
// updates the in-memory copy. Returns the zero time when nothing has been
// recorded yet.
func (sm *SyncManager) LoadSyncInfoFromFile() (time.Time, error) {
	sm.fileMutex.RLock()
	fileContent, err := os.ReadFile(sm.filename)
	sm.fileMutex.RUnlock()
	if err != nil {
		return time.Time{}, err
	}
	if len(fileContent) == 0 {
		return time.Time{}, nil
	}

	lastSync, err := time.Parse(time.RFC3339, string(fileContent))
	if err != nil {
		return time.Time{}, err
	}

	sm.UpdateSyncInfo(SyncInfo{LastSync: lastSync})
	return lastSync, nil
}

// UpdateAndSaveSyncInfo updates and saves synchronization data.
func (sm *SyncManager) UpdateAndSaveSyncInfo(info SyncInfo) error {
	sm.UpdateSyncInfo(info)
	return sm.SaveSyncInfoToFile()
}

// GetTimeWithoutTimeZone returns the current time in UTC.
func (sm *SyncManager) GetTimeWithoutTimeZone() time.Time {
	return time.Now().UTC()
}
