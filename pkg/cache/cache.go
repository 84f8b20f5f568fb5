// Package cache holds the client's working copy of each remote collection.
// Writes land here optimistically before the server confirms them; a failed
// call restores the snapshot taken before the edit, and a completed sync
// pass marks collections stale so the next read refetches server truth.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/warestage/loadsheet-client/pkg/remote"
)

// Fetcher populates a stale collection from the source of truth. The remote
// client implements it.
type Fetcher interface {
	GetAllRecords(ctx context.Context, collection string) ([]remote.Row, error)
}

type collection struct {
	rows   map[string]json.RawMessage
	loaded bool
	stale  bool
}

// Snapshot is an opaque rollback context for one collection, captured
// before an optimistic edit.
type Snapshot struct {
	key    string
	rows   map[string]json.RawMessage
	loaded bool
	stale  bool
}

type Cache struct {
	mu      sync.Mutex
	fetcher Fetcher
	cols    map[string]*collection
}

func New(fetcher Fetcher) *Cache {
	return &Cache{
		fetcher: fetcher,
		cols:    make(map[string]*collection),
	}
}

func (c *Cache) col(key string) *collection {
	col, ok := c.cols[key]
	if !ok {
		col = &collection{rows: make(map[string]json.RawMessage)}
		c.cols[key] = col
	}
	return col
}

// Snapshot captures the current state of a collection for later rollback.
func (c *Cache) Snapshot(key string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	col := c.col(key)
	rows := make(map[string]json.RawMessage, len(col.rows))
	for id, data := range col.rows {
		rows[id] = data
	}
	return Snapshot{key: key, rows: rows, loaded: col.loaded, stale: col.stale}
}

// Restore rolls a collection back to a previously taken snapshot.
func (c *Cache) Restore(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cols[snap.key] = &collection{rows: snap.rows, loaded: snap.loaded, stale: snap.stale}
}

// Put applies an optimistic insert or replace.
func (c *Cache) Put(key, id string, data json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.col(key).rows[id] = data
}

// Delete applies an optimistic removal.
func (c *Cache) Delete(key, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.col(key).rows, id)
}

// Invalidate marks one collection for refetch on its next read.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.col(key).stale = true
}

// InvalidateAll marks every known collection for refetch. The sync engine
// calls this after a drain pass with at least one replayed mutation.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, col := range c.cols {
		col.stale = true
	}
}

// Get returns the rows of a collection, refetching from the source of truth
// when the collection is stale or has never been loaded. The returned map is
// a copy; mutating it does not affect the cache.
func (c *Cache) Get(ctx context.Context, key string) (map[string]json.RawMessage, error) {
	c.mu.Lock()
	col := c.col(key)
	needsFetch := !col.loaded || col.stale
	c.mu.Unlock()

	if needsFetch {
		rows, err := c.fetcher.GetAllRecords(ctx, key)
		if err != nil {
			// Offline reads serve the optimistic copy; it is the working
			// truth until a drain reconciles it.
			if !errors.Is(err, remote.ErrNetworkUnavailable) {
				return nil, err
			}
		} else {
			fresh := make(map[string]json.RawMessage, len(rows))
			for _, row := range rows {
				fresh[row.ID] = row.Data
			}
			c.mu.Lock()
			c.cols[key] = &collection{rows: fresh, loaded: true}
			c.mu.Unlock()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	col = c.col(key)
	out := make(map[string]json.RawMessage, len(col.rows))
	for id, data := range col.rows {
		out[id] = data
	}
	return out, nil
}
