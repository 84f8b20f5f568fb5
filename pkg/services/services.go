// Package services is the domain-facing facade the shell talks to. Rows are
// opaque JSON; the workflow semantics of a staging sheet live on the server
// and in whatever edits the supervisor submits.
package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/warestage/loadsheet-client/pkg/cache"
	"github.com/warestage/loadsheet-client/pkg/dispatcher"
	"github.com/warestage/loadsheet-client/pkg/models"
)

// UsersCollection is the cache key of the user directory.
const UsersCollection = "users"

type Services struct {
	disp  *dispatcher.Dispatcher
	cache *cache.Cache
	queue dispatcher.QueueStore
}

func New(disp *dispatcher.Dispatcher, c *cache.Cache, queue dispatcher.QueueStore) *Services {
	return &Services{
		disp:  disp,
		cache: c,
		queue: queue,
	}
}

// recordCallbacks wires the optimistic cache edit and its rollback for a
// record write.
func (s *Services) recordCallbacks(collection string, apply func()) dispatcher.Callbacks {
	return dispatcher.Callbacks{
		OnMutate: func(m models.QueuedMutation) interface{} {
			snap := s.cache.Snapshot(collection)
			apply()
			return snap
		},
		OnError: func(err error, m models.QueuedMutation, rollback interface{}) {
			if snap, ok := rollback.(cache.Snapshot); ok {
				s.cache.Restore(snap)
			}
		},
	}
}

// CreateRecord inserts a new row with a generated id and returns the id.
func (s *Services) CreateRecord(ctx context.Context, collection string, data json.RawMessage) (string, error) {
	id := uuid.NewString()
	m := models.NewCreateRecord(collection, id, data)
	_, err := s.disp.Do(ctx, m, s.recordCallbacks(collection, func() {
		s.cache.Put(collection, id, data)
	}))
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateRecord replaces a row.
func (s *Services) UpdateRecord(ctx context.Context, collection, id string, data json.RawMessage) error {
	m := models.NewUpdateRecord(collection, id, data)
	_, err := s.disp.Do(ctx, m, s.recordCallbacks(collection, func() {
		s.cache.Put(collection, id, data)
	}))
	return err
}

// DeleteRecord removes a row.
func (s *Services) DeleteRecord(ctx context.Context, collection, id string) error {
	m := models.NewDeleteRecord(collection, id)
	_, err := s.disp.Do(ctx, m, s.recordCallbacks(collection, func() {
		s.cache.Delete(collection, id)
	}))
	return err
}

// UpdateUser replaces a user row.
func (s *Services) UpdateUser(ctx context.Context, id string, data json.RawMessage) error {
	m := models.NewUpdateUser(id, data)
	_, err := s.disp.Do(ctx, m, s.recordCallbacks(UsersCollection, func() {
		s.cache.Put(UsersCollection, id, data)
	}))
	return err
}

// ListRecords reads a collection through the cache.
func (s *Services) ListRecords(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	return s.cache.Get(ctx, collection)
}

// Pending returns the queued mutations in enqueue order.
func (s *Services) Pending(ctx context.Context) ([]models.QueuedMutation, error) {
	return s.queue.LoadQueue(ctx)
}

// PendingCount returns the number of queued mutations.
func (s *Services) PendingCount(ctx context.Context) (int, error) {
	queue, err := s.queue.LoadQueue(ctx)
	if err != nil {
		return 0, err
	}
	return len(queue), nil
}
