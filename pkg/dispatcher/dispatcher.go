// Package dispatcher wraps remote writes with offline degradation. A write
// attempted without connectivity is not an error: it is captured as a queued
// mutation, the optimistic cache edit stays in place, and the sync engine
// replays it later.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warestage/loadsheet-client/pkg/models"
	"github.com/warestage/loadsheet-client/pkg/notifier"
	"github.com/warestage/loadsheet-client/pkg/remote"
)

// RemoteStore is the row-level write surface of the server. The closed set
// of mutation kinds maps onto exactly these four calls.
type RemoteStore interface {
	CreateRecord(ctx context.Context, collection, id string, data json.RawMessage) error
	UpdateRecord(ctx context.Context, collection, id string, data json.RawMessage) error
	DeleteRecord(ctx context.Context, collection, id string) error
	UpdateUser(ctx context.Context, id string, data json.RawMessage) error
}

// QueueStore persists the pending mutation queue. bdkeeper implements it.
// The store provides no locking; read-modify-write ordering is the sync
// engine's responsibility.
type QueueStore interface {
	LoadQueue(ctx context.Context) ([]models.QueuedMutation, error)
	SaveQueue(ctx context.Context, queue []models.QueuedMutation) error
}

// Queue accepts new pending mutations. The sync engine implements it: it is
// the single owner of queue read-modify-write passes, so an enqueue can
// never interleave with a drain's save-back and be lost.
type Queue interface {
	Enqueue(ctx context.Context, m models.QueuedMutation) error
}

// ConnectivitySource reports whether the client currently considers itself
// online.
type ConnectivitySource interface {
	Online() bool
}

// ErrUnknownKind marks a mutation whose kind or payload cannot be matched to
// a remote operation. Replay treats it as permanent, never transient.
var ErrUnknownKind = errors.New("unknown mutation kind")

// Apply replays one mutation against the remote store. The switch over the
// kind is exhaustive; both the dispatcher's live attempt and the sync
// engine's replay go through here so the two can never diverge.
func Apply(ctx context.Context, store RemoteStore, m *models.QueuedMutation) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownKind, err)
	}
	switch m.Kind {
	case models.KindCreateRecord:
		return store.CreateRecord(ctx, m.Record.Collection, m.Record.ID, m.Record.Data)
	case models.KindUpdateRecord:
		return store.UpdateRecord(ctx, m.Record.Collection, m.Record.ID, m.Record.Data)
	case models.KindDeleteRecord:
		return store.DeleteRecord(ctx, m.Record.Collection, m.Record.ID)
	case models.KindUpdateUser:
		return store.UpdateUser(ctx, m.User.ID, m.User.Data)
	}
	return fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
}

// Outcome tells the caller how its write completed.
type Outcome int

const (
	// Applied means the remote store confirmed the write.
	Applied Outcome = iota
	// Queued means the write was recorded locally and will sync later.
	Queued
	// Rejected means the server refused the write; optimistic state was
	// rolled back via OnError.
	Rejected
)

// Callbacks follow the mutation through its lifecycle. All three are
// optional.
type Callbacks struct {
	// OnMutate runs before any network attempt and returns a rollback
	// context, typically a cache snapshot. It always runs, so the UI sees
	// the edit with zero latency.
	OnMutate func(m models.QueuedMutation) interface{}
	// OnError runs when the server rejected the write for a reason other
	// than connectivity. It receives the rollback context from OnMutate.
	OnError func(err error, m models.QueuedMutation, rollback interface{})
	// OnSuccess runs when the remote store confirmed the write.
	OnSuccess func()
}

type Dispatcher struct {
	remote RemoteStore
	queue  Queue
	online ConnectivitySource
	notif  notifier.Notifier
	nudge  func() // pokes the sync engine after an enqueue; may be nil
}

func New(remoteStore RemoteStore, queue Queue, online ConnectivitySource, notif notifier.Notifier) *Dispatcher {
	return &Dispatcher{
		remote: remoteStore,
		queue:  queue,
		online: online,
		notif:  notif,
	}
}

// SetSyncNudge installs the sync engine's trigger. Set once at composition
// time, before the dispatcher handles any call.
func (d *Dispatcher) SetSyncNudge(nudge func()) {
	d.nudge = nudge
}

// Do attempts the write described by m. Offline (detected up front or via a
// transport failure) means the mutation is enqueued and the call reports
// Queued with a nil error; the optimistic edit from OnMutate stays in place
// as the working truth. A server rejection rolls back through OnError and is
// returned to the caller.
func (d *Dispatcher) Do(ctx context.Context, m models.QueuedMutation, cb Callbacks) (Outcome, error) {
	var rollback interface{}
	if cb.OnMutate != nil {
		rollback = cb.OnMutate(m)
	}

	if !d.online.Online() {
		return d.enqueue(ctx, m, cb, rollback)
	}

	err := Apply(ctx, d.remote, &m)
	switch {
	case err == nil:
		if cb.OnSuccess != nil {
			cb.OnSuccess()
		}
		return Applied, nil
	case errors.Is(err, remote.ErrNetworkUnavailable):
		return d.enqueue(ctx, m, cb, rollback)
	default:
		if cb.OnError != nil {
			cb.OnError(err, m, rollback)
		}
		return Rejected, err
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, m models.QueuedMutation, cb Callbacks, rollback interface{}) (Outcome, error) {
	m.ID = uuid.NewString()
	m.EnqueuedAt = time.Now().UTC()
	m.RetryCount = 0

	if err := d.queue.Enqueue(ctx, m); err != nil {
		if cb.OnError != nil {
			cb.OnError(err, m, rollback)
		}
		return Rejected, err
	}

	d.notif.Notify(notifier.SeverityInfo, "Saved locally",
		fmt.Sprintf("%s will sync when the connection returns", m.Describe()))
	if d.nudge != nil {
		d.nudge()
	}
	return Queued, nil
}
