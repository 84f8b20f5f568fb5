package dispatcher_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warestage/loadsheet-client/pkg/dispatcher"
	"github.com/warestage/loadsheet-client/pkg/models"
	"github.com/warestage/loadsheet-client/pkg/notifier"
	"github.com/warestage/loadsheet-client/pkg/remote"
)

type fakeRemote struct {
	err   error
	calls []string
}

func (f *fakeRemote) CreateRecord(ctx context.Context, collection, id string, data json.RawMessage) error {
	f.calls = append(f.calls, "create "+collection+"/"+id)
	return f.err
}

func (f *fakeRemote) UpdateRecord(ctx context.Context, collection, id string, data json.RawMessage) error {
	f.calls = append(f.calls, "update "+collection+"/"+id)
	return f.err
}

func (f *fakeRemote) DeleteRecord(ctx context.Context, collection, id string) error {
	f.calls = append(f.calls, "delete "+collection+"/"+id)
	return f.err
}

func (f *fakeRemote) UpdateUser(ctx context.Context, id string, data json.RawMessage) error {
	f.calls = append(f.calls, "user "+id)
	return f.err
}

type memQueue struct {
	mu    sync.Mutex
	items []models.QueuedMutation
	err   error
}

func (q *memQueue) Enqueue(ctx context.Context, m models.QueuedMutation) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.items = append(q.items, m)
	return nil
}

type fixedOnline bool

func (o fixedOnline) Online() bool { return bool(o) }

type recordedToast struct {
	severity notifier.Severity
	message  string
	detail   string
}

type recordingNotifier struct {
	mu     sync.Mutex
	toasts []recordedToast
}

func (n *recordingNotifier) Notify(severity notifier.Severity, message, detail string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, recordedToast{severity, message, detail})
}

func (n *recordingNotifier) all() []recordedToast {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]recordedToast, len(n.toasts))
	copy(out, n.toasts)
	return out
}

func TestOfflineEnqueues(t *testing.T) {
	rem := &fakeRemote{}
	queue := &memQueue{}
	toasts := &recordingNotifier{}
	d := dispatcher.New(rem, queue, fixedOnline(false), toasts)

	nudged := false
	d.SetSyncNudge(func() { nudged = true })

	var mutated bool
	var errored bool
	outcome, err := d.Do(context.Background(),
		models.NewUpdateRecord("sheets", "S1", json.RawMessage(`{"status":"LOCKED"}`)),
		dispatcher.Callbacks{
			OnMutate: func(m models.QueuedMutation) interface{} { mutated = true; return nil },
			OnError:  func(err error, m models.QueuedMutation, rollback interface{}) { errored = true },
		})

	require.NoError(t, err, "an offline queue is not an error for the caller")
	assert.Equal(t, dispatcher.Queued, outcome)
	assert.True(t, mutated)
	assert.False(t, errored)
	assert.Empty(t, rem.calls, "no network attempt while offline")

	require.Len(t, queue.items, 1)
	m := queue.items[0]
	assert.NotEmpty(t, m.ID)
	assert.False(t, m.EnqueuedAt.IsZero())
	assert.Equal(t, 0, m.RetryCount)
	assert.Equal(t, models.KindUpdateRecord, m.Kind)

	all := toasts.all()
	require.Len(t, all, 1)
	assert.Equal(t, notifier.SeverityInfo, all[0].severity)
	assert.Equal(t, "Saved locally", all[0].message)
	assert.True(t, nudged)
}

func TestOnlineSuccess(t *testing.T) {
	rem := &fakeRemote{}
	queue := &memQueue{}
	d := dispatcher.New(rem, queue, fixedOnline(true), &recordingNotifier{})

	var succeeded bool
	outcome, err := d.Do(context.Background(),
		models.NewCreateRecord("sheets", "S2", json.RawMessage(`{"status":"DRAFT"}`)),
		dispatcher.Callbacks{OnSuccess: func() { succeeded = true }})

	require.NoError(t, err)
	assert.Equal(t, dispatcher.Applied, outcome)
	assert.True(t, succeeded)
	assert.Equal(t, []string{"create sheets/S2"}, rem.calls)
	assert.Empty(t, queue.items)
}

func TestRejectionRollsBackAndDoesNotEnqueue(t *testing.T) {
	rejection := errors.New("server returned status 409: sheet is locked")
	rem := &fakeRemote{err: rejection}
	queue := &memQueue{}
	toasts := &recordingNotifier{}
	d := dispatcher.New(rem, queue, fixedOnline(true), toasts)

	var gotErr error
	var gotRollback interface{}
	outcome, err := d.Do(context.Background(),
		models.NewUpdateRecord("sheets", "S1", json.RawMessage(`{}`)),
		dispatcher.Callbacks{
			OnMutate: func(m models.QueuedMutation) interface{} { return "snapshot-1" },
			OnError: func(err error, m models.QueuedMutation, rollback interface{}) {
				gotErr = err
				gotRollback = rollback
			},
		})

	assert.Equal(t, dispatcher.Rejected, outcome)
	assert.ErrorIs(t, err, rejection)
	assert.ErrorIs(t, gotErr, rejection)
	assert.Equal(t, "snapshot-1", gotRollback)
	assert.Empty(t, queue.items, "rejected writes are not queued")
	assert.Empty(t, toasts.all())
}

func TestTransportFailureEnqueues(t *testing.T) {
	rem := &fakeRemote{err: remote.ErrNetworkUnavailable}
	queue := &memQueue{}
	d := dispatcher.New(rem, queue, fixedOnline(true), &recordingNotifier{})

	var errored bool
	outcome, err := d.Do(context.Background(),
		models.NewDeleteRecord("sheets", "S3"),
		dispatcher.Callbacks{
			OnError: func(err error, m models.QueuedMutation, rollback interface{}) { errored = true },
		})

	require.NoError(t, err)
	assert.Equal(t, dispatcher.Queued, outcome)
	assert.False(t, errored, "a connectivity failure must not surface as an error")
	require.Len(t, queue.items, 1)
}

func TestEnqueuePreservesOrder(t *testing.T) {
	queue := &memQueue{}
	d := dispatcher.New(&fakeRemote{}, queue, fixedOnline(false), &recordingNotifier{})
	ctx := context.Background()

	for _, id := range []string{"S1", "S2", "S3"} {
		_, err := d.Do(ctx, models.NewUpdateRecord("sheets", id, json.RawMessage(`{}`)), dispatcher.Callbacks{})
		require.NoError(t, err)
	}

	require.Len(t, queue.items, 3)
	assert.Equal(t, "S1", queue.items[0].Record.ID)
	assert.Equal(t, "S2", queue.items[1].Record.ID)
	assert.Equal(t, "S3", queue.items[2].Record.ID)
}

func TestQueueFailureSurfaces(t *testing.T) {
	queue := &memQueue{err: errors.New("disk full")}
	d := dispatcher.New(&fakeRemote{}, queue, fixedOnline(false), &recordingNotifier{})

	var errored bool
	outcome, err := d.Do(context.Background(),
		models.NewUpdateRecord("sheets", "S1", json.RawMessage(`{}`)),
		dispatcher.Callbacks{
			OnError: func(err error, m models.QueuedMutation, rollback interface{}) { errored = true },
		})

	assert.Equal(t, dispatcher.Rejected, outcome)
	assert.Error(t, err)
	assert.True(t, errored)
}

func TestApplyUnknownKind(t *testing.T) {
	rem := &fakeRemote{}
	m := models.QueuedMutation{Kind: "compact_tables"}
	err := dispatcher.Apply(context.Background(), rem, &m)
	assert.ErrorIs(t, err, dispatcher.ErrUnknownKind)
	assert.Empty(t, rem.calls)
}
