// Package syncer drains the durable mutation queue against the remote store
// whenever connectivity allows: on the offline-to-online transition, on an
// explicit trigger, on a fallback poll, and once at startup in case a queue
// survived from a previous session.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warestage/loadsheet-client/pkg/connectivity"
	"github.com/warestage/loadsheet-client/pkg/dispatcher"
	"github.com/warestage/loadsheet-client/pkg/logger"
	"github.com/warestage/loadsheet-client/pkg/models"
	"github.com/warestage/loadsheet-client/pkg/notifier"
	"github.com/warestage/loadsheet-client/pkg/remote"
	"github.com/warestage/loadsheet-client/pkg/syncinfo"
)

// CacheInvalidator marks cached collections for refetch after server state
// has moved.
type CacheInvalidator interface {
	Invalidate(key string)
	InvalidateAll()
}

// ConnectivityMonitor is the subset of the connectivity monitor the engine
// needs.
type ConnectivityMonitor interface {
	Online() bool
	Subscribe() *connectivity.Subscription
}

// EventSource is the server's change feed; changes made by other clients
// arrive here and invalidate the affected collections.
type EventSource interface {
	NextEvents(ctx context.Context, cursor int64) (remote.Events, error)
}

// Options carries the engine's policy knobs. Both come from configuration;
// the defaults (5 attempts, 10s poll) are the values the operation has
// always run with.
type Options struct {
	RetryLimit   int
	PollInterval time.Duration
}

type Engine struct {
	store   dispatcher.QueueStore
	remote  dispatcher.RemoteStore
	monitor ConnectivityMonitor
	cache   CacheInvalidator
	notif   notifier.Notifier
	log     logger.LoggerInterface
	info    *syncinfo.SyncManager // may be nil
	events  EventSource           // may be nil

	retryLimit   int
	pollInterval time.Duration

	// queueMu serializes read-modify-write passes over the store. The store
	// itself provides no locking; the engine is the single logical owner.
	queueMu  sync.Mutex
	draining atomic.Bool
	trigger  chan struct{}
}

func New(store dispatcher.QueueStore, remoteStore dispatcher.RemoteStore, monitor ConnectivityMonitor,
	cache CacheInvalidator, notif notifier.Notifier, log logger.LoggerInterface,
	info *syncinfo.SyncManager, opts Options) *Engine {
	return &Engine{
		store:        store,
		remote:       remoteStore,
		monitor:      monitor,
		cache:        cache,
		notif:        notif,
		log:          log,
		info:         info,
		retryLimit:   opts.RetryLimit,
		pollInterval: opts.PollInterval,
		trigger:      make(chan struct{}, 1),
	}
}

// SetEventSource installs the change feed. Set at composition time.
func (e *Engine) SetEventSource(events EventSource) {
	e.events = events
}

// Enqueue appends a mutation to the durable queue. The dispatcher routes
// every offline write through here so the append cannot race a drain's
// save-back.
func (e *Engine) Enqueue(ctx context.Context, m models.QueuedMutation) error {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	queue, err := e.store.LoadQueue(ctx)
	if err != nil {
		return err
	}
	queue = append(queue, m)
	return e.store.SaveQueue(ctx, queue)
}

// TriggerSync requests a drain without blocking. A trigger raised while one
// is already pending collapses into it.
func (e *Engine) TriggerSync() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Run owns the engine's event wiring until the context is cancelled: the
// connectivity subscription, the fallback poll ticker, the change feed and
// the startup drain. Teardown of all of them is guaranteed on return.
func (e *Engine) Run(ctx context.Context) {
	sub := e.monitor.Subscribe()
	defer sub.Close()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	if e.events != nil {
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.watchEvents(ctx)
		}()
		defer wg.Wait()
	}

	// A queue may have survived the previous session.
	e.Drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case online := <-sub.C:
			if online {
				e.Drain(ctx)
			}
		case <-ticker.C:
			e.Drain(ctx)
		case <-e.trigger:
			e.Drain(ctx)
		}
	}
}

// Drain replays the queued mutations in enqueue order. At most one drain
// runs at a time; a second initiation while one is in flight is a no-op.
// Mutations enqueued after the pass loaded its snapshot are picked up by the
// next trigger. Drain never returns an error: a failed pass degrades to
// "nothing synced, retry later".
func (e *Engine) Drain(ctx context.Context) {
	if !e.draining.CompareAndSwap(false, true) {
		return
	}
	defer e.draining.Store(false)

	if !e.monitor.Online() {
		return
	}

	e.queueMu.Lock()
	queue, err := e.store.LoadQueue(ctx)
	e.queueMu.Unlock()
	if err != nil {
		e.log.Printf("sync: failed to load queue: %v", err)
		return
	}
	if len(queue) == 0 {
		return
	}

	var retained []models.QueuedMutation
	var succeeded, dropped int
	var lastErr error

	for i := range queue {
		m := queue[i]
		err := dispatcher.Apply(ctx, e.remote, &m)
		if err == nil {
			succeeded++
			continue
		}

		lastErr = err
		m.RetryCount++
		if errors.Is(err, dispatcher.ErrUnknownKind) {
			e.log.Printf("sync: dropping %s (%s): %v", m.ID, m.Describe(), err)
			dropped++
			continue
		}
		if m.RetryCount >= e.retryLimit {
			e.log.Printf("sync: dropping %s (%s) after %d attempts: %v", m.ID, m.Describe(), m.RetryCount, err)
			dropped++
			continue
		}
		retained = append(retained, m)
	}

	if err := e.saveDrained(ctx, len(queue), retained); err != nil {
		// The old snapshot stays on disk; succeeded items will replay again,
		// which the server's row-level writes tolerate.
		e.log.Printf("sync: failed to save queue: %v", err)
		return
	}

	if succeeded > 0 {
		e.cache.InvalidateAll()
		detail := fmt.Sprintf("%d item(s) synced", succeeded)
		if dropped > 0 {
			detail += fmt.Sprintf(", %d dropped after %d attempts", dropped, e.retryLimit)
		}
		e.notif.Notify(notifier.SeveritySuccess, "Sync complete", detail)
		if e.info != nil {
			if err := e.info.UpdateAndSaveSyncInfo(syncinfo.SyncInfo{LastSync: time.Now().UTC()}); err != nil {
				e.log.Printf("sync: failed to record last sync: %v", err)
			}
		}
	}

	if len(retained) > 0 {
		detail := fmt.Sprintf("%d item(s) failed to sync and will be retried", len(retained))
		if lastErr != nil {
			detail += ": " + lastErr.Error()
		}
		e.notif.Notify(notifier.SeverityError, "Sync incomplete", detail)
	}
}

// saveDrained replaces the drained snapshot with the retained items while
// preserving mutations enqueued after the snapshot was taken; those replay
// on the next pass, not retroactively in this one.
func (e *Engine) saveDrained(ctx context.Context, snapshotLen int, retained []models.QueuedMutation) error {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	current, err := e.store.LoadQueue(ctx)
	if err != nil {
		return err
	}
	if len(current) > snapshotLen {
		retained = append(retained, current[snapshotLen:]...)
	}
	return e.store.SaveQueue(ctx, retained)
}

// watchEvents long-polls the change feed and invalidates the collections it
// names. Errors back off by one poll interval.
func (e *Engine) watchEvents(ctx context.Context) {
	var cursor int64
	for {
		if ctx.Err() != nil {
			return
		}

		events, err := e.events.NextEvents(ctx, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, remote.ErrNetworkUnavailable) {
				e.log.Printf("sync: change feed: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.pollInterval):
			}
			continue
		}

		cursor = events.Cursor
		for _, key := range events.Collections {
			e.cache.Invalidate(key)
		}
	}
}
