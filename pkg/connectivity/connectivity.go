// Package connectivity maintains the client's online/offline state. The
// state changes either through probe results against the server's ping
// endpoint or through an explicit SetOnline call; subscribers receive every
// transition.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/warestage/loadsheet-client/pkg/logger"
)

// Pinger is the probe target; the remote client implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Subscription delivers online/offline transitions on C. Close releases the
// subscription; after Close returns no further sends happen.
type Subscription struct {
	C chan bool

	m    *Monitor
	once sync.Once
}

// Close unregisters the subscription.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.m.mu.Lock()
		delete(s.m.subs, s)
		s.m.mu.Unlock()
	})
}

type Monitor struct {
	pinger   Pinger
	interval time.Duration
	log      logger.LoggerInterface

	mu     sync.Mutex
	online bool
	subs   map[*Subscription]struct{}
}

// NewMonitor creates a monitor that starts in the online state; the first
// failed call or probe flips it. Run starts the probe loop.
func NewMonitor(pinger Pinger, interval time.Duration, log logger.LoggerInterface) *Monitor {
	return &Monitor{
		pinger:   pinger,
		interval: interval,
		log:      log,
		online:   true,
		subs:     make(map[*Subscription]struct{}),
	}
}

// Online reports the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline updates the state and, on a transition, notifies subscribers.
// Sends never block: a subscriber that has not drained its channel keeps the
// latest transition only.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return
	}
	m.online = online
	if m.log != nil {
		if online {
			m.log.Printf("connectivity: online")
		} else {
			m.log.Printf("connectivity: offline")
		}
	}
	for sub := range m.subs {
		select {
		case sub.C <- online:
		default:
			select {
			case <-sub.C:
			default:
			}
			select {
			case sub.C <- online:
			default:
			}
		}
	}
}

// Subscribe registers a transition listener. The caller must Close it.
func (m *Monitor) Subscribe() *Subscription {
	sub := &Subscription{C: make(chan bool, 1), m: m}
	m.mu.Lock()
	m.subs[sub] = struct{}{}
	m.mu.Unlock()
	return sub
}

// Probe pings the server once and records the result.
func (m *Monitor) Probe(ctx context.Context) {
	err := m.pinger.Ping(ctx)
	m.SetOnline(err == nil)
}

// Run probes on the configured interval until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.Probe(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
