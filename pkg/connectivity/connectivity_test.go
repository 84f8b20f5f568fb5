package connectivity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warestage/loadsheet-client/pkg/connectivity"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

func TestStartsOnline(t *testing.T) {
	m := connectivity.NewMonitor(&fakePinger{}, time.Second, nil)
	assert.True(t, m.Online())
}

func TestSetOnlineNotifiesTransitionsOnly(t *testing.T) {
	m := connectivity.NewMonitor(&fakePinger{}, time.Second, nil)
	sub := m.Subscribe()
	defer sub.Close()

	m.SetOnline(true) // already online, no transition
	select {
	case <-sub.C:
		t.Fatal("unexpected notification for a non-transition")
	default:
	}

	m.SetOnline(false)
	select {
	case online := <-sub.C:
		assert.False(t, online)
	case <-time.After(time.Second):
		t.Fatal("missing offline notification")
	}
}

func TestSubscriberKeepsLatestTransition(t *testing.T) {
	m := connectivity.NewMonitor(&fakePinger{}, time.Second, nil)
	sub := m.Subscribe()
	defer sub.Close()

	// Subscriber is not draining; only the newest state must survive.
	m.SetOnline(false)
	m.SetOnline(true)

	select {
	case online := <-sub.C:
		assert.True(t, online)
	case <-time.After(time.Second):
		t.Fatal("missing notification")
	}
}

func TestClosedSubscriptionReceivesNothing(t *testing.T) {
	m := connectivity.NewMonitor(&fakePinger{}, time.Second, nil)
	sub := m.Subscribe()
	sub.Close()
	sub.Close() // idempotent

	m.SetOnline(false)
	select {
	case <-sub.C:
		t.Fatal("closed subscription received a notification")
	default:
	}
}

func TestProbe(t *testing.T) {
	p := &fakePinger{err: errors.New("dial tcp: connection refused")}
	m := connectivity.NewMonitor(p, time.Second, nil)

	m.Probe(context.Background())
	require.False(t, m.Online())

	p.err = nil
	m.Probe(context.Background())
	assert.True(t, m.Online())
}
