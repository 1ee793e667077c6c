package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comptergeeks/bill-browser-use2/pkg/logging"
)

func newTestBroker(t *testing.T, timeout time.Duration) (*InterventionBroker, *fakeWire) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	log, _ := logging.NewLogger("broker-test")

	conn := NewConnHandle()
	wire := &fakeWire{}
	conn.Set(wire)
	return NewInterventionBroker(timeout, conn, log), wire
}

func TestBrokerRoundTrip(t *testing.T) {
	b, wire := newTestBroker(t, 5*time.Second)

	var wg sync.WaitGroup
	var awaitErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		awaitErr = b.Await(context.Background(), "login please")
	}()

	var id string
	wire.waitFor(t, "intervention frame", func(frames []map[string]any) bool {
		for _, fr := range frames {
			if frameField(fr, "type") == "human_intervention_required" {
				id = frameField(fr, "intervention_id")
				return true
			}
		}
		return false
	})
	require.NotEmpty(t, id)
	assert.Equal(t, 1, b.PendingCount())

	assert.True(t, b.Resolve(id))
	wg.Wait()

	assert.NoError(t, awaitErr)
	assert.Zero(t, b.PendingCount())
}

func TestBrokerResolveUnknownID(t *testing.T) {
	b, _ := newTestBroker(t, time.Second)
	assert.False(t, b.Resolve("no-such-id"))
}

func TestBrokerResolveTwice(t *testing.T) {
	b, wire := newTestBroker(t, 5*time.Second)

	done := make(chan error, 1)
	go func() { done <- b.Await(context.Background(), "x") }()

	var id string
	wire.waitFor(t, "intervention frame", func(frames []map[string]any) bool {
		for _, fr := range frames {
			if frameField(fr, "type") == "human_intervention_required" {
				id = frameField(fr, "intervention_id")
				return true
			}
		}
		return false
	})

	assert.True(t, b.Resolve(id))
	require.NoError(t, <-done)

	// The second completion finds nothing waiting.
	assert.False(t, b.Resolve(id))
}

func TestBrokerTimeout(t *testing.T) {
	b, _ := newTestBroker(t, 20*time.Millisecond)

	err := b.Await(context.Background(), "nobody answers")
	assert.ErrorIs(t, err, ErrInterventionTimeout)
	assert.Zero(t, b.PendingCount())
}

func TestBrokerContextCancel(t *testing.T) {
	b, _ := newTestBroker(t, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Await(ctx, "x") }()

	// Let the request register before cancelling.
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Zero(t, b.PendingCount())
}

func TestBrokerFailsWithoutConnection(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	log, _ := logging.NewLogger("broker-test")
	b := NewInterventionBroker(time.Second, NewConnHandle(), log)

	err := b.Await(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoConnection)
	assert.Zero(t, b.PendingCount())
}
