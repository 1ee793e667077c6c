package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comptergeeks/bill-browser-use2/pkg/logging"
	"github.com/comptergeeks/bill-browser-use2/pkg/types"
)

// ErrInterventionTimeout is returned when no human resolved the
// intervention within the configured window.
var ErrInterventionTimeout = errors.New("intervention timed out")

// InterventionBroker is the rendezvous between a task that needs a human
// and the completion frame that eventually arrives from the UI. Each
// request gets a uuid and a one-shot signal channel; Resolve fires the
// channel for its id and unknown ids are ignored.
type InterventionBroker struct {
	timeout time.Duration
	conn    *ConnHandle
	log     *logging.Logger

	mu      sync.Mutex
	pending map[string]*pendingIntervention
}

type pendingIntervention struct {
	done      chan struct{}
	closeOnce sync.Once
}

// NewInterventionBroker creates a broker with the given response timeout.
func NewInterventionBroker(timeout time.Duration, conn *ConnHandle, log *logging.Logger) *InterventionBroker {
	return &InterventionBroker{
		timeout: timeout,
		conn:    conn,
		log:     log,
		pending: make(map[string]*pendingIntervention),
	}
}

// Await sends an intervention request to the UI and blocks until a human
// resolves it, the timeout lapses, or ctx is cancelled. Unlike progress
// telemetry this send must succeed: with no UI attached nobody can ever
// resolve the request, so the task fails fast instead of hanging.
func (b *InterventionBroker) Await(ctx context.Context, reason string) error {
	id := newInterventionID()
	p := &pendingIntervention{done: make(chan struct{})}

	b.mu.Lock()
	b.pending[id] = p
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
		p.closeOnce.Do(func() { close(p.done) })
	}()

	if err := b.conn.Send(types.NewInterventionFrame(id, reason)); err != nil {
		return fmt.Errorf("failed to request intervention: %w", err)
	}
	b.log.Infof("intervention %s requested: %s", id, reason)

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		b.log.Warnf("intervention %s timed out after %s", id, b.timeout)
		return ErrInterventionTimeout
	case <-p.done:
		b.log.Infof("intervention %s completed", id)
		return nil
	}
}

// Resolve marks the intervention with the given id as completed. It
// reports whether a task was actually waiting on it; late or duplicate
// completions return false and have no effect.
func (b *InterventionBroker) Resolve(id string) bool {
	b.mu.Lock()
	p, ok := b.pending[id]
	b.mu.Unlock()
	if !ok {
		return false
	}
	p.closeOnce.Do(func() { close(p.done) })
	return true
}

func newInterventionID() string {
	return uuid.New().String()
}

// PendingCount returns how many tasks are blocked on interventions.
func (b *InterventionBroker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
