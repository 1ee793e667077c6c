package orchestrator

import "sync"

// CancelCoordinator records cancellation requests for running tasks.
// Tasks poll Cancelled at their step boundaries, so a request here stops
// work even when the task's context has not yet been torn down.
//
// A global request covers every current task and any task admitted while
// it is still set; it is cleared only once the registry drains, so a kill
// aimed at "everything" cannot race a task that was just starting.
type CancelCoordinator struct {
	mu      sync.Mutex
	all     bool
	pending map[string]struct{}
}

// NewCancelCoordinator returns an empty coordinator.
func NewCancelCoordinator() *CancelCoordinator {
	return &CancelCoordinator{pending: make(map[string]struct{})}
}

// Request marks the task on tabID for cancellation.
func (c *CancelCoordinator) Request(tabID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[tabID] = struct{}{}
}

// RequestAll marks every task, current and future, for cancellation until
// ClearAll.
func (c *CancelCoordinator) RequestAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.all = true
}

// Cancelled reports whether the task on tabID should stop.
func (c *CancelCoordinator) Cancelled(tabID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.all {
		return true
	}
	_, ok := c.pending[tabID]
	return ok
}

// Clear removes a per-tab request after the task has wound down.
func (c *CancelCoordinator) Clear(tabID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, tabID)
}

// ClearAll resets the global flag and any leftover per-tab requests.
// Called when the last task leaves the registry.
func (c *CancelCoordinator) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.all = false
	c.pending = make(map[string]struct{})
}
