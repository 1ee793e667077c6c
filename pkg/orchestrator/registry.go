package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/comptergeeks/bill-browser-use2/pkg/agent"
	"github.com/comptergeeks/bill-browser-use2/pkg/types"
)

// ErrDuplicateTask is returned by Admit when a live task already holds the
// requested tab.
var ErrDuplicateTask = errors.New("a task is already running for this tab")

// Task is one admitted unit of work as the registry sees it.
type Task interface {
	// Run executes the task to completion.
	Run(ctx context.Context) (*agent.Result, error)

	// ForceStop asks the task to stop at its next step boundary and
	// interrupts any blocking page work. It never blocks.
	ForceStop()
}

// TaskRecord tracks one admitted task from admission to removal.
type TaskRecord struct {
	TabID  string
	Prompt string

	cancel context.CancelFunc

	stopOnce sync.Once

	mu    sync.Mutex
	state types.TaskState
	task  Task
}

// State returns the record's lifecycle state.
func (r *TaskRecord) State() types.TaskState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetState moves the record to state.
func (r *TaskRecord) SetState(s types.TaskState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}

// Bind attaches the running task once it has been constructed. Admission
// happens before construction so duplicates are rejected without paying
// for a browser session first.
func (r *TaskRecord) Bind(t Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.task = t
}

// ForceStop stops the bound task, if any, and cancels the record context.
// A kill request and the cancellation watchdog can both reach here; the
// task is only stopped once.
func (r *TaskRecord) ForceStop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		t := r.task
		r.mu.Unlock()
		if t != nil {
			t.ForceStop()
		}
		r.cancel()
	})
}

// Registry is the admission gate: one live task per tab. All checks and
// inserts happen under one mutex so two requests for the same tab cannot
// both be admitted.
type Registry struct {
	mu    sync.Mutex
	tasks map[string]*TaskRecord
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*TaskRecord)}
}

// Admit registers a new task for tabID. If a record already exists and is
// not terminal, ErrDuplicateTask is returned; a terminal leftover is
// displaced. The returned record is in the pending state.
func (g *Registry) Admit(tabID, prompt string, cancel context.CancelFunc) (*TaskRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.tasks[tabID]; ok && !existing.State().Terminal() {
		return nil, ErrDuplicateTask
	}

	rec := &TaskRecord{
		TabID:  tabID,
		Prompt: prompt,
		cancel: cancel,
		state:  types.TaskPending,
	}
	g.tasks[tabID] = rec
	return rec, nil
}

// Get returns the record for tabID, if any.
func (g *Registry) Get(tabID string) (*TaskRecord, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.tasks[tabID]
	return rec, ok
}

// Remove deletes rec from the registry after setting its terminal state.
// The delete is conditional on rec still being the registered record: a
// newer task admitted after rec went terminal must not be evicted by
// rec's late cleanup. Returns true when the registry is empty afterwards.
func (g *Registry) Remove(rec *TaskRecord, state types.TaskState) bool {
	rec.SetState(state)

	g.mu.Lock()
	defer g.mu.Unlock()
	if current, ok := g.tasks[rec.TabID]; ok && current == rec {
		delete(g.tasks, rec.TabID)
	}
	return len(g.tasks) == 0
}

// All returns a snapshot of every registered record.
func (g *Registry) All() []*TaskRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*TaskRecord, 0, len(g.tasks))
	for _, rec := range g.tasks {
		out = append(out, rec)
	}
	return out
}

// Empty reports whether no tasks are registered.
func (g *Registry) Empty() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tasks) == 0
}
