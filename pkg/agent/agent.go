// Package agent implements the browser automation agent: a step loop that
// snapshots the page, asks the model for the next action, and executes it.
//
// The agent is deliberately ignorant of the duplex channel. Progress
// reporting, human interventions, and cancellation checks all arrive
// through Hooks, so the loop can run under the orchestrator or under a
// test harness with equal ease.
package agent

import (
	"context"
	"errors"

	"github.com/comptergeeks/bill-browser-use2/pkg/browser"
	"github.com/comptergeeks/bill-browser-use2/pkg/types"
)

// Sentinel errors returned by Run.
var (
	// ErrStopped is returned when a stop was forced mid-task.
	ErrStopped = errors.New("agent stop requested")

	// ErrTooManyFailures is returned when consecutive action failures
	// exceed the configured threshold.
	ErrTooManyFailures = errors.New("too many consecutive failures")
)

// Result is the terminal outcome of a task.
type Result struct {
	Content string
	Success bool
}

// BrowserSession is the slice of browser capability the agent drives.
// *browser.Session satisfies it; tests substitute scripted fakes.
type BrowserSession interface {
	Navigate(url string) error
	Click(selector string) error
	Fill(selector, value string) error
	Snapshot() (*browser.PageSnapshot, error)
}

// Hooks connect a running task to its surroundings. All fields are
// optional; nil hooks are skipped.
type Hooks struct {
	// OnTool reports an action transition for progress display.
	OnTool func(name string, status types.ToolStatus, args map[string]string)

	// RequestIntervention blocks until a human resolves the situation the
	// agent cannot handle. A non-nil error means the task should end.
	RequestIntervention func(ctx context.Context, reason string) error

	// Checkpoint is polled between steps; a non-nil error aborts the task
	// as cancelled.
	Checkpoint func(ctx context.Context) error
}

// Agent runs one browser automation task to completion.
type Agent interface {
	// Run executes the task described by prompt and returns its outcome.
	Run(ctx context.Context, prompt string) (*Result, error)

	// State exposes the agent's stop and failure accounting.
	State() *State
}
