package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comptergeeks/bill-browser-use2/pkg/agent"
	"github.com/comptergeeks/bill-browser-use2/pkg/config"
	"github.com/comptergeeks/bill-browser-use2/pkg/logging"
	"github.com/comptergeeks/bill-browser-use2/pkg/types"
)

// fallbackSuccessMessage is sent when a task succeeds without a summary.
const fallbackSuccessMessage = "Task completed successfully"

// startToolName is the synthetic tool call that brackets a task's lifetime
// in the UI's activity feed: in_progress at launch, then the task's
// terminal status alongside the result frame.
const startToolName = "browser_agent_start"

// errTaskCancelled is what the checkpoint hook returns when the cancel
// coordinator has flagged the task.
var errTaskCancelled = errors.New("task cancelled")

// ControlSignal is an out-of-band instruction from the UI to the server
// loop surrounding the orchestrator.
type ControlSignal int

const (
	// ControlShutdown asks the server to stop serving entirely.
	ControlShutdown ControlSignal = iota
	// ControlRestart asks the server to drop its listener, reclaim the
	// port, and bind again.
	ControlRestart
)

// TaskFactory builds the task for one admitted request. The hooks wire the
// task's progress reporting, interventions, and cancellation polling back
// into the orchestrator.
type TaskFactory func(prompt string, hooks agent.Hooks) (Task, error)

// Orchestrator owns the shared connection and every running task.
type Orchestrator struct {
	cfg     *config.Config
	log     *logging.Logger
	factory TaskFactory

	conn          *ConnHandle
	telemetry     *Telemetry
	interventions *InterventionBroker
	cancels       *CancelCoordinator
	registry      *Registry

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	control chan ControlSignal
}

// New creates an orchestrator. The factory is invoked once per admitted
// task; production wiring passes NewAgentTaskFactory, tests pass scripts.
func New(cfg *config.Config, factory TaskFactory, log *logging.Logger) *Orchestrator {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	conn := NewConnHandle()

	return &Orchestrator{
		cfg:           cfg,
		log:           log,
		factory:       factory,
		conn:          conn,
		telemetry:     NewTelemetry(conn, log),
		interventions: NewInterventionBroker(cfg.InterventionTimeout, conn, log),
		cancels:       NewCancelCoordinator(),
		registry:      NewRegistry(),
		baseCtx:       baseCtx,
		baseCancel:    baseCancel,
		control:       make(chan ControlSignal, 1),
	}
}

// Conn exposes the connection handle to the server layer.
func (o *Orchestrator) Conn() *ConnHandle {
	return o.conn
}

// Control delivers shutdown and restart requests to the server loop.
func (o *Orchestrator) Control() <-chan ControlSignal {
	return o.control
}

// startTask admits and launches a task for tabID. The acknowledgement is
// sent before any task output so the UI sees ordering it can rely on.
func (o *Orchestrator) startTask(tabID, prompt, requestID string) {
	if requestID == "" {
		// Every request gets an id the UI can correlate on, even when the
		// sender did not supply one.
		requestID = uuid.New().String()
	}

	ctx, cancel := context.WithCancel(o.baseCtx)

	rec, err := o.registry.Admit(tabID, prompt, cancel)
	if errors.Is(err, ErrDuplicateTask) {
		cancel()
		o.log.Infof("rejected duplicate task for tab %s", tabID)
		o.telemetry.EmitAck(types.NewAck(types.AckDuplicate, "A task is already running for this tab", tabID, requestID))
		return
	}
	if err != nil {
		cancel()
		o.telemetry.EmitAck(types.NewAck(types.AckError, err.Error(), tabID, requestID))
		return
	}

	o.telemetry.EmitAck(types.NewAck(types.AckProcessing, "Task started", tabID, requestID))
	o.log.Infof("task admitted for tab %s: %.120s", tabID, prompt)

	o.wg.Add(1)
	go o.runTask(ctx, rec)
}

// runTask drives one admitted task to its terminal state and emits exactly
// one result frame, whatever happens.
func (o *Orchestrator) runTask(ctx context.Context, rec *TaskRecord) {
	defer o.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			o.log.Errorf("task for tab %s panicked: %v", rec.TabID, r)
			o.finishTask(rec, types.TaskFailed, fmt.Sprintf("internal error: %v", r), false)
		}
	}()

	o.telemetry.EmitToolCall(rec.TabID, startToolName, types.ToolInProgress, nil)

	hooks := agent.Hooks{
		OnTool: func(name string, status types.ToolStatus, args map[string]string) {
			o.telemetry.EmitToolCall(rec.TabID, name, status, args)
		},
		RequestIntervention: o.interventions.Await,
		Checkpoint: func(context.Context) error {
			if o.cancels.Cancelled(rec.TabID) {
				return errTaskCancelled
			}
			return nil
		},
	}

	task, err := o.factory(rec.Prompt, hooks)
	if err != nil {
		o.log.Errorf("failed to build task for tab %s: %v", rec.TabID, err)
		o.finishTask(rec, types.TaskFailed, fmt.Sprintf("could not start task: %v", err), false)
		return
	}
	rec.Bind(task)
	rec.SetState(types.TaskRunning)
	go o.watchCancellation(ctx, rec)

	result, err := task.Run(ctx)
	switch {
	case err == nil:
		content := result.Content
		if result.Success && content == "" {
			content = fallbackSuccessMessage
		}
		o.finishTask(rec, types.TaskCompleted, content, result.Success)
	case isCancellation(err):
		o.log.Infof("task for tab %s cancelled", rec.TabID)
		o.finishTask(rec, types.TaskCancelled, "Task cancelled", false)
	default:
		o.log.Warnf("task for tab %s failed: %v", rec.TabID, err)
		o.finishTask(rec, types.TaskFailed, err.Error(), false)
	}
}

// finishTask records the terminal state, emits the result frame, and winds
// down the cancellation bookkeeping for the tab.
func (o *Orchestrator) finishTask(rec *TaskRecord, state types.TaskState, content string, success bool) {
	rec.cancel()
	empty := o.registry.Remove(rec, state)
	o.cancels.Clear(rec.TabID)
	if empty {
		o.cancels.ClearAll()
	}
	o.telemetry.EmitToolCall(rec.TabID, startToolName, startToolStatus(state), nil)
	o.telemetry.EmitResult(rec.TabID, content, success)
}

// startToolStatus closes the launch frame with the task's terminal state.
func startToolStatus(state types.TaskState) types.ToolStatus {
	switch state {
	case types.TaskCompleted:
		return types.ToolCompleted
	case types.TaskCancelled:
		return types.ToolCancelled
	default:
		return types.ToolFailed
	}
}

// watchCancellation polls the coordinator while the task runs and
// force-stops it once its tab is flagged, so a cancellation lands even
// when the task is deep in page work and far from a step boundary. Exits
// when the task context is torn down.
func (o *Orchestrator) watchCancellation(ctx context.Context, rec *TaskRecord) {
	interval := o.cfg.CheckpointInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if o.cancels.Cancelled(rec.TabID) {
				rec.ForceStop()
				return
			}
		}
	}
}

// isCancellation distinguishes a stop the orchestrator asked for from a
// genuine failure.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, agent.ErrStopped) ||
		errors.Is(err, errTaskCancelled)
}

// kill cancels the task on tabID, or every task when tabID is empty.
// Escalation order: flag the coordinator so the next checkpoint stops the
// loop, force-stop the task to interrupt page work, then cancel the
// context to unblock anything waiting on it.
func (o *Orchestrator) kill(tabID string) {
	if tabID == "" {
		o.killAll()
		return
	}

	rec, ok := o.registry.Get(tabID)
	if !ok {
		// Nothing registered under that tab. The UI clearly wants work
		// stopped, so stop everything that is running rather than
		// silently doing nothing. The tab itself is not flagged: there
		// is no task to clear the flag, and a stale flag would kill
		// whatever runs on the tab next.
		o.log.Warnf("kill for unknown tab %s, cancelling all tasks", tabID)
		o.killAll()
		return
	}
	o.cancels.Request(tabID)
	o.log.Infof("killing task for tab %s", tabID)
	rec.ForceStop()
}

func (o *Orchestrator) killAll() {
	records := o.registry.All()
	if len(records) == 0 {
		// The global flag is only cleared by a draining registry; with
		// nothing registered it would outlive this request and kill the
		// next admitted task.
		o.log.Infof("cancellation requested with no running tasks")
		return
	}
	o.cancels.RequestAll()
	for _, rec := range records {
		rec.ForceStop()
	}
	o.log.Infof("cancellation requested for all tasks")
	if o.registry.Empty() {
		// Everything in the snapshot finished on its own between the
		// snapshot and the flag; nothing is left to clear it.
		o.cancels.ClearAll()
	}
}

// Shutdown cancels all tasks and waits for them to finish.
func (o *Orchestrator) Shutdown() {
	o.killAll()
	o.baseCancel()
	o.wg.Wait()
	o.conn.Close()
}

// Wait blocks until all running tasks have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// RequestShutdown asks the server loop to stop, as if the UI had sent an
// end_connection frame. Used by signal handlers.
func (o *Orchestrator) RequestShutdown() {
	o.signal(ControlShutdown)
}

func (o *Orchestrator) signal(s ControlSignal) {
	select {
	case o.control <- s:
	default:
		// A pending signal already covers it.
	}
}
