package orchestrator

import (
	"fmt"

	"github.com/comptergeeks/bill-browser-use2/pkg/agent"
	"github.com/comptergeeks/bill-browser-use2/pkg/logging"
	"github.com/comptergeeks/bill-browser-use2/pkg/types"
)

// Telemetry pushes task progress to the operator UI. Progress is best
// effort: a missing or broken connection is logged and otherwise ignored,
// so a task never blocks or fails because nobody is watching.
type Telemetry struct {
	conn *ConnHandle
	log  *logging.Logger
}

// NewTelemetry creates a telemetry emitter over the shared connection.
func NewTelemetry(conn *ConnHandle, log *logging.Logger) *Telemetry {
	return &Telemetry{conn: conn, log: log}
}

// EmitToolCall sends a progress frame for one agent action.
func (t *Telemetry) EmitToolCall(tabID, name string, status types.ToolStatus, args map[string]string) {
	frame := types.NewToolCallFrame(tabID, name, status, toolDetails(name, args))
	if err := t.conn.Send(frame); err != nil {
		t.log.Debugf("dropped tool call frame for tab %s: %v", tabID, err)
	}
}

// EmitResult sends the terminal result frame for a task.
func (t *Telemetry) EmitResult(tabID, content string, success bool) {
	if err := t.conn.Send(types.NewResultFrame(tabID, content, success)); err != nil {
		t.log.Warnf("dropped result frame for tab %s: %v", tabID, err)
	}
}

// EmitAck sends an acknowledgement frame.
func (t *Telemetry) EmitAck(ack *types.Ack) {
	if err := t.conn.Send(ack); err != nil {
		t.log.Debugf("dropped ack (%s): %v", ack.Status, err)
	}
}

// toolDetails renders a human-readable line for the UI's activity feed.
// Typed text is never echoed; it may contain passwords.
func toolDetails(name string, args map[string]string) string {
	switch name {
	case startToolName:
		return "Starting browser agent"
	case agent.ActionClick:
		if sel := args["selector"]; sel != "" {
			return fmt.Sprintf("Clicking %s", sel)
		}
		return "Clicking element"
	case agent.ActionInputText:
		if sel := args["selector"]; sel != "" {
			return fmt.Sprintf("Typing into %s", sel)
		}
		return "Typing text"
	case agent.ActionSearchGoogle:
		if q := args["query"]; q != "" {
			return fmt.Sprintf("Searching Google for %q", q)
		}
		return "Searching Google"
	case agent.ActionNavigate:
		if u := args["url"]; u != "" {
			return fmt.Sprintf("Navigating to %s", u)
		}
		return "Navigating"
	case agent.ActionIntervention:
		if r := args["reason"]; r != "" {
			return fmt.Sprintf("Waiting for human: %s", r)
		}
		return "Waiting for human intervention"
	}
	return ""
}
