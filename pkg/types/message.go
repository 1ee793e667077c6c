// Package types defines the JSON frames exchanged with the operator UI over
// the duplex channel, plus the lifecycle states of a browser agent task.
//
// The protocol is one JSON object per frame. Inbound frames that fail to
// parse, or carry an unknown "type", are not rejected: the dispatcher treats
// the raw text as a new task request for the default tab.
package types

import (
	"encoding/json"
	"time"
)

// DefaultTabID is the task key used when a request does not name a tab.
const DefaultTabID = "current"

// InboundType classifies a frame received from the operator UI.
type InboundType string

const (
	InboundBrowserAgentRequest InboundType = "browser_agent_request"       // start a browser agent task
	InboundKillAgent           InboundType = "kill_agent"                  // cancel one task, or all when tab_id is absent
	InboundInterventionDone    InboundType = "human_intervention_complete" // human finished a requested intervention
	InboundEndConnection       InboundType = "end_connection"              // close the channel and stop serving
	InboundRestartServer       InboundType = "restart_server"              // drop the listener and rebind after reclaiming the port
	InboundRegularChat         InboundType = "regular_chat"                // plain chat message, run as a task on the default tab
)

// InboundFrame is the decoded form of a frame from the operator UI.
// Fields are a union over all inbound types; only the fields relevant to
// Type are populated.
type InboundFrame struct {
	Type           InboundType `json:"type"`
	Prompt         string      `json:"prompt,omitempty"`
	TabID          string      `json:"tab_id,omitempty"`
	RequestID      string      `json:"id,omitempty"`
	InterventionID string      `json:"intervention_id,omitempty"`
	RegularChat    string      `json:"regular_chat,omitempty"`
}

// AckStatus is the status field of an acknowledgement frame.
type AckStatus string

const (
	AckProcessing AckStatus = "processing" // request accepted, task started
	AckDuplicate  AckStatus = "duplicate"  // a live task already exists for the tab
	AckOK         AckStatus = "ok"         // control request handled
	AckError      AckStatus = "error"      // request could not be processed
)

// Ack acknowledges an inbound frame. Sent synchronously from the dispatcher,
// before any task output.
type Ack struct {
	Status    AckStatus `json:"status"`
	Message   string    `json:"message"`
	TabID     string    `json:"tab_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// ToolStatus is the lifecycle status of a single agent action.
type ToolStatus string

const (
	ToolInProgress ToolStatus = "in_progress"
	ToolCompleted  ToolStatus = "completed"
	ToolFailed     ToolStatus = "failed"
	ToolCancelled  ToolStatus = "cancelled"
)

// ToolCall describes one agent action inside a progress frame.
type ToolCall struct {
	Name    string     `json:"name"`
	Status  ToolStatus `json:"status"`
	Details string     `json:"details"`
}

// ToolCallFrame is a best-effort progress update for one agent action.
type ToolCallFrame struct {
	Type      string   `json:"type"` // always "browser_agent_tool_call"
	TabID     string   `json:"tab_id"`
	ToolCall  ToolCall `json:"tool_call"`
	Timestamp float64  `json:"timestamp"`
}

// TaskResult is the terminal outcome of a task, embedded in a ResultFrame.
type TaskResult struct {
	Content string `json:"content"`
	Success bool   `json:"success"`
}

// ResultFrame carries the terminal outcome of a task. Exactly one is emitted
// per admitted task, whether it completed, failed, or was cancelled.
type ResultFrame struct {
	Type      string     `json:"type"` // always "browser_agent_response"
	TabID     string     `json:"tab_id"`
	Result    TaskResult `json:"result"`
	Timestamp float64    `json:"timestamp"`
}

// InterventionFrame asks the operator UI to pause for a human decision.
type InterventionFrame struct {
	Type           string  `json:"type"` // always "human_intervention_required"
	InterventionID string  `json:"intervention_id"`
	Reason         string  `json:"reason"`
	Timestamp      float64 `json:"timestamp"`
}

// TaskState is the lifecycle state of a unit of work.
// Valid transitions: pending -> running -> {completed | failed | cancelled}.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// DecodeInbound parses a raw frame. A nil error does not imply the type is
// known; callers switch on Type and fall through to the default-task path
// for anything unrecognised.
func DecodeInbound(raw []byte) (*InboundFrame, error) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, err
	}
	return &frame, nil
}

// NewAck creates an acknowledgement frame.
func NewAck(status AckStatus, message, tabID, requestID string) *Ack {
	return &Ack{
		Status:    status,
		Message:   message,
		TabID:     tabID,
		RequestID: requestID,
	}
}

// NewToolCallFrame creates a progress frame for one agent action.
func NewToolCallFrame(tabID, name string, status ToolStatus, details string) *ToolCallFrame {
	return &ToolCallFrame{
		Type:  "browser_agent_tool_call",
		TabID: tabID,
		ToolCall: ToolCall{
			Name:    name,
			Status:  status,
			Details: details,
		},
		Timestamp: now(),
	}
}

// NewResultFrame creates the terminal result frame for a task.
func NewResultFrame(tabID, content string, success bool) *ResultFrame {
	return &ResultFrame{
		Type:  "browser_agent_response",
		TabID: tabID,
		Result: TaskResult{
			Content: content,
			Success: success,
		},
		Timestamp: now(),
	}
}

// NewInterventionFrame creates an intervention request frame.
func NewInterventionFrame(interventionID, reason string) *InterventionFrame {
	return &InterventionFrame{
		Type:           "human_intervention_required",
		InterventionID: interventionID,
		Reason:         reason,
		Timestamp:      now(),
	}
}

// now returns the wall clock as fractional seconds since the Unix epoch,
// the timestamp format the operator UI expects.
func now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
