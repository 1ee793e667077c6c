package orchestrator

import (
	"strings"

	"github.com/comptergeeks/bill-browser-use2/pkg/types"
)

// Dispatch routes one inbound frame. The protocol is permissive on
// purpose: frames that are not JSON, or carry a type nobody knows, are
// treated as a plain-language task request for the default tab rather
// than rejected. An operator typing into a raw websocket client gets an
// agent, not an error.
func (o *Orchestrator) Dispatch(raw []byte) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return
	}

	frame, err := types.DecodeInbound(raw)
	if err != nil {
		o.log.Debugf("non-JSON frame, running as task: %.80s", text)
		o.startTask(types.DefaultTabID, text, "")
		return
	}

	switch frame.Type {
	case types.InboundBrowserAgentRequest:
		o.handleAgentRequest(frame)

	case types.InboundRegularChat:
		prompt := frame.RegularChat
		if prompt == "" {
			prompt = frame.Prompt
		}
		if prompt == "" {
			o.telemetry.EmitAck(types.NewAck(types.AckError, "regular_chat frame has no message", types.DefaultTabID, frame.RequestID))
			return
		}
		o.startTask(types.DefaultTabID, prompt, frame.RequestID)

	case types.InboundKillAgent:
		o.kill(frame.TabID)
		o.telemetry.EmitAck(types.NewAck(types.AckOK, "Cancellation requested", frame.TabID, frame.RequestID))

	case types.InboundInterventionDone:
		o.handleInterventionDone(frame)

	case types.InboundEndConnection:
		o.log.Infof("end_connection received, shutting down")
		o.telemetry.EmitAck(types.NewAck(types.AckOK, "Connection closing", "", frame.RequestID))
		o.signal(ControlShutdown)

	case types.InboundRestartServer:
		o.log.Infof("restart_server received")
		o.telemetry.EmitAck(types.NewAck(types.AckOK, "Server restarting", "", frame.RequestID))
		o.signal(ControlRestart)

	default:
		o.log.Debugf("unknown frame type %q, running as task", frame.Type)
		o.startTask(types.DefaultTabID, text, frame.RequestID)
	}
}

func (o *Orchestrator) handleAgentRequest(frame *types.InboundFrame) {
	if frame.Prompt == "" {
		o.telemetry.EmitAck(types.NewAck(types.AckError, "request has no prompt", frame.TabID, frame.RequestID))
		return
	}
	tabID := frame.TabID
	if tabID == "" {
		tabID = types.DefaultTabID
	}
	o.startTask(tabID, frame.Prompt, frame.RequestID)
}

func (o *Orchestrator) handleInterventionDone(frame *types.InboundFrame) {
	if frame.InterventionID == "" {
		o.telemetry.EmitAck(types.NewAck(types.AckError, "completion frame has no intervention_id", "", frame.RequestID))
		return
	}
	if !o.interventions.Resolve(frame.InterventionID) {
		// Late or duplicate completion; the waiter is long gone. Logged,
		// never an error back to the sender.
		o.log.Debugf("completion for unknown intervention %s", frame.InterventionID)
	}
	o.telemetry.EmitAck(types.NewAck(types.AckOK, "Intervention completed", "", frame.RequestID))
}
