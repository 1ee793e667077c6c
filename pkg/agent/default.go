package agent

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/comptergeeks/bill-browser-use2/pkg/browser"
	"github.com/comptergeeks/bill-browser-use2/pkg/llm"
	"github.com/comptergeeks/bill-browser-use2/pkg/llm/tokenizer"
	"github.com/comptergeeks/bill-browser-use2/pkg/logging"
	"github.com/comptergeeks/bill-browser-use2/pkg/types"
)

var agentLog *logging.Logger

func init() {
	var err error
	agentLog, err = logging.NewLogger("agent")
	if err != nil {
		agentLog.Warnf("Failed to initialize agent logger, using stderr fallback: %v", err)
	}
}

const systemPrompt = `You are a browser automation agent. You control a real browser tab on behalf of a user.

Each turn you receive the user's task, a log of your previous steps, and a cleaned snapshot of the current page. Respond with EXACTLY ONE JSON object choosing your next action:

{"action": "navigate", "url": "https://..."}
{"action": "click", "selector": "<css selector>"}
{"action": "input_text", "selector": "<css selector>", "text": "<text to type>"}
{"action": "search_google", "query": "<search terms>"}
{"action": "request_intervention", "reason": "<why a human must take over>"}
{"action": "done", "content": "<summary of what you accomplished>", "success": true}

Rules:
- Use selectors that appear in the snapshot. Prefer ids and names over classes.
- Request an intervention for logins, CAPTCHAs, payment confirmations, or anything requiring credentials or judgement you do not have.
- When the task is finished, or cannot be finished, return "done" with an honest summary and success flag.
- Respond with the JSON object only, no commentary.`

// snapshotTokenBudget caps how much page content goes into each prompt.
const snapshotTokenBudget = 8000

// DefaultAgent runs tasks as a snapshot/decide/act loop against a single
// browser session.
type DefaultAgent struct {
	provider    llm.Provider
	session     BrowserSession
	hooks       Hooks
	state       *State
	tokenizer   *tokenizer.Tokenizer
	maxSteps    int
	maxFailures int
}

// AgentOption is a function that configures an agent.
type AgentOption func(*DefaultAgent)

// WithMaxSteps caps the number of loop iterations per task.
func WithMaxSteps(n int) AgentOption {
	return func(a *DefaultAgent) {
		a.maxSteps = n
	}
}

// WithMaxFailures sets the consecutive-failure threshold.
func WithMaxFailures(n int) AgentOption {
	return func(a *DefaultAgent) {
		a.maxFailures = n
	}
}

// WithHooks wires progress, intervention, and cancellation callbacks.
func WithHooks(h Hooks) AgentOption {
	return func(a *DefaultAgent) {
		a.hooks = h
	}
}

// NewDefaultAgent creates an agent over the given provider and session.
func NewDefaultAgent(provider llm.Provider, session BrowserSession, opts ...AgentOption) *DefaultAgent {
	tok, err := tokenizer.New()
	if err != nil {
		// Character-based estimation takes over when the BPE tables
		// are unavailable.
		tok = nil
	}

	a := &DefaultAgent{
		provider:    provider,
		session:     session,
		state:       NewState(),
		tokenizer:   tok,
		maxSteps:    50,
		maxFailures: 3,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State exposes the agent's stop and failure accounting.
func (a *DefaultAgent) State() *State {
	return a.state
}

// Run executes the task until the model declares it done, a limit trips, or
// the task is stopped or cancelled.
func (a *DefaultAgent) Run(ctx context.Context, prompt string) (*Result, error) {
	var history []string

	for step := 1; step <= a.maxSteps; step++ {
		if err := a.checkpoint(ctx); err != nil {
			return nil, err
		}

		snap, snapErr := a.session.Snapshot()
		pageSection := "Page snapshot unavailable."
		if snapErr != nil {
			agentLog.Warnf("snapshot failed at step %d: %v", step, snapErr)
		} else {
			pageSection = a.renderSnapshot(snap)
		}

		response, err := a.provider.Complete(ctx, []*llm.Message{
			llm.NewSystemMessage(systemPrompt),
			llm.NewUserMessage(a.renderTurn(prompt, history, pageSection)),
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("model call failed: %w", err)
		}

		d, err := parseDecision(response)
		if err != nil {
			agentLog.Warnf("unparseable decision at step %d: %v", step, err)
			if n := a.state.RecordFailure(); n >= a.maxFailures {
				return nil, ErrTooManyFailures
			}
			history = append(history, fmt.Sprintf("step %d: model returned an invalid action, retrying", step))
			continue
		}

		if d.Action == ActionDone {
			return &Result{Content: d.Content, Success: d.Success}, nil
		}

		if err := a.checkpoint(ctx); err != nil {
			return nil, err
		}

		// An unresolved intervention ends the task; there is no point
		// retrying something only a human could do.
		if d.Action == ActionIntervention {
			a.reportTool(d.Action, types.ToolInProgress, d.args())
			if err := a.requestIntervention(ctx, d.Reason); err != nil {
				a.reportTool(d.Action, types.ToolFailed, d.args())
				return nil, fmt.Errorf("intervention not completed: %w", err)
			}
			a.reportTool(d.Action, types.ToolCompleted, d.args())
			a.state.ResetFailures()
			history = append(history, fmt.Sprintf("step %d: human intervention completed (%s)", step, d.Reason))
			continue
		}

		outcome := a.execute(d)
		if outcome != nil {
			if n := a.state.RecordFailure(); n >= a.maxFailures {
				return nil, fmt.Errorf("%w: last error: %v", ErrTooManyFailures, outcome)
			}
			history = append(history, fmt.Sprintf("step %d: %s failed: %v", step, d.Action, outcome))
			continue
		}

		a.state.ResetFailures()
		history = append(history, fmt.Sprintf("step %d: %s ok", step, d.Action))
	}

	return nil, fmt.Errorf("task did not finish within %d steps", a.maxSteps)
}

// execute performs one decided action, reporting progress either side.
func (a *DefaultAgent) execute(d *decision) error {
	a.reportTool(d.Action, types.ToolInProgress, d.args())

	var err error
	switch d.Action {
	case ActionNavigate:
		err = a.session.Navigate(d.URL)
	case ActionClick:
		err = a.session.Click(d.Selector)
	case ActionInputText:
		err = a.session.Fill(d.Selector, d.Text)
	case ActionSearchGoogle:
		err = a.session.Navigate("https://www.google.com/search?q=" + url.QueryEscape(d.Query))
	default:
		err = fmt.Errorf("unknown action %q", d.Action)
	}

	if err != nil {
		a.reportTool(d.Action, types.ToolFailed, d.args())
		return err
	}
	a.reportTool(d.Action, types.ToolCompleted, d.args())
	return nil
}

func (a *DefaultAgent) requestIntervention(ctx context.Context, reason string) error {
	if a.hooks.RequestIntervention == nil {
		return fmt.Errorf("intervention requested but no handler is wired")
	}
	return a.hooks.RequestIntervention(ctx, reason)
}

// checkpoint is called at step boundaries: context cancellation, forced
// stop, and the orchestrator's own cancellation check all end the task here.
func (a *DefaultAgent) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.state.Stopped() {
		return ErrStopped
	}
	if a.hooks.Checkpoint != nil {
		if err := a.hooks.Checkpoint(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *DefaultAgent) reportTool(name string, status types.ToolStatus, args map[string]string) {
	if a.hooks.OnTool != nil {
		a.hooks.OnTool(name, status, args)
	}
}

func (a *DefaultAgent) renderTurn(task string, history []string, pageSection string) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(task)
	b.WriteString("\n\n")

	if len(history) > 0 {
		b.WriteString("Previous steps:\n")
		for _, h := range history {
			b.WriteString("- ")
			b.WriteString(h)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(pageSection)
	return b.String()
}

func (a *DefaultAgent) renderSnapshot(snap *browser.PageSnapshot) string {
	var b strings.Builder
	b.WriteString("Current page:\n")
	if snap.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", snap.URL)
	}
	if snap.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", snap.Title)
	}
	b.WriteString("\n")
	b.WriteString(a.trimToBudget(snap.Content))
	return b.String()
}

// trimToBudget cuts page content down to the snapshot token budget so one
// enormous page cannot blow the prompt.
func (a *DefaultAgent) trimToBudget(content string) string {
	count := tokenizer.EstimateTokens(content)
	if a.tokenizer != nil {
		count = a.tokenizer.CountTokens(content)
	}
	if count <= snapshotTokenBudget {
		return content
	}

	// Proportional character cut; close enough for a prompt cap.
	keep := len(content) * snapshotTokenBudget / count
	if keep >= len(content) {
		return content
	}
	return content[:keep] + "\n[page content truncated]"
}
