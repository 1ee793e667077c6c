package orchestrator

import (
	"context"
	"fmt"

	"github.com/comptergeeks/bill-browser-use2/pkg/agent"
	"github.com/comptergeeks/bill-browser-use2/pkg/browser"
	"github.com/comptergeeks/bill-browser-use2/pkg/config"
	"github.com/comptergeeks/bill-browser-use2/pkg/llm"
)

// agentTask runs a DefaultAgent over its own browser connection. Each task
// attaches to the user's browser independently so one task detaching never
// pulls the session out from under another.
type agentTask struct {
	prompt  string
	agent   *agent.DefaultAgent
	session *browser.Session
}

// NewAgentTaskFactory returns the production TaskFactory: connect to the
// browser over CDP, wrap it in an agent, run.
func NewAgentTaskFactory(cfg *config.Config, provider llm.Provider) TaskFactory {
	return func(prompt string, hooks agent.Hooks) (Task, error) {
		session, err := browser.Connect(cfg.CDPURL)
		if err != nil {
			return nil, fmt.Errorf("browser unavailable: %w", err)
		}

		a := agent.NewDefaultAgent(provider, session,
			agent.WithHooks(hooks),
			agent.WithMaxSteps(cfg.MaxSteps),
			agent.WithMaxFailures(cfg.MaxFailures),
		)
		return &agentTask{prompt: prompt, agent: a, session: session}, nil
	}
}

func (t *agentTask) Run(ctx context.Context) (*agent.Result, error) {
	defer t.session.Close()
	return t.agent.Run(ctx, t.prompt)
}

// ForceStop flags the agent loop and aborts in-flight page work, so a task
// stuck mid-navigation stops without waiting for the page to settle.
func (t *agentTask) ForceStop() {
	t.agent.State().ForceStop()
	// The page may already be gone; the stop flag still takes effect.
	_ = t.session.AbortCurrent()
}
