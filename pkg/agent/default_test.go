package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comptergeeks/bill-browser-use2/pkg/browser"
	"github.com/comptergeeks/bill-browser-use2/pkg/llm"
	"github.com/comptergeeks/bill-browser-use2/pkg/types"
)

// scriptedProvider returns canned responses in order.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (p *scriptedProvider) Complete(ctx context.Context, _ []*llm.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls >= len(p.responses) {
		return "", fmt.Errorf("no scripted response for call %d", p.calls)
	}
	r := p.responses[p.calls]
	p.calls++
	return r, nil
}

func (p *scriptedProvider) GetModel() string { return "scripted" }

// fakeSession records actions and can fail on demand.
type fakeSession struct {
	mu       sync.Mutex
	actions  []string
	failNext error
}

func (s *fakeSession) record(a string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	s.actions = append(s.actions, a)
	return nil
}

func (s *fakeSession) Navigate(url string) error        { return s.record("navigate:" + url) }
func (s *fakeSession) Click(sel string) error           { return s.record("click:" + sel) }
func (s *fakeSession) Fill(sel, val string) error       { return s.record("fill:" + sel + "=" + val) }
func (s *fakeSession) Snapshot() (*browser.PageSnapshot, error) {
	return &browser.PageSnapshot{URL: "https://example.com", Title: "Example", Content: "<p>hi</p>"}, nil
}

func TestRunCompletesTask(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"action": "navigate", "url": "https://example.com/login"}`,
		`{"action": "done", "content": "Logged in", "success": true}`,
	}}
	session := &fakeSession{}

	var events []string
	hooks := Hooks{
		OnTool: func(name string, status types.ToolStatus, _ map[string]string) {
			events = append(events, name+":"+string(status))
		},
	}

	a := NewDefaultAgent(provider, session, WithHooks(hooks), WithMaxSteps(5))
	result, err := a.Run(context.Background(), "log in")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "Logged in", result.Content)
	assert.Equal(t, []string{"navigate:https://example.com/login"}, session.actions)
	assert.Equal(t, []string{"navigate:in_progress", "navigate:completed"}, events)
}

func TestRunParsesFencedDecision(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		"Here is my plan.\n```json\n{\"action\": \"done\", \"content\": \"ok\", \"success\": true}\n```",
	}}

	a := NewDefaultAgent(provider, &fakeSession{}, WithMaxSteps(3))
	result, err := a.Run(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestRunStopsOnForceStop(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"action": "click", "selector": "#a"}`,
		`{"action": "click", "selector": "#b"}`,
	}}
	a := NewDefaultAgent(provider, &fakeSession{}, WithMaxSteps(10))
	a.State().ForceStop()

	_, err := a.Run(context.Background(), "task")
	assert.ErrorIs(t, err, ErrStopped)
}

func TestRunFailureThreshold(t *testing.T) {
	// Model keeps returning garbage; agent gives up after maxFailures.
	provider := &scriptedProvider{responses: []string{
		"not json at all", "still not json", "nope",
	}}
	a := NewDefaultAgent(provider, &fakeSession{}, WithMaxSteps(10), WithMaxFailures(3))

	_, err := a.Run(context.Background(), "task")
	assert.ErrorIs(t, err, ErrTooManyFailures)
}

func TestRunRecoversFromSingleFailure(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"action": "click", "selector": "#gone"}`,
		`{"action": "click", "selector": "#there"}`,
		`{"action": "done", "content": "clicked", "success": true}`,
	}}
	session := &fakeSession{failNext: errors.New("element not found")}

	a := NewDefaultAgent(provider, session, WithMaxSteps(10), WithMaxFailures(3))
	result, err := a.Run(context.Background(), "task")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"click:#there"}, session.actions)
	assert.Zero(t, a.State().Failures())
}

func TestRunIntervention(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"action": "request_intervention", "reason": "login required"}`,
		`{"action": "done", "content": "finished after human login", "success": true}`,
	}}

	var gotReason string
	hooks := Hooks{
		RequestIntervention: func(_ context.Context, reason string) error {
			gotReason = reason
			return nil
		},
	}

	a := NewDefaultAgent(provider, &fakeSession{}, WithHooks(hooks), WithMaxSteps(5))
	result, err := a.Run(context.Background(), "task")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "login required", gotReason)
}

func TestRunInterventionFailureEndsTask(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"action": "request_intervention", "reason": "captcha"}`,
	}}
	timedOut := errors.New("intervention timed out")
	hooks := Hooks{
		RequestIntervention: func(_ context.Context, _ string) error {
			return timedOut
		},
	}

	a := NewDefaultAgent(provider, &fakeSession{}, WithHooks(hooks), WithMaxSteps(10), WithMaxFailures(3))
	_, err := a.Run(context.Background(), "task")
	assert.ErrorIs(t, err, timedOut)
}

func TestRunCheckpointCancels(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"action": "click", "selector": "#a"}`,
	}}
	cancelled := errors.New("task cancelled")
	hooks := Hooks{
		Checkpoint: func(_ context.Context) error { return cancelled },
	}

	a := NewDefaultAgent(provider, &fakeSession{}, WithHooks(hooks), WithMaxSteps(5))
	_, err := a.Run(context.Background(), "task")
	assert.ErrorIs(t, err, cancelled)
}

func TestRunStepLimit(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"action": "click", "selector": "#x"}`,
		`{"action": "click", "selector": "#x"}`,
	}}
	a := NewDefaultAgent(provider, &fakeSession{}, WithMaxSteps(2))

	_, err := a.Run(context.Background(), "task")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not finish within 2 steps")
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		action  string
		wantErr bool
	}{
		{"plain", `{"action":"click","selector":"#a"}`, ActionClick, false},
		{"fenced", "```json\n{\"action\":\"navigate\",\"url\":\"x\"}\n```", ActionNavigate, false},
		{"prose prefix", `Sure! {"action":"done","content":"x","success":false}`, ActionDone, false},
		{"no action", `{"selector":"#a"}`, "", true},
		{"garbage", `click the button`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := parseDecision(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.action, d.Action)
		})
	}
}
