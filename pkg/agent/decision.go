package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action names the model may return.
const (
	ActionNavigate     = "navigate"
	ActionClick        = "click"
	ActionInputText    = "input_text"
	ActionSearchGoogle = "search_google"
	ActionIntervention = "request_intervention"
	ActionDone         = "done"
)

// decision is the model's chosen next step, one JSON object per turn.
type decision struct {
	Action   string `json:"action"`
	URL      string `json:"url,omitempty"`
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
	Query    string `json:"query,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Content  string `json:"content,omitempty"`
	Success  bool   `json:"success,omitempty"`
}

// parseDecision extracts the decision object from a model response. Models
// routinely wrap JSON in markdown fences or lead with prose, so we take the
// outermost braces rather than requiring a clean document.
func parseDecision(raw string) (*decision, error) {
	text := strings.TrimSpace(raw)

	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}

	var d decision
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return nil, fmt.Errorf("model response is not a decision object: %w", err)
	}
	if d.Action == "" {
		return nil, fmt.Errorf("model response has no action field")
	}
	return &d, nil
}

// args renders the decision fields relevant to its action for progress
// reporting. Typed text is passed through; the telemetry layer decides what
// to surface.
func (d *decision) args() map[string]string {
	switch d.Action {
	case ActionNavigate:
		return map[string]string{"url": d.URL}
	case ActionClick:
		return map[string]string{"selector": d.Selector}
	case ActionInputText:
		return map[string]string{"selector": d.Selector, "text": d.Text}
	case ActionSearchGoogle:
		return map[string]string{"query": d.Query}
	case ActionIntervention:
		return map[string]string{"reason": d.Reason}
	}
	return nil
}
