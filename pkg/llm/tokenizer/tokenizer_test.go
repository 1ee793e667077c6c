package tokenizer

import "testing"

func TestCountTokens(t *testing.T) {
	tok, err := New()
	if err != nil {
		t.Skipf("tokenizer initialization failed (expected offline): %v", err)
	}

	if got := tok.CountTokens(""); got != 0 {
		t.Errorf("empty string counted %d tokens", got)
	}

	got := tok.CountTokens("Navigate to the checkout page and fill in the shipping form.")
	if got == 0 {
		t.Error("non-empty string counted 0 tokens")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("EstimateTokens(\"\") = %d", got)
	}
	if got := EstimateTokens("abcd"); got != 1 {
		t.Errorf("EstimateTokens(4 chars) = %d, want 1", got)
	}
	if got := EstimateTokens("abcde"); got != 2 {
		t.Errorf("EstimateTokens(5 chars) = %d, want 2", got)
	}
}
