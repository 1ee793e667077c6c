// Package tokenizer provides token counting for prompt budgeting.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// encodingName is the BPE encoding shared by the gpt-4 family.
const encodingName = "cl100k_base"

// Tokenizer counts tokens using the tiktoken BPE tables.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
}

// New creates a tokenizer. Initialization downloads or loads the BPE tables
// and can fail in offline environments; callers should fall back to
// EstimateTokens when it does.
func New() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", encodingName, err)
	}
	return &Tokenizer{encoding: enc}, nil
}

// CountTokens returns the number of tokens in text.
func (t *Tokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(t.encoding.Encode(text, nil, nil))
}

// EstimateTokens is a rough character-based count for when the BPE tables
// are unavailable. Roughly four characters per token for English text.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
