package model

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter reports how many tokens a prompt costs.
type TokenCounter func(text string) int

// NewTokenCounter loads the cl100k encoding once. The count is an estimate
// for non-OpenAI models but is close enough for prompt-size logging.
func NewTokenCounter() (TokenCounter, error) {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}, nil
}
