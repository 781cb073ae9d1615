package main

import (
	"fmt"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens in text content. Counts are advisory metadata for
// consumers that budget LLM context windows.
type Tokenizer interface {
	CountTokens(text string) int
}

const defaultTokenizerModel = "gpt-4o"

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// newTokenizer returns a tiktoken-backed Tokenizer for the given model,
// falling back to the default model's encoding when the model is unknown.
func newTokenizer(model string) (Tokenizer, error) {
	if model == "" {
		model = defaultTokenizerModel
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.EncodingForModel(defaultTokenizerModel)
		if err != nil {
			return nil, fmt.Errorf("loading tokenizer encoding: %w", err)
		}
	}
	return &tiktokenCounter{enc: enc}, nil
}

func (c *tiktokenCounter) CountTokens(text string) int {
	if c.enc == nil {
		return 0
	}
	return len(c.enc.EncodeOrdinary(text))
}
