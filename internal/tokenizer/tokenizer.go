// Package tokenizer counts tokens for texts and chat message lists.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/rcliao/chat-memory/internal/model"
)

// Counter measures text and message lists in model tokens.
//
// CountMessages must be additive: the count of a list equals
// CountMessages(nil) plus the sum of each message counted alone.
type Counter interface {
	Count(text string) int
	CountMessages(msgs []model.Message) int
}

// Per-message framing used by OpenAI chat models.
const (
	tokensPerMessage = 3
	replyPriming     = 3
)

// Tiktoken counts with an OpenAI BPE encoding.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken returns a counter for modelName, falling back to cl100k_base
// for models the encoder table does not know.
func NewTiktoken(modelName string) (*Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("load encoding: %w", err)
		}
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

func (t *Tiktoken) CountMessages(msgs []model.Message) int {
	total := replyPriming
	for _, m := range msgs {
		total += tokensPerMessage + t.Count(m.Role) + t.Count(m.Content)
	}
	return total
}

// Approx estimates ~4 characters per token. It needs no encoding tables.
type Approx struct{}

func (Approx) Count(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

func (a Approx) CountMessages(msgs []model.Message) int {
	total := replyPriming
	for _, m := range msgs {
		total += tokensPerMessage + a.Count(m.Role) + a.Count(m.Content)
	}
	return total
}

// New returns a tiktoken counter for modelName, or Approx when the encoding
// cannot be loaded (offline first run).
func New(modelName string) Counter {
	t, err := NewTiktoken(modelName)
	if err != nil {
		return Approx{}
	}
	return t
}
