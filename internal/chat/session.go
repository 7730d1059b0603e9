package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rcliao/chat-memory/internal/assembler"
	"github.com/rcliao/chat-memory/internal/model"
	"github.com/rcliao/chat-memory/internal/store"
)

// Reply is the outcome of one exchange.
type Reply struct {
	Text          string            `json:"text"`
	Context       *assembler.Result `json:"context,omitempty"`
	UserTurn      *model.Record     `json:"user_turn"`
	AssistantTurn *model.Record     `json:"assistant_turn"`
}

// Session answers user messages using a memory store.
type Session struct {
	store     store.Store
	assembler *assembler.Assembler
	completer Completer
	logger    *slog.Logger
}

// NewSession wires a session. A nil logger uses slog.Default().
func NewSession(s store.Store, a *assembler.Assembler, c Completer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{store: s, assembler: a, completer: c, logger: logger}
}

// Respond assembles context for message, asks the completer for a reply
// and stores both sides of the exchange as conversation turns. Nothing is
// stored when assembly or completion fails.
func (s *Session) Respond(ctx context.Context, message string) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("message is required")
	}

	res, err := s.assembler.Assemble(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("assemble context: %w", err)
	}

	text, err := s.completer.Complete(ctx, res.Messages, s.assembler.Options().Reserve)
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}

	reply := &Reply{Text: text, Context: res}
	err = s.store.Batch(ctx, func(tx store.Tx) error {
		user, err := tx.AddMemory(ctx, store.AddParams{
			Text: message,
			Kind: model.KindConversationTurn,
			Role: model.RoleUser,
		})
		if err != nil {
			return err
		}
		reply.UserTurn = user
		if text == "" {
			return nil
		}
		reply.AssistantTurn, err = tx.AddMemory(ctx, store.AddParams{
			Text: text,
			Kind: model.KindConversationTurn,
			Role: model.RoleAssistant,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("store turns: %w", err)
	}

	s.logger.Info("exchange stored",
		"user_turn", reply.UserTurn.ID, "context_tokens", res.Tokens,
		"memories", len(res.Memories), "turns", len(res.Turns))
	return reply, nil
}
