// Package assembler builds the message list for a model call from the core
// prompt, retrieved memories and recent turns without exceeding a token
// budget.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rcliao/chat-memory/internal/model"
	"github.com/rcliao/chat-memory/internal/store"
	"github.com/rcliao/chat-memory/internal/tokenizer"
)

// Defaults for Options.
const (
	DefaultBudget      = 9500
	DefaultReserve     = 2000
	DefaultTopK        = 5
	DefaultRecentTurns = 20
)

// ErrBudgetExceeded is wrapped by BudgetExceededError.
var ErrBudgetExceeded = errors.New("context budget exceeded")

// BudgetExceededError reports content that must be sent but does not fit.
type BudgetExceededError struct {
	Need   int
	Budget int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("context needs %d tokens, packing budget is %d", e.Need, e.Budget)
}

func (e *BudgetExceededError) Unwrap() error { return ErrBudgetExceeded }

// Options configures an Assembler.
type Options struct {
	Budget      int // total tokens per request (B)
	Reserve     int // tokens kept free for the response (R)
	TopK        int
	RecentTurns int
	Logger      *slog.Logger
}

// Usable returns the packing budget B - R.
func (o Options) Usable() int { return o.Budget - o.Reserve }

// Assembler gathers context from a store and packs it.
type Assembler struct {
	store   store.Reader
	counter tokenizer.Counter
	opts    Options
}

// New creates an assembler, filling unset options with defaults.
func New(r store.Reader, c tokenizer.Counter, opts Options) (*Assembler, error) {
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	if opts.Reserve <= 0 {
		opts.Reserve = DefaultReserve
	}
	if opts.TopK < 0 {
		opts.TopK = 0
	} else if opts.TopK == 0 {
		opts.TopK = DefaultTopK
	}
	if opts.RecentTurns <= 0 {
		opts.RecentTurns = DefaultRecentTurns
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Usable() <= 0 {
		return nil, fmt.Errorf("reserve %d leaves no room in budget %d", opts.Reserve, opts.Budget)
	}
	return &Assembler{store: r, counter: c, opts: opts}, nil
}

// Options returns the effective options.
func (a *Assembler) Options() Options { return a.opts }

// Assemble builds the context for a new user message. The message is the
// query for memory retrieval and is appended as the newest turn.
func (a *Assembler) Assemble(ctx context.Context, message string) (*Result, error) {
	core, err := store.CorePrompt(ctx, a.store)
	if err != nil {
		return nil, fmt.Errorf("load core prompt: %w", err)
	}

	var memories []store.Match
	if strings.TrimSpace(message) != "" && a.opts.TopK > 0 {
		memories, err = a.store.QuerySimilar(ctx, store.QueryParams{Text: message, K: a.opts.TopK})
		if err != nil {
			return nil, fmt.Errorf("query memories: %w", err)
		}
	}

	turns, err := a.store.List(ctx, store.ListParams{
		Kinds:  []model.Kind{model.KindConversationTurn},
		Limit:  a.opts.RecentTurns,
		Newest: true,
	})
	if err != nil {
		return nil, fmt.Errorf("load recent turns: %w", err)
	}

	in := Input{Core: core, Memories: memories, Turns: turns}
	if strings.TrimSpace(message) != "" {
		in.Current = &model.Message{Role: model.RoleUser, Content: message}
	}

	res, err := Pack(in, a.counter, a.opts.Usable())
	if err != nil {
		return nil, err
	}
	a.opts.Logger.Debug("context assembled",
		"tokens", res.Tokens, "budget", res.Budget,
		"memories", len(res.Memories), "turns", len(res.Turns),
		"dropped_memories", res.DroppedMemories, "dropped_turns", res.DroppedTurns)
	return res, nil
}
