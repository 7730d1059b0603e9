package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/chat-memory/internal/model"
)

// CorePrompt returns the core prompt lines in stored order.
func CorePrompt(ctx context.Context, r Reader) ([]model.Record, error) {
	return r.List(ctx, ListParams{Kinds: []model.Kind{model.KindCorePromptLine}})
}

// CorePromptText joins the core prompt lines with newlines.
func CorePromptText(lines []model.Record) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.Text
	}
	return strings.Join(parts, "\n")
}

func appendCorePrompt(ctx context.Context, tx Tx, line string, autonomous bool) (*model.Record, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false, fmt.Errorf("core prompt line is empty")
	}

	core, err := CorePrompt(ctx, tx)
	if err != nil {
		return nil, false, err
	}
	for i := range core {
		if core[i].Text == line {
			return &core[i], false, nil
		}
	}

	allowed := len(core) > 0 && core[0].CoreUpdateAllowed
	if autonomous && !allowed {
		return nil, false, ErrCoreUpdateDenied
	}

	rec, err := tx.AddMemory(ctx, AddParams{
		Text:              line,
		Kind:              model.KindCorePromptLine,
		CoreUpdateAllowed: allowed,
	})
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func setCoreUpdateAllowed(ctx context.Context, tx Tx, allowed bool) error {
	core, err := CorePrompt(ctx, tx)
	if err != nil {
		return err
	}
	if len(core) == 0 {
		return fmt.Errorf("no core prompt: %w", ErrNotFound)
	}
	head := core[0]
	if head.CoreUpdateAllowed == allowed {
		return nil
	}
	head.CoreUpdateAllowed = allowed
	return tx.Update(ctx, head)
}
