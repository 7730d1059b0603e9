package store

import (
	"context"

	"github.com/rcliao/chat-memory/internal/model"
)

// ExportAll returns all records, optionally filtered by kind.
func ExportAll(ctx context.Context, r Reader, kinds []model.Kind) ([]model.Record, error) {
	return r.List(ctx, ListParams{Kinds: kinds})
}

// Import stores exported records as new memories in one batch, embedding
// them again. Records whose kind and text already exist are skipped.
func Import(ctx context.Context, s Store, records []model.Record) (int, error) {
	imported := 0
	err := s.Batch(ctx, func(tx Tx) error {
		existing, err := tx.List(ctx, ListParams{})
		if err != nil {
			return err
		}
		seen := make(map[string]bool, len(existing))
		for _, r := range existing {
			seen[importKey(r)] = true
		}

		for _, r := range records {
			key := importKey(r)
			if seen[key] {
				continue
			}
			_, err := tx.AddMemory(ctx, AddParams{
				Text:              r.Text,
				Kind:              r.Kind,
				Role:              r.Role,
				Tags:              r.Tags,
				Source:            r.Source,
				OccurredAt:        r.OccurredAt,
				CoreUpdateAllowed: r.CoreUpdateAllowed,
			})
			if err != nil {
				return err
			}
			seen[key] = true
			imported++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return imported, nil
}

func importKey(r model.Record) string {
	return string(r.Kind) + "\x00" + r.Text
}
