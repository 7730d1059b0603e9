package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/chat-memory/internal/metadata"
	"github.com/rcliao/chat-memory/internal/model"
)

// SourceLive marks records written by the running system.
const SourceLive = "live"

func validateAdd(p AddParams) error {
	if strings.TrimSpace(p.Text) == "" {
		return fmt.Errorf("text is required")
	}
	if !model.ValidKinds[p.Kind] {
		return fmt.Errorf("invalid kind %q", p.Kind)
	}
	return nil
}

func newRecord(id string, at time.Time, p AddParams) model.Record {
	source := p.Source
	if source == "" {
		source = SourceLive
	}
	return model.Record{
		ID:                id,
		Text:              p.Text,
		Kind:              p.Kind,
		Role:              p.Role,
		CreatedAt:         at,
		Tags:              model.UnionTags(p.Tags, nil),
		CoreUpdateAllowed: p.CoreUpdateAllowed,
		Source:            source,
		OccurredAt:        p.OccurredAt,
	}
}

// mergeUpdate applies the mutable fields of r onto old.
func mergeUpdate(old, r model.Record) (model.Record, error) {
	if strings.TrimSpace(r.Text) == "" {
		return model.Record{}, fmt.Errorf("text is required")
	}
	old.Text = r.Text
	old.Tags = model.UnionTags(r.Tags, nil)
	old.Role = r.Role
	old.Source = r.Source
	old.OccurredAt = r.OccurredAt
	old.CoreUpdateAllowed = r.CoreUpdateAllowed
	return old, nil
}

func listRecords(meta *metadata.Store, p ListParams) []model.Record {
	kinds := kindSet(p.Kinds)
	out := []model.Record{}
	for r := range meta.All() {
		if kinds != nil && !kinds[r.Kind] {
			continue
		}
		if !hasAllTags(r, p.Tags) {
			continue
		}
		out = append(out, r)
	}
	if p.Limit > 0 && len(out) > p.Limit {
		if p.Newest {
			out = out[len(out)-p.Limit:]
		} else {
			out = out[:p.Limit]
		}
	}
	return out
}

// kindSet returns nil for an empty list, meaning no restriction.
func kindSet(kinds []model.Kind) map[model.Kind]bool {
	if len(kinds) == 0 {
		return nil
	}
	set := make(map[model.Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}

func queryKinds(kinds []model.Kind) map[model.Kind]bool {
	if len(kinds) == 0 {
		return kindSet(DefaultQueryKinds)
	}
	return kindSet(kinds)
}

func hasAllTags(r model.Record, tags []string) bool {
	for _, t := range tags {
		if !r.HasTag(t) {
			return false
		}
	}
	return true
}

// lastCreated returns the newest creation time in meta.
func lastCreated(meta *metadata.Store) time.Time {
	var last time.Time
	for r := range meta.All() {
		if r.CreatedAt.After(last) {
			last = r.CreatedAt
		}
	}
	return last
}
