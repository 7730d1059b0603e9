// Package model defines the core memory data types.
package model

import (
	"slices"
	"time"
)

// Kind classifies a stored record.
type Kind string

const (
	KindConversationTurn Kind = "conversation_turn"
	KindEmotionNote      Kind = "emotion_note"
	KindCorePromptLine   Kind = "core_prompt_line"
	KindDiaryEntry       Kind = "diary_entry"
)

// ValidKinds are the allowed record kinds.
var ValidKinds = map[Kind]bool{
	KindConversationTurn: true,
	KindEmotionNote:      true,
	KindCorePromptLine:   true,
	KindDiaryEntry:       true,
}

// Record is a stored memory entry. Embedding is kept by the vector index,
// not in the metadata file.
type Record struct {
	ID                string     `json:"id"`
	Text              string     `json:"text"`
	Embedding         []float32  `json:"-"`
	Kind              Kind       `json:"kind"`
	Role              string     `json:"role,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	Tags              []string   `json:"tags,omitempty"`
	CoreUpdateAllowed bool       `json:"core_update_allowed,omitempty"`
	Source            string     `json:"source,omitempty"`
	OccurredAt        *time.Time `json:"occurred_at,omitempty"`
}

// HasTag reports whether tag is present on the record.
func (r Record) HasTag(tag string) bool {
	return slices.Contains(r.Tags, tag)
}

// UnionTags returns the tags of a followed by any tags of b not already
// present, preserving first-seen order.
func UnionTags(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, t := range list {
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Message is one entry of an outbound chat request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
