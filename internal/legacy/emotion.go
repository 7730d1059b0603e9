package legacy

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rcliao/chat-memory/internal/model"
)

// labels accepts either a single string or a list of strings.
type labels []string

func (l *labels) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*l = labels{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("expected string or list of strings")
	}
	*l = many
	return nil
}

type emotionItem struct {
	Trigger string `json:"trigger"`
	Emotion labels `json:"emotion"`
	Tone    labels `json:"tone"`
	Subtone labels `json:"subtone"`
	Flavor  labels `json:"flavor"`
}

// ParseEmotionLog reads the emotion log, a JSON array of
// {trigger, emotion, tone, subtone, flavor}. The trigger phrase becomes the
// note text and every label becomes a tag.
func ParseEmotionLog(source string, data []byte) ([]Entry, []*ParseError) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, []*ParseError{{Source: source, Err: fmt.Errorf("parse emotion log: %w", err)}}
	}

	var (
		entries []Entry
		errs    []*ParseError
	)
	for i, msg := range raw {
		pos := fmt.Sprint(i + 1)
		var item emotionItem
		if err := json.Unmarshal(msg, &item); err != nil {
			errs = append(errs, &ParseError{Source: source, Position: pos, Err: err})
			continue
		}
		text := strings.TrimSpace(item.Trigger)
		if text == "" {
			errs = append(errs, &ParseError{Source: source, Position: pos, Err: errors.New("empty trigger")})
			continue
		}

		var tags []string
		for _, l := range []labels{item.Emotion, item.Tone, item.Subtone, item.Flavor} {
			tags = model.UnionTags(tags, trimAll(l))
		}
		entries = append(entries, Entry{
			Source:   source,
			Position: pos,
			Kind:     model.KindEmotionNote,
			Text:     text,
			Tags:     tags,
		})
	}
	return entries, errs
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}
