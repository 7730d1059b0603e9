package legacy

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/chat-memory/internal/model"
)

var historyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

type historyLine struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// ParseHistory reads the conversation history, one JSON message per line.
func ParseHistory(source string, data []byte) ([]Entry, []*ParseError) {
	var (
		entries []Entry
		errs    []*ParseError
	)
	for i, line := range strings.Split(normalizeNewlines(string(data)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pos := fmt.Sprint(i + 1)
		e, err := parseHistoryLine(line)
		if err != nil {
			errs = append(errs, &ParseError{Source: source, Position: pos, Err: err})
			continue
		}
		e.Source = source
		e.Position = pos
		entries = append(entries, e)
	}
	return entries, errs
}

func parseHistoryLine(line string) (Entry, error) {
	var msg historyLine
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return Entry{}, err
	}
	switch msg.Role {
	case model.RoleUser, model.RoleAssistant, model.RoleSystem:
	default:
		return Entry{}, fmt.Errorf("unknown role %q", msg.Role)
	}
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return Entry{}, errors.New("empty content")
	}

	e := Entry{Kind: model.KindConversationTurn, Role: msg.Role, Text: text}
	if msg.Timestamp != "" {
		at, err := parseHistoryTime(msg.Timestamp)
		if err != nil {
			return Entry{}, err
		}
		e.OccurredAt = &at
	}
	return e, nil
}

func parseHistoryTime(s string) (time.Time, error) {
	for _, layout := range historyTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad timestamp %q", s)
}
