package legacy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/chat-memory/internal/model"
)

// DiaryTimeLayout is the entry header timestamp, e.g. [24.12.2024 18:05].
const DiaryTimeLayout = "02.01.2006 15:04"

// DiaryName derives the diary tag from a file name:
// astra_memories.txt becomes "memories".
func DiaryName(file string) string {
	name := strings.TrimSuffix(file, ".txt")
	return strings.TrimPrefix(name, "astra_")
}

// ParseDiary splits a diary file into entries. Entries are separated by a
// blank line and start with a "[timestamp] #tag ..." header. Text before the
// first header is a title and is skipped. A file without any header is read
// as a single entry.
func ParseDiary(source string, data []byte) ([]Entry, []*ParseError) {
	content := strings.TrimSpace(normalizeNewlines(string(data)))
	if content == "" {
		return nil, nil
	}
	diary := DiaryName(source)

	fragments := strings.Split(content, "\n\n[")
	for i := 1; i < len(fragments); i++ {
		fragments[i] = "[" + fragments[i]
	}
	if !strings.HasPrefix(fragments[0], "[") {
		if len(fragments) == 1 {
			return []Entry{{
				Source:   source,
				Position: "1",
				Kind:     model.KindDiaryEntry,
				Text:     content,
				Tags:     []string{diary},
			}}, nil
		}
		fragments = fragments[1:]
	}

	var (
		entries []Entry
		errs    []*ParseError
	)
	for i, frag := range fragments {
		pos := fmt.Sprint(i + 1)
		e, err := parseDiaryEntry(frag)
		if err != nil {
			errs = append(errs, &ParseError{Source: source, Position: pos, Err: err})
			continue
		}
		e.Source = source
		e.Position = pos
		e.Tags = model.UnionTags([]string{diary}, e.Tags)
		entries = append(entries, e)
	}
	return entries, errs
}

func parseDiaryEntry(frag string) (Entry, error) {
	header, body, _ := strings.Cut(frag, "\n")
	end := strings.Index(header, "]")
	if !strings.HasPrefix(header, "[") || end < 0 {
		return Entry{}, errors.New("missing [timestamp] header")
	}

	stamp := strings.TrimSpace(header[1:end])
	at, err := time.ParseInLocation(DiaryTimeLayout, stamp, time.Local)
	if err != nil {
		return Entry{}, fmt.Errorf("bad timestamp %q", stamp)
	}

	var tags []string
	for _, f := range strings.Fields(header[end+1:]) {
		if t := strings.TrimPrefix(f, "#"); t != "" {
			tags = append(tags, t)
		}
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return Entry{}, errors.New("empty entry")
	}
	return Entry{
		Kind:       model.KindDiaryEntry,
		Text:       body,
		Tags:       tags,
		OccurredAt: &at,
	}, nil
}
