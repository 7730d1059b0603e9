// Package legacy reads the flat-file memory directory written by the old
// chat client: diary text files, the emotion log, the core prompt file and
// the conversation history.
package legacy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rcliao/chat-memory/internal/model"
)

// Legacy file names.
const (
	CorePromptFile    = "astra_core_prompt.txt"
	EmotionMemoryFile = "emotion_memory.json"
	HistoryFile       = "conversation_history.jsonl"
)

// DefaultMaxRunes bounds the text of a single entry. Longer entries are
// split on line boundaries.
const DefaultMaxRunes = 4000

// Entry is one legacy memory ready to be stored.
type Entry struct {
	Source     string // file name
	Position   string // entry position within the file, e.g. "3" or "3.2"
	Kind       model.Kind
	Role       string
	Text       string
	Tags       []string
	OccurredAt *time.Time
}

// Ref identifies the entry as file#position.
func (e Entry) Ref() string { return e.Source + "#" + e.Position }

// ParseError reports an entry that could not be read.
type ParseError struct {
	Source   string
	Position string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Position == "" {
		return fmt.Sprintf("%s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("%s#%s: %v", e.Source, e.Position, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Options configures Scan.
type Options struct {
	MaxRunes int // zero means DefaultMaxRunes
}

// Result is the outcome of scanning a directory.
type Result struct {
	Entries []Entry
	Errors  []*ParseError
}

// Scan reads every legacy source in dir in a fixed order: core prompt,
// diaries by file name, emotion log, conversation history. Unreadable
// entries are collected in Result.Errors and scanning continues.
func Scan(dir string, opts Options) (*Result, error) {
	if opts.MaxRunes <= 0 {
		opts.MaxRunes = DefaultMaxRunes
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("legacy dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("legacy dir: %s is not a directory", dir)
	}

	res := &Result{}
	add := func(entries []Entry, errs []*ParseError) {
		for _, e := range entries {
			res.Entries = append(res.Entries, splitEntry(e, opts.MaxRunes)...)
		}
		res.Errors = append(res.Errors, errs...)
	}

	if data, ok, err := readOptional(filepath.Join(dir, CorePromptFile)); err != nil {
		res.Errors = append(res.Errors, &ParseError{Source: CorePromptFile, Err: err})
	} else if ok {
		add(ParseCorePrompt(CorePromptFile, data), nil)
	}

	diaries, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("list diaries: %w", err)
	}
	sort.Strings(diaries)
	for _, path := range diaries {
		name := filepath.Base(path)
		if name == CorePromptFile {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			res.Errors = append(res.Errors, &ParseError{Source: name, Err: err})
			continue
		}
		add(ParseDiary(name, data))
	}

	if data, ok, err := readOptional(filepath.Join(dir, EmotionMemoryFile)); err != nil {
		res.Errors = append(res.Errors, &ParseError{Source: EmotionMemoryFile, Err: err})
	} else if ok {
		add(ParseEmotionLog(EmotionMemoryFile, data))
	}

	if data, ok, err := readOptional(filepath.Join(dir, HistoryFile)); err != nil {
		res.Errors = append(res.Errors, &ParseError{Source: HistoryFile, Err: err})
	} else if ok {
		add(ParseHistory(HistoryFile, data))
	}

	return res, nil
}

func readOptional(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// ParseCorePrompt returns one core prompt line per non-empty line.
func ParseCorePrompt(source string, data []byte) []Entry {
	var out []Entry
	for i, line := range strings.Split(normalizeNewlines(string(data)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, Entry{
			Source:   source,
			Position: fmt.Sprint(i + 1),
			Kind:     model.KindCorePromptLine,
			Text:     line,
		})
	}
	return out
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
