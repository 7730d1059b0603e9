package legacy

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Split breaks text longer than maxRunes on line boundaries. A single line
// longer than maxRunes is cut at rune boundaries.
func Split(text string, maxRunes int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return []string{text}
	}

	var (
		out     []string
		current []string
		curLen  int
	)
	flush := func() {
		if t := strings.TrimSpace(strings.Join(current, "\n")); t != "" {
			out = append(out, t)
		}
		current = nil
		curLen = 0
	}

	for _, line := range strings.Split(text, "\n") {
		n := utf8.RuneCountInString(line)
		if n > maxRunes {
			flush()
			out = append(out, cutRunes(line, maxRunes)...)
			continue
		}
		if curLen+n > maxRunes && len(current) > 0 {
			flush()
		}
		current = append(current, line)
		curLen += n + 1 // +1 for newline
	}
	flush()
	return out
}

func cutRunes(s string, max int) []string {
	var out []string
	r := []rune(s)
	for len(r) > max {
		out = append(out, string(r[:max]))
		r = r[max:]
	}
	if t := strings.TrimSpace(string(r)); t != "" {
		out = append(out, t)
	}
	return out
}

func splitEntry(e Entry, maxRunes int) []Entry {
	parts := Split(e.Text, maxRunes)
	if len(parts) <= 1 {
		return []Entry{e}
	}
	out := make([]Entry, len(parts))
	for i, p := range parts {
		part := e
		part.Text = p
		part.Position = fmt.Sprintf("%s.%d", e.Position, i+1)
		out[i] = part
	}
	return out
}
