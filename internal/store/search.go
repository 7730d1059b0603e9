package store

import (
	"sort"
	"strings"
	"unicode"

	"github.com/rcliao/chat-memory/internal/model"
)

// keywordTerms splits text into unique lowercase words.
func keywordTerms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := map[string]bool{}
	terms := words[:0]
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

// keywordDistance is 1 minus the fraction of terms found as substrings of
// text. A record matching no term returns ok=false.
func keywordDistance(terms []string, text string) (float64, bool) {
	lower := strings.ToLower(text)
	matched := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			matched++
		}
	}
	if matched == 0 {
		return 0, false
	}
	return 1 - float64(matched)/float64(len(terms)), true
}

// keywordSearch ranks records by keyword distance, newest first on ties.
func keywordSearch(records []model.Record, query string, k int) []Match {
	terms := keywordTerms(query)
	out := []Match{}
	if len(terms) == 0 || k <= 0 {
		return out
	}

	for _, r := range records {
		d, ok := keywordDistance(terms, r.Text)
		if !ok {
			continue
		}
		out = append(out, Match{Record: r, Distance: d})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}
