package legacy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/chat-memory/internal/model"
)

const diary = `Дневник воспоминаний Астры

[24.12.2024 18:05] #trip #joy
We are going to the mountains.
It will be cold.

[25.12.2024 09:00]
Morning coffee together.

[99.99.2024 10:00] #broken
This header is wrong.`

func TestParseDiary(t *testing.T) {
	entries, errs := ParseDiary("astra_memories.txt", []byte(diary))
	require.Len(t, entries, 2)
	require.Len(t, errs, 1)

	first := entries[0]
	assert.Equal(t, model.KindDiaryEntry, first.Kind)
	assert.Equal(t, "We are going to the mountains.\nIt will be cold.", first.Text)
	assert.Equal(t, []string{"memories", "trip", "joy"}, first.Tags)
	require.NotNil(t, first.OccurredAt)
	assert.Equal(t, "24.12.2024 18:05", first.OccurredAt.Format(DiaryTimeLayout))
	assert.Equal(t, "astra_memories.txt#1", first.Ref())

	assert.Equal(t, "Morning coffee together.", entries[1].Text)
	assert.Equal(t, []string{"memories"}, entries[1].Tags)

	assert.Equal(t, "3", errs[0].Position)
	assert.Contains(t, errs[0].Error(), "bad timestamp")
}

func TestParseDiaryWithoutHeaders(t *testing.T) {
	entries, errs := ParseDiary("notes.txt", []byte("just some text\n\nmore text\n"))
	assert.Empty(t, errs)
	require.Len(t, entries, 1)
	assert.Equal(t, "just some text\n\nmore text", entries[0].Text)
	assert.Equal(t, []string{"notes"}, entries[0].Tags)
	assert.Nil(t, entries[0].OccurredAt)
}

func TestParseDiaryLeadingSeparator(t *testing.T) {
	// entries are appended as "\n\n[ts]..." so a file may start with blank lines
	data := "\n\n[01.02.2025 10:00] #a\nfirst\n\n[01.02.2025 11:00]\nsecond"
	entries, errs := ParseDiary("astra_house.txt", []byte(data))
	assert.Empty(t, errs)
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"house", "a"}, entries[0].Tags)
}

func TestParseDiaryEmptyEntry(t *testing.T) {
	entries, errs := ParseDiary("astra_dreams.txt", []byte("[01.02.2025 10:00] #x\n   \n\n[01.02.2025 11:00]\nok"))
	require.Len(t, entries, 1)
	require.Len(t, errs, 1)
	assert.Equal(t, "1", errs[0].Position)
}

func TestParseEmotionLog(t *testing.T) {
	data := `[
	  {"trigger": "excited about trip", "emotion": ["joy"], "tone": "warm", "subtone": "light", "flavor": ["spark", "joy"]},
	  {"trigger": "  "},
	  {"trigger": "miss you", "emotion": "longing"},
	  {"trigger": 42}
	]`
	entries, errs := ParseEmotionLog(EmotionMemoryFile, []byte(data))
	require.Len(t, entries, 2)
	require.Len(t, errs, 2)

	assert.Equal(t, model.KindEmotionNote, entries[0].Kind)
	assert.Equal(t, "excited about trip", entries[0].Text)
	assert.Equal(t, []string{"joy", "warm", "light", "spark"}, entries[0].Tags)
	assert.Equal(t, []string{"longing"}, entries[1].Tags)
	assert.Equal(t, "2", errs[0].Position)
	assert.Equal(t, "4", errs[1].Position)
}

func TestParseEmotionLogInvalid(t *testing.T) {
	entries, errs := ParseEmotionLog(EmotionMemoryFile, []byte("{oops"))
	assert.Empty(t, entries)
	require.Len(t, errs, 1)
	assert.Empty(t, errs[0].Position)
}

func TestParseHistory(t *testing.T) {
	data := strings.Join([]string{
		`{"role": "user", "content": "привет", "timestamp": "2024-05-01T12:30:45.123456"}`,
		``,
		`{"role": "assistant", "content": "hi!"}`,
		`not json`,
		`{"role": "robot", "content": "beep"}`,
		`{"role": "user", "content": "x", "timestamp": "yesterday"}`,
	}, "\n")
	entries, errs := ParseHistory(HistoryFile, []byte(data))
	require.Len(t, entries, 2)
	require.Len(t, errs, 3)

	assert.Equal(t, model.RoleUser, entries[0].Role)
	assert.Equal(t, model.KindConversationTurn, entries[0].Kind)
	require.NotNil(t, entries[0].OccurredAt)
	assert.Equal(t, 2024, entries[0].OccurredAt.Year())
	assert.Nil(t, entries[1].OccurredAt)
	assert.Equal(t, "3", entries[1].Position)
}

func TestParseCorePrompt(t *testing.T) {
	entries := ParseCorePrompt(CorePromptFile, []byte("You are Astra.\n\n  Be warm.  \r\n"))
	require.Len(t, entries, 2)
	assert.Equal(t, "You are Astra.", entries[0].Text)
	assert.Equal(t, "Be warm.", entries[1].Text)
	assert.Equal(t, model.KindCorePromptLine, entries[1].Kind)
}

func TestSplit(t *testing.T) {
	assert.Nil(t, Split("  ", 10))
	assert.Equal(t, []string{"short"}, Split("short", 10))

	var lines []string
	for range 20 {
		lines = append(lines, "This is a line of text that is about fifty runes.")
	}
	parts := Split(strings.Join(lines, "\n"), 200)
	require.Greater(t, len(parts), 1)
	for _, p := range parts {
		assert.LessOrEqual(t, utf8.RuneCountInString(p), 200)
	}
	assert.Equal(t, strings.Join(lines, "\n"), strings.Join(parts, "\n"))

	long := strings.Repeat("я", 25)
	parts = Split(long, 10)
	assert.Equal(t, []string{strings.Repeat("я", 10), strings.Repeat("я", 10), strings.Repeat("я", 5)}, parts)
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write(CorePromptFile, "You are Astra.\nBe warm.")
	write("astra_memories.txt", diary)
	write("astra_house.txt", "[01.01.2025 10:00] #home\n"+strings.Repeat("line of the house\n", 10))
	write(EmotionMemoryFile, `[{"trigger": "excited about trip", "emotion": "joy"}]`)
	write(HistoryFile, `{"role": "user", "content": "hello"}`)

	res, err := Scan(dir, Options{MaxRunes: 100})
	require.NoError(t, err)
	assert.Len(t, res.Errors, 1)

	var kinds []model.Kind
	for _, e := range res.Entries {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []model.Kind{
		model.KindCorePromptLine, model.KindCorePromptLine,
		model.KindDiaryEntry, model.KindDiaryEntry, // astra_house.txt, split in two
		model.KindDiaryEntry, model.KindDiaryEntry, // astra_memories.txt
		model.KindEmotionNote,
		model.KindConversationTurn,
	}, kinds)
	assert.Equal(t, "astra_house.txt#1.1", res.Entries[2].Ref())
	assert.Equal(t, "astra_house.txt#1.2", res.Entries[3].Ref())
	assert.Equal(t, res.Entries[2].OccurredAt, res.Entries[3].OccurredAt)
}

func TestScanMissingDir(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "nope"), Options{})
	assert.Error(t, err)
}
