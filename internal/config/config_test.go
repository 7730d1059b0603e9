package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CHAT_MEMORY_CONFIG", "CHAT_MEMORY_DIR", "CHAT_MEMORY_EMBED_PROVIDER",
		"CHAT_MEMORY_EMBED_MODEL", "CHAT_MEMORY_EMBED_URL", "CHAT_MEMORY_EMBED_DIMS",
		"CHAT_MEMORY_CHAT_MODEL", "CHAT_MEMORY_CHAT_URL", "OPENAI_API_KEY",
		"CHAT_MEMORY_TOKEN_BUDGET", "CHAT_MEMORY_TOKEN_RESERVE", "CHAT_MEMORY_TOP_K",
		"CHAT_MEMORY_DEDUP_THRESHOLD",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAT_MEMORY_DIR", t.TempDir())

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, 9500, cfg.Context.Budget)
	assert.Equal(t, 2000, cfg.Context.Reserve)
	assert.Equal(t, 5, cfg.Context.TopK)
	assert.Equal(t, 20, cfg.Context.RecentTurns)
	assert.Equal(t, 0.92, cfg.Dedup.Threshold)
	assert.Equal(t, 64, cfg.Dedup.ShortTextRunes)
	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.Equal(t, 384, cfg.Embedding.Dims)
	require.NoError(t, cfg.Validate())
}

func TestFileThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`
embedding:
  provider: openai
  model: text-embedding-3-small
context:
  budget: 8000
  top_k: 3
dedup:
  threshold: 0.95
index:
  compress: true
`), 0o644))
	t.Setenv("CHAT_MEMORY_DIR", dir)
	t.Setenv("CHAT_MEMORY_TOKEN_BUDGET", "7000")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 7000, cfg.Context.Budget)
	assert.Equal(t, 2000, cfg.Context.Reserve)
	assert.Equal(t, 3, cfg.Context.TopK)
	assert.Equal(t, 0.95, cfg.Dedup.Threshold)
	assert.True(t, cfg.Index.Compress)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, "sk-test", cfg.Chat.APIKey)
}

func TestExplicitPath(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /tmp/elsewhere\n"), 0o644))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/elsewhere", cfg.DataDir)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)
}

func TestZeroMaxRetriesKept(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chat:\n  max_retries: 0\n"), 0o644))

	cfg, err := Load(path, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Chat.MaxRetries)
	require.NoError(t, cfg.Validate())
}

func TestBadInput(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAT_MEMORY_DIR", t.TempDir())
	t.Setenv("CHAT_MEMORY_TOKEN_BUDGET", "lots")
	_, err := Load("", "")
	assert.ErrorContains(t, err, "CHAT_MEMORY_TOKEN_BUDGET")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("context: [1, 2"), 0o644))
	t.Setenv("CHAT_MEMORY_TOKEN_BUDGET", "")
	_, err = Load(path, "")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Context.Reserve = cfg.Context.Budget
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Dedup.Threshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Index.MinSimilarity = 0.5
	assert.NoError(t, cfg.Validate())
}

func TestDataDirFlagWins(t *testing.T) {
	clearEnv(t)
	flagDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(flagDir, FileName), []byte("context:\n  top_k: 9\n"), 0o644))
	t.Setenv("CHAT_MEMORY_DIR", t.TempDir())

	cfg, err := Load("", flagDir)
	require.NoError(t, err)
	assert.Equal(t, flagDir, cfg.DataDir)
	assert.Equal(t, 9, cfg.Context.TopK)
}
