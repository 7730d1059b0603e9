// Package config loads chat-memory settings from defaults, an optional YAML
// file and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FileName is looked up in the data directory when no config path is given.
const FileName = "config.yaml"

// Config is the full runtime configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Context   ContextConfig   `yaml:"context"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Index     IndexConfig     `yaml:"index"`
	Migrate   MigrateConfig   `yaml:"migrate"`
}

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // hash, openai, ollama or none
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Dims      int    `yaml:"dims"`
	CacheSize int    `yaml:"cache_size"`
}

type ChatConfig struct {
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	MaxRetries int    `yaml:"max_retries"`
}

type ContextConfig struct {
	Budget      int `yaml:"budget"`
	Reserve     int `yaml:"reserve"`
	TopK        int `yaml:"top_k"`
	RecentTurns int `yaml:"recent_turns"`
}

type DedupConfig struct {
	Threshold      float64 `yaml:"threshold"`
	ShortTextRunes int     `yaml:"short_text_runes"`
}

type IndexConfig struct {
	Compress      bool    `yaml:"compress"`
	MinSimilarity float64 `yaml:"min_similarity"`
}

type MigrateConfig struct {
	MaxRunes         int  `yaml:"max_runes"`
	BatchSize        int  `yaml:"batch_size"`
	AllowCoreUpdates bool `yaml:"allow_core_updates"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir: filepath.Join(home, ".chat-memory"),
		Embedding: EmbeddingConfig{
			Provider:  "hash",
			Dims:      384,
			CacheSize: 1024,
		},
		Chat: ChatConfig{
			Model:      "gpt-4o",
			MaxRetries: 3,
		},
		Context: ContextConfig{
			Budget:      9500,
			Reserve:     2000,
			TopK:        5,
			RecentTurns: 20,
		},
		Dedup: DedupConfig{
			Threshold:      0.92,
			ShortTextRunes: 64,
		},
		Migrate: MigrateConfig{
			MaxRunes:  4000,
			BatchSize: 100,
		},
	}
}

// Load builds the configuration. path may be empty, in which case
// $CHAT_MEMORY_CONFIG and then <data dir>/config.yaml are tried; a missing
// default file is not an error. Environment variables override the file and
// a non-empty dataDir (the command-line flag) overrides both.
func Load(path, dataDir string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if env := os.Getenv("CHAT_MEMORY_CONFIG"); env != "" {
			path, explicit = env, true
		}
	}
	if !explicit {
		dir := cfg.DataDir
		if env := os.Getenv("CHAT_MEMORY_DIR"); env != "" {
			dir = env
		}
		if dataDir != "" {
			dir = dataDir
		}
		path = filepath.Join(dir, FileName)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("CHAT_MEMORY_DIR", &c.DataDir)
	str("CHAT_MEMORY_EMBED_PROVIDER", &c.Embedding.Provider)
	str("CHAT_MEMORY_EMBED_MODEL", &c.Embedding.Model)
	str("CHAT_MEMORY_EMBED_URL", &c.Embedding.BaseURL)
	str("CHAT_MEMORY_CHAT_MODEL", &c.Chat.Model)
	str("CHAT_MEMORY_CHAT_URL", &c.Chat.BaseURL)
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = key
		}
		if c.Chat.APIKey == "" {
			c.Chat.APIKey = key
		}
	}
	for key, dst := range map[string]*int{
		"CHAT_MEMORY_EMBED_DIMS":    &c.Embedding.Dims,
		"CHAT_MEMORY_TOKEN_BUDGET":  &c.Context.Budget,
		"CHAT_MEMORY_TOKEN_RESERVE": &c.Context.Reserve,
		"CHAT_MEMORY_TOP_K":         &c.Context.TopK,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	if v := os.Getenv("CHAT_MEMORY_DEDUP_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CHAT_MEMORY_DEDUP_THRESHOLD: %w", err)
		}
		c.Dedup.Threshold = f
	}
	return nil
}

// Validate checks values that would make the system misbehave.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Context.Budget <= 0 || c.Context.Reserve <= 0 {
		return fmt.Errorf("context budget and reserve must be positive")
	}
	if c.Context.Reserve >= c.Context.Budget {
		return fmt.Errorf("context reserve %d must be below budget %d", c.Context.Reserve, c.Context.Budget)
	}
	if c.Context.TopK < 0 || c.Context.RecentTurns < 0 {
		return fmt.Errorf("context top_k and recent_turns must not be negative")
	}
	if c.Dedup.Threshold <= 0 || c.Dedup.Threshold > 1 {
		return fmt.Errorf("dedup threshold %v must be in (0, 1]", c.Dedup.Threshold)
	}
	if c.Index.MinSimilarity < 0 || c.Index.MinSimilarity >= 1 {
		return fmt.Errorf("index min_similarity %v must be in [0, 1)", c.Index.MinSimilarity)
	}
	return nil
}
