// Package cli implements the chat-memory CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/chat-memory/internal/assembler"
	"github.com/rcliao/chat-memory/internal/config"
	"github.com/rcliao/chat-memory/internal/embedding"
	"github.com/rcliao/chat-memory/internal/model"
	"github.com/rcliao/chat-memory/internal/store"
	"github.com/rcliao/chat-memory/internal/tokenizer"
)

var (
	dataDir    string
	configPath string
	verbose    bool

	cfg *config.Config
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "chat-memory",
	Short: "Long-lived memory for a chat companion",
	Long: "Stores conversation turns, diary entries and emotion notes as searchable records " +
		"and assembles token-bounded context for each model call.",
	PersistentPreRunE: setup,
	SilenceUsage:      true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Data directory (default: $CHAT_MEMORY_DIR or ~/.chat-memory)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $CHAT_MEMORY_CONFIG or <data-dir>/config.yaml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

func setup(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	c, err := config.Load(configPath, dataDir)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	cfg = c
	return nil
}

func newEmbedder() (embedding.Embedder, error) {
	return embedding.New(embedding.Options{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		Dims:      cfg.Embedding.Dims,
		CacheSize: cfg.Embedding.CacheSize,
	})
}

func openStore() (store.Store, error) {
	e, err := newEmbedder()
	if err != nil {
		return nil, err
	}
	return store.Open(store.Options{
		Dir:           cfg.DataDir,
		Embedder:      e,
		CompressIndex: cfg.Index.Compress,
		MinSimilarity: cfg.Index.MinSimilarity,
		Logger:        slog.Default(),
	})
}

func newAssembler(s store.Reader) (*assembler.Assembler, error) {
	return assembler.New(s, tokenizer.New(cfg.Chat.Model), assembler.Options{
		Budget:      cfg.Context.Budget,
		Reserve:     cfg.Context.Reserve,
		TopK:        cfg.Context.TopK,
		RecentTurns: cfg.Context.RecentTurns,
		Logger:      slog.Default(),
	})
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func parseKinds(names []string) ([]model.Kind, error) {
	var kinds []model.Kind
	for _, n := range names {
		k := model.Kind(strings.TrimSpace(n))
		if !model.ValidKinds[k] {
			return nil, fmt.Errorf("invalid kind %q", n)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
