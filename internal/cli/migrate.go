package cli

import (
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rcliao/chat-memory/internal/migrate"
)

func init() {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Import the legacy data directory",
		Long: "Import diaries, the emotion log, the core prompt and conversation history from the " +
			"legacy data directory (default: --data-dir). Entries already migrated are skipped, " +
			"so the command can be re-run safely.",
		Run: runMigrate,
	}

	cmd.Flags().String("legacy-dir", "", "Directory with the legacy files (default: --data-dir)")
	cmd.Flags().Int("batch-size", 0, "Entries written per batch (default from config)")
	cmd.Flags().Bool("allow-core-updates", false, "Allow autonomous edits of migrated core prompt lines")

	RootCmd.AddCommand(cmd)
}

func runMigrate(cmd *cobra.Command, args []string) {
	legacyDir, _ := cmd.Flags().GetString("legacy-dir")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	allowCore, _ := cmd.Flags().GetBool("allow-core-updates")
	if legacyDir == "" {
		legacyDir = cfg.DataDir
	}
	if batchSize <= 0 {
		batchSize = cfg.Migrate.BatchSize
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	tool := &migrate.Tool{
		Store:            s,
		LedgerPath:       filepath.Join(cfg.DataDir, migrate.LedgerFile),
		MaxRunes:         cfg.Migrate.MaxRunes,
		BatchSize:        batchSize,
		AllowCoreUpdates: allowCore || cfg.Migrate.AllowCoreUpdates,
		Logger:           slog.Default(),
	}
	rep, err := tool.Run(cmd.Context(), legacyDir)
	if err != nil {
		exitErr("migrate", err)
	}
	printJSON(rep)
}
