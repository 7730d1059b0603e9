package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rcliao/chat-memory/internal/dedup"
)

func init() {
	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Merge duplicate emotion notes",
		Long: "Group emotion notes that are near-duplicates, keep the earliest note of each group " +
			"with the union of the group's tags, and remove the rest.",
		Run: runDedup,
	}

	cmd.Flags().Bool("dry-run", false, "Report groups without changing anything")
	cmd.Flags().Float64("threshold", 0, "Cosine similarity threshold (default from config)")

	RootCmd.AddCommand(cmd)
}

func runDedup(cmd *cobra.Command, args []string) {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	if threshold <= 0 {
		threshold = cfg.Dedup.Threshold
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	rep, err := dedup.New(s, dedup.Options{
		Threshold:      threshold,
		ShortTextRunes: cfg.Dedup.ShortTextRunes,
		DryRun:         dryRun,
		Logger:         slog.Default(),
	}).Run(cmd.Context())
	if err != nil {
		exitErr("dedup", err)
	}
	printJSON(rep)
}
