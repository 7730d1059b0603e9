package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/chat-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memories as JSON",
		Long:  "Export all memories as a JSON array in creation order. Filter by kind with --kind.",
		Run:   runExport,
	}

	cmd.Flags().StringSlice("kind", nil, "Filter by kinds")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	kindNames, _ := cmd.Flags().GetStringSlice("kind")
	kinds, err := parseKinds(kindNames)
	if err != nil {
		exitErr("export", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	records, err := store.ExportAll(cmd.Context(), s, kinds)
	if err != nil {
		exitErr("export", err)
	}
	printJSON(records)
}
