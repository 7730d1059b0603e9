package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/chat-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Find memories similar to a text",
		Long: "Rank memories by distance to the text. Uses embeddings when a provider is configured, " +
			"keyword matching otherwise. Core prompt lines are excluded unless --kind names them.",
		Args: cobra.MinimumNArgs(1),
		Run:  runQuery,
	}

	cmd.Flags().StringSlice("kind", nil, "Restrict to kinds")
	cmd.Flags().IntP("limit", "k", 5, "Max results")

	RootCmd.AddCommand(cmd)
}

func runQuery(cmd *cobra.Command, args []string) {
	kindNames, _ := cmd.Flags().GetStringSlice("kind")
	limit, _ := cmd.Flags().GetInt("limit")
	kinds, err := parseKinds(kindNames)
	if err != nil {
		exitErr("query", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	matches, err := s.QuerySimilar(cmd.Context(), store.QueryParams{
		Text:  strings.Join(args, " "),
		K:     limit,
		Kinds: kinds,
	})
	if err != nil {
		exitErr("query", err)
	}
	printJSON(matches)
}
