package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [message]",
		Short: "Show the context that would be sent for a message",
		Long: "Assemble the core prompt, relevant memories and recent turns for a new user message " +
			"within the token budget, without calling the model or storing anything.",
		Args: cobra.MinimumNArgs(1),
		Run:  runContext,
	}

	cmd.Flags().IntP("budget", "b", 0, "Total token budget (default from config)")
	cmd.Flags().IntP("reserve", "r", 0, "Tokens reserved for the reply (default from config)")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	if b, _ := cmd.Flags().GetInt("budget"); b > 0 {
		cfg.Context.Budget = b
	}
	if r, _ := cmd.Flags().GetInt("reserve"); r > 0 {
		cfg.Context.Reserve = r
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	a, err := newAssembler(s)
	if err != nil {
		exitErr("context", err)
	}
	res, err := a.Assemble(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		exitErr("context", err)
	}
	printJSON(res)
}
