package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/chat-memory/internal/chat"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send a message and remember the exchange",
		Long: "Assemble context for the message, request a completion from the configured " +
			"OpenAI-compatible endpoint and store both turns.",
		Args: cobra.MinimumNArgs(1),
		Run:  runAsk,
	}

	cmd.Flags().Bool("json", false, "Print the full exchange as JSON")
	cmd.Flags().Bool("show-context", false, "Include the assembled context in JSON output")

	RootCmd.AddCommand(cmd)
}

func runAsk(cmd *cobra.Command, args []string) {
	asJSON, _ := cmd.Flags().GetBool("json")
	showContext, _ := cmd.Flags().GetBool("show-context")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	a, err := newAssembler(s)
	if err != nil {
		exitErr("ask", err)
	}
	completer := &chat.RetryCompleter{
		Next:       chat.NewOpenAICompleter(cfg.Chat.BaseURL, cfg.Chat.APIKey, cfg.Chat.Model),
		MaxRetries: cfg.Chat.MaxRetries,
		Logger:     slog.Default(),
	}
	sess := chat.NewSession(s, a, completer, slog.Default())

	reply, err := sess.Respond(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		exitErr("ask", err)
	}

	if !asJSON {
		fmt.Println(reply.Text)
		return
	}
	if !showContext {
		reply.Context = nil
	}
	printJSON(reply)
}
