package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/chat-memory/internal/model"
	"github.com/rcliao/chat-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add [text]",
		Short: "Store a memory",
		Long:  "Store a memory. Text can be a positional arg or piped via stdin.",
		Run:   runAdd,
	}

	cmd.Flags().String("kind", string(model.KindConversationTurn), "Kind: conversation_turn, emotion_note, core_prompt_line, diary_entry")
	cmd.Flags().String("role", "", "Role for conversation turns: user, assistant, system")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	kind, _ := cmd.Flags().GetString("kind")
	role, _ := cmd.Flags().GetString("role")
	tagsStr, _ := cmd.Flags().GetString("tags")

	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			text = string(b)
		}
	}
	if strings.TrimSpace(text) == "" {
		exitErr("add", fmt.Errorf("text is required (positional arg or stdin)"))
	}
	if kind == string(model.KindConversationTurn) && role == "" {
		role = model.RoleUser
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	rec, err := s.AddMemory(cmd.Context(), store.AddParams{
		Text: strings.TrimSpace(text),
		Kind: model.Kind(kind),
		Role: role,
		Tags: splitTags(tagsStr),
	})
	if err != nil {
		exitErr("add", err)
	}
	printJSON(rec)
}
