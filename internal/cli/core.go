package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/chat-memory/internal/model"
	"github.com/rcliao/chat-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "core",
		Short: "Show or edit the core prompt",
		Run:   runCoreShow,
	}

	appendCmd := &cobra.Command{
		Use:   "append [line]",
		Short: "Append a line to the core prompt",
		Long: "Append a line to the core prompt unless it is already present. With --autonomous " +
			"the append is subject to the core_update_allowed flag, as edits made by the model are.",
		Args: cobra.MinimumNArgs(1),
		Run:  runCoreAppend,
	}
	appendCmd.Flags().Bool("autonomous", false, "Treat as a model-initiated edit")

	allowCmd := &cobra.Command{
		Use:       "allow [on|off]",
		Short:     "Allow or forbid autonomous core prompt edits",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		Run:       runCoreAllow,
	}

	cmd.AddCommand(appendCmd, allowCmd)
	RootCmd.AddCommand(cmd)
}

func runCoreShow(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	lines, err := store.CorePrompt(cmd.Context(), s)
	if err != nil {
		exitErr("core", err)
	}
	printJSON(lines)
}

func runCoreAppend(cmd *cobra.Command, args []string) {
	autonomous, _ := cmd.Flags().GetBool("autonomous")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	rec, added, err := s.AppendCorePrompt(cmd.Context(), strings.Join(args, " "), autonomous)
	if err != nil {
		exitErr("core append", err)
	}
	printJSON(struct {
		Added  bool          `json:"added"`
		Record *model.Record `json:"record"`
	}{added, rec})
}

func runCoreAllow(cmd *cobra.Command, args []string) {
	allowed := true
	if len(args) == 1 {
		switch args[0] {
		case "on":
		case "off":
			allowed = false
		default:
			exitErr("core allow", fmt.Errorf("expected on or off, got %q", args[0]))
		}
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.SetCoreUpdateAllowed(cmd.Context(), allowed); err != nil {
		exitErr("core allow", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"core_update_allowed":%t}`+"\n", allowed)
}
