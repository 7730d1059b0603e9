package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/chat-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete memories",
		Long:  "Delete memories from the index and metadata. All ids are removed in one batch.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRm,
	}

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	err = s.Batch(ctx, func(tx store.Tx) error {
		for _, id := range args {
			if err := tx.Remove(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		exitErr("rm", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"removed":%d}`+"\n", len(args))
}
