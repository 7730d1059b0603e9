package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/chat-memory/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Reconcile the vector index with the metadata",
		Long: "Re-embed records that are missing from the index and drop index entries that have " +
			"no metadata. With --check, only report the differences.",
		Run: runRepair,
	}

	cmd.Flags().Bool("check", false, "Report drift without repairing")

	RootCmd.AddCommand(cmd)
}

func runRepair(cmd *cobra.Command, args []string) {
	checkOnly, _ := cmd.Flags().GetBool("check")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	vs, ok := s.(*store.VectorStore)
	if !ok {
		exitErr("repair", fmt.Errorf("%s store has no vector index; configure an embedding provider", s.Backend()))
	}

	var rep *store.CheckReport
	if checkOnly {
		rep, err = vs.Check(cmd.Context())
	} else {
		rep, err = vs.Repair(cmd.Context())
	}
	if err != nil {
		exitErr("repair", err)
	}
	printJSON(rep)
}
