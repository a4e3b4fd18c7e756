package gcmd

import (
	"fmt"

	"github.com/gordian-engine/gordering/od/oddebug"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print a running node's round and pending batches",

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, _ []string) error {
			dc, err := newDebugClient(cmd)
			if err != nil {
				return err
			}

			var cr oddebug.CacheResponse
			if err := dc.getJSON(cmd, "/cache", &cr); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "round: (%d, %d)\n", cr.Round.BlockRound, cr.Round.RejectRound)
			fmt.Fprintf(out, "front: %d\n", len(cr.Front))
			for _, h := range cr.Front {
				fmt.Fprintf(out, "  %s\n", h)
			}
			fmt.Fprintf(out, "back: %d\n", len(cr.Back))
			for _, h := range cr.Back {
				fmt.Fprintf(out, "  %s\n", h)
			}
			return nil
		},
	}

	addDebugClientFlags(cmd)

	return cmd
}
