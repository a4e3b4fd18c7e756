package gcmd

import (
	"fmt"

	"github.com/gordian-engine/gordering/od/oddebug"
	"github.com/spf13/cobra"
)

func newSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit TX...",
		Short: "Submit one batch of transactions to a running node",
		Long: `Submit one batch of transactions to a running node.

Each argument is one transaction, taken as raw bytes.
On success, the hex-encoded batch hash is printed.`,

		Args: cobra.MinimumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			dc, err := newDebugClient(cmd)
			if err != nil {
				return err
			}

			req := oddebug.SubmitRequest{
				Transactions: make([][]byte, len(args)),
			}
			for i, a := range args {
				req.Transactions[i] = []byte(a)
			}

			var resp oddebug.SubmitResponse
			if err := dc.postJSON(cmd, "/batches", req, &resp); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp.Hash)
			return nil
		},
	}

	addDebugClientFlags(cmd)

	return cmd
}
