package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var leaseCmd = &cobra.Command{
	Use:   "leases",
	Short: "List all active leases",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		st := openStore()
		defer st.Close()
		sess, err := st.NewSession(context.Background())
		if err != nil {
			fatalf("starting session: %s", err)
		}
		defer sess.Close()

		leases, err := sess.AllLeases(context.Background())
		if err != nil {
			fatalf("leases: %s", err)
		}
		for _, l := range leases {
			cmd.Printf("%s %s expires %s\n", l.IP, l.MAC, l.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"))
		}
	},
}
