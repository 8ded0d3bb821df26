package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iangodin/dhcpdb/server"
	"github.com/iangodin/dhcpdb/store"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Listen for DHCP packets and print them, without answering",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		grammar := loadGrammar()
		resolver := newResolver()

		srv := server.New(server.Config{
			Address:  viper.GetString("server"),
			Workers:  1,
			Testing:  true,
			Grammar:  grammar,
			Resolver: resolver,
			Reverse:  resolver,
			Store:    store.NewMemoryStore(),
			Log:      newLogger(),
		})

		if err := srv.Serve(context.Background()); err != nil {
			fatalf("monitor exited: %s", err)
		}
	},
}
