package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iangodin/dhcpdb/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the DHCP server",
	Long:  "Start the DHCP server, binding one listener per interface (or the configured address) and serving requests until the process is terminated.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		grammar := loadGrammar()
		resolver := newResolver()
		st := openStore()
		defer st.Close()

		srv := server.New(server.Config{
			Address:  viper.GetString("server"),
			Workers:  viper.GetInt("workers"),
			Testing:  viper.GetBool("testing"),
			Grammar:  grammar,
			Resolver: resolver,
			Reverse:  resolver,
			Store:    st,
			Log:      newLogger(),
		})

		if err := srv.Serve(context.Background()); err != nil {
			fatalf("server exited: %s", err)
		}
	},
}
