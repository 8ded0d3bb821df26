// Package cli implements the dhcpdb commandline, grounded on
// original_source/main.cpp's subcommand dispatch and built the way
// vendor/go.universe.tf/netboot/pixiecore/cli wires cobra + viper: one
// root command, one subcommand per admin verb, flags bound into viper
// so a config file and environment variables layer underneath them.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iangodin/dhcpdb/config"
	"github.com/iangodin/dhcpdb/resolve"
	"github.com/iangodin/dhcpdb/store"
	"github.com/iangodin/dhcpdb/wire"
)

var rootCmd = &cobra.Command{
	Use:   "dhcpdb",
	Short: "A store-backed BOOTP/DHCP server",
	Long:  "dhcpdb answers BOOTP/DHCP requests from a relational store of host reservations and option templates.",
}

// CLI runs the dhcpdb commandline and always exits back to the OS when
// finished, mirroring pixiecore/cli.CLI's contract.
func CLI() {
	cobra.OnInitialize(config.InitViper)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a configuration file")
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	config.BindFlags(rootCmd)

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(optionCmd)
	rootCmd.AddCommand(leaseCmd)
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(monitorCmd)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// loadGrammar reads the configured file (if any) and folds its option
// directives into a *wire.Grammar; an unset config file yields an empty
// grammar (every option then falls back to the raw hex-dump form).
func loadGrammar() *wire.Grammar {
	path := viper.GetString("config")
	var entries []wire.Entry
	if path != "" {
		d, err := config.LoadFile(path)
		if err != nil {
			fatalf("reading configuration %q: %s", path, err)
		}
		entries = d.Entries
	}
	g, err := wire.NewGrammar(entries)
	if err != nil {
		fatalf("building option grammar: %s", err)
	}
	return g
}

func newLogger() zerolog.Logger {
	lvl, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Logger()
}

// openStore opens the MySQL-backed store named by the bound settings.
// Callers that only need quick local testing can use
// store.NewMemoryStore directly instead.
func openStore() store.Store {
	s := config.FromViper()
	dsn := store.DSN(s.DBHost, s.Database, s.DBUser, s.DBPassword)
	db, err := store.OpenMySQLStore(dsn)
	if err != nil {
		fatalf("connecting to store: %s", err)
	}
	return db
}

func newResolver() *resolve.Resolver { return resolve.New() }
