package cli

import (
	"context"
	"net"

	"github.com/spf13/cobra"

	"github.com/iangodin/dhcpdb/store"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Manage host reservations",
}

var hostAddCmd = &cobra.Command{
	Use:   "add <ip> <mac>",
	Short: "Reserve an IP address for a MAC address",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ip := mustIP(args[0])
		mac := mustMAC(args[1])

		st := openStore()
		defer st.Close()
		sess, err := st.NewSession(context.Background())
		if err != nil {
			fatalf("starting session: %s", err)
		}
		defer sess.Close()
		if err := sess.AddHost(context.Background(), ip, mac); err != nil {
			fatalf("add-host: %s", err)
		}
	},
}

var hostRemoveCmd = &cobra.Command{
	Use:   "remove <ip>",
	Short: "Remove a host reservation by IP address",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ip := mustIP(args[0])

		st := openStore()
		defer st.Close()
		sess, err := st.NewSession(context.Background())
		if err != nil {
			fatalf("starting session: %s", err)
		}
		defer sess.Close()
		if err := sess.RemoveHost(context.Background(), ip); err != nil {
			fatalf("remove-host: %s", err)
		}
	},
}

var hostListCmd = &cobra.Command{
	Use:   "list [mac]",
	Short: "List reserved IP addresses, optionally filtered to one MAC address",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		st := openStore()
		defer st.Close()
		sess, err := st.NewSession(context.Background())
		if err != nil {
			fatalf("starting session: %s", err)
		}
		defer sess.Close()

		if len(args) == 0 {
			hosts, err := sess.AllHosts(context.Background())
			if err != nil {
				fatalf("list-all: %s", err)
			}
			for _, h := range hosts {
				cmd.Printf("%s %s\n", h.IP, h.MAC)
			}
			return
		}

		mac := mustMAC(args[0])
		ips, err := sess.GetIPs(context.Background(), mac, false)
		if err != nil {
			fatalf("list-all: %s", err)
		}
		for _, ip := range ips {
			cmd.Println(ip.String())
		}
	},
}

var hostAvailableCmd = &cobra.Command{
	Use:   "available <mac>",
	Short: "List IP addresses currently available to a MAC address",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mac := mustMAC(args[0])

		st := openStore()
		defer st.Close()
		sess, err := st.NewSession(context.Background())
		if err != nil {
			fatalf("starting session: %s", err)
		}
		defer sess.Close()

		ips, err := sess.GetIPs(context.Background(), mac, true)
		if err != nil {
			fatalf("list-available: %s", err)
		}
		for _, ip := range ips {
			cmd.Println(ip.String())
		}
	},
}

func init() {
	hostCmd.AddCommand(hostAddCmd, hostRemoveCmd, hostListCmd, hostAvailableCmd)
}

func mustIP(s string) net.IP {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		fatalf("%q is not an IPv4 address", s)
	}
	return ip.To4()
}

func mustMAC(s string) net.HardwareAddr {
	if s == "*" {
		return store.WildcardMAC
	}
	mac, err := net.ParseMAC(s)
	if err != nil {
		fatalf("%q is not a MAC address: %s", s, err)
	}
	return mac
}
