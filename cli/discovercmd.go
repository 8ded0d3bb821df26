package cli

import (
	"context"
	"math/rand"
	"net"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/iangodin/dhcpdb/server"
	"github.com/iangodin/dhcpdb/wire"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <mac> [<option-number> ...]",
	Short: "Broadcast a DISCOVER frame for a MAC address, requesting the given option numbers",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mac := mustMAC(args[0])

		var params []byte
		for _, a := range args[1:] {
			n, err := strconv.Atoi(a)
			if err != nil || n <= 0 || n > 255 {
				fatalf("%q is not a valid option number", a)
			}
			params = append(params, byte(n))
		}

		f := wire.NewFrame()
		f.Op = wire.OpRequest
		f.HType = wire.HTypeEther
		f.HLen = 6
		f.XID = rand.Uint32()
		f.Flags = 0x8000 // request a broadcast reply
		copy(f.CHAddr[:], mac)

		opts := []wire.Option{
			{ID: wire.OptMessageType, Payload: []byte{wire.MsgDiscover}},
		}
		if len(params) > 0 {
			opts = append(opts, wire.Option{ID: wire.OptParameterReqList, Payload: params})
		}
		if err := wire.FillOptions(f, newResolver(), opts); err != nil {
			fatalf("building DISCOVER frame: %s", err)
		}

		if err := sendBroadcast(f.Marshal(), server.ServerPort); err != nil {
			fatalf("sending DISCOVER: %s", err)
		}
		cmd.Printf("sent DISCOVER for %s (xid %#08x)\n", mac, f.XID)
	},
}

// sendBroadcast opens an ephemeral broadcast-capable socket and sends
// one datagram to 255.255.255.255:port, the same SO_BROADCAST sequence
// server/conn.go uses for replies.
func sendBroadcast(b []byte, port int) error {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
			}); err != nil {
				return err
			}
			return sockErr
		},
	}
	uc, err := lc.ListenPacket(context.Background(), "udp4", ":0")
	if err != nil {
		return err
	}
	defer uc.Close()

	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: port}
	_, err = uc.WriteTo(b, dst)
	return err
}
