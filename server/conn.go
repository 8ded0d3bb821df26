package server

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// ServerPort and ClientPort are the well-known BOOTP/DHCP ports
// (spec.md §6.2): the server listens on 67 and replies to 68.
const (
	ServerPort = 67
	ClientPort = 68
)

// conn is a broadcast-capable UDP socket bound to one address,
// grounded on original_source/udp_socket.cpp's SO_BROADCAST-then-bind
// sequence, expressed with golang.org/x/net/ipv4 for interface-aware
// receive and golang.org/x/sys/unix for the broadcast socket option
// instead of raw syscalls.
type conn struct {
	pc *ipv4.PacketConn
	uc net.PacketConn
}

// listen opens addr:port with SO_BROADCAST set, so replies can later be
// sent to 255.255.255.255.
func listen(addr string, port int) (*conn, error) {
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
	uc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("%s:%d", addr, port))
	if err != nil {
		return nil, fmt.Errorf("%w: binding %s:%d: %s", ErrResource, addr, port, err)
	}
	pc := ipv4.NewPacketConn(uc)
	if err := pc.SetControlMessage(ipv4.FlagInterface, true); err != nil {
		uc.Close()
		return nil, fmt.Errorf("%w: %s", ErrResource, err)
	}
	return &conn{pc: pc, uc: uc}, nil
}

func (c *conn) Close() error { return c.uc.Close() }

// readFrame blocks for one datagram, per spec.md §4.H's `sock.recv(p)`.
func (c *conn) readFrame(buf []byte) (int, error) {
	n, _, _, err := c.pc.ReadFrom(buf)
	return n, err
}

// sendBroadcast sends b to 255.255.255.255:68 with the broadcast flag
// the socket was opened with (spec.md §6.2).
func (c *conn) sendBroadcast(b []byte) error {
	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: ClientPort}
	_, err := c.pc.WriteTo(b, nil, dst)
	return err
}
