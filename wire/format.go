package wire

import (
	"fmt"
	"net"
	"strings"
)

// ReverseResolver resolves an address back to a hostname, for the frame
// formatter's display fallback (spec.md §4.I). Decode itself never
// reverse-resolves (see Resolver in options.go); this is a formatter-only
// concern.
type ReverseResolver interface {
	ReverseLookup(ip net.IP) (string, error)
}

func displayIP(ip net.IP, r ReverseResolver) string {
	if ip == nil || ip.Equal(net.IPv4zero) {
		return ip.String()
	}
	if r != nil {
		if name, err := r.ReverseLookup(ip); err == nil && name != "" {
			return name
		}
	}
	return ip.String()
}

// Format renders a frame as labeled lines, per spec.md §4.I: op,
// hwaddr(type, hex), optional hops, xid, secs, flags, the four address
// fields with reverse-lookup fallback, sname, file, then each option as
// "N: name(args)". A missing magic cookie yields a single line.
func Format(f *Frame, g *Grammar, r ReverseResolver) string {
	var b strings.Builder

	op := "request"
	if f.Op == OpReply {
		op = "reply"
	}
	fmt.Fprintf(&b, "op: %s\n", op)
	fmt.Fprintf(&b, "hwaddr: (%d) %s\n", f.HType, net.HardwareAddr(f.CHAddr[:f.HLen]).String())
	if f.Hops != 0 {
		fmt.Fprintf(&b, "hops: %d\n", f.Hops)
	}
	fmt.Fprintf(&b, "xid: %#08x\n", f.XID)
	fmt.Fprintf(&b, "secs: %d\n", f.Secs)
	broadcast := "no broadcast"
	if f.BroadcastRequested() {
		broadcast = "broadcast"
	}
	fmt.Fprintf(&b, "flags: %s\n", broadcast)
	fmt.Fprintf(&b, "ciaddr: %s\n", displayIP(f.CIAddr, r))
	fmt.Fprintf(&b, "yiaddr: %s\n", displayIP(f.YIAddr, r))
	fmt.Fprintf(&b, "siaddr: %s\n", displayIP(f.SIAddr, r))
	fmt.Fprintf(&b, "giaddr: %s\n", displayIP(f.GIAddr, r))
	fmt.Fprintf(&b, "sname: %s\n", nullTerminated(f.SName[:]))
	fmt.Fprintf(&b, "file: %s\n", nullTerminated(f.File[:]))

	opts, ok := ExtractOptions(f)
	if !ok {
		b.WriteString("Invalid magic option cookie\n")
		return b.String()
	}
	for _, o := range opts {
		human, err := DecodeOption(g, o.Bytes())
		if err != nil {
			fmt.Fprintf(&b, "%d: <error: %s>\n", o.ID, err)
			continue
		}
		fmt.Fprintf(&b, "%d: %s\n", o.ID, human)
	}
	return b.String()
}

func nullTerminated(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
