package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"

	"github.com/rs/zerolog"

	"github.com/iangodin/dhcpdb/store"
	"github.com/iangodin/dhcpdb/wire"
)

type fakeResolver struct{}

func (fakeResolver) LookupIPv4(host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip.To4(), nil
	}
	return nil, context.DeadlineExceeded
}

type fakeReverse struct{}

func (fakeReverse) ReverseLookup(ip net.IP) (string, error) {
	return "", context.DeadlineExceeded
}

func testHandler(t *testing.T) (*Handler, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	return &Handler{
		Grammar:  mustGrammar(t),
		Resolver: fakeResolver{},
		Reverse:  fakeReverse{},
		ServerIP: net.ParseIP("192.0.2.254").To4(),
		Log:      zerolog.Nop(),
	}, s
}

func mustGrammar(t *testing.T) *wire.Grammar {
	t.Helper()
	g, err := wire.NewGrammar([]wire.Entry{
		{ID: 1, Name: "subnet-mask", Args: []wire.ArgType{wire.ArgAddress}},
		{ID: 3, Name: "router", Args: []wire.ArgType{wire.ArgAddress, wire.ArgMore}},
	})
	if err != nil {
		t.Fatalf("NewGrammar: %s", err)
	}
	return g
}

func discoverFrame(mac net.HardwareAddr, params []byte) *wire.Frame {
	f := wire.NewFrame()
	f.Op = wire.OpRequest
	f.HType = wire.HTypeEther
	f.HLen = 6
	f.XID = 0xdeadbeef
	copy(f.CHAddr[:], mac)
	opts := []wire.Option{
		{ID: wire.OptMessageType, Payload: []byte{wire.MsgDiscover}},
		{ID: wire.OptParameterReqList, Payload: params},
	}
	wire.FillOptions(f, fakeResolver{}, opts)
	return f
}

func TestHandlerDiscoverOffersReservedAddress(t *testing.T) {
	h, s := testHandler(t)
	ctx := context.Background()
	sess, _ := s.NewSession(ctx)
	defer sess.Close()

	mac, _ := net.ParseMAC("00:11:22:33:44:55")
	ip := net.ParseIP("192.0.2.10")
	sess.AddHost(ctx, ip, mac)
	leaseOpt := wire.Option{ID: wire.OptLeaseTime, Payload: []byte{0, 0, 0x03, 0x84}}
	sess.AddOption(ctx, net.ParseIP("192.0.2.0"), net.ParseIP("192.0.2.255"), leaseOpt, false)

	req := discoverFrame(mac, []byte{1, 3, wire.OptLeaseTime})
	reply, send := h.Process(ctx, sess, req)
	if !send {
		t.Fatalf("Process() did not offer a reply")
	}
	if reply.Op != wire.OpReply {
		t.Errorf("reply.Op = %d, want OpReply", reply.Op)
	}
	if !reply.YIAddr.Equal(ip) {
		t.Errorf("reply.YIAddr = %s, want %s", reply.YIAddr, ip)
	}

	opts, ok := wire.ExtractOptions(reply)
	if !ok {
		t.Fatalf("reply has no valid magic cookie")
	}
	var gotType uint8
	var gotLease uint32
	for _, o := range opts {
		switch o.ID {
		case wire.OptMessageType:
			gotType = o.Payload[0]
		case wire.OptLeaseTime:
			gotLease = binary.BigEndian.Uint32(o.Payload)
		}
	}
	if gotType != wire.MsgOffer {
		t.Errorf("message-type = %d, want OFFER (%d)", gotType, wire.MsgOffer)
	}
	if gotLease != 900 {
		t.Errorf("lease-time = %d, want 900", gotLease)
	}
}

func TestHandlerDiscoverNoEligibleAddressDropsSilently(t *testing.T) {
	h, s := testHandler(t)
	ctx := context.Background()
	sess, _ := s.NewSession(ctx)
	defer sess.Close()

	mac, _ := net.ParseMAC("aa:aa:aa:aa:aa:aa")
	req := discoverFrame(mac, []byte{1})
	_, send := h.Process(ctx, sess, req)
	if send {
		t.Errorf("Process() sent a reply for a MAC with no eligible reservation")
	}
}

func requestFrame(mac net.HardwareAddr, requestedIP net.IP, serverID net.IP) *wire.Frame {
	f := wire.NewFrame()
	f.Op = wire.OpRequest
	f.HType = wire.HTypeEther
	f.HLen = 6
	f.XID = 0x12345678
	copy(f.CHAddr[:], mac)
	opts := []wire.Option{
		{ID: wire.OptMessageType, Payload: []byte{wire.MsgRequest}},
		{ID: wire.OptRequestedIP, Payload: requestedIP.To4()},
		{ID: wire.OptParameterReqList, Payload: []byte{1}},
	}
	if serverID != nil {
		opts = append(opts, wire.Option{ID: wire.OptServerIdentifier, Payload: serverID.To4()})
	}
	wire.FillOptions(f, fakeResolver{}, opts)
	return f
}

func TestHandlerRequestAcksAndLeases(t *testing.T) {
	h, s := testHandler(t)
	ctx := context.Background()
	sess, _ := s.NewSession(ctx)
	defer sess.Close()

	mac, _ := net.ParseMAC("00:11:22:33:44:55")
	ip := net.ParseIP("192.0.2.10")
	sess.AddHost(ctx, ip, mac)

	req := requestFrame(mac, ip, h.ServerIP)
	reply, send := h.Process(ctx, sess, req)
	if !send {
		t.Fatalf("Process() did not reply to REQUEST")
	}
	opts, _ := wire.ExtractOptions(reply)
	if opts[0].ID != wire.OptMessageType || opts[0].Payload[0] != wire.MsgAck {
		t.Errorf("first option = %+v, want message-type ACK", opts[0])
	}

	leases, _ := sess.AllLeases(ctx)
	if len(leases) != 1 || !leases[0].IP.Equal(ip) || !bytes.Equal(leases[0].MAC, mac) {
		t.Errorf("AllLeases = %+v, want one lease for %s/%s", leases, ip, mac)
	}
}

func TestHandlerRequestConflictingMACIsNAKed(t *testing.T) {
	h, s := testHandler(t)
	ctx := context.Background()
	sess, _ := s.NewSession(ctx)
	defer sess.Close()

	ip := net.ParseIP("192.0.2.20")
	macA, _ := net.ParseMAC("aa:aa:aa:aa:aa:aa")
	macB, _ := net.ParseMAC("bb:bb:bb:bb:bb:bb")
	sess.AddHost(ctx, ip, store.WildcardMAC)

	ok, err := sess.AcquireLease(ctx, ip, macA, 900)
	if err != nil || !ok {
		t.Fatalf("AcquireLease(macA) = %v, %v", ok, err)
	}

	req := requestFrame(macB, ip, h.ServerIP)
	reply, send := h.Process(ctx, sess, req)
	if !send {
		t.Fatalf("Process() did not reply to conflicting REQUEST")
	}
	opts, _ := wire.ExtractOptions(reply)
	if len(opts) == 0 || opts[0].ID != wire.OptMessageType || opts[0].Payload[0] != wire.MsgNak {
		t.Errorf("opts = %+v, want message-type NAK as the first option", opts)
	}
}

func TestHandlerRequestForAnotherServerDropsSilently(t *testing.T) {
	h, s := testHandler(t)
	ctx := context.Background()
	sess, _ := s.NewSession(ctx)
	defer sess.Close()

	mac, _ := net.ParseMAC("00:11:22:33:44:55")
	ip := net.ParseIP("192.0.2.10")
	sess.AddHost(ctx, ip, mac)

	other := net.ParseIP("192.0.2.253")
	req := requestFrame(mac, ip, other)
	_, send := h.Process(ctx, sess, req)
	if send {
		t.Errorf("Process() replied to a REQUEST addressed to another server")
	}
}

func TestHandlerReleaseRemovesLease(t *testing.T) {
	h, s := testHandler(t)
	ctx := context.Background()
	sess, _ := s.NewSession(ctx)
	defer sess.Close()

	mac, _ := net.ParseMAC("00:11:22:33:44:55")
	ip := net.ParseIP("192.0.2.30")
	sess.AddHost(ctx, ip, mac)
	sess.AcquireLease(ctx, ip, mac, 900)

	f := wire.NewFrame()
	f.Op = wire.OpRequest
	f.HType = wire.HTypeEther
	f.HLen = 6
	f.YIAddr = ip.To4()
	copy(f.CHAddr[:], mac)
	wire.FillOptions(f, fakeResolver{}, []wire.Option{
		{ID: wire.OptMessageType, Payload: []byte{wire.MsgRelease}},
		{ID: wire.OptServerIdentifier, Payload: h.ServerIP.To4()},
	})

	_, send := h.Process(ctx, sess, f)
	if send {
		t.Errorf("Process() sent a reply to RELEASE, want none")
	}
	leases, _ := sess.AllLeases(ctx)
	if len(leases) != 0 {
		t.Errorf("AllLeases after RELEASE = %+v, want none", leases)
	}
}

func TestHandlerDropsUnsupportedHardwareType(t *testing.T) {
	h, s := testHandler(t)
	ctx := context.Background()
	sess, _ := s.NewSession(ctx)
	defer sess.Close()

	f := wire.NewFrame()
	f.Op = wire.OpRequest
	f.HType = wire.HTypeFDDI
	f.HLen = 6
	_, send := h.Process(ctx, sess, f)
	if send {
		t.Errorf("Process() replied for an unsupported hardware type")
	}
}

func TestHandlerIgnoresReplyFrames(t *testing.T) {
	h, s := testHandler(t)
	ctx := context.Background()
	sess, _ := s.NewSession(ctx)
	defer sess.Close()

	f := wire.NewFrame()
	f.Op = wire.OpReply
	_, send := h.Process(ctx, sess, f)
	if send {
		t.Errorf("Process() replied to an inbound reply frame")
	}
}
