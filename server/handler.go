// Package server implements the per-frame dispatch state machine and the
// per-interface listener/worker-pool fan-out of spec.md §4.G/§4.H,
// grounded on the teacher's goroutine-per-listener, channel-propagated-
// error shape in vendor/go.universe.tf/netboot/pixiecore's Server.Serve,
// generalized from "boot a machine" to "answer a BOOTP/DHCP request".
package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sort"

	"github.com/rs/zerolog"

	"github.com/iangodin/dhcpdb/store"
	"github.com/iangodin/dhcpdb/wire"
)

// Handler holds the per-listener collaborators the dispatch state
// machine needs: the option grammar, a Resolver for encoding
// address-typed options (including the 66/67 hoists in FillOptions),
// a ReverseResolver for hostname synthesis and frame-formatter display,
// and this listener's own address (the default server-identifier).
type Handler struct {
	Grammar  *wire.Grammar
	Resolver wire.Resolver
	Reverse  wire.ReverseResolver
	ServerIP net.IP
	Log      zerolog.Logger
}

// scan is the result of the option-scan step in spec.md §4.G.
type scan struct {
	msgType      uint8
	haveMsgType  bool
	requestedIP  net.IP
	serverID     net.IP
	hostname     string
	haveHostname bool
	paramReq     map[uint8]bool
}

func scanOptions(opts []wire.Option) (scan, error) {
	var s scan
	s.paramReq = map[uint8]bool{}
	for _, o := range opts {
		switch o.ID {
		case wire.OptMessageType:
			if len(o.Payload) != 1 {
				return scan{}, fmt.Errorf("%w: message-type option has length %d, want 1", wire.ErrWire, len(o.Payload))
			}
			s.msgType = o.Payload[0]
			s.haveMsgType = true
		case wire.OptRequestedIP:
			if len(o.Payload) != 4 {
				return scan{}, fmt.Errorf("%w: requested-ip option has length %d, want 4", wire.ErrWire, len(o.Payload))
			}
			s.requestedIP = net.IP(append([]byte(nil), o.Payload...))
		case wire.OptServerIdentifier:
			if len(o.Payload) != 4 {
				return scan{}, fmt.Errorf("%w: server-identifier option has length %d, want 4", wire.ErrWire, len(o.Payload))
			}
			s.serverID = net.IP(append([]byte(nil), o.Payload...))
		case wire.OptHostname:
			s.hostname = string(o.Payload)
			s.haveHostname = true
		case wire.OptParameterReqList:
			for _, id := range o.Payload {
				s.paramReq[id] = true
			}
		}
	}
	return s, nil
}

// Process runs the dispatch state machine of spec.md §4.G for a single
// request frame, returning the reply to send (if any) and whether a
// reply should be sent at all. It never returns an error: every failure
// mode in §4.G is either a silent drop or a NAK, both expressed as a
// (nil reply, send=false) or (NAK reply, send=true) result, matching
// "no failure ever escapes the worker" in spec.md §4.G.
func (h *Handler) Process(ctx context.Context, sess store.Session, req *wire.Frame) (*wire.Frame, bool) {
	logger := h.Log.With().Uint32("xid", req.XID).Logger()

	if req.Op != wire.OpRequest {
		return nil, false
	}
	if req.HType != wire.HTypeEther || req.HLen != 6 {
		logger.Info().Uint8("htype", req.HType).Uint8("hlen", req.HLen).Msg("unsupported hardware address, dropping")
		return nil, false
	}

	opts, ok := wire.ExtractOptions(req)
	if !ok {
		logger.Info().Msg("Invalid DHCP magic cookie")
		return nil, false
	}

	s, err := scanOptions(opts)
	if err != nil {
		logger.Info().Err(err).Msg("option scan failed, dropping")
		return nil, false
	}
	if !s.haveMsgType {
		logger.Info().Msg("missing message-type option, dropping")
		return nil, false
	}

	mac := net.HardwareAddr(req.CHAddr[:req.HLen])

	switch s.msgType {
	case wire.MsgDiscover:
		return h.discover(ctx, sess, req, mac, s, logger)
	case wire.MsgRequest:
		return h.request(ctx, sess, req, mac, s, logger)
	case wire.MsgRelease:
		h.release(ctx, sess, req, mac, s, logger)
		return nil, false
	case wire.MsgInform, wire.MsgDecline, wire.MsgLeaseQuery:
		logger.Info().Uint8("msg_type", s.msgType).Msg("unhandled message type, dropping")
		return nil, false
	default:
		logger.Info().Uint8("msg_type", s.msgType).Msg("unknown message type, dropping")
		return nil, false
	}
}

// chooseAddress implements steps 2-3 shared by DISCOVER and REQUEST.
func (h *Handler) chooseAddress(ctx context.Context, sess store.Session, mac net.HardwareAddr, requested net.IP) (net.IP, error) {
	ips, err := sess.GetIPs(ctx, mac, true)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, nil
	}
	if requested != nil {
		for _, ip := range ips {
			if ip.Equal(requested) {
				return ip, nil
			}
		}
	}
	return ips[0], nil
}

// assembleOptions implements steps 4-7: split templated options into
// the mandatory trio plus hostname, then sort the remainder.
func (h *Handler) assembleOptions(ctx context.Context, sess store.Session, ip net.IP, msgType uint8, s scan) ([]wire.Option, *wire.Option, error) {
	templates, err := sess.GetOptions(ctx, ip)
	if err != nil {
		return nil, nil, err
	}

	var leaseTime *wire.Option
	var serverID *wire.Option
	var hostname *wire.Option
	var rest []wire.Option
	for _, o := range templates {
		switch o.ID {
		case wire.OptLeaseTime:
			o := o
			leaseTime = &o
		case wire.OptServerIdentifier:
			o := o
			serverID = &o
		case wire.OptHostname:
			o := o
			hostname = &o
		default:
			if s.paramReq[o.ID] {
				rest = append(rest, o)
			}
		}
	}

	if hostname == nil {
		if name, err := h.Reverse.ReverseLookup(ip); err == nil && name != "" {
			hostname = &wire.Option{ID: wire.OptHostname, Payload: []byte(name)}
		}
	}
	if hostname != nil {
		rest = append(rest, *hostname)
	}

	sid := h.ServerIP
	if serverID != nil && len(serverID.Payload) == 4 {
		sid = net.IP(serverID.Payload)
	}

	sort.Slice(rest, func(i, j int) bool {
		return bytes.Compare(rest[i].Bytes(), rest[j].Bytes()) < 0
	})

	out := make([]wire.Option, 0, len(rest)+3)
	out = append(out, wire.Option{ID: wire.OptMessageType, Payload: []byte{msgType}})
	out = append(out, wire.Option{ID: wire.OptServerIdentifier, Payload: sid.To4()})
	if leaseTime != nil {
		out = append(out, *leaseTime)
	}
	out = append(out, rest...)
	return out, leaseTime, nil
}

func (h *Handler) discover(ctx context.Context, sess store.Session, req *wire.Frame, mac net.HardwareAddr, s scan, logger zerolog.Logger) (*wire.Frame, bool) {
	ip, err := h.chooseAddress(ctx, sess, mac, s.requestedIP)
	if err != nil {
		logger.Warn().Err(err).Msg("store error selecting address for DISCOVER")
		return nil, false
	}
	if ip == nil {
		logger.Info().Str("mac", mac.String()).Msg("unable to offer: no eligible address")
		return nil, false
	}

	opts, _, err := h.assembleOptions(ctx, sess, ip, wire.MsgOffer, s)
	if err != nil {
		logger.Warn().Err(err).Msg("store error assembling OFFER options")
		return nil, false
	}

	reply := h.buildReply(req, ip)
	if err := wire.FillOptions(reply, h.Resolver, opts); err != nil {
		logger.Warn().Err(err).Msg("failed to fill OFFER options")
		return nil, false
	}
	return reply, true
}

func (h *Handler) request(ctx context.Context, sess store.Session, req *wire.Frame, mac net.HardwareAddr, s scan, logger zerolog.Logger) (*wire.Frame, bool) {
	if s.serverID != nil && !s.serverID.Equal(h.ServerIP) {
		logger.Info().Msg("REQUEST addressed to another server, dropping")
		return nil, false
	}

	ip, err := h.chooseAddress(ctx, sess, mac, s.requestedIP)
	if err != nil {
		logger.Warn().Err(err).Msg("store error selecting address for REQUEST")
		return nil, false
	}
	if ip == nil {
		logger.Info().Str("mac", mac.String()).Msg("Refused: no eligible address")
		reply := h.buildReply(req, nil)
		nak := []wire.Option{
			{ID: wire.OptMessageType, Payload: []byte{wire.MsgNak}},
			{ID: wire.OptServerIdentifier, Payload: h.ServerIP.To4()},
		}
		if err := wire.FillOptions(reply, h.Resolver, nak); err != nil {
			logger.Warn().Err(err).Msg("failed to fill NAK options")
			return nil, false
		}
		return reply, true
	}

	opts, leaseTime, err := h.assembleOptions(ctx, sess, ip, wire.MsgAck, s)
	if err != nil {
		logger.Warn().Err(err).Msg("store error assembling ACK options")
		return nil, false
	}

	var seconds uint32
	if leaseTime != nil && len(leaseTime.Payload) == 4 {
		seconds = binary.BigEndian.Uint32(leaseTime.Payload)
	}

	granted, err := sess.AcquireLease(ctx, ip, mac, seconds)
	if err != nil {
		logger.Warn().Err(err).Msg("store error acquiring lease, refusing")
		granted = false
	}
	if !granted {
		logger.Info().Str("mac", mac.String()).Str("ip", ip.String()).Msg("Refused")
		reply := h.buildReply(req, nil)
		nak := []wire.Option{
			{ID: wire.OptMessageType, Payload: []byte{wire.MsgNak}},
			{ID: wire.OptServerIdentifier, Payload: h.ServerIP.To4()},
		}
		if err := wire.FillOptions(reply, h.Resolver, nak); err != nil {
			logger.Warn().Err(err).Msg("failed to fill NAK options")
			return nil, false
		}
		return reply, true
	}

	logger.Info().Str("mac", mac.String()).Str("ip", ip.String()).Msg("Leased")
	reply := h.buildReply(req, ip)
	if err := wire.FillOptions(reply, h.Resolver, opts); err != nil {
		logger.Warn().Err(err).Msg("failed to fill ACK options")
		return nil, false
	}
	return reply, true
}

func (h *Handler) release(ctx context.Context, sess store.Session, req *wire.Frame, mac net.HardwareAddr, s scan, logger zerolog.Logger) {
	if s.serverID == nil || !s.serverID.Equal(h.ServerIP) {
		return
	}
	ok, err := sess.ReleaseLease(ctx, req.YIAddr, mac)
	if err != nil {
		logger.Warn().Err(err).Msg("store error releasing lease")
		return
	}
	if ok {
		logger.Info().Str("mac", mac.String()).Str("ip", req.YIAddr.String()).Msg("Released")
	}
}

// buildReply copies the fields spec.md §4.G step 8 requires from the
// request into a fresh reply frame. A nil yiaddr (the NAK path) leaves
// it zeroed.
func (h *Handler) buildReply(req *wire.Frame, yiaddr net.IP) *wire.Frame {
	reply := wire.NewFrame()
	reply.Op = wire.OpReply
	reply.HType = req.HType
	reply.HLen = req.HLen
	reply.XID = req.XID
	copy(reply.CHAddr[:], req.CHAddr[:])
	if yiaddr != nil {
		reply.YIAddr = yiaddr.To4()
	}
	return reply
}
