// Package wire implements the BOOTP/DHCP frame and option-grammar codec:
// the fixed 236-byte header plus 312-byte option area defined by RFC
// 951/2131, and the declarative option-grammar registry that drives
// human-form encoding and decoding of the option area.
package wire

import (
	"encoding/binary"
	"fmt"
	"net"
)

// BOOTP op codes.
const (
	OpRequest uint8 = 1
	OpReply   uint8 = 2
)

// Hardware address types.
const (
	HTypeEther   uint8 = 1
	HTypeIEEE802 uint8 = 6
	HTypeFDDI    uint8 = 8
)

// DHCP message types (option 53 values).
const (
	MsgDiscover uint8 = 1
	MsgOffer    uint8 = 2
	MsgRequest  uint8 = 3
	MsgDecline  uint8 = 4
	MsgAck      uint8 = 5
	MsgNak      uint8 = 6
	MsgRelease  uint8 = 7
	MsgInform   uint8 = 8
	MsgLeaseQuery uint8 = 10
)

// Reserved option numbers used directly by the dispatch state machine
// (spec.md §6.4).
const (
	OptPad               uint8 = 0
	OptHostname          uint8 = 12
	OptRequestedIP       uint8 = 50
	OptLeaseTime         uint8 = 51
	OptMessageType       uint8 = 53
	OptServerIdentifier  uint8 = 54
	OptParameterReqList  uint8 = 55
	OptTFTPServerName    uint8 = 66
	OptBootFileName      uint8 = 67
	OptEnd               uint8 = 255
)

// MagicCookie is the four-byte marker at the start of the option area.
var MagicCookie = [4]byte{0x63, 0x82, 0x53, 0x63}

const (
	headerSize  = 236
	optionsSize = 312
	// FrameSize is the fixed on-wire size of a BOOTP/DHCP frame:
	// 236 header bytes plus the 312-byte option area.
	FrameSize = headerSize + optionsSize
)

// Frame is the fixed-layout in-memory representation of a BOOTP/DHCP
// frame, laid out contiguously and byte-exact on the wire.
type Frame struct {
	Op    uint8
	HType uint8
	HLen  uint8
	Hops  uint8

	XID uint32

	Secs  uint16
	Flags uint16

	CIAddr net.IP // 4 bytes, network order
	YIAddr net.IP
	SIAddr net.IP
	GIAddr net.IP

	CHAddr [16]byte
	SName  [64]byte
	File   [128]byte

	Options [optionsSize]byte
}

// BroadcastRequested reports whether bit 15 of Flags (the broadcast bit)
// is set.
func (f *Frame) BroadcastRequested() bool {
	return f.Flags&0x8000 != 0
}

// NewFrame returns a zero-initialized frame, as required of the
// allocate operation in spec.md §4.A.
func NewFrame() *Frame {
	return &Frame{
		CIAddr: make(net.IP, 4),
		YIAddr: make(net.IP, 4),
		SIAddr: make(net.IP, 4),
		GIAddr: make(net.IP, 4),
	}
}

// Reset zeroes a frame for reuse, preserving its underlying storage.
// The queue's Free calls it before returning a frame to the free-list.
func (f *Frame) Reset() {
	f.Op, f.HType, f.HLen, f.Hops = 0, 0, 0, 0
	f.XID, f.Secs, f.Flags = 0, 0, 0
	for _, ip := range []net.IP{f.CIAddr, f.YIAddr, f.SIAddr, f.GIAddr} {
		copy(ip, net.IPv4zero.To4())
	}
	f.CHAddr = [16]byte{}
	f.SName = [64]byte{}
	f.File = [128]byte{}
	f.Options = [optionsSize]byte{}
}

func putIP(b []byte, ip net.IP) {
	v4 := ip.To4()
	if v4 == nil {
		v4 = net.IPv4zero.To4()
	}
	copy(b, v4)
}

// Marshal renders the frame as its 548-byte wire form.
func (f *Frame) Marshal() []byte {
	b := make([]byte, FrameSize)
	b[0], b[1], b[2], b[3] = f.Op, f.HType, f.HLen, f.Hops
	binary.BigEndian.PutUint32(b[4:8], f.XID)
	binary.BigEndian.PutUint16(b[8:10], f.Secs)
	binary.BigEndian.PutUint16(b[10:12], f.Flags)
	putIP(b[12:16], f.CIAddr)
	putIP(b[16:20], f.YIAddr)
	putIP(b[20:24], f.SIAddr)
	putIP(b[24:28], f.GIAddr)
	copy(b[28:44], f.CHAddr[:])
	copy(b[44:108], f.SName[:])
	copy(b[108:236], f.File[:])
	copy(b[236:548], f.Options[:])
	return b
}

// Unmarshal populates the frame from its 548-byte wire form.
func (f *Frame) Unmarshal(b []byte) error {
	if len(b) < FrameSize {
		return fmt.Errorf("%w: frame too short: got %d bytes, want %d", ErrWire, len(b), FrameSize)
	}
	f.Op, f.HType, f.HLen, f.Hops = b[0], b[1], b[2], b[3]
	f.XID = binary.BigEndian.Uint32(b[4:8])
	f.Secs = binary.BigEndian.Uint16(b[8:10])
	f.Flags = binary.BigEndian.Uint16(b[10:12])
	f.CIAddr = net.IP(append([]byte(nil), b[12:16]...))
	f.YIAddr = net.IP(append([]byte(nil), b[16:20]...))
	f.SIAddr = net.IP(append([]byte(nil), b[20:24]...))
	f.GIAddr = net.IP(append([]byte(nil), b[24:28]...))
	copy(f.CHAddr[:], b[28:44])
	copy(f.SName[:], b[44:108])
	copy(f.File[:], b[108:236])
	copy(f.Options[:], b[236:548])
	return nil
}
