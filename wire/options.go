package wire

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Option is a logical option record: an 8-bit type, and the raw payload
// that follows its length byte on the wire (spec.md §3).
type Option struct {
	ID      uint8
	Payload []byte
}

// Bytes renders the option in its wire form: type, length, payload.
// Pad and End are single bytes with no length or payload.
func (o Option) Bytes() []byte {
	if o.ID == OptPad || o.ID == OptEnd {
		return []byte{o.ID}
	}
	out := make([]byte, 2+len(o.Payload))
	out[0] = o.ID
	out[1] = byte(len(o.Payload))
	copy(out[2:], o.Payload)
	return out
}

// Resolver resolves a host/address argument during option encoding.
// Only the forward direction is needed by the codec: decode never
// reverse-resolves an address-typed option (spec.md §4.C only dotted-
// quad-prints on decode; reverse lookup is a frame-formatter-only and
// handler-only concern, see format.go and server/handler.go).
type Resolver interface {
	LookupIPv4(host string) (net.IP, error)
}

// Call is a parsed human-form option invocation: name(arg, arg, ...).
type Call struct {
	Name string
	Args []string
}

// EncodeOption turns a parsed human-form call into its raw wire bytes,
// per spec.md §4.C's encoding algorithm.
func EncodeOption(g *Grammar, r Resolver, call Call) (Option, error) {
	id, ok := g.Lookup(call.Name)
	if !ok {
		return Option{}, fmt.Errorf("%w: %q", ErrUnknownOption, call.Name)
	}
	types, ok := g.Args(id)
	if !ok {
		return Option{}, fmt.Errorf("%w: %q", ErrUnknownOption, call.Name)
	}
	argTypes, err := expand(types, len(call.Args))
	if err != nil {
		return Option{}, err
	}
	if len(argTypes) != len(call.Args) {
		return Option{}, fmt.Errorf("%w: option %q expects %d arguments, got %d", ErrArity, call.Name, len(argTypes), len(call.Args))
	}

	var payload []byte
	for i, t := range argTypes {
		arg := call.Args[i]
		switch t {
		case ArgAddress:
			ip, err := lookupIPv4(r, arg)
			if err != nil {
				return Option{}, fmt.Errorf("%w: option %q argument %d: %s", ErrParse, call.Name, i, err)
			}
			payload = append(payload, ip...)
		case ArgHWAddr:
			mac, err := net.ParseMAC(arg)
			if err != nil || len(mac) != 6 {
				return Option{}, fmt.Errorf("%w: option %q argument %d: invalid MAC %q", ErrParse, call.Name, i, arg)
			}
			payload = append(payload, mac...)
		case ArgUint32:
			n, err := strconv.ParseUint(arg, 10, 32)
			if err != nil {
				return Option{}, fmt.Errorf("%w: option %q argument %d: %s", ErrParse, call.Name, i, err)
			}
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], uint32(n))
			payload = append(payload, b[:]...)
		case ArgUint16:
			n, err := strconv.ParseUint(arg, 10, 16)
			if err != nil {
				return Option{}, fmt.Errorf("%w: option %q argument %d: %s", ErrParse, call.Name, i, err)
			}
			var b [2]byte
			binary.BigEndian.PutUint16(b[:], uint16(n))
			payload = append(payload, b[:]...)
		case ArgUint8:
			n, err := strconv.ParseUint(arg, 10, 32)
			if err != nil {
				return Option{}, fmt.Errorf("%w: option %q argument %d: %s", ErrParse, call.Name, i, err)
			}
			if n > 255 {
				return Option{}, fmt.Errorf("%w: option %q argument %d (%d) too large for uint8", ErrRange, call.Name, i, n)
			}
			payload = append(payload, byte(n))
		case ArgString:
			payload = append(payload, []byte(arg)...)
		case ArgHex:
			payload = append(payload, decodeHexTruncated(arg)...)
		case ArgNames:
			packed, err := PackName(arg)
			if err != nil {
				return Option{}, err
			}
			payload = append(payload, packed...)
		default:
			return Option{}, fmt.Errorf("%w: unknown argument type for option %q", ErrParse, call.Name)
		}
	}
	if len(payload) > 255 {
		return Option{}, fmt.Errorf("%w: option %q payload is %d bytes", ErrTooLong, call.Name, len(payload))
	}
	return Option{ID: id, Payload: payload}, nil
}

// decodeHexTruncated decodes pairs of hex digits into bytes; an odd
// trailing digit is dropped, per spec.md §4.C step 7's hex encoding.
func decodeHexTruncated(s string) []byte {
	s = s[:len(s)-len(s)%2]
	b, err := hex.DecodeString(s)
	if err != nil {
		// Best-effort: decode byte-by-byte, skipping any unparsable pair.
		var out []byte
		for i := 0; i+1 < len(s); i += 2 {
			if v, err := strconv.ParseUint(s[i:i+2], 16, 8); err == nil {
				out = append(out, byte(v))
			}
		}
		return out
	}
	return b
}

func lookupIPv4(r Resolver, arg string) (net.IP, error) {
	if ip := net.ParseIP(arg); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
	}
	if r == nil {
		return nil, fmt.Errorf("no resolver configured for non-numeric address %q", arg)
	}
	return r.LookupIPv4(arg)
}

// DecodeOption renders a raw option blob (id, length, payload...) into
// its human form "name(arg, arg, ...)", per spec.md §4.C's decoding
// algorithm. An unrecognized id falls back to a hex dump, never an
// error (spec.md §8 boundary case).
func DecodeOption(g *Grammar, raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: empty option", ErrWire)
	}
	id := raw[0]
	name, ok := g.Name(id)
	if !ok {
		return hexDump(raw), nil
	}
	types, _ := g.Args(id)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')

	p := 2
	last := ArgMore
	argTypes := append([]ArgType(nil), types...)
	for i := 0; i < len(argTypes) && p < len(raw); i++ {
		if i > 0 {
			b.WriteString(", ")
		} else {
			b.WriteByte(' ')
		}

		t := argTypes[i]
		if t == ArgMore {
			t = last
			argTypes = append(argTypes, ArgMore)
		}

		switch t {
		case ArgAddress:
			if p+4 > len(raw) {
				return "", fmt.Errorf("%w: not enough data for address in option %q", ErrWire, name)
			}
			b.WriteString(net.IP(raw[p : p+4]).String())
			p += 4
		case ArgHWAddr:
			if p+6 > len(raw) {
				return "", fmt.Errorf("%w: not enough data for hwaddr in option %q", ErrWire, name)
			}
			b.WriteString(net.HardwareAddr(raw[p : p+6]).String())
			p += 6
		case ArgUint32:
			if p+4 > len(raw) {
				return "", fmt.Errorf("%w: not enough data for uint32 in option %q", ErrWire, name)
			}
			fmt.Fprintf(&b, "%d", binary.BigEndian.Uint32(raw[p:p+4]))
			p += 4
		case ArgUint16:
			if p+2 > len(raw) {
				return "", fmt.Errorf("%w: not enough data for uint16 in option %q", ErrWire, name)
			}
			fmt.Fprintf(&b, "%d", binary.BigEndian.Uint16(raw[p:p+2]))
			p += 2
		case ArgUint8:
			fmt.Fprintf(&b, "%d", raw[p])
			p++
		case ArgString:
			size := int(raw[1])
			end := p + size
			if end > len(raw) {
				end = len(raw)
			}
			b.Write(raw[p:end])
			p = end
		case ArgHex:
			size := int(raw[1])
			end := p + size
			if end > len(raw) {
				end = len(raw)
			}
			b.WriteString(strings.ToUpper(hex.EncodeToString(raw[p:end])))
			p = end
		case ArgNames:
			size := int(raw[1])
			end := p + size
			if end > len(raw) {
				end = len(raw)
			}
			names, err := UnpackNames(raw[p:end])
			if err != nil {
				return "", err
			}
			b.WriteString(strings.Join(names, ", "))
			p = end
		default:
			return "", fmt.Errorf("%w: unknown argument type in option %q", ErrWire, name)
		}
		last = t
	}
	b.WriteString(" )")
	return b.String(), nil
}

func hexDump(raw []byte) string {
	return strings.ToUpper(hex.EncodeToString(raw))
}
