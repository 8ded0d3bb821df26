package wire

import (
	"fmt"
	"strings"
)

// ExtractOptions walks a frame's option area and returns the sequence of
// raw option blobs (each `id, length, payload...`), per spec.md §4.D.
// A missing magic cookie yields an empty sequence; the caller is
// expected to log this per spec.md §8's scenario 6.
func ExtractOptions(f *Frame) ([]Option, bool) {
	opts := f.Options[:]
	if len(opts) < 4 || opts[0] != MagicCookie[0] || opts[1] != MagicCookie[1] || opts[2] != MagicCookie[2] || opts[3] != MagicCookie[3] {
		return nil, false
	}
	var out []Option
	i := 4
	for i < len(opts) && opts[i] != OptEnd {
		if opts[i] == OptPad {
			i++
			continue
		}
		if i+1 >= len(opts) {
			break
		}
		n := int(opts[i+1])
		if i+2+n > len(opts) {
			break
		}
		out = append(out, Option{ID: opts[i], Payload: append([]byte(nil), opts[i+2:i+2+n]...)})
		i += 2 + n
	}
	return out, true
}

// FillOptions writes the magic cookie followed by the given options into
// the frame's option area, terminated by a single End byte. Options 66
// (tftp-server-name) and 67 (boot-file-name) are hoisted into the fixed
// SIAddr/File header fields instead of being written into the option
// area, per spec.md §4.D — a protocol quirk localized here rather than
// scattered across handler logic (spec.md §9).
func FillOptions(f *Frame, r Resolver, opts []Option) error {
	f.Options = [optionsSize]byte{}
	copy(f.Options[0:4], MagicCookie[:])
	p := 4
	for _, o := range opts {
		if len(o.Payload) == 0 && o.ID != OptPad && o.ID != OptEnd {
			continue
		}
		switch o.ID {
		case OptTFTPServerName:
			ip, err := lookupIPv4(r, string(o.Payload))
			if err != nil {
				return fmt.Errorf("%w: resolving tftp-server-name: %s", ErrWire, err)
			}
			f.SIAddr = ip
			continue
		case OptBootFileName:
			if len(o.Payload) > len(f.File)-1 {
				return fmt.Errorf("%w: boot file name too long", ErrOverflow)
			}
			f.File = [128]byte{}
			copy(f.File[:], o.Payload)
			continue
		}
		raw := o.Bytes()
		if p+len(raw) > optionsSize-1 {
			return fmt.Errorf("%w: option area would exceed %d bytes", ErrOverflow, optionsSize)
		}
		copy(f.Options[p:], raw)
		p += len(raw)
	}
	if p >= optionsSize {
		return fmt.Errorf("%w: no room for end marker", ErrOverflow)
	}
	f.Options[p] = OptEnd
	return nil
}

// ParseCall parses a human-form option invocation "name(arg, arg, ...)"
// into a Call, splitting on top-level commas (commas inside the
// argument text itself never occur in this grammar, so a plain split is
// sufficient once the outer parens are stripped).
func ParseCall(s string) (Call, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return Call{}, fmt.Errorf("%w: %q is not of the form name(args...)", ErrParse, s)
	}
	name := strings.TrimSpace(s[:open])
	if name == "" {
		return Call{}, fmt.Errorf("%w: missing option name in %q", ErrParse, s)
	}
	inner := s[open+1 : len(s)-1]
	inner = strings.TrimSpace(inner)
	var args []string
	if inner != "" {
		for _, a := range strings.Split(inner, ",") {
			args = append(args, strings.TrimSpace(a))
		}
	}
	return Call{Name: name, Args: args}, nil
}

// FormatCall renders a Call back to its human-form string, the inverse
// of ParseCall (modulo whitespace).
func FormatCall(c Call) string {
	return c.Name + "(" + strings.Join(c.Args, ", ") + ")"
}
