package wire

import "fmt"

func isAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// PackName encodes a dotted domain name into DNS-style length-prefixed
// labels terminated by a zero byte, per spec.md §4.C's pack-name rule:
// each run of alphanumerics is prefixed by its length byte, '.' starts a
// new label, any other non-whitespace character is a bad-name error, and
// a trailing '.' is a bad-name error.
func PackName(name string) ([]byte, error) {
	ret := []byte{0}
	loc := 0
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case isAlnum(c):
			ret = append(ret, c)
			ret[loc]++
		case c == '.':
			loc = len(ret)
			ret = append(ret, 0)
		case !isSpace(c):
			return nil, fmt.Errorf("%w: invalid character %q in domain name", ErrBadName, c)
		}
	}
	if ret[len(ret)-1] == 0 {
		return nil, fmt.Errorf("%w: domain name %q ended with '.'", ErrBadName, name)
	}
	ret = append(ret, 0)
	return ret, nil
}

// UnpackNames decodes one or more concatenated pack-name blocks (as
// produced by the "names" argument type, which may repeat) back into
// their dotted string forms.
func UnpackNames(b []byte) ([]string, error) {
	var names []string
	var cur []byte
	for i := 0; i < len(b); {
		n := int(b[i])
		i++
		if n == 0 {
			if len(cur) > 0 {
				names = append(names, string(cur))
				cur = nil
			}
			continue
		}
		if i+n > len(b) {
			return nil, fmt.Errorf("%w: label length %d runs past end of names blob", ErrWire, n)
		}
		if len(cur) > 0 {
			cur = append(cur, '.')
		}
		cur = append(cur, b[i:i+n]...)
		i += n
	}
	if len(cur) > 0 {
		names = append(names, string(cur))
	}
	return names, nil
}
