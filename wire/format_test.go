package wire

import "testing"

func TestFormatMissingCookie(t *testing.T) {
	f := NewFrame()
	g := twoAddressGrammar(t)
	out := Format(f, g, nil)
	if !contains(out, "Invalid magic option cookie") {
		t.Errorf("Format of zeroed frame = %q, want it to report the missing cookie", out)
	}
}

func TestFormatIncludesOptions(t *testing.T) {
	f := NewFrame()
	f.Op = OpReply
	f.HLen = 6
	g := twoAddressGrammar(t)
	if err := FillOptions(f, nil, []Option{{ID: 3, Payload: []byte{192, 0, 2, 1}}}); err != nil {
		t.Fatalf("FillOptions: %v", err)
	}
	out := Format(f, g, nil)
	if !contains(out, "router( 192.0.2.1 )") {
		t.Errorf("Format output missing decoded option, got:\n%s", out)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
