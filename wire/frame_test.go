package wire

import (
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFrameMarshalUnmarshalRoundTrip(t *testing.T) {
	f := NewFrame()
	f.Op = OpRequest
	f.HType = HTypeEther
	f.HLen = 6
	f.XID = 0xdeadbeef
	f.Secs = 42
	f.Flags = 0x8000
	f.CIAddr = net.ParseIP("192.0.2.1").To4()
	f.YIAddr = net.ParseIP("192.0.2.2").To4()
	f.SIAddr = net.ParseIP("192.0.2.3").To4()
	f.GIAddr = net.ParseIP("192.0.2.4").To4()
	copy(f.CHAddr[:], []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55})
	copy(f.SName[:], []byte("server"))
	copy(f.File[:], []byte("/boot/pxelinux.0"))

	b := f.Marshal()
	if len(b) != FrameSize {
		t.Fatalf("Marshal length = %d, want %d", len(b), FrameSize)
	}

	var got Frame
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(f, &got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if !got.BroadcastRequested() {
		t.Errorf("BroadcastRequested() = false, want true")
	}
}

func TestFrameUnmarshalTooShort(t *testing.T) {
	var f Frame
	err := f.Unmarshal(make([]byte, 10))
	if err == nil {
		t.Fatalf("Unmarshal of short buffer succeeded, want error")
	}
}

func TestFrameResetPreservesStorage(t *testing.T) {
	f := NewFrame()
	f.XID = 123
	f.Options[0] = 0x63
	f.Reset()
	if f.XID != 0 || f.Options[0] != 0 {
		t.Errorf("Reset did not clear frame fields")
	}
}
