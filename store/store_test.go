package store

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/iangodin/dhcpdb/wire"
)

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC(s)
	if err != nil {
		t.Fatalf("ParseMAC(%q): %s", s, err)
	}
	return mac
}

func TestGetIPsOrdersExplicitBeforeWildcard(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	sess, _ := s.NewSession(ctx)
	defer sess.Close()

	mac := mustMAC(t, "aa:bb:cc:dd:ee:ff")
	sess.AddHost(ctx, net.ParseIP("192.0.2.5"), WildcardMAC)
	sess.AddHost(ctx, net.ParseIP("192.0.2.1"), WildcardMAC)
	sess.AddHost(ctx, net.ParseIP("192.0.2.10"), mac)

	got, err := sess.GetIPs(ctx, mac, false)
	if err != nil {
		t.Fatalf("GetIPs: %s", err)
	}
	want := []net.IP{
		net.ParseIP("192.0.2.10").To4(),
		net.ParseIP("192.0.2.1").To4(),
		net.ParseIP("192.0.2.5").To4(),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetIPs mismatch (-want +got):\n%s", diff)
	}
}

func TestGetIPsExcludesLeasedToOtherMAC(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	sess, _ := s.NewSession(ctx)
	defer sess.Close()

	macA := mustMAC(t, "aa:aa:aa:aa:aa:aa")
	macB := mustMAC(t, "bb:bb:bb:bb:bb:bb")
	ip := net.ParseIP("192.0.2.20")
	sess.AddHost(ctx, ip, WildcardMAC)

	ok, err := sess.AcquireLease(ctx, ip, macA, 3600)
	if err != nil || !ok {
		t.Fatalf("AcquireLease(macA) = %v, %v", ok, err)
	}

	got, err := sess.GetIPs(ctx, macB, true)
	if err != nil {
		t.Fatalf("GetIPs: %s", err)
	}
	for _, g := range got {
		if g.Equal(ip) {
			t.Errorf("GetIPs(macB, available) still returned %s, leased to a different mac", ip)
		}
	}

	got, err = sess.GetIPs(ctx, macA, true)
	if err != nil {
		t.Fatalf("GetIPs: %s", err)
	}
	found := false
	for _, g := range got {
		if g.Equal(ip) {
			found = true
		}
	}
	if !found {
		t.Errorf("GetIPs(macA, available) dropped %s, which is leased to macA itself", ip)
	}
}

func TestAcquireLeaseSameMACRefreshes(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	sess, _ := s.NewSession(ctx)
	defer sess.Close()

	mac := mustMAC(t, "11:22:33:44:55:66")
	ip := net.ParseIP("192.0.2.30")

	ok, err := sess.AcquireLease(ctx, ip, mac, 60)
	if err != nil || !ok {
		t.Fatalf("first AcquireLease = %v, %v", ok, err)
	}
	ok, err = sess.AcquireLease(ctx, ip, mac, 120)
	if err != nil || !ok {
		t.Fatalf("refresh AcquireLease = %v, %v", ok, err)
	}

	leases, err := sess.AllLeases(ctx)
	if err != nil {
		t.Fatalf("AllLeases: %s", err)
	}
	if len(leases) != 1 {
		t.Fatalf("AllLeases returned %d rows, want 1 (refresh must not duplicate)", len(leases))
	}
}

func TestAcquireLeaseDifferentMACRefused(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	sess, _ := s.NewSession(ctx)
	defer sess.Close()

	macA := mustMAC(t, "aa:aa:aa:aa:aa:aa")
	macB := mustMAC(t, "bb:bb:bb:bb:bb:bb")
	ip := net.ParseIP("192.0.2.40")

	ok, err := sess.AcquireLease(ctx, ip, macA, 60)
	if err != nil || !ok {
		t.Fatalf("AcquireLease(macA) = %v, %v", ok, err)
	}
	ok, err = sess.AcquireLease(ctx, ip, macB, 60)
	if err != nil {
		t.Fatalf("AcquireLease(macB) returned error: %s", err)
	}
	if ok {
		t.Errorf("AcquireLease(macB) = true, want false: ip already held by macA")
	}

	// Invariant: no lease row names a MAC other than the original holder.
	leases, err := sess.AllLeases(ctx)
	if err != nil {
		t.Fatalf("AllLeases: %s", err)
	}
	for _, l := range leases {
		if l.IP.Equal(ip) && string(l.MAC) != string(macA) {
			t.Errorf("lease for %s now held by %s, want %s", ip, l.MAC, macA)
		}
	}
}

func TestReleaseLeaseRequiresMatchingMAC(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	sess, _ := s.NewSession(ctx)
	defer sess.Close()

	macA := mustMAC(t, "aa:aa:aa:aa:aa:aa")
	macB := mustMAC(t, "bb:bb:bb:bb:bb:bb")
	ip := net.ParseIP("192.0.2.50")

	sess.AcquireLease(ctx, ip, macA, 60)

	ok, err := sess.ReleaseLease(ctx, ip, macB)
	if err != nil {
		t.Fatalf("ReleaseLease(macB): %s", err)
	}
	if ok {
		t.Errorf("ReleaseLease(macB) = true, want false: lease is held by macA")
	}

	ok, err = sess.ReleaseLease(ctx, ip, macA)
	if err != nil {
		t.Fatalf("ReleaseLease(macA): %s", err)
	}
	if !ok {
		t.Errorf("ReleaseLease(macA) = false, want true")
	}

	// Once released, any MAC can acquire it again.
	macC := mustMAC(t, "cc:cc:cc:cc:cc:cc")
	ok, err = sess.AcquireLease(ctx, ip, macC, 60)
	if err != nil || !ok {
		t.Fatalf("AcquireLease(macC) after release = %v, %v", ok, err)
	}
}

func TestGetOptionsFiltersByRange(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	sess, _ := s.NewSession(ctx)
	defer sess.Close()

	opt := wire.Option{ID: 3, Payload: []byte{192, 0, 2, 1}}
	sess.AddOption(ctx, net.ParseIP("192.0.2.0"), net.ParseIP("192.0.2.255"), opt, false)

	got, err := sess.GetOptions(ctx, net.ParseIP("192.0.2.128"))
	if err != nil {
		t.Fatalf("GetOptions: %s", err)
	}
	if len(got) != 1 || got[0].ID != 3 {
		t.Errorf("GetOptions(in range) = %+v, want one option id 3", got)
	}

	got, err = sess.GetOptions(ctx, net.ParseIP("203.0.113.1"))
	if err != nil {
		t.Fatalf("GetOptions: %s", err)
	}
	if len(got) != 0 {
		t.Errorf("GetOptions(out of range) = %+v, want none", got)
	}
}

func TestAddOptionReplaceSuppressesDuplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	sess, _ := s.NewSession(ctx)
	defer sess.Close()

	lo, hi := net.ParseIP("10.0.0.0"), net.ParseIP("10.0.0.255")
	opt := wire.Option{ID: 51, Payload: []byte{0, 0, 14, 16}}

	sess.AddOption(ctx, lo, hi, opt, true)
	sess.AddOption(ctx, lo, hi, opt, true)

	all, err := sess.AllOptions(ctx)
	if err != nil {
		t.Fatalf("AllOptions: %s", err)
	}
	count := 0
	for _, t2 := range all {
		if t2.Option.ID == 51 {
			count++
		}
	}
	if count != 1 {
		t.Errorf("replace-add left %d rows for option 51, want 1", count)
	}
}

func TestRemoveHostDropsReservation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	sess, _ := s.NewSession(ctx)
	defer sess.Close()

	mac := mustMAC(t, "de:ad:be:ef:00:01")
	ip := net.ParseIP("192.0.2.77")
	sess.AddHost(ctx, ip, mac)
	sess.RemoveHost(ctx, ip)

	got, err := sess.GetIPs(ctx, mac, false)
	if err != nil {
		t.Fatalf("GetIPs: %s", err)
	}
	for _, g := range got {
		if g.Equal(ip) {
			t.Errorf("GetIPs still returned %s after RemoveHost", ip)
		}
	}
}

func TestGetIPsTreatsExpiredLeaseAsAvailable(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()
	sess, _ := s.NewSession(ctx)
	defer sess.Close()

	macA := mustMAC(t, "aa:aa:aa:aa:aa:aa")
	macB := mustMAC(t, "bb:bb:bb:bb:bb:bb")
	ip := net.ParseIP("192.0.2.90")
	sess.AddHost(ctx, ip, WildcardMAC)

	ok, err := sess.AcquireLease(ctx, ip, macA, 1)
	if err != nil || !ok {
		t.Fatalf("AcquireLease(macA) = %v, %v", ok, err)
	}

	now = now.Add(2 * time.Second)
	got, err := sess.GetIPs(ctx, macB, true)
	if err != nil {
		t.Fatalf("GetIPs: %s", err)
	}
	found := false
	for _, g := range got {
		if g.Equal(ip) {
			found = true
		}
	}
	if !found {
		t.Errorf("GetIPs(macB, available) excluded %s, whose lease has expired", ip)
	}
}
