// Package store implements the §6.1 store contract consumed by workers:
// per-worker sessions over a relational store of reservations, option
// templates, and leases. Session is the explicit per-worker owned handle
// called for in spec.md §9, replacing the original's thread-local map.
package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/iangodin/dhcpdb/wire"
)

// ErrStore wraps driver/connection failures (spec.md §7's store-error
// kind).
var ErrStore = errors.New("store error")

// ErrLeaseHeld names the case of ip already being leased to a different
// MAC. No backend in this package returns it: AcquireLease reports that
// case as (false, nil).
var ErrLeaseHeld = errors.New("lease held by another host")

// WildcardMAC is the all-zero MAC meaning "eligible for any host"
// (spec.md §3).
var WildcardMAC = net.HardwareAddr{0, 0, 0, 0, 0, 0}

// Reservation is a (ip, mac) eligibility record.
type Reservation struct {
	IP  net.IP
	MAC net.HardwareAddr
}

// OptionTemplate declares that Option applies to any IP in [IPLo, IPHi].
type OptionTemplate struct {
	IPLo, IPHi net.IP
	Option     wire.Option
}

// Lease is a (ip, mac, expires_at) claim.
type Lease struct {
	IP        net.IP
	MAC       net.HardwareAddr
	ExpiresAt time.Time
}

// Store opens per-worker Sessions.
type Store interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}

// Session is the per-worker handle over the store. Exactly the
// operations spec.md §6.1 lists; callers own the session exclusively for
// its lifetime (spec.md §3 "Ownership").
type Session interface {
	Close() error

	// GetIPs returns the IPv4 addresses eligible for mac, ordered by
	// specificity (explicit-MAC rows before the wildcard row) then
	// ascending IP. availableOnly excludes addresses currently leased to
	// a different MAC.
	GetIPs(ctx context.Context, mac net.HardwareAddr, availableOnly bool) ([]net.IP, error)

	// GetOptions returns every template option whose range covers ip.
	GetOptions(ctx context.Context, ip net.IP) ([]wire.Option, error)

	AddHost(ctx context.Context, ip net.IP, mac net.HardwareAddr) error
	RemoveHost(ctx context.Context, ip net.IP) error

	AddOption(ctx context.Context, ipLo, ipHi net.IP, opt wire.Option, replace bool) error
	RemoveOption(ctx context.Context, ipLo, ipHi net.IP, opt wire.Option) error

	AllHosts(ctx context.Context) ([]Reservation, error)
	AllOptions(ctx context.Context) ([]OptionTemplate, error)
	AllLeases(ctx context.Context) ([]Lease, error)

	// AcquireLease atomically inserts (ip, mac, now+seconds) when no row
	// exists for ip, or refreshes the row when (ip, mac) already
	// matches. It returns false (not an error) if ip is held by a
	// different mac — see spec.md §9's lease-refresh-ambiguity note,
	// resolved here toward the "intended" same-MAC-refresh semantics.
	AcquireLease(ctx context.Context, ip net.IP, mac net.HardwareAddr, seconds uint32) (bool, error)

	// ReleaseLease deletes the lease row iff (ip, mac) matches.
	ReleaseLease(ctx context.Context, ip net.IP, mac net.HardwareAddr) (bool, error)
}

func ipToUint32(ip net.IP) (uint32, error) {
	v4 := ip.To4()
	if v4 == nil {
		return 0, fmt.Errorf("%w: %s is not an IPv4 address", ErrStore, ip)
	}
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3]), nil
}

func uint32ToIP(n uint32) net.IP {
	return net.IPv4(byte(n>>24), byte(n>>16), byte(n>>8), byte(n)).To4()
}
