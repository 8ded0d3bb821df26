package store

import (
	"bytes"
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/iangodin/dhcpdb/wire"
)

// MemoryStore is an in-memory Store, grounded on the teacher's
// StaticBooter (pixiecore/booters.go): a fixed-answer stand-in
// implementation of the same collaborator interface the production
// backend satisfies, useful for quick-start runs and tests without a
// MySQL server.
type MemoryStore struct {
	mu     sync.Mutex
	hosts  []Reservation
	opts   []OptionTemplate
	leases map[string]Lease
	now    func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{leases: map[string]Lease{}, now: time.Now}
}

type memorySession struct {
	s *MemoryStore
	// Every table (reservations, option templates, leases) is held on
	// the store itself and shared by all sessions; a session is only a
	// handle onto them in this simplified in-memory backend.
}

// leases is keyed by dotted-quad IP string.
func (s *MemoryStore) leaseKey(ip net.IP) string { return ip.String() }

// NewSession returns a new handle over the shared in-memory tables.
func (s *MemoryStore) NewSession(ctx context.Context) (Session, error) {
	return &memorySession{s: s}, nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error { return nil }

func (m *memorySession) Close() error { return nil }

func (m *memorySession) GetIPs(ctx context.Context, mac net.HardwareAddr, availableOnly bool) ([]net.IP, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	type row struct {
		ip       net.IP
		explicit bool
	}
	var rows []row
	for _, h := range s.hosts {
		if bytes.Equal(h.MAC, mac) {
			rows = append(rows, row{h.IP, true})
		} else if bytes.Equal(h.MAC, WildcardMAC) {
			rows = append(rows, row{h.IP, false})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].explicit != rows[j].explicit {
			return rows[i].explicit // explicit-MAC rows first
		}
		return bytes.Compare(rows[i].ip.To4(), rows[j].ip.To4()) < 0
	})

	var out []net.IP
	for _, r := range rows {
		if availableOnly {
			if l, ok := s.leases[s.leaseKey(r.ip)]; ok && !bytes.Equal(l.MAC, mac) && s.now().Before(l.ExpiresAt) {
				continue
			}
		}
		out = append(out, r.ip)
	}
	return out, nil
}

func (m *memorySession) GetOptions(ctx context.Context, ip net.IP) ([]wire.Option, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	v4 := ip.To4()
	var out []wire.Option
	for _, t := range s.opts {
		if bytes.Compare(v4, t.IPLo.To4()) >= 0 && bytes.Compare(v4, t.IPHi.To4()) <= 0 {
			out = append(out, t.Option)
		}
	}
	return out, nil
}

func (m *memorySession) AddHost(ctx context.Context, ip net.IP, mac net.HardwareAddr) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hosts = append(s.hosts, Reservation{IP: ip.To4(), MAC: append(net.HardwareAddr(nil), mac...)})
	return nil
}

func (m *memorySession) RemoveHost(ctx context.Context, ip net.IP) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.hosts[:0]
	for _, h := range s.hosts {
		if !h.IP.Equal(ip) {
			out = append(out, h)
		}
	}
	s.hosts = out
	return nil
}

func (m *memorySession) AddOption(ctx context.Context, ipLo, ipHi net.IP, opt wire.Option, replace bool) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if replace {
		out := s.opts[:0]
		for _, t := range s.opts {
			if !(t.IPLo.Equal(ipLo) && t.IPHi.Equal(ipHi) && t.Option.ID == opt.ID) {
				out = append(out, t)
			}
		}
		s.opts = out
	}
	s.opts = append(s.opts, OptionTemplate{IPLo: ipLo.To4(), IPHi: ipHi.To4(), Option: opt})
	return nil
}

func (m *memorySession) RemoveOption(ctx context.Context, ipLo, ipHi net.IP, opt wire.Option) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.opts[:0]
	for _, t := range s.opts {
		if t.IPLo.Equal(ipLo) && t.IPHi.Equal(ipHi) && t.Option.ID == opt.ID && bytes.Equal(t.Option.Payload, opt.Payload) {
			continue
		}
		out = append(out, t)
	}
	s.opts = out
	return nil
}

func (m *memorySession) AllHosts(ctx context.Context) ([]Reservation, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Reservation(nil), s.hosts...), nil
}

func (m *memorySession) AllOptions(ctx context.Context) ([]OptionTemplate, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OptionTemplate(nil), s.opts...), nil
}

func (m *memorySession) AllLeases(ctx context.Context) ([]Lease, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Lease, 0, len(s.leases))
	for _, l := range s.leases {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IP.String() < out[j].IP.String() })
	return out, nil
}

func (m *memorySession) AcquireLease(ctx context.Context, ip net.IP, mac net.HardwareAddr, seconds uint32) (bool, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.leaseKey(ip)
	if existing, ok := s.leases[key]; ok && !bytes.Equal(existing.MAC, mac) {
		return false, nil
	}
	s.leases[key] = Lease{
		IP:        ip.To4(),
		MAC:       append(net.HardwareAddr(nil), mac...),
		ExpiresAt: s.now().Add(time.Duration(seconds) * time.Second),
	}
	return true, nil
}

func (m *memorySession) ReleaseLease(ctx context.Context, ip net.IP, mac net.HardwareAddr) (bool, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.leaseKey(ip)
	existing, ok := s.leases[key]
	if !ok || !bytes.Equal(existing.MAC, mac) {
		return false, nil
	}
	delete(s.leases, key)
	return true, nil
}
