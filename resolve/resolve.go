// Package resolve provides the name-resolution helpers spec.md §1 treats
// as an external collaborator: forward lookup of a hostname to its IPv4
// address, and reverse lookup of an address back to a name, grounded on
// original_source/lookup.cpp's dns_lookup/ip_lookup/ip_string.
package resolve

import (
	"fmt"
	"net"
)

// Resolver performs forward and reverse DNS lookups against the host
// resolver. It implements both wire.Resolver and wire.ReverseResolver.
type Resolver struct{}

// New returns a Resolver backed by the system resolver.
func New() *Resolver { return &Resolver{} }

// LookupIPv4 resolves host to an IPv4 address, accepting a dotted-quad
// literal directly or a hostname via DNS, mirroring dns_lookup's
// numeric-first-then-DNS behavior.
func (r *Resolver) LookupIPv4(host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
		return nil, fmt.Errorf("resolve: %q is not an IPv4 address", host)
	}
	addrs, err := net.LookupHost(host)
	if err != nil {
		return nil, fmt.Errorf("resolve: looking up %q: %w", host, err)
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil {
			if v4 := ip.To4(); v4 != nil {
				return v4, nil
			}
		}
	}
	return nil, fmt.Errorf("resolve: %q has no IPv4 address", host)
}

// ReverseLookup resolves ip back to a hostname, the counterpart to
// ip_lookup in the original. An empty result with a nil error never
// happens; callers fall back to the dotted-quad form on any error.
func (r *Resolver) ReverseLookup(ip net.IP) (string, error) {
	names, err := net.LookupAddr(ip.String())
	if err != nil {
		return "", fmt.Errorf("resolve: reverse lookup of %s: %w", ip, err)
	}
	if len(names) == 0 {
		return "", fmt.Errorf("resolve: no PTR record for %s", ip)
	}
	name := names[0]
	if len(name) > 0 && name[len(name)-1] == '.' {
		name = name[:len(name)-1]
	}
	return name, nil
}
