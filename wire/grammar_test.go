package wire

import (
	"errors"
	"testing"
)

func twoAddressGrammar(t *testing.T) *Grammar {
	t.Helper()
	g, err := NewGrammar([]Entry{
		{ID: 3, Name: "router", Args: []ArgType{ArgAddress, ArgMore}},
		{ID: 1, Name: "subnet-mask", Args: []ArgType{ArgAddress}},
		{ID: 12, Name: "hostname", Args: []ArgType{ArgString}},
		{ID: 15, Name: "domain-name", Args: []ArgType{ArgNames}},
		{ID: 61, Name: "client-id", Args: []ArgType{ArgHex}},
	})
	if err != nil {
		t.Fatalf("NewGrammar: %v", err)
	}
	return g
}

func TestGrammarValidation(t *testing.T) {
	cases := []struct {
		name string
		args []ArgType
	}{
		{"hex-not-alone", []ArgType{ArgHex, ArgUint8}},
		{"string-not-alone", []ArgType{ArgString, ArgUint8}},
		{"names-not-alone", []ArgType{ArgNames, ArgUint8}},
		{"more-leading", []ArgType{ArgMore}},
		{"more-not-last", []ArgType{ArgMore, ArgUint8}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NewGrammar([]Entry{{ID: 10, Name: "x", Args: c.args}})
			if !errors.Is(err, ErrParse) {
				t.Fatalf("NewGrammar(%v) error = %v, want ErrParse", c.args, err)
			}
		})
	}
}

func TestGrammarOptionNumberRange(t *testing.T) {
	for _, id := range []uint8{0, 255} {
		_, err := NewGrammar([]Entry{{ID: id, Name: "x", Args: []ArgType{ArgUint8}}})
		if !errors.Is(err, ErrParse) {
			t.Fatalf("option id %d: error = %v, want ErrParse", id, err)
		}
	}
}

func TestGrammarDuplicateOverrides(t *testing.T) {
	g, err := NewGrammar([]Entry{
		{ID: 3, Name: "router", Args: []ArgType{ArgAddress}},
		{ID: 3, Name: "gateway", Args: []ArgType{ArgAddress, ArgMore}},
	})
	if err != nil {
		t.Fatalf("NewGrammar: %v", err)
	}
	if _, ok := g.Lookup("router"); ok {
		t.Errorf("stale name %q should no longer resolve", "router")
	}
	id, ok := g.Lookup("gateway")
	if !ok || id != 3 {
		t.Errorf("Lookup(gateway) = (%d, %v), want (3, true)", id, ok)
	}
}

func TestGrammarLookupMiss(t *testing.T) {
	g := twoAddressGrammar(t)
	if _, ok := g.Lookup("nonexistent"); ok {
		t.Errorf("Lookup of unknown name unexpectedly succeeded")
	}
}
