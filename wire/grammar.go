package wire

import "fmt"

// ArgType is one of the closed set of option-argument encodings in
// spec.md §3.
type ArgType int

const (
	ArgAddress ArgType = iota
	ArgHWAddr
	ArgUint32
	ArgUint16
	ArgUint8
	ArgString
	ArgNames
	ArgHex
	// ArgMore is a pseudo-type: "repeat the immediately preceding type
	// for every remaining argument". Valid only as the final element of
	// an argument-type vector.
	ArgMore
)

func (t ArgType) String() string {
	switch t {
	case ArgAddress:
		return "ip"
	case ArgHWAddr:
		return "mac"
	case ArgUint32:
		return "uint32"
	case ArgUint16:
		return "uint16"
	case ArgUint8:
		return "uint8"
	case ArgString:
		return "string"
	case ArgNames:
		return "names"
	case ArgHex:
		return "hex"
	case ArgMore:
		return "..."
	default:
		return "?"
	}
}

// Entry is one option-grammar declaration: a numeric ID, its name, and
// its ordered argument-type vector.
type Entry struct {
	ID   uint8
	Name string
	Args []ArgType
}

// Grammar is the read-only, immutable-after-load numeric-ID ↔ name ↔
// argument-type-vector registry of spec.md §4.B. It carries no process-
// wide mutable state (spec.md §9): callers thread a *Grammar value
// through the codec instead of reaching a global.
type Grammar struct {
	byName map[string]uint8
	byID   map[uint8]string
	args   map[uint8][]ArgType
	order  []uint8 // insertion order, for stable listing
}

// NewGrammar validates and builds a Grammar from a set of entries.
// Later entries with a duplicate numeric ID or name override earlier
// ones (last wins), per spec.md §4.B.
func NewGrammar(entries []Entry) (*Grammar, error) {
	g := &Grammar{
		byName: make(map[string]uint8),
		byID:   make(map[uint8]string),
		args:   make(map[uint8][]ArgType),
	}
	for _, e := range entries {
		if err := g.add(e); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *Grammar) add(e Entry) error {
	if e.ID == 0 || e.ID == 255 {
		return fmt.Errorf("%w: option number %d out of range [1,254]", ErrParse, e.ID)
	}
	if err := validateArgs(e.Args); err != nil {
		return fmt.Errorf("%w: option %d (%s): %s", ErrParse, e.ID, e.Name, err)
	}
	if _, exists := g.byID[e.ID]; !exists {
		g.order = append(g.order, e.ID)
	}
	if old, exists := g.byID[e.ID]; exists && old != e.Name {
		delete(g.byName, old)
	}
	g.byID[e.ID] = e.Name
	g.byName[e.Name] = e.ID
	g.args[e.ID] = e.Args
	return nil
}

func validateArgs(args []ArgType) error {
	if len(args) == 0 {
		return fmt.Errorf("empty argument list")
	}
	for i, t := range args {
		switch t {
		case ArgHex, ArgString, ArgNames:
			if len(args) != 1 {
				return fmt.Errorf("%s must be the sole argument type", t)
			}
		case ArgMore:
			if i != len(args)-1 {
				return fmt.Errorf("'...' may only appear at the end")
			}
			if i == 0 {
				return fmt.Errorf("'...' must follow at least one concrete type")
			}
		}
	}
	return nil
}

// Lookup resolves a name to its numeric ID.
func (g *Grammar) Lookup(name string) (uint8, bool) {
	id, ok := g.byName[name]
	return id, ok
}

// Name resolves a numeric ID to its name.
func (g *Grammar) Name(id uint8) (string, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// Args returns the argument-type vector declared for id.
func (g *Grammar) Args(id uint8) ([]ArgType, bool) {
	a, ok := g.args[id]
	return a, ok
}

// Entries returns the grammar's entries in load order.
func (g *Grammar) Entries() []Entry {
	out := make([]Entry, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, Entry{ID: id, Name: g.byID[id], Args: g.args[id]})
	}
	return out
}

// expand returns the argument-type vector to use for n arguments,
// applying the "more" and bare-"names" repetition rules of spec.md
// §4.C steps 3-4.
func expand(t []ArgType, n int) ([]ArgType, error) {
	out := append([]ArgType(nil), t...)
	if len(out) > 0 && out[len(out)-1] == ArgMore {
		out = out[:len(out)-1]
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: '...' with no preceding type", ErrParse)
		}
		last := out[len(out)-1]
		for len(out) < n {
			out = append(out, last)
		}
		return out, nil
	}
	if len(out) == 1 && out[0] == ArgNames {
		for len(out) < n {
			out = append(out, ArgNames)
		}
		return out, nil
	}
	return out, nil
}
