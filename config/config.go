// Package config implements the two configuration layers of spec.md
// §6.3: a bespoke line-oriented directive grammar (option declarations
// and free-form settings share one file), and free-form server settings
// bound through viper/cobra in settings.go.
package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/iangodin/dhcpdb/wire"
)

// Directives is the parsed result of a configuration file: the option
// grammar declared by its numeric-key lines, and the free-form settings
// declared by its non-numeric-key lines.
type Directives struct {
	Entries  []wire.Entry
	Settings map[string]string
}

// typeNames maps the §6.3/§3 type vocabulary used in config files to
// wire.ArgType, grounded on original_source/config.cpp's string-to-Type
// dispatch.
var typeNames = map[string]wire.ArgType{
	"ip":     wire.ArgAddress,
	"mac":    wire.ArgHWAddr,
	"uint32": wire.ArgUint32,
	"uint16": wire.ArgUint16,
	"uint8":  wire.ArgUint8,
	"hex":    wire.ArgHex,
	"string": wire.ArgString,
	"names":  wire.ArgNames,
	"...":    wire.ArgMore,
}

// Parse reads a configuration file per spec.md §6.3: blank lines and
// lines starting with `#` are skipped; every other line is `key =
// value`. A numeric key in (0,255) declares an option, with value of
// the form `name(type, type, ...)`; any other key is a free-form
// setting.
func Parse(r io.Reader) (*Directives, error) {
	d := &Directives{Settings: map[string]string{}}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := d.parseLine(text); err != nil {
			return nil, fmt.Errorf("%w: line %d: %s", wire.ErrParse, line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", wire.ErrParse, err)
	}
	return d, nil
}

func (d *Directives) parseLine(text string) error {
	eq := strings.IndexByte(text, '=')
	if eq <= 0 || eq == len(text)-1 {
		return fmt.Errorf("expected 'key = value'")
	}
	key := strings.TrimSpace(text[:eq])
	val := strings.TrimSpace(text[eq+1:])

	opt, err := strconv.Atoi(key)
	if err != nil {
		d.Settings[key] = val
		return nil
	}
	if opt <= 0 || opt >= 255 {
		return fmt.Errorf("option number %d out of range (0,255)", opt)
	}

	name, rawArgs, err := parseCallHeader(val)
	if err != nil {
		return err
	}
	args, err := parseArgTypes(rawArgs)
	if err != nil {
		return err
	}
	d.Entries = append(d.Entries, wire.Entry{ID: uint8(opt), Name: name, Args: args})
	return nil
}

// parseCallHeader splits "name(a, b, c)" into its name and raw,
// comma-split argument-type tokens.
func parseCallHeader(s string) (string, []string, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return "", nil, fmt.Errorf("expected 'name(type, type, ...)', got %q", s)
	}
	name := strings.TrimSpace(s[:open])
	if name == "" {
		return "", nil, fmt.Errorf("missing option name in %q", s)
	}
	inner := strings.TrimSpace(s[open+1 : len(s)-1])
	if inner == "" {
		return name, nil, nil
	}
	var tokens []string
	for _, t := range strings.Split(inner, ",") {
		tokens = append(tokens, strings.TrimSpace(t))
	}
	return name, tokens, nil
}

func parseArgTypes(tokens []string) ([]wire.ArgType, error) {
	var args []wire.ArgType
	for i, tok := range tokens {
		if tok == "" {
			return nil, fmt.Errorf("empty type token")
		}
		t, ok := typeNames[tok]
		if !ok {
			return nil, fmt.Errorf("unknown type %q", tok)
		}
		switch t {
		case wire.ArgHex, wire.ArgString, wire.ArgNames:
			if len(args) != 0 || len(tokens) > 1 {
				return nil, fmt.Errorf("%q must be the sole argument type", tok)
			}
		case wire.ArgMore:
			if i != len(tokens)-1 {
				return nil, fmt.Errorf("'...' must be at the end of the argument list")
			}
			if len(tokens) == 1 {
				return nil, fmt.Errorf("'...' must follow at least one concrete type")
			}
		}
		args = append(args, t)
	}
	return args, nil
}
