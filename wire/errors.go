package wire

import "errors"

// Error kinds per spec.md §7. They are wrapped with fmt.Errorf("...: %w",
// ...) at the point of detection and tested with errors.Is/errors.As,
// replacing the original's exception-based discipline (spec.md §9).
var (
	// ErrParse covers malformed configuration or option-text input; fatal
	// to the admin command that triggered it.
	ErrParse = errors.New("parse error")
	// ErrWire covers malformed wire data: bad length, missing cookie,
	// oversized option area. The frame is dropped, no reply sent.
	ErrWire = errors.New("wire error")
	// ErrUnknownOption is returned when a human-form option name has no
	// grammar entry.
	ErrUnknownOption = errors.New("unknown option")
	// ErrArity is returned when an encode call's argument count doesn't
	// match the grammar's argument-type vector.
	ErrArity = errors.New("arity error")
	// ErrRange is returned when a numeric argument overflows its type.
	ErrRange = errors.New("range error")
	// ErrTooLong is returned when an encoded option's payload exceeds 255
	// bytes.
	ErrTooLong = errors.New("option too long")
	// ErrBadName is returned by pack-name on invalid domain-name input.
	ErrBadName = errors.New("bad name")
	// ErrOverflow is returned by fill when the option area would exceed
	// its 312-byte budget.
	ErrOverflow = errors.New("option overflow")
)
