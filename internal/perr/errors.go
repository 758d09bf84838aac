// Package perr holds the error sentinels and the structured Diagnostic
// type shared by every format adapter and the root fionn package. It
// exists only to break the import cycle that would otherwise result from
// format/* adapters and the root package both needing the same error
// vocabulary (spec §7).
package perr

import (
	"errors"
	"fmt"

	"github.com/darach/fionn/internal/scanner"
)

var (
	ErrTruncated    = errors.New("fionn: truncated input")
	ErrMalformed    = errors.New("fionn: malformed input")
	ErrEncoding     = errors.New("fionn: invalid encoding")
	ErrSchemaFormat = errors.New("fionn: invalid schema pattern")
	ErrOverflow     = errors.New("fionn: numeric overflow")
	ErrLossRejected = errors.New("fionn: lossless round-trip rejected")
)

// Diagnostic is the structured error every parse failure returns.
type Diagnostic struct {
	Class    error
	Position int
	Detail   string
}

func (d *Diagnostic) Error() string {
	if d.Detail == "" {
		return fmt.Sprintf("%v at byte %d", d.Class, d.Position)
	}
	return fmt.Sprintf("%v at byte %d: %s", d.Class, d.Position, d.Detail)
}

func (d *Diagnostic) Is(target error) bool { return errors.Is(d.Class, target) }
func (d *Diagnostic) Unwrap() error        { return d.Class }

func New(class error, position int, detail string) *Diagnostic {
	return &Diagnostic{Class: class, Position: position, Detail: detail}
}

// FromScanner classifies an error surfaced by internal/scanner into a
// Diagnostic, preserving position information where the scanner supplied
// it. fallbackPos is used for errors (like ErrTruncated) that don't carry
// their own position.
func FromScanner(err error, fallbackPos int) *Diagnostic {
	if err == nil {
		return nil
	}
	var malformed *scanner.MalformedError
	if errors.As(err, &malformed) {
		return New(ErrMalformed, malformed.Position, malformed.Detail)
	}
	if errors.Is(err, scanner.ErrTruncated) {
		return New(ErrTruncated, fallbackPos, err.Error())
	}
	return New(ErrMalformed, fallbackPos, err.Error())
}
