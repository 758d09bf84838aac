package fionn

import "github.com/darach/fionn/internal/perr"

// Sentinel errors for the classes spec §7 names. Adapters and the
// scanner wrap one of these inside a *Diagnostic so callers can branch
// with errors.Is while still recovering the offending position via
// errors.As.
var (
	ErrTruncated    = perr.ErrTruncated
	ErrMalformed    = perr.ErrMalformed
	ErrEncoding     = perr.ErrEncoding
	ErrSchemaFormat = perr.ErrSchemaFormat
	ErrOverflow     = perr.ErrOverflow
	ErrLossRejected = perr.ErrLossRejected
)

// Diagnostic is the structured error every parse failure returns: a
// sentinel class plus the byte position and a human-readable detail.
// Parse failures are always returned, never logged (spec §7) — logging
// is reserved for operational traces of pooling and batch sharding, see
// SetLogger.
type Diagnostic = perr.Diagnostic
