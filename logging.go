package fionn

import "go.uber.org/zap"

// log is the package-level logger reserved for operational traces. No
// code in this module writes to it: tape.Pool logs through its own
// PoolOptions.Logger and internal/batch does not log. Parse failures are
// never logged here — they are returned as *Diagnostic values so a
// caller decides what, if anything, to log.
var log *zap.Logger = zap.NewNop()

// SetLogger overrides the package-level logger. Passing nil restores the
// no-op default.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	log = l
}
