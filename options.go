package fionn

import "github.com/darach/fionn/tape"

// FidelityMode controls how much of the original source syntax a parse
// retains alongside the tape (spec §4.7).
type FidelityMode uint8

const (
	// FidelityLossy discards original formatting once a value has been
	// decoded (default, fastest).
	FidelityLossy FidelityMode = iota
	// FidelityLossless turns on each adapter's original-syntax sidecar
	// (the Lossless field of its options). The sidecar records only the
	// syntax forms an adapter tracks (anchors, aliases, dotted or folded
	// keys, quoting); it does not retain whitespace or comments, and the
	// JSON adapter records no entries.
	FidelityLossless
)

// ReferenceStrategy controls how the ISON adapter resolves cross-record
// references and how the YAML adapter handles aliases (spec §4.6). The
// TOON adapter does not use it.
type ReferenceStrategy uint8

const (
	// ReferenceResolve inlines the referenced value at the reference
	// site.
	ReferenceResolve ReferenceStrategy = iota
	// ReferenceDefer leaves an ISONReference marker node for the caller
	// to resolve later.
	ReferenceDefer
)

// Options configures a Parse call. The zero value gives lossy fidelity,
// resolved references, an auto-detected CSV delimiter with no BOM
// stripping and no header row, lenient TOON row counts, and no tape pool.
type Options struct {
	FidelityMode FidelityMode

	// CSV
	CSVDelimiter      byte // 0 means auto-detect from the first line
	CSVSkipBOM        bool
	CSVHasHeader      bool
	CSVAllowShortRows bool

	// ISON / TOON
	ReferenceStrategy ReferenceStrategy
	TOONStrictRowCount bool

	// Pool, when non-nil, supplies and reclaims Tape instances through
	// AcquireTape and ReleaseTape (spec §6.1). Parse and ParseLines do
	// not use it; they always build fresh tapes.
	Pool *tape.Pool

	// BatchWorkers, when >1 and the format is line-oriented
	// (JSONL/ISONL), enables line-sharded parallel parsing (spec §5).
	// CSV is always parsed on one goroutine.
	BatchWorkers int
}

// DefaultOptions returns the Options a caller should start from: BOM
// detection and header-row addressing on for CSV, lossy fidelity,
// resolved references, and no pool or batch sharding.
func DefaultOptions() Options {
	return Options{CSVSkipBOM: true, CSVHasHeader: true}
}
