package tape

// SidecarVariant is implemented by every original-syntax detail a format
// adapter can attach to a tape index. The set mirrors the capability
// matrix spec §3.4 names: one variant per format-specific surface-syntax
// feature the normalised tape would otherwise discard.
type SidecarVariant interface{ sidecarVariant() }

// YAMLAnchorRecord notes that the value at a tape index was introduced
// by a YAML anchor of the given name.
type YAMLAnchorRecord struct{ Name string }

// YAMLAliasRecord notes that the value at a tape index is an alias
// referring to the named anchor.
type YAMLAliasRecord struct{ Target string }

// YAMLFlowStyleRecord notes that the container at a tape index was
// written in flow style ("[a, b]" / "{k: v}") rather than block style.
type YAMLFlowStyleRecord struct{}

// TOMLDottedKeyRecord notes that the value at a tape index was assigned
// through a dotted key ("a.b.c = v") rather than a "[a.b]" table header.
type TOMLDottedKeyRecord struct{ Full string }

// TOMLTripleQuotedRecord notes that the string at a tape index was
// written with triple-quote syntax (`"""..."""` or `'''...'''`).
type TOMLTripleQuotedRecord struct{}

// CSVQuotingRecord notes, for the row object/array starting at a tape
// index, which of its fields were originally RFC4180-quoted.
type CSVQuotingRecord struct{ Quoted []bool }

// ISONReferenceKindRecord notes the disambiguated kind (simple, typed, or
// relationship) of the reference at a tape index.
type ISONReferenceKindRecord struct{ Kind string }

// TOONFoldedKeyRecord notes that the Key node at a tape index (the first
// segment of the key) was written as a folded dotted key ("a.b.c: v")
// rather than nested blocks; Full is the whole dotted key.
type TOONFoldedKeyRecord struct{ Full string }

// TOONArrayHeaderRecord preserves a tabular array's original header line
// ("items[3]{id,name}:") verbatim.
type TOONArrayHeaderRecord struct{ Text string }

func (YAMLAnchorRecord) sidecarVariant()        {}
func (YAMLAliasRecord) sidecarVariant()         {}
func (YAMLFlowStyleRecord) sidecarVariant()     {}
func (TOMLDottedKeyRecord) sidecarVariant()     {}
func (TOMLTripleQuotedRecord) sidecarVariant()  {}
func (CSVQuotingRecord) sidecarVariant()        {}
func (ISONReferenceKindRecord) sidecarVariant() {}
func (TOONFoldedKeyRecord) sidecarVariant()     {}
func (TOONArrayHeaderRecord) sidecarVariant()   {}

// SidecarRecord pairs a tape index with the original-syntax detail it
// carries (spec §3.4's "ordered sequence of (tape_index, variant)
// records").
type SidecarRecord struct {
	TapeIndex int
	Variant   SidecarVariant
}
