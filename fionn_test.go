package fionn

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"

	"github.com/darach/fionn/schema"
	"github.com/darach/fionn/tape"
)

// kindSequence extracts a tape's node kinds for a human-readable diff
// when two tapes that should be structurally identical turn out not to
// be — cmp.Diff on the tapes themselves would have to reach into the
// arena's unexported fields, so the comparison is scoped to the one
// exported property that matters here.
func kindSequence(tp *tape.Tape) []tape.Kind {
	out := make([]tape.Kind, tp.Len())
	for i := range out {
		out[i] = tp.ValueKind(i)
	}
	return out
}

// TestScenarioBasicJSONSelectiveSchema is S1: a selective schema forces
// $.a and $.c.d fully while $.b is recorded as a single skip marker.
func TestScenarioBasicJSONSelectiveSchema(t *testing.T) {
	s, err := schema.Compile([]string{"$.a", "$.c.d"}, schema.Include)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	tp, err := Parse([]byte(`{"a":1,"b":[2,3,4],"c":{"d":5}}`), JSON, s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if tp.NodeAt(0).Kind != tape.ObjectStart {
		t.Fatalf("expected root ObjectStart")
	}
	idx, ok := tp.ResolvePath(0, schema.Root().Key("a"))
	if !ok || string(tp.Text(idx)) != "1" {
		t.Fatalf("a mismatch")
	}
	idx, ok = tp.ResolvePath(0, schema.Root().Key("c").Key("d"))
	if !ok || string(tp.Text(idx)) != "5" {
		t.Fatalf("c.d mismatch")
	}

	sawSkip := false
	for i := 0; i < tp.Len(); i++ {
		if tp.ValueKind(i) == tape.SkipMarker {
			sawSkip = true
			if tp.SkippedLen(i) != len(`[2,3,4]`) {
				t.Fatalf("expected b's skip marker to cover 7 bytes, got %d", tp.SkippedLen(i))
			}
		}
	}
	if !sawSkip {
		t.Fatalf("expected b to be recorded as a skip marker")
	}
}

// TestScenarioCSVBOMAndQuotedField is S2: a BOM-prefixed CSV document
// with a selective schema that keeps only the "name" column.
func TestScenarioCSVBOMAndQuotedField(t *testing.T) {
	s, err := schema.Compile([]string{"$[*].name"}, schema.Include)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("id,name\n1,\"Ada,Lovelace\"\n2,Bob\n")...)
	opts := DefaultOptions()
	tp, err := Parse(data, CSV, s, opts)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	idx, ok := tp.ResolvePath(0, schema.Root().Index(0).Key("name"))
	if !ok || string(tp.Text(idx)) != "Ada,Lovelace" {
		t.Fatalf("row 0 name mismatch, ok=%v got=%q", ok, tp.Text(idx))
	}
	idx, ok = tp.ResolvePath(0, schema.Root().Index(1).Key("name"))
	if !ok || string(tp.Text(idx)) != "Bob" {
		t.Fatalf("row 1 name mismatch")
	}
	idx, ok = tp.ResolvePath(0, schema.Root().Index(0).Key("id"))
	if !ok || tp.ValueKind(idx) != tape.SkipMarker {
		t.Fatalf("expected 'id' column to be recorded as a SkipMarker, ok=%v", ok)
	}
}

// TestScenarioTOMLDottedKeysVsTables is S4: a dotted key and a later
// table header for the same path merge; redeclaring the dotted key's
// leaf as a table is a conflict.
func TestScenarioTOMLDottedKeysVsTables(t *testing.T) {
	s, err := schema.Compile([]string{"$.**"}, schema.Include)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	tp, err := Parse([]byte("a.b = 1\n[a]\nc = 2\n"), TOML, s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	idx, ok := tp.ResolvePath(0, schema.Root().Key("a").Key("b"))
	if !ok || string(tp.Text(idx)) != "1" {
		t.Fatalf("a.b mismatch")
	}
	idx, ok = tp.ResolvePath(0, schema.Root().Key("a").Key("c"))
	if !ok || string(tp.Text(idx)) != "2" {
		t.Fatalf("a.c mismatch")
	}

	if _, err := Parse([]byte("a.b = 1\n[a.b]\nc = 2\n"), TOML, s, Options{}); err == nil {
		t.Fatalf("expected a dotted-key-vs-table conflict error")
	}
}

// TestScenarioJSONLShardParallelism is S6: parallel and sequential
// parses of the same JSONL input produce the same per-line results.
func TestScenarioJSONLShardParallelism(t *testing.T) {
	s, err := schema.Compile([]string{"$.**"}, schema.Include)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	var data []byte
	for i := 0; i < 200; i++ {
		data = append(data, []byte(`{"n":`+itoa(i)+`}`+"\n")...)
	}

	sequential, err := ParseLines(data, JSONL, s, Options{})
	if err != nil {
		t.Fatalf("sequential ParseLines: %v", err)
	}
	parallel, err := ParseLines(data, JSONL, s, Options{BatchWorkers: 4})
	if err != nil {
		t.Fatalf("parallel ParseLines: %v", err)
	}
	if len(sequential) != len(parallel) {
		t.Fatalf("line count mismatch: sequential=%d parallel=%d", len(sequential), len(parallel))
	}
	for i := range sequential {
		if !sequential[i].Equals(parallel[i]) {
			t.Fatalf("line %d differs between sequential and parallel parses:\n%s",
				i, cmp.Diff(kindSequence(sequential[i]), kindSequence(parallel[i])))
		}
	}
}

// TestParseLinesGzipMatchesUncompressed checks that decompressing and
// parsing a gzip-wrapped JSONL batch yields the same tapes as parsing
// the uncompressed bytes directly.
func TestParseLinesGzipMatchesUncompressed(t *testing.T) {
	s, err := schema.Compile([]string{"$.**"}, schema.Include)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	data := []byte(`{"n":1}` + "\n" + `{"n":2}` + "\n" + `{"n":3}` + "\n")

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	plain, err := ParseLines(data, JSONL, s, Options{})
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}
	compressed, err := ParseLinesGzip(&buf, JSONL, s, Options{})
	if err != nil {
		t.Fatalf("ParseLinesGzip: %v", err)
	}
	if len(plain) != len(compressed) {
		t.Fatalf("line count mismatch: plain=%d compressed=%d", len(plain), len(compressed))
	}
	for i := range plain {
		if !plain[i].Equals(compressed[i]) {
			t.Fatalf("line %d differs between plain and gzip-decoded parses", i)
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
