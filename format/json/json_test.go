package json

import (
	"encoding/json"
	"testing"

	"github.com/darach/fionn/schema"
	"github.com/darach/fionn/tape"
)

func includeAll(t *testing.T) *schema.Schema {
	s, err := schema.Compile([]string{"$.**"}, schema.Include)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return s
}

func TestParseBasicObject(t *testing.T) {
	s := includeAll(t)
	doc := `{"a":1,"b":"x","c":[true,false,null],"d":{"e":2.5}}`
	tp, err := Parse([]byte(doc), s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tp.ValueKind(0) != tape.ObjectStart {
		t.Fatalf("root should be ObjectStart, got %v", tp.ValueKind(0))
	}
	if tp.ValueKind(tp.Len()-1) != tape.ObjectEnd {
		t.Fatalf("last node should be the root's ObjectEnd, got %v", tp.ValueKind(tp.Len()-1))
	}
}

func TestParseSelectiveSchemaSkipsSiblings(t *testing.T) {
	s, err := schema.Compile([]string{"$.wanted"}, schema.Include)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	doc := `{"wanted":{"x":1},"ignored":{"y":[1,2,3,4,5]}}`
	tp, err := Parse([]byte(doc), s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	sawSkipMarker := false
	sawIgnoredKey := false
	for i := 0; i < tp.Len(); i++ {
		switch {
		case tp.ValueKind(i) == tape.SkipMarker:
			sawSkipMarker = true
		case tp.ValueKind(i) == tape.Key && string(tp.Text(i)) == "ignored":
			sawIgnoredKey = true
		}
	}
	if !sawSkipMarker {
		t.Fatalf("expected the 'ignored' subtree to be represented by a SkipMarker")
	}
	if !sawIgnoredKey {
		t.Fatalf("the 'ignored' key itself should still be recorded")
	}

	idx, ok := tp.ResolvePath(0, schema.Root().Key("wanted").Key("x"))
	if !ok {
		t.Fatalf("expected $.wanted.x to resolve")
	}
	if string(tp.Text(idx)) != "1" {
		t.Fatalf("wanted.x = %q, want 1", tp.Text(idx))
	}
}

func TestNumberTextPreserved(t *testing.T) {
	s := includeAll(t)
	tp, err := Parse([]byte(`1.50`), s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if string(tp.Text(0)) != "1.50" {
		t.Fatalf("number text = %q, want 1.50 (verbatim)", tp.Text(0))
	}
}

func TestTruncatedInput(t *testing.T) {
	s := includeAll(t)
	if _, err := Parse([]byte(`{"a":`), s, Options{}); err == nil {
		t.Fatalf("expected an error for truncated input")
	}
}

func TestMalformedInput(t *testing.T) {
	s := includeAll(t)
	if _, err := Parse([]byte(`{"a" 1}`), s, Options{}); err == nil {
		t.Fatalf("expected an error for a missing ':'")
	}
}

// TestDifferentialAgainstStdlib checks, for fully-included schemas, that
// every scalar the adapter emits matches what encoding/json decodes for
// the same document — the compatibility-test pattern carried over from
// the teacher repo (see DESIGN.md).
func TestDifferentialAgainstStdlib(t *testing.T) {
	doc := `{"name":"widget","count":3,"tags":["a","b"],"meta":{"active":true}}`
	var want map[string]any
	if err := json.Unmarshal([]byte(doc), &want); err != nil {
		t.Fatalf("stdlib Unmarshal: %v", err)
	}

	s := includeAll(t)
	tp, err := Parse([]byte(doc), s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	idx, ok := tp.ResolvePath(0, schema.Root().Key("name"))
	if !ok || string(tp.Text(idx)) != want["name"] {
		t.Fatalf("name mismatch against stdlib decode")
	}
	idx, ok = tp.ResolvePath(0, schema.Root().Key("meta").Key("active"))
	if !ok || !tp.Bool(idx) {
		t.Fatalf("meta.active mismatch against stdlib decode")
	}
}
