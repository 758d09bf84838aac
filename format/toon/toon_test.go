package toon

import (
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

func TestScalarAndNestedMapping(t *testing.T) {
	s := includeAll(t)
	doc := "name: widget\nmeta:\n  owner: alice\n  active: true\n"
	tp, err := Parse([]byte(doc), s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	idx, ok := tp.ResolvePath(0, schema.Root().Key("meta").Key("owner"))
	if !ok || string(tp.Text(idx)) != "alice" {
		t.Fatalf("meta.owner mismatch, ok=%v", ok)
	}
}

func TestTabularArrayHeader(t *testing.T) {
	s := includeAll(t)
	doc := "items[2]{id,name}:\n  1,alice\n  2,bob\n"
	tp, err := Parse([]byte(doc), s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	idx, ok := tp.ResolvePath(0, schema.Root().Key("items").Index(1).Key("name"))
	if !ok || string(tp.Text(idx)) != "bob" {
		t.Fatalf("items[1].name mismatch, ok=%v", ok)
	}
}

func TestTabularArrayPipeDelimiter(t *testing.T) {
	s := includeAll(t)
	doc := "items[2|]{id,name}:\n  1|alice\n  2|bob\n"
	tp, err := Parse([]byte(doc), s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	idx, ok := tp.ResolvePath(0, schema.Root().Key("items").Index(0).Key("name"))
	if !ok || string(tp.Text(idx)) != "alice" {
		t.Fatalf("items[0].name mismatch, ok=%v", ok)
	}
}

func TestTabularArrayLengthMismatchIsMalformed(t *testing.T) {
	s := includeAll(t)
	doc := "items[3]{id,name}:\n  1,alice\n  2,bob\n"
	_, err := Parse([]byte(doc), s, Options{})
	if err == nil {
		t.Fatalf("expected a length_mismatch error")
	}
}

func TestFoldedDottedKey(t *testing.T) {
	s := includeAll(t)
	doc := "a.b.c: 1\na.b.d: 2\n"
	tp, err := Parse([]byte(doc), s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	idx, ok := tp.ResolvePath(0, schema.Root().Key("a").Key("b").Key("d"))
	if !ok || string(tp.Text(idx)) != "2" {
		t.Fatalf("a.b.d mismatch, ok=%v", ok)
	}
}

func TestSelectiveSchemaSkipsSiblingBlock(t *testing.T) {
	s, err := schema.Compile([]string{"$.wanted"}, schema.Include)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	doc := "wanted:\n  x: 1\nignored:\n  y: 2\n"
	tp, err := Parse([]byte(doc), s, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sawSkip := false
	for i := 0; i < tp.Len(); i++ {
		if tp.ValueKind(i) == tape.SkipMarker {
			sawSkip = true
		}
	}
	if !sawSkip {
		t.Fatalf("expected the 'ignored' block to be skipped")
	}
}
