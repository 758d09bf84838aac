package batch

import (
	"bytes"
	"errors"
	"testing"

	"github.com/darach/fionn/internal/arena"
	"github.com/darach/fionn/tape"
)

func TestSplitLinesAligned(t *testing.T) {
	data := []byte("line1\nline2\nline3\nline4\n")
	shards := SplitLines(data, 2)
	for i, sh := range shards {
		if sh.End < len(data) && data[sh.End-1] != '\n' {
			t.Fatalf("shard %d (%d,%d) does not end on a line boundary", i, sh.Start, sh.End)
		}
	}
	// reassembling shards must reproduce the original bytes exactly.
	var buf bytes.Buffer
	for _, sh := range shards {
		buf.Write(data[sh.Start:sh.End])
	}
	if !bytes.Equal(buf.Bytes(), data) {
		t.Fatalf("shards do not cover the input exactly")
	}
}

func TestSplitLinesSmallInput(t *testing.T) {
	data := []byte("onlyline")
	shards := SplitLines(data, 8)
	if len(shards) != 1 {
		t.Fatalf("expected a single shard for input smaller than worker count, got %d", len(shards))
	}
}

func TestParallelLinesPreservesOrder(t *testing.T) {
	data := []byte("1\n2\n3\n4\n5\n")
	results, err := ParallelLines(data, 3, func(line []byte) (*tape.Tape, error) {
		b := tape.NewBuilder(arena.New(8), "test", 8)
		b.PushNumber(line)
		return b.Build(), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for i, r := range results {
		want := []byte{byte('1' + i)}
		if !bytes.Equal(r.Text(0), want) {
			t.Fatalf("result %d out of order: got %q want %q", i, r.Text(0), want)
		}
	}
}

func TestParallelLinesPropagatesError(t *testing.T) {
	data := []byte("ok\nbad\nok\n")
	wantErr := errors.New("boom")
	_, err := ParallelLines(data, 2, func(line []byte) (*tape.Tape, error) {
		if string(line) == "bad" {
			return nil, wantErr
		}
		b := tape.NewBuilder(arena.New(4), "test", 4)
		b.PushNull()
		return b.Build(), nil
	})
	var lineErr *LineError
	if !errors.As(err, &lineErr) {
		t.Fatalf("expected a *LineError, got %v", err)
	}
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected errors.Is to unwrap to the original error")
	}
}
