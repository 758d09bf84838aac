// Package batch implements the line-boundary sharding that spec §5 allows
// as the only form of parallelism: each parse itself stays single
// threaded, but a caller with many independent lines (JSONL, ISONL, CSV
// rows) can fan them out across goroutines without any shard splitting a
// line in two.
package batch

import (
	"bytes"
	"fmt"

	"github.com/darach/fionn/tape"
)

// Shard is a half-open byte range [Start, End) of data that begins and
// ends on a line boundary (or at the start/end of the input).
type Shard struct {
	Start, End int
}

// SplitLines divides data into at most n shards, each aligned so no line
// is split across a shard boundary. It may return fewer than n shards if
// the input is small or has few line breaks.
func SplitLines(data []byte, n int) []Shard {
	if n < 1 {
		n = 1
	}
	if len(data) == 0 {
		return []Shard{{0, 0}}
	}
	if n == 1 {
		return []Shard{{0, len(data)}}
	}

	target := len(data) / n
	if target == 0 {
		return []Shard{{0, len(data)}}
	}

	var shards []Shard
	start := 0
	for len(shards) < n-1 {
		want := start + target
		if want >= len(data) {
			break
		}
		nl := bytes.IndexByte(data[want:], '\n')
		var end int
		if nl < 0 {
			end = len(data)
		} else {
			end = want + nl + 1
		}
		shards = append(shards, Shard{start, end})
		start = end
		if start >= len(data) {
			break
		}
	}
	if start < len(data) {
		shards = append(shards, Shard{start, len(data)})
	}
	return shards
}

// LineError identifies which line within a shard failed to parse.
type LineError struct {
	ShardIndex int
	LineIndex  int
	Err        error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("batch: shard %d line %d: %v", e.ShardIndex, e.LineIndex, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// ParseLineFunc parses one line-oriented record into a tape. The JSONL and
// ISONL adapters pass a closure of this shape.
type ParseLineFunc func(line []byte) (*tape.Tape, error)

// ParallelLines splits data into at most workers shards along line
// boundaries and runs parseLine over every non-empty line, one goroutine
// per line with at most workers running at once, preserving input order
// in the returned slice. Every line is parsed even after one fails; if
// any line fails, it returns no tapes and the error of the earliest
// failing line in input order, matching the halt-on-first-error model
// every single-document parse already follows (spec §7) — a batch is
// not given partial-recovery semantics a single document doesn't have.
func ParallelLines(data []byte, workers int, parseLine ParseLineFunc) ([]*tape.Tape, error) {
	shards := SplitLines(data, workers)

	type lineJob struct {
		shardIdx, lineIdx int
		line              []byte
		globalIdx         int
	}

	var jobs []lineJob
	globalIdx := 0
	for si, sh := range shards {
		lines := bytes.Split(data[sh.Start:sh.End], []byte("\n"))
		for li, ln := range lines {
			if len(ln) == 0 {
				continue
			}
			jobs = append(jobs, lineJob{si, li, ln, globalIdx})
			globalIdx++
		}
	}

	results := make([]*tape.Tape, len(jobs))
	errs := make([]error, len(jobs))

	type outcome struct {
		idx int
		t   *tape.Tape
		err error
	}
	out := make(chan outcome, len(jobs))
	sem := make(chan struct{}, workers)
	for _, j := range jobs {
		j := j
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			t, err := parseLine(j.line)
			if err != nil {
				err = &LineError{ShardIndex: j.shardIdx, LineIndex: j.lineIdx, Err: err}
			}
			out <- outcome{j.globalIdx, t, err}
		}()
	}
	for range jobs {
		o := <-out
		results[o.idx] = o.t
		errs[o.idx] = o.err
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
