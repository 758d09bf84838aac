package batch

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

// OpenGzip wraps r in a gzip reader when the caller's batch input arrives
// compressed — a common shape for JSONL/ISONL/CSV ingestion pipelines
// feeding line-sharded parses. klauspost/compress is used rather than the
// stdlib compress/gzip because it is already part of this module's
// dependency surface and is a drop-in faster decoder for exactly this
// read path.
func OpenGzip(r io.Reader) (io.ReadCloser, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	return gr, nil
}

// ReadAllGzip decompresses the entirety of a gzip-compressed batch input
// into memory. Line-sharded parsing needs the whole decompressed buffer
// up front to compute shard boundaries (SplitLines), so this is the
// expected entry point rather than streaming line-by-line off gr.
func ReadAllGzip(r io.Reader) ([]byte, error) {
	gr, err := OpenGzip(r)
	if err != nil {
		return nil, err
	}
	defer gr.Close()
	return io.ReadAll(gr)
}
