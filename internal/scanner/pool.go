package scanner

import "sync"

// indexPool recycles the []uint32 structural-index scratch slices adapters
// use while walking a document, the same role the teacher's tokenPool
// played for []Token.
var indexPool = sync.Pool{
	New: func() interface{} {
		s := make([]uint32, 0, 64)
		return &s
	},
}

// GetIndexSlice returns a zero-length []uint32 with pooled capacity.
func GetIndexSlice() []uint32 {
	p := indexPool.Get().(*[]uint32)
	return (*p)[:0]
}

// PutIndexSlice returns a slice to the pool. Very large slices are dropped
// rather than pooled so one oversized document doesn't pin memory for
// every later parse.
func PutIndexSlice(s []uint32) {
	if cap(s) > 64*1024 {
		return
	}
	s = s[:0]
	indexPool.Put(&s)
}
