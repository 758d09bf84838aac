//go:build !amd64 && !arm64

package scanner

func hasWideSIMD() bool {
	return false
}
