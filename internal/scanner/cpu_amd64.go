//go:build amd64

package scanner

import "golang.org/x/sys/cpu"

func hasWideSIMD() bool {
	return cpu.X86.HasAVX2 || cpu.X86.HasSSE42
}
