// fence.go - MMIO ordering fence
//
// Go has no explicit compiler-fence intrinsic; a sequentially-consistent
// atomic read-modify-write on a dummy counter is the idiomatic stand-in
// (the Go memory model gives every atomic op a single total order), giving
// the "no reordering around MMIO" contract spec.md §4.1 asks for without
// reaching for platform-specific asm.

package memory

import "sync/atomic"

var mmioFenceCounter atomic.Uint64

func mmioFence() {
	mmioFenceCounter.Add(1)
}
