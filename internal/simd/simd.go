// Package simd implements the sum/difference kernel of spec.md §4.3: for
// each contiguous channel of a baseline's two time-parity halves, it
// computes `sum = even + odd` and `diff = even − odd` as 32-bit lane-wise
// integer vector operations.
//
// The kernel operates on 32-byte-aligned buffers so a real implementation
// can issue 256-bit (AVX2) loads/stores without a trailing unaligned
// access. Go's standard library and the vendored corpus expose no portable
// AVX2 intrinsic, so the arithmetic here is a scalar fallback; only the
// aligned-allocation discipline — over-allocate and slice from the first
// aligned address, the pointer-arithmetic idiom the corpus's bitmap/buddy
// allocators use to hand out block-aligned regions — is retained, so a
// later assembly-backed kernel can be dropped in behind the same
// allocation API without touching callers.
package simd

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// Alignment is the byte boundary sum/diff buffers must start on (32 bytes,
// one 256-bit vector register's width).
const Alignment = 32

// HasVectorSupport reports whether the running CPU has the 256-bit integer
// vector support (AVX2) a future assembly-backed kernel would dispatch on.
// The scalar kernel below ignores this; it exists so callers can log which
// code path they expect to be exercising.
func HasVectorSupport() bool {
	return cpu.X86.HasAVX2
}

// AlignedBuffer allocates a []int32 of the given length whose backing array
// starts at an address that is a multiple of Alignment.
func AlignedBuffer(length int) []int32 {
	if length == 0 {
		return nil
	}

	raw := make([]int32, length+Alignment/4)
	addr := uintptr(unsafe.Pointer(&raw[0]))
	pad := (Alignment - int(addr%Alignment)) % Alignment
	offset := pad / 4

	return raw[offset : offset+length]
}

// IsAligned reports whether buf's backing array starts at an
// Alignment-byte boundary.
func IsAligned(buf []int32) bool {
	if len(buf) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&buf[0]))%Alignment == 0
}

// SumDiff computes sum[i] = even[i]+odd[i] and diff[i] = even[i]-odd[i] for
// every lane, processing N_BL_PER_WRITE-sized chunks as the caller's loop
// unit (spec.md §4.3). even and odd must be the same length; sum and diff
// must each have at least that length and should be allocated with
// AlignedBuffer.
func SumDiff(even, odd, sum, diff []int32) error {
	if len(even) != len(odd) {
		return fmt.Errorf("simd: even/odd length mismatch (%d vs %d)", len(even), len(odd))
	}
	if len(sum) < len(even) || len(diff) < len(even) {
		return fmt.Errorf("simd: sum/diff buffers too small for %d lanes", len(even))
	}

	for i := range even {
		e, o := even[i], odd[i]
		sum[i] = e + o
		diff[i] = e - o
	}

	return nil
}

// ChanSum accumulates chanSum consecutive channels within each time parity
// before the SumDiff step, implementing spec.md §4.3's "if CHAN_SUM > 1, it
// accumulates CHAN_SUM consecutive channels". in holds nChan contiguous
// per-channel values; out holds nChan/chanSum accumulated values.
func ChanSum(in []int32, chanSum int) ([]int32, error) {
	if chanSum <= 0 {
		return nil, fmt.Errorf("simd: chanSum must be positive, got %d", chanSum)
	}
	if len(in)%chanSum != 0 {
		return nil, fmt.Errorf("simd: input length %d not divisible by chanSum %d", len(in), chanSum)
	}

	out := AlignedBuffer(len(in) / chanSum)
	for i := range out {
		var acc int32
		for j := 0; j < chanSum; j++ {
			acc += in[i*chanSum+j]
		}
		out[i] = acc
	}

	return out, nil
}
