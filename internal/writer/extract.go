package writer

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/hera-collab/catcher/internal/block"
	"github.com/hera-collab/catcher/internal/simd"
)

// extractEvenOdd pulls the even (time_parity 0) and odd (time_parity 1)
// 32-bit visibility words for count contiguous baselines starting at
// start out of blk's payload, flattening (xeng_slice, chan_chunk, word)
// in that order per baseline — the layout compute_sum_diff's inner loops
// walk in original_source/src/hera_catcher_disk_thread.c. It also returns
// the number of words occupied by one baseline, so callers can slice the
// resulting sum/diff buffers back into per-baseline chunks.
func extractEvenOdd(blk *block.XBlock, start, count int) (even, odd []int32, wordsPerBaseline int) {
	cellsPerBaseline := blk.XengSlices * blk.ChanChunks
	bytesPerVis := len(blk.Payload) / (blk.Baselines * blk.TimeParity * cellsPerBaseline)
	wordsPerVis := bytesPerVis / 4
	if wordsPerVis == 0 {
		wordsPerVis = 1
	}
	wordsPerBaseline = cellsPerBaseline * wordsPerVis

	n := count * wordsPerBaseline
	even = make([]int32, n)
	odd = make([]int32, n)

	idx := 0
	for b := start; b < start+count; b++ {
		for xs := 0; xs < blk.XengSlices; xs++ {
			for cc := 0; cc < blk.ChanChunks; cc++ {
				evenOff := blk.Offset(b, 0, xs, cc, bytesPerVis)
				oddOff := blk.Offset(b, 1%blk.TimeParity, xs, cc, bytesPerVis)
				for word := 0; word < wordsPerVis; word++ {
					even[idx] = readBE32(blk.Payload, evenOff+word*4)
					odd[idx] = readBE32(blk.Payload, oddOff+word*4)
					idx++
				}
			}
		}
	}

	return even, odd, wordsPerBaseline
}

// reduceChanSum accumulates chanSum consecutive raw channels within each
// baseline, keeping each of laneWidth interleaved stokes/complexity words
// separate, matching compute_sum_diff's per-lane channel accumulation in
// original_source/src/hera_catcher_disk_thread.c ("if CATCHER_CHAN_SUM_BDA
// != 1 { add CATCHER_CHAN_SUM_BDA consecutive channels }", spec.md §4.3).
// words holds count baselines of wordsPerBaseline raw words each; it
// returns the reduced buffer and the new (smaller) words-per-baseline,
// unchanged when chanSum is 1.
func reduceChanSum(words []int32, count, wordsPerBaseline, chanSum, laneWidth int) ([]int32, int, error) {
	if chanSum <= 1 {
		return words, wordsPerBaseline, nil
	}
	if laneWidth <= 0 || wordsPerBaseline%laneWidth != 0 {
		return nil, 0, fmt.Errorf("writer: words_per_baseline %d is not a multiple of n_stokes*2 (%d)", wordsPerBaseline, laneWidth)
	}

	nChanRaw := wordsPerBaseline / laneWidth
	if nChanRaw%chanSum != 0 {
		return nil, 0, fmt.Errorf("writer: raw channel count %d not divisible by chan_sum %d", nChanRaw, chanSum)
	}
	nChanOut := nChanRaw / chanSum
	outPerBaseline := nChanOut * laneWidth

	out := simd.AlignedBuffer(count * outPerBaseline)
	lane := make([]int32, nChanRaw)

	for b := 0; b < count; b++ {
		baseIn := b * wordsPerBaseline
		baseOut := b * outPerBaseline
		for l := 0; l < laneWidth; l++ {
			for c := 0; c < nChanRaw; c++ {
				lane[c] = words[baseIn+c*laneWidth+l]
			}
			reduced, err := simd.ChanSum(lane, chanSum)
			if err != nil {
				return nil, 0, err
			}
			for c := 0; c < nChanOut; c++ {
				out[baseOut+c*laneWidth+l] = reduced[c]
			}
		}
	}

	return out, outPerBaseline, nil
}

func readBE32(buf []byte, off int) int32 {
	if off+4 > len(buf) {
		return 0
	}
	return int32(binary.BigEndian.Uint32(buf[off : off+4]))
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
