package writer

import (
	"encoding/binary"

	"github.com/hera-collab/catcher/internal/block"
	"github.com/hera-collab/catcher/internal/xtime"
)

// ExtractAutocorrelations copies each ant0==ant1 baseline's payload whose
// antenna slot is still empty out of a filled X-engine block into the
// autocorrelation side-channel block (later baselines of an antenna that is
// already present are skipped),
// mirroring original_source's disk thread "copy auto correlations to
// autocorr buffer" loop.
//
// Unlike the source, which computes the completing block's Julian time
// from `header.mcnt[bctr-1]` — the index left over from the preceding
// N_BL_PER_WRITE loop, which is only coincidentally the last baseline that
// completed the set of antennas — this computes it from the mcnt of the
// baseline whose MarkPresent call actually returned complete=true
// (spec.md §9 "Time-demux correctness").
func ExtractAutocorrelations(blk *block.XBlock, auto *block.AutocorrBlock, syncTimeMs int64, fengSampleRateHz float64, nChanTotalGenerated uint32) (completed bool, julianDate float64) {
	wordsPerAnt := len(auto.Data) / auto.NAntsTotal

	for b := 0; b < blk.Baselines; b++ {
		ant0 := blk.Header.AntPair0[b]
		ant1 := blk.Header.AntPair1[b]
		if ant0 != ant1 {
			continue
		}
		antenna := int(ant0)
		if antenna >= auto.NAntsTotal || auto.IsPresent(antenna) {
			continue
		}

		copyBaselinePayload(blk, auto, b, antenna, wordsPerAnt)

		if auto.MarkPresent(antenna) {
			completed = true
			julianDate = xtime.JulianDate(xtime.SpectrumTime(syncTimeMs, blk.Header.Mcnt[b], nChanTotalGenerated, fengSampleRateHz))
			auto.JulianTime = julianDate
		}
	}

	return completed, julianDate
}

// copyBaselinePayload copies one baseline's full (parity, xeng_slice,
// chan_chunk) payload region into the antenna's slot of the autocorrelation
// Data array, reinterpreting the big-endian wire words as int32.
func copyBaselinePayload(blk *block.XBlock, auto *block.AutocorrBlock, baseline, antenna, wordsPerAnt int) {
	cellsPerBaseline := blk.TimeParity * blk.XengSlices * blk.ChanChunks
	bytesPerVis := len(blk.Payload) / (blk.Baselines * cellsPerBaseline)

	start := blk.Offset(baseline, 0, 0, 0, bytesPerVis)
	end := start + cellsPerBaseline*bytesPerVis
	if end > len(blk.Payload) {
		end = len(blk.Payload)
	}

	destWords := auto.Data[antenna*wordsPerAnt : (antenna+1)*wordsPerAnt]
	n := (end - start) / 4
	if n > len(destWords) {
		n = len(destWords)
	}

	for i := 0; i < n; i++ {
		destWords[i] = int32(binary.BigEndian.Uint32(blk.Payload[start+i*4 : start+i*4+4]))
	}
}
