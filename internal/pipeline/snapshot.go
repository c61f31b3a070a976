package pipeline

import (
	"strconv"
	"time"

	"github.com/hera-collab/catcher/internal/status"
)

// Snapshot is a point-in-time read of one reassembler's running counters,
// the form the status store and the external observability stage consume
// (spec.md §6).
type Snapshot struct {
	Dropped          uint64
	OutOfSeq         uint64
	ParityMismatches uint64
	Resets           uint64
	CapturedAt       time.Time
}

// CaptureSnapshot reads a reassembler's counters.
func CaptureSnapshot(r ReassemblerStats) Snapshot {
	dropped, outOfSeq, parity, resets := r.Stats()
	return Snapshot{
		Dropped:          dropped,
		OutOfSeq:         outOfSeq,
		ParityMismatches: parity,
		Resets:           resets,
	}
}

// PublishTo writes the snapshot's fields into the status store under the
// status package's well-known keys.
func (m Snapshot) PublishTo(st *status.Store) {
	st.Set(status.KeyDroppedPackets, strconv.FormatUint(m.Dropped, 10))
	st.Set(status.KeyOutOfSeqPackets, strconv.FormatUint(m.OutOfSeq, 10))
	st.Set(status.KeyParityMismatches, strconv.FormatUint(m.ParityMismatches, 10))
	st.Set(status.KeyResetCount, strconv.FormatUint(m.Resets, 10))
}
