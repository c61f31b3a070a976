package reassemble

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hera-collab/catcher/internal/block"
	"github.com/hera-collab/catcher/internal/ring"
	"github.com/hera-collab/catcher/internal/wire"
)

// XConfig parameterizes an X-engine Reassembler: the counter/ring geometry
// plus the block payload shape it must allocate (spec.md §3, §4.2).
type XConfig struct {
	BlockSize           uint64
	RingSize            int
	MaxOutOfSeqPkts     int64
	LateThresholdBlocks uint64

	// TimeIndex and TimeDemux are this instance's mcnt parity assignment
	// when multiple catcher instances time-demux a shared mcnt stream
	// (spec.md §4.2 "Time-demuxing"). TimeDemux=1 disables the check.
	TimeIndex uint64
	TimeDemux uint64
	// TimeDemuxNt folds Nt consecutive mcnts together before taking parity,
	// matching the source's `(mcnt/Nt) % TIME_DEMUX`.
	TimeDemuxNt uint64

	// Baselines, XengSlices, and ChanChunks describe the block payload
	// shape; TimeDemuxNt doubles as the block's time_parity dimension.
	Baselines   int
	XengSlices  int
	ChanChunks  int
	BytesPerVis int

	BurstMessageThreshold int
	BurstMaxDuration      time.Duration
}

// XReassembler implements the X-engine instance of the reassembler common
// contract (spec.md §4.2), writing visibility packets into a ring of
// *block.XBlock.
type XReassembler struct {
	cfg XConfig
	log *zap.SugaredLogger

	ring *ring.Ring[*block.XBlock]
	info *binfo

	lateWarn   *throttle
	oosWarn    *throttle
	parityWarn *throttle

	dropped    uint64
	outOfSeq   uint64
	parityMiss uint64
}

// NewXReassembler allocates the ring (every slot pre-sized to cfg's block
// shape) and the anchor-tracking state.
func NewXReassembler(cfg XConfig, log *zap.SugaredLogger) *XReassembler {
	r := ring.New[*block.XBlock](cfg.RingSize)
	for i := 0; i < cfg.RingSize; i++ {
		*r.At(i) = block.NewXBlock(cfg.Baselines, int(cfg.TimeDemuxNt), cfg.XengSlices, cfg.ChanChunks, cfg.BytesPerVis)
	}

	return &XReassembler{
		cfg:        cfg,
		log:        log,
		ring:       r,
		info:       newBinfo(cfg.BlockSize, cfg.RingSize, cfg.MaxOutOfSeqPkts, cfg.LateThresholdBlocks),
		lateWarn:   newThrottle(cfg.BurstMessageThreshold, cfg.BurstMaxDuration),
		oosWarn:    newThrottle(cfg.BurstMessageThreshold, cfg.BurstMaxDuration),
		parityWarn: newThrottle(cfg.BurstMessageThreshold, cfg.BurstMaxDuration),
	}
}

// Ring exposes the assembled-block ring for the downstream writer stage to
// consume from.
func (m *XReassembler) Ring() *ring.Ring[*block.XBlock] {
	return m.ring
}

// ProcessPacket classifies and applies one already-decoded X-engine packet,
// writing its payload into the appropriate ring slot. It blocks only when a
// packet advances the anchor: the slot two blocks ahead is then awaited
// with BusywaitFree for up to 5s (or until ctx is canceled).
func (m *XReassembler) ProcessPacket(ctx context.Context, h wire.XHeader, payload []byte) error {
	counter := uint64(h.Bcnt)

	if !m.info.initialized {
		m.info.lazyInit(counter, 0)
		m.ring.SetFilling(0)
		m.ring.SetFilling(m.info.nextIndex())
	}

	m.checkTimeDemuxParity(h.Mcnt)

	switch m.info.classify(counter) {
	case actionWrite:
		return m.write(h, payload, counter)
	case actionAdvance:
		m.advanceAndWrite(ctx, h, payload, counter)
		return nil
	case actionDrop:
		m.dropped++
		if log, suppressed := m.lateWarn.allow(time.Now()); log && m.info.shouldLogLate() {
			m.log.Warnw("dropping late x-engine packet", "bcnt", counter, "anchor", m.info.anchor, "suppressed_since_last", suppressed)
		}
		return nil
	default: // actionOutOfSeq
		m.outOfSeq++
		if log, suppressed := m.oosWarn.allow(time.Now()); log {
			m.log.Warnw("out-of-sequence x-engine packet", "bcnt", counter, "anchor", m.info.anchor, "suppressed_since_last", suppressed)
		}
		if m.info.registerOutOfSeq() {
			m.log.Warnw("resetting x-engine reassembler anchor", "bcnt", counter, "reset_count", m.info.resetCount+1)
			m.info.reset(counter)
		}
		return nil
	}
}

func (m *XReassembler) checkTimeDemuxParity(mcnt uint64) {
	if m.cfg.TimeDemux <= 1 {
		return
	}
	nt := m.cfg.TimeDemuxNt
	if nt == 0 {
		nt = 1
	}
	parity := (mcnt / nt) % m.cfg.TimeDemux
	if parity != m.cfg.TimeIndex {
		m.parityMiss++
		if log, suppressed := m.parityWarn.allow(time.Now()); log {
			m.log.Warnw("mcnt time-demux parity mismatch", "mcnt", mcnt, "got_parity", parity, "want_parity", m.cfg.TimeIndex, "suppressed_since_last", suppressed)
		}
	}
}

// write places one packet into the current or next block slot, whichever
// dist selected, and returns after marking the cell received.
func (m *XReassembler) write(h wire.XHeader, payload []byte, counter uint64) error {
	dist := counter - m.info.anchor
	idx := m.info.blockIndex
	blockAnchor := m.info.anchor
	if dist >= m.info.blockSize {
		idx = m.info.nextIndex()
		blockAnchor = m.info.anchor + m.info.blockSize
	}

	return m.writeInto(idx, h, payload, counter, blockAnchor)
}

func (m *XReassembler) writeInto(idx int, h wire.XHeader, payload []byte, counter, blockAnchor uint64) error {
	blk := *m.ring.At(idx)

	baseline := int(counter - blockAnchor)
	nt := m.cfg.TimeDemuxNt
	if nt == 0 {
		nt = 1
	}
	parity := int((h.Mcnt / nt) % uint64(blk.TimeParity))
	xengSlice := int(h.XengID) % blk.XengSlices
	chanChunk := int(h.ChannelOffset) % blk.ChanChunks

	cell := blk.CellIndex(baseline, parity, xengSlice, chanChunk)
	if !blk.MarkReceived(cell) {
		return nil // duplicate: spec.md §4.2 idempotence
	}

	off := blk.Offset(baseline, parity, xengSlice, chanChunk, m.cfg.BytesPerVis)
	n := copy(blk.Payload[off:off+m.cfg.BytesPerVis], payload)
	_ = n

	if baseline >= 0 && baseline < len(blk.Header.Mcnt) {
		blk.Header.Mcnt[baseline] = h.Mcnt
		blk.Header.Bcnt[baseline] = counter
		blk.Header.AntPair0[baseline] = h.Ant0
		blk.Header.AntPair1[baseline] = h.Ant1
	}

	expected := blk.Baselines * blk.TimeParity * blk.XengSlices * blk.ChanChunks
	if int(blk.ReceivedCount()) == expected {
		blk.Header.GoodData = true
	}

	return nil
}

// advanceAndWrite implements spec.md §4.2 step 4's "Advance" action: the
// current block is marked Filled and handed to the consumer, the anchor
// moves forward by one block, and a fresh slot two blocks ahead is claimed
// for future writes, before the triggering packet itself is written.
func (m *XReassembler) advanceAndWrite(ctx context.Context, h wire.XHeader, payload []byte, counter uint64) {
	doneIdx := m.info.blockIndex
	newIdx := m.info.advance()
	m.ring.SetFilled(doneIdx)

	twoAhead := m.info.twoAheadIndex()
	if res := m.ring.BusywaitFree(ctx, twoAhead, 5*time.Second); res == ring.Ok {
		blk := *m.ring.At(twoAhead)
		blk.Reset()
		m.ring.SetFilling(twoAhead)
	}

	_ = newIdx
	_ = m.write(h, payload, counter)
}

// Stats returns the reassembler's running counters for status reporting
// (spec.md §6).
func (m *XReassembler) Stats() (dropped, outOfSeq, parityMismatches, resets uint64) {
	return m.dropped, m.outOfSeq, m.parityMiss, m.info.resetCount
}
