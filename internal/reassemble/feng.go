package reassemble

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hera-collab/catcher/internal/block"
	"github.com/hera-collab/catcher/internal/ring"
	"github.com/hera-collab/catcher/internal/wire"
)

// FConfig parameterizes an F-engine Reassembler: the counter/ring geometry
// plus the voltage block payload shape it must allocate (spec.md §3, §4.2).
type FConfig struct {
	BlockSize           uint64
	RingSize            int
	MaxOutOfSeqPkts     int64
	LateThresholdBlocks uint64

	TimeIndex   uint64
	TimeDemux   uint64
	TimeDemuxNt uint64

	// SubBlocks, Antennas, ChannelGroups, and Times describe the payload
	// shape addressed as (mcnt_within_block, time_parity, antenna,
	// channel_group) per spec.md §4.2 "Payload placement".
	SubBlocks      int
	Antennas       int
	ChannelGroups  int
	Times          int
	BytesPerSample int

	BurstMessageThreshold int
	BurstMaxDuration      time.Duration
}

// FReassembler implements the F-engine instance of the reassembler common
// contract, writing voltage packets into a ring of *block.FBlock.
type FReassembler struct {
	cfg FConfig
	log *zap.SugaredLogger

	ring *ring.Ring[*block.FBlock]
	info *binfo

	lateWarn   *throttle
	oosWarn    *throttle
	parityWarn *throttle

	dropped    uint64
	outOfSeq   uint64
	parityMiss uint64
}

// NewFReassembler allocates the ring (every slot pre-sized to cfg's block
// shape) and the anchor-tracking state.
func NewFReassembler(cfg FConfig, log *zap.SugaredLogger) *FReassembler {
	r := ring.New[*block.FBlock](cfg.RingSize)
	for i := 0; i < cfg.RingSize; i++ {
		*r.At(i) = block.NewFBlock(cfg.SubBlocks, cfg.Antennas, cfg.ChannelGroups, cfg.Times, cfg.BytesPerSample)
	}

	return &FReassembler{
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
func (m *FReassembler) Ring() *ring.Ring[*block.FBlock] {
	return m.ring
}

// ProcessPacket classifies and applies one already-decoded F-engine packet.
func (m *FReassembler) ProcessPacket(ctx context.Context, h wire.FHeader, payload []byte) error {
	counter := h.Mcnt

	if !m.info.initialized {
		m.info.lazyInit(counter, 0)
		m.ring.SetFilling(0)
		m.ring.SetFilling(m.info.nextIndex())
	}

	m.checkTimeDemuxParity(counter)

	switch m.info.classify(counter) {
	case actionWrite:
		return m.write(h, payload, counter)
	case actionAdvance:
		m.advanceAndWrite(ctx, h, payload, counter)
		return nil
	case actionDrop:
		m.dropped++
		if log, suppressed := m.lateWarn.allow(time.Now()); log && m.info.shouldLogLate() {
			m.log.Warnw("dropping late f-engine packet", "mcnt", counter, "anchor", m.info.anchor, "suppressed_since_last", suppressed)
		}
		return nil
	default: // actionOutOfSeq
		m.outOfSeq++
		if log, suppressed := m.oosWarn.allow(time.Now()); log {
			m.log.Warnw("out-of-sequence f-engine packet", "mcnt", counter, "anchor", m.info.anchor, "suppressed_since_last", suppressed)
		}
		if m.info.registerOutOfSeq() {
			m.log.Warnw("resetting f-engine reassembler anchor", "mcnt", counter, "reset_count", m.info.resetCount+1)
			m.info.reset(counter)
		}
		return nil
	}
}

func (m *FReassembler) checkTimeDemuxParity(mcnt uint64) {
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

func (m *FReassembler) write(h wire.FHeader, payload []byte, counter uint64) error {
	dist := counter - m.info.anchor
	idx := m.info.blockIndex
	blockAnchor := m.info.anchor
	if dist >= m.info.blockSize {
		idx = m.info.nextIndex()
		blockAnchor = m.info.anchor + m.info.blockSize
	}

	return m.writeInto(idx, h, payload, counter, blockAnchor)
}

func (m *FReassembler) writeInto(idx int, h wire.FHeader, payload []byte, counter, blockAnchor uint64) error {
	blk := *m.ring.At(idx)

	subBlock := int(counter-blockAnchor) % blk.SubBlocks
	parity := int(counter % uint64(blk.Times))
	antenna := int(h.Antenna) % blk.Antennas
	channelGroup := int(h.FirstChannel) % blk.Channels

	cell := blk.CellIndex(subBlock, antenna, channelGroup, parity)
	if !blk.MarkReceived(cell) {
		return nil // duplicate: spec.md §4.2 step 5
	}

	off := blk.Offset(subBlock, antenna, channelGroup, parity, m.cfg.BytesPerSample)
	copy(blk.Payload[off:off+m.cfg.BytesPerSample], payload)

	if blk.Header.Mcnt == 0 {
		blk.Header.Mcnt = blockAnchor
	}

	expected := blk.SubBlocks * blk.Antennas * blk.Channels * blk.Times
	if int(blk.ReceivedCount()) == expected {
		blk.Header.GoodData = true
	}

	return nil
}

// advanceAndWrite implements spec.md §4.2 step 4's "Advance" action for the
// F-engine variant: symmetric to XReassembler.advanceAndWrite.
func (m *FReassembler) advanceAndWrite(ctx context.Context, h wire.FHeader, payload []byte, counter uint64) {
	doneIdx := m.info.blockIndex
	m.info.advance()
	m.ring.SetFilled(doneIdx)

	twoAhead := m.info.twoAheadIndex()
	if res := m.ring.BusywaitFree(ctx, twoAhead, 5*time.Second); res == ring.Ok {
		blk := *m.ring.At(twoAhead)
		blk.Reset()
		m.ring.SetFilling(twoAhead)
	}

	_ = m.write(h, payload, counter)
}

// Stats returns the reassembler's running counters for status reporting
// (spec.md §6).
func (m *FReassembler) Stats() (dropped, outOfSeq, parityMismatches, resets uint64) {
	return m.dropped, m.outOfSeq, m.parityMiss, m.info.resetCount
}
