package reassemble

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hera-collab/catcher/internal/wire"
)

func testXConfig() XConfig {
	return XConfig{
		BlockSize:             4, // baselines per block, matches Baselines below
		RingSize:              4,
		MaxOutOfSeqPkts:       8,
		LateThresholdBlocks:   2,
		TimeDemux:             1,
		TimeDemuxNt:           2,
		Baselines:             4,
		XengSlices:            1,
		ChanChunks:            1,
		BytesPerVis:           4,
		BurstMessageThreshold: 100,
		BurstMaxDuration:      time.Second,
	}
}

func newTestXReassembler() *XReassembler {
	return NewXReassembler(testXConfig(), zap.NewNop().Sugar())
}

func xPacket(bcnt uint32, mcnt uint64, ant0, ant1 uint16) (wire.XHeader, []byte) {
	return wire.XHeader{Mcnt: mcnt, Bcnt: bcnt, Ant0: ant0, Ant1: ant1}, []byte{1, 2, 3, 4}
}

// TestXReassemblerMonotoneDelivery exercises scenario S1: in-order delivery
// of exactly one block's worth of packets completes the block without
// advancing (advance only happens once dist reaches the *next* block).
func TestXReassemblerMonotoneDelivery(t *testing.T) {
	r := newTestXReassembler()
	ctx := context.Background()

	// Each baseline needs one packet per time parity: with TimeDemuxNt=2,
	// mcnt 0 is parity 0 and mcnt 2 is parity 1.
	for bcnt := uint32(0); bcnt < 4; bcnt++ {
		for _, mcnt := range []uint64{0, 2} {
			h, payload := xPacket(bcnt, mcnt, 1, 2)
			require.NoError(t, r.ProcessPacket(ctx, h, payload))
		}
	}

	blk := *r.Ring().At(0)
	require.EqualValues(t, 8, blk.ReceivedCount())
	require.True(t, blk.Header.GoodData)
	require.False(t, r.Ring().IsFilled(0))
}

// TestXReassemblerAdvanceOnNextBlock checks the advance across a block
// boundary: once a packet from the block after next arrives, the current
// block is marked Filled in order.
func TestXReassemblerAdvanceOnNextBlock(t *testing.T) {
	r := newTestXReassembler()
	ctx := context.Background()

	for bcnt := uint32(0); bcnt < 4; bcnt++ {
		h, payload := xPacket(bcnt, 0, 1, 2)
		require.NoError(t, r.ProcessPacket(ctx, h, payload))
	}

	h, payload := xPacket(8, 2, 1, 2) // dist=8, 2*BlockSize..3*BlockSize-1 -> advance
	require.NoError(t, r.ProcessPacket(ctx, h, payload))

	require.True(t, r.Ring().IsFilled(0))
}

// TestXReassemblerDuplicateAbsorption checks duplicate absorption: a
// repeated packet does not double-count toward good_data.
func TestXReassemblerDuplicateAbsorption(t *testing.T) {
	r := newTestXReassembler()
	ctx := context.Background()

	h, payload := xPacket(0, 0, 1, 2)
	require.NoError(t, r.ProcessPacket(ctx, h, payload))
	require.NoError(t, r.ProcessPacket(ctx, h, payload))

	blk := *r.Ring().At(0)
	require.EqualValues(t, 1, blk.ReceivedCount())
}

// TestXReassemblerLatePacketDropped checks the late-packet drop: a packet
// behind the anchor, but within the late threshold, is silently dropped,
// not written.
func TestXReassemblerLatePacketDropped(t *testing.T) {
	r := newTestXReassembler()
	ctx := context.Background()

	// Advance the anchor forward first.
	for bcnt := uint32(0); bcnt < 4; bcnt++ {
		h, payload := xPacket(bcnt, 0, 1, 2)
		require.NoError(t, r.ProcessPacket(ctx, h, payload))
	}
	h, payload := xPacket(8, 2, 1, 2)
	require.NoError(t, r.ProcessPacket(ctx, h, payload))

	// Now a packet from the original block 0 is deep in the past.
	lateHeader, latePayload := xPacket(0, 0, 1, 2)
	require.NoError(t, r.ProcessPacket(ctx, lateHeader, latePayload))

	dropped, _, _, _ := r.Stats()
	require.Equal(t, uint64(1), dropped)
}

// TestXReassemblerResetOnSustainedOutOfSeq checks reset determinism: more
// than MaxOutOfSeqPkts far-future packets force exactly one re-anchor.
func TestXReassemblerResetOnSustainedOutOfSeq(t *testing.T) {
	r := newTestXReassembler()
	ctx := context.Background()

	initH, initPayload := xPacket(0, 0, 1, 2)
	require.NoError(t, r.ProcessPacket(ctx, initH, initPayload))

	for i := 0; i < 20; i++ {
		h, payload := xPacket(10000, 500, 1, 2)
		require.NoError(t, r.ProcessPacket(ctx, h, payload))
	}

	_, _, _, resets := r.Stats()
	require.Equal(t, uint64(1), resets)
}
