package reassemble

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hera-collab/catcher/internal/wire"
)

func testFConfig() FConfig {
	return FConfig{
		BlockSize:             4,
		RingSize:              4,
		MaxOutOfSeqPkts:       8,
		LateThresholdBlocks:   2,
		TimeDemux:             1,
		TimeDemuxNt:           1,
		SubBlocks:             4,
		Antennas:              2,
		ChannelGroups:         1,
		Times:                 1,
		BytesPerSample:        2,
		BurstMessageThreshold: 100,
		BurstMaxDuration:      time.Second,
	}
}

func newTestFReassembler() *FReassembler {
	return NewFReassembler(testFConfig(), zap.NewNop().Sugar())
}

func fPacket(mcnt uint64, antenna uint16) (wire.FHeader, []byte) {
	return wire.FHeader{Mcnt: mcnt, Antenna: antenna}, []byte{9, 9}
}

// TestFReassemblerMonotoneDelivery exercises scenario S1 for the F-engine
// variant: in-order delivery of a full block's antennas marks it complete.
func TestFReassemblerMonotoneDelivery(t *testing.T) {
	r := newTestFReassembler()
	ctx := context.Background()

	for mcnt := uint64(0); mcnt < 4; mcnt++ {
		for ant := uint16(0); ant < 2; ant++ {
			h, payload := fPacket(mcnt, ant)
			require.NoError(t, r.ProcessPacket(ctx, h, payload))
		}
	}

	blk := *r.Ring().At(0)
	require.True(t, blk.Header.GoodData)
}

// TestFReassemblerDuplicateAbsorption exercises idempotent duplicate
// handling.
func TestFReassemblerDuplicateAbsorption(t *testing.T) {
	r := newTestFReassembler()
	ctx := context.Background()

	h, payload := fPacket(0, 0)
	require.NoError(t, r.ProcessPacket(ctx, h, payload))
	require.NoError(t, r.ProcessPacket(ctx, h, payload))

	blk := *r.Ring().At(0)
	require.EqualValues(t, 1, blk.ReceivedCount())
}

// TestFReassemblerLatePacketDropped checks that a packet behind the anchor,
// but within the late threshold, is dropped.
func TestFReassemblerLatePacketDropped(t *testing.T) {
	r := newTestFReassembler()
	ctx := context.Background()

	for mcnt := uint64(0); mcnt < 4; mcnt++ {
		h, payload := fPacket(mcnt, 0)
		require.NoError(t, r.ProcessPacket(ctx, h, payload))
	}
	h, payload := fPacket(8, 0) // dist=8 -> advance
	require.NoError(t, r.ProcessPacket(ctx, h, payload))

	late, latePayload := fPacket(0, 0)
	require.NoError(t, r.ProcessPacket(ctx, late, latePayload))

	dropped, _, _, _ := r.Stats()
	require.Equal(t, uint64(1), dropped)
}

// TestFReassemblerResetOnSustainedOutOfSeq checks that more than
// MaxOutOfSeqPkts far-future packets cause exactly one reset.
func TestFReassemblerResetOnSustainedOutOfSeq(t *testing.T) {
	r := newTestFReassembler()
	ctx := context.Background()

	initH, initPayload := fPacket(0, 0)
	require.NoError(t, r.ProcessPacket(ctx, initH, initPayload))

	for i := 0; i < 20; i++ {
		h, payload := fPacket(10000, 0)
		require.NoError(t, r.ProcessPacket(ctx, h, payload))
	}

	_, _, _, resets := r.Stats()
	require.Equal(t, uint64(1), resets)
}
