package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hera-collab/catcher/internal/pipeline"
	"github.com/hera-collab/catcher/internal/reassemble"
	"github.com/hera-collab/catcher/internal/status"
	"github.com/hera-collab/catcher/internal/wire"
)

// TestPipelineRunsStagesAndStopsOnCancel exercises the supervising
// errgroup: a single producer stage feeds packets into a reassembler, and
// canceling the context stops the pipeline within two seconds.
func TestPipelineRunsStagesAndStopsOnCancel(t *testing.T) {
	log := zap.NewNop().Sugar()
	st := status.New(nil)

	r := reassemble.NewXReassembler(reassemble.XConfig{
		BlockSize:             4,
		RingSize:              4,
		MaxOutOfSeqPkts:       4096,
		LateThresholdBlocks:   2,
		TimeDemux:             1,
		TimeDemuxNt:           2,
		Baselines:             4,
		XengSlices:            1,
		ChanChunks:            1,
		BytesPerVis:           4,
		BurstMessageThreshold: 100,
		BurstMaxDuration:      time.Second,
	}, log)

	p := pipeline.New(log, st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.AddStage(func(ctx context.Context) error {
		bcnt := uint32(0)
		for {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			h := wire.XHeader{Mcnt: uint64(bcnt / 4), Bcnt: bcnt, Ant0: 1, Ant1: 2}
			if err := r.ProcessPacket(ctx, h, []byte{1, 2, 3, 4}); err != nil {
				return err
			}
			bcnt++
			if bcnt > 1000 {
				return nil
			}
		}
	})

	snap := pipeline.CaptureSnapshot(r)
	snap.PublishTo(st)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after cancel")
	}
}
