package pipeline

import (
	"context"
	"time"

	"github.com/hera-collab/catcher/internal/block"
	"github.com/hera-collab/catcher/internal/ring"
)

// DrainXBlocks runs until ctx is canceled, consuming every block the given
// ring produces and handing it to consume, then freeing the slot. It is
// the X-engine assembled-block ring's consumer-side stage (spec.md §2
// stage 4), used by production wiring (cmd/hera-catcher-xeng).
func DrainXBlocks(ctx context.Context, r *ring.Ring[*block.XBlock], consume func(*block.XBlock) error) error {
	idx := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		res := r.WaitFilled(ctx, idx, time.Second)
		switch res {
		case ring.Err:
			return nil
		case ring.TimedOut:
			continue
		}

		blk := *r.At(idx)
		if err := consume(blk); err != nil {
			return err
		}

		r.SetFree(idx)
		idx = (idx + 1) % r.Len()
	}
}

// DrainFBlocks is DrainXBlocks's F-engine counterpart: the F-engine
// catcher has no file writer of its own (spec.md §3 non-goal on a
// downstream auto-correlation consumer), so its consumer stage simply
// frees blocks after handing them to consume, typically a counters-only
// sink or a test harness.
func DrainFBlocks(ctx context.Context, r *ring.Ring[*block.FBlock], consume func(*block.FBlock) error) error {
	idx := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		res := r.WaitFilled(ctx, idx, time.Second)
		switch res {
		case ring.Err:
			return nil
		case ring.TimedOut:
			continue
		}

		blk := *r.At(idx)
		if err := consume(blk); err != nil {
			return err
		}

		r.SetFree(idx)
		idx = (idx + 1) % r.Len()
	}
}
