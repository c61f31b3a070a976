// Command hera-catcher-xeng runs the X-engine instance of the catcher
// pipeline: packet reassembly into visibility blocks, followed by the
// sum/diff kernel and file-rollover writer (spec.md §2).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hera-collab/catcher/internal/block"
	"github.com/hera-collab/catcher/internal/config"
	"github.com/hera-collab/catcher/internal/ingest"
	"github.com/hera-collab/catcher/internal/kvstore"
	"github.com/hera-collab/catcher/internal/logging"
	"github.com/hera-collab/catcher/internal/numa"
	"github.com/hera-collab/catcher/internal/pipeline"
	"github.com/hera-collab/catcher/internal/reassemble"
	"github.com/hera-collab/catcher/internal/ring"
	"github.com/hera-collab/catcher/internal/status"
	"github.com/hera-collab/catcher/internal/wire"
	"github.com/hera-collab/catcher/internal/writer"
	"github.com/hera-collab/catcher/internal/xcmd"
	"github.com/hera-collab/catcher/internal/xerror"
)

// Cmd holds the command-line arguments.
type Cmd struct {
	ConfigPath string
	TimeIndex  uint64
	NFiles     uint64
	NumaNode   int
}

var cmd Cmd

var rootCmd = &cobra.Command{
	Use:   "hera-catcher-xeng",
	Short: "Catcher pipeline: X-engine reassembler and sum/diff writer",
	Run: func(_ *cobra.Command, _ []string) {
		if err := run(cmd); err != nil {
			var interrupted xcmd.Interrupted
			if errors.As(err, &interrupted) {
				return
			}
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVarP(&cmd.ConfigPath, "config", "c", "", "Path to the configuration file (required)")
	rootCmd.MarkFlagRequired("config")
	rootCmd.Flags().Uint64Var(&cmd.TimeIndex, "time-index", 0, "Override the configured time-demux parity for this instance")
	rootCmd.Flags().Uint64Var(&cmd.NFiles, "nfiles", 1, "Fallback file count to use on trigger if the status store's NFILES key is unset")
	rootCmd.Flags().IntVar(&cmd.NumaNode, "numa-node", -1, "NUMA node to first-touch the assembled-block ring's arenas on (-1 disables)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd Cmd) error {
	cfg, err := config.LoadConfig(cmd.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.TimeIndex != 0 {
		cfg.Reassembler.TimeIndex = cmd.TimeIndex
	}

	log, _, err := logging.Init(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	// N_CHAN_PROCESSED must divide evenly; a misconfigured chan_sum is a
	// fatal startup error, not a per-block one (spec.md §7).
	xerror.Unwrap(cfg.Writer.NChanProcessed())

	st := status.New(cfg.Status)

	kv := kvstore.New(kvstore.Config{
		Addr:        cfg.KVStore.Addr,
		DialTimeout: cfg.KVStore.DialTimeout,
		CallTimeout: cfg.KVStore.CallTimeout,
	}, log)
	defer kv.Close()

	r := reassemble.NewXReassembler(reassemble.XConfig{
		BlockSize:             cfg.Reassembler.BlockSize,
		RingSize:              cfg.Reassembler.RingSize,
		MaxOutOfSeqPkts:       cfg.Reassembler.MaxOutOfSeqPkts,
		LateThresholdBlocks:   cfg.Reassembler.LateThresholdBlocks,
		TimeIndex:             cfg.Reassembler.TimeIndex,
		TimeDemux:             cfg.Reassembler.TimeDemux,
		TimeDemuxNt:           cfg.Reassembler.TimeDemuxNt,
		Baselines:             cfg.Reassembler.Baselines,
		XengSlices:            cfg.Reassembler.XengSlices,
		ChanChunks:            cfg.Reassembler.ChanChunks,
		BytesPerVis:           cfg.Reassembler.BytesPerVis,
		BurstMessageThreshold: cfg.Reassembler.BurstMessageThreshold,
		BurstMaxDuration:      cfg.Reassembler.BurstMaxDuration,
	}, log)

	if cmd.NumaNode >= 0 {
		node := numa.NewWithOneBitSet(uint32(cmd.NumaNode))
		log.Infow("first-touching ring arenas", "numa_mask", node)
		firstTouchXRing(r.Ring())
	}

	// bcntsPerFile/accLen/tag/syncTimeMs are placeholders until the first
	// TRIGGER arrives; the writer stays Idle until then (spec.md §4.4) so
	// these values are never actually exercised.
	w := writer.New(cfg.Writer, config.BcntsPerFile(8, 4, 2, 1), 2048, time.Now().UnixMilli(), 1.0e8, uint32(cfg.Writer.NChanTotal), kv, log,
		writer.WithAutocorrSink(func(auto *block.AutocorrBlock) {
			log.Infow("autocorrelation block completed", "julian_time", auto.JulianTime)
			kv.PublishIsTakingData(context.Background(), true)
		}),
	)

	listener, err := ingest.Listen(cfg.IngestAddr, log)
	if err != nil {
		return fmt.Errorf("failed to start packet listener: %w", err)
	}
	defer listener.Close()

	p := pipeline.New(log, st)

	p.AddStage(func(ctx context.Context) error {
		return listener.Run(ctx, func(payload []byte) error {
			if len(payload) < wire.XHeaderSize {
				return fmt.Errorf("short X-engine packet: %d bytes", len(payload))
			}
			h := wire.DecodeXHeader(payload)
			return r.ProcessPacket(ctx, h, payload[wire.XHeaderSize:])
		})
	})

	p.AddStage(func(ctx context.Context) error {
		return pipeline.DrainXBlocks(ctx, r.Ring(), func(blk *block.XBlock) error {
			return w.WriteBlock(ctx, blk)
		})
	})

	p.AddStage(func(ctx context.Context) error {
		kv.HealthLoop(ctx, 5*time.Second, cfg.KVStore.BackoffMaxTry)
		return nil
	})

	p.AddStage(func(ctx context.Context) error {
		pollTrigger(ctx, st, w, cmd.NFiles, log)
		return nil
	})

	p.AddStage(func(ctx context.Context) error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				pipeline.CaptureSnapshot(r).PublishTo(st)
			}
		}
	})

	wg, ctx := errgroup.WithContext(context.Background())
	wg.Go(func() error {
		return p.Run(ctx)
	})
	wg.Go(func() error {
		err := xcmd.WaitInterrupted(ctx)
		log.Infof("caught signal: %v", err)
		return err
	})

	return wg.Wait()
}

// firstTouchXRing writes a zero byte into every pre-allocated block's
// payload once, so the kernel backs each arena with pages on whatever
// NUMA node the calling goroutine is currently scheduled on.
func firstTouchXRing(r *ring.Ring[*block.XBlock]) {
	for i := 0; i < r.Len(); i++ {
		blk := *r.At(i)
		if len(blk.Payload) > 0 {
			blk.Payload[0] = 0
		}
	}
}

// pollTrigger implements the writer's IDLE->BetweenFiles transition
// (spec.md §4.4): it waits for an external TRIGGER flag in the status
// store, and once set, clears it, re-reads the baseline distribution and
// accumulation length the writer needs, and arms the writer for NFILES
// files — exactly original_source's disk thread re-reading these keys on
// every new trigger instead of only at process start.
func pollTrigger(ctx context.Context, st *status.Store, w *writer.Writer, defaultNFiles uint64, log *zap.SugaredLogger) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st.Set(status.KeyNDoneFil, strconv.FormatUint(w.FileCount(), 10))

		if !w.Idle() {
			continue
		}

		triggered, _ := st.Get(status.KeyTrigger)
		if !statusTruthy(triggered) {
			continue
		}
		st.Set(status.KeyTrigger, "0")

		nfiles := statusUint64(st, status.KeyNFiles, defaultNFiles)
		tag, _ := st.Get(status.KeyTag)
		syncTimeMs := int64(statusUint64(st, status.KeySyncTime, 0))
		accLen := int(statusUint64(st, status.KeyIntTime, 2048))
		bcntsPerFile := config.BcntsPerFile(
			statusUint64(st, status.KeyNBl2Sec, 8),
			statusUint64(st, status.KeyNBl4Sec, 4),
			statusUint64(st, status.KeyNBl8Sec, 2),
			statusUint64(st, status.KeyNBl16Sec, 1),
		)

		w.Reconfigure(bcntsPerFile, accLen, syncTimeMs, tag)
		w.Trigger(nfiles)
		log.Infow("writer triggered", "nfiles", nfiles, "tag", tag, "bcnts_per_file", bcntsPerFile, "acc_len", accLen)
	}
}

func statusTruthy(v string) bool {
	n, err := strconv.ParseUint(v, 10, 64)
	return err == nil && n != 0
}

func statusUint64(st *status.Store, key string, def uint64) uint64 {
	v, ok := st.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}
