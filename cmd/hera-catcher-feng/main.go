// Command hera-catcher-feng runs the F-engine instance of the catcher
// pipeline: packet reassembly of raw voltage samples into
// (sub_block, antenna, channel, time) blocks (spec.md §3). Unlike the
// X-engine variant it has no file writer; its assembled blocks are a
// side-channel capture mode with no downstream consumer in scope.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hera-collab/catcher/internal/block"
	"github.com/hera-collab/catcher/internal/config"
	"github.com/hera-collab/catcher/internal/ingest"
	"github.com/hera-collab/catcher/internal/kvstore"
	"github.com/hera-collab/catcher/internal/logging"
	"github.com/hera-collab/catcher/internal/pipeline"
	"github.com/hera-collab/catcher/internal/reassemble"
	"github.com/hera-collab/catcher/internal/status"
	"github.com/hera-collab/catcher/internal/wire"
	"github.com/hera-collab/catcher/internal/xcmd"
)

// Cmd holds the command-line arguments.
type Cmd struct {
	ConfigPath string
	TimeIndex  uint64
}

var cmd Cmd

var rootCmd = &cobra.Command{
	Use:   "hera-catcher-feng",
	Short: "Catcher pipeline: F-engine voltage reassembler",
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

	st := status.New(cfg.Status)

	kv := kvstore.New(kvstore.Config{
		Addr:        cfg.KVStore.Addr,
		DialTimeout: cfg.KVStore.DialTimeout,
		CallTimeout: cfg.KVStore.CallTimeout,
	}, log)
	defer kv.Close()

	r := reassemble.NewFReassembler(reassemble.FConfig{
		BlockSize:             cfg.Reassembler.BlockSize,
		RingSize:              cfg.Reassembler.RingSize,
		MaxOutOfSeqPkts:       cfg.Reassembler.MaxOutOfSeqPkts,
		LateThresholdBlocks:   cfg.Reassembler.LateThresholdBlocks,
		TimeIndex:             cfg.Reassembler.TimeIndex,
		TimeDemux:             cfg.Reassembler.TimeDemux,
		TimeDemuxNt:           cfg.Reassembler.TimeDemuxNt,
		SubBlocks:             cfg.Reassembler.FSubBlocks,
		Antennas:              cfg.Reassembler.FAntennas,
		ChannelGroups:         cfg.Reassembler.FChannelGroups,
		Times:                 cfg.Reassembler.FTimes,
		BytesPerSample:        cfg.Reassembler.FBytesPerSample,
		BurstMessageThreshold: cfg.Reassembler.BurstMessageThreshold,
		BurstMaxDuration:      cfg.Reassembler.BurstMaxDuration,
	}, log)

	listener, err := ingest.Listen(cfg.IngestAddr, log)
	if err != nil {
		return fmt.Errorf("failed to start packet listener: %w", err)
	}
	defer listener.Close()

	p := pipeline.New(log, st)

	p.AddStage(func(ctx context.Context) error {
		return listener.Run(ctx, func(payload []byte) error {
			if len(payload) < wire.FHeaderSize {
				return fmt.Errorf("short F-engine packet: %d bytes", len(payload))
			}
			h := wire.DecodeFHeader(payload)
			return r.ProcessPacket(ctx, h, payload[wire.FHeaderSize:])
		})
	})

	p.AddStage(func(ctx context.Context) error {
		return pipeline.DrainFBlocks(ctx, r.Ring(), func(blk *block.FBlock) error {
			st.Set(status.KeyCurrentFile, fmt.Sprintf("fblock mcnt=%d good=%v", blk.Header.Mcnt, blk.Header.GoodData))
			return nil
		})
	})

	p.AddStage(func(ctx context.Context) error {
		kv.HealthLoop(ctx, 5*time.Second, cfg.KVStore.BackoffMaxTry)
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
