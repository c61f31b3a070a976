// Package config loads the catcher pipeline's YAML configuration, mirroring
// the defaults-then-unmarshal pattern used across the codebase's other
// components.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/hera-collab/catcher/internal/logging"
)

// Config is the top-level configuration for either catcher binary.
type Config struct {
	// Logging configures the zap logger.
	Logging logging.Config `yaml:"logging"`
	// Reassembler configures the ingest/reassembly stage.
	Reassembler ReassemblerConfig `yaml:"reassembler"`
	// Writer configures the sum/diff + file-rollover stage.
	Writer WriterConfig `yaml:"writer"`
	// Status is the in-process status store's initial key set.
	Status map[string]string `yaml:"status"`
	// KVStore configures the remote key-value control/status client.
	KVStore KVStoreConfig `yaml:"kvstore"`
	// IngestAddr is the UDP socket this instance listens on for packets
	// (stands in for the out-of-scope RDMA/raw-socket source).
	IngestAddr string `yaml:"ingest_addr"`
}

// ReassemblerConfig holds constants controlling packet reassembly.
//
// Field names and defaults are taken directly from the HERA catcher's
// compile-time constants (BLOCK, MAX_OUT_OF_SEQ_PKTS, etc).
type ReassemblerConfig struct {
	// Variant selects "feng" or "xeng".
	Variant string `yaml:"variant"`
	// BaselinesPerBlock (X-engine) or SpectraPerBlock (F-engine) is the
	// number of mcnt/bcnt units that make up one assembled block.
	BlockSize uint64 `yaml:"block_size"`
	// RingSize is the number of slots in the assembled-block ring. Must be
	// a power of two.
	RingSize int `yaml:"ring_size"`
	// MaxOutOfSeqPkts is the threshold after which the reassembler resets
	// its anchor (spec.md §4.2).
	MaxOutOfSeqPkts int64 `yaml:"max_out_of_seq_pkts"`
	// LateThresholdBlocks is expressed in units of BlockSize; a packet less
	// than this many blocks behind the anchor is dropped silently, and one
	// further behind counts as out-of-sequence.
	LateThresholdBlocks uint64 `yaml:"late_threshold_blocks"`
	// TimeIndex is this instance's mcnt parity when the system runs
	// multiple parallel catcher instances (time-demuxing).
	TimeIndex uint64 `yaml:"time_index"`
	// TimeDemux is the number of parallel catcher instances sharing mcnt
	// space by parity. 1 disables time-demuxing.
	TimeDemux uint64 `yaml:"time_demux"`
	// BurstMessageThreshold and BurstMaxDuration configure the warning
	// throttle (spec.md §4.2).
	BurstMessageThreshold int           `yaml:"burst_message_threshold"`
	BurstMaxDuration      time.Duration `yaml:"burst_max_duration"`
	// RingSlotBytes documents the padded frame/slot size; parsed with
	// datasize so operators can write "4864B" or "1MiB" in the config.
	RingSlotBytes datasize.ByteSize `yaml:"ring_slot_bytes"`
	// TimeDemuxNt is Nt: the number of spectra folded together before the
	// time-demux parity of an mcnt is computed (mcnt/Nt) % TimeDemux.
	TimeDemuxNt uint64 `yaml:"time_demux_nt"`

	// Baselines is BASELINES_PER_BLOCK: the number of distinct antenna
	// pairs this X-engine instance is responsible for.
	Baselines int `yaml:"baselines"`
	// XengSlices is N_XENGINES_PER_TIME: the xeng_id modulus used to place
	// a packet's payload within a block.
	XengSlices int `yaml:"xeng_slices"`
	// ChanChunks is the number of distinct channel_offset values a block
	// holds per baseline/xeng-slice/time-parity.
	ChanChunks int `yaml:"chan_chunks"`
	// BytesPerVis is the payload size, in bytes, of one (baseline, parity,
	// xeng slice, channel chunk) visibility cell.
	BytesPerVis int `yaml:"bytes_per_vis"`

	// FSubBlocks, FAntennas, FChannelGroups, and FTimes describe the
	// F-engine block payload shape (spec.md §3 "(sub_block, antenna,
	// channel, time)").
	FSubBlocks     int `yaml:"f_sub_blocks"`
	FAntennas      int `yaml:"f_antennas"`
	FChannelGroups int `yaml:"f_channel_groups"`
	FTimes         int `yaml:"f_times"`
	// FBytesPerSample is the payload size, in bytes, of one voltage sample
	// cell.
	FBytesPerSample int `yaml:"f_bytes_per_sample"`
}

// WriterConfig holds constants controlling the sum/diff kernel and the
// file-rollover writer.
type WriterConfig struct {
	// NBlPerWrite is N_BL_PER_WRITE: baselines processed per kernel call.
	NBlPerWrite int `yaml:"n_bl_per_write"`
	// NChanTotal and ChanSum define N_CHAN_PROCESSED = NChanTotal/ChanSum.
	NChanTotal int `yaml:"n_chan_total"`
	ChanSum    int `yaml:"chan_sum"`
	// NStokes is the fixed polarisation-product count (4 per §Glossary).
	NStokes int `yaml:"n_stokes"`
	// OutputDir is the parent directory under which per-JD directories are
	// created (mode 0777 per spec.md §6).
	OutputDir string `yaml:"output_dir"`
	// CorrVer and Tag are copied into the HDF5 metadata sidecar verbatim.
	CorrVer string `yaml:"corr_ver"`
	Tag     string `yaml:"tag"`
	// NAntsTotal sizes the autocorrelation side-channel block.
	NAntsTotal int `yaml:"n_ants_total"`
}

// KVStoreConfig configures the remote key-value client.
type KVStoreConfig struct {
	Addr          string        `yaml:"addr"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	CallTimeout   time.Duration `yaml:"call_timeout"`
	BackoffMaxTry int           `yaml:"backoff_max_try"`
}

// LoadConfig loads configuration from a YAML file at the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: logging.Config{
			Level: zapcore.InfoLevel,
		},
		Reassembler: ReassemblerConfig{
			Variant:               "xeng",
			BlockSize:             2,
			RingSize:              8,
			MaxOutOfSeqPkts:       4096,
			LateThresholdBlocks:   2,
			TimeIndex:             0,
			TimeDemux:             1,
			TimeDemuxNt:           2,
			BurstMessageThreshold: 20,
			BurstMaxDuration:      10 * time.Second,
			RingSlotBytes:         4864 * datasize.B,
			Baselines:             61425,
			XengSlices:            16,
			ChanChunks:            1,
			BytesPerVis:           1024,
			FSubBlocks:            4,
			FAntennas:             350,
			FChannelGroups:        6144,
			FTimes:                2,
			FBytesPerSample:       2,
		},
		Writer: WriterConfig{
			NBlPerWrite: 32,
			NChanTotal:  6144,
			ChanSum:     4,
			NStokes:     4,
			OutputDir:   "/data",
			CorrVer:     "",
			Tag:         "",
			NAntsTotal:  350,
		},
		Status: map[string]string{},
		KVStore: KVStoreConfig{
			Addr:          "localhost:6379",
			DialTimeout:   2 * time.Second,
			CallTimeout:   100 * time.Millisecond,
			BackoffMaxTry: 5,
		},
		IngestAddr: ":4015",
	}
}

// BcntsPerFile returns bcnts_per_file (spec.md §3 invariant 5) given the
// number of baselines dumped every 2/4/8/16 seconds.
func BcntsPerFile(n2, n4, n8, n16 uint64) uint64 {
	return 8*n2 + 4*n4 + 2*n8 + n16
}

// NChanProcessed returns N_CHAN_PROCESSED = N_CHAN_TOTAL / CHAN_SUM, and an
// error if the division is not exact (spec.md §4.3 configuration invariant).
func (m WriterConfig) NChanProcessed() (int, error) {
	if m.ChanSum <= 0 {
		return 0, fmt.Errorf("chan_sum must be positive, got %d", m.ChanSum)
	}
	if m.NChanTotal%m.ChanSum != 0 {
		return 0, fmt.Errorf("n_chan_total (%d) is not evenly divisible by chan_sum (%d)", m.NChanTotal, m.ChanSum)
	}
	return m.NChanTotal / m.ChanSum, nil
}
