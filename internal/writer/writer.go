package writer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hera-collab/catcher/internal/block"
	"github.com/hera-collab/catcher/internal/config"
	"github.com/hera-collab/catcher/internal/simd"
	"github.com/hera-collab/catcher/internal/xtime"
)

// State is the writer's position in the Idle/BetweenFiles/InFile machine
// of spec.md §4.4.
type State int

const (
	// Idle means no trigger has arrived yet; no file is open.
	Idle State = iota
	// BetweenFiles means the previous file was just closed (or none ever
	// opened) and the next one has not yet been created.
	BetweenFiles
	// InFile means a sum/diff/meta file triple is open and accepting
	// baselines.
	InFile
)

// MetadataSource resolves the correlator-to-antenna mapping and
// per-baseline integration times from the external key-value store on
// each file open (spec.md §3 "Lifecycle").
type MetadataSource interface {
	CorrToHeraMap(ctx context.Context) ([]int32, error)
	IntegrationTimes(ctx context.Context, accLen int) ([]float64, error)
}

// Writer streams filled X-engine blocks to paired sum/diff files with an
// HDF5 metadata sidecar, rolling over at bcnt file boundaries.
type Writer struct {
	cfg          config.WriterConfig
	bcntsPerFile uint64
	accLen       int

	syncTimeMs          int64
	fengSampleRateHz    float64
	nChanTotalGenerated uint32

	log  *zap.SugaredLogger
	meta MetadataSource

	state        State
	currFileBcnt int64 // -1 when no file is open
	sum, diff    *rawFile
	fileMeta     *FileMetadata
	dir          string

	corrToHeraMap    []int32
	integrationTimes []float64

	fileCount  uint64
	nfiles     uint64
	onAutocorr func(*block.AutocorrBlock)
}

// Option configures a Writer at construction.
type Option func(*Writer)

// WithAutocorrSink registers a callback invoked whenever a block's
// autocorrelation extraction completes (spec.md §3 "Autocorr side-channel
// block").
func WithAutocorrSink(fn func(*block.AutocorrBlock)) Option {
	return func(w *Writer) { w.onAutocorr = fn }
}

// New constructs a Writer. bcntsPerFile should be computed via
// config.BcntsPerFile from the deployment's dump cadence.
func New(cfg config.WriterConfig, bcntsPerFile uint64, accLen int, syncTimeMs int64, fengSampleRateHz float64, nChanTotalGenerated uint32, meta MetadataSource, log *zap.SugaredLogger, opts ...Option) *Writer {
	w := &Writer{
		cfg:                 cfg,
		bcntsPerFile:        bcntsPerFile,
		accLen:              accLen,
		syncTimeMs:          syncTimeMs,
		fengSampleRateHz:    fengSampleRateHz,
		nChanTotalGenerated: nChanTotalGenerated,
		log:                 log,
		meta:                meta,
		state:               Idle,
		currFileBcnt:        -1,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Trigger moves the writer out of Idle, arming it to open its first file
// on the next WriteBlock call, for nfiles files.
func (w *Writer) Trigger(nfiles uint64) {
	w.state = BetweenFiles
	w.nfiles = nfiles
	w.fileCount = 0
	w.currFileBcnt = -1
}

// Idle reports whether the writer is currently idle (no trigger pending).
func (w *Writer) Idle() bool {
	return w.state == Idle
}

// FileCount reports how many files have been completed since the last
// Trigger, for publishing to NDONEFIL (spec.md §4.4).
func (w *Writer) FileCount() uint64 {
	return w.fileCount
}

// Reconfigure applies the baseline distribution, accumulation length, tag,
// and F-engine sync time read from the status store's TRIGGER-time fields
// (NBL2SEC/NBL4SEC/NBL8SEC/NBL16SEC, INTTIME, TAG, SYNCTIME) ahead of a
// Trigger call, matching original_source's disk thread re-reading these on
// every new trigger rather than once at process start.
func (w *Writer) Reconfigure(bcntsPerFile uint64, accLen int, syncTimeMs int64, tag string) {
	w.bcntsPerFile = bcntsPerFile
	w.accLen = accLen
	w.syncTimeMs = syncTimeMs
	w.cfg.Tag = tag
}

// WriteBlock applies the sum/diff kernel to a filled X-engine block and
// streams the result, rolling files over at bcnt boundaries, N_BL_PER_WRITE
// baselines at a time (spec.md §4.3, §4.4).
func (w *Writer) WriteBlock(ctx context.Context, blk *block.XBlock) error {
	if w.state == Idle {
		return nil
	}
	if w.fileCount >= w.nfiles {
		w.state = Idle
		return nil
	}

	auto := (*block.AutocorrBlock)(nil)
	if w.onAutocorr != nil {
		auto = block.NewAutocorrBlock(len(w.corrToHeraMapOrEmpty()), w.cfg.NChanTotal, w.cfg.NStokes)
	}

	step := w.cfg.NBlPerWrite
	if step <= 0 {
		step = 1
	}

	for start := 0; start < blk.Baselines; start += step {
		end := start + step
		if end > blk.Baselines {
			end = blk.Baselines
		}
		if err := w.writeBaselineGroup(ctx, blk, start, end); err != nil {
			return err
		}
		if w.fileCount >= w.nfiles {
			break
		}
	}

	if auto != nil {
		completed, jd := ExtractAutocorrelations(blk, auto, w.syncTimeMs, w.fengSampleRateHz, w.nChanTotalGenerated)
		if completed {
			auto.JulianTime = jd
			w.onAutocorr(auto)
		}
	}

	return nil
}

func (w *Writer) corrToHeraMapOrEmpty() []int32 {
	if w.corrToHeraMap != nil {
		return w.corrToHeraMap
	}
	return make([]int32, w.cfg.NAntsTotal)
}

func (w *Writer) writeBaselineGroup(ctx context.Context, blk *block.XBlock, start, end int) error {
	count := end - start
	strtBcnt := blk.Header.Bcnt[start]
	stopBcnt := blk.Header.Bcnt[end-1]

	even, odd, rawWordsPerBaseline := extractEvenOdd(blk, start, count)
	sumRaw := simd.AlignedBuffer(len(even))
	diffRaw := simd.AlignedBuffer(len(even))
	if err := simd.SumDiff(even, odd, sumRaw, diffRaw); err != nil {
		return fmt.Errorf("writer: sum/diff: %w", err)
	}

	// §4.3: if chan_sum > 1, accumulate chan_sum consecutive raw channels
	// down to N_CHAN_PROCESSED before anything is written out.
	laneWidth := w.cfg.NStokes * 2
	sum, wordsPerBaseline, err := reduceChanSum(sumRaw, count, rawWordsPerBaseline, w.cfg.ChanSum, laneWidth)
	if err != nil {
		return fmt.Errorf("writer: chan_sum(sum): %w", err)
	}
	diff, _, err := reduceChanSum(diffRaw, count, rawWordsPerBaseline, w.cfg.ChanSum, laneWidth)
	if err != nil {
		return fmt.Errorf("writer: chan_sum(diff): %w", err)
	}

	if w.state == InFile && SameFile(strtBcnt, stopBcnt, w.bcntsPerFile) {
		return w.appendGroup(blk, start, count, strtBcnt, sum, diff, wordsPerBaseline)
	}

	breakBcnt := BreakBcnt(strtBcnt, w.bcntsPerFile)
	nblsBeforeBreak := 0
	if w.state == InFile {
		if breakBcnt > strtBcnt {
			nblsBeforeBreak = int(breakBcnt - strtBcnt)
			if nblsBeforeBreak > count {
				nblsBeforeBreak = count
			}
			if err := w.appendGroup(blk, start, nblsBeforeBreak, strtBcnt, sum, diff, wordsPerBaseline); err != nil {
				return err
			}
		}
		if err := w.closeFile(blk.Header.Mcnt[start+maxInt(nblsBeforeBreak-1, 0)]); err != nil {
			return err
		}
	}

	if err := w.openFile(ctx, blk.Header.Mcnt[start+nblsBeforeBreak], breakBcnt); err != nil {
		return err
	}

	remaining := count - nblsBeforeBreak
	if remaining > 0 {
		sumRest := sum[nblsBeforeBreak*wordsPerBaseline:]
		diffRest := diff[nblsBeforeBreak*wordsPerBaseline:]
		if err := w.appendGroup(blk, start+nblsBeforeBreak, remaining, breakBcnt, sumRest, diffRest, wordsPerBaseline); err != nil {
			return err
		}
	}

	return nil
}

// appendGroup writes count baselines' worth of sum/diff (already sliced to
// start at baseline 0 of this call) to the currently open file, and
// records their metadata at the correct file-relative offset.
func (w *Writer) appendGroup(blk *block.XBlock, start, count int, strtBcnt uint64, sum, diff []int32, wordsPerBaseline int) error {
	if count <= 0 {
		return nil
	}
	n := count * wordsPerBaseline
	if err := w.sum.WriteVis(sum[:n]); err != nil {
		return err
	}
	if err := w.diff.WriteVis(diff[:n]); err != nil {
		return err
	}

	fileOffset := int(strtBcnt - uint64(w.currFileBcnt))
	for b := 0; b < count; b++ {
		src := start + b
		ant0 := blk.Header.AntPair0[src]
		ant1 := blk.Header.AntPair1[src]
		heraAnt0, heraAnt1 := ant0, ant1
		if int(ant0) < len(w.corrToHeraMap) {
			heraAnt0 = uint16(w.corrToHeraMap[ant0])
		}
		if int(ant1) < len(w.corrToHeraMap) {
			heraAnt1 = uint16(w.corrToHeraMap[ant1])
		}

		integrationTime := 2.0
		if fileOffset+b < len(w.integrationTimes) {
			integrationTime = w.integrationTimes[fileOffset+b]
		}

		jd := xtime.MidpointJulianDate(xtime.SpectrumTime(w.syncTimeMs, blk.Header.Mcnt[src], w.nChanTotalGenerated, w.fengSampleRateHz), durationFromSeconds(integrationTime))

		w.fileMeta.SetBaseline(fileOffset+b, int32(heraAnt0), int32(heraAnt1), jd, integrationTime)
	}

	return nil
}

func (w *Writer) openFile(ctx context.Context, firstMcnt uint64, breakBcnt uint64) error {
	t := xtime.SpectrumTime(w.syncTimeMs, firstMcnt, w.nChanTotalGenerated, w.fengSampleRateHz)
	jd := xtime.JulianDate(t)

	dir, sumPath, diffPath, metaPath := FilePaths(w.cfg.OutputDir, jd)
	if err := ensureDir(dir); err != nil {
		return err
	}

	sum, err := createRawFile(sumPath)
	if err != nil {
		return err
	}
	diff, err := createRawFile(diffPath)
	if err != nil {
		sum.Close()
		return err
	}

	if w.meta != nil {
		if m, err := w.meta.CorrToHeraMap(ctx); err == nil {
			w.corrToHeraMap = m
		} else {
			w.log.Warnw("failed to refresh correlator-to-antenna map", "error", err)
		}
		if it, err := w.meta.IntegrationTimes(ctx, w.accLen); err == nil {
			w.integrationTimes = it
		} else {
			w.log.Warnw("failed to refresh integration times", "error", err)
		}
	}

	w.sum = sum
	w.diff = diff
	w.dir = dir
	w.fileMeta = NewFileMetadata(w.bcntsPerFile, w.cfg.CorrVer, w.cfg.Tag, w.cfg.NChanTotal, w.cfg.NStokes)
	w.fileMeta.SyncTimeMs = w.syncTimeMs
	w.currFileBcnt = int64(breakBcnt)
	w.state = InFile

	w.log.Infow("opened output file", "sum", sumPath, "diff", diffPath, "meta", metaPath)
	return nil
}

func (w *Writer) closeFile(lastMcnt uint64) error {
	if w.sum == nil {
		return nil
	}

	w.fileMeta.LastMcnt = lastMcnt

	// The sidecar shares the zen.<JD> name chosen when the file was opened.
	sumName := w.sum.f.Name()
	metaPath := sumName[:len(sumName)-len(".sum.dat")] + ".meta.hdf5"
	if err := writeHDF5Metadata(metaPath, w.fileMeta); err != nil {
		// spec.md §7: HDF5 create/write failure is fatal for the writer
		// thread, not a warn-and-continue condition.
		return fmt.Errorf("writer: hdf5 metadata sidecar %s: %w", metaPath, err)
	}

	if err := w.sum.Close(); err != nil {
		return err
	}
	if err := w.diff.Close(); err != nil {
		return err
	}

	w.sum, w.diff = nil, nil
	w.fileCount++
	w.state = BetweenFiles

	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
