// Package block defines the assembled-block payloads that the reassembler
// stages fill and the sum/diff writer consumes (spec.md §3).
package block

import "github.com/hera-collab/catcher/internal/bitset"

// Alignment is the cache-line size (bytes) that every hot subregion of a
// block is padded to begin on (spec.md §5).
const Alignment = 64

// FBlock is one F-engine reassembly output block: a fixed-size voltage
// payload indexed as (sub_block, antenna, channel, time), plus a header
// carrying the first spectrum counter of the block and a completeness
// flag.
type FBlock struct {
	Header  FBlockHeader
	Payload []byte // indexed via Offset

	// SubBlocks, Antennas, Channels, and Times describe the payload's
	// logical shape; Offset computes a byte offset from them.
	SubBlocks int
	Antennas  int
	Channels  int
	Times     int

	// received tracks which (sub_block, antenna, channel, time) cells have
	// been written, for duplicate detection and the completion check.
	received *bitset.Large
}

// FBlockHeader carries metadata promoted from the first packet seen for
// each mcnt within the block (spec.md §4.2 "Header promotion").
type FBlockHeader struct {
	// Mcnt is the first spectrum counter covered by this block.
	Mcnt uint64
	// GoodData is 1 iff every expected packet for the block was observed
	// exactly once.
	GoodData bool
}

// NewFBlock allocates an FBlock payload sized for the given shape. The
// payload slice length is rounded up to a multiple of Alignment.
func NewFBlock(subBlocks, antennas, channels, times, bytesPerSample int) *FBlock {
	cells := subBlocks * antennas * channels * times
	size := cells * bytesPerSample
	size = ((size + Alignment - 1) / Alignment) * Alignment

	return &FBlock{
		Payload:   make([]byte, size),
		SubBlocks: subBlocks,
		Antennas:  antennas,
		Channels:  channels,
		Times:     times,
		received:  bitset.NewLarge(uint32(cells)),
	}
}

// Offset returns the byte offset of the (subBlock, antenna, channel, time)
// cell's first sample, for a payload with bytesPerSample bytes per sample.
func (m *FBlock) Offset(subBlock, antenna, channel, time, bytesPerSample int) int {
	idx := ((subBlock*m.Antennas+antenna)*m.Channels+channel)*m.Times + time
	return idx * bytesPerSample
}

// CellIndex linearizes (subBlock, antenna, channel, time) into the flat
// index space used by the duplicate-detection bitset.
func (m *FBlock) CellIndex(subBlock, antenna, channel, time int) uint32 {
	return uint32(((subBlock*m.Antennas+antenna)*m.Channels+channel)*m.Times + time)
}

// MarkReceived records that a cell was written, returning false if it was
// already marked (a duplicate).
func (m *FBlock) MarkReceived(cell uint32) (isNew bool) {
	return m.received.Insert(cell)
}

// Reset clears the block's completeness tracking and header, preparing the
// slot for reuse.
func (m *FBlock) Reset() {
	m.received.Reset()
	m.Header = FBlockHeader{}
}

// ReceivedCount returns how many distinct cells have been marked received
// since the last Reset.
func (m *FBlock) ReceivedCount() uint {
	return m.received.Count()
}

// XBlock is one X-engine reassembly output block: visibility baselines
// indexed as (baseline, time_parity, xeng_slice, channel_chunk), plus a
// per-baseline header.
type XBlock struct {
	Header  XBlockHeader
	Payload []byte

	Baselines  int
	TimeParity int
	XengSlices int
	ChanChunks int

	received *bitset.Large
}

// XBlockHeader carries the per-baseline metadata promoted from the first
// packet seen for each baseline within the block.
type XBlockHeader struct {
	Mcnt     []uint64
	Bcnt     []uint64
	AntPair0 []uint16
	AntPair1 []uint16
	GoodData bool
}

// NewXBlock allocates an XBlock payload and header sized for the given
// shape.
func NewXBlock(baselines, timeParity, xengSlices, chanChunks, bytesPerVis int) *XBlock {
	cells := baselines * timeParity * xengSlices * chanChunks
	size := cells * bytesPerVis
	size = ((size + Alignment - 1) / Alignment) * Alignment

	return &XBlock{
		Payload:    make([]byte, size),
		Baselines:  baselines,
		TimeParity: timeParity,
		XengSlices: xengSlices,
		ChanChunks: chanChunks,
		received:   bitset.NewLarge(uint32(cells)),
		Header: XBlockHeader{
			Mcnt:     make([]uint64, baselines),
			Bcnt:     make([]uint64, baselines),
			AntPair0: make([]uint16, baselines),
			AntPair1: make([]uint16, baselines),
		},
	}
}

// Offset returns the byte offset of (baseline, parity, xengSlice,
// chanChunk)'s first sample, for a payload with bytesPerVis bytes per
// visibility.
func (m *XBlock) Offset(baseline, parity, xengSlice, chanChunk, bytesPerVis int) int {
	idx := ((baseline*m.TimeParity+parity)*m.XengSlices+xengSlice)*m.ChanChunks + chanChunk
	return idx * bytesPerVis
}

// CellIndex linearizes (baseline, parity, xengSlice, chanChunk).
func (m *XBlock) CellIndex(baseline, parity, xengSlice, chanChunk int) uint32 {
	return uint32(((baseline*m.TimeParity+parity)*m.XengSlices+xengSlice)*m.ChanChunks + chanChunk)
}

// MarkReceived records that a cell was written, returning false if it was
// already marked (a duplicate).
func (m *XBlock) MarkReceived(cell uint32) (isNew bool) {
	return m.received.Insert(cell)
}

// ReceivedCount returns how many distinct cells have been marked received
// since the last Reset.
func (m *XBlock) ReceivedCount() uint {
	return m.received.Count()
}

// Reset clears the block's completeness tracking and per-baseline headers,
// preparing the slot for reuse.
func (m *XBlock) Reset() {
	m.received.Reset()
	for i := range m.Header.Mcnt {
		m.Header.Mcnt[i] = 0
		m.Header.Bcnt[i] = 0
		m.Header.AntPair0[i] = 0
		m.Header.AntPair1[i] = 0
	}
	m.Header.GoodData = false
}

// AutocorrBlock is the side-channel block holding per-antenna
// autocorrelations copied out of the main X-engine reassembly path
// (spec.md §3, §4.4).
type AutocorrBlock struct {
	// present marks which antennas' autocorrelations have been copied into
	// Data already, as a fixed-size flag set (HERA's antenna count fits
	// comfortably inside TinyBitset's capacity, unlike the cell-per-sample
	// counts tracked by Large above).
	present bitset.TinyBitset
	// NAntsTotal is the deployment's antenna count, i.e. the size of the
	// flag set present tracks.
	NAntsTotal int
	JulianTime float64
	// Data is indexed (antenna, channel, stokes, component), component in
	// {real, imag}.
	Data []int32

	NChanTotal int
	NStokes    int
}

// NewAutocorrBlock allocates an AutocorrBlock for nAntsTotal antennas.
func NewAutocorrBlock(nAntsTotal, nChanTotal, nStokes int) *AutocorrBlock {
	return &AutocorrBlock{
		NAntsTotal: nAntsTotal,
		Data:       make([]int32, nAntsTotal*nChanTotal*nStokes*2),
		NChanTotal: nChanTotal,
		NStokes:    nStokes,
	}
}

// Offset returns the index into Data for (antenna, channel, stokes,
// component).
func (m *AutocorrBlock) Offset(antenna, channel, stokes, component int) int {
	return ((antenna*m.NChanTotal+channel)*m.NStokes+stokes)*2 + component
}

// MarkPresent marks antenna's autocorrelation as filled, returning true iff
// the marked count now equals NAntsTotal (the block is complete). Marking
// an antenna that is already present does not change the count, so on a
// complete block it returns true again.
func (m *AutocorrBlock) MarkPresent(antenna int) (complete bool) {
	m.present.Insert(uint32(antenna))
	return int(m.present.Count()) == m.NAntsTotal
}

// IsPresent reports whether antenna's autocorrelation has already been
// copied into Data.
func (m *AutocorrBlock) IsPresent(antenna int) bool {
	return m.present.Contains(uint32(antenna))
}

// NumAnts reports how many distinct antennas have been marked present
// since the last Reset.
func (m *AutocorrBlock) NumAnts() int {
	return int(m.present.Count())
}

// Reset clears presence tracking, preparing the slot for reuse.
func (m *AutocorrBlock) Reset() {
	m.present.Reset()
	m.JulianTime = 0
}
