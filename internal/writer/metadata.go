package writer

// FileMetadata accumulates the per-baseline HDF5 sidecar fields for one
// open output file: antenna pairs, per-baseline Julian time, and
// integration time, indexed by offset within the file (spec.md §4.4,
// original_source's ant_0_array/ant_1_array/time_array_buf).
type FileMetadata struct {
	SyncTimeMs int64
	LastMcnt   uint64
	NFreq      int
	NStokes    int
	CorrVer    string
	Tag        string

	Ant0Array       []int32
	Ant1Array       []int32
	TimeArray       []float64
	IntegrationTime []float64

	// NBaselines is the number of entries actually populated; the arrays
	// above are pre-sized to bcntsPerFile and zero-filled past this.
	NBaselines int
}

// NewFileMetadata allocates metadata buffers sized for one full file.
func NewFileMetadata(bcntsPerFile uint64, corrVer, tag string, nFreq, nStokes int) *FileMetadata {
	return &FileMetadata{
		NFreq:           nFreq,
		NStokes:         nStokes,
		CorrVer:         corrVer,
		Tag:             tag,
		Ant0Array:       make([]int32, bcntsPerFile),
		Ant1Array:       make([]int32, bcntsPerFile),
		TimeArray:       make([]float64, bcntsPerFile),
		IntegrationTime: make([]float64, bcntsPerFile),
	}
}

// SetBaseline records one baseline's metadata at file offset.
func (m *FileMetadata) SetBaseline(offset int, ant0, ant1 int32, jd, integrationTime float64) {
	m.Ant0Array[offset] = ant0
	m.Ant1Array[offset] = ant1
	m.TimeArray[offset] = jd
	m.IntegrationTime[offset] = integrationTime
	if offset+1 > m.NBaselines {
		m.NBaselines = offset + 1
	}
}
