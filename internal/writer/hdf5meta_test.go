package writer

import (
	"path/filepath"
	"testing"

	hdf5 "github.com/sbinet/go-hdf5"
	"github.com/stretchr/testify/require"
)

// TestWriteHDF5MetadataRoundTrip covers testable property 8 (spec.md §8):
// every scalar and array dataset writeHDF5Metadata produces reads back
// equal, element-wise, to binary exactness, to the values supplied.
func TestWriteHDF5MetadataRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zen.round-trip.meta.hdf5")

	m := &FileMetadata{
		SyncTimeMs: 1700000000123,
		LastMcnt:   987654321,
		NFreq:      1536,
		NStokes:    4,
		CorrVer:    "v2.7.1",
		Tag:        "engineering",

		Ant0Array:       []int32{1, 2, 3},
		Ant1Array:       []int32{4, 5, 6},
		TimeArray:       []float64{2459000.123456, 2459000.123457, 2459000.123458},
		IntegrationTime: []float64{2.0, 2.0, 2.0},
		NBaselines:      3,
	}

	require.NoError(t, writeHDF5Metadata(path, m))

	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	require.NoError(t, err)
	defer f.Close()

	var gotT0, gotMcnt, gotNFreq, gotNStokes uint64
	require.NoError(t, readScalarUint(f, "t0", &gotT0))
	require.NoError(t, readScalarUint(f, "mcnt", &gotMcnt))
	require.NoError(t, readScalarUint(f, "nfreq", &gotNFreq))
	require.NoError(t, readScalarUint(f, "nstokes", &gotNStokes))
	require.Equal(t, uint64(m.SyncTimeMs), gotT0)
	require.Equal(t, m.LastMcnt, gotMcnt)
	require.Equal(t, uint64(m.NFreq), gotNFreq)
	require.Equal(t, uint64(m.NStokes), gotNStokes)

	var gotCorrVer, gotTag string
	require.NoError(t, readScalarString(f, "corr_ver", &gotCorrVer))
	require.NoError(t, readScalarString(f, "tag", &gotTag))
	require.Equal(t, m.CorrVer, gotCorrVer)
	require.Equal(t, m.Tag, gotTag)

	gotAnt0, err := readInt32Array(f, "ant_0_array", m.NBaselines)
	require.NoError(t, err)
	gotAnt1, err := readInt32Array(f, "ant_1_array", m.NBaselines)
	require.NoError(t, err)
	require.Equal(t, m.Ant0Array[:m.NBaselines], gotAnt0)
	require.Equal(t, m.Ant1Array[:m.NBaselines], gotAnt1)

	gotTime, err := readFloat64Array(f, "time_array", m.NBaselines)
	require.NoError(t, err)
	gotIntTime, err := readFloat64Array(f, "integration_time", m.NBaselines)
	require.NoError(t, err)
	require.Equal(t, m.TimeArray[:m.NBaselines], gotTime)
	require.Equal(t, m.IntegrationTime[:m.NBaselines], gotIntTime)
}

func readScalarUint(f *hdf5.File, name string, out *uint64) error {
	dset, err := f.OpenDataset(name)
	if err != nil {
		return err
	}
	defer dset.Close()
	return dset.Read(out)
}

func readScalarString(f *hdf5.File, name string, out *string) error {
	dset, err := f.OpenDataset(name)
	if err != nil {
		return err
	}
	defer dset.Close()
	return dset.Read(out)
}

func readInt32Array(f *hdf5.File, name string, n int) ([]int32, error) {
	dset, err := f.OpenDataset(name)
	if err != nil {
		return nil, err
	}
	defer dset.Close()
	out := make([]int32, n)
	if err := dset.Read(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func readFloat64Array(f *hdf5.File, name string, n int) ([]float64, error) {
	dset, err := f.OpenDataset(name)
	if err != nil {
		return nil, err
	}
	defer dset.Close()
	out := make([]float64, n)
	if err := dset.Read(&out); err != nil {
		return nil, err
	}
	return out, nil
}
