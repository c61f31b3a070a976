package writer

import (
	"fmt"

	hdf5 "github.com/sbinet/go-hdf5"
)

// writeHDF5Metadata creates the HDF5 sidecar for one closed output file,
// mirroring original_source's write_metadata: scalar t0/mcnt/nfreq/nstokes
// and string corr_ver/tag datasets, plus 1-D ant_0_array/ant_1_array/
// time_array/integration_time datasets sized to the file's actual
// baseline count.
func writeHDF5Metadata(path string, m *FileMetadata) error {
	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return fmt.Errorf("writer: creating hdf5 file %s: %w", path, err)
	}
	defer f.Close()

	if err := writeScalarUint(f, "t0", uint64(m.SyncTimeMs)); err != nil {
		return err
	}
	if err := writeScalarUint(f, "mcnt", m.LastMcnt); err != nil {
		return err
	}
	if err := writeScalarUint(f, "nfreq", uint64(m.NFreq)); err != nil {
		return err
	}
	if err := writeScalarUint(f, "nstokes", uint64(m.NStokes)); err != nil {
		return err
	}
	if err := writeScalarString(f, "corr_ver", m.CorrVer); err != nil {
		return err
	}
	if err := writeScalarString(f, "tag", m.Tag); err != nil {
		return err
	}

	n := m.NBaselines
	if err := write1DInt32(f, "ant_0_array", m.Ant0Array[:n]); err != nil {
		return err
	}
	if err := write1DInt32(f, "ant_1_array", m.Ant1Array[:n]); err != nil {
		return err
	}
	if err := write1DFloat64(f, "time_array", m.TimeArray[:n]); err != nil {
		return err
	}
	if err := write1DFloat64(f, "integration_time", m.IntegrationTime[:n]); err != nil {
		return err
	}

	return nil
}

func writeScalarUint(f *hdf5.File, name string, v uint64) error {
	space, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
	if err != nil {
		return fmt.Errorf("writer: hdf5 scalar dataspace for %s: %w", name, err)
	}
	defer space.Close()

	dt, err := hdf5.NewDatatypeFromValue(v)
	if err != nil {
		return fmt.Errorf("writer: hdf5 datatype for %s: %w", name, err)
	}

	dset, err := f.CreateDataset(name, dt, space)
	if err != nil {
		return fmt.Errorf("writer: hdf5 dataset %s: %w", name, err)
	}
	defer dset.Close()

	return dset.Write(&v)
}

func writeScalarString(f *hdf5.File, name, v string) error {
	space, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
	if err != nil {
		return fmt.Errorf("writer: hdf5 scalar dataspace for %s: %w", name, err)
	}
	defer space.Close()

	dt, err := hdf5.NewDatatypeFromValue(v)
	if err != nil {
		return fmt.Errorf("writer: hdf5 datatype for %s: %w", name, err)
	}

	dset, err := f.CreateDataset(name, dt, space)
	if err != nil {
		return fmt.Errorf("writer: hdf5 dataset %s: %w", name, err)
	}
	defer dset.Close()

	return dset.Write(&v)
}

func write1DInt32(f *hdf5.File, name string, v []int32) error {
	space, err := hdf5.CreateSimpleDataspace([]uint{uint(len(v))}, nil)
	if err != nil {
		return fmt.Errorf("writer: hdf5 1-d dataspace for %s: %w", name, err)
	}
	defer space.Close()

	dt, err := hdf5.NewDatatypeFromValue(int32(0))
	if err != nil {
		return fmt.Errorf("writer: hdf5 datatype for %s: %w", name, err)
	}

	dset, err := f.CreateDataset(name, dt, space)
	if err != nil {
		return fmt.Errorf("writer: hdf5 dataset %s: %w", name, err)
	}
	defer dset.Close()

	return dset.Write(&v)
}

func write1DFloat64(f *hdf5.File, name string, v []float64) error {
	space, err := hdf5.CreateSimpleDataspace([]uint{uint(len(v))}, nil)
	if err != nil {
		return fmt.Errorf("writer: hdf5 1-d dataspace for %s: %w", name, err)
	}
	defer space.Close()

	dt, err := hdf5.NewDatatypeFromValue(float64(0))
	if err != nil {
		return fmt.Errorf("writer: hdf5 datatype for %s: %w", name, err)
	}

	dset, err := f.CreateDataset(name, dt, space)
	if err != nil {
		return fmt.Errorf("writer: hdf5 dataset %s: %w", name, err)
	}
	defer dset.Close()

	return dset.Write(&v)
}
