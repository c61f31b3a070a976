package writer

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// FilePaths computes the per-JD directory and the sum/diff/meta file paths
// for a new file opened at Julian date jd, matching
// original_source/src/hera_catcher_disk_thread.c's
// "%d/zen.%7.5lf.{sum,diff,meta}.{dat,hdf5}" naming.
func FilePaths(outputDir string, jd float64) (dir, sumPath, diffPath, metaPath string) {
	intJD := int(jd)
	dir = filepath.Join(outputDir, fmt.Sprintf("%d", intJD))
	base := fmt.Sprintf("zen.%7.5f", jd)
	sumPath = filepath.Join(dir, base+".sum.dat")
	diffPath = filepath.Join(dir, base+".diff.dat")
	metaPath = filepath.Join(dir, base+".meta.hdf5")
	return dir, sumPath, diffPath, metaPath
}

// rawFile is one buffered, big-endian int32 visibility stream (the sum.dat
// or diff.dat file of spec.md §4.4).
type rawFile struct {
	f *os.File
	w *bufio.Writer

	buf [4]byte
}

func createRawFile(path string) (*rawFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("writer: creating %s: %w", path, err)
	}
	return &rawFile{f: f, w: bufio.NewWriterSize(f, 1<<20)}, nil
}

// WriteVis appends vis, a slice of 32-bit lane-wise sum or diff values, in
// big-endian wire order (spec.md §4.3).
func (m *rawFile) WriteVis(vis []int32) error {
	for _, v := range vis {
		binary.BigEndian.PutUint32(m.buf[:], uint32(v))
		if _, err := m.w.Write(m.buf[:]); err != nil {
			return fmt.Errorf("writer: writing visibility word: %w", err)
		}
	}
	return nil
}

// Close flushes buffered output and closes the underlying file.
func (m *rawFile) Close() error {
	if err := m.w.Flush(); err != nil {
		m.f.Close()
		return fmt.Errorf("writer: flushing: %w", err)
	}
	return m.f.Close()
}

// ensureDir creates dir (and any parents) with mode 0777, matching
// spec.md §6's "parent directory...created (mode 0777)".
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return fmt.Errorf("writer: creating directory %s: %w", dir, err)
	}
	return os.Chmod(dir, 0o777)
}
