// Package writer implements the sum/diff kernel application and the
// file-rollover writer of spec.md §4.4: for each filled X-engine block it
// streams sum/diff visibilities to paired raw files, keeps an HDF5
// metadata sidecar in sync, and copies autocorrelations to a side channel.
package writer

// SameFile reports whether the baseline range [startBcnt, stopBcnt] falls
// entirely within one bcnts_per_file window and does not itself begin a
// new file (spec.md §3 invariant 5, original_source's disk thread "start
// and end of this block belong in the same file" check).
func SameFile(startBcnt, stopBcnt, bcntsPerFile uint64) bool {
	return startBcnt/bcntsPerFile == stopBcnt/bcntsPerFile && startBcnt%bcntsPerFile != 0
}

// BreakBcnt returns the bcnt at which the current file must close and a
// new one open: startBcnt itself if it already lands on a boundary,
// otherwise the next boundary after it.
func BreakBcnt(startBcnt, bcntsPerFile uint64) uint64 {
	if startBcnt%bcntsPerFile == 0 {
		return startBcnt
	}
	return (startBcnt/bcntsPerFile + 1) * bcntsPerFile
}
