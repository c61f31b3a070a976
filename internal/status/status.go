// Package status implements the in-process status key-value store of
// spec.md §4.5: a small, injected map. Pipeline stages publish operational
// counters into it (dropped packets, reset counts, current file, idle
// state) for the external observability stage out of scope of this module,
// and a pipeline stage reads the spec.md §6 control keys (TRIGGER, NFILES,
// TAG, INTTIME, SYNCTIME, NBL{2,4,8,16}SEC, …) out of it to drive the
// writer's IDLE->BetweenFiles transition. It is always passed by handle,
// never reached through a package-level singleton (spec.md §9
// "Singletons").
package status

import "sync"

// Store is a concurrency-safe string-keyed key-value map.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

// New creates a Store seeded with initial key/value pairs.
func New(initial map[string]string) *Store {
	s := &Store{data: make(map[string]string, len(initial))}
	for k, v := range initial {
		s.data[k] = v
	}
	return s
}

// Set records key=value.
func (m *Store) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// Get returns key's value and whether it was present.
func (m *Store) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

// Snapshot returns a copy of the entire key set.
func (m *Store) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

// Delete removes key, if present.
func (m *Store) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

// Status keys published by the reassembler and writer stages, for
// observability only (not part of the external control surface below).
const (
	KeyDroppedPackets   = "dropped_packets"
	KeyOutOfSeqPackets  = "out_of_seq_packets"
	KeyResetCount       = "reset_count"
	KeyParityMismatches = "parity_mismatches"
	KeyCurrentFile      = "current_file"
	KeyIsTakingData     = "is_taking_data"
	KeyFilesWritten     = "files_written"
)

// External control/status keys (spec.md §4.5, §6): the only keys a
// user-space operator writes into the store. TRIGGER/NFILES/TAG/INTTIME/
// SYNCTIME/NBL{2,4,8,16}SEC are read by the writer's IDLE->BetweenFiles
// transition (spec.md §4.4); NDONEFIL is published by hera-catcher-xeng
// as files complete. The rest are defined here only; nothing in the core
// reads or publishes them.
const (
	KeyTrigger  = "TRIGGER"
	KeyNFiles   = "NFILES"
	KeyTag      = "TAG"
	KeySyncTime = "SYNCTIME"
	KeyIntTime  = "INTTIME"
	KeyBDANAnt  = "BDANANT"
	KeyNBl2Sec  = "NBL2SEC"
	KeyNBl4Sec  = "NBL4SEC"
	KeyNBl8Sec  = "NBL8SEC"
	KeyNBl16Sec = "NBL16SEC"

	KeyDiskMcnt  = "DISKMCNT"
	KeyDiskBcnt  = "DISKBCNT"
	KeyDiskBkIn  = "DISKBKIN"
	KeyNDoneFil  = "NDONEFIL"
	KeyFileSec   = "FILESEC"
	KeyDiskGbps  = "DISKGBPS"
	KeyDumpMs    = "DUMPMS"
	KeyNetBcnt   = "NETBCNT"
	KeyNetMcnt   = "NETMCNT"
	KeyNetBkOut  = "NETBKOUT"
	KeyMissXeng  = "MISSXENG"
	KeyMissedPk  = "MISSEDPK"
	KeyMissedFe  = "MISSEDFE"
	KeyCNetHold  = "CNETHOLD"
	KeyNetHold   = "NETHOLD"
	KeyTimeIdx   = "TIMEIDX"
	KeyXID       = "XID"
	KeyBindPort  = "BINDPORT"
	KeyGitVer    = "GIT_VER"
	KeyDiskStat  = "DISKSTAT"
	KeyNetStat   = "NETSTAT"
	KeyCNetStat  = "CNETSTAT"
)
