package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hera-collab/catcher/internal/config"
)

func TestDefaultConfigReassemblerShape(t *testing.T) {
	cfg := config.DefaultConfig()

	require.Equal(t, "xeng", cfg.Reassembler.Variant)
	require.Equal(t, uint64(2), cfg.Reassembler.TimeDemuxNt)
	require.Greater(t, cfg.Reassembler.Baselines, 0)

	nChanProcessed, err := cfg.Writer.NChanProcessed()
	require.NoError(t, err)
	require.Equal(t, cfg.Writer.NChanTotal/cfg.Writer.ChanSum, nChanProcessed)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catcher.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
reassembler:
  variant: feng
  time_index: 1
writer:
  output_dir: /tmp/hera-catcher-test
kvstore:
  addr: redis.example:6379
`), 0o644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "feng", cfg.Reassembler.Variant)
	require.Equal(t, uint64(1), cfg.Reassembler.TimeIndex)
	require.Equal(t, "/tmp/hera-catcher-test", cfg.Writer.OutputDir)
	require.Equal(t, "redis.example:6379", cfg.KVStore.Addr)
	// Fields untouched by the override file keep their defaults.
	require.Equal(t, 61425, cfg.Reassembler.Baselines)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
