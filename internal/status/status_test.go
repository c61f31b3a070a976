package status_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hera-collab/catcher/internal/status"
)

func TestStoreSetGetSnapshot(t *testing.T) {
	s := status.New(map[string]string{"a": "1"})

	v, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, "1", v)

	s.Set("b", "2")
	snap := s.Snapshot()
	require.Equal(t, map[string]string{"a": "1", "b": "2"}, snap)

	s.Delete("a")
	_, ok = s.Get("a")
	require.False(t, ok)
}
