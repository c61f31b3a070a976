package writer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hera-collab/catcher/internal/writer"
)

func TestSameFile(t *testing.T) {
	require.True(t, writer.SameFile(3, 7, 16))
	require.False(t, writer.SameFile(0, 7, 16)) // strt is itself a boundary
	require.False(t, writer.SameFile(12, 20, 16))
}

func TestBreakBcnt(t *testing.T) {
	require.EqualValues(t, 16, writer.BreakBcnt(16, 16))
	require.EqualValues(t, 32, writer.BreakBcnt(20, 16))
	require.EqualValues(t, 16, writer.BreakBcnt(1, 16))
}
