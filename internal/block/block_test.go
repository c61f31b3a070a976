package block_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hera-collab/catcher/internal/block"
)

func TestFBlockCellIndexAndDuplicateDetection(t *testing.T) {
	b := block.NewFBlock(2, 4, 8, 2, 2)

	cell := b.CellIndex(1, 2, 3, 1)
	require.True(t, b.MarkReceived(cell))
	require.False(t, b.MarkReceived(cell), "second mark of the same cell must report a duplicate")
	require.EqualValues(t, 1, b.ReceivedCount())

	b.Reset()
	require.EqualValues(t, 0, b.ReceivedCount())
}

func TestFBlockPayloadIsAlignmentPadded(t *testing.T) {
	b := block.NewFBlock(1, 1, 1, 1, 1)
	require.Zero(t, len(b.Payload)%block.Alignment)
}

func TestXBlockDuplicateDetection(t *testing.T) {
	b := block.NewXBlock(256, 2, 4, 8, 8)

	cell := b.CellIndex(10, 0, 1, 2)
	require.True(t, b.MarkReceived(cell))
	require.False(t, b.MarkReceived(cell))

	b.Header.AntPair0[10] = 3
	b.Header.AntPair1[10] = 5
	b.Reset()
	require.EqualValues(t, 0, b.Header.AntPair0[10])
	require.EqualValues(t, 0, b.ReceivedCount())
}

func TestAutocorrBlockCompletion(t *testing.T) {
	ab := block.NewAutocorrBlock(4, 16, 4)

	require.False(t, ab.MarkPresent(0))
	require.False(t, ab.MarkPresent(1))
	require.False(t, ab.MarkPresent(2))
	require.True(t, ab.MarkPresent(3))
	require.Equal(t, 4, ab.NumAnts())

	// Re-marking an already-present antenna doesn't double count.
	require.True(t, ab.MarkPresent(3))
	require.Equal(t, 4, ab.NumAnts())

	off := ab.Offset(2, 5, 1, 0)
	require.GreaterOrEqual(t, off, 0)
	require.Less(t, off, len(ab.Data))

	ab.Reset()
	require.Equal(t, 0, ab.NumAnts())
	require.False(t, ab.IsPresent(3))
}
