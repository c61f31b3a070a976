package simd_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hera-collab/catcher/internal/simd"
)

func TestAlignedBufferIsAligned(t *testing.T) {
	for _, n := range []int{1, 3, 32, 257, 4096} {
		buf := simd.AlignedBuffer(n)
		require.Len(t, buf, n)
		require.True(t, simd.IsAligned(buf))
	}
}

// TestSumDiffIdentity checks the sum/diff identity: sum[c]+diff[c] == 2*even[c]
// and sum[c]-diff[c] == 2*odd[c] for every lane.
func TestSumDiffIdentity(t *testing.T) {
	even := simd.AlignedBuffer(8)
	odd := simd.AlignedBuffer(8)
	for i := range even {
		even[i] = int32(i * 3)
		odd[i] = int32(i - 4)
	}

	sum := simd.AlignedBuffer(8)
	diff := simd.AlignedBuffer(8)
	require.NoError(t, simd.SumDiff(even, odd, sum, diff))

	for i := range even {
		require.Equal(t, 2*even[i], sum[i]+diff[i])
		require.Equal(t, 2*odd[i], sum[i]-diff[i])
	}
}

func TestSumDiffLengthMismatch(t *testing.T) {
	even := simd.AlignedBuffer(4)
	odd := simd.AlignedBuffer(8)
	sum := simd.AlignedBuffer(8)
	diff := simd.AlignedBuffer(8)
	require.Error(t, simd.SumDiff(even, odd, sum, diff))
}

func TestChanSumAccumulates(t *testing.T) {
	in := []int32{1, 2, 3, 4, 5, 6}
	out, err := simd.ChanSum(in, 2)
	require.NoError(t, err)
	require.Equal(t, []int32{3, 7, 11}, out)
}

func TestChanSumRejectsNonDivisible(t *testing.T) {
	_, err := simd.ChanSum([]int32{1, 2, 3}, 2)
	require.Error(t, err)
}
