package ring_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hera-collab/catcher/internal/ring"
)

func TestBusywaitFreeTimesOut(t *testing.T) {
	r := ring.New[int](4)
	r.SetFilling(0)
	r.SetFilled(0)

	got := r.BusywaitFree(context.Background(), 0, 20*time.Millisecond)
	require.Equal(t, ring.TimedOut, got)
}

func TestWaitFilledTimesOut(t *testing.T) {
	r := ring.New[int](4)

	got := r.WaitFilled(context.Background(), 0, 20*time.Millisecond)
	require.Equal(t, ring.TimedOut, got)
}

func TestWaitFilledWakesOnTransition(t *testing.T) {
	r := ring.New[int](4)

	done := make(chan ring.WaitResult, 1)
	go func() {
		done <- r.WaitFilled(context.Background(), 2, time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	*r.At(2) = 42
	r.SetFilled(2)

	got := <-done
	require.Equal(t, ring.Ok, got)
	require.Equal(t, 42, *r.At(2))
}

func TestBusywaitFreeWakesOnTransition(t *testing.T) {
	r := ring.New[int](4)
	r.SetFilling(1)
	r.SetFilled(1)

	done := make(chan ring.WaitResult, 1)
	go func() {
		done <- r.BusywaitFree(context.Background(), 1, time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	r.SetFree(1)

	require.Equal(t, ring.Ok, <-done)
}

func TestWaitCanceledByContext(t *testing.T) {
	r := ring.New[int](2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan ring.WaitResult, 1)
	go func() {
		done <- r.WaitFilled(ctx, 0, time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	require.Equal(t, ring.Err, <-done)
}

// TestProducerConsumerHandoff exercises a single producer/consumer pair
// passing 1000 items through a small ring, verifying that every item
// arrives exactly once and in order — the discipline every reassembler and
// the writer rely on.
func TestProducerConsumerHandoff(t *testing.T) {
	const n = 1000
	r := ring.New[int](8)

	var wg sync.WaitGroup
	wg.Add(2)

	ctx := context.Background()

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			idx := i % r.Len()
			require.Equal(t, ring.Ok, r.BusywaitFree(ctx, idx, time.Second))
			r.SetFilling(idx)
			*r.At(idx) = i
			r.SetFilled(idx)
		}
	}()

	got := make([]int, 0, n)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			idx := i % r.Len()
			require.Equal(t, ring.Ok, r.WaitFilled(ctx, idx, time.Second))
			got = append(got, *r.At(idx))
			r.SetFree(idx)
		}
	}()

	wg.Wait()

	want := make([]int, n)
	for i := range want {
		want[i] = i
	}
	require.Equal(t, want, got)
}
