// Package ring implements the fixed-size, slot-based ring buffer primitive
// that connects every stage of the catcher pipeline (spec.md §4.1).
//
// Each slot carries a state word in {Free, Filling, Filled}. A producer
// transitions Free -> Filling -> Filled; a consumer transitions
// Filled -> Free. Exactly one producer and one consumer may operate on a
// given ring at a time: the index arithmetic is the GC-friendly,
// slice-backed scheme used by container/ring-style ring types, and the
// per-slot state word is a single atomic, matching a wait-free SPSC ring's
// cache-line-padded slot layout. Unlike an overwrite-on-full telemetry
// ring, callers here must wait for a slot to become available: BusywaitFree
// and WaitFilled block until the awaited transition happens, the context is
// canceled, or the timeout elapses, returning TimedOut so callers can poll
// a shutdown flag without ever blocking forever (spec.md §5).
package ring

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// WaitResult is the outcome of a blocking wait on a ring slot.
type WaitResult int

const (
	// Ok means the awaited transition was observed.
	Ok WaitResult = iota
	// TimedOut means the wait's deadline elapsed before the transition.
	// This is an expected, non-error outcome used to probe shutdown.
	TimedOut
	// Err means the wait was aborted because the caller's context was
	// canceled.
	Err
)

func (r WaitResult) String() string {
	switch r {
	case Ok:
		return "Ok"
	case TimedOut:
		return "TimedOut"
	case Err:
		return "Err"
	default:
		return "Unknown"
	}
}

type slotState uint32

const (
	stateFree slotState = iota
	stateFilling
	stateFilled
)

const cacheLinePad = 64

// slot holds one ring element plus its state word. The padding keeps
// adjacent slots' state words on separate cache lines so producer and
// consumer threads touching neighboring slots don't false-share.
type slot[T any] struct {
	state atomic.Uint32
	_     [cacheLinePad - 4]byte
	data  T
}

// Ring is a fixed-size sequence of N slots, each independently addressable
// by index and individually gated through the Free/Filling/Filled state
// machine.
type Ring[T any] struct {
	slots []slot[T]

	mu      sync.Mutex
	waiters []chan struct{} // one broadcast channel per slot, replaced on every transition
}

// New creates a Ring with the given number of slots, each zero-valued and
// Free.
func New[T any](size int) *Ring[T] {
	if size <= 0 {
		panic("ring: size must be positive")
	}

	r := &Ring[T]{
		slots:   make([]slot[T], size),
		waiters: make([]chan struct{}, size),
	}
	for i := range r.waiters {
		r.waiters[i] = make(chan struct{})
	}

	return r
}

// Len returns the number of slots in the ring.
func (r *Ring[T]) Len() int {
	return len(r.slots)
}

// At returns a pointer to the payload of slot i, for use while the caller
// holds that slot (i.e. between a successful BusywaitFree/WaitFilled and
// the matching SetFilled/SetFree). Accessing it outside that window is a
// race.
func (r *Ring[T]) At(i int) *T {
	return &r.slots[i%len(r.slots)].data
}

// SetFilling transitions slot i from Free to Filling, the producer's claim
// on the slot before it starts writing. It does not block or notify: only
// a later SetFilled matters to consumers.
func (r *Ring[T]) SetFilling(i int) {
	r.slots[i%len(r.slots)].state.Store(uint32(stateFilling))
}

// SetFilled transitions slot i to Filled and wakes any consumer waiting on
// it.
func (r *Ring[T]) SetFilled(i int) {
	r.transition(i, stateFilled)
}

// SetFree transitions slot i to Free and wakes any producer waiting on it.
func (r *Ring[T]) SetFree(i int) {
	r.transition(i, stateFree)
}

func (r *Ring[T]) transition(i int, to slotState) {
	idx := i % len(r.slots)
	r.slots[idx].state.Store(uint32(to))

	r.mu.Lock()
	ch := r.waiters[idx]
	r.waiters[idx] = make(chan struct{})
	r.mu.Unlock()

	close(ch)
}

func (r *Ring[T]) wait(ctx context.Context, i int, timeout time.Duration, want slotState) WaitResult {
	idx := i % len(r.slots)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if slotState(r.slots[idx].state.Load()) == want {
			return Ok
		}

		r.mu.Lock()
		ch := r.waiters[idx]
		r.mu.Unlock()

		// Re-check after acquiring the current generation's channel: the
		// transition may have already happened between the load above and
		// the lock.
		if slotState(r.slots[idx].state.Load()) == want {
			return Ok
		}

		select {
		case <-ch:
			continue
		case <-timer.C:
			return TimedOut
		case <-ctx.Done():
			return Err
		}
	}
}

// BusywaitFree blocks until slot i is Free, or until timeout elapses, or
// until ctx is canceled.
func (r *Ring[T]) BusywaitFree(ctx context.Context, i int, timeout time.Duration) WaitResult {
	return r.wait(ctx, i, timeout, stateFree)
}

// WaitFilled blocks until slot i is Filled, or until timeout elapses, or
// until ctx is canceled.
func (r *Ring[T]) WaitFilled(ctx context.Context, i int, timeout time.Duration) WaitResult {
	return r.wait(ctx, i, timeout, stateFilled)
}

// IsFree reports whether slot i is currently Free, without blocking.
func (r *Ring[T]) IsFree(i int) bool {
	return slotState(r.slots[i%len(r.slots)].state.Load()) == stateFree
}

// IsFilled reports whether slot i is currently Filled, without blocking.
func (r *Ring[T]) IsFilled(i int) bool {
	return slotState(r.slots[i%len(r.slots)].state.Load()) == stateFilled
}
