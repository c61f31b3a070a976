// Package pipeline wires the ring-buffer stages of spec.md §2 together
// under one supervising errgroup: a raw frame source feeds a reassembler,
// whose assembled-block ring feeds a writer, all stages sharing one
// shutdown signal. It intentionally owns no singletons — every stage
// handle (status store, kvstore client, logger) is constructed by the
// caller and injected in, per spec.md §9's "Singletons" design note.
package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hera-collab/catcher/internal/status"
)

// ReassemblerStats is satisfied by both XReassembler and FReassembler.
type ReassemblerStats interface {
	Stats() (dropped, outOfSeq, parityMismatches, resets uint64)
}

// Option configures a Pipeline at construction.
type Option func(*Pipeline)

// WithStatusPublishInterval installs fn as the status publisher, run as an
// extra stage under the errgroup; fn itself decides how often it copies
// stage counters into the status store. It takes no interval.
func WithStatusPublishInterval(fn func(ctx context.Context)) Option {
	return func(p *Pipeline) { p.statusPublisher = fn }
}

// Pipeline supervises the goroutines of one catcher instance (either
// variant) and exposes their counters through a shared status.Store.
type Pipeline struct {
	log    *zap.SugaredLogger
	status *status.Store

	stages          []func(ctx context.Context) error
	statusPublisher func(ctx context.Context)
}

// New constructs an empty Pipeline; stages are added with AddStage before
// Run is called.
func New(log *zap.SugaredLogger, st *status.Store, opts ...Option) *Pipeline {
	p := &Pipeline{log: log, status: st}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddStage registers a blocking stage function to run under the
// supervising errgroup. A stage should return promptly once ctx is
// canceled.
func (p *Pipeline) AddStage(fn func(ctx context.Context) error) {
	p.stages = append(p.stages, fn)
}

// Run starts every registered stage and blocks until ctx is canceled or
// any stage returns an error, at which point all stages are canceled and
// the first error is returned (spec.md §4.1 "Backpressure and liveness" —
// a stalled consumer should not deadlock the rest of the pipeline at
// shutdown).
func (p *Pipeline) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, stage := range p.stages {
		stage := stage
		g.Go(func() error {
			return stage(gctx)
		})
	}

	if p.statusPublisher != nil {
		g.Go(func() error {
			p.statusPublisher(gctx)
			return nil
		})
	}

	return g.Wait()
}

// Status returns the shared status store.
func (p *Pipeline) Status() *status.Store {
	return p.status
}
