package service

import (
	"context"
	"sync"
	"sync/atomic"

	perr "mailsweep/internal/platform/errors"
	"mailsweep/internal/platform/logger"
	dom "mailsweep/internal/services/verifier/domain"
)

// FlushResult describes one completed flush
type FlushResult struct {
	Sent      int
	Matched   int64
	Watermark int
	Len       int
	Err       error
}

// Batcher is the persistence queue: an append-only outcome log plus a watermark.
// Entries below the watermark are never sent again; the watermark only moves forward
type Batcher struct {
	mu        sync.Mutex
	queue     []dom.Outcome
	watermark int

	cap      int
	flushing atomic.Bool

	runID string
	sink  dom.ResultSink
	audit dom.AuditSink
	log   logger.Logger
}

// NewBatcher builds a batcher flushing at most batchCap outcomes per write; audit may be nil
func NewBatcher(sink dom.ResultSink, audit dom.AuditSink, batchCap int, runID string, log logger.Logger) *Batcher {
	return &Batcher{
		cap:   max(1, batchCap),
		runID: runID,
		sink:  sink,
		audit: audit,
		log:   log,
	}
}

// Enqueue appends one outcome; never blocks on a flush
func (b *Batcher) Enqueue(o dom.Outcome) {
	b.mu.Lock()
	b.queue = append(b.queue, o)
	b.mu.Unlock()
}

// Len is the number of outcomes ever enqueued
func (b *Batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Watermark is the count of entries handed to the store
func (b *Batcher) Watermark() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.watermark
}

// Pending is the count of entries at or above the watermark
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue) - b.watermark
}

// Flushing reports whether a flush is in progress
func (b *Batcher) Flushing() bool { return b.flushing.Load() }

// Due reports whether a flush should run: a full batch, or any remainder once draining
func (b *Batcher) Due(running bool) bool {
	p := b.Pending()
	return p >= b.cap || (p > 0 && !running)
}

// Flush writes the next pending slice. It returns false without doing anything when another
// flush is in progress or nothing is pending. The watermark advances before the write and is
// not rolled back when the write fails
func (b *Batcher) Flush(ctx context.Context) (FlushResult, bool) {
	if !b.flushing.CompareAndSwap(false, true) {
		return FlushResult{}, false
	}
	defer b.flushing.Store(false)

	b.mu.Lock()
	start := b.watermark
	end := min(len(b.queue), start+b.cap)
	if end <= start {
		b.mu.Unlock()
		return FlushResult{}, false
	}
	slice := make([]dom.Outcome, 0, end-start)
	for _, o := range b.queue[start:end] {
		if o.Email == "" {
			b.log.Error().Interface("outcome", o).Msg("outcome without email dropped from batch")
			continue
		}
		slice = append(slice, o)
	}
	b.watermark = end
	total := len(b.queue)
	b.mu.Unlock()

	res := FlushResult{Sent: len(slice), Watermark: end, Len: total}
	if len(slice) == 0 {
		return res, true
	}

	matched, err := b.sink.WriteResults(ctx, b.runID, slice)
	if err != nil {
		res.Err = err
		b.log.Error().Err(err).
			Str("code", perr.CodeOf(err).String()).
			Bool("retryable", perr.IsRetryable(err)).
			Bool("timed_out", perr.IsStatementTimeout(err)).
			Int("batch", len(slice)).
			Int("watermark", end).
			Int("len", total).
			Msg("store write failed; batch not persisted")
		return res, true
	}
	res.Matched = matched
	b.log.Info().
		Int64("matched", matched).
		Int("watermark", end).
		Int("len", total).
		Msg("batch saved")

	if b.audit != nil {
		if err := b.audit.RecordOutcomes(ctx, b.runID, slice); err != nil {
			b.log.Warn().Err(err).Int("batch", len(slice)).Msg("audit sink write failed")
		}
	}
	return res, true
}
