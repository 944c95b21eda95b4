package service

import (
	"context"
	"time"

	perr "mailsweep/internal/platform/errors"
	ptime "mailsweep/internal/platform/time"
	dom "mailsweep/internal/services/verifier/domain"

	"golang.org/x/sync/errgroup"
)

// Run starts the pipeline if needed and blocks until STOPPED.
// Cancelling ctx is the hard stop: loops exit at once and the partial report comes back with ctx's error.
// Use Interrupt for a graceful drain
func (p *Pipeline) Run(ctx context.Context) (dom.Report, error) {
	if p.State() == dom.StateNotStarted {
		if err := p.Start(); err != nil {
			return dom.Report{}, err
		}
	}
	if st := p.State(); st != dom.StateRunning {
		return p.Report(), perr.Conflictf("run in state %s", st)
	}
	p.mu.Lock()
	p.probeCtx = ctx
	p.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.every(gctx, p.cfg.ProgressEvery, p.progress) })
	g.Go(func() error { return p.every(gctx, p.cfg.PersistEvery, func() { p.persist(gctx) }) })
	g.Go(func() error { return p.dispatchLoop(gctx) })
	err := g.Wait()

	rep := p.Report()
	if rep.State != dom.StateStopped {
		p.log.Warn().Err(err).Int("pending", p.batcher.Pending()).Int("in_flight", rep.InFlight).Msg("run aborted before drain completed")
		if err == nil {
			err = context.Canceled
		}
		return rep, err
	}
	p.log.Info().
		Int("position", rep.Position).
		Int64("good", rep.Stats.Good).
		Int64("bad", rep.Stats.Bad).
		Int64("error", rep.Stats.Error).
		Int64("skip", rep.Stats.Skip).
		Int64("refused", rep.Stats.Refused).
		Int64("timeout", rep.Stats.Timeout).
		Int64("total", rep.Total).
		Int("saved", rep.Watermark).
		Strs("skip_set", rep.SkipSet).
		Str("finish_reason", rep.FinishReason).
		Dur("elapsed", ptime.Since(p.clock, p.startedAtSnapshot())).
		Msg("work done")
	return rep, nil
}

// every runs fn on its own ticker until the pipeline stops or ctx ends
func (p *Pipeline) every(ctx context.Context, d time.Duration, fn func()) error {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopped:
			return nil
		case <-t.C:
			fn()
		}
	}
}

// dispatchLoop serves per-record nudges so completions refill the ceiling between progress ticks
func (p *Pipeline) dispatchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopped:
			return nil
		case <-p.wake:
			p.Tick()
		}
	}
}

// progress is the throughput cadence: reap, report, dispatch
func (p *Pipeline) progress() {
	p.Reap()
	switch p.State() {
	case dom.StateRunning:
		p.logStatus()
		p.Tick()
	case dom.StateFinishing:
		if n := p.registry.Len(); n > 0 {
			p.log.Info().Int("in_flight", n).Msg("waiting for in-flight probes")
		}
	}
}

// persist is the durability cadence: flush when due, then check for completion
func (p *Pipeline) persist(ctx context.Context) {
	if p.batcher.Due(p.State() == dom.StateRunning) {
		p.batcher.Flush(ctx)
	}
	p.tryStop()
}

func (p *Pipeline) logStatus() {
	p.mu.Lock()
	pos := p.cursor + 1
	p.mu.Unlock()
	st := p.stats.Snapshot()
	p.log.Info().
		Int("pos", pos).
		Int("in_flight", p.registry.Len()).
		Int64("good", st.Good).
		Int64("bad", st.Bad).
		Int64("error", st.Error).
		Int64("skip", st.Skip).
		Int64("refused", st.Refused).
		Int64("timeout", st.Timeout).
		Int64("total", st.Total()).
		Msg("status")
}
