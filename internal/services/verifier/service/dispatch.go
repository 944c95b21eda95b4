package service

import (
	"context"
	"time"

	"mailsweep/internal/core/mailaddr"
	perr "mailsweep/internal/platform/errors"
	dom "mailsweep/internal/services/verifier/domain"
)

// GateResult says what one dispatch step did
type GateResult uint8

const (
	// GateIdle means the pipeline is not RUNNING
	GateIdle GateResult = iota
	// GateFull means the ceiling was reached; poll again later
	GateFull
	// GateClosed means this step moved the pipeline to FINISHING
	GateClosed
	// GateSkipped means the candidate was pre-empted by the skip set
	GateSkipped
	// GateMalformed means the candidate was counted as an error
	GateMalformed
	// GateDispatched means a probe was launched
	GateDispatched
)

// Tick advances the cursor by at most one candidate. It never blocks on a probe
func (p *Pipeline) Tick() GateResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != dom.StateRunning {
		return GateIdle
	}
	if t := p.stats.Timeouts(); t > int64(p.cfg.BreakAfterTimeouts) {
		p.log.Warn().Int64("timeouts", t).Msg("too many timeouts")
		p.finishLocked("timeout breaker")
		return GateClosed
	}
	if p.cursor >= len(p.candidates)-1 {
		p.finishLocked("input exhausted")
		return GateClosed
	}
	if p.cfg.BreakCounter > 0 && p.cursor+1 >= p.cfg.BreakCounter {
		p.finishLocked("record limit")
		return GateClosed
	}
	if p.registry.Full() {
		return GateFull
	}

	p.cursor++
	c := p.candidates[p.cursor]
	now := p.clock.Now()

	if p.learner.Match(c.Email) {
		p.complete(dom.Outcome{Email: c.Email, Result: dom.ResultFail, Reason: dom.ReasonSkip, ObservedAt: now})
		return GateSkipped
	}
	if _, err := mailaddr.Parse(c.Email); err != nil {
		p.malformed(c, err)
		return GateMalformed
	}
	if err := p.registry.Add(c.Email, now); err != nil {
		p.malformed(c, err)
		return GateMalformed
	}
	p.unresolved.Add(1)
	go p.probeOne(p.probeCtx, c.Email)
	return GateDispatched
}

func (p *Pipeline) malformed(c dom.Candidate, err error) {
	p.stats.Malformed()
	p.log.Debug().Err(err).Int("pos", c.Position+1).Str("email", c.Email).Msg("candidate not dispatched")
	p.nudge()
}

// probeOne runs the external check and emits its outcome unless the reaper got there first
func (p *Pipeline) probeOne(ctx context.Context, email string) {
	pctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	ok, err := p.probe.Verify(pctx, email)
	cancel()

	o := classify(email, ok, err)
	o.ObservedAt = p.clock.Now()
	if !p.registry.Resolve(email) {
		p.log.Debug().Str("email", email).Msg("late probe result discarded")
		return
	}
	if o.Reason == dom.ReasonError {
		p.log.Warn().Err(err).Str("email", email).Msg("probe error")
	}
	p.complete(o)
	p.unresolved.Add(-1)
}

func classify(email string, ok bool, err error) dom.Outcome {
	switch {
	case err == nil && ok:
		return dom.Outcome{Email: email, Result: dom.ResultPass, Reason: dom.ReasonNone}
	case err == nil:
		return dom.Outcome{Email: email, Result: dom.ResultFail, Reason: dom.ReasonNone}
	case perr.IsCode(err, perr.ErrorCodeProbeRefused):
		return dom.Outcome{Email: email, Result: dom.ResultFail, Reason: dom.ReasonRefused}
	default:
		return dom.Outcome{Email: email, Result: dom.ResultFail, Reason: dom.ReasonError, Detail: err.Error()}
	}
}

// Reap turns every probe past the task time limit into a TIMEOUT outcome
func (p *Pipeline) Reap() int {
	now := p.clock.Now()
	reaped := p.registry.Reap(now, p.cfg.TaskTimeLimit)
	for _, ip := range reaped {
		err := perr.Newf(perr.ErrorCodeProbeTimeout, "no result within %s", p.cfg.TaskTimeLimit)
		p.log.Warn().Err(err).
			Stringer("code", perr.CodeOf(err)).
			Str("email", ip.Email).
			Dur("age", now.Sub(ip.StartedAt)).
			Msg("timeout")
		p.complete(dom.Outcome{Email: ip.Email, Result: dom.ResultUnknown, Reason: dom.ReasonTimeout, ObservedAt: now})
		p.unresolved.Add(-1)
	}
	return len(reaped)
}

// complete routes one outcome to every consumer
func (p *Pipeline) complete(o dom.Outcome) {
	p.stats.Record(o)
	p.learner.Observe(o)
	p.batcher.Enqueue(o)
	p.nudge()
}

// nudge asks the dispatch loop for one more step after the per-record delay
func (p *Pipeline) nudge() {
	send := func() {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
	if p.cfg.DelayEachRecord <= 0 {
		send()
		return
	}
	time.AfterFunc(p.cfg.DelayEachRecord, send)
}
