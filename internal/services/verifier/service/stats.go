package service

import (
	"sync/atomic"

	dom "mailsweep/internal/services/verifier/domain"
)

// Aggregator counts outcomes. Counters only grow and need no lock
type Aggregator struct {
	good, bad, skip, refused, timeout, errs atomic.Int64
}

// Record counts one outcome under its category
func (a *Aggregator) Record(o dom.Outcome) {
	switch o.Reason {
	case dom.ReasonSkip:
		a.skip.Add(1)
	case dom.ReasonTimeout:
		a.timeout.Add(1)
	case dom.ReasonRefused:
		a.refused.Add(1)
	case dom.ReasonError:
		a.errs.Add(1)
	default:
		if o.Result == dom.ResultPass {
			a.good.Add(1)
		} else {
			a.bad.Add(1)
		}
	}
}

// Malformed counts a candidate that never produced an outcome
func (a *Aggregator) Malformed() { a.errs.Add(1) }

// Timeouts is the cumulative timeout count, read by the breaker
func (a *Aggregator) Timeouts() int64 { return a.timeout.Load() }

// Snapshot copies the counters
func (a *Aggregator) Snapshot() dom.Stats {
	return dom.Stats{
		Good:    a.good.Load(),
		Bad:     a.bad.Load(),
		Skip:    a.skip.Load(),
		Refused: a.refused.Load(),
		Timeout: a.timeout.Load(),
		Error:   a.errs.Load(),
	}
}
