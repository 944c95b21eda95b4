// Package service implements the bounded-concurrency verification pipeline
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	perr "mailsweep/internal/platform/errors"
	"mailsweep/internal/platform/logger"
	ptime "mailsweep/internal/platform/time"
	dom "mailsweep/internal/services/verifier/domain"
)

// Config controls one run
type Config struct {
	Concurrency        int
	ProbeTimeout       time.Duration
	TaskTimeLimit      time.Duration
	BreakAfterTimeouts int
	BreakCounter       int
	BatchCap           int
	ProgressEvery      time.Duration
	PersistEvery       time.Duration
	DelayEachRecord    time.Duration
	SkipDomains        []string
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 32
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 3 * time.Second
	}
	if c.TaskTimeLimit <= 0 {
		c.TaskTimeLimit = 15 * time.Second
	}
	if c.BreakAfterTimeouts <= 0 {
		c.BreakAfterTimeouts = 500
	}
	if c.BatchCap <= 0 {
		c.BatchCap = 500
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = time.Second
	}
	if c.PersistEvery <= 0 {
		c.PersistEvery = time.Second
	}
	return c
}

// Pipeline owns every piece of run state; components are reached only through it
type Pipeline struct {
	cfg   Config
	runID string
	log   logger.Logger
	clock ptime.Clock
	probe dom.Prober

	stats    *Aggregator
	learner  *Learner
	registry *Registry
	batcher  *Batcher

	// mu guards the lifecycle and the cursor; dispatch holds it for a whole step
	mu           sync.Mutex
	state        dom.State
	loaded       bool
	candidates   []dom.Candidate
	cursor       int
	finishReason string
	startedAt    time.Time
	finishedAt   time.Time

	// unresolved counts registered probes whose outcome is not enqueued yet
	unresolved atomic.Int64
	probeCtx   context.Context
	wake       chan struct{}
	stopped    chan struct{}
}

// Deps are the collaborators a pipeline needs; Audit and Clock are optional
type Deps struct {
	Prober dom.Prober
	Sink   dom.ResultSink
	Audit  dom.AuditSink
	Clock  ptime.Clock
	Log    logger.Logger
	RunID  string
}

// New assembles a pipeline in NOT_STARTED
func New(cfg Config, d Deps) *Pipeline {
	cfg = cfg.withDefaults()
	if d.Clock == nil {
		d.Clock = ptime.System()
	}
	log := d.Log.With().Str("run_id", d.RunID).Logger()
	return &Pipeline{
		cfg:      cfg,
		runID:    d.RunID,
		log:      log,
		clock:    d.Clock,
		probe:    d.Prober,
		stats:    &Aggregator{},
		learner:  NewLearner(cfg.SkipDomains),
		registry: NewRegistry(cfg.Concurrency),
		batcher:  NewBatcher(d.Sink, d.Audit, cfg.BatchCap, d.RunID, log),
		cursor:   -1,
		probeCtx: context.Background(),
		wake:     make(chan struct{}, max(16, 2*cfg.Concurrency)),
		stopped:  make(chan struct{}),
	}
}

// Load installs the candidate list; only before Start
func (p *Pipeline) Load(emails []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != dom.StateNotStarted {
		return perr.Conflictf("load in state %s", p.state)
	}
	p.candidates = make([]dom.Candidate, len(emails))
	for i, e := range emails {
		p.candidates[i] = dom.Candidate{Email: e, Position: i}
	}
	p.loaded = true
	return nil
}

// Start moves NOT_STARTED to RUNNING; candidates must be loaded
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != dom.StateNotStarted {
		return perr.Conflictf("start in state %s", p.state)
	}
	if !p.loaded {
		return perr.InvalidArgf("start before candidates were loaded")
	}
	p.state = dom.StateRunning
	p.startedAt = p.clock.Now()
	p.log.Info().Int("candidates", len(p.candidates)).Msg("run started")
	return nil
}

// Interrupt begins draining: no new dispatches, outstanding work may finish. Idempotent
func (p *Pipeline) Interrupt(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishLocked(reason)
}

// finishLocked is the only RUNNING to FINISHING transition
func (p *Pipeline) finishLocked(reason string) {
	if p.state != dom.StateRunning {
		return
	}
	p.state = dom.StateFinishing
	p.finishReason = reason
	p.log.Info().Str("reason", reason).Int("in_flight", p.registry.Len()).Msg("finishing")
}

// tryStop moves FINISHING to STOPPED once nothing is in flight, unenqueued or pending
func (p *Pipeline) tryStop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case dom.StateStopped:
		return true
	case dom.StateFinishing:
	default:
		return false
	}
	if p.unresolved.Load() > 0 || p.batcher.Pending() > 0 || p.batcher.Flushing() {
		return false
	}
	p.state = dom.StateStopped
	p.finishedAt = p.clock.Now()
	close(p.stopped)
	return true
}

func (p *Pipeline) startedAtSnapshot() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startedAt
}

// State is the current lifecycle state
func (p *Pipeline) State() dom.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stats snapshots the counters
func (p *Pipeline) Stats() dom.Stats { return p.stats.Snapshot() }

// Domains snapshots the learner
func (p *Pipeline) Domains() []dom.DomainStat { return p.learner.Domains() }

// InFlight snapshots the registry
func (p *Pipeline) InFlight() []dom.InFlightProbe { return p.registry.Snapshot() }

// Report builds a point-in-time view of the run
func (p *Pipeline) Report() dom.Report {
	p.mu.Lock()
	r := dom.Report{
		RunID:        p.runID,
		State:        p.state,
		FinishReason: p.finishReason,
		Position:     p.cursor + 1,
		Candidates:   len(p.candidates),
		StartedAt:    ptime.Ptr(p.startedAt),
		FinishedAt:   ptime.Ptr(p.finishedAt),
	}
	p.mu.Unlock()
	r.InFlight = p.registry.Len()
	r.Stats = p.stats.Snapshot()
	r.Total = r.Stats.Total()
	r.Enqueued = p.batcher.Len()
	r.Watermark = p.batcher.Watermark()
	r.SkipSet = p.learner.SkipSet()
	return r
}
