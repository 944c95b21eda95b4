package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mailsweep/internal/platform/logger"
	kit "mailsweep/internal/platform/testkit"
	dom "mailsweep/internal/services/verifier/domain"
)

// fakeProber answers through verdict; calls are counted per email
type fakeProber struct {
	mu      sync.Mutex
	calls   map[string]int
	verdict func(ctx context.Context, email string) (bool, error)
	active  atomic.Int64
	peak    atomic.Int64
}

func newProber(verdict func(ctx context.Context, email string) (bool, error)) *fakeProber {
	return &fakeProber{calls: map[string]int{}, verdict: verdict}
}

func (f *fakeProber) Verify(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	f.calls[email]++
	f.mu.Unlock()
	n := f.active.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	defer f.active.Add(-1)
	if f.verdict == nil {
		return true, nil
	}
	return f.verdict(ctx, email)
}

func (f *fakeProber) Calls(email string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[email]
}

func (f *fakeProber) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// hang blocks until release is closed, ignoring ctx like a misbehaving probe
func hang(release <-chan struct{}) func(context.Context, string) (bool, error) {
	return func(context.Context, string) (bool, error) {
		<-release
		return true, nil
	}
}

// fakeSink records every batch and the peak number of overlapping writes
type fakeSink struct {
	mu      sync.Mutex
	batches [][]dom.Outcome
	err     error
	gate    chan struct{}
	active  atomic.Int64
	overlap atomic.Bool
}

func (s *fakeSink) WriteResults(_ context.Context, _ string, batch []dom.Outcome) (int64, error) {
	if s.active.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.active.Add(-1)
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	s.batches = append(s.batches, append([]dom.Outcome(nil), batch...))
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return int64(len(batch)), nil
}

func (s *fakeSink) Sizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.batches))
	for i, b := range s.batches {
		out[i] = len(b)
	}
	return out
}

func (s *fakeSink) All() []dom.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []dom.Outcome
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

type fakeAudit struct {
	mu   sync.Mutex
	rows int
	err  error
}

func (a *fakeAudit) RecordOutcomes(_ context.Context, _ string, batch []dom.Outcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows += len(batch)
	return a.err
}

func emails(prefix, domain string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%03d@%s", prefix, i, domain)
	}
	return out
}

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// manual builds a started pipeline driven by hand: fake clock, no tickers
func manual(t *testing.T, cfg Config, p dom.Prober, cands []string) (*Pipeline, *kit.Clock, *fakeSink) {
	t.Helper()
	clk := kit.NewClock(epoch)
	sink := &fakeSink{}
	pl := New(cfg, Deps{Prober: p, Sink: sink, Clock: clk, Log: logger.Nop(), RunID: "run-test"})
	if err := pl.Load(cands); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := pl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return pl, clk, sink
}

func countBy(outs []dom.Outcome) map[string]int {
	m := map[string]int{}
	for _, o := range outs {
		m[o.Email]++
	}
	return m
}

func mustNotContainDup(t *testing.T, outs []dom.Outcome) {
	t.Helper()
	var dups []string
	for e, n := range countBy(outs) {
		if n != 1 {
			dups = append(dups, fmt.Sprintf("%s x%d", e, n))
		}
	}
	if len(dups) > 0 {
		t.Fatalf("duplicate outcomes: %s", strings.Join(dups, ", "))
	}
}
