package service

import (
	"sort"
	"strings"
	"sync"

	"mailsweep/internal/core/mailaddr"
	dom "mailsweep/internal/services/verifier/domain"
)

// LearnTimeoutThreshold is how many timeouts a domain may collect before it is skipped;
// the next one past it adds the domain to the skip set
const LearnTimeoutThreshold = 10

// Learner keeps per-domain stats and the run's append-only skip set
type Learner struct {
	mu      sync.RWMutex
	stats   map[string]*dom.DomainStat
	skip    []string
	skipped map[string]struct{}
}

// NewLearner seeds the skip set; seeds are folded and deduplicated in order
func NewLearner(seeds []string) *Learner {
	l := &Learner{
		stats:   make(map[string]*dom.DomainStat),
		skipped: make(map[string]struct{}),
	}
	for _, s := range seeds {
		if s = mailaddr.Fold(strings.TrimSpace(s)); s != "" {
			l.addLocked(s)
		}
	}
	return l
}

func (l *Learner) addLocked(entry string) {
	if _, ok := l.skipped[entry]; ok {
		return
	}
	l.skipped[entry] = struct{}{}
	l.skip = append(l.skip, entry)
}

// Observe learns from one outcome; addresses without '@' are ignored
func (l *Learner) Observe(o dom.Outcome) {
	domain, ok := mailaddr.Domain(o.Email)
	if !ok {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.stats[domain]
	if st == nil {
		st = &dom.DomainStat{Domain: domain}
		l.stats[domain] = st
	}
	switch o.Reason {
	case dom.ReasonSkip:
		st.SkipCount++
		l.addLocked(domain)
	case dom.ReasonTimeout:
		st.TimeoutCount++
		if st.TimeoutCount > LearnTimeoutThreshold {
			l.addLocked(domain)
		}
	}
}

// Match reports whether any skip entry is a substring of email, ignoring case
func (l *Learner) Match(email string) bool {
	e := mailaddr.Fold(email)
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, s := range l.skip {
		if strings.Contains(e, s) {
			return true
		}
	}
	return false
}

// SkipSet copies the skip entries in insertion order
func (l *Learner) SkipSet() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.skip...)
}

// Domains returns stat snapshots, busiest (timeouts, then skips) first
func (l *Learner) Domains() []dom.DomainStat {
	l.mu.RLock()
	out := make([]dom.DomainStat, 0, len(l.stats))
	for _, st := range l.stats {
		out = append(out, *st)
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimeoutCount != out[j].TimeoutCount {
			return out[i].TimeoutCount > out[j].TimeoutCount
		}
		if out[i].SkipCount != out[j].SkipCount {
			return out[i].SkipCount > out[j].SkipCount
		}
		return out[i].Domain < out[j].Domain
	})
	return out
}
