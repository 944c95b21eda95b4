package service

import (
	"sort"
	"sync"
	"time"

	perr "mailsweep/internal/platform/errors"
	dom "mailsweep/internal/services/verifier/domain"
)

// Registry tracks in-flight probes keyed by email.
// Resolve and Reap both remove-if-present so whichever path fires first owns the outcome
type Registry struct {
	mu      sync.Mutex
	ceiling int
	entries map[string]time.Time
}

// NewRegistry builds a registry holding at most ceiling entries
func NewRegistry(ceiling int) *Registry {
	return &Registry{ceiling: max(1, ceiling), entries: make(map[string]time.Time, ceiling)}
}

// Add registers a probe; refuses duplicates and refuses when full
func (r *Registry) Add(email string, startedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[email]; ok {
		return perr.Conflictf("%s already in flight", email)
	}
	if len(r.entries) >= r.ceiling {
		return perr.Unavailablef("in-flight ceiling %d reached", r.ceiling)
	}
	r.entries[email] = startedAt
	return nil
}

// Resolve removes the entry for email and reports whether one was there
func (r *Registry) Resolve(email string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[email]; !ok {
		return false
	}
	delete(r.entries, email)
	return true
}

// Reap removes and returns every entry older than limit at now, oldest first
func (r *Registry) Reap(now time.Time, limit time.Duration) []dom.InFlightProbe {
	r.mu.Lock()
	var out []dom.InFlightProbe
	for email, at := range r.entries {
		if now.Sub(at) > limit {
			out = append(out, dom.InFlightProbe{Email: email, StartedAt: at})
			delete(r.entries, email)
		}
	}
	r.mu.Unlock()
	sortProbes(out)
	return out
}

// Len is the current in-flight count
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Full reports whether the ceiling is reached
func (r *Registry) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries) >= r.ceiling
}

// Snapshot copies the entries, oldest first
func (r *Registry) Snapshot() []dom.InFlightProbe {
	r.mu.Lock()
	out := make([]dom.InFlightProbe, 0, len(r.entries))
	for email, at := range r.entries {
		out = append(out, dom.InFlightProbe{Email: email, StartedAt: at})
	}
	r.mu.Unlock()
	sortProbes(out)
	return out
}

func sortProbes(ps []dom.InFlightProbe) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].StartedAt.Equal(ps[j].StartedAt) {
			return ps[i].StartedAt.Before(ps[j].StartedAt)
		}
		return ps[i].Email < ps[j].Email
	})
}
