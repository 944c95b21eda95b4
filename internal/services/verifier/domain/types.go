// Package domain defines the verifier's types and the ports it consumes
package domain

import "time"

// Result is the verdict stored for a candidate
type Result uint8

const (
	// ResultUnknown is a verdict nobody produced (reaped timeouts)
	ResultUnknown Result = iota
	// ResultPass means the mailbox accepted the recipient
	ResultPass
	// ResultFail means rejected, skipped, refused or errored
	ResultFail
)

func (r Result) String() string {
	switch r {
	case ResultPass:
		return "pass"
	case ResultFail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalText renders the stable name on the status endpoint
func (r Result) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Reason explains a non-plain verdict
type Reason uint8

const (
	// ReasonNone is a normal probe verdict
	ReasonNone Reason = iota
	// ReasonSkip is a candidate pre-empted by the skip set
	ReasonSkip
	// ReasonTimeout is a probe reaped after the task time limit
	ReasonTimeout
	// ReasonRefused is an exchanger rejecting the prober itself
	ReasonRefused
	// ReasonError is any other probe failure
	ReasonError
)

func (r Reason) String() string {
	switch r {
	case ReasonSkip:
		return "skip"
	case ReasonTimeout:
		return "timeout"
	case ReasonRefused:
		return "refused"
	case ReasonError:
		return "error"
	default:
		return "none"
	}
}

// MarshalText renders the stable name on the status endpoint
func (r Reason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Candidate is one loaded input row; Position is its 0-based place in the run
type Candidate struct {
	Email    string
	Position int
}

// InFlightProbe is a dispatched probe that has not resolved yet
type InFlightProbe struct {
	Email     string    `json:"email"`
	StartedAt time.Time `json:"started_at"`
}

// Outcome is produced exactly once per dispatched candidate and never mutated.
// Detail carries the probe error text for ReasonError
type Outcome struct {
	Email      string    `json:"email"`
	Result     Result    `json:"result"`
	Reason     Reason    `json:"reason"`
	ObservedAt time.Time `json:"observed_at"`
	Detail     string    `json:"detail,omitempty"`
}

// DomainStat is the per-domain learning record; counts only grow
type DomainStat struct {
	Domain       string `json:"domain"`
	SkipCount    int    `json:"skip_count"`
	TimeoutCount int    `json:"timeout_count"`
}

// Stats are the run counters
type Stats struct {
	Good    int64 `json:"good"`
	Bad     int64 `json:"bad"`
	Skip    int64 `json:"skip"`
	Refused int64 `json:"refused"`
	Timeout int64 `json:"timeout"`
	Error   int64 `json:"error"`
}

// Total sums every counter
func (s Stats) Total() int64 {
	return s.Good + s.Bad + s.Skip + s.Refused + s.Timeout + s.Error
}

// State is the pipeline lifecycle
type State uint8

const (
	StateNotStarted State = iota
	StateRunning
	StateFinishing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateFinishing:
		return "finishing"
	case StateStopped:
		return "stopped"
	default:
		return "not_started"
	}
}

// MarshalText renders the stable name on the status endpoint
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Report is a point-in-time view of a run, served on /status and logged at the end
type Report struct {
	RunID        string     `json:"run_id"`
	State        State      `json:"state"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Position     int        `json:"position"`
	Candidates   int        `json:"candidates"`
	InFlight     int        `json:"in_flight"`
	Stats        Stats      `json:"stats"`
	Total        int64      `json:"total"`
	Enqueued     int        `json:"enqueued"`
	Watermark    int        `json:"watermark"`
	SkipSet      []string   `json:"skip_set"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
