package domain

import "context"

// Prober is the external verification capability. (true, nil) is PASS and (false, nil) is FAIL.
// An error coded ErrorCodeProbeRefused is a refusal; any other error is a probe failure.
// Must be safe for concurrent calls
type Prober interface {
	Verify(ctx context.Context, email string) (bool, error)
}

// CandidateSource loads distinct unprocessed identifiers matching filter, capped at limit (0 = no cap)
type CandidateSource interface {
	Candidates(ctx context.Context, filter string, limit int) ([]string, error)
}

// ResultSink writes one ordered batch of latest results and reports how many records matched
type ResultSink interface {
	WriteResults(ctx context.Context, runID string, batch []Outcome) (int64, error)
}

// AuditSink appends flushed outcomes to an append-only log
type AuditSink interface {
	RecordOutcomes(ctx context.Context, runID string, batch []Outcome) error
}

// RunnerPort drives a run to completion
type RunnerPort interface {
	Run(ctx context.Context) (Report, error)
	Interrupt(reason string)
}

// StatusPort exposes read-only run state to the status server
type StatusPort interface {
	Report() Report
	Domains() []DomainStat
	InFlight() []InFlightProbe
}
