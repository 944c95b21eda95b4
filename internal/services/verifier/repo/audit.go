package repo

import (
	"context"

	perr "mailsweep/internal/platform/errors"
	"mailsweep/internal/platform/store"
	dom "mailsweep/internal/services/verifier/domain"
)

// AuditTable is the append-only ClickHouse log of flushed outcomes
const AuditTable = "email_check_log"

// Audit writes flushed outcomes to ClickHouse
type Audit struct {
	ch store.Clickhouse
}

// NewAudit wraps a ClickHouse seam; a nil seam yields a nil sink
func NewAudit(ch store.Clickhouse) *Audit {
	if ch == nil {
		return nil
	}
	return &Audit{ch: ch}
}

// RecordOutcomes inserts one row per outcome
func (a *Audit) RecordOutcomes(ctx context.Context, runID string, batch []dom.Outcome) error {
	if len(batch) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(batch))
	for _, o := range batch {
		rows = append(rows, []any{runID, o.Email, o.Result.String(), o.Reason.String(), o.ObservedAt.UTC()})
	}
	if err := a.ch.Insert(ctx, AuditTable+" (run_id, email, result, reason, checked_at)", rows); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeDB, "audit insert %d rows", len(rows))
	}
	return nil
}

// RunSummary reads back per-reason counts for a run
func (a *Audit) RunSummary(ctx context.Context, runID string) (map[string]uint64, error) {
	rows, err := a.ch.Query(ctx, `SELECT reason, count() FROM `+AuditTable+` WHERE run_id = ? GROUP BY reason`, runID)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeDB, "audit summary %s", runID)
	}
	defer rows.Close()
	out := map[string]uint64{}
	for rows.Next() {
		var reason string
		var n uint64
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeDB, "audit summary scan")
		}
		out[reason] = n
	}
	return out, rows.Err()
}
