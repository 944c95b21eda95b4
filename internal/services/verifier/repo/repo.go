// Package repo provides the verifier's Postgres candidate and result repository and the ClickHouse audit sink
package repo

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"mailsweep/internal/modkit/repokit"
	perr "mailsweep/internal/platform/errors"
	"mailsweep/internal/platform/store"
	dom "mailsweep/internal/services/verifier/domain"

	"github.com/jackc/pgx/v5"
)

// Repo is the verifier persistence surface used by the service layer
type Repo interface {
	Candidates(ctx context.Context, filter string, limit int) ([]string, error)
	WriteResults(ctx context.Context, runID string, batch []dom.Outcome) (int64, error)
}

// ResultDoc is the latest-result document stored per email
type ResultDoc struct {
	Result    string    `json:"result"`
	LastCheck time.Time `json:"lastCheck"`
	Email     string    `json:"email"`
	Reason    string    `json:"reason"`
	Detail    string    `json:"detail,omitempty"`
	RunID     string    `json:"runId,omitempty"`
}

type (
	// PG is a Postgres implementation of the verifier repo over one candidate table
	PG      struct{ table string }
	queries struct {
		q     repokit.Queryer
		table string
	}
)

// NewPG returns a binder for the Postgres implementation; table may be schema qualified
func NewPG(table string) repokit.Binder[Repo] { return PG{table: table} }

// Bind attaches a Queryer to the Postgres implementation
func (p PG) Bind(q repokit.Queryer) Repo {
	return &queries{q: q, table: QuoteTable(p.table)}
}

// QuoteTable sanitizes a possibly schema qualified table name
func QuoteTable(t string) string {
	return pgx.Identifier(strings.Split(t, ".")).Sanitize()
}

// Candidates returns distinct unchecked emails matching filter (case-insensitive regex), in email order
func (r *queries) Candidates(ctx context.Context, filter string, limit int) ([]string, error) {
	sql := `
		SELECT DISTINCT email
		FROM ` + r.table + `
		WHERE email ~* $1
		  AND check_email IS NULL
		ORDER BY email
		LIMIT NULLIF($2::bigint, 0)
	`
	out, err := store.Strings(ctx, r.q, sql, filter, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "load candidates")
	}
	return out, nil
}

// WriteResults sets the latest result on every row matching each email in one statement.
// A repeated email keeps its last outcome
func (r *queries) WriteResults(ctx context.Context, runID string, batch []dom.Outcome) (int64, error) {
	emails, docs, err := BuildDocs(runID, batch)
	if err != nil {
		return 0, err
	}
	if len(emails) == 0 {
		return 0, nil
	}
	sql := `
		UPDATE ` + r.table + ` AS t
		SET check_email = v.doc::jsonb
		FROM unnest($1::text[], $2::text[]) AS v(email, doc)
		WHERE t.email = v.email
	`
	n, err := store.ExecAffected(ctx, r.q, sql, emails, docs)
	if err != nil {
		return 0, perr.FromPostgres(err, "write results")
	}
	return n, nil
}

// BuildDocs collapses the batch to one document per email, last outcome wins,
// in order of each email's first appearance
func BuildDocs(runID string, batch []dom.Outcome) ([]string, []string, error) {
	idx := make(map[string]int, len(batch))
	emails := make([]string, 0, len(batch))
	docs := make([]string, 0, len(batch))
	for _, o := range batch {
		if o.Email == "" {
			continue
		}
		b, err := json.Marshal(ResultDoc{
			Result:    o.Result.String(),
			LastCheck: o.ObservedAt.UTC(),
			Email:     o.Email,
			Reason:    o.Reason.String(),
			Detail:    o.Detail,
			RunID:     runID,
		})
		if err != nil {
			return nil, nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "encode result for %s", o.Email)
		}
		if i, ok := idx[o.Email]; ok {
			docs[i] = string(b)
			continue
		}
		idx[o.Email] = len(emails)
		emails = append(emails, o.Email)
		docs = append(docs, string(b))
	}
	return emails, docs, nil
}
