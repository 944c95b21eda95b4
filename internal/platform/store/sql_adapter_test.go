package store

import (
	"context"
	"errors"
	"testing"

	perr "mailsweep/internal/platform/errors"
	"mailsweep/internal/platform/store/pg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxEmails is a pgx.Rows over a list of emails
type pgxEmails struct {
	pgx.Rows
	vals   []string
	idx    int
	closed bool
}

func (r *pgxEmails) Next() bool { r.idx++; return r.idx <= len(r.vals) }
func (r *pgxEmails) Err() error { return nil }
func (r *pgxEmails) Close()     { r.closed = true }
func (r *pgxEmails) Scan(dest ...any) error {
	*dest[0].(*string) = r.vals[r.idx-1]
	return nil
}

type pgxRow struct{ err error }

func (r pgxRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int) = 1
	return nil
}

// scriptTx is a pgx.Tx whose statement results are scripted; unused methods panic via the nil embed
type scriptTx struct {
	pgx.Tx
	execTag    string
	execErr    error
	queryErr   error
	rowErr     error
	emails     []string
	commitErr  error
	committed  bool
	rolledBack bool
}

func (f *scriptTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(f.execTag), f.execErr
}

func (f *scriptTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &pgxEmails{vals: f.emails}, nil
}

func (f *scriptTx) QueryRow(context.Context, string, ...any) pgx.Row { return pgxRow{err: f.rowErr} }
func (f *scriptTx) Commit(context.Context) error                     { f.committed = true; return f.commitErr }
func (f *scriptTx) Rollback(context.Context) error                   { f.rolledBack = true; return nil }

type beginner struct {
	tx  *scriptTx
	err error
}

func (b beginner) Begin(context.Context) (pgx.Tx, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.tx, nil
}

type traced struct{ evs []pg.QueryEvent }

func (r *traced) OnQuery(_ context.Context, ev pg.QueryEvent) { r.evs = append(r.evs, ev) }

func TestQuerier_TracesEveryStatement(t *testing.T) {
	ctx := context.Background()
	tr := &traced{}
	q := querier{q: &scriptTx{execTag: "UPDATE 2", emails: []string{"carol@x.io"}}, tracer: tr, slowUS: 0}

	ct, err := q.Exec(ctx, "UPDATE t SET check_email = v.doc", []string{"a"}, []string{"{}"})
	if err != nil || ct.RowsAffected() != 2 || ct.String() != "UPDATE 2" {
		t.Fatalf("Exec = %v, %v", ct, err)
	}
	got, err := Strings(ctx, q, "SELECT DISTINCT email FROM t")
	if err != nil || len(got) != 1 || got[0] != "carol@x.io" {
		t.Fatalf("Strings = %v, %v", got, err)
	}
	var one int
	if err := q.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil || one != 1 {
		t.Fatalf("QueryRow = %d, %v", one, err)
	}

	if len(tr.evs) != 3 || tr.evs[0].SQL != "UPDATE t SET check_email = v.doc" {
		t.Fatalf("events = %+v", tr.evs)
	}
	for _, ev := range tr.evs {
		if !ev.Slow || ev.Err != nil {
			t.Fatalf("zero threshold marks every clean statement slow: %+v", ev)
		}
	}
}

func TestQuerier_TracesErrors(t *testing.T) {
	ctx := context.Background()
	tr := &traced{}
	fail := errors.New("conn reset")
	q := querier{q: &scriptTx{execErr: fail, queryErr: fail, rowErr: fail}, tracer: tr, slowUS: -1}

	if _, err := q.Exec(ctx, "x"); !errors.Is(err, fail) {
		t.Fatalf("Exec err = %v", err)
	}
	if _, err := q.Query(ctx, "x"); !errors.Is(err, fail) {
		t.Fatalf("Query err = %v", err)
	}
	var n int
	if err := q.QueryRow(ctx, "x").Scan(&n); !errors.Is(err, fail) {
		t.Fatalf("Scan err = %v", err)
	}
	if len(tr.evs) != 3 {
		t.Fatalf("want an event per failure, got %d", len(tr.evs))
	}
	for _, ev := range tr.evs {
		if ev.Err == nil || ev.Slow {
			t.Fatalf("event = %+v", ev)
		}
	}

	if _, err := (querier{q: &scriptTx{}}).Exec(ctx, "x"); err != nil {
		t.Fatalf("untraced querier: %v", err)
	}
}

func TestRunTx(t *testing.T) {
	ctx := context.Background()
	write := func(q RowQuerier) error {
		_, err := q.Exec(ctx, "UPDATE t SET check_email = v.doc")
		return err
	}

	tx := &scriptTx{execTag: "UPDATE 1"}
	if err := runTx(ctx, beginner{tx: tx}, querier{}, write); err != nil || !tx.committed || tx.rolledBack {
		t.Fatalf("commit path: err=%v tx=%+v", err, tx)
	}

	tx = &scriptTx{execErr: errors.New("statement timeout")}
	if err := runTx(ctx, beginner{tx: tx}, querier{}, write); err == nil || tx.committed || !tx.rolledBack {
		t.Fatalf("rollback path: err=%v tx=%+v", err, tx)
	}

	err := runTx(ctx, beginner{err: errors.New("pool closed")}, querier{}, write)
	if !perr.IsCode(err, perr.ErrorCodeDB) {
		t.Fatalf("begin failure code = %v", perr.CodeOf(err))
	}

	tx = &scriptTx{commitErr: &pgconn.PgError{Code: "40001"}}
	if err := runTx(ctx, beginner{tx: tx}, querier{}, write); !perr.IsRetryable(err) {
		t.Fatalf("serialization failure on commit should be retryable, got %v", err)
	}
}
