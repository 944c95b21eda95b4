package repokit

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	kit "mailsweep/internal/platform/testkit"
)

type stmt struct {
	sql  string
	args []any
}

// recorder is a Queryer and TxRunner that logs every statement; tx bodies see the same recorder
type recorder struct {
	stmts []stmt
	txs   int
	err   error // returned by Exec when the sql matches failOn
	fail  string
}

func (r *recorder) Exec(_ context.Context, sql string, args ...any) (CommandTag, error) {
	r.stmts = append(r.stmts, stmt{sql, args})
	if r.fail != "" && sql == r.fail {
		return nil, r.err
	}
	return nil, nil
}

func (r *recorder) Query(_ context.Context, sql string, args ...any) (Rows, error) {
	r.stmts = append(r.stmts, stmt{sql, args})
	return nil, nil
}

func (r *recorder) QueryRow(_ context.Context, sql string, args ...any) Row {
	r.stmts = append(r.stmts, stmt{sql, args})
	return nil
}

func (r *recorder) Tx(_ context.Context, fn func(Queryer) error) error {
	r.txs++
	return fn(r)
}

type resultRepo struct{ q Queryer }

func (r resultRepo) mark(ctx context.Context, email string) error {
	_, err := r.q.Exec(ctx, "UPDATE t SET check_email = $2 WHERE email = $1", email, "{}")
	return err
}

func TestMustBind(t *testing.T) {
	b := BindFunc[resultRepo](func(q Queryer) resultRepo { return resultRepo{q: q} })
	rec := &recorder{}
	repo := MustBind[resultRepo](b, rec)
	if err := repo.mark(context.Background(), "carol@x.io"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if len(rec.stmts) != 1 || rec.stmts[0].args[0] != "carol@x.io" {
		t.Fatalf("statement not routed through bound queryer: %+v", rec.stmts)
	}
	kit.MustPanic(t, func() { MustBind[resultRepo](b, nil) })
}

func TestStatementTimeoutHook(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	tx := WithBeginHooks(rec, StatementTimeout(1500*time.Millisecond))

	err := WithTx(ctx, tx, func(q Queryer) error {
		return resultRepo{q: q}.mark(ctx, "dave@y.io")
	})
	if err != nil || rec.txs != 1 {
		t.Fatalf("WithTx err=%v txs=%d", err, rec.txs)
	}
	if len(rec.stmts) != 2 {
		t.Fatalf("want hook then write, got %+v", rec.stmts)
	}
	if !reflect.DeepEqual(rec.stmts[0].args, []any{"1500"}) {
		t.Fatalf("timeout arg = %v", rec.stmts[0].args)
	}

	// zero budget adds nothing
	rec = &recorder{}
	_ = WithTx(ctx, WithBeginHooks(rec, StatementTimeout(0)), func(q Queryer) error { return nil })
	if len(rec.stmts) != 0 {
		t.Fatalf("zero timeout should not set anything: %+v", rec.stmts)
	}
}

func TestTagHook(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	tx := WithBeginHooks(rec, StatementTimeout(time.Second), Tag("mailsweep", "run-7"))
	if err := WithTx(ctx, tx, func(Queryer) error { return nil }); err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if len(rec.stmts) != 2 {
		t.Fatalf("want both hooks in order, got %+v", rec.stmts)
	}
	kit.MustContain(t, rec.stmts[1].sql, "application_name")
	if !reflect.DeepEqual(rec.stmts[1].args, []any{"mailsweep run run-7"}) {
		t.Fatalf("tag arg = %v", rec.stmts[1].args)
	}

	rec = &recorder{}
	_ = WithTx(ctx, WithBeginHooks(rec, Tag("mailsweep", "")), func(Queryer) error { return nil })
	if len(rec.stmts) != 0 {
		t.Fatalf("empty run id should not tag: %+v", rec.stmts)
	}
}

func TestBeginHookErrorSkipsBody(t *testing.T) {
	boom := errors.New("permission denied")
	rec := &recorder{err: boom, fail: "SELECT set_config('statement_timeout', $1, true)"}
	ran := false
	err := WithTx(context.Background(), WithBeginHooks(rec, StatementTimeout(time.Second)), func(Queryer) error {
		ran = true
		return nil
	})
	if !errors.Is(err, boom) || ran {
		t.Fatalf("hook failure should abort the tx body: err=%v ran=%v", err, ran)
	}
}

func TestHookedTxDelegatesOutsideTx(t *testing.T) {
	rec := &recorder{}
	tx := WithBeginHooks(rec, StatementTimeout(time.Second))
	ctx := context.Background()
	_, _ = tx.Exec(ctx, "a")
	_, _ = tx.Query(ctx, "b")
	_ = tx.QueryRow(ctx, "c")
	if len(rec.stmts) != 3 || rec.txs != 0 {
		t.Fatalf("pool calls should bypass hooks: %+v txs=%d", rec.stmts, rec.txs)
	}
}
