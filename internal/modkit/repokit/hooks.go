package repokit

import (
	"context"
	"strconv"
	"time"
)

// BeginHook prepares a fresh transaction before the body runs. A hook error aborts the tx
type BeginHook func(ctx context.Context, q Queryer) error

// WithBeginHooks returns a TxRunner whose transactions run hooks first.
// Statements issued outside Tx go straight to inner
func WithBeginHooks(inner TxRunner, hooks ...BeginHook) TxRunner {
	return hookedTx{TxRunner: inner, hooks: hooks}
}

type hookedTx struct {
	TxRunner
	hooks []BeginHook
}

func (h hookedTx) Tx(ctx context.Context, fn func(q Queryer) error) error {
	return h.TxRunner.Tx(ctx, func(q Queryer) error {
		for _, hook := range h.hooks {
			if err := hook(ctx, q); err != nil {
				return err
			}
		}
		return fn(q)
	})
}

// setLocal scopes a server setting to the current transaction
func setLocal(ctx context.Context, q Queryer, name, value string) error {
	_, err := q.Exec(ctx, "SELECT set_config('"+name+"', $1, true)", value)
	return err
}

// StatementTimeout caps each statement of a result batch server side. Zero leaves the server default
func StatementTimeout(d time.Duration) BeginHook {
	return func(ctx context.Context, q Queryer) error {
		if d <= 0 {
			return nil
		}
		return setLocal(ctx, q, "statement_timeout", strconv.FormatInt(d.Milliseconds(), 10))
	}
}

// Tag labels the transaction in pg_stat_activity so a stuck batch can be traced to its run
func Tag(app, runID string) BeginHook {
	return func(ctx context.Context, q Queryer) error {
		if runID == "" {
			return nil
		}
		return setLocal(ctx, q, "application_name", app+" run "+runID)
	}
}
