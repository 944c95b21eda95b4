// Package repokit holds the sql plumbing shared by the verifier repos: the Queryer seam,
// binders that attach a repo to the pool or to a tx, and tx begin hooks
package repokit

import (
	"context"

	"mailsweep/internal/platform/store"
)

type (
	// Queryer is what a bound repo runs statements against: the pool or an open tx
	Queryer = store.RowQuerier

	// TxRunner opens transactions for batched writes
	TxRunner = store.TxRunner

	// Rows is a result set
	Rows = store.Rows

	// Row is a single row result
	Row = store.Row

	// CommandTag reports rows affected by a write
	CommandTag = store.CommandTag
)

// Binder attaches a repo to a Queryer. Reads bind to the pool, writes bind to the tx
type Binder[T any] interface {
	Bind(Queryer) T
}

// BindFunc adapts a constructor to Binder
type BindFunc[T any] func(Queryer) T

// Bind implements Binder
func (f BindFunc[T]) Bind(q Queryer) T { return f(q) }

// MustBind binds b to q and panics on a nil q, which is always a wiring bug
func MustBind[T any](b Binder[T], q Queryer) T {
	if q == nil {
		panic("repokit: bind to nil Queryer")
	}
	return b.Bind(q)
}

// WithTx runs fn in one transaction on tx
func WithTx(ctx context.Context, tx TxRunner, fn func(q Queryer) error) error {
	return tx.Tx(ctx, fn)
}
