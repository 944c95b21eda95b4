// Package store provides a unified interface to the pipeline's storage backends
package store

import (
	"context"
	"errors"

	perr "mailsweep/internal/platform/errors"
	"mailsweep/internal/platform/logger"
)

// Store holds the durable store the pipeline reads candidates from and writes results to (postgres)
// and the optional audit sink for flushed outcomes (clickhouse). The zero value has no backends
type Store struct {
	// Log is the logger used by subclients
	// zero means a no op zerolog logger
	Log logger.Logger

	// PG is the postgres sql seam, nil when disabled
	PG TxRunner

	// CH is the clickhouse seam, nil when disabled
	CH Clickhouse
}

// Row exposes the minimal scan contract a single row needs
type Row interface {
	Scan(dest ...any) error
}

// Rows exposes the minimal iteration and scan for a result set
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// CommandTag is a tiny interface to inspect command results
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is what the candidate and result repos run their sql against
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner runs fn in one transaction. Batched result writes go through it
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Clickhouse is the audit seam: batch appends of outcome rows and run summaries
type Clickhouse interface {
	Insert(ctx context.Context, table string, rows [][]any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Close() error
}

// Pinger is any seam that can report readiness
type Pinger interface{ Ping(context.Context) error }

// Open constructs a Store with the requested backends
// backends not enabled in cfg remain nil on the Store
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}

	// defaults for zero logger to avoid nil checks
	s.Log = s.Log.With().Logger()

	if cfg.PG.Enabled {
		pgClient, err := openPG(ctx, cfg, s)
		if err != nil {
			return nil, err
		}
		s.PG = pgClient
	}

	if cfg.CH.Enabled {
		chClient, err := openCH(ctx, cfg, s)
		if err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		s.CH = chClient
	}

	return s, nil
}

// Guard pings the durable store and the audit sink before the pipeline loads candidates.
// Failures carry ErrorCodeStoreConnect and are prefixed with the backend name
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return perr.New(perr.ErrorCodeStoreConnect, "nil store")
	}
	var errs []error
	ping := func(name string, seam any) {
		p, ok := seam.(Pinger)
		if !ok {
			return
		}
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, perr.StoreConnectf(err, "%s", name))
		}
	}
	if s.PG != nil {
		ping("pg", s.PG)
	}
	if s.CH != nil {
		ping("ch", s.CH)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.Log.Debug().Strs("backends", s.Backends()).Msg("store ready")
	return nil
}

// Backends names the seams that are open, durable store first
func (s *Store) Backends() []string {
	out := make([]string, 0, 2)
	if s == nil {
		return out
	}
	if s.PG != nil {
		out = append(out, "pg")
	}
	if s.CH != nil {
		out = append(out, "ch")
	}
	return out
}

// Close closes all initialized backends gracefully
// nil backends are ignored
func (s *Store) Close(_ context.Context) error {
	if s == nil {
		return nil
	}
	var errs []error

	if s.CH != nil {
		if e := s.CH.Close(); e != nil {
			errs = append(errs, e)
		}
	}

	if c, ok := s.PG.(interface{ Close() error }); ok {
		if e := c.Close(); e != nil {
			errs = append(errs, e)
		}
	}

	return errors.Join(errs...)
}

// Option mutates Store during Open
type Option func(*Store) error

// WithLogger sets the logger used by subclients
func WithLogger(log logger.Logger) Option {
	return func(s *Store) error {
		s.Log = log
		return nil
	}
}
