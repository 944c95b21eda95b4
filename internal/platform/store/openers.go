package store

import (
	"context"
	"time"

	perr "mailsweep/internal/platform/errors"
	chx "mailsweep/internal/platform/store/ch"
	"mailsweep/internal/platform/store/pg"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	backoffStart   = 150 * time.Millisecond
	backoffCeiling = 2 * time.Second
)

// pgPinger is the readiness probe used while booting, a seam for tests
var pgPinger = func(ctx context.Context, p *pg.PG) error { return p.Pool.Ping(ctx) }

// openPG opens pg and wraps it with our sql adapter once a ping succeeds
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}

	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		MaxConns: cfg.PG.MaxConns,
		SlowMs:   cfg.PG.SlowQueryMs,
	}, tracer, func(pc *pgxpool.Config) {
		if cfg.AppName == "" {
			return
		}
		if pc.ConnConfig.RuntimeParams == nil {
			pc.ConnConfig.RuntimeParams = map[string]string{}
		}
		pc.ConnConfig.RuntimeParams["application_name"] = cfg.AppName
	})
	if err != nil {
		return nil, perr.StoreConnectf(err, "postgres config")
	}

	attempts := cfg.PG.ConnectRetries
	if attempts <= 0 {
		attempts = 6
	}
	pingTimeout := cfg.PG.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 3 * time.Second
	}

	var lastErr error
	backoff := backoffStart
	for i := 0; i < attempts; i++ {
		toCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = pgPinger(toCtx, p) // pool directly: no adapter, no SQL trace line
		cancel()

		if lastErr == nil {
			return newPGAdapter(p), nil
		}
		s.Log.Warn().Err(lastErr).Int("attempt", i+1).Int("of", attempts).Msg("postgres not ready")

		select {
		case <-ctx.Done():
			p.Close()
			return nil, perr.StoreConnectf(ctx.Err(), "postgres connect canceled")
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, backoffCeiling)
	}

	p.Close()
	return nil, perr.StoreConnectf(lastErr, "postgres ping failed after %d attempts", attempts)
}

// chOpener is the clickhouse constructor, a seam for tests
var chOpener = chx.Open

func openCH(ctx context.Context, cfg Config, s *Store) (Clickhouse, error) {
	c, err := chOpener(ctx, chx.Config{URL: cfg.CH.URL, Role: cfg.CH.Role, App: cfg.AppName})
	if err != nil {
		return nil, perr.StoreConnectf(err, "clickhouse open")
	}
	s.Log.Info().Str("role", cfg.CH.Role).Msg("clickhouse audit sink connected")
	return newCHAdapter(c), nil
}
