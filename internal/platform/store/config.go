package store

import (
	"time"

	"mailsweep/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	// AppName is reported to postgres as application_name and to clickhouse as client info
	AppName string

	PG PGConfig
	CH CHConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// Guard/boot knobs:
	ConnectRetries int           // default 6 (roughly 10s with capped exponential backoff)
	PingTimeout    time.Duration // default 3s
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled bool
	URL     string
	Role    string
}

// ConfigFrom reads SERVICE_PGSQL_* and SERVICE_CLICKHOUSE_* from c.
// Postgres is always enabled and its URL is required
func ConfigFrom(c config.Conf, appName string) Config {
	pgc := c.Prefix("SERVICE_PGSQL_")
	chc := c.Prefix("SERVICE_CLICKHOUSE_")

	out := Config{
		AppName: appName,
		PG: PGConfig{
			Enabled:        true,
			URL:            pgc.MustString("DBURL"),
			MaxConns:       int32(pgc.MayInt("MAX_CONNS", 8)),
			LogSQL:         pgc.MayBool("LOG_SQL", false),
			SlowQueryMs:    pgc.MayInt("SLOW_MS", 500),
			ConnectRetries: pgc.MayInt("CONNECT_RETRIES", 6),
			PingTimeout:    pgc.MayDuration("PING_TIMEOUT", 3*time.Second),
		},
		CH: CHConfig{
			Enabled: chc.MayBool("ENABLED", false),
			Role:    "verifier",
		},
	}
	if out.CH.Enabled {
		out.CH.URL = chc.MustString("DBURL")
	}
	return out
}
