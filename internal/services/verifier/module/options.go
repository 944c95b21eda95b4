package module

import (
	"time"

	"mailsweep/internal/platform/config"
	"mailsweep/internal/platform/validate"
	"mailsweep/internal/services/verifier/service"
)

// DefaultSkipDomains seed the skip set when CORE_VERIFIER_SKIP_DOMAINS is unset
var DefaultSkipDomains = []string{"@fsb", ".gov", "kremlin.ru", ".ua", ".kz", "icloud.com"}

// Options holds configuration for the verifier module. The cfg tag names the key under CORE_VERIFIER_
type Options struct {
	Concurrency        int           `cfg:"CONCURRENCY" validate:"min=1,max=4096"`
	TaskTimeLimit      time.Duration `cfg:"TASK_TIME_LIMIT" validate:"gt=0"`
	ProbeTimeout       time.Duration `cfg:"PROBE_TIMEOUT" validate:"gt=0"`
	BreakAfterTimeouts int           `cfg:"BREAK_AFTER_TIMEOUTS" validate:"min=1"`
	LimitRecords       int           `cfg:"LIMIT_RECORDS" validate:"min=0"`
	BreakCounter       int           `cfg:"BREAK_COUNTER" validate:"min=0"`
	BatchCap           int           `cfg:"BATCH_CAP" validate:"min=1,max=50000"`
	ProgressEvery      time.Duration `cfg:"PROGRESS_EVERY" validate:"gt=0"`
	PersistEvery       time.Duration `cfg:"PERSIST_EVERY" validate:"gt=0"`
	DelayEachRecord    time.Duration `cfg:"DELAY_EACH_RECORD" validate:"min=0"`
	SkipDomains        []string      `cfg:"SKIP_DOMAINS" validate:"dive,required"`
	Table              string        `cfg:"TABLE" validate:"required,sqlident"`
	Filter             string        `cfg:"FILTER" validate:"required"`
	WriteTimeout       time.Duration `cfg:"WRITE_TIMEOUT" validate:"min=0"`
	HardStopGrace      time.Duration `cfg:"HARD_STOP_GRACE" validate:"gt=0"`

	ProbeFrom string `cfg:"PROBE_FROM" validate:"required,email"`
	ProbeHelo string `cfg:"PROBE_HELO" validate:"required,hostname_rfc1123"`

	StatusAddr  string   `cfg:"STATUS_ADDR" validate:"omitempty,hostname_port"`
	StatusPprof bool     `cfg:"STATUS_PPROF"`
	CORSOrigins []string `cfg:"CORS_ORIGINS"`
}

// FromConfig reads CORE_VERIFIER_* settings; an invalid FILTER regex panics like every Must* read
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("CORE_VERIFIER_")
	return Options{
		Concurrency:        c.MayInt("CONCURRENCY", 32),
		TaskTimeLimit:      c.MayDuration("TASK_TIME_LIMIT", 15*time.Second),
		ProbeTimeout:       c.MayDuration("PROBE_TIMEOUT", 3*time.Second),
		BreakAfterTimeouts: c.MayInt("BREAK_AFTER_TIMEOUTS", 500),
		LimitRecords:       c.MayInt("LIMIT_RECORDS", 500000),
		BreakCounter:       c.MayInt("BREAK_COUNTER", 0),
		BatchCap:           c.MayInt("BATCH_CAP", 500),
		ProgressEvery:      c.MayDuration("PROGRESS_EVERY", time.Second),
		PersistEvery:       c.MayDuration("PERSIST_EVERY", time.Second),
		DelayEachRecord:    c.MayDuration("DELAY_EACH_RECORD", 800*time.Millisecond),
		SkipDomains:        c.MayCSV("SKIP_DOMAINS", DefaultSkipDomains),
		Table:              c.MayString("TABLE", "wildberries"),
		Filter:             c.MayRegexp("FILTER", "^[c-j]").String(),
		WriteTimeout:       c.MayDuration("WRITE_TIMEOUT", 30*time.Second),
		HardStopGrace:      c.MayDuration("HARD_STOP_GRACE", 5*time.Second),
		ProbeFrom:          c.MayString("PROBE_FROM", "noreply@mailsweep.local"),
		ProbeHelo:          c.MayString("PROBE_HELO", "mailsweep.local"),
		StatusAddr:         c.MayString("STATUS_ADDR", ""),
		StatusPprof:        c.MayBool("STATUS_PPROF", false),
		CORSOrigins:        c.MayCSV("CORS_ORIGINS", nil),
	}
}

// Validate checks the options with the shared validator
func (o Options) Validate() error { return validate.Struct(o) }

// Pipeline maps the options onto the service config
func (o Options) Pipeline() service.Config {
	return service.Config{
		Concurrency:        o.Concurrency,
		ProbeTimeout:       o.ProbeTimeout,
		TaskTimeLimit:      o.TaskTimeLimit,
		BreakAfterTimeouts: o.BreakAfterTimeouts,
		BreakCounter:       o.BreakCounter,
		BatchCap:           o.BatchCap,
		ProgressEvery:      o.ProgressEvery,
		PersistEvery:       o.PersistEvery,
		DelayEachRecord:    o.DelayEachRecord,
		SkipDomains:        o.SkipDomains,
	}
}
