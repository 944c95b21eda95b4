// Package logger owns the process-wide zerolog logger and the run-scoped child loggers
// every pipeline stage logs through
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Logger is the project-wide logging type
type Logger = zerolog.Logger

// Options configures the root logger
type Options struct {
	Level        string
	Format       string // console or json
	Service      string
	Component    string
	Writer       io.Writer
	WithCaller   bool
	SampleEvery  int
	StaticFields map[string]string
}

// FromEnv reads LOG_* straight from the environment. The config package logs, so it
// cannot be used this early
func FromEnv() Options {
	format := strings.ToLower(env("LOG_FORMAT", "console"))
	if format != "json" {
		format = "console"
	}
	caller, _ := strconv.ParseBool(env("LOG_CALLER", "false"))
	sample, err := strconv.Atoi(env("LOG_SAMPLE_EVERY", "0"))
	if err != nil || sample < 0 {
		sample = 0
	}
	return Options{
		Level:       strings.ToLower(env("LOG_LEVEL", "info")),
		Format:      format,
		Service:     env("LOG_SERVICE", "mailsweep"),
		Component:   env("LOG_COMPONENT", ""),
		WithCaller:  caller,
		SampleEvery: sample,
	}
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

var (
	once sync.Once
	root atomic.Pointer[zerolog.Logger]
)

// Get returns the root logger, initialising it from the environment on first use
func Get() *Logger {
	if l := root.Load(); l != nil {
		return l
	}
	Init(FromEnv())
	return root.Load()
}

// Init builds the root logger. Only the first call has any effect
func Init(opt Options) {
	once.Do(func() {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano

		var w io.Writer = os.Stdout
		if opt.Writer != nil {
			w = opt.Writer
		}
		if opt.Format != "json" {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		}

		zc := zerolog.New(w).Level(parseLevel(opt.Level)).With().Timestamp()
		if bi, ok := debug.ReadBuildInfo(); ok {
			zc = zc.Str("go_version", bi.GoVersion)
		}
		if opt.Service != "" {
			zc = zc.Str("service", opt.Service)
		}
		if opt.Component != "" {
			zc = zc.Str("component", opt.Component)
		}
		for k, v := range opt.StaticFields {
			zc = zc.Str(k, v)
		}
		if opt.WithCaller {
			zc = zc.Caller()
		}

		l := zc.Logger()
		if opt.SampleEvery > 1 {
			l = l.Sample(&zerolog.BasicSampler{N: uint32(opt.SampleEvery)})
		}
		root.Store(&l)
	})
}

// parseLevel accepts zerolog level names plus "warning"; anything else is info
func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

type ctxKey int

const (
	keyRunID ctxKey = iota
	keyStage
)

// WithRun annotates ctx with the pipeline run id and an optional stage label
func WithRun(ctx context.Context, runID, stage string) context.Context {
	if runID != "" {
		ctx = context.WithValue(ctx, keyRunID, runID)
	}
	if stage != "" {
		ctx = context.WithValue(ctx, keyStage, stage)
	}
	return ctx
}

// RunID returns the run id stored on ctx, if any
func RunID(ctx context.Context) string {
	v, _ := ctx.Value(keyRunID).(string)
	return v
}

// C returns a child of the root logger carrying ctx's run_id and stage
func C(ctx context.Context) *Logger {
	zc := Get().With()
	if id := RunID(ctx); id != "" {
		zc = zc.Str("run_id", id)
	}
	if st, _ := ctx.Value(keyStage).(string); st != "" {
		zc = zc.Str("stage", st)
	}
	l := zc.Logger()
	return &l
}

// Named returns a child logger with a component field
func Named(component string) *Logger {
	if component == "" {
		return Get()
	}
	l := Get().With().Str("component", component).Logger()
	return &l
}

// Nop returns a disabled logger for tests and optional collaborators
func Nop() Logger { return zerolog.Nop() }
