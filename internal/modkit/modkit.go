// Package modkit carries what main hands every module: the shared deps and the build options
// (route prefix, middleware, injected collaborators)
package modkit

import (
	"net/http"

	"mailsweep/internal/modkit/repokit"
	"mailsweep/internal/platform/config"
	"mailsweep/internal/platform/logger"
	"mailsweep/internal/platform/store"
)

// Deps holds the process-wide dependencies of a module
type Deps struct {
	Log   logger.Logger
	Cfg   config.Conf
	PG    repokit.TxRunner
	CH    store.Clickhouse
	RunID string
}

// HasAudit reports whether the optional ClickHouse sink is wired
func (d Deps) HasAudit() bool { return d.CH != nil }

// Option adjusts how a module is built
type Option func(*Built)

// Built is the result of applying Options
type Built struct {
	Name   string
	Prefix string
	Mw     []func(http.Handler) http.Handler
	Ports  any
}

// WithName overrides the module name used as the log component
func WithName(name string) Option { return func(b *Built) { b.Name = name } }

// WithPrefix mounts the module's status routes under prefix
func WithPrefix(prefix string) Option { return func(b *Built) { b.Prefix = prefix } }

// WithMiddlewares appends middleware applied to the module's routes, outermost first
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(b *Built) { b.Mw = append(b.Mw, mw...) }
}

// WithPorts injects the collaborators a module consumes (prober, clock, store seams).
// The concrete type is owned by the module and read back with PortsAs
func WithPorts[T any](p T) Option { return func(b *Built) { b.Ports = p } }

// Build applies opts in order; nil options are skipped
func Build(opts ...Option) Built {
	var b Built
	for _, o := range opts {
		if o != nil {
			o(&b)
		}
	}
	b.Mw = append([]func(http.Handler) http.Handler(nil), b.Mw...)
	return b
}

// PortsAs returns the injected collaborators as T, or def when none of that type were given
func PortsAs[T any](b Built, def T) T {
	if v, ok := b.Ports.(T); ok {
		return v
	}
	return def
}
