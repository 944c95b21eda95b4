// Package module wires the verifier pipeline, its store and probe adapters, and its status routes
package module

import (
	"context"
	"net/http"

	"mailsweep/internal/adapters/probe/smtpprobe"
	"mailsweep/internal/core/version"
	"mailsweep/internal/modkit"
	perr "mailsweep/internal/platform/errors"
	"mailsweep/internal/platform/logger"
	phttp "mailsweep/internal/platform/net/http"
	ptime "mailsweep/internal/platform/time"
	dom "mailsweep/internal/services/verifier/domain"
	"mailsweep/internal/services/verifier/repo"
	"mailsweep/internal/services/verifier/service"
)

// Name is the registry name of the verifier module
const Name = "verifier"

// Ports exposed by the verifier module
type Ports struct {
	Runner dom.RunnerPort
	Status dom.StatusPort
}

// Collaborators are the seams a caller may inject with modkit.WithPorts; nil fields get the real adapters
type Collaborators struct {
	Prober dom.Prober
	Source dom.CandidateSource
	Sink   dom.ResultSink
	Clock  ptime.Clock
}

// Module implements the verifier module
type Module struct {
	deps   modkit.Deps
	opts   Options
	prefix string
	mw     []func(http.Handler) http.Handler
	log    logger.Logger

	source   dom.CandidateSource
	audit    *repo.Audit
	pipeline *service.Pipeline
	ports    Ports
}

// New validates options from deps.Cfg and assembles the pipeline
func New(deps modkit.Deps, opts ...modkit.Option) (*Module, error) {
	o := FromConfig(deps.Cfg)
	if err := o.Validate(); err != nil {
		return nil, err
	}
	b := modkit.Build(opts...)
	c := modkit.PortsAs(b, Collaborators{})

	if c.Prober == nil {
		c.Prober = smtpprobe.New(smtpprobe.Options{
			From:    o.ProbeFrom,
			Helo:    o.ProbeHelo,
			Timeout: o.ProbeTimeout,
		})
	}
	if c.Source == nil || c.Sink == nil {
		if deps.PG == nil {
			return nil, perr.InvalidArgf("verifier: postgres is required")
		}
		st := service.NewStore(deps.PG, repo.NewPG(o.Table), o.WriteTimeout)
		if c.Source == nil {
			c.Source = st
		}
		if c.Sink == nil {
			c.Sink = st
		}
	}

	name := b.Name
	if name == "" {
		name = Name
	}
	m := &Module{
		deps:   deps,
		opts:   o,
		prefix: b.Prefix,
		log:    deps.Log.With().Str("component", name).Logger(),
		mw:     b.Mw,
		source: c.Source,
	}
	if deps.HasAudit() {
		m.audit = repo.NewAudit(deps.CH)
	}

	// a nil *Audit must not reach the batcher as a non-nil interface
	var audit dom.AuditSink
	if m.audit != nil {
		audit = m.audit
	}
	m.pipeline = service.New(o.Pipeline(), service.Deps{
		Prober: c.Prober,
		Sink:   c.Sink,
		Audit:  audit,
		Clock:  c.Clock,
		Log:    m.log,
		RunID:  deps.RunID,
	})
	m.ports = Ports{Runner: m, Status: m.pipeline}
	return m, nil
}

// Run loads the candidate list and drives the pipeline until it stops
func (m *Module) Run(ctx context.Context) (dom.Report, error) {
	emails, err := m.source.Candidates(ctx, m.opts.Filter, m.opts.LimitRecords)
	if err != nil {
		m.log.Error().Err(err).
			Str("table", m.opts.Table).
			Bool("undefined_table", perr.IsUndefinedTable(err)).
			Bool("unavailable", perr.IsConnectionUnavailable(err)).
			Msg("load candidates failed")
		return m.pipeline.Report(), err
	}
	m.log.Info().
		Int("candidates", len(emails)).
		Str("table", m.opts.Table).
		Str("filter", m.opts.Filter).
		Int("limit", m.opts.LimitRecords).
		Msg("candidates loaded")
	if len(emails) == 0 {
		m.log.Info().Msg("nothing to do")
	}
	if err := m.pipeline.Load(emails); err != nil {
		return m.pipeline.Report(), err
	}
	return m.pipeline.Run(ctx)
}

// Interrupt starts a graceful drain
func (m *Module) Interrupt(reason string) { m.pipeline.Interrupt(reason) }

// Options returns the validated options, for the process layer
func (m *Module) Options() Options { return m.opts }

// Name satisfies module.Module
func (m *Module) Name() string { return Name }

// Ports satisfies module.Module
func (m *Module) Ports() any { return m.ports }

// MountRoutes mounts the read-only status routes
func (m *Module) MountRoutes(r phttp.Router) {
	mount := func(r phttp.Router) {
		phttp.GetJSON(r, "/healthz", m.health)
		phttp.GetJSON(r, "/status", func(*http.Request) (any, error) { return m.pipeline.Report(), nil })
		phttp.GetJSON(r, "/domains", func(*http.Request) (any, error) { return m.pipeline.Domains(), nil })
		phttp.GetJSON(r, "/inflight", func(*http.Request) (any, error) { return m.pipeline.InFlight(), nil })
		phttp.GetJSON(r, "/audit", m.auditSummary)
		phttp.MountProfiler(r, "/debug", m.opts.StatusPprof)
	}
	scoped := func(r phttp.Router) {
		if len(m.mw) > 0 {
			r.Use(m.mw...)
		}
		mount(r)
	}
	if m.prefix == "" {
		r.Group(scoped)
		return
	}
	r.Route(m.prefix, scoped)
}

type health struct {
	version.BuildInfo
	RunID string    `json:"run_id"`
	State dom.State `json:"state"`
}

func (m *Module) health(*http.Request) (any, error) {
	return health{BuildInfo: version.Info(), RunID: m.deps.RunID, State: m.pipeline.State()}, nil
}

func (m *Module) auditSummary(r *http.Request) (any, error) {
	if m.audit == nil {
		return nil, perr.NotFoundf("audit sink not configured")
	}
	return m.audit.RunSummary(r.Context(), m.deps.RunID)
}
