package http

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Handler is the handler shape the status routes are written in
type Handler = func(stdhttp.ResponseWriter, *stdhttp.Request)

// Router is the surface a module mounts its status routes on
type Router interface {
	Get(path string, h Handler)
	Handle(path string, h stdhttp.Handler)
	Use(mw ...func(stdhttp.Handler) stdhttp.Handler)
	Group(fn func(Router))
	Route(pattern string, fn func(Router))

	Mux() stdhttp.Handler
}

// AdaptChi exposes a chi router as a Router
func AdaptChi(r chi.Router) Router { return chiRouter{r: r} }

type chiRouter struct{ r chi.Router }

func (c chiRouter) Get(p string, h Handler) { c.r.Method(stdhttp.MethodGet, p, stdhttp.HandlerFunc(h)) }

func (c chiRouter) Handle(p string, h stdhttp.Handler) { c.r.Handle(p, h) }

func (c chiRouter) Use(mw ...func(stdhttp.Handler) stdhttp.Handler) { c.r.Use(mw...) }

func (c chiRouter) Group(fn func(Router)) {
	c.r.Group(func(sub chi.Router) { fn(chiRouter{r: sub}) })
}

func (c chiRouter) Route(pattern string, fn func(Router)) {
	c.r.Route(pattern, func(sub chi.Router) { fn(chiRouter{r: sub}) })
}

func (c chiRouter) Mux() stdhttp.Handler { return c.r }

// MountProfiler serves pprof under prefix (e.g. "/debug" gives /debug/pprof/) when enabled
func MountProfiler(r Router, prefix string, enabled bool) {
	if !enabled {
		return
	}
	// a sub router so the profiler mux routes on the path left after prefix
	r.Route(prefix, func(sub Router) { sub.Handle("/*", chimw.Profiler()) })
}
