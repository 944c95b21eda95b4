package http

import (
	stdhttp "net/http"
	"runtime/debug"
	"time"

	perr "mailsweep/internal/platform/errors"
	"mailsweep/internal/platform/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// slowRequest is when AccessLog escalates to warn
const slowRequest = 500 * time.Millisecond

type capture struct {
	stdhttp.ResponseWriter
	status int
}

func (c *capture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

// AccessLog logs request duration and status at debug, slow ones at warn
func AccessLog(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		sw := &capture{ResponseWriter: w, status: stdhttp.StatusOK}
		start := time.Now()

		next.ServeHTTP(sw, r)

		elapsed := time.Since(start)
		log := logger.Named("http")
		evt := log.Debug()
		if elapsed >= slowRequest {
			evt = log.Warn()
		}
		evt.Int("status", sw.status).
			Dur("elapsed", elapsed).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("request done")
	})
}

// RecoverJSON converts panics into a JSON 500 envelope and logs the stack
func RecoverJSON(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == stdhttp.ErrAbortHandler {
				panic(v)
			}
			reqID := chimw.GetReqID(r.Context())
			logger.Named("http").Error().
				Str("request_id", reqID).
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")
			RespondError(w, r, perr.New(perr.ErrorCodeUnknown, "panic recovered"))
		}()
		next.ServeHTTP(w, r)
	})
}
