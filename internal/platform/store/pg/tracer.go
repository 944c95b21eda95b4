package pg

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"mailsweep/internal/platform/logger"

	"github.com/rs/zerolog"
)

// QueryEvent describes one finished statement
type QueryEvent struct {
	SQL       string
	Args      any
	ElapsedUS int64
	Err       error
	Slow      bool
}

// QueryTracer receives an event per statement
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// maxLoggedElems caps how many elements of an array argument are printed
const maxLoggedElems = 3

// Tracer returns a tracer that prints every statement when LogSQL is on,
// independent of the process-wide root level
func Tracer(root logger.Logger) QueryTracer {
	ll := root.Level(zerolog.DebugLevel).With().Str("component", "pg").Logger()
	return &zlTracer{log: ll}
}

type zlTracer struct{ log logger.Logger }

func (z *zlTracer) OnQuery(ctx context.Context, ev QueryEvent) {
	evt := z.log.Info()
	if ev.Slow {
		evt = z.log.Warn()
	}
	if id := logger.RunID(ctx); id != "" {
		evt = evt.Str("run_id", id)
	}

	evt.Float64("elapsed_ms", float64(ev.ElapsedUS)/1000.0).
		Bool("slow", ev.Slow).
		Str("sql", compact(ev.SQL)).
		Interface("args", summarizeArgs(ev.Args)).
		Err(ev.Err).
		Msg("pg query")
}

// summarizeArgs keeps scalar args as-is and shortens batch arrays (unnest payloads)
// to their length plus the first few elements
func summarizeArgs(args any) any {
	list, ok := args.([]any)
	if !ok {
		return args
	}
	out := make([]any, len(list))
	for i, a := range list {
		rv := reflect.ValueOf(a)
		if a == nil || rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
			out[i] = a
			continue
		}
		if rv.Len() <= maxLoggedElems {
			out[i] = a
			continue
		}
		head := make([]any, 0, maxLoggedElems)
		for j := 0; j < maxLoggedElems; j++ {
			head = append(head, rv.Index(j).Interface())
		}
		out[i] = fmt.Sprintf("%v ... (%d items)", head, rv.Len())
	}
	return out
}

// compact folds whitespace runs so multi-line statements log on one line
func compact(s string) string { return strings.Join(strings.Fields(s), " ") }
