package pg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"mailsweep/internal/platform/logger"

	"github.com/rs/zerolog"
)

type traceLine struct {
	Level     string  `json:"level"`
	ElapsedMS float64 `json:"elapsed_ms"`
	Slow      bool    `json:"slow"`
	SQL       string  `json:"sql"`
	Args      []any   `json:"args"`
	Error     string  `json:"error"`
	RunID     string  `json:"run_id"`
	Component string  `json:"component"`
}

func lastLine(t *testing.T, buf *bytes.Buffer) traceLine {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var l traceLine
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &l); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return l
}

func TestTracer_LevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	// the root is at error level; the tracer still prints
	tr := Tracer(zerolog.New(&buf).Level(zerolog.ErrorLevel))

	ctx := logger.WithRun(context.Background(), "run-9", "load")
	tr.OnQuery(ctx, QueryEvent{
		SQL:       "SELECT DISTINCT email\n\t FROM  wildberries\n WHERE email ~* $1",
		Args:      []any{"^[c-j]", 500000},
		ElapsedUS: 12500,
		Err:       errors.New("boom"),
	})
	l := lastLine(t, &buf)
	if l.Level != "info" || l.Slow || l.ElapsedMS != 12.5 || l.Error != "boom" {
		t.Fatalf("info line = %+v", l)
	}
	if l.SQL != "SELECT DISTINCT email FROM wildberries WHERE email ~* $1" {
		t.Fatalf("sql not compacted: %q", l.SQL)
	}
	if l.RunID != "run-9" || l.Component != "pg" || len(l.Args) != 2 {
		t.Fatalf("context fields = %+v", l)
	}

	tr.OnQuery(context.Background(), QueryEvent{SQL: "UPDATE wildberries", Slow: true})
	if l := lastLine(t, &buf); l.Level != "warn" || !l.Slow || l.RunID != "" {
		t.Fatalf("slow line = %+v", l)
	}
}

func TestSummarizeArgs(t *testing.T) {
	emails := []string{"a@x.io", "b@x.io", "c@x.io", "d@x.io", "e@x.io"}
	got := summarizeArgs([]any{emails, "^[c-j]", []byte("raw"), nil, []string{"one"}}).([]any)
	if s, _ := got[0].(string); !strings.Contains(s, "(5 items)") || strings.Contains(s, "e@x.io") {
		t.Fatalf("unnest payload not summarized: %v", got[0])
	}
	if got[1] != "^[c-j]" || got[3] != nil {
		t.Fatalf("scalars changed: %#v", got)
	}
	if short, ok := got[4].([]string); !ok || len(short) != 1 {
		t.Fatalf("short arrays pass through: %#v", got[4])
	}
	if summarizeArgs("x") != "x" {
		t.Fatalf("non-slice args pass through")
	}
	if compact("  a\n\tb  ") != "a b" {
		t.Fatalf("compact = %q", compact("  a\n\tb  "))
	}
}
