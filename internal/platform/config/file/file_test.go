package file

import (
	"errors"
	"testing"

	perr "mailsweep/internal/platform/errors"
	kit "mailsweep/internal/platform/testkit"
)

const sample = `
service:
  pgsql:
    dburl: postgres://u:p@db:5432/emails
    max-conns: 8
core:
  verifier:
    concurrency: 16
    skip_domains: [".gov", "@fsb", "icloud.com"]
    probe_timeout: 3s
    unset: ~
`

func TestParse_Flattens(t *testing.T) {
	m, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cases := map[string]string{
		"SERVICE_PGSQL_DBURL":         "postgres://u:p@db:5432/emails",
		"SERVICE_PGSQL_MAX_CONNS":     "8",
		"CORE_VERIFIER_CONCURRENCY":   "16",
		"CORE_VERIFIER_SKIP_DOMAINS":  ".gov,@fsb,icloud.com",
		"CORE_VERIFIER_PROBE_TIMEOUT": "3s",
	}
	for k, want := range cases {
		if got := m[k]; got != want {
			t.Fatalf("%s = %q, want %q", k, got, want)
		}
	}
	if _, ok := m["CORE_VERIFIER_UNSET"]; ok {
		t.Fatalf("null values must stay unset")
	}
	if ks := Keys(m); len(ks) != len(cases) || ks[0] != "CORE_VERIFIER_CONCURRENCY" {
		t.Fatalf("Keys = %v", ks)
	}
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("core: [unterminated"))
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("want invalid argument, got %v", err)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	m, err := Load("  ")
	if err != nil || len(m) != 0 {
		t.Fatalf("Load(empty) = %v, %v", m, err)
	}
}

func TestLoad_ReadFailure(t *testing.T) {
	kit.Serial(t)
	boom := errors.New("boom")
	kit.Swap(t, &readFile, func(string) ([]byte, error) { return nil, boom })
	_, err := Load("/etc/mailsweep.yaml")
	if !errors.Is(err, boom) {
		t.Fatalf("want wrapped boom, got %v", err)
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	kit.Serial(t)
	kit.Swap(t, &readFile, func(string) ([]byte, error) { return []byte(sample), nil })
	m, err := Load("mailsweep.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m["CORE_VERIFIER_CONCURRENCY"] != "16" {
		t.Fatalf("unexpected map: %v", m)
	}
}
