// Package config handles application configuration via layered key/value sources.
// The process environment is the default source; YAML overlays and CLI overrides
// are stacked around it with explicit precedence
package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mailsweep/internal/platform/logger"
)

// Source resolves a fully-qualified key (e.g. "CORE_VERIFIER_BATCH_CAP") to a raw value
type Source interface {
	Lookup(key string) (string, bool)
}

type envSource struct{}

func (envSource) Lookup(k string) (string, bool) { return os.LookupEnv(k) }

// Env returns the process environment as a Source
func Env() Source { return envSource{} }

// Map is a static Source, used for YAML overlays and flag overrides
type Map map[string]string

// Lookup implements Source
func (m Map) Lookup(k string) (string, bool) {
	v, ok := m[k]
	return v, ok
}

// Conf is a namespaced view over one or more Sources (e.g., "CORE_VERIFIER_", "SERVICE_PGSQL_").
// Sources are consulted in order; the first non-blank value wins
type Conf struct {
	prefix string
	srcs   []Source
}

// New creates a root Conf over the given sources; with none it reads only the environment
func New(srcs ...Source) Conf {
	if len(srcs) == 0 {
		srcs = []Source{Env()}
	}
	return Conf{srcs: srcs}
}

// Prefix creates a child Conf with an additional prefix, e.g. cfg.Prefix("CORE_")
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p, srcs: c.srcs} }

// key composes the fully-qualified name
func (c Conf) key(k string) string { return c.prefix + k }

// value returns the first non-blank trimmed value for key across sources
func (c Conf) value(key string) string {
	k := c.key(key)
	for _, s := range c.srcs {
		if s == nil {
			continue
		}
		if v, ok := s.Lookup(k); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// Has reports whether any source carries a non-blank value for key
func (c Conf) Has(key string) bool { return c.value(key) != "" }

// MustString panics if the given key is missing or empty
func (c Conf) MustString(key string) string {
	v := c.value(key)
	if v == "" {
		logger.Get().Panic().Str("key", c.key(key)).Msg("missing required config")
	}
	return v
}

// MustInt panics if the given key is missing, empty, or not an int
func (c Conf) MustInt(key string) int {
	s := c.MustString(key)
	v, err := strconv.Atoi(s)
	if err != nil {
		logger.Get().Panic().Str("key", c.key(key)).Str("value", s).Msg("invalid int value")
	}
	return v
}

// Require ensures that all given keys are present (non-empty). Panics otherwise.
func (c Conf) Require(keys ...string) {
	for _, k := range keys {
		if c.value(k) == "" {
			logger.Get().Panic().Str("key", c.key(k)).Msg("missing required config")
		}
	}
}

// MayString returns the value or def if missing/empty
func (c Conf) MayString(key, def string) string {
	if v := c.value(key); v != "" {
		return v
	}
	return def
}

// MayInt returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayInt(key string, def int) int {
	s := c.value(key)
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Int("default", def).Msg("invalid int; using default")
	return def
}

// MayBool returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayBool(key string, def bool) bool {
	s := c.value(key)
	if s == "" {
		return def
	}
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Bool("default", def).Msg("invalid bool; using default")
	return def
}

// MayDuration returns the value or def if missing/empty; logs and returns def if invalid.
// A bare integer is read as milliseconds so "3000" and "3s" mean the same thing
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	s := c.value(key)
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(s); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Dur("default", def).Msg("invalid duration; using default")
	return def
}

// MayCSV returns a slice of strings from a comma-separated value; def if missing/empty
func (c Conf) MayCSV(key string, def []string) []string {
	s := c.value(key)
	if s == "" {
		return def
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// MayRegexp compiles the value (or def when missing); panics when the pattern is invalid
func (c Conf) MayRegexp(key, def string) *regexp.Regexp {
	s := c.MayString(key, def)
	re, err := regexp.Compile(s)
	if err != nil {
		logger.Get().Panic().Err(err).Str("key", c.key(key)).Str("value", s).Msg("invalid regular expression")
	}
	return re
}

// MayEnum ensures value is one of allowed; returns def if empty; panics if invalid.
func (c Conf) MayEnum(key, def string, allowed ...string) string {
	v := c.MayString(key, def)
	if v == "" {
		return v
	}
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return v
		}
	}
	logger.Get().Panic().Str("key", c.key(key)).Str("value", v).Strs("allowed", allowed).Msg("invalid enum value")
	return "" // unreachable
}
