// Package mailaddr parses candidate addresses and extracts the folded domain used for skip learning
package mailaddr

import (
	"strings"
	"sync"
	"unicode"

	perr "mailsweep/internal/platform/errors"

	"golang.org/x/text/cases"
)

// Addr is a parsed candidate address. Raw keeps the stored spelling since it is the write key;
// Email is the trimmed form that goes on the wire
type Addr struct {
	Raw    string
	Email  string
	Local  string
	Domain string
}

// String returns the stored spelling
func (a Addr) String() string { return a.Raw }

var folders = sync.Pool{New: func() any { c := cases.Fold(); return &c }}

// Fold returns the unicode case fold of s
func Fold(s string) string {
	if s == "" {
		return ""
	}
	c := folders.Get().(*cases.Caser)
	out := c.String(s)
	folders.Put(c)
	return out
}

// Parse validates raw as a probe-able address.
// Empty input, anything but exactly one '@', an empty side or embedded whitespace is MalformedCandidate
func Parse(raw string) (Addr, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Addr{}, perr.New(perr.ErrorCodeMalformedCandidate, "empty address")
	}
	at := strings.IndexByte(s, '@')
	if at <= 0 || at == len(s)-1 || strings.IndexByte(s[at+1:], '@') >= 0 {
		return Addr{}, perr.Newf(perr.ErrorCodeMalformedCandidate, "malformed address %q", raw)
	}
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return Addr{}, perr.Newf(perr.ErrorCodeMalformedCandidate, "whitespace in address %q", raw)
	}
	return Addr{Raw: raw, Email: s, Local: s[:at], Domain: Fold(s[at+1:])}, nil
}

// Domain returns the folded substring after the last '@', false when there is none
func Domain(email string) (string, bool) {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return "", false
	}
	d := strings.TrimSpace(email[at+1:])
	if d == "" {
		return "", false
	}
	return Fold(d), true
}
