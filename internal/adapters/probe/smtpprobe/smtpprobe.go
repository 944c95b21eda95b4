// Package smtpprobe checks mailbox existence with an SMTP dialogue that stops at RCPT TO.
// Nothing is ever sent. The dialogue itself is AfterShip/email-verifier's SMTP check
package smtpprobe

import (
	"context"
	"errors"
	"strings"
	"time"

	"mailsweep/internal/core/mailaddr"
	perr "mailsweep/internal/platform/errors"
	"mailsweep/internal/platform/logger"

	emailverifier "github.com/AfterShip/email-verifier"
)

const (
	defaultHelo    = "mailsweep.local"
	defaultFrom    = "noreply@mailsweep.local"
	defaultTimeout = 3 * time.Second
)

// Options configures the Prober
type Options struct {
	From string
	Helo string

	// Timeout bounds both the connect and each SMTP command, and the whole call when ctx has no deadline
	Timeout time.Duration
}

// Checker runs the MX lookup and the HELO, MAIL, RCPT exchange; *emailverifier.Verifier satisfies it
type Checker interface {
	CheckSMTP(domain, username string) (*emailverifier.SMTP, error)
}

// Prober is safe for concurrent use
type Prober struct {
	opts  Options
	check Checker
	log   logger.Logger
}

// Option tweaks a Prober, mostly for tests
type Option func(*Prober)

// WithChecker swaps the SMTP checker
func WithChecker(c Checker) Option { return func(p *Prober) { p.check = c } }

// New builds a Prober with defaults filled in
func New(o Options, opts ...Option) *Prober {
	if strings.TrimSpace(o.From) == "" {
		o.From = defaultFrom
	}
	if strings.TrimSpace(o.Helo) == "" {
		o.Helo = defaultHelo
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	p := &Prober{
		opts: o,
		check: emailverifier.NewVerifier().
			EnableSMTPCheck().
			DisableCatchAllCheck().
			FromEmail(o.From).
			HelloName(o.Helo).
			ConnectTimeout(o.Timeout).
			OperationTimeout(o.Timeout),
		log: *logger.Named("smtpprobe"),
	}
	for _, fn := range opts {
		fn(p)
	}
	return p
}

type verdict struct {
	res *emailverifier.SMTP
	err error
}

// Verify reports whether the mailbox accepts mail.
// (true, nil) is PASS and (false, nil) is FAIL. Errors coded ErrorCodeProbeRefused mean the
// exchanger rejected us before the recipient was judged; everything else is ErrorCodeProbeFailed
func (p *Prober) Verify(ctx context.Context, email string) (bool, error) {
	addr, err := mailaddr.Parse(email)
	if err != nil {
		return false, err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	// the checker takes no ctx; its own timeouts end the goroutine shortly after we give up
	out := make(chan verdict, 1)
	go func() {
		res, err := p.check.CheckSMTP(addr.Domain, addr.Local)
		out <- verdict{res, err}
	}()

	select {
	case <-ctx.Done():
		return false, perr.ProbeFailedf(ctx.Err(), "smtp check %s", addr.Domain)
	case v := <-out:
		ok, err := classify(v.res, v.err, addr.Domain)
		if err != nil {
			p.log.Debug().Err(err).Str("email", addr.Email).Msg("smtp check failed")
		}
		return ok, err
	}
}

// refusals are the checker's verdicts that mean the exchanger turned us away
var refusals = map[string]bool{
	emailverifier.ErrBlocked:     true,
	emailverifier.ErrNotAllowed:  true,
	emailverifier.ErrNoRelay:     true,
	emailverifier.ErrTooManyRCPT: true,
}

func classify(res *emailverifier.SMTP, err error, domain string) (bool, error) {
	if err == nil {
		return res != nil && res.Deliverable, nil
	}
	var le *emailverifier.LookupError
	if !errors.As(err, &le) {
		return false, perr.ProbeFailedf(err, "smtp check %s", domain)
	}
	// a nil LookupError is the checker's way of saying the reply was a plain undeliverable
	if le == nil {
		return false, nil
	}
	text := strings.ToLower(le.Message + " " + le.Details)
	switch {
	case refusals[le.Message], strings.Contains(text, "refuse"):
		return false, perr.Refused(le, "refuse")
	case le.Message == emailverifier.ErrNoSuchHost, strings.Contains(text, "no mx"):
		// a domain without exchangers has no mailboxes
		return false, nil
	default:
		return false, perr.ProbeFailedf(le, "smtp check %s", domain)
	}
}
