package linkcheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yingtu35/linkcrawler/pkg/domain"
)

// URLVerifier makes a single verification request.
type URLVerifier interface {
	Verify(ctx context.Context, url, method string) (*Attempt, error)
}

// LinkChecker resolves a URL to an Outcome. It returns ErrCancelled when the
// crawl was cancelled before an answer was obtained.
type LinkChecker interface {
	Check(ctx context.Context, url string) (Outcome, error)
}

type CheckerOptions struct {
	// ForbiddenRetryHosts limits the HEAD 403 -> GET retry to these hosts
	// (and their subdomains). Empty means every host.
	ForbiddenRetryHosts []string
	Logger              *logrus.Entry
}

// Checker combines verification attempts HEAD -> GET into one Outcome.
type Checker struct {
	verifier   URLVerifier
	retryHosts map[string]bool // nil means every host is eligible
	now        func() time.Time
	log        *logrus.Entry
}

func NewChecker(verifier URLVerifier, opts CheckerOptions) *Checker {
	if opts.Logger == nil {
		opts.Logger = logrus.WithField("component", "checker")
	}
	var hosts map[string]bool
	if len(opts.ForbiddenRetryHosts) > 0 {
		hosts = make(map[string]bool, len(opts.ForbiddenRetryHosts))
		for _, h := range opts.ForbiddenRetryHosts {
			hosts[strings.ToLower(strings.TrimSpace(h))] = true
		}
	}
	return &Checker{
		verifier:   verifier,
		retryHosts: hosts,
		now:        time.Now,
		log:        opts.Logger,
	}
}

// Check verifies url with HEAD first. A HEAD 403 is retried with GET when
// the host is eligible, and the GET outcome is reported unless GET fails at
// the transport level. A HEAD transport failure falls back to GET.
func (c *Checker) Check(ctx context.Context, url string) (Outcome, error) {
	log := c.log.WithField("url", url)

	head, err := c.verifier.Verify(ctx, url, http.MethodHead)
	if errors.Is(err, ErrCancelled) {
		return Outcome{}, err
	}

	if err == nil && head.HasStatus && head.StatusCode == http.StatusForbidden && c.retriesForbidden(url) {
		log.Debug("HEAD returned 403, retrying with GET")
		get, getErr := c.verifier.Verify(ctx, url, http.MethodGet)
		if getErr != nil {
			log.Debugf("GET after 403 failed, keeping HEAD result: %v", getErr)
			return c.outcome(head, nil), nil
		}
		return c.outcome(get, nil), nil
	}

	if err != nil {
		log.Debugf("HEAD failed, trying GET: %v", err)
		get, getErr := c.verifier.Verify(ctx, url, http.MethodGet)
		if errors.Is(getErr, ErrCancelled) {
			return Outcome{}, getErr
		}
		return c.outcome(get, getErr), nil
	}

	return c.outcome(head, nil), nil
}

func (c *Checker) retriesForbidden(url string) bool {
	if c.retryHosts == nil {
		return true
	}
	if host, err := domain.GetRegistrableDomain(url); err == nil && c.retryHosts[host] {
		return true
	}
	// Hosts like t.co are listed as-is and may not be registrable domains.
	parsed, err := neturl.Parse(url)
	if err != nil {
		return false
	}
	return c.retryHosts[strings.ToLower(parsed.Hostname())]
}

func (c *Checker) outcome(a *Attempt, err error) Outcome {
	o := Outcome{CheckedAt: c.now()}
	switch {
	case err != nil:
		o.Status = StatusBroken
		o.Error = err.Error()
	case a.Working:
		o.Status = StatusWorking
		o.StatusCode = a.StatusCode
	case a.HasStatus:
		o.Status = StatusBroken
		o.StatusCode = a.StatusCode
		o.Error = fmt.Sprintf("HTTP %d", a.StatusCode)
	default:
		o.Status = StatusBroken
		o.Error = "opaque response: status unavailable"
	}
	return o
}
