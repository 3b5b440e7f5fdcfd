package linkcheck

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Mode is how a verification request was made.
type Mode int

const (
	// ModeStandard follows redirects and reads the status code.
	ModeStandard Mode = iota
	// ModeOpaque is a single plain request that only proves the server
	// answered; its status is not read.
	ModeOpaque
)

func (m Mode) String() string {
	if m == ModeOpaque {
		return "opaque"
	}
	return "standard"
}

// StatusPolicy decides which status codes count as a working resource.
type StatusPolicy struct {
	Min int
	Max int
}

// DefaultStatusPolicy accepts 2xx and 3xx.
var DefaultStatusPolicy = StatusPolicy{Min: 200, Max: 399}

func (p StatusPolicy) Accepts(code int) bool {
	return code >= p.Min && code <= p.Max
}

// Attempt is the result of one verification request that got a response.
type Attempt struct {
	Method     string
	Mode       Mode
	StatusCode int  // Only meaningful when HasStatus is true
	HasStatus  bool // False for opaque responses
	Working    bool
}

type VerifierOptions struct {
	Timeout   time.Duration
	UserAgent string
	Policy    StatusPolicy
	// Client and OpaqueClient override the default HTTP clients (tests).
	Client       *http.Client
	OpaqueClient *http.Client
	Logger       *logrus.Entry
}

// Verifier issues single verification requests for one URL.
type Verifier struct {
	client       *http.Client // The client used for the standard attempt
	opaqueClient *http.Client // The client used for the fallback attempt
	timeout      time.Duration
	userAgent    string
	policy       StatusPolicy
	log          *logrus.Entry
}

func NewVerifier(opts VerifierOptions) *Verifier {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRequestTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Policy == (StatusPolicy{}) {
		opts.Policy = DefaultStatusPolicy
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.OpaqueClient == nil {
		opts.OpaqueClient = newOpaqueClient()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.WithField("component", "verifier")
	}
	return &Verifier{
		client:       opts.Client,
		opaqueClient: opts.OpaqueClient,
		timeout:      opts.Timeout,
		userAgent:    opts.UserAgent,
		policy:       opts.Policy,
		log:          opts.Logger,
	}
}

// newOpaqueClient builds a client without keep-alives, HTTP/2 or redirect
// following, so a redirect loop or a broken h2 stack still yields an answer.
func newOpaqueClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			DisableKeepAlives: true,
			TLSNextProto:      map[string]func(string, *tls.Conn) http.RoundTripper{},
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Verify makes one verification request for url with the given method. If
// the standard attempt fails at the transport level, one opaque attempt is
// made. Each attempt has its own timer. Cancellation of ctx prevents new
// requests but does not abort one already in flight.
func (v *Verifier) Verify(ctx context.Context, url, method string) (*Attempt, error) {
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}

	attempt, err := v.do(ctx, v.client, url, method, ModeStandard)
	if err == nil {
		return attempt, nil
	}
	if IsCode(err, ErrCodeInvalidURL) {
		return nil, err
	}
	v.log.WithFields(logrus.Fields{"url": url, "method": method}).Debugf("standard request failed, retrying opaque: %v", err)

	if ctx.Err() != nil {
		return nil, ErrCancelled
	}
	attempt, opaqueErr := v.do(ctx, v.opaqueClient, url, method, ModeOpaque)
	if opaqueErr != nil {
		return nil, opaqueErr
	}
	return attempt, nil
}

func (v *Verifier) do(ctx context.Context, client *http.Client, url, method string, mode Mode) (*Attempt, error) {
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, nil)
	if err != nil {
		return nil, NewInvalidURLError(url, err)
	}
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		if isTimeout(reqCtx, err) {
			return nil, NewTimeoutError(url, v.timeout)
		}
		return nil, NewNetworkError(url, err)
	}
	defer resp.Body.Close()
	if method != http.MethodHead {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	}

	attempt := &Attempt{Method: method, Mode: mode}
	if mode == ModeStandard {
		attempt.StatusCode = resp.StatusCode
		attempt.HasStatus = true
		attempt.Working = v.policy.Accepts(resp.StatusCode)
	}
	return attempt, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
