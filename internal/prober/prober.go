// Package prober issues reachability checks against indexed endpoints and
// applies the resulting failure bookkeeping.
package prober

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/doyensec/safeurl"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"x402index/internal/storage"
)

const (
	DefaultTimeout           = 5 * time.Second
	DefaultUserAgent         = "x402index-healthcheck/1.0"
	DefaultConcurrency       = 10
	DefaultInactiveThreshold = 10

	timeoutMessage = "Timeout"
)

// Options tune probing behaviour.
type Options struct {
	Timeout           time.Duration
	UserAgent         string
	Concurrency       int
	InactiveThreshold int
	// BlockPrivateNetworks refuses to dial loopback, private and link-local
	// addresses, including after DNS resolution.
	BlockPrivateNetworks bool
	// Client overrides the HTTP client. Redirect following is always disabled.
	Client *http.Client
}

// Outcome pairs a target with the ping its probe produced.
type Outcome struct {
	Target storage.ProbeTarget
	Ping   storage.Ping
}

// Prober checks endpoints with HEAD requests.
type Prober struct {
	opts   Options
	client *http.Client
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Prober, filling unset options with defaults.
func New(opts Options, logger zerolog.Logger) *Prober {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.InactiveThreshold <= 0 {
		opts.InactiveThreshold = DefaultInactiveThreshold
	}

	client := opts.Client
	switch {
	case client != nil:
		copied := *client
		client = &copied
	case opts.BlockPrivateNetworks:
		cfg := safeurl.GetConfigBuilder().
			SetTimeout(opts.Timeout).
			SetAllowedSchemes("http", "https").
			Build()
		client = safeurl.Client(cfg).Client
	default:
		client = &http.Client{Timeout: opts.Timeout}
	}
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Prober{
		opts:   opts,
		client: client,
		logger: logger.With().Str("component", "prober").Logger(),
		now:    time.Now,
	}
}

// InactiveThreshold is the failure streak at which endpoints are deactivated.
func (p *Prober) InactiveThreshold() int {
	return p.opts.InactiveThreshold
}

// Probe sends one HEAD request to the target. 2xx, 3xx and 402 responses
// count as reachable; 402 is how a paid x402 resource answers an
// unauthenticated request. Latency is recorded for every outcome.
func (p *Prober) Probe(ctx context.Context, target storage.ProbeTarget) storage.Ping {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	start := p.now()
	ping := storage.Ping{
		ID:         uuid.NewString(),
		EndpointID: target.ID,
		PingedAt:   start.UTC(),
	}

	status, err := p.head(ctx, target.ResourceURL)
	latency := p.now().Sub(start).Milliseconds()
	ping.LatencyMs = &latency

	if err != nil {
		msg := transportMessage(err)
		ping.ErrorMessage = &msg
		p.logger.Debug().Str("url", target.ResourceURL).Str("error", msg).Msg("probe failed")
		return ping
	}

	ping.StatusCode = &status
	if reachable(status) {
		ping.Success = true
		return ping
	}
	msg := fmt.Sprintf("HTTP %d", status)
	ping.ErrorMessage = &msg
	return ping
}

// ProbeBatch probes every target with bounded concurrency and returns the
// outcomes in input order. A failing probe never affects its siblings.
func (p *Prober) ProbeBatch(ctx context.Context, targets []storage.ProbeTarget) []Outcome {
	out := make([]Outcome, len(targets))

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, t := range targets {
		g.Go(func() error {
			out[i] = Outcome{Target: t, Ping: p.Probe(ctx, t)}
			return nil
		})
	}
	_ = g.Wait()

	return out
}

func (p *Prober) head(ctx context.Context, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", p.opts.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func reachable(status int) bool {
	return (status >= 200 && status < 400) || status == http.StatusPaymentRequired
}

func transportMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutMessage
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return timeoutMessage
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	return err.Error()
}
