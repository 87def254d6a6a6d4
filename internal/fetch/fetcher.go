// Package fetch provides the rate-limited HTTP fetcher all pipeline stages
// share for page retrieval.
package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/roster-cli/internal/config"
	"github.com/sells-group/roster-cli/internal/resilience"
)

// Page is one fetched document.
type Page struct {
	URL        string
	FinalURL   string
	Body       string
	StatusCode int
	FetchedAt  time.Time
}

// Fetcher retrieves pages over HTTP with a shared rate limiter, bounded
// body reads, block detection, and transient-failure retries.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	maxBody   int64
	retry     resilience.RetryConfig

	nowFunc func() time.Time
}

// New creates a Fetcher from config.
func New(cfg config.FetchConfig) *Fetcher {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 4
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 2 * 1024 * 1024
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (compatible; RosterBot/1.0)"
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 8,
			},
		},
		limiter:   rate.NewLimiter(rate.Limit(perSec), int(perSec)+1),
		userAgent: ua,
		maxBody:   maxBody,
		retry: resilience.RetryConfig{
			MaxAttempts:    cfg.Retries + 1,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
		},
		nowFunc: time.Now,
	}
}

// Get fetches a URL, retrying transient failures. Blocked and server-error
// responses are surfaced as transient errors so callers can skip the page
// after the retry budget without aborting the run.
func (f *Fetcher) Get(ctx context.Context, targetURL string) (*Page, error) {
	return resilience.DoVal(ctx, f.retry, "fetch", func(ctx context.Context) (*Page, error) {
		return f.getOnce(ctx, targetURL)
	})
}

// Head issues a lightweight existence check. Returns the final status code;
// a body is never read.
func (f *Fetcher) Head(ctx context.Context, targetURL string) (int, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, eris.Wrap(err, "fetch: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, targetURL, nil)
	if err != nil {
		return 0, eris.Wrap(err, "fetch: create head request")
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, eris.Wrap(err, "fetch: head")
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func (f *Fetcher) getOnce(ctx context.Context, targetURL string) (*Page, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetch: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: create request")
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: get")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, eris.Wrap(err, "fetch: read body")
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		return nil, resilience.Transient(eris.Errorf("fetch: blocked (%s)", kind), resp.StatusCode)
	}

	if resilience.RetryableStatus(resp.StatusCode) {
		return nil, resilience.Transient(eris.Errorf("fetch: status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("fetch: status %d for %s", resp.StatusCode, targetURL)
	}

	finalURL := targetURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Page{
		URL:        targetURL,
		FinalURL:   finalURL,
		Body:       string(body),
		StatusCode: resp.StatusCode,
		FetchedAt:  f.nowFunc(),
	}, nil
}
