package crawler

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxRedirects bounds redirect chains per request. Long chains are
// almost always loops or tracking redirectors.
const maxRedirects = 5

// FetchResult is the outcome of a successful page download.
type FetchResult struct {
	// URL is the final URL after redirects.
	URL string

	// StatusCode is the HTTP status of the final response.
	StatusCode int

	// ContentType is the Content-Type header of the final response.
	ContentType string

	// Body is the response body, truncated at the configured limit.
	Body []byte
}

// IsHTML reports whether the response declared an HTML content type.
// An empty Content-Type is treated as HTML; small sites omit it.
func (r *FetchResult) IsHTML() bool {
	if r.ContentType == "" {
		return true
	}
	mediaType := strings.TrimSpace(strings.Split(r.ContentType, ";")[0])
	switch strings.ToLower(mediaType) {
	case "text/html", "application/xhtml+xml":
		return true
	}
	return false
}

// Fetcher downloads pages with a shared outbound rate limit and a
// rotating User-Agent pool. It is safe for concurrent use.
type Fetcher struct {
	client      *http.Client
	limiter     *rate.Limiter
	maxBodySize int64

	// rng picks the User-Agent per request. Guarded by rngMu because
	// rand.Rand is not safe for concurrent use.
	rngMu      sync.Mutex
	rng        *rand.Rand
	userAgents []string
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets a custom HTTP client. Tests use this to point
// the fetcher at local servers.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithUserAgents sets the User-Agent pool; one entry is chosen at
// random per request.
func WithUserAgents(agents []string) FetcherOption {
	return func(f *Fetcher) {
		if len(agents) > 0 {
			f.userAgents = agents
		}
	}
}

// WithRequestsPerSecond sets the global outbound request rate shared
// by all workers. 0 disables rate limiting.
func WithRequestsPerSecond(rps float64) FetcherOption {
	return func(f *Fetcher) {
		if rps > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			f.limiter = nil
		}
	}
}

// WithMaxBodySize sets the maximum response body size to read.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithTimeout sets the per-request timeout on the default client.
// Ignored when WithHTTPClient supplied a client afterwards.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.client.Timeout = d
	}
}

// WithRandSource seeds the User-Agent picker. Tests use a fixed seed
// for reproducible rotation.
func WithRandSource(src rand.Source) FetcherOption {
	return func(f *Fetcher) {
		f.rng = rand.New(src)
	}
}

// NewFetcher creates a Fetcher with sane defaults: 15 second timeout,
// 5MB body cap, 10 requests per second and a single browser
// User-Agent. Options override each of these.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter:     rate.NewLimiter(rate.Limit(10), 1),
		maxBodySize: 5 * 1024 * 1024,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		userAgents: []string{
			"Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0",
		},
	}

	f.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch downloads a single page. It blocks on the shared rate limiter
// before sending the request, so the aggregate request rate across all
// workers stays within the configured budget. Non-2xx responses are
// returned as results, not errors; the caller decides how to class them.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*FetchResult, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", f.pickUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, err
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &FetchResult{
		URL:         finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// pickUserAgent returns a random entry from the User-Agent pool.
func (f *Fetcher) pickUserAgent() string {
	f.rngMu.Lock()
	defer f.rngMu.Unlock()
	return f.userAgents[f.rng.Intn(len(f.userAgents))]
}
