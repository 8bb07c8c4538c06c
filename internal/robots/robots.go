package robots

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// fetchTimeout bounds a single robots.txt download. Kept short so one
// slow host cannot stall URL discovery for every worker.
const fetchTimeout = 10 * time.Second

// Evaluator answers whether a URL may be crawled under its host's
// robots.txt rules. It is safe for concurrent use; concurrent queries
// for the same uncached host fetch robots.txt once.
type Evaluator struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger

	mu    sync.Mutex
	hosts map[string]*hostEntry
}

// hostEntry caches the parsed rules for one scheme://host pair. The
// once gate ensures a single fetch even when many workers race on a
// freshly discovered host.
type hostEntry struct {
	once sync.Once
	data *robotstxt.RobotsData
}

// NewEvaluator creates an Evaluator that fetches robots.txt with the
// given client and identifies itself with userAgent when matching
// agent groups.
func NewEvaluator(client *http.Client, userAgent string, logger *slog.Logger) *Evaluator {
	if client == nil {
		client = http.DefaultClient
	}
	return &Evaluator{
		client:    client,
		userAgent: userAgent,
		logger:    logger,
		hosts:     make(map[string]*hostEntry),
	}
}

// Allowed reports whether canonicalURL may be fetched. Unparseable
// URLs are denied; hosts without reachable robots.txt allow all paths.
func (e *Evaluator) Allowed(ctx context.Context, canonicalURL string) bool {
	u, err := url.Parse(canonicalURL)
	if err != nil || u.Host == "" {
		return false
	}

	entry := e.entryFor(u.Scheme, u.Host)
	entry.once.Do(func() {
		entry.data = e.fetch(ctx, u.Scheme, u.Host)
	})

	// No rules means the host had no robots.txt we could read.
	if entry.data == nil {
		return true
	}
	return entry.data.TestAgent(u.RequestURI(), e.userAgent)
}

// entryFor returns the cache entry for a host, creating it if needed.
func (e *Evaluator) entryFor(scheme, host string) *hostEntry {
	key := scheme + "://" + host
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.hosts[key]
	if !ok {
		entry = &hostEntry{}
		e.hosts[key] = entry
	}
	return entry
}

// fetch downloads and parses robots.txt for a host. It returns nil
// when the file cannot be retrieved, which callers treat as allow-all.
func (e *Evaluator) fetch(ctx context.Context, scheme, host string) *robotstxt.RobotsData {
	robotsURL := scheme + "://" + host + "/robots.txt"

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		if e.logger != nil {
			e.logger.Debug("robots.txt fetch failed", "host", host, "error", err)
		}
		return nil
	}
	defer resp.Body.Close()

	// FromResponse applies the status-code conventions: 4xx means no
	// restrictions, 5xx means disallow everything until retry.
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		if e.logger != nil {
			e.logger.Debug("robots.txt parse failed", "host", host, "error", err)
		}
		return nil
	}
	return data
}

// AllowAll is a policy that permits every URL. Used when robots
// checking is disabled in the configuration.
type AllowAll struct{}

// Allowed always returns true.
func (AllowAll) Allowed(context.Context, string) bool { return true }
