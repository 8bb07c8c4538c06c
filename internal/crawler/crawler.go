package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/tsurugo/webcorpus/internal/frontier"
	"github.com/tsurugo/webcorpus/internal/model"
	"github.com/tsurugo/webcorpus/internal/simhash"
)

// idlePollInterval is how often the run loop checks whether the crawl
// has naturally drained (nothing pending, nothing in flight).
const idlePollInterval = 200 * time.Millisecond

// Crawler coordinates fetch workers over a shared frontier. Each
// worker takes a URL, downloads it, parses it, and either accepts the
// page into the write queue or marks the URL as filtered or failed.
// The crawl ends when the accepted-page target is reached, the
// frontier drains, or the context is canceled.
type Crawler struct {
	frontier *frontier.Frontier
	detector *simhash.Detector
	fetcher  *Fetcher

	scope    *Scope
	langOK   LanguagePredicate
	logger   *slog.Logger

	numWorkers  int
	targetPages int
	shingleSize int

	// parseSem bounds concurrent parse/fingerprint work so a large
	// fetch worker count cannot saturate the CPU with HTML parsing.
	parseSem *semaphore.Weighted

	// pages is the write queue consumed by the storage writer.
	pages chan model.AcceptedPage

	// accepted counts pages sent to the write queue.
	accepted atomic.Int64
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithWorkers sets the number of concurrent fetch workers.
func WithWorkers(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.numWorkers = n
		}
	}
}

// WithParseWorkers bounds concurrent parse and fingerprint work.
func WithParseWorkers(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.parseSem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithTargetPages sets the accepted-page count at which the crawl
// shuts down.
func WithTargetPages(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.targetPages = n
		}
	}
}

// WithShingleSize sets the word-window size used when fingerprinting
// page text.
func WithShingleSize(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.shingleSize = n
		}
	}
}

// WithScope restricts discovered links to the given registrable
// domains.
func WithScope(s *Scope) Option {
	return func(c *Crawler) {
		c.scope = s
	}
}

// WithLanguagePredicate replaces the default English-only page filter.
func WithLanguagePredicate(p LanguagePredicate) Option {
	return func(c *Crawler) {
		if p != nil {
			c.langOK = p
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithQueueSize sets the write queue capacity. When the queue is full
// workers block, which throttles fetching to disk speed.
func WithQueueSize(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.pages = make(chan model.AcceptedPage, n)
		}
	}
}

// New creates a Crawler over the given frontier, duplicate detector
// and fetcher.
func New(f *frontier.Frontier, d *simhash.Detector, fetcher *Fetcher, opts ...Option) *Crawler {
	c := &Crawler{
		frontier:    f,
		detector:    d,
		fetcher:     fetcher,
		langOK:      EnglishOnly,
		logger:      slog.Default(),
		numWorkers:  8,
		targetPages: 100,
		shingleSize: 3,
		parseSem:    semaphore.NewWeighted(4),
		pages:       make(chan model.AcceptedPage, 64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pages returns the write queue of accepted pages. The channel is
// closed when Run returns; the storage writer ranges over it.
func (c *Crawler) Pages() <-chan model.AcceptedPage {
	return c.pages
}

// Accepted returns the number of pages accepted so far.
func (c *Crawler) Accepted() int {
	return int(c.accepted.Load())
}

// Run executes the crawl until the target is reached, the frontier
// drains, or ctx is canceled. It always closes the write queue before
// returning so the storage writer terminates.
func (c *Crawler) Run(ctx context.Context) error {
	defer close(c.pages)
	defer c.frontier.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.numWorkers + 1)

	// Watch for natural drain: no pending URLs and no worker holding
	// one. Polling is fine at this granularity.
	g.Go(func() error {
		ticker := time.NewTicker(idlePollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if c.frontier.Closed() {
					return nil
				}
				if c.frontier.Idle() {
					c.logger.Info("frontier drained, stopping crawl")
					c.frontier.Close()
					return nil
				}
			}
		}
	})

	for i := 0; i < c.numWorkers; i++ {
		worker := i
		g.Go(func() error {
			return c.runWorker(gctx, worker)
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("crawl failed: %w", err)
	}
	return nil
}

// runWorker is one fetch worker's loop: take, process, repeat until
// the frontier closes or the context ends.
func (c *Crawler) runWorker(ctx context.Context, id int) error {
	logger := c.logger.With("worker", id)
	for {
		pageURL, err := c.frontier.Take(ctx)
		if err != nil {
			// Closed frontier and canceled context are both normal
			// shutdown paths for a worker.
			if errors.Is(err, frontier.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		c.processURL(ctx, logger, pageURL)
	}
}

// processURL runs one URL through the full pipeline: fetch, gate,
// parse, filter, fingerprint, accept. Every exit marks the URL
// visited or failed except context cancellation, which leaves it in
// flight so a state snapshot re-queues it.
func (c *Crawler) processURL(ctx context.Context, logger *slog.Logger, pageURL string) {
	result, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Debug("fetch failed", "url", pageURL, "error", err)
		c.markFailed(logger, pageURL, model.FailureReason(model.ReasonFetch, err.Error()))
		return
	}

	if result.StatusCode < 200 || result.StatusCode > 299 {
		logger.Debug("rejected by status", "url", pageURL, "status", result.StatusCode)
		c.markFailed(logger, pageURL, model.FailureReason(model.ReasonStatus, fmt.Sprintf("%d", result.StatusCode)))
		return
	}

	if !result.IsHTML() {
		logger.Debug("rejected by content type", "url", pageURL, "content_type", result.ContentType)
		c.markFailed(logger, pageURL, model.FailureReason(model.ReasonContentType, result.ContentType))
		return
	}

	page, err := c.parsePage(ctx, result)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Debug("parse failed", "url", pageURL, "error", err)
		c.markFailed(logger, pageURL, model.FailureReason(model.ReasonParse, err.Error()))
		return
	}

	// A canonical link pointing elsewhere means this URL is an alias.
	// Queue the canonical target and record the alias as visited
	// without saving anything.
	if canonical, ok := c.canonicalAlias(pageURL, page.CanonicalURL); ok {
		logger.Debug("canonical alias", "url", pageURL, "canonical", canonical)
		c.enqueueLink(ctx, canonical)
		c.markVisited(logger, pageURL)
		return
	}

	if !c.langOK(page) {
		logger.Debug("rejected by language filter", "url", pageURL)
		c.markVisited(logger, pageURL)
		return
	}

	fp, err := c.fingerprint(ctx, page.Text)
	if err != nil {
		return
	}
	if c.detector.IsDuplicate(fp) {
		logger.Debug("near-duplicate content", "url", pageURL, "fingerprint", fp)
		c.markVisited(logger, pageURL)
		return
	}
	c.detector.Add(fp)

	// Only accepted pages contribute links. A filtered or duplicate
	// page never feeds the frontier, so one boilerplate farm cannot
	// steer the whole crawl.
	c.enqueueLinks(ctx, page.Links)

	accepted := model.AcceptedPage{
		Record: model.PageRecord{
			URL:         pageURL,
			Fingerprint: fp,
			Title:       page.Title,
			StatusCode:  result.StatusCode,
			AcceptedAt:  time.Now().UTC(),
		},
		HTML: result.Body,
	}

	select {
	case c.pages <- accepted:
	case <-ctx.Done():
		return
	}

	c.markVisited(logger, pageURL)

	total := c.accepted.Add(1)
	logger.Info("page accepted", "url", pageURL, "title", page.Title, "accepted", total, "target", c.targetPages)
	if int(total) >= c.targetPages {
		logger.Info("page target reached, stopping crawl", "accepted", total)
		c.frontier.Close()
	}
}

// parsePage parses HTML under the parse semaphore so CPU-bound work
// stays bounded regardless of the fetch worker count.
func (c *Crawler) parsePage(ctx context.Context, result *FetchResult) (*ParseResult, error) {
	if err := c.parseSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.parseSem.Release(1)

	parser, err := NewParser(result.URL)
	if err != nil {
		return nil, err
	}
	return parser.Parse(strings.NewReader(string(result.Body)))
}

// fingerprint computes the page fingerprint under the parse semaphore,
// keeping shingling and hashing inside the CPU-bound pool. The only
// error is a canceled context.
func (c *Crawler) fingerprint(ctx context.Context, text string) (uint64, error) {
	if err := c.parseSem.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer c.parseSem.Release(1)
	return simhash.Fingerprint(text, c.shingleSize), nil
}

// canonicalAlias reports whether the page declares a canonical URL
// different from its own, returning the target to queue instead.
func (c *Crawler) canonicalAlias(pageURL, canonicalURL string) (string, bool) {
	if canonicalURL == "" {
		return "", false
	}
	self, err := frontier.Canonicalize(pageURL)
	if err != nil {
		return "", false
	}
	target, err := frontier.Canonicalize(canonicalURL)
	if err != nil || target == self {
		return "", false
	}
	return canonicalURL, true
}

// enqueueLinks adds in-scope links to the frontier.
func (c *Crawler) enqueueLinks(ctx context.Context, links []string) {
	for _, link := range links {
		if ctx.Err() != nil {
			return
		}
		c.enqueueLink(ctx, link)
	}
}

// enqueueLink adds one link to the frontier if it is in scope.
// Frontier errors here mean shutdown, which the worker loop handles.
func (c *Crawler) enqueueLink(ctx context.Context, link string) {
	if !c.scope.InScope(link) {
		return
	}
	if _, err := c.frontier.Add(ctx, link); err != nil && !errors.Is(err, frontier.ErrClosed) && ctx.Err() == nil {
		c.logger.Debug("enqueue failed", "url", link, "error", err)
	}
}

// markVisited records a terminal visited transition, logging the
// invariant violation if the frontier rejects it.
func (c *Crawler) markVisited(logger *slog.Logger, pageURL string) {
	if err := c.frontier.MarkVisited(pageURL); err != nil {
		logger.Error("mark visited failed", "url", pageURL, "error", err)
	}
}

// markFailed records a terminal failed transition with its reason.
func (c *Crawler) markFailed(logger *slog.Logger, pageURL, reason string) {
	if err := c.frontier.MarkFailed(pageURL, reason); err != nil {
		logger.Error("mark failed rejected", "url", pageURL, "error", err)
	}
}
