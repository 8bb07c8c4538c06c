// Package crawler provides the concurrent crawl pipeline.
//
// # Architecture
//
// The Crawler type coordinates a pool of fetch workers over a shared
// frontier. Each worker repeatedly takes a URL, downloads it through
// the shared Fetcher, parses it, and classifies the outcome: accepted
// pages go into the write queue for the storage writer, filtered and
// duplicate pages are marked visited, and broken pages are marked
// failed with a classed reason.
//
// # Components
//
//   - Crawler: worker pool and per-URL processing pipeline
//   - Fetcher: rate-limited HTTP downloads with a User-Agent pool
//   - Parser: HTML parsing for links, title, language metadata and text
//   - Scope: registrable-domain restriction for discovered links
//   - LanguagePredicate: pluggable page language filter
//
// # Politeness
//
// The crawler is designed to be polite:
//   - Respects robots.txt (enforced at frontier insert via the policy)
//   - Shares one outbound rate limit across all workers
//   - Caps redirects and response body sizes
//
// # Shutdown
//
// The crawl ends on any of three conditions: the accepted-page target
// is reached, the frontier drains with no work in flight, or the
// context is canceled. In all cases Run closes the write queue so the
// downstream writer terminates, and URLs interrupted mid-fetch stay in
// flight so the next state snapshot re-queues them.
package crawler
