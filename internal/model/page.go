package model

import (
	"fmt"
	"strings"
	"time"
)

// URLStatus describes where a URL is in its crawl lifecycle.
// A URL is in exactly one status at any time; the frontier enforces
// the legal transitions (queued -> visited, queued -> failed).
type URLStatus string

// URL lifecycle statuses.
const (
	// StatusQueued means the URL is waiting in the pending queue or is
	// currently being fetched by a worker.
	StatusQueued URLStatus = "queued"

	// StatusVisited means the URL was fetched and classified. Visited
	// does not imply accepted: filtered and duplicate pages are also
	// visited, they are just not persisted.
	StatusVisited URLStatus = "visited"

	// StatusFailed means the fetch or parse failed. The failure reason
	// is recorded alongside the URL.
	StatusFailed URLStatus = "failed"
)

// URLRecord is a URL known to the frontier together with its lifecycle
// status. Identity is the canonical URL string.
type URLRecord struct {
	// URL is the canonical form of the URL (lowercased scheme/host,
	// fragment stripped, trailing slash normalized).
	URL string `json:"url"`

	// Status is the URL's current lifecycle status.
	Status URLStatus `json:"status"`

	// DiscoveredAt is when the URL was first added to the frontier.
	DiscoveredAt time.Time `json:"discovered_at"`
}

// PageRecord is the persisted record of an accepted page. The
// URL-to-filename mapping carried by these records is the artifact the
// offline lexicon tooling consumes.
type PageRecord struct {
	// URL is the canonical URL the content was fetched from.
	URL string `json:"url"`

	// Filename is the name of the raw HTML file under the data folder.
	// It is derived deterministically from the canonical URL so a
	// resumed crawl overwrites rather than duplicates.
	Filename string `json:"filename"`

	// Fingerprint is the 64-bit simhash of the page text.
	Fingerprint uint64 `json:"fingerprint"`

	// Title is the page title, if any. Informational only.
	Title string `json:"title,omitempty"`

	// StatusCode is the HTTP status the page was fetched with.
	StatusCode int `json:"status_code"`

	// AcceptedAt is when the page passed all filters and was queued
	// for persistence.
	AcceptedAt time.Time `json:"accepted_at"`
}

// AcceptedPage is a page that passed every filter and is waiting in the
// write queue. It carries the raw HTML alongside the record so the
// writer never has to re-fetch.
type AcceptedPage struct {
	// Record holds everything persisted about the page except the body.
	Record PageRecord

	// HTML is the raw response body as fetched.
	HTML []byte
}

// Failure reason prefixes recorded by the frontier's MarkFailed callers.
// The report command classes failures by these prefixes.
const (
	// ReasonFetch marks transient network failures (timeout, reset, DNS).
	ReasonFetch = "fetch"

	// ReasonStatus marks non-2xx HTTP responses.
	ReasonStatus = "status"

	// ReasonContentType marks responses that are not HTML.
	ReasonContentType = "content-type"

	// ReasonParse marks HTML that could not be parsed at all.
	ReasonParse = "parse"
)

// FailureReason builds a classified failure reason string, e.g.
// "fetch: dial tcp: i/o timeout".
func FailureReason(class, detail string) string {
	return class + ": " + detail
}

// FailureClass extracts the class prefix from a recorded failure reason.
// Reasons without a recognized prefix are classed as "other".
func FailureClass(reason string) string {
	class, _, ok := strings.Cut(reason, ":")
	if !ok {
		return "other"
	}
	switch class {
	case ReasonFetch, ReasonStatus, ReasonContentType, ReasonParse:
		return class
	}
	return "other"
}

// HostCount pairs a host with the number of accepted pages from it.
type HostCount struct {
	// Host is the lowercased host name.
	Host string `json:"host"`

	// Pages is the number of accepted pages fetched from the host.
	Pages int `json:"pages"`
}

// CrawlSummary is an aggregate view of a crawl, produced by the report
// command from the crawl database and the latest state snapshot.
type CrawlSummary struct {
	// AcceptedPages is the number of pages persisted to disk.
	AcceptedPages int `json:"accepted_pages"`

	// VisitedURLs is the number of URLs fetched and classified,
	// including filtered and duplicate pages.
	VisitedURLs int `json:"visited_urls"`

	// FailedURLs is the number of URLs that ended in the failed set.
	FailedURLs int `json:"failed_urls"`

	// PendingURLs is the number of URLs still queued when the snapshot
	// was taken. Non-zero for interrupted crawls.
	PendingURLs int `json:"pending_urls"`

	// Fingerprints is the size of the duplicate index.
	Fingerprints int `json:"fingerprints"`

	// FailuresByClass counts failed URLs per failure class
	// (fetch, status, content-type, parse, other).
	FailuresByClass map[string]int `json:"failures_by_class,omitempty"`

	// TopHosts lists the hosts with the most accepted pages,
	// most pages first.
	TopHosts []HostCount `json:"top_hosts,omitempty"`

	// GeneratedAt is when the summary was computed.
	GeneratedAt time.Time `json:"generated_at"`
}

// String returns a one-line description useful in log output.
func (s *CrawlSummary) String() string {
	return fmt.Sprintf("accepted=%d visited=%d failed=%d pending=%d",
		s.AcceptedPages, s.VisitedURLs, s.FailedURLs, s.PendingURLs)
}
