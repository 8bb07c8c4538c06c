package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tsurugo/webcorpus/internal/frontier"
	"github.com/tsurugo/webcorpus/internal/model"
	"github.com/tsurugo/webcorpus/internal/simhash"
)

// testPage renders a small English page with the given title, body
// text and links.
func testPage(title, text string, links ...string) string {
	var sb strings.Builder
	sb.WriteString(`<!DOCTYPE html><html lang="en"><head><title>`)
	sb.WriteString(title)
	sb.WriteString("</title></head><body><p>")
	sb.WriteString(text)
	sb.WriteString("</p>")
	for _, link := range links {
		fmt.Fprintf(&sb, `<a href=%q>%s</a>`, link, link)
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

// newTestCrawler wires a crawler against a test server with a single
// worker so processing order is deterministic.
func newTestCrawler(t *testing.T, srv *httptest.Server, opts ...Option) (*Crawler, *frontier.Frontier) {
	t.Helper()

	f := frontier.New(0, nil)
	d := simhash.NewDetector(3, 4)
	fetcher := NewFetcher(WithHTTPClient(srv.Client()), WithRequestsPerSecond(0))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	base := []Option{
		WithWorkers(1),
		WithParseWorkers(1),
		WithTargetPages(100),
		WithLogger(logger),
	}
	c := New(f, d, fetcher, append(base, opts...)...)
	return c, f
}

// drainPages collects everything the crawler accepts.
func drainPages(c *Crawler) <-chan []model.AcceptedPage {
	out := make(chan []model.AcceptedPage, 1)
	go func() {
		var pages []model.AcceptedPage
		for page := range c.Pages() {
			pages = append(pages, page)
		}
		out <- pages
	}()
	return out
}

// TestCrawlerRun tests a full crawl over a small site: acceptance,
// duplicate rejection, language filtering and failure classing.
func TestCrawlerRun(t *testing.T) {
	t.Parallel()

	duplicate := testPage("Dup", `This body appears twice on the site under
two different addresses so only the first copy should survive the
duplicate filter and reach the corpus on disk.`)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(testPage("Home", `Welcome to the index page of this
little site which exists purely so the crawler has somewhere to start
walking from during the test run.`,
			"/a", "/b", "/dup1", "/dup2", "/french", "/report.pdf", "/missing")))
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testPage("Page A", `The first article discusses the
migration of geese across the northern plains and the way local farmers
track their arrival every autumn without fail.`)))
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testPage("Page B", `The second article covers the
restoration of a nineteenth century lighthouse and the volunteers who
spent four summers repairing its lantern room.`)))
	})
	mux.HandleFunc("/dup1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(duplicate))
	})
	mux.HandleFunc("/dup2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(duplicate))
	})
	mux.HandleFunc("/french", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html lang="fr"><body><p>Cette page est en francais
et ne doit pas entrer dans le corpus anglais.</p></body></html>`))
	})
	mux.HandleFunc("/report.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, f := newTestCrawler(t, srv)
	if _, err := f.Add(context.Background(), srv.URL+"/"); err != nil {
		t.Fatalf("Add seed: %v", err)
	}

	pagesCh := drainPages(c)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	pages := <-pagesCh

	// Home, A, B, and exactly one of the duplicate pair.
	if len(pages) != 4 {
		var urls []string
		for _, p := range pages {
			urls = append(urls, p.Record.URL)
		}
		t.Fatalf("accepted %d pages (%v), want 4", len(pages), urls)
	}
	if c.Accepted() != 4 {
		t.Errorf("Accepted = %d, want 4", c.Accepted())
	}

	accepted := make(map[string]model.PageRecord)
	for _, p := range pages {
		accepted[p.Record.URL] = p.Record
		if len(p.HTML) == 0 {
			t.Errorf("accepted page %q has empty HTML", p.Record.URL)
		}
		if p.Record.Fingerprint == 0 {
			t.Errorf("accepted page %q has zero fingerprint", p.Record.URL)
		}
	}
	if _, ok := accepted[srv.URL+"/dup1"]; !ok {
		t.Error("first duplicate copy not accepted")
	}
	if _, ok := accepted[srv.URL+"/dup2"]; ok {
		t.Error("second duplicate copy accepted")
	}
	if got := accepted[srv.URL+"/a"].Title; got != "Page A" {
		t.Errorf("title of /a = %q, want %q", got, "Page A")
	}

	snap := f.Snapshot()
	if got := snap.Failed[srv.URL+"/missing"]; got != "status: 404" {
		t.Errorf("failure reason for /missing = %q, want %q", got, "status: 404")
	}
	if got := model.FailureClass(snap.Failed[srv.URL+"/report.pdf"]); got != model.ReasonContentType {
		t.Errorf("failure class for /report.pdf = %q, want %q", got, model.ReasonContentType)
	}

	// The French page is visited (so never re-fetched) but not saved.
	for _, visited := range snap.Visited {
		if visited == srv.URL+"/french" {
			return
		}
	}
	t.Error("filtered page not recorded as visited")
}

// TestCrawlerRejectedPageLinks tests that filtered and duplicate pages
// never contribute links to the frontier.
func TestCrawlerRejectedPageLinks(t *testing.T) {
	t.Parallel()

	// The two duplicate pages share their visible text exactly; the
	// second one hides its link in an empty anchor so the fingerprints
	// stay identical.
	const dupBody = `<p>The same paragraph about harbor seals hauling out
on the breakwater appears at two addresses and only the first counts.</p>`

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testPage("Home", `An index page in English whose
only purpose is to link every other fixture page into the crawl.`,
			"/french", "/dup1", "/dup2")))
	})
	mux.HandleFunc("/french", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html lang="fr"><body><p>Une page en francais qui
pointe vers une autre adresse.</p>
<a href="/linked-from-french"></a></body></html>`))
	})
	mux.HandleFunc("/dup1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html lang="en"><head><title>Dup</title></head><body>` +
			dupBody + `</body></html>`))
	})
	mux.HandleFunc("/dup2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html lang="en"><head><title>Dup</title></head><body>` +
			dupBody + `<a href="/linked-from-duplicate"></a></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, f := newTestCrawler(t, srv)
	if _, err := f.Add(context.Background(), srv.URL+"/"); err != nil {
		t.Fatalf("Add seed: %v", err)
	}

	pagesCh := drainPages(c)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	<-pagesCh

	if f.Seen(srv.URL + "/linked-from-french") {
		t.Error("link from a language-filtered page entered the frontier")
	}
	if f.Seen(srv.URL + "/linked-from-duplicate") {
		t.Error("link from a near-duplicate page entered the frontier")
	}
}

// TestCrawlerFetchTimeout tests that timed-out fetches end up failed
// with a fetch-classed reason while the rest of the crawl continues.
func TestCrawlerFetchTimeout(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testPage("Home", `The index links three stalled
addresses and one healthy article so the crawl has to walk past every
timeout to finish.`,
			"/slow1", "/slow2", "/slow3", "/ok")))
	})
	for _, path := range []string{"/slow1", "/slow2", "/slow3"} {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			// Hold the response until the client gives up.
			<-r.Context().Done()
		})
	}
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testPage("OK", `The one healthy article answers
promptly and must still reach the corpus despite its stalled
neighbors.`)))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := srv.Client()
	client.Timeout = 200 * time.Millisecond
	c, f := newTestCrawler(t, srv)
	c.fetcher = NewFetcher(WithHTTPClient(client), WithRequestsPerSecond(0))
	if _, err := f.Add(context.Background(), srv.URL+"/"); err != nil {
		t.Fatalf("Add seed: %v", err)
	}

	pagesCh := drainPages(c)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	pages := <-pagesCh

	if len(pages) != 2 {
		t.Errorf("accepted %d pages, want home and /ok", len(pages))
	}

	snap := f.Snapshot()
	for _, path := range []string{"/slow1", "/slow2", "/slow3"} {
		reason, ok := snap.Failed[srv.URL+path]
		if !ok {
			t.Errorf("%s not recorded as failed", path)
			continue
		}
		if got := model.FailureClass(reason); got != model.ReasonFetch {
			t.Errorf("failure class for %s = %q (reason %q), want %q",
				path, got, reason, model.ReasonFetch)
		}
	}
}

// TestCrawlerTargetPages tests that the crawl stops once the target is
// reached even with work remaining.
func TestCrawlerTargetPages(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Repeating a per-page token keeps every page far apart in
		// fingerprint space, so the chain never trips the duplicate
		// filter.
		unique := fmt.Sprintf("chapter%d ", len(r.URL.Path))
		w.Write([]byte(testPage("Page", strings.Repeat(unique, 40),
			fmt.Sprintf("%sx", r.URL.Path))))
	}))
	defer srv.Close()

	c, f := newTestCrawler(t, srv, WithTargetPages(3))
	if _, err := f.Add(context.Background(), srv.URL+"/"); err != nil {
		t.Fatalf("Add seed: %v", err)
	}

	pagesCh := drainPages(c)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	pages := <-pagesCh

	if len(pages) != 3 {
		t.Errorf("accepted %d pages, want 3", len(pages))
	}
}

// TestCrawlerCanonicalAlias tests that alias pages queue their
// canonical target instead of being saved.
func TestCrawlerCanonicalAlias(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/alias", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html lang="en"><head>
<link rel="canonical" href="/real"><title>Alias</title></head>
<body><p>This address is an alias for the real article.</p></body></html>`))
	})
	mux.HandleFunc("/real", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testPage("Real", `The real article lives here and
describes the long history of canal boats on the local waterways in
more detail than anyone ever asked for.`)))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, f := newTestCrawler(t, srv)
	if _, err := f.Add(context.Background(), srv.URL+"/alias"); err != nil {
		t.Fatalf("Add seed: %v", err)
	}

	pagesCh := drainPages(c)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	pages := <-pagesCh

	if len(pages) != 1 {
		t.Fatalf("accepted %d pages, want 1", len(pages))
	}
	if pages[0].Record.URL != srv.URL+"/real" {
		t.Errorf("accepted %q, want the canonical target", pages[0].Record.URL)
	}
}

// TestCrawlerScope tests that out-of-scope links are never queued.
func TestCrawlerScope(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testPage("Scoped", `A page whose links point at a
domain outside the configured crawl scope and must therefore never be
fetched by any worker at all.`, "https://outside.test/page")))
	}))
	defer srv.Close()

	c, f := newTestCrawler(t, srv, WithScope(NewScope([]string{"127.0.0.1"})))
	if _, err := f.Add(context.Background(), srv.URL+"/"); err != nil {
		t.Fatalf("Add seed: %v", err)
	}

	pagesCh := drainPages(c)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	<-pagesCh

	if f.Seen("https://outside.test/page") {
		t.Error("out-of-scope link entered the frontier")
	}
}

// TestCrawlerContextCancel tests that cancellation stops the crawl and
// leaves interrupted URLs recoverable.
func TestCrawlerContextCancel(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(testPage("Slow", "never reached in this test")))
	}))
	defer srv.Close()
	defer close(release)

	c, f := newTestCrawler(t, srv)
	if _, err := f.Add(context.Background(), srv.URL+"/slow"); err != nil {
		t.Fatalf("Add seed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pagesCh := drainPages(c)
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	pages := <-pagesCh

	if len(pages) != 0 {
		t.Errorf("accepted %d pages, want 0", len(pages))
	}

	// The interrupted URL must be recoverable from a snapshot.
	snap := f.Snapshot()
	if len(snap.InFlight) != 1 {
		t.Fatalf("in-flight = %v, want the interrupted URL", snap.InFlight)
	}
}
