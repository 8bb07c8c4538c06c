package frontier

import (
	"errors"
	"net/url"
	"strings"
)

// ErrUnsupportedURL is returned by Canonicalize for URLs the crawler
// cannot fetch (non-http schemes, missing host).
var ErrUnsupportedURL = errors.New("unsupported url")

// Canonicalize normalizes a URL into the form used as its identity
// everywhere in the crawler: the frontier's seen set, the crawl
// database, and the storage filename derivation.
//
// Normalization applied:
//   - scheme and host lowercased
//   - fragment stripped (it never changes the fetched content)
//   - default ports removed (:80 for http, :443 for https)
//   - empty path becomes "/"
//   - trailing slash trimmed from non-root paths
//
// Query strings are preserved byte-for-byte. Sorting parameters finds
// a few more duplicates but rewrites semantics on sites where order
// matters, so we leave them alone; the content-level duplicate
// detector catches those pages anyway.
func Canonicalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrUnsupportedURL
	}
	if u.Hostname() == "" {
		return "", ErrUnsupportedURL
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	host := u.Hostname()
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	}

	if u.Path == "" {
		u.Path = "/"
	}
	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
	}

	return u.String(), nil
}
