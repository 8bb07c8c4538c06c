package crawler

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Scope restricts a crawl to a set of registrable domains. A URL is in
// scope when its host's eTLD+1 matches one of the configured domains,
// so www.example.com and blog.example.com both fall under example.com.
// An empty Scope allows everything.
type Scope struct {
	domains map[string]bool
}

// NewScope creates a Scope from a list of domains. Each entry is
// reduced to its registrable form; entries that have no public suffix
// (bare hostnames, IPs) are kept verbatim.
func NewScope(domains []string) *Scope {
	s := &Scope{domains: make(map[string]bool, len(domains))}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		s.domains[registrableDomain(d)] = true
	}
	return s
}

// InScope reports whether the URL's host falls under one of the scope
// domains. A nil or empty scope allows every URL.
func (s *Scope) InScope(rawURL string) bool {
	if s == nil || len(s.domains) == 0 {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	return s.domains[registrableDomain(strings.ToLower(u.Hostname()))]
}

// registrableDomain reduces a host to its eTLD+1, falling back to the
// host itself when it has no recognizable public suffix.
func registrableDomain(host string) string {
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
