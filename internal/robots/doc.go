// Package robots evaluates robots.txt exclusion rules per host.
//
// The Evaluator fetches /robots.txt once per host, caches the parsed
// rules for the lifetime of the crawl, and answers allow/deny queries
// for individual URLs. Hosts whose robots.txt cannot be fetched at all
// are treated as allowing everything, matching the common crawler
// convention for missing files.
package robots
