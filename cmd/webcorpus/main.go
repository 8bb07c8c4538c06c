// Package main provides the entry point for the webcorpus CLI.
//
// webcorpus builds an offline corpus of English web pages. It crawls
// from seed URLs, filters out non-English and near-duplicate pages,
// and stores accepted pages on disk for lexicon tooling to consume.
//
// Usage:
//
//	webcorpus crawl --seed https://example.com
//	webcorpus report
//
// See --help for all available options.
package main

// main is the entry point for webcorpus.
func main() {
	Execute()
}
