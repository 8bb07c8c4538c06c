// Package report generates crawl summaries in multiple output formats.
//
// Supported formats:
//   - Simple: human-readable text for terminal display
//   - JSON: machine-readable output for tool integration
//   - Markdown: documentation-friendly output with tables and charts
//
// The Build function aggregates the crawl database and the latest
// state snapshot into a model.CrawlSummary, which every Writer
// implementation renders.
package report
