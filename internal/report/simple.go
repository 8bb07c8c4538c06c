package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tsurugo/webcorpus/internal/model"
)

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *model.CrawlSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeCounts(&sb, summary)
	w.writeFailures(&sb, summary)
	w.writeHosts(&sb, summary)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, summary *model.CrawlSummary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         WEBCORPUS CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", summary.GeneratedAt.Format("2006-01-02 15:04:05 MST")))
}

// writeCounts writes the aggregate crawl counters.
func (w *SimpleWriter) writeCounts(sb *strings.Builder, summary *model.CrawlSummary) {
	sb.WriteString("SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Accepted pages:   %d\n", summary.AcceptedPages))
	sb.WriteString(fmt.Sprintf("Visited URLs:     %d\n", summary.VisitedURLs))
	sb.WriteString(fmt.Sprintf("Failed URLs:      %d\n", summary.FailedURLs))
	sb.WriteString(fmt.Sprintf("Pending URLs:     %d\n", summary.PendingURLs))
	sb.WriteString(fmt.Sprintf("Fingerprints:     %d\n", summary.Fingerprints))
	if summary.PendingURLs > 0 {
		sb.WriteString("\nThe crawl was interrupted; run it again to resume.\n")
	}
	sb.WriteString("\n")
}

// writeFailures writes the per-class failure breakdown.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, summary *model.CrawlSummary) {
	if len(summary.FailuresByClass) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString("FAILURES BY CLASS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	if len(summary.FailuresByClass) == 0 {
		sb.WriteString("No failures recorded.\n\n")
		return
	}

	classes := make([]string, 0, len(summary.FailuresByClass))
	for class := range summary.FailuresByClass {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	for _, class := range classes {
		sb.WriteString(fmt.Sprintf("%-16s %d\n", class, summary.FailuresByClass[class]))
	}
	sb.WriteString("\n")
}

// writeHosts writes the top hosts by accepted pages.
func (w *SimpleWriter) writeHosts(sb *strings.Builder, summary *model.CrawlSummary) {
	if len(summary.TopHosts) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString("TOP HOSTS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	if len(summary.TopHosts) == 0 {
		sb.WriteString("No pages stored.\n\n")
		return
	}

	for _, hc := range summary.TopHosts {
		sb.WriteString(fmt.Sprintf("%-48s %d\n", hc.Host, hc.Pages))
	}
	sb.WriteString("\n")
}
