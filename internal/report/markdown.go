package report

import (
	"io"
	"sort"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/tsurugo/webcorpus/internal/model"
)

// MarkdownWriter outputs summaries in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *model.CrawlSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeFailures(md, summary)
	w.writeHosts(md, summary)

	return len(md.String()), md.Build()
}

// writeHeader writes the summary table and crawl status alert.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H1("Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Generated", summary.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Accepted pages", strconv.Itoa(summary.AcceptedPages)},
			{"Visited URLs", strconv.Itoa(summary.VisitedURLs)},
			{"Failed URLs", strconv.Itoa(summary.FailedURLs)},
			{"Pending URLs", strconv.Itoa(summary.PendingURLs)},
			{"Fingerprints", strconv.Itoa(summary.Fingerprints)},
		},
	})
	md.PlainText("")

	if summary.PendingURLs > 0 {
		md.Warningf("The crawl was interrupted with %d URLs still pending. Run the crawl again to resume.", summary.PendingURLs)
	} else {
		md.Tip("The crawl completed with no pending URLs.")
	}
	md.PlainText("")
}

// writeFailures writes the failure breakdown with a pie chart.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H2("Failures by Class")
	md.PlainText("")

	if len(summary.FailuresByClass) == 0 {
		md.PlainText("No failures recorded.")
		md.PlainText("")
		return
	}

	classes := make([]string, 0, len(summary.FailuresByClass))
	for class := range summary.FailuresByClass {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	rows := make([][]string, 0, len(classes))
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Failure Distribution"),
		piechart.WithShowData(true),
	)
	for _, class := range classes {
		count := summary.FailuresByClass[class]
		rows = append(rows, []string{class, strconv.Itoa(count)})
		chart.LabelAndIntValue(class, uint64(count))
	}

	md.Table(markdown.TableSet{
		Header: []string{"Class", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeHosts writes the top hosts table.
func (w *MarkdownWriter) writeHosts(md *markdown.Markdown, summary *model.CrawlSummary) {
	md.H2("Top Hosts")
	md.PlainText("")

	if len(summary.TopHosts) == 0 {
		md.PlainText("No pages stored.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(summary.TopHosts))
	for _, hc := range summary.TopHosts {
		rows = append(rows, []string{"`" + hc.Host + "`", strconv.Itoa(hc.Pages)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Host", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")
}
