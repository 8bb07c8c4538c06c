package report

import (
	"context"
	"fmt"
	"time"

	"github.com/tsurugo/webcorpus/internal/database"
	"github.com/tsurugo/webcorpus/internal/frontier"
	"github.com/tsurugo/webcorpus/internal/model"
)

// maxTopHosts caps the per-host table in generated reports.
const maxTopHosts = 10

// Build aggregates the crawl database and a state snapshot into a
// summary. snap may be nil when no state was saved; the summary then
// covers only what the database knows. fingerprints is the size of the
// duplicate index as loaded from state.
func Build(ctx context.Context, db *database.CrawlDB, snap *frontier.Snapshot, fingerprints int) (*model.CrawlSummary, error) {
	accepted, err := db.CountPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}

	hosts, err := db.HostCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate hosts: %w", err)
	}
	if len(hosts) > maxTopHosts {
		hosts = hosts[:maxTopHosts]
	}

	summary := &model.CrawlSummary{
		AcceptedPages: accepted,
		Fingerprints:  fingerprints,
		TopHosts:      hosts,
		GeneratedAt:   time.Now().UTC(),
	}

	if snap != nil {
		summary.VisitedURLs = len(snap.Visited)
		summary.FailedURLs = len(snap.Failed)
		summary.PendingURLs = len(snap.Pending) + len(snap.InFlight)

		if len(snap.Failed) > 0 {
			summary.FailuresByClass = make(map[string]int)
			for _, reason := range snap.Failed {
				summary.FailuresByClass[model.FailureClass(reason)]++
			}
		}
	}

	return summary, nil
}
