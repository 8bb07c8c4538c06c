package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tsurugo/webcorpus/internal/config"
	"github.com/tsurugo/webcorpus/internal/database"
	"github.com/tsurugo/webcorpus/internal/frontier"
	"github.com/tsurugo/webcorpus/internal/log"
	"github.com/tsurugo/webcorpus/internal/report"
	"github.com/tsurugo/webcorpus/internal/robots"
	"github.com/tsurugo/webcorpus/internal/simhash"
	"github.com/tsurugo/webcorpus/internal/storage"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the state of the corpus",
		Long: `Report reads the crawl database and saved state and prints a summary:
how many pages were accepted, how many URLs are still pending, which
hosts contributed the most pages, and why URLs failed.

Examples:
  # Print a plain-text summary
  webcorpus report

  # Output JSON for scripting
  webcorpus report --json

  # Write a Markdown report to a file
  webcorpus report --markdown -o corpus.md`,
		RunE: runReportCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, _ []string) error {
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOut, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOut && markdownOut {
		return config.ErrConflictingReportFormats
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	cfg := config.NewConfig()

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(cfg.DBDir, opts)
	if err != nil {
		return fmt.Errorf("no crawl database found in %s (run 'webcorpus crawl' first): %w",
			cfg.DBDir, err)
	}
	defer db.Close()

	ctx := context.Background()

	// Load the latest snapshot into throwaway state holders so the
	// summary reflects the pending queue and duplicate index, not just
	// the database.
	front := frontier.New(0, robots.AllowAll{})
	detector := simhash.NewDetector(cfg.HammingThreshold, cfg.BandCount)
	snapshotter := storage.NewSnapshotter(cfg.StateDir, cfg.URLMapFile, front, detector, db,
		cfg.SaveInterval, log.NewLogger(os.Stderr, getVerboseFlag(cmd)))
	if _, err := snapshotter.Restore(ctx, false); err != nil {
		return fmt.Errorf("failed to read crawl state: %w", err)
	}

	summary, err := report.Build(ctx, db, front.Snapshot(), detector.Len())
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}

	writers := []report.Writer{}
	appendWriter := func(out *os.File) {
		switch {
		case jsonOut:
			writers = append(writers, report.NewJSONWriter(out, report.WithPrettyPrint()))
		case markdownOut:
			writers = append(writers, report.NewMarkdownWriter(out))
		default:
			writers = append(writers, report.NewSimpleWriter(out))
		}
	}

	if outputPath != "" {
		dir := filepath.Dir(outputPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		appendWriter(f)
	} else {
		appendWriter(os.Stdout)
	}

	if _, err := report.NewMultiWriter(writers...).Write(summary); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
