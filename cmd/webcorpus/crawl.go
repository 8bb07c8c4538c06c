package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tsurugo/webcorpus/internal/config"
	"github.com/tsurugo/webcorpus/internal/crawler"
	"github.com/tsurugo/webcorpus/internal/database"
	"github.com/tsurugo/webcorpus/internal/frontier"
	"github.com/tsurugo/webcorpus/internal/log"
	"github.com/tsurugo/webcorpus/internal/report"
	"github.com/tsurugo/webcorpus/internal/robots"
	"github.com/tsurugo/webcorpus/internal/simhash"
	"github.com/tsurugo/webcorpus/internal/storage"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Crawl the web and build a corpus of English pages",
		Long: `Crawl starts from the given seed URLs and follows links, saving every
accepted page into the data folder. A page is accepted when it is HTML,
in English, and not a near-duplicate of a page already saved.

The crawl obeys robots.txt and a global request rate limit. State is
snapshotted periodically, so an interrupted crawl resumes where it
stopped. On resume, seed URLs that were already visited are skipped.

Examples:
  # Crawl from a single seed until 100 pages are accepted
  webcorpus crawl https://example.com

  # Crawl from several seeds with a higher target
  webcorpus crawl -p 10000 https://example.com https://example.org

  # Stay within one site
  webcorpus crawl --allowed-domains example.com https://example.com

  # Resume an interrupted crawl (state is loaded automatically)
  webcorpus crawl

  # Use a custom configuration file
  webcorpus crawl -c myconfig.yaml`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("workers", "w", config.DefaultNumWorkers,
		"Number of concurrent fetch workers")
	cmd.Flags().Int("parse-workers", config.DefaultParseWorkers,
		"Number of concurrent parse/fingerprint workers")
	cmd.Flags().IntP("target-pages", "p", config.DefaultTargetPages,
		"Stop after this many pages have been accepted")
	cmd.Flags().StringSlice("allowed-domains", nil,
		"Restrict crawling to these registrable domains (comma-separated)")

	// Politeness flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"HTTP timeout for each request")
	cmd.Flags().Float64P("rate", "r", config.DefaultRequestsPerSecond,
		"Maximum outbound requests per second across all workers (0 disables)")
	cmd.Flags().Bool("disable-robots", false,
		"Skip robots.txt checks (use only on sites you control)")

	// Resource flags
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")
	cmd.Flags().Int("frontier-max", config.DefaultFrontierMaxSize,
		"Maximum pending queue size (0 means unbounded)")

	// State flags
	cmd.Flags().Duration("save-interval", config.DefaultSaveInterval,
		"Interval between state snapshots")
	cmd.Flags().Bool("retry-failed", true,
		"Re-queue previously failed URLs when resuming")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .webcorpus in current or home directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	return runCrawl(cfg, logger)
}

// buildCrawlConfig creates a Config from the config file and command
// flags. File values overlay the defaults, and flags the user actually
// set overlay the file, so an unset flag never clobbers a file value.
func buildCrawlConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	} else if explicitConfigPath {
		// User explicitly specified a config file that doesn't exist
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if cmd.Flags().Changed("workers") {
		if cfg.NumWorkers, err = cmd.Flags().GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("parse-workers") {
		if cfg.ParseWorkers, err = cmd.Flags().GetInt("parse-workers"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("target-pages") {
		if cfg.TargetPages, err = cmd.Flags().GetInt("target-pages"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("allowed-domains") {
		if cfg.AllowedDomains, err = cmd.Flags().GetStringSlice("allowed-domains"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("timeout") {
		if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("rate") {
		if cfg.RequestsPerSecond, err = cmd.Flags().GetFloat64("rate"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("disable-robots") {
		if cfg.DisableRobots, err = cmd.Flags().GetBool("disable-robots"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("max-body-size") {
		if cfg.MaxBodySize, err = cmd.Flags().GetInt64("max-body-size"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("frontier-max") {
		if cfg.FrontierMaxSize, err = cmd.Flags().GetInt("frontier-max"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("save-interval") {
		if cfg.SaveInterval, err = cmd.Flags().GetDuration("save-interval"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("retry-failed") {
		if cfg.RetryFailedOnResume, err = cmd.Flags().GetBool("retry-failed"); err != nil {
			return nil, err
		}
	}

	// Positional arguments are seed URLs and win over the config file
	if len(args) > 0 {
		cfg.Seeds = args
	}

	return cfg, nil
}

// seedFrontier queues the seed URLs. Each seed is validated up front:
// the frontier quietly drops unqueueable discovered links, which is the
// wrong behavior for a seed the user typed. Seeds already visited on a
// resumed crawl are deduplicated; only genuinely new seeds enter the
// queue.
func seedFrontier(ctx context.Context, front *frontier.Frontier, seeds []string) error {
	for _, seed := range seeds {
		if _, err := frontier.Canonicalize(seed); err != nil {
			return fmt.Errorf("invalid seed URL %q: %w", seed, err)
		}
		if _, err := front.Add(ctx, seed); err != nil {
			return fmt.Errorf("failed to enqueue seed %q: %w", seed, err)
		}
	}
	return nil
}

// runCrawl wires the crawl components together and runs them to
// completion.
func runCrawl(cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	client := &http.Client{Timeout: cfg.Timeout}

	var policy frontier.Policy
	if cfg.DisableRobots {
		logger.Warn("robots.txt checks are disabled")
		policy = robots.AllowAll{}
	} else {
		policy = robots.NewEvaluator(client, cfg.UserAgents[0], logger)
	}

	front := frontier.New(cfg.FrontierMaxSize, policy)
	detector := simhash.NewDetector(cfg.HammingThreshold, cfg.BandCount)
	snapshotter := storage.NewSnapshotter(cfg.StateDir, cfg.URLMapFile, front, detector, db,
		cfg.SaveInterval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	restored, err := snapshotter.Restore(ctx, cfg.RetryFailedOnResume)
	if err != nil {
		return fmt.Errorf("failed to restore crawl state: %w", err)
	}
	if !restored && len(cfg.Seeds) == 0 {
		return config.ErrNoSeeds
	}
	if restored {
		logger.Info("resumed crawl state",
			"pending", front.Len(),
			"fingerprints", detector.Len(),
		)
	}

	if err := seedFrontier(ctx, front, cfg.Seeds); err != nil {
		return err
	}

	fetcher := crawler.NewFetcher(
		crawler.WithHTTPClient(client),
		crawler.WithUserAgents(cfg.UserAgents),
		crawler.WithRequestsPerSecond(cfg.RequestsPerSecond),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithTimeout(cfg.Timeout),
	)

	crawlOpts := []crawler.Option{
		crawler.WithWorkers(cfg.NumWorkers),
		crawler.WithParseWorkers(cfg.ParseWorkers),
		crawler.WithTargetPages(cfg.TargetPages),
		crawler.WithShingleSize(cfg.ShingleSize),
		crawler.WithLogger(logger),
	}
	if len(cfg.AllowedDomains) > 0 {
		crawlOpts = append(crawlOpts, crawler.WithScope(crawler.NewScope(cfg.AllowedDomains)))
	}
	c := crawler.New(front, detector, fetcher, crawlOpts...)

	writer := storage.NewWriter(cfg.DataFolder, db, logger)

	// First signal closes the frontier so in-flight work can finish;
	// a hard cancel follows after DrainTimeout. A second signal
	// cancels immediately.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, draining in-flight requests...",
			"drainTimeout", cfg.DrainTimeout)
		front.Close()
		timer := time.AfterFunc(cfg.DrainTimeout, cancel)
		<-sigCh
		timer.Stop()
		logger.Info("received second signal, cancelling immediately")
		cancel()
	}()

	// The snapshotter outlives the crawl context: its own context is
	// cancelled only after the crawler and writer have stopped, which
	// triggers the final save.
	snapCtx, snapCancel := context.WithCancel(context.Background())
	snapDone := make(chan error, 1)
	go func() {
		snapDone <- snapshotter.Run(snapCtx)
	}()

	logger.Info("starting crawl",
		"seeds", len(cfg.Seeds),
		"workers", cfg.NumWorkers,
		"targetPages", cfg.TargetPages,
		"requestsPerSecond", cfg.RequestsPerSecond,
	)
	startTime := time.Now()

	var g errgroup.Group
	g.Go(func() error {
		return c.Run(ctx)
	})
	g.Go(func() error {
		// The writer drains the pages channel even after the crawl
		// context is cancelled, so every accepted page reaches disk.
		return writer.Run(context.Background(), c.Pages())
	})
	runErr := g.Wait()

	snapCancel()
	if err := <-snapDone; err != nil {
		logger.Error("final state save failed", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("crawl failed: %w", runErr)
	}

	elapsed := time.Since(startTime)
	fmt.Printf("Crawl finished in %s: %d pages accepted\n\n",
		elapsed.Round(time.Millisecond), writer.Written())

	summary, err := report.Build(context.Background(), db, front.Snapshot(), detector.Len())
	if err != nil {
		return fmt.Errorf("failed to build crawl summary: %w", err)
	}
	if _, err := report.NewSimpleWriter(os.Stdout).Write(summary); err != nil {
		return fmt.Errorf("failed to write crawl summary: %w", err)
	}
	return nil
}
