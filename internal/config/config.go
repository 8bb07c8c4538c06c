package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values. The defaults follow common politeness
// practice for small crawlers.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "webcorpus"

	// DefaultNumWorkers is the number of concurrent fetch workers.
	// Fetching is I/O bound, so this can comfortably exceed the CPU
	// count without contention.
	DefaultNumWorkers = 8

	// DefaultParseWorkers bounds concurrent HTML parsing and
	// fingerprinting. Parsing is CPU bound; allowing more than a few
	// at once only adds scheduler pressure.
	DefaultParseWorkers = 4

	// DefaultTargetPages is the soft stop threshold: once this many
	// pages have been accepted and persisted, the crawl shuts down.
	DefaultTargetPages = 100

	// DefaultSaveInterval is how often frontier and duplicate-index
	// state is snapshotted to disk. One minute loses at most a minute
	// of discovery work on a crash while keeping snapshot churn low.
	DefaultSaveInterval = time.Minute

	// DefaultTimeout is the per-request HTTP timeout. Public web
	// servers that take longer than this are recorded as failed rather
	// than holding a worker hostage.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxBodySize limits the response body size to read.
	// 5MB is generous for HTML while preventing memory exhaustion
	// from mislabeled downloads.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultRequestsPerSecond is the global politeness rate limit
	// shared by all workers.
	DefaultRequestsPerSecond = 10

	// DefaultDrainTimeout bounds how long shutdown waits for in-flight
	// fetches after the target is reached.
	DefaultDrainTimeout = 30 * time.Second

	// DefaultFrontierMaxSize caps the pending queue. Link extraction
	// discovers URLs far faster than fetching retires them; beyond
	// this size Add blocks (backpressure) instead of growing the heap.
	DefaultFrontierMaxSize = 100_000

	// DefaultHammingThreshold is the maximum Hamming distance at which
	// two fingerprints are considered near-duplicates. Three bits out
	// of 64 tolerates boilerplate churn without merging distinct pages.
	DefaultHammingThreshold = 3

	// DefaultBandCount splits the 64-bit fingerprint into four 16-bit
	// bands for index lookup. Any pair within Hamming distance 3 must
	// agree on at least one of four bands, so candidate retrieval
	// never misses a true near-duplicate at the default threshold.
	DefaultBandCount = 4

	// DefaultShingleSize is the word-window size for fingerprint
	// shingles. Three-word shingles capture phrasing rather than
	// vocabulary, which is what distinguishes boilerplate variants.
	DefaultShingleSize = 3
)

// DefaultUserAgents is the default browser User-Agent pool. One entry
// is picked uniformly at random per request; rotating agents avoids
// trivial blocking of a single static header.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/115.0",
}

// Config holds all configuration options for a crawl run. It is built
// by the CLI from flags and the optional config file, validated once,
// and passed through the application by handle rather than held as
// global state.
type Config struct {
	// Seeds are the starting URLs for a fresh crawl. Ignored when
	// resuming from a snapshot that still has pending URLs.
	Seeds []string

	// DataFolder is the directory accepted pages are written into,
	// one file per page. The offline lexicon tooling reads this
	// directory; the file-per-page convention is the only contract.
	DataFolder string

	// StateDir is the directory for frontier and duplicate-index
	// snapshots. Loaded at startup to resume an interrupted crawl.
	StateDir string

	// URLMapFile is the path of the JSON file mapping storage
	// filenames to canonical URLs, rewritten on every snapshot.
	URLMapFile string

	// DBDir is the directory holding the SQLite crawl database of
	// accepted page records.
	DBDir string

	// NumWorkers is the number of concurrent fetch workers.
	NumWorkers int

	// ParseWorkers bounds concurrent CPU-bound parse/fingerprint work.
	ParseWorkers int

	// TargetPages is the soft page-count target. Once this many pages
	// are accepted the crawl shuts down gracefully.
	TargetPages int

	// SaveInterval is the time between periodic state snapshots.
	SaveInterval time.Duration

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// RequestsPerSecond is the global outbound request rate shared by
	// all workers. Zero disables rate limiting.
	RequestsPerSecond float64

	// DrainTimeout bounds how long shutdown waits for in-flight
	// fetches to finish before abandoning them.
	DrainTimeout time.Duration

	// DisableRobots skips robots.txt evaluation entirely.
	DisableRobots bool

	// FrontierMaxSize caps the pending queue; Add blocks when full.
	// Zero means unbounded.
	FrontierMaxSize int

	// UserAgents is the User-Agent pool; one is chosen at random per
	// request. Must not be empty.
	UserAgents []string

	// HammingThreshold is the near-duplicate distance cutoff in bits.
	HammingThreshold int

	// BandCount is the number of bands the duplicate index splits
	// fingerprints into. Must divide 64.
	BandCount int

	// ShingleSize is the word-window size used when fingerprinting.
	ShingleSize int

	// AllowedDomains restricts the crawl to these registrable domains
	// (eTLD+1). Empty means the crawl follows links anywhere.
	AllowedDomains []string

	// RetryFailedOnResume re-queues previously failed URLs once when
	// resuming from a snapshot. Transient failures often succeed on a
	// second attempt hours later.
	RetryFailedOnResume bool

	// ConfigFilePath is an explicit config file path. If empty, the
	// tool searches for .webcorpus in the current directory and then
	// in the user's home directory.
	ConfigFilePath string

	// Verbose enables debug-level log output.
	Verbose bool
}

// NewConfig creates a Config with default values. Many defaults are
// non-zero, so relying on the zero value would silently misconfigure
// the crawler; this constructor also documents what the defaults are.
func NewConfig() *Config {
	dataDir := XDGDataDir()
	return &Config{
		DataFolder:          filepath.Join(dataDir, "raw"),
		StateDir:            filepath.Join(dataDir, "state"),
		URLMapFile:          filepath.Join(dataDir, "state", "url_map.json"),
		DBDir:               dataDir,
		NumWorkers:          DefaultNumWorkers,
		ParseWorkers:        DefaultParseWorkers,
		TargetPages:         DefaultTargetPages,
		SaveInterval:        DefaultSaveInterval,
		Timeout:             DefaultTimeout,
		MaxBodySize:         DefaultMaxBodySize,
		RequestsPerSecond:   DefaultRequestsPerSecond,
		DrainTimeout:        DefaultDrainTimeout,
		FrontierMaxSize:     DefaultFrontierMaxSize,
		UserAgents:          append([]string(nil), DefaultUserAgents...),
		HammingThreshold:    DefaultHammingThreshold,
		BandCount:           DefaultBandCount,
		ShingleSize:         DefaultShingleSize,
		RetryFailedOnResume: true,
	}
}

// XDGDataDir returns the XDG data directory for webcorpus.
// On Linux: ~/.local/share/webcorpus.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for webcorpus.
// On Linux: ~/.config/webcorpus.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns a sentinel error
// describing the first problem found. It is called once after flag and
// file merging, before any crawling begins, so misconfiguration fails
// fast with a clear message.
func (c *Config) Validate() error {
	if c.NumWorkers <= 0 {
		return ErrInvalidWorkers
	}
	if c.ParseWorkers <= 0 {
		return ErrInvalidParseWorkers
	}
	if c.TargetPages <= 0 {
		return ErrInvalidTargetPages
	}
	if c.SaveInterval <= 0 {
		return ErrInvalidSaveInterval
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRateLimit
	}
	if c.FrontierMaxSize < 0 {
		return ErrInvalidFrontierSize
	}
	if len(c.UserAgents) == 0 {
		return ErrNoUserAgents
	}
	if c.BandCount <= 0 || 64%c.BandCount != 0 {
		return ErrInvalidBandCount
	}
	// The banded index only guarantees a shared band for fingerprints
	// within the threshold when threshold < band count.
	if c.HammingThreshold < 0 || c.HammingThreshold >= c.BandCount {
		return ErrInvalidHammingThreshold
	}
	if c.ShingleSize <= 0 {
		return ErrInvalidShingleSize
	}
	return nil
}
