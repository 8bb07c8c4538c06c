package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Package-level sentinels let callers use errors.Is while keeping
// human-readable messages.
var (
	// ErrNoSeeds is returned when a fresh crawl is started with no
	// seed URLs and no resumable state on disk.
	ErrNoSeeds = errors.New("no seed URLs: provide seeds via flags or config file, or resume from existing state")

	// ErrInvalidWorkers is returned when the fetch worker count is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidParseWorkers is returned when the parse worker count is not positive.
	ErrInvalidParseWorkers = errors.New("invalid parse worker count: must be positive")

	// ErrInvalidTargetPages is returned when the page target is not positive.
	ErrInvalidTargetPages = errors.New("invalid target pages: must be positive")

	// ErrInvalidSaveInterval is returned when the snapshot interval is not positive.
	ErrInvalidSaveInterval = errors.New("invalid save interval: must be positive")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the body size limit is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidRateLimit is returned when the request rate is negative.
	// Use 0 to disable rate limiting.
	ErrInvalidRateLimit = errors.New("invalid request rate: must be non-negative")

	// ErrInvalidFrontierSize is returned when the frontier cap is negative.
	// Use 0 for an unbounded frontier.
	ErrInvalidFrontierSize = errors.New("invalid frontier max size: must be non-negative")

	// ErrNoUserAgents is returned when the User-Agent pool is empty.
	ErrNoUserAgents = errors.New("no user agents: the User-Agent pool must not be empty")

	// ErrInvalidBandCount is returned when the band count does not
	// evenly divide the 64-bit fingerprint width.
	ErrInvalidBandCount = errors.New("invalid band count: must be positive and divide 64")

	// ErrInvalidHammingThreshold is returned when the duplicate
	// threshold is negative or too large for the band count to
	// guarantee candidate retrieval.
	ErrInvalidHammingThreshold = errors.New("invalid hamming threshold: must be non-negative and less than the band count")

	// ErrInvalidShingleSize is returned when the shingle size is not positive.
	ErrInvalidShingleSize = errors.New("invalid shingle size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are requested. Only one output format can be used.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
