package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".webcorpus"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the YAML shape of the .webcorpus configuration file. Every
// field is optional; zero values leave the corresponding Config field
// untouched so flags and defaults win for anything unset.
type File struct {
	// Seeds are the starting URLs for a fresh crawl.
	Seeds []string `yaml:"seeds"`

	// UserAgents replaces the default User-Agent pool when non-empty.
	UserAgents []string `yaml:"user_agents"`

	// AllowedDomains restricts crawling to these registrable domains.
	AllowedDomains []string `yaml:"allowed_domains"`

	// DataFolder is the output directory for accepted pages.
	DataFolder string `yaml:"data_folder"`

	// StateDir is the snapshot directory.
	StateDir string `yaml:"state_dir"`

	// URLMapFile is the filename-to-URL map path.
	URLMapFile string `yaml:"url_map_file"`

	// NumWorkers is the fetch worker count.
	NumWorkers int `yaml:"num_workers"`

	// ParseWorkers is the CPU-bound worker count.
	ParseWorkers int `yaml:"parse_workers"`

	// TargetPages is the soft stop threshold.
	TargetPages int `yaml:"target_pages"`

	// SaveInterval is the snapshot interval, e.g. "60s".
	SaveInterval Duration `yaml:"save_interval"`

	// Timeout is the per-request timeout, e.g. "15s".
	Timeout Duration `yaml:"timeout"`

	// RequestsPerSecond is the politeness rate limit.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// DisableRobots skips robots.txt checks when true.
	DisableRobots bool `yaml:"disable_robots"`

	// FrontierMaxSize caps the pending queue.
	FrontierMaxSize int `yaml:"frontier_max_size"`

	// HammingThreshold is the near-duplicate bit distance cutoff.
	HammingThreshold int `yaml:"hamming_threshold"`

	// BandCount is the duplicate index band count.
	BandCount int `yaml:"band_count"`
}

// LoadConfigFile loads a .webcorpus YAML file. If the file does not
// exist it returns ErrConfigNotFound; callers decide whether that is
// fatal based on whether the path was explicitly given by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// Apply overlays the file's set values onto cfg. Boolean fields only
// override when true (there is no way to distinguish "false" from
// "unset" in YAML without pointers, and disabling robots from a file
// when the flag asked for them would be surprising anyway).
func (f *File) Apply(cfg *Config) {
	if len(f.Seeds) > 0 {
		cfg.Seeds = append([]string(nil), f.Seeds...)
	}
	if len(f.UserAgents) > 0 {
		cfg.UserAgents = append([]string(nil), f.UserAgents...)
	}
	if len(f.AllowedDomains) > 0 {
		cfg.AllowedDomains = append([]string(nil), f.AllowedDomains...)
	}
	if f.DataFolder != "" {
		cfg.DataFolder = f.DataFolder
	}
	if f.StateDir != "" {
		cfg.StateDir = f.StateDir
	}
	if f.URLMapFile != "" {
		cfg.URLMapFile = f.URLMapFile
	}
	if f.NumWorkers > 0 {
		cfg.NumWorkers = f.NumWorkers
	}
	if f.ParseWorkers > 0 {
		cfg.ParseWorkers = f.ParseWorkers
	}
	if f.TargetPages > 0 {
		cfg.TargetPages = f.TargetPages
	}
	if !f.SaveInterval.IsZero() {
		cfg.SaveInterval = f.SaveInterval.Duration
	}
	if !f.Timeout.IsZero() {
		cfg.Timeout = f.Timeout.Duration
	}
	if f.RequestsPerSecond > 0 {
		cfg.RequestsPerSecond = f.RequestsPerSecond
	}
	if f.DisableRobots {
		cfg.DisableRobots = true
	}
	if f.FrontierMaxSize > 0 {
		cfg.FrontierMaxSize = f.FrontierMaxSize
	}
	if f.HammingThreshold > 0 {
		cfg.HammingThreshold = f.HammingThreshold
	}
	if f.BandCount > 0 {
		cfg.BandCount = f.BandCount
	}
}

// FindConfigFile searches for the configuration file in order:
// the explicit path if given, then .webcorpus in the current
// directory, then .webcorpus in the user's home directory.
// Returns the path found or empty string.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
