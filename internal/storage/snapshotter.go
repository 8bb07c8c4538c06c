package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tsurugo/webcorpus/internal/database"
	"github.com/tsurugo/webcorpus/internal/frontier"
	"github.com/tsurugo/webcorpus/internal/simhash"
)

// State file names under the state directory.
const (
	frontierFile     = "frontier.json"
	fingerprintsFile = "fingerprints.json"
)

// fingerprintState is the on-disk form of the duplicate index. Only
// the fingerprints are stored; the banded index is rebuilt on load.
type fingerprintState struct {
	Fingerprints []uint64 `json:"fingerprints"`
}

// Snapshotter periodically captures frontier and duplicate-index state
// so an interrupted crawl can resume. It also rewrites the URL map
// file from the database on every save.
type Snapshotter struct {
	stateDir   string
	urlMapFile string
	frontier   *frontier.Frontier
	detector   *simhash.Detector
	db         *database.CrawlDB
	interval   time.Duration
	logger     *slog.Logger
}

// NewSnapshotter creates a Snapshotter saving to stateDir every
// interval.
func NewSnapshotter(stateDir, urlMapFile string, f *frontier.Frontier, d *simhash.Detector, db *database.CrawlDB, interval time.Duration, logger *slog.Logger) *Snapshotter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshotter{
		stateDir:   stateDir,
		urlMapFile: urlMapFile,
		frontier:   f,
		detector:   d,
		db:         db,
		interval:   interval,
		logger:     logger,
	}
}

// Run saves state every interval until ctx ends, then writes one final
// snapshot so shutdown never loses more than the in-flight URLs, which
// the snapshot itself re-queues.
func (s *Snapshotter) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// The run context is gone; the final save gets its own.
			finalCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.Save(finalCtx); err != nil {
				return fmt.Errorf("final state save failed: %w", err)
			}
			return nil
		case <-ticker.C:
			if err := s.Save(ctx); err != nil {
				// A failed periodic save is not fatal: the next tick
				// retries, and the data folder is unaffected.
				s.logger.Error("periodic state save failed", "error", err)
			} else {
				s.logger.Debug("state saved", "dir", s.stateDir)
			}
		}
	}
}

// Save writes the frontier snapshot, the fingerprint list, and the URL
// map. Each file is written atomically; a crash between files leaves a
// consistent-enough state because the frontier snapshot alone decides
// what is re-crawled.
func (s *Snapshotter) Save(ctx context.Context) error {
	if err := os.MkdirAll(s.stateDir, 0750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	if err := writeJSONAtomic(filepath.Join(s.stateDir, frontierFile), s.frontier.Snapshot()); err != nil {
		return fmt.Errorf("failed to save frontier state: %w", err)
	}

	state := fingerprintState{Fingerprints: s.detector.Snapshot()}
	if err := writeJSONAtomic(filepath.Join(s.stateDir, fingerprintsFile), state); err != nil {
		return fmt.Errorf("failed to save fingerprint state: %w", err)
	}

	if err := s.saveURLMap(ctx); err != nil {
		return fmt.Errorf("failed to save url map: %w", err)
	}

	return nil
}

// saveURLMap rewrites the filename-to-URL map from the database.
func (s *Snapshotter) saveURLMap(ctx context.Context) error {
	urlMap, err := s.db.URLMap(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.urlMapFile), 0750); err != nil {
		return err
	}
	return writeJSONAtomic(s.urlMapFile, urlMap)
}

// Restore loads saved state into the frontier and detector. It returns
// false when no frontier snapshot exists, meaning a fresh crawl. A
// missing fingerprint file falls back to the fingerprints recorded in
// the database, so losing the state directory does not reopen the
// corpus to duplicates.
func (s *Snapshotter) Restore(ctx context.Context, retryFailed bool) (bool, error) {
	var snap frontier.Snapshot
	err := readJSON(filepath.Join(s.stateDir, frontierFile), &snap)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load frontier state: %w", err)
	}
	s.frontier.Restore(&snap, retryFailed)

	var state fingerprintState
	err = readJSON(filepath.Join(s.stateDir, fingerprintsFile), &state)
	switch {
	case errors.Is(err, os.ErrNotExist):
		fps, dbErr := s.db.Fingerprints(ctx)
		if dbErr != nil {
			return false, fmt.Errorf("failed to rebuild fingerprints from database: %w", dbErr)
		}
		s.logger.Info("fingerprint state missing, rebuilt from database", "fingerprints", len(fps))
		s.detector.Restore(fps)
	case err != nil:
		return false, fmt.Errorf("failed to load fingerprint state: %w", err)
	default:
		s.detector.Restore(state.Fingerprints)
	}

	return true, nil
}

// writeJSONAtomic marshals v and renames it into place so readers
// never observe a partial file.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// readJSON unmarshals a JSON file into v.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
