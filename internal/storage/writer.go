package storage

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tsurugo/webcorpus/internal/database"
	"github.com/tsurugo/webcorpus/internal/model"
)

// Filename derives the storage filename for a canonical URL. The name
// is a 64-bit FNV-1a hash in hex, so re-crawling a URL after a resume
// overwrites its file instead of duplicating it.
func Filename(canonicalURL string) string {
	h := fnv.New64a()
	h.Write([]byte(canonicalURL))
	return fmt.Sprintf("%016x.html", h.Sum64())
}

// Writer drains the crawler's write queue, saving each accepted page
// to disk and recording it in the crawl database. It is the only
// goroutine that touches the data folder, so page files need no
// locking.
type Writer struct {
	dataFolder string
	db         *database.CrawlDB
	logger     *slog.Logger

	written int
}

// NewWriter creates a Writer that stores page files under dataFolder
// and records under db.
func NewWriter(dataFolder string, db *database.CrawlDB, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		dataFolder: dataFolder,
		db:         db,
		logger:     logger,
	}
}

// Run consumes pages until the channel closes. A page that fails to
// persist is logged and dropped rather than aborting the crawl; its
// URL is already marked visited, so it is lost from the corpus but
// nothing downstream breaks.
func (w *Writer) Run(ctx context.Context, pages <-chan model.AcceptedPage) error {
	if err := os.MkdirAll(w.dataFolder, 0750); err != nil {
		return fmt.Errorf("failed to create data folder: %w", err)
	}

	for page := range pages {
		if err := w.store(ctx, page); err != nil {
			w.logger.Error("failed to persist page", "url", page.Record.URL, "error", err)
			continue
		}
		w.written++
	}
	return nil
}

// Written returns the number of pages persisted so far. Only valid
// after Run returns or from the writer goroutine.
func (w *Writer) Written() int {
	return w.written
}

// store saves one page file and its database record.
func (w *Writer) store(ctx context.Context, page model.AcceptedPage) error {
	record := page.Record
	record.Filename = Filename(record.URL)

	path := filepath.Join(w.dataFolder, record.Filename)
	if err := os.WriteFile(path, page.HTML, 0640); err != nil {
		return fmt.Errorf("failed to write page file: %w", err)
	}

	if err := w.db.InsertPage(ctx, &record); err != nil {
		// Keep file and record consistent: a page the database does
		// not know about is invisible to the URL map.
		if rmErr := os.Remove(path); rmErr != nil {
			w.logger.Error("failed to remove orphaned page file", "path", path, "error", rmErr)
		}
		return err
	}

	w.logger.Debug("page stored", "url", record.URL, "file", record.Filename)
	return nil
}
