package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/tsurugo/webcorpus/internal/model"
)

// dbFileName is the SQLite database file created inside the data
// directory.
const dbFileName = "webcorpus.db"

// CrawlDB provides SQLite-based storage for accepted pages.
// It manages connection pooling and provides methods for CRUD operations.
//
// Design decision: We use a single database file per corpus rather
// than one per host. This simplifies cross-host queries (URL map,
// per-host statistics) and backup/restore operations.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB at the specified path.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, dbFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite uses mode=rw to prevent creating new files
	// and mode=rwc to allow creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; a single pooled connection
	// avoids SQLITE_BUSY errors from the storage writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the path of the database file.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Pages stores one row per accepted (saved) page
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		host TEXT NOT NULL,
		filename TEXT NOT NULL,
		fingerprint INTEGER NOT NULL,
		title TEXT,
		status_code INTEGER,
		accepted_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_pages_host ON pages(host);
	CREATE INDEX IF NOT EXISTS idx_pages_filename ON pages(filename);
	CREATE INDEX IF NOT EXISTS idx_pages_accepted_at ON pages(accepted_at);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// InsertPage inserts or updates a page record.
// Uses UPSERT so a page re-crawled after a resume replaces its old row.
func (cdb *CrawlDB) InsertPage(ctx context.Context, record *model.PageRecord) error {
	u, err := url.Parse(record.URL)
	if err != nil {
		return fmt.Errorf("failed to parse page URL: %w", err)
	}

	query := `
	INSERT INTO pages (url, host, filename, fingerprint, title, status_code)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		host = excluded.host,
		filename = excluded.filename,
		fingerprint = excluded.fingerprint,
		title = excluded.title,
		status_code = excluded.status_code,
		accepted_at = CURRENT_TIMESTAMP
	`

	// SQLite integers are signed; the fingerprint round-trips through
	// int64 unchanged.
	_, err = cdb.db.ExecContext(ctx, query,
		record.URL,
		u.Host,
		record.Filename,
		int64(record.Fingerprint),
		record.Title,
		record.StatusCode,
	)
	if err != nil {
		return fmt.Errorf("failed to insert page record: %w", err)
	}

	return nil
}

// GetPage retrieves a page record by URL. It returns nil without error
// when no row exists.
func (cdb *CrawlDB) GetPage(ctx context.Context, pageURL string) (*model.PageRecord, error) {
	query := `
	SELECT url, filename, fingerprint, title, status_code, accepted_at
	FROM pages
	WHERE url = ?
	`

	var record model.PageRecord
	var fingerprint int64
	var timestamp string

	err := cdb.db.QueryRowContext(ctx, query, pageURL).Scan(
		&record.URL,
		&record.Filename,
		&fingerprint,
		&record.Title,
		&record.StatusCode,
		&timestamp,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page record: %w", err)
	}

	record.Fingerprint = uint64(fingerprint)
	record.AcceptedAt = parseTimestamp(timestamp)

	return &record, nil
}

// CountPages returns the number of stored pages.
func (cdb *CrawlDB) CountPages(ctx context.Context) (int, error) {
	var count int
	err := cdb.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pages").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return count, nil
}

// URLMap returns the filename-to-URL mapping of every stored page.
// The corpus directory holds files named by URL hash; this map is the
// way back from a file to the page it came from.
func (cdb *CrawlDB) URLMap(ctx context.Context) (map[string]string, error) {
	rows, err := cdb.db.QueryContext(ctx, "SELECT filename, url FROM pages")
	if err != nil {
		return nil, fmt.Errorf("failed to query url map: %w", err)
	}
	defer rows.Close()

	urlMap := make(map[string]string)
	for rows.Next() {
		var filename, pageURL string
		if err := rows.Scan(&filename, &pageURL); err != nil {
			return nil, fmt.Errorf("failed to scan url map row: %w", err)
		}
		urlMap[filename] = pageURL
	}

	return urlMap, rows.Err()
}

// HostCounts returns the number of stored pages per host, most
// populous hosts first.
func (cdb *CrawlDB) HostCounts(ctx context.Context) ([]model.HostCount, error) {
	query := `
	SELECT host, COUNT(*) AS pages
	FROM pages
	GROUP BY host
	ORDER BY pages DESC, host
	`

	rows, err := cdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query host counts: %w", err)
	}
	defer rows.Close()

	var results []model.HostCount
	for rows.Next() {
		var hc model.HostCount
		if err := rows.Scan(&hc.Host, &hc.Pages); err != nil {
			return nil, fmt.Errorf("failed to scan host count: %w", err)
		}
		results = append(results, hc)
	}

	return results, rows.Err()
}

// Fingerprints returns the fingerprints of all stored pages in
// insertion order. Used to rebuild the duplicate index when the state
// snapshot is missing but the database survived.
func (cdb *CrawlDB) Fingerprints(ctx context.Context) ([]uint64, error) {
	rows, err := cdb.db.QueryContext(ctx, "SELECT fingerprint FROM pages ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %w", err)
	}
	defer rows.Close()

	var results []uint64
	for rows.Next() {
		var fp int64
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		results = append(results, uint64(fp))
	}

	return results, rows.Err()
}

// RecentPages returns the most recently accepted pages, newest first.
func (cdb *CrawlDB) RecentPages(ctx context.Context, limit int) ([]model.PageRecord, error) {
	query := `
	SELECT url, filename, fingerprint, title, status_code, accepted_at
	FROM pages
	ORDER BY accepted_at DESC, id DESC
	LIMIT ?
	`

	rows, err := cdb.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent pages: %w", err)
	}
	defer rows.Close()

	var results []model.PageRecord
	for rows.Next() {
		var record model.PageRecord
		var fingerprint int64
		var timestamp string

		err := rows.Scan(
			&record.URL,
			&record.Filename,
			&fingerprint,
			&record.Title,
			&record.StatusCode,
			&timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page record: %w", err)
		}

		record.Fingerprint = uint64(fingerprint)
		record.AcceptedAt = parseTimestamp(timestamp)
		results = append(results, record)
	}

	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
