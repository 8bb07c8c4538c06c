// Package database provides SQLite-based storage for crawl results.
//
// This package implements the CrawlDB, which stores one row per
// accepted page: its URL, the on-disk filename of the saved HTML, the
// content fingerprint, and fetch metadata. The URL map and per-host
// statistics used by crawl reports are derived from this table.
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
package database
