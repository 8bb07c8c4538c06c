package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tsurugo/webcorpus/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *CrawlDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		dbPath := filepath.Join(dbDir, "webcorpus.db")
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("Path = %q, want %q", db.Path(), dbPath)
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		opts := Options{
			CreateIfNotExists: false,
			EnableWAL:         true,
		}
		if _, err := Open(filepath.Join(t.TempDir(), "missing"), opts); err == nil {
			t.Error("expected error for missing database")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		if err := db.Close(); err != nil {
			t.Fatalf("failed to close database: %v", err)
		}

		opts := Options{CreateIfNotExists: false, EnableWAL: true}
		db2, err := Open(dbDir, opts)
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db2.Close()
	})
}

// TestInsertPage tests page insertion and the UPSERT path.
func TestInsertPage(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	record := &model.PageRecord{
		URL:         "https://example.com/articles/go",
		Filename:    "a1b2c3d4e5f60718.html",
		Fingerprint: 0xdead_beef_cafe_f00d,
		Title:       "Go articles",
		StatusCode:  200,
	}

	if err := db.InsertPage(ctx, record); err != nil {
		t.Fatalf("InsertPage: %v", err)
	}

	got, err := db.GetPage(ctx, record.URL)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if got == nil {
		t.Fatal("GetPage returned nil for stored page")
	}
	if got.Filename != record.Filename {
		t.Errorf("Filename = %q, want %q", got.Filename, record.Filename)
	}
	if got.Fingerprint != record.Fingerprint {
		t.Errorf("Fingerprint = %#x, want %#x", got.Fingerprint, record.Fingerprint)
	}
	if got.Title != record.Title {
		t.Errorf("Title = %q, want %q", got.Title, record.Title)
	}
	if got.StatusCode != record.StatusCode {
		t.Errorf("StatusCode = %d, want %d", got.StatusCode, record.StatusCode)
	}
	if got.AcceptedAt.IsZero() {
		t.Error("AcceptedAt not populated")
	}

	// Re-inserting the same URL must replace, not duplicate.
	record.Title = "Go articles (updated)"
	if err := db.InsertPage(ctx, record); err != nil {
		t.Fatalf("InsertPage (upsert): %v", err)
	}

	count, err := db.CountPages(ctx)
	if err != nil {
		t.Fatalf("CountPages: %v", err)
	}
	if count != 1 {
		t.Errorf("CountPages = %d, want 1", count)
	}

	got, err = db.GetPage(ctx, record.URL)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if got.Title != "Go articles (updated)" {
		t.Errorf("Title after upsert = %q, want updated title", got.Title)
	}
}

// TestGetPageNotFound tests the nil-without-error convention.
func TestGetPageNotFound(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	got, err := db.GetPage(context.Background(), "https://example.com/nope")
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if got != nil {
		t.Errorf("GetPage = %+v, want nil", got)
	}
}

// TestURLMap tests the filename-to-URL mapping.
func TestURLMap(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	pages := []*model.PageRecord{
		{URL: "https://example.com/a", Filename: "0000000000000001.html", Fingerprint: 1, StatusCode: 200},
		{URL: "https://example.com/b", Filename: "0000000000000002.html", Fingerprint: 2, StatusCode: 200},
		{URL: "https://other.test/c", Filename: "0000000000000003.html", Fingerprint: 3, StatusCode: 200},
	}
	for _, p := range pages {
		if err := db.InsertPage(ctx, p); err != nil {
			t.Fatalf("InsertPage(%q): %v", p.URL, err)
		}
	}

	urlMap, err := db.URLMap(ctx)
	if err != nil {
		t.Fatalf("URLMap: %v", err)
	}
	if len(urlMap) != len(pages) {
		t.Fatalf("URLMap size = %d, want %d", len(urlMap), len(pages))
	}
	for _, p := range pages {
		if got := urlMap[p.Filename]; got != p.URL {
			t.Errorf("urlMap[%q] = %q, want %q", p.Filename, got, p.URL)
		}
	}
}

// TestHostCounts tests per-host aggregation and ordering.
func TestHostCounts(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	pages := []*model.PageRecord{
		{URL: "https://big.test/1", Filename: "1.html", Fingerprint: 1, StatusCode: 200},
		{URL: "https://big.test/2", Filename: "2.html", Fingerprint: 2, StatusCode: 200},
		{URL: "https://big.test/3", Filename: "3.html", Fingerprint: 3, StatusCode: 200},
		{URL: "https://small.test/1", Filename: "4.html", Fingerprint: 4, StatusCode: 200},
	}
	for _, p := range pages {
		if err := db.InsertPage(ctx, p); err != nil {
			t.Fatalf("InsertPage(%q): %v", p.URL, err)
		}
	}

	counts, err := db.HostCounts(ctx)
	if err != nil {
		t.Fatalf("HostCounts: %v", err)
	}
	want := []model.HostCount{
		{Host: "big.test", Pages: 3},
		{Host: "small.test", Pages: 1},
	}
	if len(counts) != len(want) {
		t.Fatalf("HostCounts length = %d, want %d", len(counts), len(want))
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("HostCounts[%d] = %+v, want %+v", i, counts[i], want[i])
		}
	}
}

// TestFingerprints tests fingerprint retrieval in insertion order,
// including values with the top bit set.
func TestFingerprints(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	want := []uint64{0x8000_0000_0000_0001, 42, ^uint64(0)}
	for i, fp := range want {
		record := &model.PageRecord{
			URL:         "https://example.com/" + string(rune('a'+i)),
			Filename:    string(rune('a'+i)) + ".html",
			Fingerprint: fp,
			StatusCode:  200,
		}
		if err := db.InsertPage(ctx, record); err != nil {
			t.Fatalf("InsertPage: %v", err)
		}
	}

	got, err := db.Fingerprints(ctx)
	if err != nil {
		t.Fatalf("Fingerprints: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("Fingerprints length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Fingerprints[%d] = %#x, want %#x", i, got[i], want[i])
		}
	}
}

// TestRecentPages tests the newest-first listing.
func TestRecentPages(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		record := &model.PageRecord{
			URL:         "https://example.com/" + string(rune('a'+i)),
			Filename:    string(rune('a'+i)) + ".html",
			Fingerprint: uint64(i + 1),
			StatusCode:  200,
		}
		if err := db.InsertPage(ctx, record); err != nil {
			t.Fatalf("InsertPage: %v", err)
		}
	}

	recent, err := db.RecentPages(ctx, 3)
	if err != nil {
		t.Fatalf("RecentPages: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("RecentPages length = %d, want 3", len(recent))
	}
	// All rows share one CURRENT_TIMESTAMP second; id breaks the tie.
	if recent[0].URL != "https://example.com/e" {
		t.Errorf("RecentPages[0].URL = %q, want the last inserted page", recent[0].URL)
	}
}

// TestParseTimestamp tests the multi-format timestamp parser.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{name: "sqlite default", input: "2026-08-30 12:34:56", valid: true},
		{name: "iso8601 with Z", input: "2026-08-30T12:34:56Z", valid: true},
		{name: "rfc3339", input: "2026-08-30T12:34:56+09:00", valid: true},
		{name: "milliseconds", input: "2026-08-30 12:34:56.123", valid: true},
		{name: "garbage", input: "not-a-timestamp", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := parseTimestamp(tt.input)
			if tt.valid && got.IsZero() {
				t.Errorf("parseTimestamp(%q) returned zero time", tt.input)
			}
			if !tt.valid && !got.IsZero() {
				t.Errorf("parseTimestamp(%q) = %v, want zero time", tt.input, got)
			}
		})
	}
}
