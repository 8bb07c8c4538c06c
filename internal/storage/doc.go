// Package storage persists crawl output and crawl state.
//
// Two components live here. The Writer is the sole consumer of the
// crawler's write queue: it saves each accepted page as one HTML file
// under the data folder and records it in the crawl database. The
// Snapshotter periodically captures frontier and duplicate-index state
// to JSON files so an interrupted crawl resumes where it left off, and
// rewrites the URL map file that offline tooling uses to go from a
// stored file back to its source URL.
//
// All state files are written to a temporary file and renamed into
// place, so a crash mid-save never leaves a truncated snapshot.
package storage
