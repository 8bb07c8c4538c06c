// Package simhash provides near-duplicate detection for page text.
//
// A 64-bit simhash fingerprint is computed from word shingles of the
// document text. Two documents with small textual differences produce
// fingerprints within a small Hamming distance of each other, so
// near-duplicates are found by distance comparison instead of exact
// matching.
//
// The Detector keeps previously accepted fingerprints in a banded
// index: each fingerprint is split into equal-width bit bands, and
// candidates are only compared when they share at least one band
// verbatim. With a Hamming threshold strictly below the band count the
// pigeonhole principle guarantees every true near-duplicate shares a
// band, so the index never misses while skipping almost all pairwise
// comparisons.
package simhash
