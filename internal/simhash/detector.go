package simhash

import (
	"sync"
)

// Detector decides whether a fingerprint is a near-duplicate of any
// fingerprint it has already accepted. It is safe for concurrent use.
type Detector struct {
	mu sync.Mutex

	// fingerprints holds every accepted fingerprint in insertion order.
	fingerprints []uint64

	// bands maps each band key to the fingerprints sharing that band.
	// A band key packs the band number and the band's bit value.
	bands map[bandKey][]uint64

	threshold int
	bandCount int
	bandWidth uint
}

type bandKey struct {
	band  int
	value uint64
}

// NewDetector creates an empty Detector. threshold is the maximum
// Hamming distance treated as a duplicate; bandCount must divide 64
// and exceed threshold, which config validation guarantees.
func NewDetector(threshold, bandCount int) *Detector {
	return &Detector{
		bands:     make(map[bandKey][]uint64),
		threshold: threshold,
		bandCount: bandCount,
		bandWidth: uint(64 / bandCount),
	}
}

// IsDuplicate reports whether fp is within the Hamming threshold of
// any accepted fingerprint. A zero fingerprint (empty document) is
// never a duplicate.
func (d *Detector) IsDuplicate(fp uint64) bool {
	if fp == 0 {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// A fingerprint within the threshold differs in at most threshold
	// bits, so with threshold < bandCount at least one band matches
	// exactly. Only those candidates need a distance check.
	seen := make(map[uint64]bool)
	for band := 0; band < d.bandCount; band++ {
		key := d.keyFor(band, fp)
		for _, candidate := range d.bands[key] {
			if seen[candidate] {
				continue
			}
			seen[candidate] = true
			if HammingDistance(fp, candidate) <= d.threshold {
				return true
			}
		}
	}
	return false
}

// Add records fp as accepted so later pages are compared against it.
// Zero fingerprints are ignored.
func (d *Detector) Add(fp uint64) {
	if fp == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.insert(fp)
}

// Len returns the number of accepted fingerprints.
func (d *Detector) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.fingerprints)
}

// Snapshot returns a copy of all accepted fingerprints in insertion
// order. The banded index is derived state and is not exported; it is
// rebuilt on Restore.
func (d *Detector) Snapshot() []uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]uint64, len(d.fingerprints))
	copy(out, d.fingerprints)
	return out
}

// Restore replaces the detector contents with the given fingerprints,
// rebuilding the banded index. Restore must not be called while
// workers are active.
func (d *Detector) Restore(fingerprints []uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.fingerprints = d.fingerprints[:0]
	d.bands = make(map[bandKey][]uint64)
	for _, fp := range fingerprints {
		if fp == 0 {
			continue
		}
		d.insert(fp)
	}
}

// insert appends fp to the store and all its band buckets.
// Caller holds d.mu.
func (d *Detector) insert(fp uint64) {
	d.fingerprints = append(d.fingerprints, fp)
	for band := 0; band < d.bandCount; band++ {
		key := d.keyFor(band, fp)
		d.bands[key] = append(d.bands[key], fp)
	}
}

// keyFor extracts the band-th slice of bits from fp as a bucket key.
func (d *Detector) keyFor(band int, fp uint64) bandKey {
	shift := uint(band) * d.bandWidth
	mask := uint64(1)<<d.bandWidth - 1
	return bandKey{band: band, value: (fp >> shift) & mask}
}
