package duplicates

import (
	"cmp"
	"slices"
)

// Index maps window hashes to the old-tree fingerprints carrying them.
// It is built once by a single goroutine and is read-only afterwards,
// so concurrent lookups need no locking.
type Index struct {
	entries map[uint64][]Fingerprint
	size    int
}

// BuildIndex indexes the given fingerprint lists. The fingerprints of each
// hash are kept sorted by (File, Start).
func BuildIndex(fingerprints ...[]Fingerprint) *Index {
	n := 0
	for _, fps := range fingerprints {
		n += len(fps)
	}
	idx := &Index{entries: make(map[uint64][]Fingerprint, n)}
	for _, fps := range fingerprints {
		for _, fp := range fps {
			idx.entries[fp.Hash] = append(idx.entries[fp.Hash], fp)
		}
		idx.size += len(fps)
	}
	for _, occs := range idx.entries {
		slices.SortFunc(occs, func(a, b Fingerprint) int {
			return cmp.Or(cmp.Compare(a.File, b.File), cmp.Compare(a.Start, b.Start))
		})
	}
	return idx
}

// Lookup returns the fingerprints sharing hash, or nil.
func (idx *Index) Lookup(hash uint64) []Fingerprint {
	return idx.entries[hash]
}

// Len returns the number of distinct hashes.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Size returns the number of indexed fingerprints.
func (idx *Index) Size() int {
	return idx.size
}

// Hashes returns the distinct hashes in ascending order.
func (idx *Index) Hashes() []uint64 {
	hashes := make([]uint64, 0, len(idx.entries))
	for h := range idx.entries {
		hashes = append(hashes, h)
	}
	slices.Sort(hashes)
	return hashes
}
