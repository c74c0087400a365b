// Package bloom provides the zone apex prefilter used before touching the
// zone database.
package bloom

import (
	"math"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"
)

// DefaultFalsePositiveRate is used when a non-positive rate is requested.
const DefaultFalsePositiveRate = 0.01

// Filter is an immutable set of zone apex names. A negative answer is
// definitive; a positive one must be confirmed against the store. Filters are
// rebuilt wholesale whenever the set of zones changes, so reads need no locking.
type Filter struct {
	bf *bitsbloom.BloomFilter
}

// Build sizes a filter for names at fpRate and adds every name to it.
func Build(names []string, fpRate float64) *Filter {
	m, k := size(uint64(len(names)), fpRate)
	bf := bitsbloom.New(uint(m), uint(k))
	for _, n := range names {
		bf.AddString(n)
	}
	return &Filter{bf: bf}
}

// MightContain reports whether name may be a zone apex.
func (f *Filter) MightContain(name string) bool {
	if f == nil {
		return true
	}
	return f.bf.TestString(name)
}

// size derives bit count m and hash count k from capacity n and rate p:
//
//	m = - (n * ln p) / (ln 2)^2
//	k = (m / n) * ln 2
//
// Both are clamped to at least 1.
func size(n uint64, p float64) (uint64, uint8) {
	if n == 0 {
		n = 1
	}
	if !(p > 0 && p < 1) {
		p = DefaultFalsePositiveRate
	}
	ln2 := math.Ln2
	m := uint64(math.Ceil(-float64(n) * math.Log(p) / (ln2 * ln2)))
	if m == 0 {
		m = 1
	}
	k := uint8(math.Max(1, math.Round((float64(m)/float64(n))*ln2)))
	return m, k
}
