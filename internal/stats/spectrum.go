package stats

import (
	"sort"
	"sync"

	"github.com/blackwell-systems/fimine/internal/itemset"
)

// Cell addresses one entry of a pattern spectrum.
type Cell struct {
	Size    int
	Support int
}

// Entry is a spectrum cell with its count.
type Entry struct {
	Cell
	Count float64
}

// Spectrum counts itemsets by size and support. Counts are floating point so
// that averages over surrogate databases can be stored. Safe for concurrent
// use.
type Spectrum struct {
	mu     sync.RWMutex
	counts map[Cell]float64
}

// NewSpectrum creates an empty Spectrum.
func NewSpectrum() *Spectrum {
	return &Spectrum{counts: make(map[Cell]float64)}
}

// Add increases the count of (size, supp) by count.
func (s *Spectrum) Add(size, supp int, count float64) {
	s.mu.Lock()
	s.counts[Cell{size, supp}] += count
	s.mu.Unlock()
}

// Observe counts one itemset.
func (s *Spectrum) Observe(set itemset.Set, supp int) {
	s.Add(len(set), supp, 1)
}

// Get returns the count of (size, supp).
func (s *Spectrum) Get(size, supp int) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[Cell{size, supp}]
}

// Tail returns the summed count of itemsets of the given size with support
// at least supp.
func (s *Spectrum) Tail(size, supp int) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := 0.0
	for c, n := range s.counts {
		if c.Size == size && c.Support >= supp {
			sum += n
		}
	}
	return sum
}

// Significant reports whether a pattern of the given signature is rare in
// the spectrum: the expected number of patterns of that size with at least
// that support is below alpha.
func (s *Spectrum) Significant(size, supp int, alpha float64) bool {
	return s.Tail(size, supp) < alpha
}

// Sizes returns the itemset sizes present, ascending.
func (s *Spectrum) Sizes() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[int]bool)
	var sizes []int
	for c := range s.counts {
		if !seen[c.Size] {
			seen[c.Size] = true
			sizes = append(sizes, c.Size)
		}
	}
	sort.Ints(sizes)
	return sizes
}

// Scale multiplies every count by f.
func (s *Spectrum) Scale(f float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.counts {
		s.counts[c] *= f
	}
}

// Merge adds the counts of o.
func (s *Spectrum) Merge(o *Spectrum) {
	for _, e := range o.Entries() {
		s.Add(e.Size, e.Support, e.Count)
	}
}

// Len returns the number of non-empty cells.
func (s *Spectrum) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.counts)
}

// Total returns the sum of all counts.
func (s *Spectrum) Total() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := 0.0
	for _, n := range s.counts {
		sum += n
	}
	return sum
}

// Entries returns the cells ordered by size, then support.
func (s *Spectrum) Entries() []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.counts))
	for c, n := range s.counts {
		out = append(out, Entry{Cell: c, Count: n})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Size != out[j].Size {
			return out[i].Size < out[j].Size
		}
		return out[i].Support < out[j].Support
	})
	return out
}
