// Package itemset defines the itemset value type shared by the search,
// closure, statistics and rule packages, plus the support index that lets
// later stages look up supports computed during the search.
package itemset

import (
	"encoding/binary"
	"sort"
	"strings"
	"sync"

	"github.com/blackwell-systems/fimine/internal/tract"
)

// Set is a duplicate-free itemset sorted by ascending item code.
type Set []tract.Item

// New copies items into a sorted, duplicate-free Set.
func New(items ...tract.Item) Set {
	s := make(Set, len(items))
	copy(s, items)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	out := s[:0]
	for i, it := range s {
		if i > 0 && it == s[i-1] {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	return append(Set(nil), s...)
}

// Key returns a canonical map key for s.
func (s Set) Key() string {
	var sb strings.Builder
	sb.Grow(4 * len(s))
	var buf [4]byte
	for _, it := range s {
		binary.BigEndian.PutUint32(buf[:], uint32(it))
		sb.Write(buf[:])
	}
	return sb.String()
}

// Contains reports whether item is in s.
func (s Set) Contains(item tract.Item) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= item })
	return i < len(s) && s[i] == item
}

// SubsetOf reports whether every item of s is in t.
func (s Set) SubsetOf(t Set) bool {
	if len(s) > len(t) {
		return false
	}
	j := 0
	for _, it := range s {
		for j < len(t) && t[j] < it {
			j++
		}
		if j == len(t) || t[j] != it {
			return false
		}
		j++
	}
	return true
}

// Equal reports whether s and t hold the same items.
func (s Set) Equal(t Set) bool {
	if len(s) != len(t) {
		return false
	}
	for i := range s {
		if s[i] != t[i] {
			return false
		}
	}
	return true
}

// With returns s ∪ {item} as a new Set.
func (s Set) With(item tract.Item) Set {
	out := make(Set, 0, len(s)+1)
	i := 0
	for i < len(s) && s[i] < item {
		out = append(out, s[i])
		i++
	}
	if i == len(s) || s[i] != item {
		out = append(out, item)
	}
	return append(out, s[i:]...)
}

// Without returns s \ {item} as a new Set.
func (s Set) Without(item tract.Item) Set {
	out := make(Set, 0, len(s))
	for _, it := range s {
		if it != item {
			out = append(out, it)
		}
	}
	return out
}

// Minus returns s \ t as a new Set.
func (s Set) Minus(t Set) Set {
	out := make(Set, 0, len(s))
	for _, it := range s {
		if !t.Contains(it) {
			out = append(out, it)
		}
	}
	return out
}

// Less orders sets by size, then lexicographically by item code.
func Less(a, b Set) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Index maps itemsets to their supports. It is filled during enumeration and
// read by the evaluation and rule stages. Safe for concurrent use.
type Index struct {
	mu    sync.RWMutex
	supps map[string]int
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{supps: make(map[string]int)}
}

// Put records the support of s.
func (x *Index) Put(s Set, support int) {
	x.mu.Lock()
	x.supps[s.Key()] = support
	x.mu.Unlock()
}

// Support returns the recorded support of s.
func (x *Index) Support(s Set) (int, bool) {
	x.mu.RLock()
	v, ok := x.supps[s.Key()]
	x.mu.RUnlock()
	return v, ok
}

// Len returns the number of recorded sets.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.supps)
}
