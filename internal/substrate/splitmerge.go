package substrate

import (
	"sort"

	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/tract"
)

type samEntry struct {
	items  []tract.Item // descending code order
	weight int
}

// SplitMerge keeps transactions as item lists in descending code order, so the
// least frequent item of each transaction comes first. The list is sorted
// lexicographically with larger items first and a prefix before its
// extensions, which keeps all transactions starting with the same item
// adjacent. Empty transactions only contribute to the weight.
type SplitMerge struct {
	entries []samEntry
	weight  int
}

// NewSplitMerge builds the sorted suffix list of db.
func NewSplitMerge(db *tract.Database) *SplitMerge {
	in := make([]samEntry, 0, db.Len())
	for _, t := range db.Transactions() {
		items := make([]tract.Item, len(t.Items))
		for i, it := range t.Items {
			items[len(items)-1-i] = it
		}
		in = append(in, samEntry{items: items, weight: t.Weight})
	}
	return newSplitMerge(in)
}

func newSplitMerge(in []samEntry) *SplitMerge {
	s := &SplitMerge{}
	sort.SliceStable(in, func(i, j int) bool { return compareDesc(in[i].items, in[j].items) < 0 })
	for _, e := range in {
		s.weight += e.weight
		if len(e.items) == 0 {
			continue
		}
		n := len(s.entries)
		if n > 0 && compareDesc(s.entries[n-1].items, e.items) == 0 {
			s.entries[n-1].weight += e.weight
			continue
		}
		s.entries = append(s.entries, e)
	}
	return s
}

// compareDesc orders descending item sequences: larger items first, and a
// sequence before its extensions.
func compareDesc(a, b []tract.Item) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] > b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// Len returns the number of distinct non-empty transactions.
func (s *SplitMerge) Len() int {
	return len(s.entries)
}

// Split removes the leading item from the list. It returns that item, the
// conditional list of transactions that started with it (item removed) and
// the remainder where those suffixes have been merged back in. ok is false
// when no items remain.
func (s *SplitMerge) Split() (item tract.Item, cond, rest *SplitMerge, ok bool) {
	if len(s.entries) == 0 {
		return 0, nil, nil, false
	}
	item = s.entries[0].items[0]
	n := 0
	for n < len(s.entries) && s.entries[n].items[0] == item {
		n++
	}

	suffixes := make([]samEntry, n)
	cond = &SplitMerge{}
	for i := 0; i < n; i++ {
		e := s.entries[i]
		suffixes[i] = samEntry{items: e.items[1:], weight: e.weight}
		cond.weight += e.weight
		if len(e.items) > 1 {
			cond.entries = append(cond.entries, suffixes[i])
		}
	}
	// Suffixes of adjacent sorted entries are themselves sorted, only
	// duplicates need merging.
	cond.entries = mergeEntries(cond.entries, nil)

	rest = &SplitMerge{weight: s.weight, entries: mergeEntries(s.entries[n:], suffixes)}
	return item, cond, rest, true
}

// mergeEntries merges two sorted lists, summing duplicates and dropping empty
// sequences.
func mergeEntries(a, b []samEntry) []samEntry {
	out := make([]samEntry, 0, len(a)+len(b))
	push := func(e samEntry) {
		if len(e.items) == 0 {
			return
		}
		if n := len(out); n > 0 && compareDesc(out[n-1].items, e.items) == 0 {
			out[n-1].weight += e.weight
			return
		}
		out = append(out, e)
	}
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if compareDesc(a[i].items, b[j].items) <= 0 {
			push(a[i])
			i++
		} else {
			push(b[j])
			j++
		}
	}
	for ; i < len(a); i++ {
		push(a[i])
	}
	for ; j < len(b); j++ {
		push(b[j])
	}
	return out
}

// Filter removes items whose support within the list is below smin. The
// weight is unchanged.
func (s *SplitMerge) Filter(smin int) *SplitMerge {
	supp := make(map[tract.Item]int)
	for _, e := range s.entries {
		for _, it := range e.items {
			supp[it] += e.weight
		}
	}
	drop := false
	for _, v := range supp {
		if v < smin {
			drop = true
			break
		}
	}
	if !drop {
		return s
	}
	in := make([]samEntry, 0, len(s.entries))
	for _, e := range s.entries {
		items := make([]tract.Item, 0, len(e.items))
		for _, it := range e.items {
			if supp[it] >= smin {
				items = append(items, it)
			}
		}
		in = append(in, samEntry{items: items, weight: e.weight})
	}
	out := newSplitMerge(in)
	out.weight = s.weight
	return out
}

// Support implements Representation.
func (s *SplitMerge) Support(items itemset.Set) int {
	if len(items) == 0 {
		return s.weight
	}
	supp := 0
	for _, e := range s.entries {
		if containsDesc(e.items, items) {
			supp += e.weight
		}
	}
	return supp
}

// containsDesc reports whether the descending sequence seq holds every item of
// the ascending set items.
func containsDesc(seq []tract.Item, items itemset.Set) bool {
	j := len(items) - 1
	for _, it := range seq {
		if j < 0 {
			break
		}
		switch {
		case it == items[j]:
			j--
		case it < items[j]:
			return false
		}
	}
	return j < 0
}

// Project implements Representation.
func (s *SplitMerge) Project(item tract.Item) Representation {
	var in []samEntry
	for _, e := range s.entries {
		pos := -1
		for i, it := range e.items {
			if it == item {
				pos = i
				break
			}
			if it < item {
				break
			}
		}
		if pos < 0 {
			continue
		}
		items := make([]tract.Item, 0, len(e.items)-1)
		items = append(items, e.items[:pos]...)
		items = append(items, e.items[pos+1:]...)
		in = append(in, samEntry{items: items, weight: e.weight})
	}
	return newSplitMerge(in)
}

// Weight implements Representation.
func (s *SplitMerge) Weight() int {
	return s.weight
}
