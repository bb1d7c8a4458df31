// Package closure filters a family of frequent itemsets down to its closed or
// maximal members.
//
// Itemsets may arrive in any order. When a set is added after a superset that
// dominates it, it is rejected; when it dominates sets that arrived earlier,
// those are invalidated and point at the set that replaced them. The result
// of Finalize does not depend on the insertion order.
package closure

import (
	"fmt"
	"sort"
	"sync"

	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/tract"
)

// Mode selects the domination rule.
type Mode int

const (
	// Closed keeps sets without a proper superset of equal support.
	Closed Mode = iota
	// Maximal keeps sets without any proper superset.
	Maximal
)

func (m Mode) String() string {
	if m == Maximal {
		return "maximal"
	}
	return "closed"
}

// None marks a record that has not been superseded.
const None = -1

// Record is one itemset held by the tracker.
type Record struct {
	ID      int
	Items   itemset.Set
	Support int

	// SupersededBy is the ID of the record that invalidated this one, or
	// None while the record is live.
	SupersededBy int
}

// Live reports whether the record has not been superseded.
func (r Record) Live() bool {
	return r.SupersededBy == None
}

// Tracker holds the current closed or maximal family. Safe for concurrent use.
type Tracker struct {
	mode Mode

	mu       sync.Mutex
	records  []Record
	postings map[tract.Item][]int // item -> ids of records containing it
	empty    int                  // id of the empty set record, or None
	live     int
}

// New creates an empty Tracker.
func New(mode Mode) *Tracker {
	return &Tracker{mode: mode, postings: make(map[tract.Item][]int), empty: None}
}

// Mode returns the domination rule of the tracker.
func (t *Tracker) Mode() Mode {
	return t.mode
}

// Len returns the number of live records.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

func (t *Tracker) dominates(super, sub int) bool {
	return t.mode == Maximal || super == sub
}

// Add offers a set with its support. It returns false when the set is
// already present or dominated by a live superset. Otherwise the set becomes
// live and every live subset it dominates is invalidated.
func (t *Tracker) Add(set itemset.Set, supp int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range t.supersets(set) {
		r := &t.records[id]
		if len(r.Items) == len(set) || t.dominates(r.Support, supp) {
			return false
		}
	}

	id := len(t.records)
	t.records = append(t.records, Record{ID: id, Items: set.Clone(), Support: supp, SupersededBy: None})
	t.live++
	if len(set) == 0 {
		t.empty = id
	}
	for _, it := range set {
		t.postings[it] = append(t.postings[it], id)
	}

	for _, sub := range t.subsets(set, id) {
		r := &t.records[sub]
		if t.dominates(supp, r.Support) {
			r.SupersededBy = id
			t.live--
		}
	}
	return true
}

// supersets returns the live records containing every item of set.
func (t *Tracker) supersets(set itemset.Set) []int {
	if len(set) == 0 {
		var out []int
		for i := range t.records {
			if t.records[i].Live() {
				out = append(out, i)
			}
		}
		return out
	}
	// Scan the shortest posting list.
	shortest := t.postings[set[0]]
	for _, it := range set[1:] {
		if p := t.postings[it]; len(p) < len(shortest) {
			shortest = p
		}
	}
	var out []int
	for _, id := range shortest {
		r := &t.records[id]
		if r.Live() && len(r.Items) >= len(set) && set.SubsetOf(r.Items) {
			out = append(out, id)
		}
	}
	return out
}

// subsets returns the live proper subsets of set, excluding self.
func (t *Tracker) subsets(set itemset.Set, self int) []int {
	var out []int
	if t.empty != None && t.empty != self && t.records[t.empty].Live() {
		out = append(out, t.empty)
	}
	for _, it := range set {
		for _, id := range t.postings[it] {
			r := &t.records[id]
			// Visit each record once, through its first item.
			if id == self || !r.Live() || r.Items[0] != it || len(r.Items) >= len(set) {
				continue
			}
			if r.Items.SubsetOf(set) {
				out = append(out, id)
			}
		}
	}
	return out
}

// Finalize re-checks every live record against the live family, resolves
// supersession chains to live records and returns the live records in
// canonical order: by size, then by items. It returns an error when the
// family is inconsistent, e.g. a superset with a larger support.
func (t *Tracker) Finalize() ([]Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.records {
		r := &t.records[i]
		if !r.Live() {
			continue
		}
		for _, id := range t.supersets(r.Items) {
			if id == i {
				continue
			}
			s := &t.records[id]
			if s.Support > r.Support {
				return nil, fmt.Errorf("superset %v has support %d above %d of %v", s.Items, s.Support, r.Support, r.Items)
			}
			if t.dominates(s.Support, r.Support) {
				r.SupersededBy = id
				t.live--
				break
			}
		}
	}

	for i := range t.records {
		r := &t.records[i]
		for seen := 0; !r.Live() && !t.records[r.SupersededBy].Live(); seen++ {
			if seen > len(t.records) {
				return nil, fmt.Errorf("supersession cycle at record %d", i)
			}
			r.SupersededBy = t.records[r.SupersededBy].SupersededBy
		}
	}

	out := make([]Record, 0, t.live)
	for _, r := range t.records {
		if r.Live() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return itemset.Less(out[i].Items, out[j].Items) })
	return out, nil
}

// Records returns a copy of every record, live or superseded, in insertion
// order.
func (t *Tracker) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Record(nil), t.records...)
}
