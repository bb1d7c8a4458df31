package substrate

import (
	"sort"

	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/tract"
)

// Horizontal is a list of weighted transactions with identical transactions
// merged into one entry.
type Horizontal struct {
	tracts []tract.Transaction
	weight int
}

// NewHorizontal builds a Horizontal representation of db.
func NewHorizontal(db *tract.Database) *Horizontal {
	return newHorizontal(db.Transactions())
}

func newHorizontal(in []tract.Transaction) *Horizontal {
	tracts := make([]tract.Transaction, len(in))
	copy(tracts, in)
	sort.Slice(tracts, func(i, j int) bool { return compareAsc(tracts[i].Items, tracts[j].Items) < 0 })

	h := &Horizontal{}
	for _, t := range tracts {
		h.weight += t.Weight
		n := len(h.tracts)
		if n > 0 && compareAsc(h.tracts[n-1].Items, t.Items) == 0 {
			h.tracts[n-1].Weight += t.Weight
			continue
		}
		h.tracts = append(h.tracts, tract.Transaction{Items: t.Items, Weight: t.Weight})
	}
	return h
}

// Transactions returns the merged transactions. The slice must not be modified.
func (h *Horizontal) Transactions() []tract.Transaction {
	return h.tracts
}

// Support implements Representation.
func (h *Horizontal) Support(items itemset.Set) int {
	if len(items) == 0 {
		return h.weight
	}
	supp := 0
	for _, t := range h.tracts {
		if items.SubsetOf(itemset.Set(t.Items)) {
			supp += t.Weight
		}
	}
	return supp
}

// Project implements Representation.
func (h *Horizontal) Project(item tract.Item) Representation {
	var proj []tract.Transaction
	for _, t := range h.tracts {
		if !t.Contains(item) {
			continue
		}
		proj = append(proj, tract.Transaction{
			Items:  itemset.Set(t.Items).Without(item),
			Weight: t.Weight,
		})
	}
	return newHorizontal(proj)
}

// Weight implements Representation.
func (h *Horizontal) Weight() int {
	return h.weight
}

// compareAsc compares two ascending item sequences lexicographically.
func compareAsc(a, b []tract.Item) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
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
