// Package substrate provides the support-counting data structures used by
// the search strategies.
//
// Every representation answers the same two questions:
//
//	Support(I)  weight of the transactions containing every item of I
//	Project(x)  the representation restricted to transactions containing x,
//	            with x removed
//
// For any itemset I and item x not in I, Project(x).Support(I) equals
// Support(I ∪ {x}) and equals Count(db, I ∪ {x}). The search strategies rely
// on this so that results do not depend on the representation they use.
//
// Representations:
//   - Horizontal: merged weighted transaction list (reference counter)
//   - Vertical:   per-item occurrence sets as tid lists or bit vectors
//   - PrefixTree: FP-tree with header chains and conditional projection
//   - SplitMerge: sorted suffix lists split by first item and merged
//
// ISTree, the itemset tree used for level-wise candidate counting, also lives
// here.
package substrate

import (
	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/tract"
)

// Representation is the contract shared by all counting structures.
type Representation interface {
	// Support returns the weight of the transactions containing all items.
	Support(items itemset.Set) int

	// Project restricts to transactions containing item and removes item.
	Project(item tract.Item) Representation

	// Weight returns the total weight of the represented transactions.
	Weight() int
}

// Count computes the support of items by scanning the database directly.
func Count(db *tract.Database, items itemset.Set) int {
	supp := 0
	for _, t := range db.Transactions() {
		if items.SubsetOf(itemset.Set(t.Items)) {
			supp += t.Weight
		}
	}
	return supp
}
