package substrate

import (
	"sort"

	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/tract"
)

type isNode struct {
	item     tract.Item
	supp     int
	children []*isNode // sorted by item
}

func (n *isNode) child(item tract.Item) *isNode {
	i := sort.Search(len(n.children), func(i int) bool { return n.children[i].item >= item })
	if i < len(n.children) && n.children[i].item == item {
		return n.children[i]
	}
	return nil
}

// ISTree is a prefix tree of itemsets grown one level at a time. Level k
// holds the candidate itemsets of size k; a path from the root spells the
// itemset in ascending code order.
type ISTree struct {
	root  *isNode
	depth int
	smin  int
}

// NewISTree creates a tree whose first level holds the items with support at
// least smin. supports is indexed by item code.
func NewISTree(weight int, supports []int, smin int) *ISTree {
	t := &ISTree{root: &isNode{item: -1, supp: weight}, smin: smin}
	for i, s := range supports {
		if s >= smin {
			t.root.children = append(t.root.children, &isNode{item: tract.Item(i), supp: s})
		}
	}
	if len(t.root.children) > 0 {
		t.depth = 1
	}
	return t
}

// Depth returns the size of the itemsets on the deepest level.
func (t *ISTree) Depth() int {
	return t.depth
}

// AddLevel creates the candidates of size Depth()+1 by joining frequent
// siblings and discarding any candidate with an infrequent subset. It returns
// the number of candidates created; on zero the tree is unchanged.
func (t *ISTree) AddLevel() int {
	created := 0
	prefix := make(itemset.Set, 0, t.depth+1)
	var rec func(n *isNode, level int)
	rec = func(n *isNode, level int) {
		if level < t.depth-1 {
			for _, c := range n.children {
				prefix = append(prefix, c.item)
				rec(c, level+1)
				prefix = prefix[:len(prefix)-1]
			}
			return
		}
		// n is a parent of nodes on the deepest level.
		for i, a := range n.children {
			for _, b := range n.children[i+1:] {
				cand := append(append(prefix[:len(prefix):len(prefix)], a.item), b.item)
				if !t.subsetsFrequent(cand) {
					continue
				}
				a.children = append(a.children, &isNode{item: b.item})
				created++
			}
		}
	}
	if t.depth == 0 {
		return 0
	}
	rec(t.root, 0)
	if created > 0 {
		t.depth++
	}
	return created
}

// subsetsFrequent checks the subsets of cand that drop one of the first
// len-2 items; the two subsets dropping the last items are the joined pair.
func (t *ISTree) subsetsFrequent(cand itemset.Set) bool {
	for i := 0; i < len(cand)-2; i++ {
		if _, ok := t.Lookup(cand.Without(cand[i])); !ok {
			return false
		}
	}
	return true
}

// Count adds the weight of a transaction (ascending items) to every
// candidate on the deepest level it contains.
func (t *ISTree) Count(items []tract.Item, weight int) {
	if t.depth == 0 || len(items) < t.depth {
		return
	}
	t.count(t.root, items, 1, weight)
}

func (t *ISTree) count(n *isNode, items []tract.Item, level, weight int) {
	for i, it := range items {
		if len(items)-i < t.depth-level+1 {
			return
		}
		c := n.child(it)
		if c == nil {
			continue
		}
		if level == t.depth {
			c.supp += weight
			continue
		}
		if len(c.children) > 0 {
			t.count(c, items[i+1:], level+1, weight)
		}
	}
}

// Prune removes candidates on the deepest level whose support is below the
// minimum or that keep rejects, and returns how many remain. keep may be nil.
func (t *ISTree) Prune(keep func(items itemset.Set, supp int) bool) int {
	kept := 0
	path := make(itemset.Set, 0, t.depth)
	var rec func(n *isNode, level int)
	rec = func(n *isNode, level int) {
		if level == t.depth-1 {
			out := n.children[:0]
			for _, c := range n.children {
				if c.supp < t.smin {
					continue
				}
				if keep != nil && !keep(append(path, c.item), c.supp) {
					continue
				}
				out = append(out, c)
			}
			for i := len(out); i < len(n.children); i++ {
				n.children[i] = nil
			}
			n.children = out
			kept += len(out)
			return
		}
		for _, c := range n.children {
			path = append(path, c.item)
			rec(c, level+1)
			path = path[:len(path)-1]
		}
	}
	if t.depth > 0 {
		rec(t.root, 0)
	}
	return kept
}

// Level calls fn for every itemset on the deepest level in lexicographic
// order and stops at the first error. The set passed to fn is reused.
func (t *ISTree) Level(fn func(items itemset.Set, supp int) error) error {
	if t.depth == 0 {
		return nil
	}
	path := make(itemset.Set, 0, t.depth)
	var rec func(n *isNode, level int) error
	rec = func(n *isNode, level int) error {
		for _, c := range n.children {
			path = append(path, c.item)
			var err error
			if level == t.depth {
				err = fn(path, c.supp)
			} else {
				err = rec(c, level+1)
			}
			path = path[:len(path)-1]
			if err != nil {
				return err
			}
		}
		return nil
	}
	return rec(t.root, 1)
}

// Lookup returns the support recorded for items.
func (t *ISTree) Lookup(items itemset.Set) (int, bool) {
	n := t.root
	for _, it := range items {
		if n = n.child(it); n == nil {
			return 0, false
		}
	}
	return n.supp, true
}

// Walk calls fn for every itemset in the tree, the empty set included, in
// depth-first order. The set passed to fn is reused between calls.
func (t *ISTree) Walk(fn func(items itemset.Set, supp int) bool) {
	path := make(itemset.Set, 0, t.depth)
	var rec func(n *isNode) bool
	rec = func(n *isNode) bool {
		if !fn(path, n.supp) {
			return false
		}
		for _, c := range n.children {
			path = append(path, c.item)
			if !rec(c) {
				return false
			}
			path = path[:len(path)-1]
		}
		return true
	}
	rec(t.root)
}
