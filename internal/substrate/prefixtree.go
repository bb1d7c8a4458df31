package substrate

import (
	"sort"

	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/tract"
)

type fpNode struct {
	item     tract.Item
	count    int
	parent   *fpNode
	children []*fpNode // sorted by item
	next     *fpNode   // next node with the same item
}

func (n *fpNode) child(item tract.Item) (*fpNode, int) {
	i := sort.Search(len(n.children), func(i int) bool { return n.children[i].item >= item })
	if i < len(n.children) && n.children[i].item == item {
		return n.children[i], i
	}
	return nil, i
}

// PathNode is one node of a single-path prefix tree.
type PathNode struct {
	Item  tract.Item
	Count int
}

// PrefixTree stores transactions in a trie that merges common prefixes. Items
// are inserted in ascending code order, so frequent items sit near the root.
// Each item has a header chain linking all nodes that carry it.
type PrefixTree struct {
	root  *fpNode
	heads []*fpNode
	supp  []int
	nodes int
}

// NewPrefixTree creates an empty tree for item codes below nitems.
func NewPrefixTree(nitems int) *PrefixTree {
	return &PrefixTree{
		root:  &fpNode{item: -1},
		heads: make([]*fpNode, nitems),
		supp:  make([]int, nitems),
	}
}

// BuildPrefixTree inserts every transaction of db.
func BuildPrefixTree(db *tract.Database) *PrefixTree {
	t := NewPrefixTree(db.ItemCount())
	for _, tr := range db.Transactions() {
		t.Insert(tr.Items, tr.Weight)
	}
	return t
}

// Insert adds a transaction whose items are sorted by ascending code.
func (t *PrefixTree) Insert(items []tract.Item, weight int) {
	n := t.root
	n.count += weight
	for _, it := range items {
		c, pos := n.child(it)
		if c == nil {
			c = &fpNode{item: it, parent: n, next: t.heads[it]}
			t.heads[it] = c
			n.children = append(n.children, nil)
			copy(n.children[pos+1:], n.children[pos:])
			n.children[pos] = c
			t.nodes++
		}
		c.count += weight
		t.supp[it] += weight
		n = c
	}
}

// ItemSupport returns the support of a single item within the tree.
func (t *PrefixTree) ItemSupport(item tract.Item) int {
	if int(item) < 0 || int(item) >= len(t.supp) {
		return 0
	}
	return t.supp[item]
}

// ItemCount returns the size of the item code space.
func (t *PrefixTree) ItemCount() int {
	return len(t.supp)
}

// Nodes returns the number of item nodes.
func (t *PrefixTree) Nodes() int {
	return t.nodes
}

// Weight implements Representation.
func (t *PrefixTree) Weight() int {
	return t.root.count
}

// Support implements Representation. Paths are ordered by ascending code, so
// every transaction containing items passes through a node of the largest
// item, with the remaining items above it.
func (t *PrefixTree) Support(items itemset.Set) int {
	if len(items) == 0 {
		return t.Weight()
	}
	last := items[len(items)-1]
	if int(last) >= len(t.heads) {
		return 0
	}
	rest := items[:len(items)-1]
	supp := 0
	for n := t.heads[last]; n != nil; n = n.next {
		if onPath(n.parent, rest) {
			supp += n.count
		}
	}
	return supp
}

// onPath reports whether all items (ascending) appear on the path from n up
// to the root.
func onPath(n *fpNode, items itemset.Set) bool {
	i := len(items) - 1
	for ; n != nil && i >= 0; n = n.parent {
		if n.item == items[i] {
			i--
		} else if n.item < items[i] {
			return false
		}
	}
	return i < 0
}

// Conditional builds the tree of prefix paths of item, keeping only items
// whose support in those paths reaches smin.
func (t *PrefixTree) Conditional(item tract.Item, smin int) *PrefixTree {
	counts := make([]int, len(t.supp))
	for n := t.heads[item]; n != nil; n = n.next {
		for p := n.parent; p != t.root && p != nil; p = p.parent {
			counts[p.item] += n.count
		}
	}

	cond := NewPrefixTree(len(t.supp))
	path := make([]tract.Item, 0, 16)
	for n := t.heads[item]; n != nil; n = n.next {
		path = path[:0]
		for p := n.parent; p != t.root && p != nil; p = p.parent {
			if counts[p.item] >= smin {
				path = append(path, p.item)
			}
		}
		for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
			path[i], path[j] = path[j], path[i]
		}
		cond.Insert(path, n.count)
	}
	return cond
}

// Project implements Representation. Unlike Conditional, the projection keeps
// the items below item as well.
func (t *PrefixTree) Project(item tract.Item) Representation {
	proj := NewPrefixTree(len(t.supp))
	if int(item) < 0 || int(item) >= len(t.heads) {
		return proj
	}
	t.walk(func(items []tract.Item, weight int) {
		if !itemset.Set(items).Contains(item) {
			return
		}
		proj.Insert(itemset.Set(items).Without(item), weight)
	})
	return proj
}

// walk reconstructs the stored transactions. A node ends count minus the
// children's counts transactions.
func (t *PrefixTree) walk(fn func(items []tract.Item, weight int)) {
	var rec func(n *fpNode, path []tract.Item)
	rec = func(n *fpNode, path []tract.Item) {
		end := n.count
		for _, c := range n.children {
			end -= c.count
		}
		if end > 0 {
			fn(path, end)
		}
		for _, c := range n.children {
			rec(c, append(path, c.item))
		}
	}
	rec(t.root, nil)
}

// SinglePath returns the nodes of the tree when it consists of one path.
func (t *PrefixTree) SinglePath() ([]PathNode, bool) {
	var path []PathNode
	for n := t.root; len(n.children) > 0; {
		if len(n.children) > 1 {
			return nil, false
		}
		n = n.children[0]
		path = append(path, PathNode{Item: n.item, Count: n.count})
	}
	return path, true
}

// Items returns the codes present in the tree, in descending code order.
func (t *PrefixTree) Items() []tract.Item {
	var items []tract.Item
	for i := len(t.heads) - 1; i >= 0; i-- {
		if t.heads[i] != nil {
			items = append(items, tract.Item(i))
		}
	}
	return items
}
