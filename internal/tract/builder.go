package tract

import (
	"fmt"
	"sort"
	"strconv"
)

// Builder collects raw transactions and encodes them into a Database.
type Builder struct {
	rows   [][]int // label indices per transaction
	wgts   []int
	labels []string
	index  map[string]int
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{index: make(map[string]int)}
}

// Add appends a transaction. Duplicate labels are collapsed; empty labels are
// ignored. The weight must be positive.
func (b *Builder) Add(labels []string, weight int) error {
	if weight <= 0 {
		return fmt.Errorf("%w: transaction %d has non-positive weight %d",
			ErrInvalidInput, len(b.rows)+1, weight)
	}

	row := make([]int, 0, len(labels))
	seen := make(map[int]struct{}, len(labels))
	for _, l := range labels {
		if l == "" {
			continue
		}
		idx, ok := b.index[l]
		if !ok {
			idx = len(b.labels)
			b.index[l] = idx
			b.labels = append(b.labels, l)
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		row = append(row, idx)
	}

	b.rows = append(b.rows, row)
	b.wgts = append(b.wgts, weight)
	return nil
}

// Len returns the number of transactions added so far.
func (b *Builder) Len() int {
	return len(b.rows)
}

// Build recodes the collected transactions into canonical item order.
func (b *Builder) Build() (*Database, error) {
	if len(b.rows) == 0 {
		return nil, ErrNoTransactions
	}

	counts := make([]int, len(b.labels))
	total := 0
	for i, row := range b.rows {
		w := b.wgts[i]
		total += w
		for _, idx := range row {
			counts[idx] += w
		}
	}

	order := make([]int, len(b.labels))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		a, c := order[i], order[j]
		if counts[a] != counts[c] {
			return counts[a] > counts[c]
		}
		return labelLess(b.labels[a], b.labels[c])
	})

	recode := make([]Item, len(b.labels))
	table := &ItemTable{
		labels: make([]string, len(order)),
		codes:  make(map[string]Item, len(order)),
	}
	support := make([]int, len(order))
	for code, idx := range order {
		recode[idx] = Item(code)
		table.labels[code] = b.labels[idx]
		table.codes[b.labels[idx]] = Item(code)
		support[code] = counts[idx]
	}

	tracts := make([]Transaction, len(b.rows))
	for i, row := range b.rows {
		items := make([]Item, len(row))
		for j, idx := range row {
			items[j] = recode[idx]
		}
		sortItems(items)
		tracts[i] = Transaction{Items: items, Weight: b.wgts[i]}
	}

	return &Database{tracts: tracts, support: support, total: total, table: table}, nil
}

// Encode builds a database from label slices, each with weight 1.
func Encode(raw [][]string) (*Database, error) {
	b := NewBuilder()
	for _, t := range raw {
		if err := b.Add(t, 1); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// EncodeInts builds a database from integer items, each transaction with
// weight 1. Labels are the decimal representation of the integers.
func EncodeInts(raw [][]int) (*Database, error) {
	b := NewBuilder()
	for _, t := range raw {
		labels := make([]string, len(t))
		for i, v := range t {
			labels[i] = strconv.Itoa(v)
		}
		if err := b.Add(labels, 1); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// Filter returns a copy of the database without items whose support is below
// smin. Remaining items are recoded densely, keeping their relative order.
// Transactions that become empty still count towards the total weight.
func (db *Database) Filter(smin int) *Database {
	keep := 0
	for _, s := range db.support {
		if s >= smin {
			keep++
		}
	}
	// Codes are sorted by descending support, so frequent items form a prefix.
	if keep == len(db.support) {
		return db
	}

	table := &ItemTable{
		labels: append([]string(nil), db.table.labels[:keep]...),
		codes:  make(map[string]Item, keep),
	}
	for i, l := range table.labels {
		table.codes[l] = Item(i)
	}

	tracts := make([]Transaction, len(db.tracts))
	for i, t := range db.tracts {
		n := 0
		for n < len(t.Items) && int(t.Items[n]) < keep {
			n++
		}
		tracts[i] = Transaction{Items: t.Items[:n:n], Weight: t.Weight}
	}

	return &Database{
		tracts:  tracts,
		support: append([]int(nil), db.support[:keep]...),
		total:   db.total,
		table:   table,
	}
}

// labelLess orders labels numerically when both are integers.
func labelLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	if (aerr == nil) != (berr == nil) {
		return aerr == nil
	}
	return a < b
}

func sortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })
}
