// Package tract holds the transaction database mined by fimine.
//
// Raw transactions are sequences of item labels. The Builder deduplicates
// them, counts item supports and recodes every label to a dense integer code
// in canonical order: descending support, ties broken by label. Code 0 is
// therefore the most frequent item. A Database is built once per mining run
// and is read-only afterwards.
package tract

import (
	"errors"
	"fmt"
)

// Item is a dense item code in canonical order.
type Item int32

// ErrNoTransactions is returned when a database would contain no transactions.
var ErrNoTransactions = errors.New("no transactions")

// ErrInvalidInput marks malformed transaction data.
var ErrInvalidInput = errors.New("invalid transaction data")

// Transaction is a duplicate-free set of items, sorted by ascending code,
// together with its multiplicity.
type Transaction struct {
	Items  []Item
	Weight int
}

// Contains reports whether the transaction holds item.
func (t Transaction) Contains(item Item) bool {
	lo, hi := 0, len(t.Items)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if t.Items[mid] < item {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo < len(t.Items) && t.Items[lo] == item
}

// ItemTable maps item codes back to their original labels.
type ItemTable struct {
	labels []string
	codes  map[string]Item
}

// Label returns the label of an item code.
func (t *ItemTable) Label(item Item) string {
	if int(item) < 0 || int(item) >= len(t.labels) {
		return fmt.Sprintf("#%d", item)
	}
	return t.labels[item]
}

// Code returns the code of a label, if the label survived recoding.
func (t *ItemTable) Code(label string) (Item, bool) {
	c, ok := t.codes[label]
	return c, ok
}

// Len returns the number of items in the table.
func (t *ItemTable) Len() int {
	return len(t.labels)
}

// Database is an encoded transaction database.
type Database struct {
	tracts  []Transaction
	support []int
	total   int
	table   *ItemTable
}

// Len returns the number of (merged) transactions.
func (db *Database) Len() int {
	return len(db.tracts)
}

// TotalWeight returns the summed transaction weight, the reference for
// relative supports.
func (db *Database) TotalWeight() int {
	return db.total
}

// ItemCount returns the number of distinct items.
func (db *Database) ItemCount() int {
	return len(db.support)
}

// Support returns the absolute support of a single item.
func (db *Database) Support(item Item) int {
	return db.support[item]
}

// Supports returns the per-item supports indexed by code. The slice must not
// be modified.
func (db *Database) Supports() []int {
	return db.support
}

// Transactions returns the transactions. The slice must not be modified.
func (db *Database) Transactions() []Transaction {
	return db.tracts
}

// Table returns the code/label table.
func (db *Database) Table() *ItemTable {
	return db.table
}

// Unweighted reports whether every transaction has weight 1.
func (db *Database) Unweighted() bool {
	return db.total == len(db.tracts)
}

// Labels decodes item codes to labels, preserving order.
func (db *Database) Labels(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = db.table.Label(it)
	}
	return out
}
