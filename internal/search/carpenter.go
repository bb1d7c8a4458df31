package search

import (
	"context"

	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/substrate"
	"github.com/blackwell-systems/fimine/internal/tract"
)

// Carpenter enumerates sets of transactions instead of sets of items. The
// intersection of a transaction set is a closed itemset, and its support is
// the weight of all transactions containing it. A transaction set is only
// expanded into its closure when no transaction below the added one joins
// it, so every closed itemset is reached once. This suits databases with few
// long transactions.
//
// Carpenter emits only closed itemsets, so it serves the closed and maximal
// targets.
type Carpenter struct{}

func (Carpenter) Name() string   { return "carpenter" }
func (Carpenter) Parallel() bool { return false }

func (Carpenter) Supports(t Target) bool {
	return t == Closed || t == Maximal
}

type carpenter struct {
	ctx  context.Context
	cfg  Config
	b    *budget
	v    *substrate.Vertical
	rows []tract.Transaction
	tail []int // tail[j] is the weight of rows j and above
	emit Emit
}

// Enumerate implements Strategy. It emits the frequent closed itemsets of
// size 1..MaxSize.
func (Carpenter) Enumerate(ctx context.Context, db *tract.Database, cfg Config, emit Emit) error {
	fdb, err := prepare(db, cfg)
	if err != nil {
		return err
	}
	if fdb.ItemCount() == 0 {
		return nil
	}
	c := &carpenter{
		ctx:  ctx,
		cfg:  cfg,
		b:    newBudget(cfg),
		v:    substrate.NewVertical(fdb, substrate.TIDs),
		rows: fdb.Transactions(),
		emit: emit,
	}
	c.tail = make([]int, len(c.rows)+1)
	for j := len(c.rows) - 1; j >= 0; j-- {
		c.tail[j] = c.tail[j+1] + c.rows[j].Weight
	}

	all := make(itemset.Set, fdb.ItemCount())
	for i := range all {
		all[i] = tract.Item(i)
	}
	root := c.occurrences(all)
	if err := c.report(all, root.Support()); err != nil {
		return err
	}
	return c.expand(all, root.TIDs(), -1)
}

// expand adds each row above core that is not yet in rows, the transaction
// set whose intersection is set.
func (c *carpenter) expand(set itemset.Set, rows []int32, core int) error {
	next := 0
	for j := core + 1; j < len(c.rows); j++ {
		if cancelled(c.ctx) {
			return c.ctx.Err()
		}
		for next < len(rows) && int(rows[next]) < j {
			next++
		}
		if next < len(rows) && int(rows[next]) == j {
			continue
		}
		if err := c.b.spend(1); err != nil {
			return err
		}

		sub := intersect(set, itemset.Set(c.rows[j].Items))
		if len(sub) == 0 {
			continue
		}
		occ := c.occurrences(sub)
		closure := occ.TIDs()
		if !samePrefix(rows, closure, j) {
			continue
		}
		// Deeper sets keep the rows up to j and can only add rows above it.
		below := 0
		for _, r := range closure {
			if int(r) > j {
				break
			}
			below += c.rows[r].Weight
		}
		if below+c.tail[j+1] < c.cfg.MinSupport {
			continue
		}
		if err := c.report(sub, occ.Support()); err != nil {
			return err
		}
		if err := c.expand(sub, closure, j); err != nil {
			return err
		}
	}
	return nil
}

func (c *carpenter) report(set itemset.Set, supp int) error {
	if supp < c.cfg.MinSupport || len(set) == 0 {
		return nil
	}
	if c.cfg.MaxSize > 0 && len(set) > c.cfg.MaxSize {
		return nil
	}
	if !c.cfg.keep(set, supp) {
		return nil
	}
	return c.emit(set, supp)
}

func (c *carpenter) occurrences(set itemset.Set) *substrate.TIDList {
	acc := c.v.Occurrences(set[0])
	for _, it := range set[1:] {
		acc = acc.Intersect(c.v.Occurrences(it))
	}
	return acc.(*substrate.TIDList)
}

// samePrefix reports whether a and b hold the same rows below j.
func samePrefix(a, b []int32, j int) bool {
	i := 0
	for ; i < len(a) && int(a[i]) < j; i++ {
		if i >= len(b) || a[i] != b[i] {
			return false
		}
	}
	return i == len(b) || int(b[i]) >= j
}
