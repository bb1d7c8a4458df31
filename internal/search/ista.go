package search

import (
	"context"
	"sort"

	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/tract"
)

// ISTA finds closed itemsets by cumulative intersection. It keeps a
// repository of every intersection of the transactions seen so far; those
// are exactly the closed itemsets of the prefix of the database. Each new
// transaction is intersected with every repository entry.
//
// ISTA emits only closed itemsets, so it serves the closed and maximal
// targets.
type ISTA struct{}

func (ISTA) Name() string   { return "ista" }
func (ISTA) Parallel() bool { return false }

func (ISTA) Supports(t Target) bool {
	return t == Closed || t == Maximal
}

type istaEntry struct {
	set  itemset.Set
	supp int
}

// Enumerate implements Strategy. It emits the frequent closed itemsets of
// size 1..MaxSize; Keep is not consulted.
func (ISTA) Enumerate(ctx context.Context, db *tract.Database, cfg Config, emit Emit) error {
	fdb, err := prepare(db, cfg)
	if err != nil {
		return err
	}
	b := newBudget(cfg)
	repo := make(map[string]*istaEntry)

	type update struct {
		set itemset.Set
		old int
	}
	for i, t := range fdb.Transactions() {
		if i%64 == 0 && cancelled(ctx) {
			return ctx.Err()
		}
		if len(t.Items) == 0 {
			continue
		}
		ts := itemset.Set(t.Items)

		// The largest previous support among entries intersecting to x is
		// the support of x before this transaction.
		updates := map[string]*update{ts.Key(): {set: ts}}
		for _, e := range repo {
			x := intersect(e.set, ts)
			if len(x) == 0 {
				continue
			}
			k := x.Key()
			u, ok := updates[k]
			if !ok {
				u = &update{set: x}
				updates[k] = u
			}
			if e.supp > u.old {
				u.old = e.supp
			}
		}

		added := 0
		for k, u := range updates {
			if e, ok := repo[k]; ok {
				e.supp = u.old + t.Weight
				continue
			}
			repo[k] = &istaEntry{set: u.set, supp: u.old + t.Weight}
			added++
		}
		if err := b.spend(added); err != nil {
			return err
		}
	}

	out := make([]*istaEntry, 0, len(repo))
	for _, e := range repo {
		if e.supp >= cfg.MinSupport && (cfg.MaxSize <= 0 || len(e.set) <= cfg.MaxSize) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return itemset.Less(out[i].set, out[j].set) })
	for _, e := range out {
		if err := emit(e.set, e.supp); err != nil {
			return err
		}
	}
	return nil
}

// intersect returns the items present in both sorted sets.
func intersect(a, b itemset.Set) itemset.Set {
	out := make(itemset.Set, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
