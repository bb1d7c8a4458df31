package search

import (
	"context"
	"slices"

	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/tract"
)

// Relim mines by recursive elimination. Transactions are kept in one list
// per leading item, with items in descending code order. The list of the
// highest remaining item holds every transaction that still contains it: its
// weight is the item's support and its suffixes form the projection. After
// the projection is mined the suffixes move to the list of their next item
// and the item is gone.
type Relim struct{}

func (Relim) Name() string           { return "relim" }
func (Relim) Supports(t Target) bool { return allTargets(t) }
func (Relim) Parallel() bool         { return false }

// relimList holds the transactions led by one item, with the leader removed.
// Only non-empty suffixes are stored; weight counts the empty ones too.
type relimList struct {
	weight   int
	suffixes []relimSuffix
}

type relimSuffix struct {
	items  []tract.Item // descending
	weight int
}

type relimLists []relimList

// add files a suffix under its leading item.
func (l relimLists) add(items []tract.Item, weight int) {
	dst := &l[items[0]]
	dst.weight += weight
	if len(items) > 1 {
		dst.suffixes = append(dst.suffixes, relimSuffix{items: items[1:], weight: weight})
	}
}

// Enumerate implements Strategy.
func (Relim) Enumerate(ctx context.Context, db *tract.Database, cfg Config, emit Emit) error {
	fdb, err := prepare(db, cfg)
	if err != nil {
		return err
	}
	lists := make(relimLists, fdb.ItemCount())
	for _, t := range fdb.Transactions() {
		if len(t.Items) == 0 {
			continue
		}
		items := slices.Clone(t.Items)
		slices.Reverse(items)
		lists.add(items, t.Weight)
	}
	return relimMine(ctx, cfg, newBudget(cfg), lists, nil, emit)
}

// relimMine consumes lists, eliminating items from the highest code down.
func relimMine(ctx context.Context, cfg Config, b *budget, lists relimLists, prefix itemset.Set, emit Emit) error {
	for k := len(lists) - 1; k >= 0; k-- {
		if cancelled(ctx) {
			return ctx.Err()
		}
		if err := b.spend(1); err != nil {
			return err
		}
		cur := lists[k]
		lists[k] = relimList{}

		if cur.weight >= cfg.MinSupport {
			set := prefix.With(tract.Item(k))
			if cfg.keep(set, cur.weight) {
				if err := emit(set, cur.weight); err != nil {
					return err
				}
				if !cfg.atMax(len(set)) && len(cur.suffixes) > 0 {
					proj := make(relimLists, k)
					for _, s := range cur.suffixes {
						proj.add(s.items, s.weight)
					}
					if err := relimMine(ctx, cfg, b, proj, set, emit); err != nil {
						return err
					}
				}
			}
		}

		for _, s := range cur.suffixes {
			lists.add(s.items, s.weight)
		}
	}
	return nil
}
