package search

import (
	"context"

	"github.com/blackwell-systems/fimine/internal/substrate"
	"github.com/blackwell-systems/fimine/internal/tract"
)

// countPoll is the number of transactions counted between cancellation
// checks.
const countPoll = 1024

// Apriori counts candidates level by level. Candidates of size k+1 are built
// by joining frequent siblings of the itemset tree; a candidate with an
// infrequent subset of size k is dropped before counting.
type Apriori struct{}

func (Apriori) Name() string           { return "apriori" }
func (Apriori) Supports(t Target) bool { return allTargets(t) }
func (Apriori) Parallel() bool         { return false }

// Enumerate implements Strategy.
func (Apriori) Enumerate(ctx context.Context, db *tract.Database, cfg Config, emit Emit) error {
	fdb, err := prepare(db, cfg)
	if err != nil {
		return err
	}
	b := newBudget(cfg)
	h := substrate.NewHorizontal(fdb)
	tree := substrate.NewISTree(h.Weight(), fdb.Supports(), cfg.MinSupport)
	if err := b.spend(fdb.ItemCount()); err != nil {
		return err
	}

	if tree.Depth() == 0 || tree.Prune(cfg.keep) == 0 {
		return nil
	}

	for {
		if err := tree.Level(emit); err != nil {
			return err
		}
		if cfg.atMax(tree.Depth()) {
			return nil
		}
		if cancelled(ctx) {
			return ctx.Err()
		}

		n := tree.AddLevel()
		if n == 0 {
			return nil
		}
		if err := b.spend(n); err != nil {
			return err
		}
		for i, t := range h.Transactions() {
			if i%countPoll == 0 && cancelled(ctx) {
				return ctx.Err()
			}
			tree.Count(t.Items, t.Weight)
		}
		if tree.Prune(cfg.keep) == 0 {
			return nil
		}
	}
}
