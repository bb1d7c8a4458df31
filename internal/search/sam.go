package search

import (
	"context"

	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/substrate"
	"github.com/blackwell-systems/fimine/internal/tract"
)

// SAM processes a sorted suffix list by repeatedly splitting off the
// transactions that start with the leading item. The split part, with the
// item removed, is mined recursively; the suffixes are merged back into the
// rest before the next item is split.
type SAM struct{}

func (SAM) Name() string           { return "sam" }
func (SAM) Supports(t Target) bool { return allTargets(t) }
func (SAM) Parallel() bool         { return false }

// Enumerate implements Strategy.
func (SAM) Enumerate(ctx context.Context, db *tract.Database, cfg Config, emit Emit) error {
	fdb, err := prepare(db, cfg)
	if err != nil {
		return err
	}
	return samMine(ctx, cfg, newBudget(cfg), substrate.NewSplitMerge(fdb), nil, emit)
}

func samMine(ctx context.Context, cfg Config, b *budget, list *substrate.SplitMerge, suffix itemset.Set, emit Emit) error {
	for {
		if cancelled(ctx) {
			return ctx.Err()
		}
		item, cond, rest, ok := list.Split()
		if !ok {
			return nil
		}
		list = rest
		if err := b.spend(1); err != nil {
			return err
		}

		supp := cond.Weight()
		if supp < cfg.MinSupport {
			continue
		}
		set := suffix.With(item)
		if !cfg.keep(set, supp) {
			continue
		}
		if err := emit(set, supp); err != nil {
			return err
		}
		if cfg.atMax(len(set)) {
			continue
		}
		if cond = cond.Filter(cfg.MinSupport); cond.Len() > 0 {
			if err := samMine(ctx, cfg, b, cond, set, emit); err != nil {
				return err
			}
		}
	}
}
