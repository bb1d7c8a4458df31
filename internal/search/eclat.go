package search

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/substrate"
	"github.com/blackwell-systems/fimine/internal/tract"
)

// Eclat searches depth first on vertical occurrence sets. Every extension of
// a prefix is counted by intersecting the prefix's occurrence set with the
// extension item's. Variant "tids" (default) uses transaction id lists,
// "bits" uses bit vectors.
type Eclat struct{}

func (Eclat) Name() string           { return "eclat" }
func (Eclat) Supports(t Target) bool { return allTargets(t) }
func (Eclat) Parallel() bool         { return true }

type eclatExt struct {
	item tract.Item
	occ  substrate.Occurrences
}

// Enumerate implements Strategy.
func (Eclat) Enumerate(ctx context.Context, db *tract.Database, cfg Config, emit Emit) error {
	fdb, err := prepare(db, cfg)
	if err != nil {
		return err
	}
	enc := substrate.TIDs
	switch cfg.Variant {
	case "", "tids":
	case "bits":
		enc = substrate.Bits
	default:
		return fmt.Errorf("unknown eclat variant %q", cfg.Variant)
	}

	v := substrate.NewVertical(fdb, enc)
	b := newBudget(cfg)
	if err := b.spend(fdb.ItemCount()); err != nil {
		return err
	}

	var top []eclatExt
	for i := 0; i < fdb.ItemCount(); i++ {
		it := tract.Item(i)
		occ := v.Occurrences(it)
		if occ.Support() < cfg.MinSupport || !cfg.keep(itemset.Set{it}, occ.Support()) {
			continue
		}
		top = append(top, eclatExt{item: it, occ: occ})
	}

	if cfg.Workers <= 1 {
		return eclatMine(ctx, cfg, b, nil, top, emit)
	}

	var mu sync.Mutex
	locked := func(set itemset.Set, supp int) error {
		mu.Lock()
		defer mu.Unlock()
		return emit(set, supp)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := range top {
		g.Go(func() error {
			return eclatMine(gctx, cfg, b, nil, top[i:i+1], locked, top[i+1:]...)
		})
	}
	return g.Wait()
}

// eclatMine emits every ext as an extension of prefix and recurses. Each ext
// is combined with the exts following it; extra holds further combination
// partners when exts is a single branch split off for a worker.
func eclatMine(ctx context.Context, cfg Config, b *budget, prefix itemset.Set, exts []eclatExt, emit Emit, extra ...eclatExt) error {
	for i, e := range exts {
		if cancelled(ctx) {
			return ctx.Err()
		}
		set := make(itemset.Set, len(prefix)+1)
		copy(set, prefix)
		set[len(prefix)] = e.item
		if err := emit(set, e.occ.Support()); err != nil {
			return err
		}
		if cfg.atMax(len(set)) {
			continue
		}

		partners := exts[i+1:]
		if len(extra) > 0 {
			partners = append(append([]eclatExt(nil), partners...), extra...)
		}
		if err := b.spend(len(partners)); err != nil {
			return err
		}
		var children []eclatExt
		for _, p := range partners {
			occ := e.occ.Intersect(p.occ)
			supp := occ.Support()
			if supp < cfg.MinSupport {
				continue
			}
			if !cfg.keep(set.With(p.item), supp) {
				continue
			}
			children = append(children, eclatExt{item: p.item, occ: occ})
		}
		if len(children) > 0 {
			if err := eclatMine(ctx, cfg, b, set, children, emit); err != nil {
				return err
			}
		}
	}
	return nil
}
