package search

import (
	"context"

	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/substrate"
	"github.com/blackwell-systems/fimine/internal/tract"
)

// FPGrowth grows itemsets on prefix trees. For each item of a tree, the
// prefix paths ending in it form a conditional tree that is mined for
// extensions. A tree that degenerates to a single path yields all
// combinations of its nodes directly.
type FPGrowth struct{}

func (FPGrowth) Name() string           { return "fpgrowth" }
func (FPGrowth) Supports(t Target) bool { return allTargets(t) }
func (FPGrowth) Parallel() bool         { return false }

// Enumerate implements Strategy.
func (FPGrowth) Enumerate(ctx context.Context, db *tract.Database, cfg Config, emit Emit) error {
	fdb, err := prepare(db, cfg)
	if err != nil {
		return err
	}
	g := &fpGrower{ctx: ctx, cfg: cfg, b: newBudget(cfg), emit: emit}
	return g.grow(substrate.BuildPrefixTree(fdb), nil)
}

type fpGrower struct {
	ctx  context.Context
	cfg  Config
	b    *budget
	emit Emit
}

// grow mines tree, whose itemsets are all extended by suffix. Items of the
// tree have smaller codes than every item of suffix.
func (g *fpGrower) grow(tree *substrate.PrefixTree, suffix itemset.Set) error {
	if cancelled(g.ctx) {
		return g.ctx.Err()
	}
	if path, ok := tree.SinglePath(); ok {
		return g.combine(path, nil, suffix)
	}

	items := tree.Items()
	if err := g.b.spend(len(items)); err != nil {
		return err
	}
	for _, it := range items {
		supp := tree.ItemSupport(it)
		if supp < g.cfg.MinSupport {
			continue
		}
		set := suffix.With(it)
		if !g.cfg.keep(set, supp) {
			continue
		}
		if err := g.emit(set, supp); err != nil {
			return err
		}
		if g.cfg.atMax(len(set)) {
			continue
		}
		cond := tree.Conditional(it, g.cfg.MinSupport)
		if cond.Nodes() == 0 {
			continue
		}
		if err := g.grow(cond, set); err != nil {
			return err
		}
	}
	return nil
}

// combine emits every non-empty selection of path nodes joined with suffix.
// Counts decrease along the path, so the support of a selection is the count
// of its deepest node.
func (g *fpGrower) combine(path []substrate.PathNode, chosen []tract.Item, suffix itemset.Set) error {
	if err := g.b.spend(len(path)); err != nil {
		return err
	}
	for i, n := range path {
		if n.Count < g.cfg.MinSupport {
			// Deeper nodes cannot have larger counts.
			return nil
		}
		sel := append(chosen[:len(chosen):len(chosen)], n.Item)
		set := itemset.New(append(sel, suffix...)...)
		if !g.cfg.keep(set, n.Count) {
			continue
		}
		if err := g.emit(set, n.Count); err != nil {
			return err
		}
		if g.cfg.atMax(len(set)) {
			continue
		}
		if err := g.combine(path[i+1:], sel, suffix); err != nil {
			return err
		}
	}
	return nil
}
