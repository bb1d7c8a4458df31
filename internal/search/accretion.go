package search

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/substrate"
	"github.com/blackwell-systems/fimine/internal/tract"
)

// Accretion grows itemsets one significant item at a time. Every frequent
// item starts a set. A set S is extended by an item x only when
// Config.Significance accepts the association between S and x, and at most
// MaxExt of the most significant extensions are followed. Unlike the other
// strategies the items of a set may be added in any order, so a set is
// reported on its first discovery and not searched again.
//
// Without a significance test Accretion emits the plain frequent family.
type Accretion struct{}

func (Accretion) Name() string   { return "accretion" }
func (Accretion) Parallel() bool { return false }

func (Accretion) Supports(t Target) bool {
	return t == Frequent || t == Maximal
}

type accExt struct {
	item  tract.Item
	occ   substrate.Occurrences
	value float64
}

type accretor struct {
	ctx   context.Context
	cfg   Config
	b     *budget
	v     *substrate.Vertical
	total int
	seen  map[string]struct{}
	emit  EmitValue
}

// Enumerate implements Strategy.
func (a Accretion) Enumerate(ctx context.Context, db *tract.Database, cfg Config, emit Emit) error {
	return a.EnumerateValues(ctx, db, cfg, func(set itemset.Set, supp int, _ float64) error {
		return emit(set, supp)
	})
}

// EnumerateValues implements ValueEnumerator. Single items carry value 0;
// every larger set carries the value of the test that accepted the item
// completing it.
func (Accretion) EnumerateValues(ctx context.Context, db *tract.Database, cfg Config, emit EmitValue) error {
	fdb, err := prepare(db, cfg)
	if err != nil {
		return err
	}
	a := &accretor{
		ctx:   ctx,
		cfg:   cfg,
		b:     newBudget(cfg),
		v:     substrate.NewVertical(fdb, substrate.TIDs),
		total: fdb.TotalWeight(),
		seen:  make(map[string]struct{}),
		emit:  emit,
	}
	if err := a.b.spend(fdb.ItemCount()); err != nil {
		return err
	}
	var top []accExt
	for i := 0; i < fdb.ItemCount(); i++ {
		it := tract.Item(i)
		if occ := a.v.Occurrences(it); occ.Support() >= cfg.MinSupport {
			top = append(top, accExt{item: it, occ: occ})
		}
	}
	return a.grow(nil, top)
}

// grow follows the accepted extensions of set, most significant first.
func (a *accretor) grow(set itemset.Set, exts []accExt) error {
	slices.SortFunc(exts, func(x, y accExt) int {
		if c := cmp.Compare(x.value, y.value); c != 0 {
			return c
		}
		if c := cmp.Compare(y.occ.Support(), x.occ.Support()); c != 0 {
			return c
		}
		return cmp.Compare(x.item, y.item)
	})
	limit := len(exts)
	if len(set) > 0 && a.cfg.Significance.MaxExt > 0 {
		limit = min(limit, a.cfg.Significance.MaxExt)
	}

	for _, e := range exts[:limit] {
		if cancelled(a.ctx) {
			return a.ctx.Err()
		}
		if !a.cfg.Significance.accepts(e.value) {
			break
		}
		next := set.With(e.item)
		key := next.Key()
		if _, dup := a.seen[key]; dup {
			continue
		}
		a.seen[key] = struct{}{}

		supp := e.occ.Support()
		if !a.cfg.keep(next, supp) {
			continue
		}
		if err := a.emit(next, supp, e.value); err != nil {
			return err
		}
		if a.cfg.atMax(len(next)) {
			continue
		}

		if err := a.b.spend(len(exts) - 1); err != nil {
			return err
		}
		var children []accExt
		for _, o := range exts {
			if o.item == e.item {
				continue
			}
			occ := e.occ.Intersect(o.occ)
			s := occ.Support()
			if s < a.cfg.MinSupport {
				continue
			}
			v := a.cfg.Significance.value(s, supp, a.v.Occurrences(o.item).Support(), a.total)
			if math.IsNaN(v) {
				v = math.Inf(1)
			}
			children = append(children, accExt{item: o.item, occ: occ, value: v})
		}
		if len(children) > 0 {
			if err := a.grow(next, children); err != nil {
				return err
			}
		}
	}
	return nil
}
