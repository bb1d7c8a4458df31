package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/substrate"
	"github.com/blackwell-systems/fimine/internal/tract"
)

// expectedRatio is small when s exceeds the support expected under
// independence.
func expectedRatio(s, b, h, n int) float64 {
	return float64(b) * float64(h) / (float64(s) * float64(n))
}

// accretionFamily grows the accepted family breadth first, straight from
// the acceptance rule.
func accretionFamily(db *tract.Database, smin int, sig Significance) map[string]int {
	n := db.TotalWeight()
	items := make([]int, db.ItemCount())
	out := make(map[string]int)
	var queue []itemset.Set
	for i := range items {
		items[i] = substrate.Count(db, itemset.Set{tract.Item(i)})
		if items[i] >= smin {
			s := itemset.Set{tract.Item(i)}
			out[s.Key()] = items[i]
			queue = append(queue, s)
		}
	}

	type cand struct {
		item  tract.Item
		supp  int
		value float64
	}
	for len(queue) > 0 {
		set := queue[0]
		queue = queue[1:]
		supp := out[set.Key()]
		var cands []cand
		for i := range items {
			it := tract.Item(i)
			if set.Contains(it) {
				continue
			}
			if s := substrate.Count(db, set.With(it)); s >= smin {
				cands = append(cands, cand{it, s, sig.Test(s, supp, items[i], n)})
			}
		}
		slices.SortFunc(cands, func(x, y cand) int {
			if c := cmp.Compare(x.value, y.value); c != 0 {
				return c
			}
			if c := cmp.Compare(y.supp, x.supp); c != 0 {
				return c
			}
			return cmp.Compare(x.item, y.item)
		})
		if sig.MaxExt > 0 && len(cands) > sig.MaxExt {
			cands = cands[:sig.MaxExt]
		}
		for _, c := range cands {
			if c.value > sig.Level {
				break
			}
			next := set.With(c.item)
			if _, ok := out[next.Key()]; !ok {
				out[next.Key()] = c.supp
				queue = append(queue, next)
			}
		}
	}
	return out
}

func TestAccretion_SignificantExtensions(t *testing.T) {
	tests := []struct {
		seed   uint64
		smin   int
		level  float64
		maxExt int
	}{
		{seed: 1, smin: 5, level: 0.95},
		{seed: 2, smin: 5, level: 0.9, maxExt: 2},
		{seed: 3, smin: 3, level: 0.98, maxExt: 1},
		{seed: 4, smin: 5, level: 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("seed%d", tt.seed), func(t *testing.T) {
			db := randomDB(t, tt.seed, 120, 8)
			sig := Significance{Test: expectedRatio, Level: tt.level, MaxExt: tt.maxExt}
			want := accretionFamily(db, tt.smin, sig)

			got := make(map[string]int)
			err := Accretion{}.EnumerateValues(context.Background(), db, Config{MinSupport: tt.smin, Significance: sig},
				func(set itemset.Set, supp int, v float64) error {
					if _, dup := got[set.Key()]; dup {
						return fmt.Errorf("itemset %v emitted twice", set)
					}
					got[set.Key()] = supp
					if len(set) == 1 && v != 0 {
						t.Errorf("single item %v has value %v, want 0", set, v)
					}
					if v > tt.level {
						t.Errorf("itemset %v admitted with value %v above level %v", set, v, tt.level)
					}
					return nil
				})
			if err != nil {
				t.Fatalf("EnumerateValues() error = %v", err)
			}
			diff(t, "accretion", got, want)
		})
	}
}

func TestAccretion_StrictLevelKeepsSingles(t *testing.T) {
	db := exampleDB(t)
	sig := Significance{Test: func(int, int, int, int) float64 { return 1 }, Level: 0.5}
	got := collect(t, Accretion{}, db, Config{MinSupport: 2, Significance: sig})
	for k := range got {
		if len(k) != 4 {
			t.Errorf("itemset %x admitted past a rejecting test", k)
		}
	}
	if len(got) != 3 {
		t.Errorf("%d itemsets, want the 3 frequent items", len(got))
	}
}

func TestAccretion_Supports(t *testing.T) {
	s := Accretion{}
	for target, want := range map[Target]bool{Frequent: true, Maximal: true, Closed: false, Generators: false, Rules: false} {
		if got := s.Supports(target); got != want {
			t.Errorf("Supports(%s) = %v, want %v", target, got, want)
		}
	}
	var _ ValueEnumerator = s
}
