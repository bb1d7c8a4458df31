package stats

import (
	"errors"
	"fmt"
	"math"

	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/tract"
)

// ErrMissingSupport is returned when a subset support needed for an
// evaluation has not been recorded.
var ErrMissingSupport = errors.New("subset support not recorded")

// SupportLookup returns a recorded itemset support.
type SupportLookup func(set itemset.Set) (int, bool)

// Filter applies an evaluation measure with a threshold.
type Filter struct {
	Measure   Measure
	Agg       Agg
	Threshold float64

	// InvalidateBelowExpected forces the worst value for rules whose joint
	// support does not exceed the support expected under independence.
	InvalidateBelowExpected bool
}

// Active reports whether the filter evaluates anything.
func (f Filter) Active() bool {
	return !f.Measure.None()
}

// Pass applies the threshold in the measure's direction. NaN never passes.
func (f Filter) Pass(v float64) bool {
	if !f.Active() {
		return true
	}
	if math.IsNaN(v) {
		return false
	}
	if f.Measure.Dir == Lower {
		return v <= f.Threshold
	}
	return v >= f.Threshold
}

// Rule evaluates a rule with joint support s, body support b, head support h
// and total weight n.
func (f Filter) Rule(s, b, h, n int) float64 {
	if f.InvalidateBelowExpected && float64(s)*float64(n) <= float64(b)*float64(h) {
		return f.Measure.Worst()
	}
	return f.Measure.Rule(s, b, h, n)
}

// Itemset evaluates set, of support supp, within a database of total weight
// n. itemSupp returns single item supports; lookup returns the supports of
// the subsets I\{i}. The empty set and the no-op measure evaluate to 0.
func (f Filter) Itemset(set itemset.Set, supp, n int, itemSupp func(tract.Item) int, lookup SupportLookup) (float64, error) {
	if !f.Active() || len(set) == 0 {
		return 0, nil
	}

	switch f.Measure.Name {
	case "allconf":
		top := 0
		for _, it := range set {
			if s := itemSupp(it); s > top {
				top = s
			}
		}
		if top == 0 {
			return 0, nil
		}
		return float64(supp) / float64(top), nil
	case "ldratio":
		if supp <= 0 || n <= 0 {
			return math.Inf(-1), nil
		}
		// log2 of supp/n over the product of the item frequencies.
		v := math.Log2(float64(supp) / float64(n))
		for _, it := range set {
			v -= math.Log2(float64(itemSupp(it)) / float64(n))
		}
		return v, nil
	}

	heads := set
	if f.Agg == AggNone {
		heads = set[len(set)-1:]
	}
	var acc float64
	for k, head := range heads {
		body := set.Without(head)
		b := n
		if len(body) > 0 {
			var ok bool
			if lookup != nil {
				b, ok = lookup(body)
			}
			if !ok {
				return 0, fmt.Errorf("%w: %v", ErrMissingSupport, body)
			}
		}
		v := f.Rule(supp, b, itemSupp(head), n)
		switch {
		case k == 0:
			acc = v
		case f.Agg == AggMin:
			acc = math.Min(acc, v)
		case f.Agg == AggMax:
			acc = math.Max(acc, v)
		default:
			acc += v
		}
	}
	if f.Agg == AggAvg {
		acc /= float64(len(heads))
	}
	return acc, nil
}

// Keep returns a search predicate that prunes itemsets failing the filter.
// It is only exact for monotone measures, whose evaluation needs nothing but
// item supports.
func (f Filter) Keep(n int, itemSupp func(tract.Item) int) func(set itemset.Set, supp int) bool {
	return func(set itemset.Set, supp int) bool {
		v, err := f.Itemset(set, supp, n, itemSupp, nil)
		return err == nil && f.Pass(v)
	}
}

// Border holds per-size minimum supports: an itemset of size z needs at
// least Border[z]. Sizes beyond the border are unconstrained.
type Border []int

// Pass reports whether an itemset of the given size and support meets the
// border.
func (b Border) Pass(size, supp int) bool {
	if size < 0 || size >= len(b) {
		return true
	}
	return supp >= b[size]
}
