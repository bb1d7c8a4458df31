// Package rules derives association rules from frequent itemsets.
//
// A rule body -> head is generated from a frequent set I by splitting it
// into a non-empty body and a non-empty head. Its support is supp(I) and its
// confidence supp(I)/supp(body). Supports are never recounted: they come from
// the support index filled during the search.
package rules

import (
	"fmt"
	"strings"

	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/stats"
)

// HeadMode selects the size of rule heads.
type HeadMode int

const (
	// SingleHead generates rules with exactly one head item.
	SingleHead HeadMode = iota
	// MultiHead grows heads level-wise as long as confidence allows.
	MultiHead
)

func (m HeadMode) String() string {
	if m == MultiHead {
		return "multi"
	}
	return "single"
}

// ParseHeadMode accepts "single" or "multi".
func ParseHeadMode(s string) (HeadMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single", "1":
		return SingleHead, nil
	case "multi", "m":
		return MultiHead, nil
	}
	return 0, fmt.Errorf("unknown head mode %q", s)
}

// Rule is an association rule body -> head.
type Rule struct {
	Body        itemset.Set
	Head        itemset.Set
	Support     int
	BodySupport int
	HeadSupport int
	Confidence  float64
	Lift        float64

	// Value is the evaluation measure of the generator's filter.
	Value float64
}

// Generator turns frequent itemsets into rules.
type Generator struct {
	MinConfidence float64
	Heads         HeadMode
	Eval          stats.Filter

	// MinSupport is the minimum rule support; sets below it yield no rules.
	MinSupport int
}

// Generate emits the rules of set, whose support is supp, in a database of
// total weight n. lookup must know every proper subset of set.
func (g Generator) Generate(set itemset.Set, supp int, lookup stats.SupportLookup, n int, emit func(Rule) error) error {
	if len(set) < 2 || supp < g.MinSupport {
		return nil
	}

	// Heads of the current level whose rules reach the minimum confidence.
	var level []itemset.Set
	for _, it := range set {
		head := itemset.Set{it}
		ok, err := g.try(set, head, supp, lookup, n, emit)
		if err != nil {
			return err
		}
		if ok {
			level = append(level, head)
		}
	}
	if g.Heads != MultiHead {
		return nil
	}

	for size := 2; size < len(set) && len(level) > 1; size++ {
		passed := make(map[string]bool, len(level))
		for _, h := range level {
			passed[h.Key()] = true
		}
		var next []itemset.Set
		for i := 0; i < len(level); i++ {
			for j := i + 1; j < len(level); j++ {
				a, b := level[i], level[j]
				if !samePrefix(a, b) {
					break
				}
				head := a.With(b[len(b)-1])
				if !subsetsPassed(head, passed) {
					continue
				}
				ok, err := g.try(set, head, supp, lookup, n, emit)
				if err != nil {
					return err
				}
				if ok {
					next = append(next, head)
				}
			}
		}
		level = next
	}
	return nil
}

// try evaluates body -> head with body = set \ head. It reports whether the
// rule reaches the minimum confidence; the rule is emitted only if it also
// passes the evaluation filter.
func (g Generator) try(set, head itemset.Set, supp int, lookup stats.SupportLookup, n int, emit func(Rule) error) (bool, error) {
	body := set.Minus(head)
	b, ok := lookup(body)
	if !ok {
		return false, fmt.Errorf("%w: body %v of %v", stats.ErrMissingSupport, body, set)
	}
	h, ok := lookup(head)
	if !ok {
		return false, fmt.Errorf("%w: head %v of %v", stats.ErrMissingSupport, head, set)
	}
	if b <= 0 {
		return false, nil
	}
	conf := float64(supp) / float64(b)
	if conf < g.MinConfidence {
		return false, nil
	}

	r := Rule{
		Body:        body,
		Head:        head,
		Support:     supp,
		BodySupport: b,
		HeadSupport: h,
		Confidence:  conf,
	}
	if h > 0 {
		r.Lift = float64(supp) * float64(n) / (float64(b) * float64(h))
	}
	r.Value = g.Eval.Rule(supp, b, h, n)
	if !g.Eval.Pass(r.Value) {
		return true, nil
	}
	return true, emit(r)
}

// samePrefix reports whether two sorted sets of equal size differ only in
// their last item.
func samePrefix(a, b itemset.Set) bool {
	for i := 0; i < len(a)-1; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func subsetsPassed(head itemset.Set, passed map[string]bool) bool {
	for _, it := range head {
		if !passed[head.Without(it).Key()] {
			return false
		}
	}
	return true
}
