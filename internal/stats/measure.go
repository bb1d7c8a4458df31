// Package stats scores itemsets and rules against independence and holds the
// pattern spectra used as baselines for significance filtering.
//
// Rule measures are computed from the 2x2 contingency table of a rule
// body -> head, given by the joint support s, the body support b, the head
// support h and the total weight n. Itemset measures aggregate the rules
// I\{i} -> i over the items of the set.
package stats

import (
	"fmt"
	"math"
	"strings"
)

// Direction tells whether larger or smaller values are better.
type Direction int

const (
	Higher Direction = 1
	Lower  Direction = -1
)

// Measure is an evaluation measure.
type Measure struct {
	Code byte
	Name string
	Dir  Direction

	// Monotone is true when the value never increases as an itemset grows,
	// so the measure can prune the search like minimum support.
	Monotone bool

	rule func(s, b, h, n float64) float64
}

// None reports whether this is the no-op measure.
func (m Measure) None() bool {
	return m.Code == 'x'
}

// Rule evaluates the measure for a rule with joint support s, body support
// b, head support h and total weight n.
func (m Measure) Rule(s, b, h, n int) float64 {
	if m.rule == nil {
		return 0
	}
	return m.rule(float64(s), float64(b), float64(h), float64(n))
}

// Worst returns the value that fails every threshold in the measure's
// direction.
func (m Measure) Worst() float64 {
	if m.Dir == Lower {
		return 1
	}
	return 0
}

func (m Measure) String() string {
	return m.Name
}

var measures = []Measure{
	{Code: 'x', Name: "none", Dir: Higher},
	{Code: 'b', Name: "ldratio", Dir: Higher, rule: ldratio},
	{Code: 'c', Name: "conf", Dir: Higher, rule: conf},
	{Code: 'd', Name: "confdiff", Dir: Higher, rule: confdiff},
	{Code: 'l', Name: "lift", Dir: Higher, rule: lift},
	{Code: 'a', Name: "liftdiff", Dir: Higher, rule: liftdiff},
	{Code: 'q', Name: "liftquot", Dir: Higher, rule: liftquot},
	{Code: 'v', Name: "cvct", Dir: Higher, rule: cvct},
	{Code: 'e', Name: "cvctdiff", Dir: Higher, rule: cvctdiff},
	{Code: 'r', Name: "cvctquot", Dir: Higher, rule: cvctquot},
	{Code: 'k', Name: "cprob", Dir: Higher, rule: cprob},
	{Code: 'j', Name: "import", Dir: Higher, rule: importance},
	{Code: 'z', Name: "cert", Dir: Higher, rule: cert},
	{Code: 'n', Name: "chi2", Dir: Higher, rule: chi2},
	{Code: 'p', Name: "chi2pval", Dir: Lower, rule: chi2pval},
	{Code: 'y', Name: "yates", Dir: Higher, rule: yates},
	{Code: 't', Name: "yatespval", Dir: Lower, rule: yatespval},
	{Code: 'i', Name: "info", Dir: Higher, rule: info},
	{Code: 'g', Name: "infopval", Dir: Lower, rule: infopval},
	{Code: 'f', Name: "fetprob", Dir: Lower, rule: fetprob},
	{Code: 'h', Name: "fetchi2", Dir: Lower, rule: fetchi2},
	{Code: 'm', Name: "fetinfo", Dir: Lower, rule: fetinfo},
	{Code: 's', Name: "fetsupp", Dir: Lower, rule: fetsupp},
	{Code: 'w', Name: "allconf", Dir: Higher, Monotone: true, rule: allconfRule},
}

// Measures returns every known measure.
func Measures() []Measure {
	return append([]Measure(nil), measures...)
}

// ParseMeasure accepts a measure name or its one-letter code. The empty
// string selects the no-op measure.
func ParseMeasure(s string) (Measure, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return measures[0], nil
	}
	for _, m := range measures {
		if s == m.Name || (len(s) == 1 && s[0] == m.Code) {
			return m, nil
		}
	}
	return Measure{}, fmt.Errorf("unknown evaluation measure %q", s)
}

// Agg selects how the rules I\{i} -> i of an itemset are combined.
type Agg int

const (
	// AggNone uses only the rule whose head is the last item of the set.
	AggNone Agg = iota
	AggMin
	AggMax
	AggAvg
)

func (a Agg) String() string {
	return [...]string{"none", "min", "max", "avg"}[a]
}

// ParseAgg accepts an aggregation name or code (x, m, n, a).
func ParseAgg(s string) (Agg, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "x":
		return AggNone, nil
	case "min", "m":
		return AggMin, nil
	case "max", "n":
		return AggMax, nil
	case "avg", "a":
		return AggAvg, nil
	}
	return 0, fmt.Errorf("unknown aggregation mode %q", s)
}

func conf(s, b, _, _ float64) float64 {
	if b <= 0 {
		return 0
	}
	return s / b
}

func confdiff(s, b, h, n float64) float64 {
	if b <= 0 || n <= 0 {
		return 0
	}
	return math.Abs(s/b - h/n)
}

func lift(s, b, h, n float64) float64 {
	if b <= 0 || h <= 0 {
		return 0
	}
	return s * n / (b * h)
}

func liftdiff(s, b, h, n float64) float64 {
	if b <= 0 || h <= 0 {
		return 0
	}
	return math.Abs(lift(s, b, h, n) - 1)
}

// quot maps a ratio r to 1 - min(r, 1/r), which is 0 at independence.
func quot(r float64) float64 {
	if r <= 0 || math.IsInf(r, 0) {
		return 1
	}
	return 1 - math.Min(r, 1/r)
}

func liftquot(s, b, h, n float64) float64 {
	if b <= 0 || h <= 0 {
		return 0
	}
	return quot(lift(s, b, h, n))
}

func cvct(s, b, h, n float64) float64 {
	if b <= 0 || n <= 0 {
		return 0
	}
	c := s / b
	if c >= 1 {
		return math.Inf(1)
	}
	return (1 - h/n) / (1 - c)
}

func cvctdiff(s, b, h, n float64) float64 {
	if b <= 0 || n <= 0 {
		return 0
	}
	return math.Abs(cvct(s, b, h, n) - 1)
}

func cvctquot(s, b, h, n float64) float64 {
	if b <= 0 || n <= 0 {
		return 0
	}
	return quot(cvct(s, b, h, n))
}

// cprob is the ratio of the head's probability given the body to its
// probability given the absence of the body.
func cprob(s, b, h, n float64) float64 {
	if b <= 0 || n <= b {
		return 0
	}
	other := (h - s) / (n - b)
	if other <= 0 {
		return math.Inf(1)
	}
	return (s / b) / other
}

func importance(s, b, h, n float64) float64 {
	l := lift(s, b, h, n)
	if l <= 0 {
		return math.Inf(-1)
	}
	return math.Log2(l)
}

func cert(s, b, h, n float64) float64 {
	if b <= 0 || n <= 0 {
		return 0
	}
	c, p := s/b, h/n
	switch {
	case c > p && p < 1:
		return (c - p) / (1 - p)
	case c < p && p > 0:
		return (c - p) / p
	}
	return 0
}

// chi2 is the chi^2 statistic of the table divided by n.
func chi2(s, b, h, n float64) float64 {
	den := b * h * (n - b) * (n - h)
	if den <= 0 {
		return 0
	}
	d := s*n - b*h
	return d * d / den
}

func chi2pval(s, b, h, n float64) float64 {
	return chi2Tail(n * chi2(s, b, h, n))
}

// yates is chi2 with Yates' continuity correction, divided by n.
func yates(s, b, h, n float64) float64 {
	den := b * h * (n - b) * (n - h)
	if den <= 0 {
		return 0
	}
	d := math.Abs(s*n-b*h) - n/2
	if d < 0 {
		d = 0
	}
	return d * d / den
}

func yatespval(s, b, h, n float64) float64 {
	return chi2Tail(n * yates(s, b, h, n))
}

// info is the mutual information of body and head in bits.
func info(s, b, h, n float64) float64 {
	if n <= 0 || b <= 0 || h <= 0 || b >= n || h >= n {
		return 0
	}
	cells := [4][3]float64{
		{s, b, h},
		{b - s, b, n - h},
		{h - s, n - b, h},
		{n - b - h + s, n - b, n - h},
	}
	sum := 0.0
	for _, c := range cells {
		if c[0] > 0 {
			sum += c[0] / n * math.Log2(c[0]*n/(c[1]*c[2]))
		}
	}
	if sum < 0 {
		return 0
	}
	return sum
}

// infopval is the p-value of the G-test, G = 2 n ln(2) info.
func infopval(s, b, h, n float64) float64 {
	return chi2Tail(2 * n * math.Ln2 * info(s, b, h, n))
}

// ldratio is log2 of the observed over the expected joint support.
func ldratio(s, b, h, n float64) float64 {
	if s <= 0 || b <= 0 || h <= 0 {
		return math.Inf(-1)
	}
	return math.Log2(s * n / (b * h))
}

func allconfRule(s, b, h, _ float64) float64 {
	m := math.Max(b, h)
	if m <= 0 {
		return 0
	}
	return s / m
}

// chi2Tail is the upper tail probability of the chi^2 distribution with one
// degree of freedom.
func chi2Tail(x float64) float64 {
	if x <= 0 {
		return 1
	}
	return math.Erfc(math.Sqrt(x / 2))
}
