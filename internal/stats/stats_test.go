package stats

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/tract"
)

const eps = 1e-9

func near(a, b float64) bool {
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return a == b
	}
	return math.Abs(a-b) < 1e-6
}

func mustMeasure(t *testing.T, s string) Measure {
	t.Helper()
	m, err := ParseMeasure(s)
	if err != nil {
		t.Fatalf("ParseMeasure(%q) error = %v", s, err)
	}
	return m
}

// Rule "3 -> 2" of the example database: s=2, b=3, h=4, n=5.
func TestMeasures_ExampleRule(t *testing.T) {
	tests := []struct {
		measure string
		want    float64
	}{
		{"conf", 2.0 / 3},
		{"confdiff", math.Abs(2.0/3 - 0.8)},
		{"lift", 10.0 / 12},
		{"liftdiff", 2.0 / 12},
		{"liftquot", 2.0 / 12},
		{"cvct", 0.6},
		{"cvctdiff", 0.4},
		{"cvctquot", 0.4},
		{"cprob", 2.0 / 3},
		{"import", math.Log2(10.0 / 12)},
		{"cert", (2.0/3 - 0.8) / 0.8},
		{"chi2", 1.0 / 6},
		{"chi2pval", math.Erfc(math.Sqrt(5.0 / 6 / 2))},
		{"yates", 0},
		{"yatespval", 1},
		{"fetprob", 1},
		{"fetsupp", 1},
		{"allconf", 0.5},
		{"ldratio", math.Log2(10.0 / 12)},
		{"none", 0},
	}
	for _, tt := range tests {
		t.Run(tt.measure, func(t *testing.T) {
			m := mustMeasure(t, tt.measure)
			if got := m.Rule(2, 3, 4, 5); !near(got, tt.want) {
				t.Errorf("%s = %v, want %v", tt.measure, got, tt.want)
			}
		})
	}
}

func TestMeasures_PValuesInUnitInterval(t *testing.T) {
	for _, name := range []string{"chi2pval", "yatespval", "infopval", "fetprob", "fetchi2", "fetinfo", "fetsupp"} {
		m := mustMeasure(t, name)
		if m.Dir != Lower {
			t.Errorf("%s direction = %v, want Lower", name, m.Dir)
		}
		for s := 0; s <= 10; s++ {
			v := m.Rule(s, 10, 15, 40)
			if v < -eps || v > 1+eps || math.IsNaN(v) {
				t.Errorf("%s(%d, 10, 15, 40) = %v outside [0,1]", name, s, v)
			}
		}
	}
}

func TestFisher_StrongAssociationIsSignificant(t *testing.T) {
	// Body and head always occur together.
	for _, name := range []string{"fetprob", "fetchi2", "fetinfo", "fetsupp", "chi2pval"} {
		m := mustMeasure(t, name)
		if v := m.Rule(10, 10, 10, 100); v > 1e-6 {
			t.Errorf("%s = %v, want tiny p-value", name, v)
		}
	}
	// Exactly independent: s = b*h/n.
	if v := mustMeasure(t, "fetsupp").Rule(5, 10, 50, 100); v < 0.4 {
		t.Errorf("fetsupp at independence = %v, want large", v)
	}
}

func TestFisher_TableProbabilities(t *testing.T) {
	// Margins b=3, h=4, n=5: P(x=2) = 0.6, P(x=3) = 0.4.
	m := mustMeasure(t, "fetsupp")
	if got := m.Rule(3, 3, 4, 5); !near(got, 0.4) {
		t.Errorf("fetsupp(3) = %v, want 0.4", got)
	}
	if got := mustMeasure(t, "fetprob").Rule(3, 3, 4, 5); !near(got, 0.4) {
		t.Errorf("fetprob(3) = %v, want 0.4", got)
	}
}

func TestParseMeasure(t *testing.T) {
	tests := []struct {
		in       string
		wantName string
		wantErr  bool
	}{
		{"", "none", false},
		{"x", "none", false},
		{"c", "conf", false},
		{"Lift", "lift", false},
		{"p", "chi2pval", false},
		{"w", "allconf", false},
		{"b", "ldratio", false},
		{"bogus", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := ParseMeasure(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMeasure(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && m.Name != tt.wantName {
				t.Errorf("ParseMeasure(%q) = %s, want %s", tt.in, m.Name, tt.wantName)
			}
		})
	}
}

func TestOnlyAllconfIsMonotone(t *testing.T) {
	for _, m := range Measures() {
		if m.Monotone != (m.Name == "allconf") {
			t.Errorf("%s.Monotone = %v", m.Name, m.Monotone)
		}
	}
}

func TestParseAgg(t *testing.T) {
	for in, want := range map[string]Agg{"": AggNone, "x": AggNone, "min": AggMin, "n": AggMax, "avg": AggAvg} {
		got, err := ParseAgg(in)
		if err != nil || got != want {
			t.Errorf("ParseAgg(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseAgg("median"); err == nil {
		t.Error("ParseAgg(median) succeeded")
	}
}

func TestFilter_Pass(t *testing.T) {
	higher := Filter{Measure: mustMeasure(t, "lift"), Threshold: 1.2}
	if !higher.Pass(1.5) || higher.Pass(1.1) || higher.Pass(math.NaN()) {
		t.Error("lift filter applies the threshold in the wrong direction")
	}
	lower := Filter{Measure: mustMeasure(t, "chi2pval"), Threshold: 0.05}
	if !lower.Pass(0.01) || lower.Pass(0.2) {
		t.Error("p-value filter applies the threshold in the wrong direction")
	}
	if !(Filter{Measure: mustMeasure(t, "none")}).Pass(math.NaN()) {
		t.Error("no-op filter must pass everything")
	}
}

func TestFilter_InvalidateBelowExpected(t *testing.T) {
	f := Filter{Measure: mustMeasure(t, "conf"), InvalidateBelowExpected: true}
	// 2*5 <= 3*4: below expectation.
	if got := f.Rule(2, 3, 4, 5); got != 0 {
		t.Errorf("Rule() = %v, want 0", got)
	}
	p := Filter{Measure: mustMeasure(t, "chi2pval"), InvalidateBelowExpected: true}
	if got := p.Rule(2, 3, 4, 5); got != 1 {
		t.Errorf("Rule() = %v, want 1", got)
	}
	if got := f.Rule(3, 3, 4, 5); got != 1 {
		t.Errorf("Rule() above expectation = %v, want 1", got)
	}
}

func exampleDB(t *testing.T) *tract.Database {
	t.Helper()
	db, err := tract.EncodeInts([][]int{{1, 2, 3}, {1, 2}, {2, 3}, {1, 3}, {2}})
	if err != nil {
		t.Fatalf("EncodeInts() error = %v", err)
	}
	return db
}

func TestFilter_ItemsetAggregation(t *testing.T) {
	db := exampleDB(t)
	idx := itemset.NewIndex()
	for i := 0; i < db.ItemCount(); i++ {
		idx.Put(itemset.Set{tract.Item(i)}, db.Support(tract.Item(i)))
	}
	// Codes: "2"=0 (4), "1"=1 (3), "3"=2 (3). {0,2} has support 2.
	set := itemset.Set{0, 2}
	tests := []struct {
		agg  Agg
		want float64
	}{
		{AggNone, 0.5}, // head "3" (code 2), body {0}: 2/4
		{AggMin, 0.5},  // min(2/3, 2/4)
		{AggMax, 2.0 / 3},
		{AggAvg, (2.0/3 + 0.5) / 2},
	}
	for _, tt := range tests {
		t.Run(tt.agg.String(), func(t *testing.T) {
			f := Filter{Measure: mustMeasure(t, "conf"), Agg: tt.agg}
			got, err := f.Itemset(set, 2, db.TotalWeight(), db.Support, idx.Support)
			if err != nil {
				t.Fatalf("Itemset() error = %v", err)
			}
			if !near(got, tt.want) {
				t.Errorf("Itemset() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter_ItemsetMissingSupport(t *testing.T) {
	db := exampleDB(t)
	f := Filter{Measure: mustMeasure(t, "lift"), Agg: AggMin}
	_, err := f.Itemset(itemset.Set{0, 1}, 2, 5, db.Support, itemset.NewIndex().Support)
	if !errors.Is(err, ErrMissingSupport) {
		t.Errorf("Itemset() error = %v, want ErrMissingSupport", err)
	}
}

func TestFilter_ItemsetDirectMeasures(t *testing.T) {
	db := exampleDB(t)
	allconf := Filter{Measure: mustMeasure(t, "allconf")}
	if got, _ := allconf.Itemset(itemset.Set{0, 1}, 2, 5, db.Support, nil); !near(got, 0.5) {
		t.Errorf("allconf = %v, want 0.5", got)
	}
	ld := Filter{Measure: mustMeasure(t, "ldratio")}
	// log2((2/5) / ((4/5) * (3/5)))
	want := math.Log2(0.4 / (0.8 * 0.6))
	if got, _ := ld.Itemset(itemset.Set{0, 1}, 2, 5, db.Support, nil); !near(got, want) {
		t.Errorf("ldratio = %v, want %v", got, want)
	}
}

func TestFilter_Keep(t *testing.T) {
	db := exampleDB(t)
	keep := Filter{Measure: mustMeasure(t, "allconf"), Threshold: 0.6}.Keep(db.TotalWeight(), db.Support)
	if !keep(itemset.Set{1, 2}, 2) {
		t.Error("allconf 2/3 rejected at 0.6")
	}
	if keep(itemset.Set{0, 1}, 2) {
		t.Error("allconf 2/4 kept at 0.6")
	}
}

func TestBorder(t *testing.T) {
	b := Border{0, 0, 5, 3}
	tests := []struct {
		size, supp int
		want       bool
	}{
		{1, 1, true},
		{2, 4, false},
		{2, 5, true},
		{3, 3, true},
		{4, 1, true},
	}
	for _, tt := range tests {
		if got := b.Pass(tt.size, tt.supp); got != tt.want {
			t.Errorf("Pass(%d, %d) = %v, want %v", tt.size, tt.supp, got, tt.want)
		}
	}
}

func TestSpectrum(t *testing.T) {
	s := NewSpectrum()
	s.Observe(itemset.Set{1, 2}, 3)
	s.Observe(itemset.Set{1, 3}, 3)
	s.Observe(itemset.Set{2, 3}, 5)
	s.Observe(itemset.Set{1}, 7)

	if got := s.Get(2, 3); got != 2 {
		t.Errorf("Get(2,3) = %v, want 2", got)
	}
	if got := s.Tail(2, 3); got != 3 {
		t.Errorf("Tail(2,3) = %v, want 3", got)
	}
	if got := s.Tail(2, 4); got != 1 {
		t.Errorf("Tail(2,4) = %v, want 1", got)
	}
	if sizes := s.Sizes(); len(sizes) != 2 || sizes[0] != 1 || sizes[1] != 2 {
		t.Errorf("Sizes() = %v, want [1 2]", sizes)
	}

	o := NewSpectrum()
	o.Add(2, 3, 2)
	s.Merge(o)
	s.Scale(0.5)
	if got := s.Get(2, 3); got != 2 {
		t.Errorf("after merge and scale Get(2,3) = %v, want 2", got)
	}

	entries := s.Entries()
	for i := 1; i < len(entries); i++ {
		a, b := entries[i-1], entries[i]
		if a.Size > b.Size || (a.Size == b.Size && a.Support >= b.Support) {
			t.Fatalf("Entries() not ordered: %v", entries)
		}
	}
	if !s.Significant(2, 6, 0.5) || s.Significant(2, 3, 0.5) {
		t.Error("Significant() disagrees with Tail()")
	}
}

func TestSurrogate_KeepsSizesAndWeights(t *testing.T) {
	b := tract.NewBuilder()
	_ = b.Add([]string{"a", "b", "c"}, 2)
	_ = b.Add([]string{"a", "b"}, 1)
	_ = b.Add([]string{"a"}, 3)
	_ = b.Add([]string{"d"}, 1)
	db, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	sur, err := Surrogate(db, rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("Surrogate() error = %v", err)
	}
	if sur.TotalWeight() != db.TotalWeight() {
		t.Errorf("TotalWeight() = %d, want %d", sur.TotalWeight(), db.TotalWeight())
	}
	orig, got := db.Transactions(), sur.Transactions()
	for i := range orig {
		if len(got[i].Items) != len(orig[i].Items) || got[i].Weight != orig[i].Weight {
			t.Errorf("transaction %d: %d items weight %d, want %d items weight %d",
				i, len(got[i].Items), got[i].Weight, len(orig[i].Items), orig[i].Weight)
		}
	}
}

func TestEstimate_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	b := tract.NewBuilder()
	for i := 0; i < 40; i++ {
		var labels []string
		for _, l := range []string{"a", "b", "c", "d", "e"} {
			if rng.Float64() < 0.4 {
				labels = append(labels, l)
			}
		}
		_ = b.Add(labels, 1)
	}
	db, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var done atomic.Int32
	opts := EstimateOptions{MinSupport: 3, MinSize: 2, Surrogates: 8, Seed: 5, Workers: 3}
	opts.Progress = func() { done.Add(1) }
	s1, err := Estimate(context.Background(), db, opts)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if done.Load() != 8 {
		t.Errorf("Progress called %d times, want 8", done.Load())
	}
	opts.Progress = nil
	s2, err := Estimate(context.Background(), db, opts)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	e1, e2 := s1.Entries(), s2.Entries()
	if len(e1) != len(e2) {
		t.Fatalf("runs differ: %d vs %d cells", len(e1), len(e2))
	}
	for i := range e1 {
		if e1[i].Cell != e2[i].Cell || !near(e1[i].Count, e2[i].Count) {
			t.Errorf("cell %d differs: %v vs %v", i, e1[i], e2[i])
		}
	}
	for _, size := range s1.Sizes() {
		if size < 2 {
			t.Errorf("size %d below MinSize counted", size)
		}
	}
}

func TestEstimate_InvalidSupport(t *testing.T) {
	if _, err := Estimate(context.Background(), exampleDB(t), EstimateOptions{}); err == nil {
		t.Error("Estimate() with MinSupport 0 succeeded")
	}
}
