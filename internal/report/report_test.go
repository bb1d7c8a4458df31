package report

import (
	"bufio"
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/blackwell-systems/fimine/internal/stats"
)

func TestParseFields(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		kind    Kind
		wantErr bool
	}{
		{"empty", "", ItemsetKind, false},
		{"itemset codes", "aSsEe", ItemsetKind, false},
		{"rule codes", "aSsbXxhYycClLEe", RuleKind, false},
		{"confidence on itemsets", "c", ItemsetKind, true},
		{"unknown code", "aq", RuleKind, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFields(tt.in, tt.kind)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFields(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && f.Len() != len(tt.in) {
				t.Errorf("Len() = %d, want %d", f.Len(), len(tt.in))
			}
			if err == nil {
				for i, name := range f.Names() {
					if name == "" {
						t.Errorf("Names()[%d] is empty for code %q", i, tt.in[i])
					}
				}
			}
		})
	}
}

func TestFields_Values(t *testing.T) {
	r := Record{
		Kind:        RuleKind,
		Items:       []string{"b"},
		Head:        []string{"a"},
		Support:     2,
		Total:       8,
		BodySupport: 4,
		HeadSupport: 5,
		Confidence:  0.5,
		Lift:        0.8,
		Value:       0.25,
	}
	f, err := ParseFields("asSbxXhyYcClLeE", RuleKind)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{2, 0.25, 25, 4, 0.5, 50, 5, 0.625, 62.5, 0.5, 50, 0.8, 80, 0.25, 25}
	got := f.Values(r)
	if len(got) != len(want) {
		t.Fatalf("got %d values, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("value %d (%c) = %v, want %v", i, f.String()[i], got[i], want[i])
		}
	}
}

func TestRecord_Key(t *testing.T) {
	a := Record{Items: []string{"b", "a"}}
	b := Record{Items: []string{"a", "b"}}
	if a.Key() != b.Key() {
		t.Errorf("keys differ: %q vs %q", a.Key(), b.Key())
	}
	r := Record{Kind: RuleKind, Items: []string{"a", "b"}}
	if r.Key() == b.Key() {
		t.Error("rule and itemset share a key")
	}
}

func TestParseLines(t *testing.T) {
	l, err := ParseItemsetLine("x y z (3, 0.5)")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(l.Items, ",") != "x,y,z" || len(l.Values) != 2 || l.Values[1] != 0.5 {
		t.Errorf("ParseItemsetLine = %+v", l)
	}

	l, err = ParseItemsetLine("(5)")
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Items) != 0 || len(l.Values) != 1 || l.Values[0] != 5 {
		t.Errorf("empty set line = %+v", l)
	}

	l, err = ParseRuleLine("h1 h2 <- b1 (2, 66.5)")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(l.Head, ",") != "h1,h2" || strings.Join(l.Items, ",") != "b1" {
		t.Errorf("ParseRuleLine = %+v", l)
	}

	l, err = ParseRuleLine("x<-y <- b<-c d (2)")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(l.Head, ",") != "x<-y" || strings.Join(l.Items, ",") != "b<-c,d" {
		t.Errorf("ParseRuleLine with arrows in labels = %+v", l)
	}

	l, err = ParseRuleLine("h <-  (4)")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(l.Head, ",") != "h" || len(l.Items) != 0 {
		t.Errorf("ParseRuleLine with empty body = %+v", l)
	}

	if _, err := ParseRuleLine("a<-b (2)"); err == nil {
		t.Error("ParseRuleLine accepted an arrow inside a label as separator")
	}
	if _, err := ParseRuleLine("a b (2)"); err == nil {
		t.Error("ParseRuleLine accepted a line without an arrow")
	}
	if _, err := ParseItemsetLine("a (x)"); err == nil {
		t.Error("ParseItemsetLine accepted a non-numeric value")
	}
}

// TestCrossPathEquivalence writes the same records to a Collector and a
// LineWriter and checks that the parsed lines describe the same records.
func TestCrossPathEquivalence(t *testing.T) {
	records := []Record{
		{Items: []string{"2"}, Support: 4, Total: 5},
		{Items: []string{"1", "2"}, Support: 2, Total: 5, Value: 1.0 / 3},
		{Items: nil, Support: 5, Total: 5},
		{Kind: RuleKind, Items: []string{"3"}, Head: []string{"2"}, Support: 2, BodySupport: 3, HeadSupport: 4, Total: 5, Confidence: 2.0 / 3, Lift: 10.0 / 12},
		{Items: []string{"a<-b"}, Support: 1, Total: 5},
		{Kind: RuleKind, Items: []string{"c<-d"}, Head: []string{"x<-y"}, Support: 1, BodySupport: 1, HeadSupport: 1, Total: 5, Confidence: 1, Lift: 5},
		{Kind: RuleKind, Items: []string{"3"}, Head: []string{"1", "2"}, Support: 1, BodySupport: 3, HeadSupport: 2, Total: 5, Confidence: 1.0 / 3, Lift: 5.0 / 6},
	}
	items, err := ParseFields("aSe", ItemsetKind)
	if err != nil {
		t.Fatal(err)
	}
	rules, err := ParseFields("aSCl", RuleKind)
	if err != nil {
		t.Fatal(err)
	}

	var col Collector
	var buf bytes.Buffer
	lw := NewLineWriter(&buf, items, rules)
	for _, r := range records {
		if err := col.Emit(r); err != nil {
			t.Fatal(err)
		}
		if err := lw.Emit(r); err != nil {
			t.Fatal(err)
		}
	}
	if buf.Len() != 0 {
		t.Error("LineWriter wrote before Close")
	}
	if err := lw.Close(); err != nil {
		t.Fatal(err)
	}
	if lw.Written() != len(records) {
		t.Errorf("Written() = %d, want %d", lw.Written(), len(records))
	}

	want := make(map[string][]float64)
	for _, r := range col.Records() {
		f := items
		if r.Kind == RuleKind {
			f = rules
		}
		want[r.Key()] = f.Values(r)
	}

	sc := bufio.NewScanner(&buf)
	n := 0
	for sc.Scan() {
		line := sc.Text()
		var l Line
		if strings.Contains(line, " <- ") {
			l, err = ParseRuleLine(line)
		} else {
			l, err = ParseItemsetLine(line)
		}
		if err != nil {
			t.Fatalf("parse %q: %v", line, err)
		}
		vals, ok := want[l.Key()]
		if !ok {
			t.Errorf("line %q has no collected record", line)
			continue
		}
		if len(vals) != len(l.Values) {
			t.Errorf("line %q: %d values, want %d", line, len(l.Values), len(vals))
			continue
		}
		for i := range vals {
			if math.Abs(vals[i]-l.Values[i]) > 1e-12 {
				t.Errorf("line %q value %d = %v, want %v", line, i, l.Values[i], vals[i])
			}
		}
		n++
	}
	if n != col.Len() {
		t.Errorf("parsed %d lines, collected %d records", n, col.Len())
	}
}

func TestSpectrumRoundTrip(t *testing.T) {
	spec := stats.NewSpectrum()
	spec.Add(1, 4, 1)
	spec.Add(2, 2, 3)
	spec.Add(2, 3, 0.25)

	var buf bytes.Buffer
	if err := WriteSpectrum(&buf, spec); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "1 4 1\n2 2 3\n2 3 0.25\n"; got != want {
		t.Errorf("WriteSpectrum = %q, want %q", got, want)
	}

	back, err := ReadSpectrum(strings.NewReader("# size support count\n\n" + buf.String()))
	if err != nil {
		t.Fatal(err)
	}
	if back.Len() != 3 || back.Get(2, 3) != 0.25 {
		t.Errorf("ReadSpectrum lost cells: %+v", back.Entries())
	}

	if _, err := ReadSpectrum(strings.NewReader("1 2\n")); err == nil {
		t.Error("ReadSpectrum accepted a short line")
	}
}
