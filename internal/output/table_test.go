package output

import (
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/fimine/internal/miner"
	"github.com/blackwell-systems/fimine/internal/report"
	"github.com/blackwell-systems/fimine/internal/search"
	"github.com/blackwell-systems/fimine/internal/stats"
	"github.com/blackwell-systems/fimine/internal/store"
)

func TestRenderItemsetTable(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	if got := RenderItemsetTable(nil, report.DefaultFields(report.ItemsetKind)); got != "No itemsets found.\n" {
		t.Errorf("empty table = %q", got)
	}

	records := []report.Record{
		{Kind: report.ItemsetKind, Items: nil, Support: 5, Total: 5},
		{Kind: report.ItemsetKind, Items: []string{strings.Repeat("x", 60)}, Support: 1234, Total: 5000},
	}
	out := RenderItemsetTable(records, report.DefaultFields(report.ItemsetKind))
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header, rule and 2 rows:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[2], "{}") {
		t.Errorf("empty itemset row = %q", lines[2])
	}
	if !strings.Contains(lines[3], "...") || !strings.HasSuffix(lines[3], "1,234") {
		t.Errorf("long itemset row = %q", lines[3])
	}
	if len(lines[3]) != maxPatternWidth+1+minValueWidth {
		t.Errorf("row width = %d, want %d", len(lines[3]), maxPatternWidth+1+minValueWidth)
	}
}

func TestRenderRuleTable(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	fields, err := report.ParseFields("aC", report.RuleKind)
	if err != nil {
		t.Fatal(err)
	}
	records := []report.Record{{
		Kind:       report.RuleKind,
		Head:       []string{"2"},
		Items:      []string{"1", "3"},
		Support:    2,
		Total:      5,
		Confidence: 2.0 / 3,
	}}
	out := RenderRuleTable(records, fields)
	if !strings.Contains(out, "2    <- 1 3") {
		t.Errorf("rule row missing:\n%s", out)
	}
	if !strings.Contains(out, "66.6667") {
		t.Errorf("confidence not rendered with 4 decimals:\n%s", out)
	}
	if got := RenderRuleTable(nil, fields); got != "No rules found.\n" {
		t.Errorf("empty rule table = %q", got)
	}
}

func TestRenderSpectrumTable(t *testing.T) {
	if got := RenderSpectrumTable(nil); !strings.Contains(got, "empty") {
		t.Errorf("nil spectrum = %q", got)
	}

	spec := stats.NewSpectrum()
	spec.Add(1, 4, 1)
	spec.Add(2, 2000, 0.25)
	out := RenderSpectrumTable(spec)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if f := strings.Fields(lines[2]); len(f) != 3 || f[0] != "1" || f[1] != "4" || f[2] != "1" {
		t.Errorf("row = %q", lines[2])
	}
	if f := strings.Fields(lines[3]); len(f) != 3 || f[1] != "2,000" || f[2] != "0.25" {
		t.Errorf("row = %q", lines[3])
	}
}

func TestRenderSummary(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	got := RenderSummary(miner.Summary{
		Strategy:     "eclat",
		Target:       search.Closed,
		MinSupport:   2,
		Transactions: 12000,
		Items:        3,
		Candidates:   14,
		Emitted:      6,
		Elapsed:      1234 * time.Microsecond,
	})
	for _, want := range []string{"6 closed patterns", "12,000 transactions", "eclat, smin 2", "14 candidates", "1.2ms"} {
		if !strings.Contains(got, want) {
			t.Errorf("RenderSummary() = %q, missing %q", got, want)
		}
	}
}

func TestRenderBudgetWarning(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	got := RenderBudgetWarning(&miner.BudgetError{Limit: "time", Finalized: 1500})
	if got != "⚠ stopped at time limit: 1,500 patterns reported" {
		t.Errorf("RenderBudgetWarning() = %q", got)
	}
}

func TestRenderStoreStats(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	out := RenderStoreStats(store.Stats{})
	if !strings.Contains(out, "Last import:   never") {
		t.Errorf("empty store stats:\n%s", out)
	}

	out = RenderStoreStats(store.Stats{
		Transactions: 1200,
		Items:        40,
		TotalWeight:  2400,
		Sources:      2,
		LastImport:   time.Now().Add(-3 * time.Hour),
	})
	for _, want := range []string{"1,200", "2,400", "3 hours ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("store stats missing %q:\n%s", want, out)
		}
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1234567, "1,234,567"},
		{0.5, "0.5"},
		{2.0 / 3, "0.6667"},
		{200.0 / 3, "66.6667"},
		{1234.56789, "1,234.5679"},
		{1.99996, "2"},
		{0.1 + 0.2, "0.3"},
	}
	for _, tt := range tests {
		if got := formatCount(tt.in); got != tt.want {
			t.Errorf("formatCount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"shorter than max", "hello", 10, "hello"},
		{"equal to max", "hello", 5, "hello"},
		{"longer than max", "hello world", 8, "hello..."},
		{"very short max", "hello", 2, "he"},
		{"max of 4", "hello world", 4, "h..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
