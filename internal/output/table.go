// Package output provides terminal output utilities for fimine.
//
// This package includes:
//   - Table rendering for itemsets, association rules and pattern spectra
//   - Run and store summaries with human-readable counts and dates
//   - Progress bars and spinners for long-running mining
//
// Tables use box-drawing rules and ANSI color codes when stdout is a
// terminal. Progress indicators are thread-safe and can be used from
// multiple goroutines.
package output

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/fimine/internal/miner"
	"github.com/blackwell-systems/fimine/internal/report"
	"github.com/blackwell-systems/fimine/internal/stats"
	"github.com/blackwell-systems/fimine/internal/store"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

const (
	maxPatternWidth = 48
	minValueWidth   = 8
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderItemsetTable renders itemset records with one column per report
// field. Records are printed in the given order.
func RenderItemsetTable(records []report.Record, fields report.Fields) string {
	if len(records) == 0 {
		return "No itemsets found.\n"
	}

	patterns := make([]string, len(records))
	for i, r := range records {
		patterns[i] = formatItems(r.Items)
	}
	width := columnWidth("Itemset", patterns)

	var sb strings.Builder
	writeHeader(&sb, fields, fmt.Sprintf("%-*s", width, "Itemset"))
	for i, r := range records {
		sb.WriteString(fmt.Sprintf("%-*s", width, truncate(patterns[i], width)))
		writeValues(&sb, fields, r)
	}
	return sb.String()
}

// RenderRuleTable renders rule records as head and body columns followed by
// the report fields.
func RenderRuleTable(records []report.Record, fields report.Fields) string {
	if len(records) == 0 {
		return "No rules found.\n"
	}

	heads := make([]string, len(records))
	bodies := make([]string, len(records))
	for i, r := range records {
		heads[i] = formatItems(r.Head)
		bodies[i] = formatItems(r.Items)
	}
	hw := columnWidth("Head", heads)
	bw := columnWidth("Body", bodies)

	var sb strings.Builder
	writeHeader(&sb, fields, fmt.Sprintf("%-*s    %-*s", hw, "Head", bw, "Body"))
	for i, r := range records {
		sb.WriteString(fmt.Sprintf("%-*s <- %-*s", hw, truncate(heads[i], hw), bw, truncate(bodies[i], bw)))
		writeValues(&sb, fields, r)
	}
	return sb.String()
}

// RenderSpectrumTable renders a pattern spectrum ordered by size and
// support.
func RenderSpectrumTable(spec *stats.Spectrum) string {
	if spec == nil || spec.Len() == 0 {
		return "Pattern spectrum is empty.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%6s %10s %12s\n", "Size", "Support", "Count"))
	sb.WriteString(strings.Repeat("─", 30))
	sb.WriteString("\n")
	for _, e := range spec.Entries() {
		sb.WriteString(fmt.Sprintf("%6d %10s %12s\n",
			e.Size, humanize.Comma(int64(e.Support)), formatCount(e.Count)))
	}
	return sb.String()
}

// RenderSummary renders the one-line outcome of a mining run.
// Format: "6 frequent patterns · 5 transactions · 3 items · eclat, smin 2 · 14 candidates · 1.2ms"
func RenderSummary(s miner.Summary) string {
	parts := []string{
		fmt.Sprintf("%s %s patterns", colorize(colorGreen, humanize.Comma(int64(s.Emitted))), s.Target),
		fmt.Sprintf("%s transactions", humanize.Comma(int64(s.Transactions))),
		fmt.Sprintf("%s items", humanize.Comma(int64(s.Items))),
		fmt.Sprintf("%s, smin %s", s.Strategy, humanize.Comma(int64(s.MinSupport))),
		fmt.Sprintf("%s candidates", humanize.Comma(s.Candidates)),
		s.Elapsed.Round(100 * time.Microsecond).String(),
	}
	return strings.Join(parts, " · ")
}

// RenderBudgetWarning renders the notice printed when a run stopped at a
// budget limit.
func RenderBudgetWarning(err *miner.BudgetError) string {
	msg := fmt.Sprintf("stopped at %s limit: %s patterns reported", err.Limit, humanize.Comma(int64(err.Finalized)))
	return colorize(colorYellow, "⚠ "+msg)
}

// RenderStoreStats renders the contents of the transaction store.
func RenderStoreStats(st store.Stats) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Transactions:  %s\n", humanize.Comma(int64(st.Transactions))))
	sb.WriteString(fmt.Sprintf("Total weight:  %s\n", humanize.Comma(int64(st.TotalWeight))))
	sb.WriteString(fmt.Sprintf("Items:         %s\n", humanize.Comma(int64(st.Items))))
	sb.WriteString(fmt.Sprintf("Sources:       %d\n", st.Sources))
	sb.WriteString(fmt.Sprintf("Last import:   %s\n", formatRelativeTime(st)))
	return sb.String()
}

func formatRelativeTime(st store.Stats) string {
	if st.LastImport.IsZero() {
		return colorize(colorGray, "never")
	}
	return humanize.Time(st.LastImport)
}

func writeHeader(sb *strings.Builder, fields report.Fields, lead string) {
	sb.WriteString(lead)
	names := fields.Names()
	for _, name := range names {
		sb.WriteString(fmt.Sprintf(" %*s", valueWidth(name), name))
	}
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("─", len(lead)+rowValuesWidth(names)))
	sb.WriteString("\n")
}

func writeValues(sb *strings.Builder, fields report.Fields, r report.Record) {
	names := fields.Names()
	for i, v := range fields.Values(r) {
		sb.WriteString(fmt.Sprintf(" %*s", valueWidth(names[i]), formatCount(v)))
	}
	sb.WriteString("\n")
}

func rowValuesWidth(names []string) int {
	n := 0
	for _, name := range names {
		n += 1 + valueWidth(name)
	}
	return n
}

func valueWidth(name string) int {
	return max(len(name), minValueWidth)
}

// columnWidth is the widest of header and cells, capped at maxPatternWidth.
func columnWidth(header string, cells []string) int {
	w := len(header)
	for _, c := range cells {
		w = max(w, len(c))
	}
	return min(w, maxPatternWidth)
}

func formatItems(labels []string) string {
	if len(labels) == 0 {
		return "{}"
	}
	return strings.Join(labels, " ")
}

// formatCount prints integral values with thousands separators and the
// rest rounded to at most four decimals.
func formatCount(v float64) string {
	v = math.Round(v*1e4) / 1e4
	if v == float64(int64(v)) {
		return humanize.Comma(int64(v))
	}
	return humanize.CommafWithDigits(v, 4)
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
