package report

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/blackwell-systems/fimine/internal/stats"
)

const arrow = " <- "

// FormatItemset renders r as "i1 i2 ... (v1, v2)".
func FormatItemset(r Record, f Fields) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(r.Items, " "))
	appendValues(&sb, f.Values(r))
	return sb.String()
}

// FormatRule renders r as "head <- b1 b2 ... (v1, v2)".
func FormatRule(r Record, f Fields) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(r.Head, " "))
	sb.WriteString(arrow)
	sb.WriteString(strings.Join(r.Items, " "))
	appendValues(&sb, f.Values(r))
	return sb.String()
}

func appendValues(sb *strings.Builder, vals []float64) {
	if len(vals) == 0 {
		return
	}
	if sb.Len() > 0 {
		sb.WriteByte(' ')
	}
	sb.WriteByte('(')
	for i, v := range vals {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(FormatValue(v))
	}
	sb.WriteByte(')')
}

// FormatValue prints integral values without a fraction.
func FormatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Line is a parsed report line.
type Line struct {
	Items  []string
	Head   []string
	Values []float64
}

// Key matches Record.Key for the record the line was written from.
func (l Line) Key() string {
	body := sortedJoin(l.Items)
	if l.Head == nil {
		return body
	}
	return sortedJoin(l.Head) + " <- " + body
}

// ParseItemsetLine reads a line written by FormatItemset.
func ParseItemsetLine(line string) (Line, error) {
	labels, vals, err := splitValues(line)
	if err != nil {
		return Line{}, err
	}
	return Line{Items: strings.Fields(labels), Values: vals}, nil
}

// ParseRuleLine reads a line written by FormatRule.
func ParseRuleLine(line string) (Line, error) {
	labels, vals, err := splitValues(line)
	if err != nil {
		return Line{}, err
	}
	// Labels may contain "<-" but never a blank, so only the blank-delimited
	// arrow separates head and body. An empty body leaves the arrow last.
	head, body, ok := strings.Cut(labels, arrow)
	if !ok {
		head, ok = strings.CutSuffix(labels, strings.TrimRight(arrow, " "))
	}
	if !ok {
		return Line{}, fmt.Errorf("rule line %q has no %q", line, strings.TrimSpace(arrow))
	}
	return Line{
		Items:  strings.Fields(body),
		Head:   append([]string{}, strings.Fields(head)...),
		Values: vals,
	}, nil
}

// splitValues separates the labels of a line from its trailing value group.
func splitValues(line string) (string, []float64, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasSuffix(line, ")") {
		return line, nil, nil
	}
	open := strings.LastIndex(line, "(")
	if open < 0 || (open > 0 && line[open-1] != ' ') {
		return line, nil, nil
	}
	var vals []float64
	for _, f := range strings.Split(line[open+1:len(line)-1], ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid value in line %q: %w", line, err)
		}
		vals = append(vals, v)
	}
	return strings.TrimSpace(line[:open]), vals, nil
}

// LineWriter writes records as text lines. Output is buffered until Close.
type LineWriter struct {
	mu    sync.Mutex
	w     *bufio.Writer
	items Fields
	rules Fields
	n     int
}

// NewLineWriter creates a LineWriter using items for itemset records and
// rules for rule records.
func NewLineWriter(w io.Writer, items, rules Fields) *LineWriter {
	return &LineWriter{w: bufio.NewWriter(w), items: items, rules: rules}
}

// Emit writes one line.
func (lw *LineWriter) Emit(r Record) error {
	var line string
	if r.Kind == RuleKind {
		line = FormatRule(r, lw.rules)
	} else {
		line = FormatItemset(r, lw.items)
	}
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if _, err := lw.w.WriteString(line); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := lw.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	lw.n++
	return nil
}

// Written returns the number of lines written.
func (lw *LineWriter) Written() int {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.n
}

// Close flushes buffered lines. It does not close the underlying writer.
func (lw *LineWriter) Close() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if err := lw.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}
	return nil
}

// WriteSpectrum writes one "size support count" line per spectrum cell.
func WriteSpectrum(w io.Writer, spec *stats.Spectrum) error {
	bw := bufio.NewWriter(w)
	for _, e := range spec.Entries() {
		if _, err := fmt.Fprintf(bw, "%d %d %s\n", e.Size, e.Support, FormatValue(e.Count)); err != nil {
			return fmt.Errorf("failed to write spectrum: %w", err)
		}
	}
	return bw.Flush()
}

// ReadSpectrum reads lines written by WriteSpectrum. Blank lines and lines
// starting with '#' are skipped.
func ReadSpectrum(r io.Reader) (*stats.Spectrum, error) {
	spec := stats.NewSpectrum()
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f := strings.Fields(line)
		if len(f) != 3 {
			return nil, fmt.Errorf("spectrum line %d: want 3 fields, got %d", lineNo, len(f))
		}
		size, err := strconv.Atoi(f[0])
		if err != nil {
			return nil, fmt.Errorf("spectrum line %d: invalid size: %w", lineNo, err)
		}
		supp, err := strconv.Atoi(f[1])
		if err != nil {
			return nil, fmt.Errorf("spectrum line %d: invalid support: %w", lineNo, err)
		}
		count, err := strconv.ParseFloat(f[2], 64)
		if err != nil {
			return nil, fmt.Errorf("spectrum line %d: invalid count: %w", lineNo, err)
		}
		spec.Add(size, supp, count)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read spectrum: %w", err)
	}
	return spec, nil
}
