// Package report turns mining results into records and writes them to sinks.
//
// Records are label based: item codes are decoded before a record leaves the
// miner, so sinks never need the item table.
package report

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Kind distinguishes itemset records from rule records.
type Kind int

const (
	ItemsetKind Kind = iota
	RuleKind
)

func (k Kind) String() string {
	if k == RuleKind {
		return "rule"
	}
	return "itemset"
}

// Record is one reported pattern.
type Record struct {
	Kind Kind

	// Items holds the itemset labels; for rules it is the body.
	Items []string
	// Head is set for rules only.
	Head []string

	Support int
	Value   float64

	// Total is the total transaction weight the relative values refer to.
	Total int

	BodySupport int
	HeadSupport int
	Confidence  float64
	Lift        float64
}

// Size returns the number of items in the pattern.
func (r Record) Size() int {
	return len(r.Items) + len(r.Head)
}

// Key identifies the pattern independent of label order.
func (r Record) Key() string {
	body := sortedJoin(r.Items)
	if r.Kind != RuleKind {
		return body
	}
	return sortedJoin(r.Head) + " <- " + body
}

func sortedJoin(labels []string) string {
	s := append([]string(nil), labels...)
	sort.Strings(s)
	return strings.Join(s, " ")
}

func rel(v, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(v) / float64(total)
}

func pct(v, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(v) * 100 / float64(total)
}

// Sink consumes records.
type Sink interface {
	Emit(Record) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Record) error

func (f SinkFunc) Emit(r Record) error { return f(r) }

// Collector keeps records in memory in emission order. Safe for concurrent
// use.
type Collector struct {
	mu      sync.Mutex
	records []Record
}

// Emit appends r.
func (c *Collector) Emit(r Record) error {
	c.mu.Lock()
	c.records = append(c.records, r)
	c.mu.Unlock()
	return nil
}

// Records returns a copy of the collected records.
func (c *Collector) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Record(nil), c.records...)
}

// Len returns the number of collected records.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Reset drops all collected records.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.records = nil
	c.mu.Unlock()
}

// Fields selects the values appended to a report line.
type Fields struct {
	kind  Kind
	codes string
}

const (
	itemsetCodes = "aSsEe"
	ruleCodes    = "aSsbXxhYycClLEe"
)

// DefaultFields returns the default report fields for kind: the absolute
// support for itemsets, support and confidence in percent for rules.
func DefaultFields(kind Kind) Fields {
	if kind == RuleKind {
		return Fields{kind: kind, codes: "aC"}
	}
	return Fields{kind: kind, codes: "a"}
}

// ParseFields parses a report string such as "aS" for kind.
//
// Itemset codes: a absolute support, s relative support, S support in
// percent, e evaluation value, E evaluation value in percent. Rules also
// accept b/x/X for the body support, h/y/Y for the head support, c/C for the
// confidence and l/L for the lift. An empty string reports no values.
func ParseFields(s string, kind Kind) (Fields, error) {
	valid := itemsetCodes
	if kind == RuleKind {
		valid = ruleCodes
	}
	for _, c := range s {
		if !strings.ContainsRune(valid, c) {
			return Fields{}, fmt.Errorf("invalid %s report field %q in %q", kind, c, s)
		}
	}
	return Fields{kind: kind, codes: s}, nil
}

// Kind returns the record kind the fields apply to.
func (f Fields) Kind() Kind { return f.kind }

func (f Fields) String() string { return f.codes }

// Len returns the number of values per line.
func (f Fields) Len() int { return len(f.codes) }

// Values extracts the selected values of r.
func (f Fields) Values(r Record) []float64 {
	out := make([]float64, 0, len(f.codes))
	for _, c := range f.codes {
		out = append(out, value(r, c))
	}
	return out
}

var fieldNames = map[rune]string{
	'a': "supp",
	's': "supp.rel",
	'S': "supp%",
	'b': "body",
	'x': "body.rel",
	'X': "body%",
	'h': "head",
	'y': "head.rel",
	'Y': "head%",
	'c': "conf",
	'C': "conf%",
	'l': "lift",
	'L': "lift%",
	'e': "eval",
	'E': "eval%",
}

// Names returns a short column name per selected value.
func (f Fields) Names() []string {
	out := make([]string, 0, len(f.codes))
	for _, c := range f.codes {
		out = append(out, fieldNames[c])
	}
	return out
}

func value(r Record, code rune) float64 {
	switch code {
	case 'a':
		return float64(r.Support)
	case 's':
		return rel(r.Support, r.Total)
	case 'S':
		return pct(r.Support, r.Total)
	case 'b':
		return float64(r.BodySupport)
	case 'x':
		return rel(r.BodySupport, r.Total)
	case 'X':
		return pct(r.BodySupport, r.Total)
	case 'h':
		return float64(r.HeadSupport)
	case 'y':
		return rel(r.HeadSupport, r.Total)
	case 'Y':
		return pct(r.HeadSupport, r.Total)
	case 'c':
		return r.Confidence
	case 'C':
		return 100 * r.Confidence
	case 'l':
		return r.Lift
	case 'L':
		return 100 * r.Lift
	case 'e':
		return r.Value
	case 'E':
		return 100 * r.Value
	}
	return 0
}
