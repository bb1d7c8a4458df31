package miner

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/blackwell-systems/fimine/internal/report"
	"github.com/blackwell-systems/fimine/internal/rules"
	"github.com/blackwell-systems/fimine/internal/search"
	"github.com/blackwell-systems/fimine/internal/stats"
)

// DefaultStrategy is used when Params.Strategy is empty.
const DefaultStrategy = "eclat"

// Budget bounds one run. Zero values mean unlimited.
type Budget struct {
	// MaxResults caps the number of reported records.
	MaxResults int
	// MaxCandidates caps the candidates examined by the search.
	MaxCandidates int
	Timeout       time.Duration
}

// Params configures one mining run.
type Params struct {
	Strategy string
	Variant  string
	Target   search.Target

	// MinSupport is an absolute count when positive and a percentage of the
	// total transaction weight when negative: -25 means 25%.
	MinSupport float64

	// MinSize and MaxSize bound the reported itemset (or rule) size. MinSize
	// 0 admits the empty set; MaxSize 0 is unbounded.
	MinSize int
	MaxSize int

	// Eval names the evaluation measure, by name or one-letter code.
	Eval      string
	Agg       string
	Threshold float64
	// InvalidateBelowExpected gives rules whose support does not exceed the
	// expectation under independence the worst evaluation value.
	InvalidateBelowExpected bool

	// MaxExt limits the accretion strategy to the MaxExt most significant
	// extensions of each itemset; 0 follows every significant one.
	MaxExt int

	MinConfidence float64
	Heads         rules.HeadMode

	// Report holds the report field codes; empty selects the defaults.
	Report string

	Border stats.Border

	// Baseline is an expected pattern spectrum; reported itemsets must have
	// an expected count below BaselineAlpha in it.
	Baseline      *stats.Spectrum
	BaselineAlpha float64

	// Spectrum, when non-nil, receives the reported itemsets.
	Spectrum *stats.Spectrum

	Budget     Budget
	BestEffort bool
	Workers    int
}

// DefaultParams returns parameters for frequent itemsets with 10% support.
func DefaultParams() Params {
	return Params{
		Strategy:      DefaultStrategy,
		Target:        search.Frequent,
		MinSupport:    -10,
		MinSize:       1,
		MinConfidence: 0.8,
		BaselineAlpha: 0.01,
	}
}

// resolved holds the parsed form of Params.
type resolved struct {
	strategy search.Strategy
	// tester is set when the strategy tests extensions with the evaluation
	// measure during the search.
	tester   search.ValueEnumerator
	eval     stats.Filter
	fields   report.Fields
}

// Validate checks the parameters before any search starts. Every error
// wraps ErrConfig.
func (p Params) Validate() error {
	_, err := p.resolve()
	return err
}

func (p Params) resolve() (resolved, error) {
	var r resolved
	cfgErr := func(format string, args ...any) (resolved, error) {
		return resolved{}, fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
	}

	if p.MinSupport == 0 || math.IsNaN(p.MinSupport) || math.IsInf(p.MinSupport, 0) {
		return cfgErr("minimum support must be non-zero and finite, got %v", p.MinSupport)
	}
	if p.MinSupport < -100 {
		return cfgErr("minimum support percentage %v exceeds 100", -p.MinSupport)
	}
	if p.MinSize < 0 || p.MaxSize < 0 {
		return cfgErr("itemset sizes must not be negative (zmin %d, zmax %d)", p.MinSize, p.MaxSize)
	}
	if p.MaxSize > 0 && p.MaxSize < p.MinSize {
		return cfgErr("maximum size %d is below minimum size %d", p.MaxSize, p.MinSize)
	}
	if p.Budget.MaxResults < 0 || p.Budget.MaxCandidates < 0 || p.Budget.Timeout < 0 {
		return cfgErr("budget limits must not be negative")
	}
	if p.Workers < 0 {
		return cfgErr("workers must not be negative, got %d", p.Workers)
	}
	if p.MaxExt < 0 {
		return cfgErr("maximum extensions must not be negative, got %d", p.MaxExt)
	}

	name := p.Strategy
	if name == "" {
		name = DefaultStrategy
	}
	s, err := search.Lookup(name)
	if err != nil {
		return resolved{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if !s.Supports(p.Target) {
		return resolved{}, fmt.Errorf("%w: %w: %s cannot mine %s", ErrConfig, search.ErrUnsupportedTarget, s.Name(), p.Target)
	}
	if p.Workers > 1 && !s.Parallel() {
		return cfgErr("%s does not run in parallel", s.Name())
	}
	if p.Variant != "" && !(s.Name() == "eclat" && (p.Variant == "tids" || p.Variant == "bits")) {
		return cfgErr("unknown variant %q for %s", p.Variant, s.Name())
	}
	r.strategy = s

	m, err := stats.ParseMeasure(p.Eval)
	if err != nil {
		return resolved{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	agg, err := stats.ParseAgg(p.Agg)
	if err != nil {
		return resolved{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if math.IsNaN(p.Threshold) {
		return cfgErr("evaluation threshold is NaN")
	}
	r.eval = stats.Filter{Measure: m, Agg: agg, Threshold: p.Threshold, InvalidateBelowExpected: p.InvalidateBelowExpected}
	if closedOnly(s) && r.eval.Active() && !direct(m) {
		return cfgErr("%s records no subset supports, measure %s is unavailable", s.Name(), m.Name)
	}
	if ve, ok := s.(search.ValueEnumerator); ok && r.eval.Active() {
		if m.Dir != stats.Lower {
			return cfgErr("%s tests extensions with a p-value measure, %s is not one", s.Name(), m.Name)
		}
		if p.Threshold <= 0 || p.Threshold > 1 {
			return cfgErr("significance level must be in (0, 1], got %v", p.Threshold)
		}
		r.tester = ve
	}
	if p.MaxExt > 0 && r.tester == nil {
		return cfgErr("maximum extensions need a strategy testing extensions with a p-value measure")
	}

	if p.MinConfidence < 0 || p.MinConfidence > 1 || math.IsNaN(p.MinConfidence) {
		return cfgErr("minimum confidence must be in [0, 1], got %v", p.MinConfidence)
	}

	kind := report.ItemsetKind
	if p.Target == search.Rules {
		kind = report.RuleKind
	}
	r.fields = report.DefaultFields(kind)
	if p.Report != "" {
		f, err := report.ParseFields(p.Report, kind)
		if err != nil {
			return resolved{}, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		r.fields = f
	}

	if p.Baseline != nil && p.BaselineAlpha <= 0 {
		return cfgErr("baseline alpha must be positive, got %v", p.BaselineAlpha)
	}
	return r, nil
}

// closedOnly reports whether s emits closed itemsets only.
func closedOnly(s search.Strategy) bool {
	return !s.Supports(search.Frequent)
}

// direct reports whether m is evaluated from item supports alone.
func direct(m stats.Measure) bool {
	return m.Name == "allconf" || m.Name == "ldratio"
}

// ResolveSupport converts MinSupport to an absolute count for a database of
// total weight total. The result is at least 1.
func (p Params) ResolveSupport(total int) int {
	const eps = 1e-9
	var s float64
	if p.MinSupport < 0 {
		s = math.Ceil(-p.MinSupport/100*float64(total) - eps)
	} else {
		s = math.Ceil(p.MinSupport - eps)
	}
	if s < 1 {
		return 1
	}
	return int(s)
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool { return errors.Is(err, ErrConfig) }
