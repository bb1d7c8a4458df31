// Package miner runs one mining invocation end to end.
//
// Run resolves the parameters, drives a search strategy over the
// transaction database and hands the accepted itemsets or rules to a
// report.Sink. Frequent itemsets are streamed as the search finds them when
// no later stage needs the complete family. Closed, maximal and generator
// sets, rules and post-filtered evaluations are buffered and flushed once
// the search has finished.
package miner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/fimine/internal/closure"
	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/logging"
	"github.com/blackwell-systems/fimine/internal/report"
	"github.com/blackwell-systems/fimine/internal/rules"
	"github.com/blackwell-systems/fimine/internal/search"
	"github.com/blackwell-systems/fimine/internal/stats"
	"github.com/blackwell-systems/fimine/internal/tract"
)

var (
	// ErrInput marks empty or malformed transaction data.
	ErrInput = errors.New("invalid input")

	// ErrConfig marks unsupported or contradictory parameters.
	ErrConfig = errors.New("invalid configuration")

	// ErrInvariant marks an internal inconsistency, such as a subset whose
	// support was never recorded. Results of such a run cannot be trusted.
	ErrInvariant = errors.New("internal invariant violated")

	// ErrBudgetExceeded is wrapped by every *BudgetError.
	ErrBudgetExceeded = search.ErrBudgetExceeded
)

// errResultLimit stops a search when MaxResults records were reported.
var errResultLimit = errors.New("result limit reached")

// BudgetError reports a run stopped by one of its Budget limits. Finalized
// counts the records reported before the run returned.
type BudgetError struct {
	Limit     string
	Finalized int
	err       error
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("%s budget exceeded after %d results: %v", e.Limit, e.Finalized, e.err)
}

func (e *BudgetError) Unwrap() error { return e.err }

// Summary describes a finished run.
type Summary struct {
	RunID        string
	Strategy     string
	Target       search.Target
	MinSupport   int
	Transactions int
	Items        int
	Candidates   int64
	Emitted      int
	Elapsed      time.Duration
}

type entry struct {
	set  itemset.Set
	supp int
}

type run struct {
	p    Params
	r    resolved
	db   *tract.Database
	sink report.Sink

	n    int
	smin int

	// prune is set when the evaluation filter runs inside the search.
	prune bool
	// values holds the admitting test value of every set emitted by a
	// strategy that tests extensions.
	values map[string]float64

	index   *itemset.Index
	found   []entry
	tracker *closure.Tracker

	emitted int
}

// Run mines db with p and reports every accepted record to sink.
//
// Budget limits and cancellation stop the search. For streamed frequent
// itemsets the records reported so far stay valid. Buffered targets report
// nothing unless BestEffort is set, in which case the records that are
// consistent with the processed part of the search are flushed before the
// error is returned.
func Run(ctx context.Context, db *tract.Database, p Params, sink report.Sink) (Summary, error) {
	start := time.Now()
	if db == nil || db.Len() == 0 {
		return Summary{}, fmt.Errorf("%w: %w", ErrInput, tract.ErrNoTransactions)
	}
	if sink == nil {
		return Summary{}, fmt.Errorf("%w: no report sink", ErrConfig)
	}
	r, err := p.resolve()
	if err != nil {
		return Summary{}, err
	}

	m := &run{p: p, r: r, db: db, sink: sink, n: db.TotalWeight(), index: itemset.NewIndex()}
	m.smin = p.ResolveSupport(m.n)

	sum := Summary{
		RunID:        uuid.NewString(),
		Strategy:     r.strategy.Name(),
		Target:       p.Target,
		MinSupport:   m.smin,
		Transactions: db.Len(),
		Items:        db.ItemCount(),
	}
	ctx = logging.ContextWithRunID(ctx, sum.RunID)
	log := logging.Ctx(ctx)
	log.Info().
		Str("strategy", sum.Strategy).
		Str("target", p.Target.String()).
		Int("min_support", m.smin).
		Int("transactions", sum.Transactions).
		Int("items", sum.Items).
		Msg("mining started")

	parent := ctx
	if p.Budget.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Budget.Timeout)
		defer cancel()
	}

	var counters search.Counters
	cfg := search.Config{
		MinSupport: m.smin,
		MaxSize:    p.MaxSize,
		Budget:     search.Budget{MaxCandidates: p.Budget.MaxCandidates},
		Workers:    p.Workers,
		Variant:    p.Variant,
		Counters:   &counters,
	}
	cfg.Significance.MaxExt = p.MaxExt

	if r.eval.Active() {
		switch {
		case r.tester != nil:
			m.values = make(map[string]float64)
			cfg.Significance.Test = r.eval.Rule
			cfg.Significance.Level = p.Threshold
		case r.eval.Measure.Monotone && (p.Target == search.Frequent || p.Target == search.Generators):
			m.prune = true
			cfg.Keep = r.eval.Keep(m.n, db.Support)
		case p.Target != search.Rules:
			log.Debug().Str("measure", r.eval.Measure.Name).Msg("measure is not monotone, evaluating after the search")
		}
	}

	var budgetErr *BudgetError
	err = m.mine(ctx, cfg, func(searchErr error) (stop error, fatal error) {
		return m.classify(parent, searchErr)
	})
	if errors.As(err, &budgetErr) {
		budgetErr.Finalized = m.emitted
	}

	sum.Candidates = counters.Candidates.Load()
	sum.Emitted = m.emitted
	sum.Elapsed = time.Since(start)

	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Int("emitted", sum.Emitted).
		Int64("candidates", sum.Candidates).
		Dur("elapsed", sum.Elapsed).
		Msg("mining finished")
	return sum, err
}

// classify splits a search error into an interruption, after which partial
// results may be flushed, and a fatal error.
func (m *run) classify(parent context.Context, err error) (stop error, fatal error) {
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, errResultLimit):
		return &BudgetError{Limit: "results", err: fmt.Errorf("%w: limit of %d results", ErrBudgetExceeded, m.p.Budget.MaxResults)}, nil
	case errors.Is(err, search.ErrBudgetExceeded):
		return &BudgetError{Limit: "candidates", err: err}, nil
	case errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil:
		return &BudgetError{Limit: "time", err: fmt.Errorf("%w: timeout of %s", ErrBudgetExceeded, m.p.Budget.Timeout)}, nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err, nil
	}
	return nil, err
}

// mine runs the search for the requested target and reports the results.
func (m *run) mine(ctx context.Context, cfg search.Config, classify func(error) (error, error)) error {
	switch m.p.Target {
	case search.Frequent:
		if m.prune || m.values != nil || !m.r.eval.Active() {
			return m.stream(ctx, cfg, classify)
		}
	case search.Closed, search.Maximal:
		return m.mineClosure(ctx, cfg, classify)
	}
	return m.mineBuffered(ctx, cfg, classify)
}

// stream reports frequent itemsets as the search emits them.
func (m *run) stream(ctx context.Context, cfg search.Config, classify func(error) (error, error)) error {
	if m.p.MinSize == 0 && m.n >= m.smin {
		if err := m.reportItemset(nil, m.n, 0); err != nil {
			return m.streamErr(err, classify)
		}
	}
	err := m.enumerate(ctx, cfg, func(set itemset.Set, supp int) error {
		if len(set) < m.p.MinSize {
			return nil
		}
		var v float64
		switch {
		case len(set) == 0:
		case m.values != nil:
			v = m.values[set.Key()]
		case m.prune:
			var err error
			if v, err = m.r.eval.Itemset(set, supp, m.n, m.db.Support, nil); err != nil {
				return err
			}
		}
		return m.reportItemset(set, supp, v)
	})
	return m.streamErr(err, classify)
}

// enumerate runs the strategy. With a testing strategy the admitting test
// values are recorded for evaluate.
func (m *run) enumerate(ctx context.Context, cfg search.Config, emit search.Emit) error {
	if m.values == nil {
		return m.r.strategy.Enumerate(ctx, m.db, cfg, emit)
	}
	return m.r.tester.EnumerateValues(ctx, m.db, cfg, func(set itemset.Set, supp int, v float64) error {
		m.values[set.Key()] = v
		return emit(set, supp)
	})
}

func (m *run) streamErr(err error, classify func(error) (error, error)) error {
	stop, fatal := classify(err)
	if fatal != nil {
		return fmt.Errorf("%s search failed: %w", m.r.strategy.Name(), fatal)
	}
	return stop
}

// collect records every emitted set in the support index and in found.
func (m *run) collect(set itemset.Set, supp int) error {
	s := set.Clone()
	m.index.Put(s, supp)
	m.found = append(m.found, entry{set: s, supp: supp})
	return nil
}

// mineBuffered handles frequent sets with a post-filter, generators and
// rules: it collects the whole frequent family before reporting.
func (m *run) mineBuffered(ctx context.Context, cfg search.Config, classify func(error) (error, error)) error {
	err := m.enumerate(ctx, cfg, m.collect)
	stop, fatal := classify(err)
	if fatal != nil {
		return fmt.Errorf("%s search failed: %w", m.r.strategy.Name(), fatal)
	}
	partial := stop != nil
	if partial && !m.p.BestEffort {
		return stop
	}

	sort.Slice(m.found, func(i, j int) bool { return itemset.Less(m.found[i].set, m.found[j].set) })
	var flushErr error
	switch m.p.Target {
	case search.Rules:
		flushErr = m.flushRules(partial)
	case search.Generators:
		flushErr = m.flushGenerators(partial)
	default:
		flushErr = m.flushFrequent(partial)
	}
	return m.flushResult(stop, flushErr)
}

// flushResult merges the interruption of the search with the outcome of
// the flush. A result limit hit while flushing becomes a budget error.
func (m *run) flushResult(stop, flushErr error) error {
	if flushErr == nil {
		return stop
	}
	if errors.Is(flushErr, errResultLimit) {
		if stop != nil {
			return stop
		}
		s, _ := m.classify(context.Background(), flushErr)
		return s
	}
	return flushErr
}

func (m *run) flushFrequent(partial bool) error {
	if m.p.MinSize == 0 && m.n >= m.smin {
		if err := m.reportItemset(nil, m.n, 0); err != nil {
			return err
		}
	}
	for _, e := range m.found {
		if len(e.set) < m.p.MinSize {
			continue
		}
		v, ok, err := m.evaluate(e.set, e.supp, partial)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := m.reportItemset(e.set, e.supp, v); err != nil {
			return err
		}
	}
	return nil
}

// flushGenerators reports the sets whose every proper subset has a larger
// support. Checking the subsets I\{i} suffices since support is
// antimonotone.
func (m *run) flushGenerators(partial bool) error {
	if m.p.MinSize == 0 && m.n >= m.smin {
		if err := m.reportItemset(nil, m.n, 0); err != nil {
			return err
		}
	}
	for _, e := range m.found {
		if len(e.set) < m.p.MinSize {
			continue
		}
		gen, err := m.generator(e.set, e.supp)
		if err != nil {
			if partial {
				continue
			}
			return err
		}
		if !gen {
			continue
		}
		v, ok, err := m.evaluate(e.set, e.supp, partial)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := m.reportItemset(e.set, e.supp, v); err != nil {
			return err
		}
	}
	return nil
}

func (m *run) generator(set itemset.Set, supp int) (bool, error) {
	if len(set) == 1 {
		return supp < m.n, nil
	}
	for _, it := range set {
		sub := set.Without(it)
		s, ok := m.index.Support(sub)
		if !ok {
			return false, fmt.Errorf("%w: %w: subset %v of generator candidate %v", ErrInvariant, stats.ErrMissingSupport, sub, set)
		}
		if s == supp {
			return false, nil
		}
	}
	return true, nil
}

func (m *run) flushRules(partial bool) error {
	g := rules.Generator{
		MinConfidence: m.p.MinConfidence,
		Heads:         m.p.Heads,
		Eval:          m.r.eval,
		MinSupport:    m.smin,
	}
	minSize := max(m.p.MinSize, 2)
	for _, e := range m.found {
		if len(e.set) < minSize || !m.accept(len(e.set), e.supp) {
			continue
		}
		err := g.Generate(e.set, e.supp, m.index.Support, m.n, func(r rules.Rule) error {
			return m.emit(report.Record{
				Kind:        report.RuleKind,
				Items:       m.db.Labels(r.Body),
				Head:        m.db.Labels(r.Head),
				Support:     r.Support,
				Total:       m.n,
				Value:       r.Value,
				BodySupport: r.BodySupport,
				HeadSupport: r.HeadSupport,
				Confidence:  r.Confidence,
				Lift:        r.Lift,
			})
		})
		if errors.Is(err, stats.ErrMissingSupport) {
			if partial {
				continue
			}
			return fmt.Errorf("%w: %w", ErrInvariant, err)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// mineClosure feeds the search into the closure tracker and reports its
// finalized records. The search runs one level beyond MaxSize: a set is
// closed (maximal) iff no superset with one more item has equal (any
// frequent) support.
func (m *run) mineClosure(ctx context.Context, cfg search.Config, classify func(error) (error, error)) error {
	mode := closure.Closed
	if m.p.Target == search.Maximal {
		mode = closure.Maximal
	}
	m.tracker = closure.New(mode)
	if m.p.MinSize == 0 && m.n >= m.smin {
		m.tracker.Add(nil, m.n)
	}

	switch {
	case closedOnly(m.r.strategy):
		// Closed sets beyond MaxSize are needed to reject smaller ones.
		cfg.MaxSize = 0
	case cfg.MaxSize > 0:
		cfg.MaxSize++
	}

	err := m.enumerate(ctx, cfg, func(set itemset.Set, supp int) error {
		m.index.Put(set, supp)
		m.tracker.Add(set, supp)
		return nil
	})
	stop, fatal := classify(err)
	if fatal != nil {
		return fmt.Errorf("%s search failed: %w", m.r.strategy.Name(), fatal)
	}
	partial := stop != nil
	if partial && !m.p.BestEffort {
		return stop
	}

	recs, err := m.tracker.Finalize()
	if err != nil {
		return fmt.Errorf("%w: %s tracker: %w", ErrInvariant, mode, err)
	}
	logging.Debug().Int("records", m.tracker.Len()).Int("live", len(recs)).Str("mode", mode.String()).Msg("closure finalized")

	var flushErr error
	for _, rec := range recs {
		size := len(rec.Items)
		if size < m.p.MinSize || (m.p.MaxSize > 0 && size > m.p.MaxSize) {
			continue
		}
		v, ok, err := m.evaluate(rec.Items, rec.Support, partial)
		if err != nil {
			flushErr = err
			break
		}
		if !ok {
			continue
		}
		if err := m.reportItemset(rec.Items, rec.Support, v); err != nil {
			flushErr = err
			break
		}
	}
	return m.flushResult(stop, flushErr)
}

// evaluate applies the evaluation filter after the search. It reports
// whether the set passes. Missing subset supports are an invariant
// violation, or skip the set in a partial flush.
func (m *run) evaluate(set itemset.Set, supp int, partial bool) (float64, bool, error) {
	if !m.r.eval.Active() || len(set) == 0 {
		return 0, true, nil
	}
	if m.values != nil {
		// The search admitted only sets that passed their test.
		return m.values[set.Key()], true, nil
	}
	v, err := m.r.eval.Itemset(set, supp, m.n, m.db.Support, m.index.Support)
	if err != nil {
		if partial && errors.Is(err, stats.ErrMissingSupport) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%w: %w", ErrInvariant, err)
	}
	return v, m.r.eval.Pass(v), nil
}

// accept applies the border and the baseline spectrum.
func (m *run) accept(size, supp int) bool {
	if !m.p.Border.Pass(size, supp) {
		return false
	}
	if m.p.Baseline != nil && !m.p.Baseline.Significant(size, supp, m.p.BaselineAlpha) {
		return false
	}
	return true
}

func (m *run) reportItemset(set itemset.Set, supp int, v float64) error {
	if !m.accept(len(set), supp) {
		return nil
	}
	return m.emit(report.Record{
		Kind:    report.ItemsetKind,
		Items:   m.db.Labels(set),
		Support: supp,
		Total:   m.n,
		Value:   v,
	})
}

// emit hands rec to the sink. Callers are serialized: strategies that fan
// out lock their emit callback.
func (m *run) emit(rec report.Record) error {
	if limit := m.p.Budget.MaxResults; limit > 0 && m.emitted >= limit {
		return errResultLimit
	}
	if err := m.sink.Emit(rec); err != nil {
		return err
	}
	m.emitted++
	if m.p.Spectrum != nil && rec.Kind == report.ItemsetKind {
		m.p.Spectrum.Add(rec.Size(), rec.Support, 1)
	}
	return nil
}
