// Package search enumerates frequent itemsets.
//
// A Strategy walks the itemset lattice of a transaction database and emits
// every itemset whose support reaches Config.MinSupport exactly once. The
// strategies differ in the counting substrate they traverse:
//
//   - apriori:  level-wise candidate generation on an itemset tree
//   - eclat:    depth-first intersection of vertical occurrence sets
//   - fpgrowth: recursive conditional prefix trees
//   - sam:      split and merge of sorted transaction suffix lists
//   - relim:    recursive elimination of per-item transaction lists
//   - ista:     cumulative transaction intersection (closed sets only)
//   - carpenter: transaction set enumeration (closed sets only)
//   - accretion: significance-gated growth on occurrence sets
//
// All strategies agree on the emitted family for the same configuration;
// only the emission order differs. Accretion agrees as long as no
// significance test is configured.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/tract"
)

var (
	// ErrUnknownStrategy is returned by Lookup for unregistered names.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrUnsupportedTarget is returned when a strategy cannot produce a target.
	ErrUnsupportedTarget = errors.New("target not supported by strategy")

	// ErrBudgetExceeded is returned when the candidate budget is exhausted.
	ErrBudgetExceeded = errors.New("candidate budget exceeded")
)

// Target selects the itemset family a run reports.
type Target int

const (
	// Frequent reports every frequent itemset.
	Frequent Target = iota
	// Closed reports itemsets without a superset of equal support.
	Closed
	// Maximal reports itemsets without a frequent superset.
	Maximal
	// Generators reports itemsets without a subset of equal support.
	Generators
	// Rules derives association rules from the frequent itemsets.
	Rules
)

var targetNames = [...]string{"frequent", "closed", "maximal", "generators", "rules"}

func (t Target) String() string {
	if int(t) < 0 || int(t) >= len(targetNames) {
		return fmt.Sprintf("target(%d)", int(t))
	}
	return targetNames[t]
}

// ParseTarget accepts a target name or its one-letter code (s, c, m, g, r).
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "frequent", "all", "s", "a", "f":
		return Frequent, nil
	case "closed", "c":
		return Closed, nil
	case "maximal", "m":
		return Maximal, nil
	case "generators", "gens", "g":
		return Generators, nil
	case "rules", "r":
		return Rules, nil
	}
	return 0, fmt.Errorf("unknown target %q", s)
}

// Emit receives one frequent itemset. The set is only valid for the duration
// of the call. A non-nil error stops the enumeration and is returned by
// Enumerate unchanged.
type Emit func(set itemset.Set, support int) error

// Keep decides whether a frequent candidate and all its extensions stay in
// the search. Only antimonotone predicates give exact results.
type Keep func(set itemset.Set, support int) bool

// Budget bounds the work of one enumeration. Zero values mean unlimited.
type Budget struct {
	MaxCandidates int
}

// Counters collects statistics of an enumeration. Safe for concurrent use.
type Counters struct {
	Candidates atomic.Int64
}

// Config holds the parameters shared by all strategies.
type Config struct {
	// MinSupport is the absolute minimum support, at least 1.
	MinSupport int

	// MaxSize limits the itemset size; 0 means unbounded.
	MaxSize int

	// Keep prunes candidates during the search. May be nil.
	Keep Keep

	Budget Budget

	// Workers > 1 lets strategies that support it fan out top-level branches.
	Workers int

	// Variant selects a strategy specific flavour, e.g. "bits" for eclat.
	Variant string

	// Counters is filled in when non-nil.
	Counters *Counters

	// Significance gates extensions in strategies that test them.
	Significance Significance
}

// Significance decides which extensions of an itemset S are followed. An
// extension by item x is accepted when Test(supp(S∪{x}), supp(S), supp(x), n)
// is at most Level. A nil Test accepts every extension. MaxExt > 0 limits a
// non-empty S to its MaxExt most significant extensions.
type Significance struct {
	Test   func(s, b, h, n int) float64
	Level  float64
	MaxExt int
}

// value returns the test value of an extension; 0 without a test.
func (g Significance) value(s, b, h, n int) float64 {
	if g.Test == nil {
		return 0
	}
	return g.Test(s, b, h, n)
}

func (g Significance) accepts(v float64) bool {
	return g.Test == nil || v <= g.Level
}

func (c Config) keep(set itemset.Set, supp int) bool {
	return c.Keep == nil || c.Keep(set, supp)
}

func (c Config) atMax(size int) bool {
	return c.MaxSize > 0 && size >= c.MaxSize
}

// Strategy is an itemset enumeration algorithm.
type Strategy interface {
	// Name returns the registry name.
	Name() string

	// Supports reports whether the strategy can produce target.
	Supports(target Target) bool

	// Parallel reports whether Config.Workers is honoured.
	Parallel() bool

	// Enumerate emits the frequent itemsets of db of size 1..MaxSize.
	Enumerate(ctx context.Context, db *tract.Database, cfg Config, emit Emit) error
}

// EmitValue receives one itemset together with the test value that admitted
// it to the search.
type EmitValue func(set itemset.Set, support int, value float64) error

// ValueEnumerator is implemented by strategies that test extensions while
// they search and can report the value of each admitting test.
type ValueEnumerator interface {
	EnumerateValues(ctx context.Context, db *tract.Database, cfg Config, emit EmitValue) error
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Strategy{}
)

// Register adds a strategy under its name, replacing any previous entry.
func Register(s Strategy) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Name()] = s
}

// Lookup returns the strategy registered under name.
func Lookup(name string) (Strategy, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return s, nil
}

// Names lists the registered strategies in alphabetical order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(Apriori{})
	Register(Eclat{})
	Register(FPGrowth{})
	Register(SAM{})
	Register(Relim{})
	Register(ISTA{})
	Register(Carpenter{})
	Register(Accretion{})
}

// allTargets is shared by strategies that enumerate the full frequent
// family, from which every target can be derived.
func allTargets(Target) bool { return true }

// budget tracks candidate consumption across goroutines.
type budget struct {
	max      int64
	used     atomic.Int64
	counters *Counters
}

func newBudget(cfg Config) *budget {
	return &budget{max: int64(cfg.Budget.MaxCandidates), counters: cfg.Counters}
}

func (b *budget) spend(n int) error {
	if n <= 0 {
		return nil
	}
	if b.counters != nil {
		b.counters.Candidates.Add(int64(n))
	}
	used := b.used.Add(int64(n))
	if b.max > 0 && used > b.max {
		return fmt.Errorf("%w: %d candidates examined, limit %d", ErrBudgetExceeded, used, b.max)
	}
	return nil
}

// cancelled reports whether ctx is done without blocking.
func cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// prepare filters db to the frequent items.
func prepare(db *tract.Database, cfg Config) (*tract.Database, error) {
	if cfg.MinSupport < 1 {
		return nil, fmt.Errorf("minimum support must be at least 1, got %d", cfg.MinSupport)
	}
	return db.Filter(cfg.MinSupport), nil
}
