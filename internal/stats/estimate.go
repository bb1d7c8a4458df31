package stats

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/fimine/internal/itemset"
	"github.com/blackwell-systems/fimine/internal/search"
	"github.com/blackwell-systems/fimine/internal/tract"
)

// EstimateOptions configures the surrogate estimation of a pattern spectrum.
type EstimateOptions struct {
	// MinSupport is the absolute minimum support of the surrogate runs.
	MinSupport int
	// MinSize and MaxSize bound the counted itemset sizes; MaxSize 0 is
	// unbounded.
	MinSize int
	MaxSize int

	// Surrogates is the number of surrogate databases, default 100.
	Surrogates int
	Seed       uint64

	// Strategy mines the surrogates, default eclat.
	Strategy search.Strategy
	Budget   search.Budget

	// Workers mines surrogates concurrently when > 1.
	Workers int

	// Progress, if set, is called once per finished surrogate. It may be
	// called from several goroutines.
	Progress func()
}

// Estimate averages the pattern spectra of surrogate databases drawn under
// the independence model: every surrogate keeps the transaction sizes and
// weights of db and fills each transaction with distinct items drawn in
// proportion to their support.
func Estimate(ctx context.Context, db *tract.Database, opts EstimateOptions) (*Spectrum, error) {
	if opts.MinSupport < 1 {
		return nil, fmt.Errorf("minimum support must be at least 1, got %d", opts.MinSupport)
	}
	if opts.Surrogates <= 0 {
		opts.Surrogates = 100
	}
	if opts.Strategy == nil {
		opts.Strategy = search.Eclat{}
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	total := NewSpectrum()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < opts.Surrogates; i++ {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(opts.Seed, uint64(i)))
			sur, err := Surrogate(db, rng)
			if err != nil {
				return err
			}
			spec := NewSpectrum()
			cfg := search.Config{MinSupport: opts.MinSupport, MaxSize: opts.MaxSize, Budget: opts.Budget}
			err = opts.Strategy.Enumerate(gctx, sur, cfg, func(set itemset.Set, supp int) error {
				if len(set) >= opts.MinSize {
					spec.Observe(set, supp)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to mine surrogate %d: %w", i, err)
			}
			total.Merge(spec)
			if opts.Progress != nil {
				opts.Progress()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	total.Scale(1 / float64(opts.Surrogates))
	return total, nil
}

// Surrogate draws one independence-model surrogate of db.
func Surrogate(db *tract.Database, rng *rand.Rand) (*tract.Database, error) {
	supports := db.Supports()
	cum := make([]float64, len(supports))
	sum := 0.0
	for i, s := range supports {
		sum += float64(s)
		cum[i] = sum
	}
	if sum == 0 {
		return nil, errors.New("database has no items")
	}

	table := db.Table()
	b := tract.NewBuilder()
	picked := make(map[int]bool)
	for _, t := range db.Transactions() {
		k := len(t.Items)
		clear(picked)
		labels := make([]string, 0, k)
		if k >= len(supports) {
			for i := range supports {
				labels = append(labels, table.Label(tract.Item(i)))
			}
		}
		for len(labels) < k {
			i := sort.SearchFloat64s(cum, rng.Float64()*sum)
			if i >= len(cum) {
				i = len(cum) - 1
			}
			// Items with zero support have zero width in cum and are never
			// returned by the search.
			if picked[i] {
				continue
			}
			picked[i] = true
			labels = append(labels, table.Label(tract.Item(i)))
		}
		if err := b.Add(labels, t.Weight); err != nil {
			return nil, err
		}
	}
	return b.Build()
}
