package app

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/fimine/internal/miner"
	"github.com/blackwell-systems/fimine/internal/output"
	"github.com/blackwell-systems/fimine/internal/report"
	"github.com/blackwell-systems/fimine/internal/search"
	"github.com/blackwell-systems/fimine/internal/stats"
)

var (
	spectrumFlags    miningFlags
	spectrumEstimate bool
	surrogates       int

	spectrumCmd = &cobra.Command{
		Use:   "spectrum [input]",
		Short: "Count itemsets by size and support",
		Long: `Print the pattern spectrum of a database: for every itemset size and
support, the number of itemsets of that size with exactly that support.

By default the spectrum of the itemsets mined with the given target and
filters is counted. With --estimate the spectrum is instead averaged over
surrogate databases that keep the transaction sizes and item frequencies
but draw items independently; it shows how many patterns of each size and
support are expected by chance.

Spectrum lines are written as "size support count". A spectrum written with
--estimate can be used as the significance baseline of later runs.`,
		Example: `  # Observed spectrum of frequent itemsets
  fimine spectrum baskets.txt --supp 2

  # Expected spectrum over 200 surrogates
  fimine spectrum baskets.txt --supp 2 --estimate --surrogates 200 --seed 7`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSpectrum,
	}
)

func init() {
	registerMiningFlags(spectrumCmd, &spectrumFlags, true)
	spectrumCmd.Flags().BoolVar(&spectrumEstimate, "estimate", false, "estimate the spectrum from surrogate databases")
	spectrumCmd.Flags().IntVar(&surrogates, "surrogates", 100, "number of surrogate databases for --estimate")
}

func runSpectrum(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p, err := buildParams(cmd, &spectrumFlags, "")
	if err != nil {
		return err
	}
	if p.Target == search.Rules {
		return fmt.Errorf("%w: the pattern spectrum counts itemsets, not rules", miner.ErrConfig)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	db, err := loadDatabase(cmd, &spectrumFlags, args)
	if err != nil {
		return err
	}

	var spec *stats.Spectrum
	if spectrumEstimate {
		if surrogates < 1 {
			return fmt.Errorf("%w: --surrogates must be at least 1", miner.ErrConfig)
		}
		s, err := search.Lookup(p.Strategy)
		if err != nil {
			return fmt.Errorf("%w: %w", miner.ErrConfig, err)
		}
		if !s.Supports(search.Frequent) {
			return fmt.Errorf("%w: %s cannot enumerate frequent itemsets for surrogates", miner.ErrConfig, s.Name())
		}
		spec, err = estimate(ctx, cmd, db, stats.EstimateOptions{
			MinSupport: p.ResolveSupport(db.TotalWeight()),
			MinSize:    p.MinSize,
			MaxSize:    p.MaxSize,
			Surrogates: surrogates,
			Seed:       pick(cmd, "seed", spectrumFlags.seed, cfg.Mining.Seed),
			Strategy:   s,
			Budget:     search.Budget{MaxCandidates: p.Budget.MaxCandidates},
			Workers:    max(p.Workers, 1),
		})
		if err != nil {
			return err
		}
	} else {
		if err := applyBaseline(ctx, cmd, &spectrumFlags, db, &p); err != nil {
			return err
		}
		spec = stats.NewSpectrum()
		p.Spectrum = spec
		summary, err := miner.Run(ctx, db, p, report.SinkFunc(func(report.Record) error { return nil }))
		if err := finishRun(cmd, &spectrumFlags, summary, err); err != nil {
			return err
		}
	}

	return writeSpectrum(cmd, spec)
}

func writeSpectrum(cmd *cobra.Command, spec *stats.Spectrum) error {
	w, closeOut, err := openOutput(cmd, spectrumFlags.out)
	if err != nil {
		return err
	}
	if pick(cmd, "format", spectrumFlags.format, cfg.Output.Format) == "table" {
		_, err = io.WriteString(w, output.RenderSpectrumTable(spec))
	} else {
		err = report.WriteSpectrum(w, spec)
	}
	if cerr := closeOut(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write spectrum: %w", err)
	}
	return nil
}
