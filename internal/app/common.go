package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/fimine/internal/logging"
	"github.com/blackwell-systems/fimine/internal/miner"
	"github.com/blackwell-systems/fimine/internal/output"
	"github.com/blackwell-systems/fimine/internal/report"
	"github.com/blackwell-systems/fimine/internal/rules"
	"github.com/blackwell-systems/fimine/internal/search"
	"github.com/blackwell-systems/fimine/internal/stats"
	"github.com/blackwell-systems/fimine/internal/store"
	"github.com/blackwell-systems/fimine/internal/tract"
)

// miningFlags holds the flags shared by mine, rules, spectrum and watch.
// Each command has its own copy so flag state never leaks between them.
type miningFlags struct {
	algo          string
	variant       string
	target        string
	supp          float64
	zmin          int
	zmax          int
	eval          string
	agg           string
	thresh        float64
	invbxs        bool
	maxExt        int
	report        string
	border        string
	maxResults    int
	maxCandidates int
	timeout       time.Duration
	bestEffort    bool
	workers       int

	conf  float64
	heads string

	psfSurrogates int
	psfAlpha      float64
	seed          uint64

	sep     string
	weights bool
	dbPath  string
	source  string
	format  string
	out     string
	quiet   bool
}

// registerMiningFlags adds the mining flags to cmd. Defaults shown in help
// come from the built-in profile; a loaded profile replaces them for every
// flag the user did not set.
func registerMiningFlags(cmd *cobra.Command, f *miningFlags, withTarget bool) {
	fs := cmd.Flags()
	fs.StringVar(&f.algo, "algo", miner.DefaultStrategy, "search strategy (see 'fimine algos')")
	fs.StringVar(&f.variant, "variant", "", "strategy variant: tids or bits for eclat")
	if withTarget {
		fs.StringVarP(&f.target, "target", "t", "frequent", "frequent, closed, maximal or generators")
	}
	fs.Float64VarP(&f.supp, "supp", "s", -10, "minimum support: count if positive, percent if negative")
	fs.IntVar(&f.zmin, "zmin", 1, "minimum pattern size")
	fs.IntVar(&f.zmax, "zmax", 0, "maximum pattern size (0 = unbounded)")
	fs.StringVarP(&f.eval, "eval", "e", "none", "evaluation measure name or code")
	fs.StringVar(&f.agg, "agg", "none", "evaluation aggregation: none, min, max, avg")
	fs.Float64Var(&f.thresh, "thresh", 0, "evaluation threshold")
	fs.BoolVar(&f.invbxs, "invbxs", false, "invalidate evaluation below expected support")
	fs.IntVar(&f.maxExt, "maxext", 0, "accretion: follow at most this many extensions per itemset (0 = all significant)")
	fs.StringVar(&f.report, "report", "", "report fields, e.g. aS for absolute and percent support")
	fs.StringVar(&f.border, "border", "", "per-size minimum supports, comma separated from size 0")
	fs.IntVar(&f.maxResults, "max-results", 0, "stop after this many results (0 = unlimited)")
	fs.IntVar(&f.maxCandidates, "max-candidates", 0, "stop after examining this many candidates (0 = unlimited)")
	fs.DurationVar(&f.timeout, "timeout", 0, "stop mining after this long (0 = no limit)")
	fs.BoolVar(&f.bestEffort, "best-effort", false, "report consistent partial results when a limit is hit")
	fs.IntVarP(&f.workers, "workers", "w", 1, "parallel workers for strategies that fan out")
	fs.IntVar(&f.psfSurrogates, "psf-surrogates", 0, "filter by a pattern spectrum estimated from this many surrogates")
	fs.Float64Var(&f.psfAlpha, "psf-alpha", 0.01, "expected-count cutoff for pattern spectrum filtering")
	fs.Uint64Var(&f.seed, "seed", 1, "random seed for surrogate databases")
	fs.StringVar(&f.sep, "sep", "", "item separator characters (default: blank, tab and comma)")
	fs.BoolVar(&f.weights, "weights", false, "read a trailing ': weight' on each transaction line")
	fs.StringVar(&f.dbPath, "db", "", "read transactions from this SQLite store instead of a file")
	fs.StringVar(&f.source, "source", "", "with --db, read only transactions imported from this source")
	fs.StringVarP(&f.format, "format", "f", "text", "output format: text or table")
	fs.StringVarP(&f.out, "out", "o", "-", "output file (- for stdout)")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "do not print the run summary")
}

// pick returns the flag value when the user set the flag and the profile
// value otherwise.
func pick[T any](cmd *cobra.Command, name string, flag, profile T) T {
	if cmd.Flags().Changed(name) {
		return flag
	}
	return profile
}

// buildParams merges the profile and the command line into run parameters.
// target overrides the --target flag when non-empty.
func buildParams(cmd *cobra.Command, f *miningFlags, target string) (miner.Params, error) {
	m := cfg.Mining
	p := miner.DefaultParams()

	p.Strategy = pick(cmd, "algo", f.algo, m.Algorithm)
	if p.Strategy == "" {
		p.Strategy = miner.DefaultStrategy
	}
	p.Variant = pick(cmd, "variant", f.variant, m.Variant)
	p.MinSupport = pick(cmd, "supp", f.supp, m.Support)
	p.MinSize = pick(cmd, "zmin", f.zmin, m.MinSize)
	p.MaxSize = pick(cmd, "zmax", f.zmax, m.MaxSize)
	p.Eval = pick(cmd, "eval", f.eval, m.Eval)
	p.Agg = pick(cmd, "agg", f.agg, m.Agg)
	p.Threshold = pick(cmd, "thresh", f.thresh, m.Threshold)
	p.InvalidateBelowExpected = pick(cmd, "invbxs", f.invbxs, m.InvBxs)
	p.MaxExt = pick(cmd, "maxext", f.maxExt, m.MaxExt)
	p.Report = pick(cmd, "report", f.report, cfg.Output.Report)
	p.Budget = miner.Budget{
		MaxResults:    pick(cmd, "max-results", f.maxResults, m.MaxResults),
		MaxCandidates: pick(cmd, "max-candidates", f.maxCandidates, m.MaxCandidates),
		Timeout:       pick(cmd, "timeout", f.timeout, m.Timeout),
	}
	p.BestEffort = pick(cmd, "best-effort", f.bestEffort, m.BestEffort)
	p.Workers = pick(cmd, "workers", f.workers, m.Workers)
	p.MinConfidence = pick(cmd, "conf", f.conf, m.Confidence)
	p.BaselineAlpha = pick(cmd, "psf-alpha", f.psfAlpha, m.PSFAlpha)

	if target == "" {
		target = pick(cmd, "target", f.target, m.Target)
	}
	t, err := search.ParseTarget(target)
	if err != nil {
		return miner.Params{}, fmt.Errorf("%w: %w", miner.ErrConfig, err)
	}
	p.Target = t

	heads, err := rules.ParseHeadMode(pick(cmd, "heads", f.heads, m.Heads))
	if err != nil {
		return miner.Params{}, fmt.Errorf("%w: %w", miner.ErrConfig, err)
	}
	p.Heads = heads

	if border := pick(cmd, "border", f.border, m.Border); border != "" {
		b, err := parseBorder(border)
		if err != nil {
			return miner.Params{}, fmt.Errorf("%w: %w", miner.ErrConfig, err)
		}
		p.Border = b
	}
	return p, nil
}

// parseBorder reads a comma separated list of per-size minimum supports.
func parseBorder(s string) (stats.Border, error) {
	var b stats.Border
	for _, field := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid border value %q", field)
		}
		b = append(b, n)
	}
	return b, nil
}

// loadDatabase reads the transactions named by args or --db. No argument,
// or "-", reads stdin.
func loadDatabase(cmd *cobra.Command, f *miningFlags, args []string) (*tract.Database, error) {
	if f.dbPath != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("%w: give either an input file or --db, not both", miner.ErrConfig)
		}
		return loadStore(f.dbPath, f.source)
	}

	opts := tract.ReadOptions{
		Separators: pick(cmd, "sep", f.sep, cfg.Input.Separators),
		Weights:    pick(cmd, "weights", f.weights, cfg.Input.Weights),
	}
	if len(args) == 0 || args[0] == "-" {
		return readTransactions(cmd.InOrStdin(), "stdin", opts)
	}
	return readFile(args[0], opts)
}

func readFile(path string, opts tract.ReadOptions) (*tract.Database, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", miner.ErrInput, err)
	}
	defer file.Close()
	return readTransactions(file, path, opts)
}

func readTransactions(r io.Reader, name string, opts tract.ReadOptions) (*tract.Database, error) {
	db, err := tract.Read(r, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", miner.ErrInput, name, err)
	}
	logging.Debug().Str("input", name).Int("transactions", db.Len()).Int("items", db.ItemCount()).Msg("read transactions")
	return db, nil
}

func loadStore(path, source string) (*tract.Database, error) {
	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", miner.ErrInput, err)
	}
	defer st.Close()

	db, err := st.Load(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", miner.ErrInput, err)
	}
	return db, nil
}

// openOutput returns the writer for --out and a function that closes it.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return nil, nil, err
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, file.Close, nil
}

// ensureDir creates dir and its parents if needed.
func ensureDir(dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// applyBaseline estimates the pattern spectrum of surrogate databases and
// installs it as the significance baseline of p.
func applyBaseline(ctx context.Context, cmd *cobra.Command, f *miningFlags, db *tract.Database, p *miner.Params) error {
	n := pick(cmd, "psf-surrogates", f.psfSurrogates, cfg.Mining.PSFSurrogates)
	if n <= 0 {
		return nil
	}
	s, err := search.Lookup(p.Strategy)
	if err != nil {
		return fmt.Errorf("%w: %w", miner.ErrConfig, err)
	}
	if !s.Supports(search.Frequent) {
		s = search.Eclat{}
	}

	spec, err := estimate(ctx, cmd, db, stats.EstimateOptions{
		MinSupport: p.ResolveSupport(db.TotalWeight()),
		MinSize:    p.MinSize,
		MaxSize:    p.MaxSize,
		Surrogates: n,
		Seed:       pick(cmd, "seed", f.seed, cfg.Mining.Seed),
		Strategy:   s,
		Budget:     search.Budget{MaxCandidates: p.Budget.MaxCandidates},
		Workers:    max(p.Workers, 1),
	})
	if err != nil {
		return err
	}
	p.Baseline = spec
	return nil
}

// estimate runs stats.Estimate with a progress bar on terminals.
func estimate(ctx context.Context, cmd *cobra.Command, db *tract.Database, opts stats.EstimateOptions) (*stats.Spectrum, error) {
	errOut := cmd.ErrOrStderr()
	if output.IsTerminal(errOut) {
		bar := output.NewProgress(opts.Surrogates, "Estimating pattern spectrum")
		bar.SetWriter(errOut)
		opts.Progress = bar.Increment
		defer bar.Finish()
	}

	spec, err := stats.Estimate(ctx, db, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate pattern spectrum: %w", err)
	}
	logging.Debug().Int("surrogates", opts.Surrogates).Int("cells", spec.Len()).Msg("estimated pattern spectrum")
	return spec, nil
}

// mineAndReport runs one mining pass and writes the results in the selected
// format.
func mineAndReport(ctx context.Context, cmd *cobra.Command, f *miningFlags, db *tract.Database, p miner.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := applyBaseline(ctx, cmd, f, db, &p); err != nil {
		return err
	}

	w, closeOut, err := openOutput(cmd, f.out)
	if err != nil {
		return err
	}

	format := pick(cmd, "format", f.format, cfg.Output.Format)
	var summary miner.Summary
	switch format {
	case "table":
		summary, err = mineTable(ctx, cmd, w, db, p)
	case "text":
		summary, err = mineText(ctx, w, db, p)
	default:
		err = fmt.Errorf("%w: unknown output format %q", miner.ErrConfig, format)
	}
	if cerr := closeOut(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close output: %w", cerr)
	}
	return finishRun(cmd, f, summary, err)
}

func mineText(ctx context.Context, w io.Writer, db *tract.Database, p miner.Params) (miner.Summary, error) {
	lw := report.NewLineWriter(w, fieldsFor(p, report.ItemsetKind), fieldsFor(p, report.RuleKind))
	summary, err := miner.Run(ctx, db, p, lw)
	if cerr := lw.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to write results: %w", cerr)
	}
	return summary, err
}

func mineTable(ctx context.Context, cmd *cobra.Command, w io.Writer, db *tract.Database, p miner.Params) (miner.Summary, error) {
	var spinner *output.Spinner
	if errOut := cmd.ErrOrStderr(); output.IsTerminal(errOut) {
		spinner = output.NewSpinner(fmt.Sprintf("Mining %s patterns", p.Target)).WithTimeout(p.Budget.Timeout)
		spinner.SetWriter(errOut)
		spinner.Start()
	}

	var c report.Collector
	summary, err := miner.Run(ctx, db, p, &c)
	if spinner != nil {
		spinner.Stop()
	}

	var table string
	if p.Target == search.Rules {
		table = output.RenderRuleTable(c.Records(), fieldsFor(p, report.RuleKind))
	} else {
		table = output.RenderItemsetTable(c.Records(), fieldsFor(p, report.ItemsetKind))
	}
	if _, werr := io.WriteString(w, table); werr != nil && err == nil {
		err = fmt.Errorf("failed to write results: %w", werr)
	}
	return summary, err
}

// fieldsFor returns the report fields of p for kind. Params.Validate has
// already checked the report string for the run's own kind.
func fieldsFor(p miner.Params, kind report.Kind) report.Fields {
	ownKind := report.ItemsetKind
	if p.Target == search.Rules {
		ownKind = report.RuleKind
	}
	if p.Report == "" || kind != ownKind {
		return report.DefaultFields(kind)
	}
	fields, err := report.ParseFields(p.Report, kind)
	if err != nil {
		return report.DefaultFields(kind)
	}
	return fields
}

// finishRun prints the summary and the budget notice. A budget stop is
// still returned so that the exit status shows the results are incomplete.
func finishRun(cmd *cobra.Command, f *miningFlags, summary miner.Summary, err error) error {
	errOut := cmd.ErrOrStderr()
	var be *miner.BudgetError
	if errors.As(err, &be) {
		fmt.Fprintln(errOut, output.RenderBudgetWarning(be))
	}
	if err != nil && !errors.As(err, &be) {
		return err
	}
	if !f.quiet {
		fmt.Fprintln(errOut, output.RenderSummary(summary))
	}
	return err
}
