package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/fimine/internal/logging"
	"github.com/blackwell-systems/fimine/internal/search"
	"github.com/blackwell-systems/fimine/internal/watcher"
)

var (
	watchFlags    miningFlags
	watchDebounce time.Duration
	watchRules    bool

	watchCmd = &cobra.Command{
		Use:   "watch <input>",
		Short: "Re-mine a transaction file whenever it changes",
		Long: `Mine a transaction file once and again after every change to it.

The watch command follows the file through its directory, so editors that
replace the file on save and tools that append to it both trigger a new run.
Bursts of writes within the debounce interval cause one run. Each run writes
a complete report; with --out the file is rewritten.

Press Ctrl+C to stop.`,
		Example: `  # Closed itemsets of a growing log, rewritten to a report file
  fimine watch baskets.txt -t closed --supp 5 --out closed.txt

  # Association rules, waiting one second after the last write
  fimine watch baskets.txt --rules --conf 0.9 --debounce 1s`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}
)

func init() {
	registerMiningFlags(watchCmd, &watchFlags, true)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watcher.DefaultDebounce, "quiet period after a change before mining")
	watchCmd.Flags().BoolVar(&watchRules, "rules", false, "generate association rules instead of itemsets")
	watchCmd.Flags().Float64VarP(&watchFlags.conf, "conf", "c", 0.8, "minimum confidence for --rules")
	watchCmd.Flags().StringVar(&watchFlags.heads, "heads", "single", "rule heads for --rules: single or multi")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchFlags.dbPath != "" {
		return fmt.Errorf("watch follows a file; --db is not supported")
	}

	target := ""
	if watchRules {
		target = search.Rules.String()
	}
	p, err := buildParams(cmd, &watchFlags, target)
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle := func(path string) error {
		db, err := loadDatabase(cmd, &watchFlags, []string{path})
		if err != nil {
			return err
		}
		return mineAndReport(ctx, cmd, &watchFlags, db, p)
	}

	w, err := watcher.New(args[0], watchDebounce, handle)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", args[0], err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (press Ctrl+C to stop)...\n", w.Path())
	if err := w.Run(ctx); err != nil {
		return err
	}

	logging.Info().Int("runs", w.Runs()).Int("errors", w.Errors()).Msg("watch stopped")
	if ctx.Err() != nil && cmd.Context().Err() == nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "\nStopped watching.")
	}
	return nil
}
