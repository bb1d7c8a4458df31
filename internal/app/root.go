package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/fimine/internal/config"
	"github.com/blackwell-systems/fimine/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	// cfg is the resolved profile; set by the root command before any
	// subcommand runs.
	cfg *config.Config

	// RootCmd is the root command for fimine
	RootCmd = &cobra.Command{
		Use:   "fimine",
		Short: "Frequent itemset and association rule mining",
		Long: `fimine finds frequent, closed, maximal and generator itemsets and
association rules in transaction databases.

Transactions are read one per line from a file, stdin or a SQLite store
built with 'fimine import'. Items are separated by blanks, tabs or commas.

Minimum support is an absolute count when positive and a percentage of the
total transaction weight when negative: --supp -10 means 10%.

Examples:
  # Frequent itemsets with at least 10% support
  fimine mine baskets.txt

  # Closed itemsets of at least two items, as a table
  fimine mine baskets.txt --target closed --zmin 2 --format table

  # Rules with 90% confidence and their lift
  fimine rules baskets.txt --conf 0.9 --report aCl

  # Import into SQLite and mine from there
  fimine import baskets.txt
  fimine mine --db ~/.config/fimine/transactions.db`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "fimine: frequent pattern mining")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Run 'fimine mine <file>' to mine frequent itemsets.")
			fmt.Fprintln(out, "Run 'fimine algos' to list the search strategies.")
			fmt.Fprintln(out, "Run 'fimine --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "profile path (default: $XDG_CONFIG_HOME/fimine/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error, disabled")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: console or json")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	RootCmd.AddCommand(mineCmd)
	RootCmd.AddCommand(rulesCmd)
	RootCmd.AddCommand(spectrumCmd)
	RootCmd.AddCommand(importCmd)
	RootCmd.AddCommand(watchCmd)
	RootCmd.AddCommand(algosCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// loadConfig reads the profile, applies the global flags and configures
// logging.
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	cfg = c
	return nil
}
