package app

import (
	"github.com/spf13/cobra"
)

var (
	mineFlags miningFlags

	mineCmd = &cobra.Command{
		Use:   "mine [input]",
		Short: "Mine frequent, closed, maximal or generator itemsets",
		Long: `Mine itemsets from a transaction file, stdin or a SQLite store.

Targets:
  • frequent:   every itemset meeting the minimum support
  • closed:     no superset has the same support
  • maximal:    no superset is frequent
  • generators: no subset has the same support

Results are written one per line as "i1 i2 ... (v1, v2)" with the values
selected by --report, or as a table with --format table. Frequent itemsets
without an evaluation filter stream as they are found; the other targets
are written once the search completes, ordered by size and then by item.

An evaluation measure (--eval) keeps only itemsets whose aggregated rule
evaluation passes --thresh. --psf-surrogates keeps only itemsets that are
rare in the pattern spectrum of independence-model surrogates.`,
		Example: `  # Frequent itemsets with support of at least 3 transactions
  fimine mine baskets.txt --supp 3

  # Maximal itemsets of 2 to 4 items, at most 1000 results
  fimine mine baskets.txt -t maximal --zmin 2 --zmax 4 --max-results 1000

  # Itemsets whose lift exceeds 1.5, reporting support in percent and lift
  fimine mine baskets.txt --eval lift --agg min --thresh 1.5 --report Se

  # Parallel eclat with bit vectors
  fimine mine baskets.txt --algo eclat --variant bits --workers 4`,
		Args: cobra.MaximumNArgs(1),
		RunE: runMine,
	}
)

func init() {
	registerMiningFlags(mineCmd, &mineFlags, true)
}

func runMine(cmd *cobra.Command, args []string) error {
	p, err := buildParams(cmd, &mineFlags, "")
	if err != nil {
		return err
	}
	db, err := loadDatabase(cmd, &mineFlags, args)
	if err != nil {
		return err
	}
	return mineAndReport(cmd.Context(), cmd, &mineFlags, db, p)
}
