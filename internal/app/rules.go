package app

import (
	"github.com/spf13/cobra"
)

var (
	rulesFlags miningFlags

	rulesCmd = &cobra.Command{
		Use:   "rules [input]",
		Short: "Generate association rules",
		Long: `Generate association rules body -> head from the frequent itemsets.

A rule is reported when its support (the support of body and head together)
meets --supp and its confidence meets --conf. With --heads single every rule
has one head item; with --heads multi the head is any nonempty proper subset
whose rule is confident.

Rules are written as "head <- body (v1, v2)"; the default report fields are
the support and the confidence in percent. An evaluation measure (--eval)
filters rules by their own value.`,
		Example: `  # Rules with 90% confidence
  fimine rules baskets.txt --conf 0.9

  # Support, confidence and lift of rules with lift above 1.2
  fimine rules baskets.txt --eval lift --thresh 1.2 --report acl`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRules,
	}
)

func init() {
	registerMiningFlags(rulesCmd, &rulesFlags, false)
	rulesCmd.Flags().Float64VarP(&rulesFlags.conf, "conf", "c", 0.8, "minimum confidence in [0, 1]")
	rulesCmd.Flags().StringVar(&rulesFlags.heads, "heads", "single", "rule heads: single or multi")
}

func runRules(cmd *cobra.Command, args []string) error {
	p, err := buildParams(cmd, &rulesFlags, "rules")
	if err != nil {
		return err
	}
	db, err := loadDatabase(cmd, &rulesFlags, args)
	if err != nil {
		return err
	}
	return mineAndReport(cmd.Context(), cmd, &rulesFlags, db, p)
}
