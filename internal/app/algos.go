package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/fimine/internal/search"
)

var algosCmd = &cobra.Command{
	Use:   "algos",
	Short: "List the search strategies and the targets they support",
	Long: `List the registered search strategies.

All strategies report the same patterns for a target; they differ in speed
and memory use. eclat is the default and the only strategy that runs in
parallel (--workers). ista and carpenter mine closed and maximal itemsets
directly. accretion only follows extensions that pass the p-value measure
given with --eval and --thresh, at most --maxext of them per itemset.`,
	Args: cobra.NoArgs,
	RunE: runAlgos,
}

var allTargets = []search.Target{search.Frequent, search.Closed, search.Maximal, search.Generators, search.Rules}

func runAlgos(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-9s %s\n", "Strategy", "Parallel", "Targets")
	fmt.Fprintln(out, strings.Repeat("─", 64))

	for _, name := range search.Names() {
		s, err := search.Lookup(name)
		if err != nil {
			return err
		}
		var targets []string
		for _, t := range allTargets {
			if s.Supports(t) {
				targets = append(targets, t.String())
			}
		}
		parallel := "no"
		if s.Parallel() {
			parallel = "yes"
		}
		fmt.Fprintf(out, "%-10s %-9s %s\n", name, parallel, strings.Join(targets, ", "))
	}
	return nil
}
