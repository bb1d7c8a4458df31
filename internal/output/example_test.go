package output_test

import (
	"fmt"

	"github.com/blackwell-systems/fimine/internal/output"
	"github.com/blackwell-systems/fimine/internal/report"
)

func ExampleRenderItemsetTable() {
	records := []report.Record{
		{Kind: report.ItemsetKind, Items: []string{"2"}, Support: 4, Total: 5},
		{Kind: report.ItemsetKind, Items: []string{"1", "3"}, Support: 2, Total: 5},
	}
	fields, err := report.ParseFields("aS", report.ItemsetKind)
	if err != nil {
		panic(err)
	}

	fmt.Print(output.RenderItemsetTable(records, fields))
	// Output:
	// Itemset     supp    supp%
	// ─────────────────────────
	// 2              4       80
	// 1 3            2       40
}

// Example showing how to track surrogate estimation
func ExampleProgressBar() {
	progress := output.NewProgress(100, "Estimating pattern spectrum")
	for i := 0; i < 100; i++ {
		progress.Increment()
	}
	progress.Finish()
}
