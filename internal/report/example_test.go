package report_test

import (
	"fmt"
	"os"

	"github.com/blackwell-systems/fimine/internal/report"
)

// Example showing an itemset line with support and relative support
func ExampleFormatItemset() {
	fields, err := report.ParseFields("aS", report.ItemsetKind)
	if err != nil {
		panic(err)
	}
	r := report.Record{Items: []string{"1", "2"}, Support: 2, Total: 5}
	fmt.Println(report.FormatItemset(r, fields))
	// Output: 1 2 (2, 40)
}

// Example showing a rule line with the default rule fields
func ExampleFormatRule() {
	r := report.Record{
		Kind:        report.RuleKind,
		Items:       []string{"3"},
		Head:        []string{"2"},
		Support:     2,
		BodySupport: 4,
		Total:       5,
		Confidence:  0.5,
	}
	fmt.Println(report.FormatRule(r, report.DefaultFields(report.RuleKind)))
	// Output: 2 <- 3 (2, 50)
}

// Example showing a LineWriter on stdout
func ExampleLineWriter() {
	lw := report.NewLineWriter(os.Stdout, report.DefaultFields(report.ItemsetKind), report.DefaultFields(report.RuleKind))
	_ = lw.Emit(report.Record{Items: []string{"2"}, Support: 4, Total: 5})
	_ = lw.Emit(report.Record{Items: []string{"1", "3"}, Support: 2, Total: 5})
	_ = lw.Close()
	// Output:
	// 2 (4)
	// 1 3 (2)
}
