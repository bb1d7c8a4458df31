package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/blackwell-systems/fimine/internal/miner"
	"github.com/blackwell-systems/fimine/internal/report"
)

const exampleInput = "1 2 3\n1 2\n2 3\n1 3\n2\n"

// syncBuffer is a bytes.Buffer safe for a command writing while the test
// reads.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// resetFlags restores every flag of cmd and its subcommands to its default
// so that tests do not see each other's flags.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// setup isolates the test from the user's profile and terminal.
func setup(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")
}

// execute runs the CLI with args and returns stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	setup(t)
	return executeContext(t, context.Background(), stdin, nil, args...)
}

// executeContext runs the CLI under ctx. It may be called from a goroutine
// other than the test's; callers run setup first.
func executeContext(t *testing.T, ctx context.Context, stdin string, stdout *syncBuffer, args ...string) (string, string, error) {
	resetFlags(RootCmd)

	if stdout == nil {
		stdout = &syncBuffer{}
	}
	stderr := &syncBuffer{}
	RootCmd.SetOut(stdout)
	RootCmd.SetErr(stderr)
	RootCmd.SetIn(strings.NewReader(stdin))
	RootCmd.SetArgs(args)
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetIn(nil)
		RootCmd.SetArgs(nil)
	})

	err := RootCmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "baskets.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// itemsetKeys parses itemset report lines into sorted keys with supports.
func itemsetKeys(t *testing.T, out string) []string {
	t.Helper()
	var keys []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		l, err := report.ParseItemsetLine(line)
		if err != nil {
			t.Fatalf("ParseItemsetLine(%q) error = %v", line, err)
		}
		keys = append(keys, l.Key())
	}
	sort.Strings(keys)
	return keys
}

func TestRootCommand(t *testing.T) {
	if RootCmd.Use != "fimine" {
		t.Errorf("expected Use to be 'fimine', got '%s'", RootCmd.Use)
	}
	if RootCmd.Short == "" || RootCmd.Long == "" {
		t.Error("expected Short and Long descriptions to be set")
	}

	found := make(map[string]bool)
	for _, cmd := range RootCmd.Commands() {
		found[cmd.Name()] = true
	}
	for _, name := range []string{"mine", "rules", "spectrum", "import", "watch", "algos"} {
		if !found[name] {
			t.Errorf("expected command '%s' to be registered", name)
		}
	}

	for _, name := range []string{"config", "log-level", "log-format"} {
		if f := RootCmd.PersistentFlags().Lookup(name); f == nil || f.Usage == "" {
			t.Errorf("expected --%s flag with usage text", name)
		}
	}
}

func TestMiningCommandsShareFlags(t *testing.T) {
	names := []string{"algo", "supp", "zmin", "zmax", "eval", "agg", "thresh", "invbxs", "report",
		"border", "max-results", "max-candidates", "timeout", "best-effort", "workers", "variant",
		"format", "out", "db", "psf-surrogates", "psf-alpha", "maxext"}
	for _, cmd := range []*cobra.Command{mineCmd, rulesCmd, spectrumCmd, watchCmd} {
		for _, name := range names {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("%s: missing --%s", cmd.Name(), name)
			}
		}
	}
	for _, name := range []string{"conf", "heads"} {
		if rulesCmd.Flags().Lookup(name) == nil {
			t.Errorf("rules: missing --%s", name)
		}
	}
	if rulesCmd.Flags().Lookup("target") != nil {
		t.Error("rules should not accept --target")
	}
}

func TestRootCommand_NoArgs(t *testing.T) {
	out, _, err := execute(t, "")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "fimine mine") {
		t.Errorf("root output = %q", out)
	}
}

func TestMineCommand_Stdin(t *testing.T) {
	out, stderr, err := execute(t, exampleInput, "mine", "--supp", "2", "-q")
	if err != nil {
		t.Fatalf("mine error = %v (stderr %q)", err, stderr)
	}
	want := []string{"1", "1 2", "1 3", "2", "2 3", "3"}
	if got := itemsetKeys(t, out); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("itemsets = %v, want %v", got, want)
	}
	if strings.Contains(stderr, "patterns") {
		t.Errorf("--quiet still printed a summary: %q", stderr)
	}
}

func TestMineCommand_TableAndSummary(t *testing.T) {
	path := writeInput(t, exampleInput)
	out, stderr, err := execute(t, "", "mine", path, "--target", "closed", "--supp", "2", "--format", "table")
	if err != nil {
		t.Fatalf("mine error = %v", err)
	}
	if !strings.HasPrefix(out, "Itemset") {
		t.Errorf("table output = %q", out)
	}
	if lines := strings.Count(out, "\n"); lines != 8 {
		t.Errorf("table has %d lines, want header, rule and 6 rows:\n%s", lines, out)
	}
	if !strings.Contains(stderr, "6 closed patterns") || !strings.Contains(stderr, "5 transactions") {
		t.Errorf("summary = %q", stderr)
	}
}

func TestMineCommand_OutFile(t *testing.T) {
	path := writeInput(t, exampleInput)
	outPath := filepath.Join(t.TempDir(), "results", "maximal.txt")
	stdout, _, err := execute(t, "", "mine", path, "-t", "maximal", "--supp", "2", "--report", "aS", "-o", outPath, "-q")
	if err != nil {
		t.Fatalf("mine error = %v", err)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want results only in the file", stdout)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"1 2", "1 3", "2 3"}
	if got := itemsetKeys(t, string(data)); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("maximal itemsets = %v, want %v", got, want)
	}
	if !strings.Contains(string(data), "(2, 40)") {
		t.Errorf("report fields aS not applied:\n%s", data)
	}
}

func TestMineCommand_ProfileAndFlagPrecedence(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "profile.yaml")
	content := "mining:\n  support: 2\n  algorithm: fpgrowth\n"
	if err := os.WriteFile(profile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := execute(t, exampleInput, "mine", "-q", "--config", profile)
	if err != nil {
		t.Fatalf("mine error = %v", err)
	}
	if n := len(itemsetKeys(t, out)); n != 6 {
		t.Errorf("profile support 2 gave %d itemsets, want 6", n)
	}

	out, _, err = execute(t, exampleInput, "mine", "-q", "--config", profile, "--supp", "3")
	if err != nil {
		t.Fatalf("mine error = %v", err)
	}
	if n := len(itemsetKeys(t, out)); n != 3 {
		t.Errorf("--supp 3 over profile gave %d itemsets, want 3", n)
	}
}

func TestMineCommand_ProfileFilters(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "profile.yaml")
	content := "mining:\n  support: 2\n  border: \"0,0,3\"\n"
	if err := os.WriteFile(profile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	// Pairs have support 2, below the profile's size-2 border.
	out, _, err := execute(t, exampleInput, "mine", "-q", "--config", profile)
	if err != nil {
		t.Fatalf("mine error = %v", err)
	}
	want := []string{"1", "2", "3"}
	if got := itemsetKeys(t, out); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("profile border gave %v, want %v", got, want)
	}

	out, _, err = execute(t, exampleInput, "mine", "-q", "--config", profile, "--border", "0,0,2")
	if err != nil {
		t.Fatalf("mine error = %v", err)
	}
	if n := len(itemsetKeys(t, out)); n != 6 {
		t.Errorf("--border over profile gave %d itemsets, want 6", n)
	}
}

func TestRulesCommand(t *testing.T) {
	out, _, err := execute(t, exampleInput, "rules", "--supp", "2", "--conf", "0.6", "-q")
	if err != nil {
		t.Fatalf("rules error = %v", err)
	}
	var keys []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		l, err := report.ParseRuleLine(line)
		if err != nil {
			t.Fatalf("ParseRuleLine(%q) error = %v", line, err)
		}
		keys = append(keys, l.Key())
	}
	sort.Strings(keys)
	want := []string{"1 <- 3", "2 <- 1", "2 <- 3", "3 <- 1"}
	if strings.Join(keys, "|") != strings.Join(want, "|") {
		t.Errorf("rules = %v, want %v", keys, want)
	}
}

func TestMineCommand_Errors(t *testing.T) {
	path := writeInput(t, exampleInput)
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"unknown strategy", []string{"mine", path, "--algo", "magic"}, miner.ErrConfig},
		{"unknown target", []string{"mine", path, "-t", "everything"}, miner.ErrConfig},
		{"unsupported target", []string{"mine", path, "--algo", "ista", "-t", "generators"}, miner.ErrConfig},
		{"maxext without accretion", []string{"mine", path, "--maxext", "2"}, miner.ErrConfig},
		{"bad border", []string{"mine", path, "--border", "1,x"}, miner.ErrConfig},
		{"bad report field", []string{"mine", path, "--report", "c"}, miner.ErrConfig},
		{"file and store", []string{"mine", path, "--db", filepath.Join(t.TempDir(), "tx.db")}, miner.ErrConfig},
		{"missing file", []string{"mine", filepath.Join(t.TempDir(), "nope.txt")}, miner.ErrInput},
		{"bad heads", []string{"rules", path, "--heads", "many"}, miner.ErrConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, "", tt.args...)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMineCommand_ResultLimit(t *testing.T) {
	path := writeInput(t, exampleInput)
	out, stderr, err := execute(t, "", "mine", path, "--supp", "2", "--max-results", "2")
	var be *miner.BudgetError
	if !errors.As(err, &be) || be.Limit != "results" {
		t.Fatalf("error = %v, want a results BudgetError", err)
	}
	if n := len(itemsetKeys(t, out)); n != 2 {
		t.Errorf("reported %d itemsets, want 2", n)
	}
	if !strings.Contains(stderr, "stopped at results limit") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestImportAndMineFromStore(t *testing.T) {
	path := writeInput(t, exampleInput)
	dbPath := filepath.Join(t.TempDir(), "store", "tx.db")

	out, _, err := execute(t, "", "import", path, "--db", dbPath)
	if err != nil {
		t.Fatalf("import error = %v", err)
	}
	if !strings.Contains(out, "Imported 5 transactions") || !strings.Contains(out, "Items:         3") {
		t.Errorf("import output = %q", out)
	}

	out, _, err = execute(t, "", "mine", "--db", dbPath, "--supp", "2", "-q")
	if err != nil {
		t.Fatalf("mine --db error = %v", err)
	}
	if n := len(itemsetKeys(t, out)); n != 6 {
		t.Errorf("mined %d itemsets from the store, want 6", n)
	}

	// A second import appends; --replace starts over.
	if _, _, err := execute(t, "", "import", path, "--db", dbPath); err != nil {
		t.Fatal(err)
	}
	out, _, err = execute(t, "", "import", path, "--db", dbPath, "--replace")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Transactions:  5") {
		t.Errorf("--replace output = %q", out)
	}
}

func TestSpectrumCommand(t *testing.T) {
	out, _, err := execute(t, exampleInput, "spectrum", "--supp", "2", "-q")
	if err != nil {
		t.Fatalf("spectrum error = %v", err)
	}
	if want := "1 3 2\n1 4 1\n2 2 3\n"; out != want {
		t.Errorf("spectrum = %q, want %q", out, want)
	}

	out, _, err = execute(t, exampleInput, "spectrum", "--supp", "1", "--estimate", "--surrogates", "5", "--seed", "3")
	if err != nil {
		t.Fatalf("spectrum --estimate error = %v", err)
	}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if len(strings.Fields(line)) != 3 {
			t.Errorf("estimate line %q does not have 3 fields", line)
		}
	}

	if _, _, err := execute(t, exampleInput, "spectrum", "-t", "rules"); !errors.Is(err, miner.ErrConfig) {
		t.Errorf("spectrum of rules error = %v, want ErrConfig", err)
	}
}

func TestAlgosCommand(t *testing.T) {
	out, _, err := execute(t, "", "algos")
	if err != nil {
		t.Fatal(err)
	}
	lines := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		if f := strings.Fields(line); len(f) > 0 {
			lines[f[0]] = line
		}
	}
	for _, name := range []string{"apriori", "eclat", "fpgrowth", "sam", "relim", "ista", "carpenter", "accretion"} {
		if _, ok := lines[name]; !ok {
			t.Errorf("algos output missing %s:\n%s", name, out)
		}
	}
	if !strings.Contains(lines["eclat"], "yes") {
		t.Errorf("eclat line = %q, want parallel", lines["eclat"])
	}
	for _, name := range []string{"ista", "carpenter"} {
		if !strings.HasSuffix(lines[name], "closed, maximal") {
			t.Errorf("%s line = %q", name, lines[name])
		}
	}
	if !strings.HasSuffix(lines["accretion"], "frequent, maximal") {
		t.Errorf("accretion line = %q", lines["accretion"])
	}
}

func TestWatchCommand(t *testing.T) {
	path := writeInput(t, exampleInput)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setup(t)
	stdout := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		_, _, err := executeContext(t, ctx, "", stdout, "watch", path, "--supp", "4", "--debounce", "20ms", "-q")
		done <- err
	}()

	waitFor := func(cond func() bool) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if cond() {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		t.Fatalf("condition not met; output so far %q", stdout.String())
	}

	waitFor(func() bool { return strings.Contains(stdout.String(), "2 (4)") })

	// Item 1 reaches support 4 once a transaction is appended.
	if err := os.WriteFile(path, []byte(exampleInput+"1 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(func() bool { return strings.Contains(stdout.String(), "1 (4)") })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestParseBorder(t *testing.T) {
	b, err := parseBorder("0, 0,5,3")
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != 4 || b[2] != 5 || b[3] != 3 {
		t.Errorf("parseBorder() = %v", b)
	}
	for _, bad := range []string{"", "1,,2", "-1", "x"} {
		if _, err := parseBorder(bad); err == nil {
			t.Errorf("parseBorder(%q) succeeded", bad)
		}
	}
}
