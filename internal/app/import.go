package app

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/fimine/internal/output"
	"github.com/blackwell-systems/fimine/internal/store"
	"github.com/blackwell-systems/fimine/internal/tract"
)

var (
	importDB      string
	importSource  string
	importSep     string
	importWeights bool
	importReplace bool

	importCmd = &cobra.Command{
		Use:   "import <input>",
		Short: "Load a transaction file into the SQLite store",
		Long: `Read a transaction file and append its transactions to a SQLite store.

Every import is labelled with a source name, the file name by default, so
that 'fimine mine --db <path> --source <name>' can mine one import on its
own. Transactions without items and transaction weights are kept.`,
		Example: `  # Import into the default store
  fimine import baskets.txt

  # Replace the contents of a custom store
  fimine import baskets.txt --db /tmp/tx.db --replace`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}
)

func init() {
	importCmd.Flags().StringVar(&importDB, "db", "", "store path (default: $XDG_CONFIG_HOME/fimine/transactions.db)")
	importCmd.Flags().StringVar(&importSource, "source", "", "source name recorded with the transactions (default: file name)")
	importCmd.Flags().StringVar(&importSep, "sep", "", "item separator characters (default: blank, tab and comma)")
	importCmd.Flags().BoolVar(&importWeights, "weights", false, "read a trailing ': weight' on each transaction line")
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "delete stored transactions before importing")
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	db, err := readFile(path, tract.ReadOptions{
		Separators: pick(cmd, "sep", importSep, cfg.Input.Separators),
		Weights:    pick(cmd, "weights", importWeights, cfg.Input.Weights),
	})
	if err != nil {
		return err
	}

	dbPath := importDB
	if dbPath == "" {
		dbPath = cfg.Store.Path
	}
	if dbPath == "" {
		return fmt.Errorf("no store path: set --db or store.path")
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if importReplace {
		if err := st.Clear(); err != nil {
			return err
		}
	}

	source := importSource
	if source == "" {
		source = filepath.Base(path)
	}
	n, err := st.ImportDatabase(db, source)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", path, err)
	}

	stats, err := st.Stats()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Imported %d transactions from %s into %s\n\n", n, path, dbPath)
	fmt.Fprint(out, output.RenderStoreStats(stats))
	return nil
}

// openStore opens the store at path, creating its directory and schema.
func openStore(path string) (*store.Store, error) {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := st.CreateSchema(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create store schema: %w", err)
	}
	return st, nil
}
