package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/blackwell-systems/fimine/internal/tract"
)

// ImportDatabase appends every transaction of db in a single SQL
// transaction and returns the number of stored transactions. source labels
// the import, typically the input file name.
func (s *Store) ImportDatabase(db *tract.Database, source string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin import: %w", err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRow("SELECT COALESCE(MAX(tid), 0) FROM transaction_weights").Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to read next transaction id: %w", notInitialized(err))
	}

	weightStmt, err := tx.Prepare("INSERT INTO transaction_weights (tid, weight, source, imported_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare weight insert: %w", notInitialized(err))
	}
	defer weightStmt.Close()

	itemStmt, err := tx.Prepare("INSERT OR IGNORE INTO transactions (tid, item) VALUES (?, ?)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare item insert: %w", notInitialized(err))
	}
	defer itemStmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	n := 0
	for _, t := range db.Transactions() {
		next++
		if _, err := weightStmt.Exec(next, t.Weight, source, now); err != nil {
			return 0, fmt.Errorf("failed to insert transaction %d: %w", next, err)
		}
		for _, label := range db.Labels(t.Items) {
			if _, err := itemStmt.Exec(next, label); err != nil {
				return 0, fmt.Errorf("failed to insert item %q of transaction %d: %w", label, next, err)
			}
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return n, nil
}

// LoadTransactions adds the stored transactions to b in transaction id
// order and returns how many were added. An empty source loads every
// import.
func (s *Store) LoadTransactions(b *tract.Builder, source string) (int, error) {
	query := `
		SELECT w.tid, w.weight, t.item
		FROM transaction_weights w
		LEFT JOIN transactions t ON t.tid = w.tid
		WHERE ? = '' OR w.source = ?
		ORDER BY w.tid, t.item
	`

	rows, err := s.db.Query(query, source, source)
	if err != nil {
		return 0, fmt.Errorf("failed to load transactions: %w", notInitialized(err))
	}
	defer rows.Close()

	var (
		cur    int64 = -1
		weight int
		labels []string
		n      int
	)
	flush := func() error {
		if cur < 0 {
			return nil
		}
		n++
		return b.Add(labels, weight)
	}

	for rows.Next() {
		var tid int64
		var w int
		var item sql.NullString
		if err := rows.Scan(&tid, &w, &item); err != nil {
			return 0, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		if tid != cur {
			if err := flush(); err != nil {
				return 0, err
			}
			cur, weight, labels = tid, w, nil
		}
		if item.Valid {
			labels = append(labels, item.String)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating transactions: %w", err)
	}
	if err := flush(); err != nil {
		return 0, err
	}
	return n, nil
}

// Load reads the stored transactions into a new database.
func (s *Store) Load(source string) (*tract.Database, error) {
	b := tract.NewBuilder()
	if _, err := s.LoadTransactions(b, source); err != nil {
		return nil, err
	}
	return b.Build()
}

// Stats summarizes the stored transactions.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	var last sql.NullString
	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(weight), 0), COUNT(DISTINCT source), MAX(imported_at)
		FROM transaction_weights
	`).Scan(&st.Transactions, &st.TotalWeight, &st.Sources, &last)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count transactions: %w", notInitialized(err))
	}

	if err := s.db.QueryRow("SELECT COUNT(DISTINCT item) FROM transactions").Scan(&st.Items); err != nil {
		return Stats{}, fmt.Errorf("failed to count items: %w", notInitialized(err))
	}

	if last.Valid {
		st.LastImport, err = time.Parse(time.RFC3339, last.String)
		if err != nil {
			return Stats{}, fmt.Errorf("failed to parse imported_at: %w", err)
		}
	}
	return st, nil
}

// Clear deletes every stored transaction.
func (s *Store) Clear() error {
	if _, err := s.db.Exec("DELETE FROM transaction_weights"); err != nil {
		return fmt.Errorf("failed to clear transactions: %w", notInitialized(err))
	}
	return nil
}
