package store

import "time"

// Stats summarizes the stored transactions.
type Stats struct {
	Transactions int
	Items        int // distinct item labels
	TotalWeight  int
	Sources      int
	LastImport   time.Time // zero when nothing was imported
}
