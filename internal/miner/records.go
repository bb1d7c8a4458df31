package miner

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"

	"github.com/blackwell-systems/fimine/internal/report"
	"github.com/blackwell-systems/fimine/internal/tract"
)

// ErrConsumed is yielded when a sequence returned by Records is ranged over
// a second time.
var ErrConsumed = errors.New("record sequence already consumed")

var errStopped = errors.New("consumer stopped")

// Records returns the records of one run as a lazy, finite sequence. The run
// starts when the sequence is first ranged over; breaking out of the loop
// stops the search. The sequence cannot be restarted: ranging again yields
// a single ErrConsumed. A failed run yields its error last.
func Records(ctx context.Context, db *tract.Database, p Params) iter.Seq2[report.Record, error] {
	var used atomic.Bool
	return func(yield func(report.Record, error) bool) {
		if used.Swap(true) {
			yield(report.Record{}, ErrConsumed)
			return
		}

		// Emission is serialized by the run, so stopped needs no lock.
		stopped := false
		_, err := Run(ctx, db, p, report.SinkFunc(func(r report.Record) error {
			if stopped {
				return errStopped
			}
			if !yield(r, nil) {
				stopped = true
				return errStopped
			}
			return nil
		}))
		if err != nil && !stopped {
			yield(report.Record{}, err)
		}
	}
}
