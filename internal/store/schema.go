package store

// Each transaction has one row in transaction_weights, so transactions
// without items survive a round trip.
const schema = `
CREATE TABLE IF NOT EXISTS transaction_weights (
    tid INTEGER PRIMARY KEY,
    weight INTEGER NOT NULL CHECK (weight > 0),
    source TEXT,
    imported_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
    tid INTEGER NOT NULL,
    item TEXT NOT NULL,
    PRIMARY KEY (tid, item),
    FOREIGN KEY (tid) REFERENCES transaction_weights(tid) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_transactions_item ON transactions(item);
CREATE INDEX IF NOT EXISTS idx_weights_source ON transaction_weights(source);
`
