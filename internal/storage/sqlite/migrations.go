package sqlite

import "database/sql"

// schema sets up the ledger tables. It runs on startup to ensure tables exist.
// Money is stored in integer cents, timestamps in Unix nanoseconds.
const schema = `
CREATE TABLE IF NOT EXISTS sales (
    id TEXT PRIMARY KEY,
    organizer_id TEXT NOT NULL,
    title TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
    user_id TEXT PRIMARY KEY,
    phone TEXT,
    email TEXT
);

CREATE TABLE IF NOT EXISTS sale_subscribers (
    sale_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    subscribed_at INTEGER NOT NULL,
    PRIMARY KEY (sale_id, user_id),
    FOREIGN KEY (sale_id) REFERENCES sales(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    sale_id TEXT NOT NULL,
    title TEXT NOT NULL,
    status TEXT NOT NULL,
    start_price_cents INTEGER NOT NULL,
    current_bid_cents INTEGER,
    bid_increment_cents INTEGER NOT NULL,
    auction_end_time INTEGER,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS bids (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    item_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    amount_cents INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (item_id) REFERENCES items(id)
);

CREATE TABLE IF NOT EXISTS allocations (
    id TEXT PRIMARY KEY,
    item_id TEXT NOT NULL UNIQUE,
    user_id TEXT NOT NULL,
    amount_cents INTEGER NOT NULL,
    status TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    announced_at INTEGER,
    FOREIGN KEY (item_id) REFERENCES items(id)
);

CREATE TABLE IF NOT EXISTS line_starts (
    sale_id TEXT PRIMARY KEY,
    started_at INTEGER NOT NULL,
    version INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS line_entries (
    id TEXT PRIMARY KEY,
    sale_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    phone TEXT,
    email TEXT,
    position INTEGER NOT NULL CHECK (position > 0),
    status TEXT NOT NULL,
    notified_at INTEGER,
    entered_at INTEGER,
    created_at INTEGER NOT NULL,
    UNIQUE (sale_id, position),
    UNIQUE (sale_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_items_status_end ON items(status, auction_end_time);
CREATE INDEX IF NOT EXISTS idx_bids_item_amount ON bids(item_id, amount_cents);
CREATE INDEX IF NOT EXISTS idx_line_entries_sale_status ON line_entries(sale_id, status, position);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
