package postgres

// schema mirrors the SQLite schema with PostgreSQL types.
const schema = `
CREATE TABLE IF NOT EXISTS sales (
    id TEXT PRIMARY KEY,
    organizer_id TEXT NOT NULL,
    title TEXT NOT NULL,
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
    user_id TEXT PRIMARY KEY,
    phone TEXT,
    email TEXT
);

CREATE TABLE IF NOT EXISTS sale_subscribers (
    sale_id TEXT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    subscribed_at BIGINT NOT NULL,
    PRIMARY KEY (sale_id, user_id)
);

CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    sale_id TEXT NOT NULL,
    title TEXT NOT NULL,
    status VARCHAR(32) NOT NULL,
    start_price_cents BIGINT NOT NULL,
    current_bid_cents BIGINT,
    bid_increment_cents BIGINT NOT NULL,
    auction_end_time BIGINT,
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS bids (
    seq BIGSERIAL PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    item_id TEXT NOT NULL REFERENCES items(id),
    user_id TEXT NOT NULL,
    amount_cents BIGINT NOT NULL,
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS allocations (
    id TEXT PRIMARY KEY,
    item_id TEXT NOT NULL UNIQUE REFERENCES items(id),
    user_id TEXT NOT NULL,
    amount_cents BIGINT NOT NULL,
    status VARCHAR(32) NOT NULL,
    created_at BIGINT NOT NULL,
    announced_at BIGINT
);

CREATE TABLE IF NOT EXISTS line_starts (
    sale_id TEXT PRIMARY KEY,
    started_at BIGINT NOT NULL,
    version BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS line_entries (
    id TEXT PRIMARY KEY,
    sale_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    phone TEXT,
    email TEXT,
    position INTEGER NOT NULL CHECK (position > 0),
    status VARCHAR(32) NOT NULL,
    notified_at BIGINT,
    entered_at BIGINT,
    created_at BIGINT NOT NULL,
    UNIQUE (sale_id, position),
    UNIQUE (sale_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_items_status_end ON items(status, auction_end_time);
CREATE INDEX IF NOT EXISTS idx_bids_item_amount ON bids(item_id, amount_cents);
CREATE INDEX IF NOT EXISTS idx_line_entries_sale_status ON line_entries(sale_id, status, position);
`
