// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS positions (
	symbol TEXT PRIMARY KEY,
	quantity REAL NOT NULL,
	avg_price REAL NOT NULL,
	mark_price REAL NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	time DATETIME NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	brokerage REAL NOT NULL,
	gross_value REAL NOT NULL,
	realized_pl REAL
);

CREATE TABLE IF NOT EXISTS equity (
	time DATETIME NOT NULL,
	cash REAL NOT NULL,
	portfolio_value REAL NOT NULL,
	total_equity REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS run_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	running INTEGER NOT NULL,
	interval_minutes INTEGER NOT NULL,
	strategy TEXT NOT NULL,
	cash REAL NOT NULL,
	last_heartbeat DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_time ON trades(time);
CREATE INDEX IF NOT EXISTS idx_equity_time ON equity(time);
`
