package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite stores the trader's state in a single SQLite database. Writes
// that must be atomic go through WithTx; read-only queries live in
// query.go.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// A single writer keeps SQLITE_BUSY out of the transaction paths.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// Bootstrap creates the singleton run_state row with the given defaults
// if it does not exist yet. Calling it on an existing database leaves
// persisted state untouched.
func (j *SQLite) Bootstrap(defaults RunState) error {
	_, err := j.db.Exec(`
		INSERT INTO run_state (id, running, interval_minutes, strategy, cash, last_heartbeat)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		defaults.Running, defaults.IntervalMinutes, defaults.Strategy,
		defaults.Cash, defaults.LastHeartbeat,
	)
	return err
}

// WithTx runs fn inside a transaction. Any error from fn rolls the whole
// transaction back, so a failed ledger mutation never leaves cash and
// positions inconsistent.
func (j *SQLite) WithTx(fn func(tx *Tx) error) error {
	sqlTx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

// Tx exposes the store's write operations within one transaction.
type Tx struct {
	tx *sql.Tx
}

// GetPosition returns the position for symbol, or nil if none is held.
func (t *Tx) GetPosition(symbol string) (*Position, error) {
	row := t.tx.QueryRow(`
		SELECT symbol, quantity, avg_price, mark_price, updated_at
		FROM positions WHERE symbol = ?`, symbol)

	var p Position
	err := row.Scan(&p.Symbol, &p.Quantity, &p.AvgPrice, &p.MarkPrice, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPositions returns all open positions.
func (t *Tx) ListPositions() ([]Position, error) {
	rows, err := t.tx.Query(`
		SELECT symbol, quantity, avg_price, mark_price, updated_at
		FROM positions ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.Symbol, &p.Quantity, &p.AvgPrice, &p.MarkPrice, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertPosition creates or replaces the position row for p.Symbol.
func (t *Tx) UpsertPosition(p Position) error {
	_, err := t.tx.Exec(`
		INSERT INTO positions (symbol, quantity, avg_price, mark_price, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			quantity = excluded.quantity,
			avg_price = excluded.avg_price,
			mark_price = excluded.mark_price,
			updated_at = excluded.updated_at`,
		p.Symbol, p.Quantity, p.AvgPrice, p.MarkPrice, p.UpdatedAt,
	)
	return err
}

func (t *Tx) DeletePosition(symbol string) error {
	_, err := t.tx.Exec(`DELETE FROM positions WHERE symbol = ?`, symbol)
	return err
}

func (t *Tx) InsertTrade(rec TradeRecord) error {
	var pl sql.NullFloat64
	if rec.RealizedPL != nil {
		pl = sql.NullFloat64{Float64: *rec.RealizedPL, Valid: true}
	}

	_, err := t.tx.Exec(`
		INSERT INTO trades
		(trade_id, time, symbol, side, quantity, price, brokerage, gross_value, realized_pl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TradeID, rec.Time, rec.Symbol, string(rec.Side),
		rec.Quantity, rec.Price, rec.Brokerage, rec.GrossValue, pl,
	)
	return err
}

func (t *Tx) InsertEquity(e EquitySnapshot) error {
	_, err := t.tx.Exec(`
		INSERT INTO equity (time, cash, portfolio_value, total_equity)
		VALUES (?, ?, ?, ?)`,
		e.Time, e.Cash, e.PortfolioValue, e.TotalEquity,
	)
	return err
}

// SaveCash persists the authoritative cash balance on the run_state row.
func (t *Tx) SaveCash(cash float64) error {
	_, err := t.tx.Exec(`UPDATE run_state SET cash = ? WHERE id = 1`, cash)
	return err
}

func (t *Tx) SetRunning(running bool) error {
	_, err := t.tx.Exec(`UPDATE run_state SET running = ? WHERE id = 1`, running)
	return err
}

func (t *Tx) SetInterval(minutes int) error {
	_, err := t.tx.Exec(`UPDATE run_state SET interval_minutes = ? WHERE id = 1`, minutes)
	return err
}

func (t *Tx) SetStrategy(name string) error {
	_, err := t.tx.Exec(`UPDATE run_state SET strategy = ? WHERE id = 1`, name)
	return err
}

func (t *Tx) Heartbeat(at time.Time) error {
	_, err := t.tx.Exec(`UPDATE run_state SET last_heartbeat = ? WHERE id = 1`, at)
	return err
}

func (t *Tx) GetRunState() (RunState, error) {
	row := t.tx.QueryRow(`
		SELECT running, interval_minutes, strategy, cash, last_heartbeat
		FROM run_state WHERE id = 1`)

	var st RunState
	err := row.Scan(&st.Running, &st.IntervalMinutes, &st.Strategy, &st.Cash, &st.LastHeartbeat)
	return st, err
}

// ClearHistory deletes all positions, trades and equity points. The
// run_state row is reinitialized, not removed.
func (t *Tx) ClearHistory() error {
	for _, stmt := range []string{
		`DELETE FROM positions`,
		`DELETE FROM trades`,
		`DELETE FROM equity`,
	} {
		if _, err := t.tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
