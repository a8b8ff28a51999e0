package journal

import "database/sql"

// Read-only queries used by the HTTP layer and the CLI. These take no
// transaction: SQLite snapshot isolation is enough for reporting.

// ListPositions returns all open positions ordered by symbol.
func (j *SQLite) ListPositions() ([]Position, error) {
	rows, err := j.db.Query(`
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

// GetPosition returns the position for symbol, or nil if none is held.
func (j *SQLite) GetPosition(symbol string) (*Position, error) {
	row := j.db.QueryRow(`
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

// ListTrades returns up to limit trades, newest first. limit <= 0 means
// no limit.
func (j *SQLite) ListTrades(limit int) ([]TradeRecord, error) {
	q := `
		SELECT trade_id, time, symbol, side, quantity, price, brokerage, gross_value, realized_pl
		FROM trades ORDER BY time DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		var side string
		var pl sql.NullFloat64
		if err := rows.Scan(
			&rec.TradeID, &rec.Time, &rec.Symbol, &side,
			&rec.Quantity, &rec.Price, &rec.Brokerage, &rec.GrossValue, &pl,
		); err != nil {
			return nil, err
		}
		rec.Side = Side(side)
		if pl.Valid {
			v := pl.Float64
			rec.RealizedPL = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListEquity returns the equity time series, oldest first.
func (j *SQLite) ListEquity() ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT time, cash, portfolio_value, total_equity
		FROM equity ORDER BY time ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.Time, &e.Cash, &e.PortfolioValue, &e.TotalEquity); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetRunState reads the singleton run state row.
func (j *SQLite) GetRunState() (RunState, error) {
	row := j.db.QueryRow(`
		SELECT running, interval_minutes, strategy, cash, last_heartbeat
		FROM run_state WHERE id = 1`)

	var st RunState
	err := row.Scan(&st.Running, &st.IntervalMinutes, &st.Strategy, &st.Cash, &st.LastHeartbeat)
	return st, err
}
