package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"sessiontrader/internal/types"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository persists ledger records and round trips to SQLite so a
// restarted session can rebuild its trade history.
type Repository struct {
	db *sql.DB
}

// NewRepository opens (and migrates) the trade database.
func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return repo, nil
}

// Migrate runs database migrations.
func (r *Repository) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS ledger (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			position_type INTEGER NOT NULL,
			side INTEGER NOT NULL,
			price TEXT NOT NULL,
			quantity TEXT NOT NULL,
			description TEXT,
			trade_time DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_symbol ON ledger(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_trade_time ON ledger(trade_time)`,

		`CREATE TABLE IF NOT EXISTS round_trips (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			buy_id TEXT NOT NULL,
			sell_id TEXT NOT NULL,
			buy_price TEXT NOT NULL,
			sell_price TEXT NOT NULL,
			quantity TEXT NOT NULL,
			outcome TEXT NOT NULL,
			closed_at DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_round_trips_symbol ON round_trips(symbol)`,
	}

	for _, m := range migrations {
		if _, err := r.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveRecord persists one ledger entry.
func (r *Repository) SaveRecord(ctx context.Context, symbol string, position types.PositionType, rec types.TradeRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO ledger
			(id, symbol, position_type, side, price, quantity, description, trade_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, symbol, int(position), int(rec.Side),
		rec.Price.String(), rec.Quantity.String(), rec.Description, rec.Time)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

// SaveRoundTrip persists one completed round trip.
func (r *Repository) SaveRoundTrip(ctx context.Context, rt types.RoundTrip) error {
	outcome := types.ComputeOutcome(rt.Buy, rt.Sell)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO round_trips
			(symbol, buy_id, sell_id, buy_price, sell_price, quantity, outcome, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rt.Symbol, rt.Buy.ID, rt.Sell.ID,
		rt.Buy.Price.String(), rt.Sell.Price.String(),
		rt.Sell.Quantity.String(), outcome.String(), rt.Sell.Time)
	if err != nil {
		return fmt.Errorf("save round trip: %w", err)
	}
	return nil
}

// Records returns the ledger for a symbol and position type, oldest
// first.
func (r *Repository) Records(ctx context.Context, symbol string, position types.PositionType) ([]types.TradeRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, side, price, quantity, description, trade_time
		FROM ledger WHERE symbol = ? AND position_type = ?
		ORDER BY trade_time ASC`,
		symbol, int(position))
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []types.TradeRecord
	for rows.Next() {
		var (
			rec        types.TradeRecord
			side       int
			price, qty string
			tradeTime  time.Time
		)
		if err := rows.Scan(&rec.ID, &side, &price, &qty, &rec.Description, &tradeTime); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Side = types.Side(side)
		rec.Time = tradeTime
		if rec.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		if rec.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("parse quantity: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// TotalOutcome sums the recorded round-trip outcomes for a symbol.
func (r *Repository) TotalOutcome(ctx context.Context, symbol string) (decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT outcome FROM round_trips WHERE symbol = ?`, symbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return decimal.Zero, fmt.Errorf("scan outcome: %w", err)
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse outcome: %w", err)
		}
		total = total.Add(v)
	}
	return total, rows.Err()
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}
