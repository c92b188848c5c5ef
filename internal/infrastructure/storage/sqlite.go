package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/smc_engine/internal/domain"
)

// SQLiteStore is the trade journal: closed paper positions and webhook
// annotations.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers anyway; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS closed_positions (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			size_base REAL NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL,
			stop_loss REAL NOT NULL,
			take_profit REAL NOT NULL,
			quote_cost REAL NOT NULL,
			realized_pnl REAL NOT NULL,
			equity REAL NOT NULL,
			reason TEXT NOT NULL,
			opened_at DATETIME NOT NULL,
			closed_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_closed_positions_mode ON closed_positions(mode, closed_at);`,
		`CREATE TABLE IF NOT EXISTS webhook_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plan TEXT NOT NULL,
			signal TEXT NOT NULL,
			side TEXT NOT NULL,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			cost REAL,
			confidence REAL,
			atr_pct REAL,
			created_at DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// TradeRepository Implementation

func (s *SQLiteStore) SaveClosedPosition(ctx context.Context, p *domain.ClosedPosition) error {
	query := `INSERT INTO closed_positions (id, mode, symbol, side, size_base, entry_price, exit_price, stop_loss, take_profit, quote_cost, realized_pnl, equity, reason, opened_at, closed_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Mode, p.Symbol, string(p.Side), p.SizeBase, p.EntryPrice, p.ExitPrice,
		p.StopLoss, p.TakeProfit, p.QuoteCost, p.RealizedPnL, p.Equity, string(p.Reason),
		p.OpenedAt.UTC(), p.ClosedAt.UTC())
	if err != nil {
		return fmt.Errorf("save closed position %s: %w", p.ID, err)
	}
	return nil
}

// ListClosedPositions returns the newest closed positions of a mode first.
func (s *SQLiteStore) ListClosedPositions(ctx context.Context, mode string, limit int) ([]*domain.ClosedPosition, error) {
	query := `SELECT id, mode, symbol, side, size_base, entry_price, exit_price, stop_loss, take_profit, quote_cost, realized_pnl, equity, reason, opened_at, closed_at
			  FROM closed_positions WHERE mode = ? ORDER BY closed_at DESC, rowid DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, mode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := []*domain.ClosedPosition{}
	for rows.Next() {
		var (
			p      domain.ClosedPosition
			side   string
			reason string
		)
		if err := rows.Scan(&p.ID, &p.Mode, &p.Symbol, &side, &p.SizeBase, &p.EntryPrice, &p.ExitPrice,
			&p.StopLoss, &p.TakeProfit, &p.QuoteCost, &p.RealizedPnL, &p.Equity, &reason,
			&p.OpenedAt, &p.ClosedAt); err != nil {
			return nil, err
		}
		p.Side = domain.Side(side)
		p.Reason = domain.CloseReason(reason)
		positions = append(positions, &p)
	}
	return positions, rows.Err()
}

func (s *SQLiteStore) SaveWebhookEvent(ctx context.Context, e *domain.WebhookEvent) error {
	query := `INSERT INTO webhook_events (plan, signal, side, symbol, timeframe, cost, confidence, atr_pct, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		e.Plan, e.Signal, e.Side, e.Symbol, e.Timeframe,
		nullFloat(e.Cost), nullFloat(e.Confidence), nullFloat(e.ATRPct), e.Time.UTC())
	if err != nil {
		return fmt.Errorf("save webhook event: %w", err)
	}
	return nil
}

// ListWebhookEvents returns the newest webhook events first.
func (s *SQLiteStore) ListWebhookEvents(ctx context.Context, limit int) ([]*domain.WebhookEvent, error) {
	query := `SELECT plan, signal, side, symbol, timeframe, cost, confidence, atr_pct, created_at
			  FROM webhook_events ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*domain.WebhookEvent{}
	for rows.Next() {
		var (
			e                      domain.WebhookEvent
			cost, confidence, atrs sql.NullFloat64
		)
		if err := rows.Scan(&e.Plan, &e.Signal, &e.Side, &e.Symbol, &e.Timeframe, &cost, &confidence, &atrs, &e.Time); err != nil {
			return nil, err
		}
		e.Cost, e.Confidence, e.ATRPct = floatPtr(cost), floatPtr(confidence), floatPtr(atrs)
		events = append(events, &e)
	}
	return events, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
