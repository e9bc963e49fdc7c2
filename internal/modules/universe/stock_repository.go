package universe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/tradeledger/internal/database"
	"github.com/aristath/tradeledger/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// stocksColumns is the list of columns for the stocks table
// Used to avoid SELECT * which can break when schema changes
const stocksColumns = `symbol, name, current_price, last_updated`

// StockRepository handles stock database operations
type StockRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *sql.DB, log zerolog.Logger) *StockRepository {
	return &StockRepository{
		db:  db,
		log: log.With().Str("repo", "stock").Logger(),
	}
}

// GetBySymbol returns a stock by symbol, or nil if it is not in the universe
func (r *StockRepository) GetBySymbol(ctx context.Context, symbol string) (*domain.Stock, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+stocksColumns+" FROM stocks WHERE symbol = ?", domain.NormalizeSymbol(symbol))

	stock, err := scanStock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock %s: %w", symbol, err)
	}
	return &stock, nil
}

// GetAll returns every stock ordered by symbol
func (r *StockRepository) GetAll(ctx context.Context) ([]domain.Stock, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+stocksColumns+" FROM stocks ORDER BY symbol")
	if err != nil {
		return nil, fmt.Errorf("failed to query stocks: %w", err)
	}
	defer rows.Close()

	stocks := make([]domain.Stock, 0)
	for rows.Next() {
		stock, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, stock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stocks: %w", err)
	}

	return stocks, nil
}

// InsertIfMissing adds stock unless the symbol already exists. Existing
// prices are never overwritten. Reports whether a row was inserted.
func (r *StockRepository) InsertIfMissing(ctx context.Context, stock domain.Stock) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO stocks (`+stocksColumns+`) VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol) DO NOTHING`,
		stock.Symbol, stock.Name, stock.CurrentPrice.String(), stock.LastUpdated.UnixNano())
	if err != nil {
		return false, fmt.Errorf("failed to insert stock %s: %w", stock.Symbol, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// UpdatePrice sets the current price and appends it to the price history.
// Returns the previous price, or nil if the symbol does not exist.
func (r *StockRepository) UpdatePrice(ctx context.Context, symbol string, price decimal.Decimal, at time.Time) (*decimal.Decimal, error) {
	var previous *decimal.Decimal

	err := database.WithImmediateTransaction(ctx, r.db, func(tx database.Executor) error {
		var old decimal.Decimal
		err := tx.QueryRowContext(ctx, "SELECT current_price FROM stocks WHERE symbol = ?", symbol).Scan(&old)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read current price: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE stocks SET current_price = ?, last_updated = ? WHERE symbol = ?",
			price.String(), at.UnixNano(), symbol); err != nil {
			return fmt.Errorf("failed to update price: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO price_history (symbol, price, recorded_at) VALUES (?, ?, ?)",
			symbol, price.String(), at.UnixNano()); err != nil {
			return fmt.Errorf("failed to record price history: %w", err)
		}

		previous = &old
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update price for %s: %w", symbol, err)
	}

	return previous, nil
}

// GetPriceHistory returns up to limit recorded prices, oldest first
func (r *StockRepository) GetPriceHistory(ctx context.Context, symbol string, limit int) ([]PricePoint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT price, recorded_at FROM (
			SELECT price, recorded_at, id FROM price_history
			WHERE symbol = ? ORDER BY recorded_at DESC, id DESC LIMIT ?
		) ORDER BY recorded_at ASC, id ASC`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history for %s: %w", symbol, err)
	}
	defer rows.Close()

	points := make([]PricePoint, 0)
	for rows.Next() {
		var p PricePoint
		var recordedAt int64
		if err := rows.Scan(&p.Price, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		p.RecordedAt = time.Unix(0, recordedAt).UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price history: %w", err)
	}

	return points, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStock(row rowScanner) (domain.Stock, error) {
	var stock domain.Stock
	var lastUpdated int64
	if err := row.Scan(&stock.Symbol, &stock.Name, &stock.CurrentPrice, &lastUpdated); err != nil {
		return domain.Stock{}, err
	}
	stock.LastUpdated = time.Unix(0, lastUpdated).UTC()
	return stock, nil
}
