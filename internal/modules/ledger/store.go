package ledger

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/tradeledger/internal/database"
	"github.com/aristath/tradeledger/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// tradesColumns is the list of columns for the trades table
// Used to avoid SELECT * which can break when schema changes
const tradesColumns = `id, user_id, symbol, side, quantity, price, executed_at`

var errTxDone = errors.New("ledger transaction already finished")

// Store is the SQLite-backed ledger. Write transactions start with
// BEGIN IMMEDIATE so the write lock is taken up front and concurrent
// trades for the same user serialize instead of failing at commit.
type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
	log         zerolog.Logger
}

var (
	_ TransactionBoundary = (*Store)(nil)
	_ PortfolioReader     = (*Store)(nil)
)

// NewStore creates a ledger store. lockTimeout bounds how long Begin waits
// for the write lock; zero means wait as long as ctx allows.
func NewStore(db *sql.DB, lockTimeout time.Duration, log zerolog.Logger) *Store {
	return &Store{
		db:          db,
		lockTimeout: lockTimeout,
		log:         log.With().Str("repo", "ledger").Logger(),
	}
}

// Begin acquires the ledger write lock and opens a unit of work.
func (s *Store) Begin(ctx context.Context) (LedgerTx, error) {
	lockCtx := ctx
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}

	start := time.Now()
	conn, err := s.db.Conn(lockCtx)
	if err != nil {
		return nil, s.lockError(ctx, lockCtx, err)
	}

	if _, err := conn.ExecContext(lockCtx, "BEGIN IMMEDIATE"); err != nil {
		_ = conn.Close()
		return nil, s.lockError(ctx, lockCtx, err)
	}

	s.log.Debug().Dur("waited", time.Since(start)).Msg("Ledger write lock acquired")

	return &sqlTx{conn: conn, ctx: ctx, log: s.log}, nil
}

func (s *Store) lockError(ctx, lockCtx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("waiting for ledger lock: %w", ctx.Err())
	}
	if lockCtx.Err() != nil || database.IsBusyError(err) {
		s.log.Warn().Err(err).Dur("lock_timeout", s.lockTimeout).Msg("Timed out waiting for ledger write lock")
		return &domain.TradeError{Kind: domain.ErrContentionTimeout, Err: err}
	}
	return fmt.Errorf("failed to begin ledger transaction: %w", err)
}

// GetUserTrades returns the user's trades, most recent first. limit <= 0 means all.
func (s *Store) GetUserTrades(ctx context.Context, userID string, limit int) ([]domain.Trade, error) {
	query := `SELECT ` + tradesColumns + ` FROM trades WHERE user_id = ? ORDER BY executed_at DESC, seq DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades for user %s: %w", userID, err)
	}
	return collectTrades(rows)
}

// GetTradesForSymbol returns the user's trades in one symbol, most recent first.
func (s *Store) GetTradesForSymbol(ctx context.Context, userID, symbol string, limit int) ([]domain.Trade, error) {
	query := `SELECT ` + tradesColumns + ` FROM trades WHERE user_id = ? AND symbol = ? ORDER BY executed_at DESC, seq DESC`
	args := []interface{}{userID, symbol}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s trades for user %s: %w", symbol, userID, err)
	}
	return collectTrades(rows)
}

// ReconciliationReport compares a user's holdings with their trade log.
type ReconciliationReport struct {
	UserID        string        `json:"user_id"`
	PortfolioID   string        `json:"portfolio_id,omitempty"`
	TradeCount    int           `json:"trade_count"`
	Consistent    bool          `json:"consistent"`
	Discrepancies []Discrepancy `json:"discrepancies"`
	CheckedAt     time.Time     `json:"checked_at"`
}

// Reconcile audits one user's holdings against the trade log: quantities
// must equal Σ buys − Σ sells per symbol, and average costs must equal a
// replay of the log. Both sides are read from the same snapshot.
func (s *Store) Reconcile(ctx context.Context, userID string) (*ReconciliationReport, error) {
	report := &ReconciliationReport{UserID: userID, Discrepancies: []Discrepancy{}}

	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+tradesColumns+` FROM trades WHERE user_id = ? ORDER BY executed_at ASC, seq ASC`, userID)
		if err != nil {
			return fmt.Errorf("failed to load trade log: %w", err)
		}
		trades, err := collectTrades(rows)
		if err != nil {
			return err
		}
		report.TradeCount = len(trades)

		var portfolioID string
		err = tx.QueryRowContext(ctx, `SELECT id FROM portfolios WHERE user_id = ?`, userID).Scan(&portfolioID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to load portfolio: %w", err)
		}

		stored := NewPortfolio(portfolioID, userID, time.Time{})
		if portfolioID != "" {
			report.PortfolioID = portfolioID
			if stored.Items, err = queryItems(ctx, tx, portfolioID); err != nil {
				return err
			}
		}

		report.Discrepancies = audit(stored, trades)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile ledger for user %s: %w", userID, err)
	}

	report.Consistent = len(report.Discrepancies) == 0
	report.CheckedAt = time.Now().UTC()

	if !report.Consistent {
		s.log.Error().
			Str("user_id", userID).
			Int("discrepancies", len(report.Discrepancies)).
			Msg("Holdings disagree with trade log")
	}

	return report, nil
}

// FindPortfolio loads the user's portfolio and holdings from one read
// snapshot without taking the write lock. Returns nil if none exists yet.
func (s *Store) FindPortfolio(ctx context.Context, userID string) (*Portfolio, error) {
	var p *Portfolio

	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		var found Portfolio
		var createdAt, updatedAt int64
		err := tx.QueryRowContext(ctx,
			`SELECT id, user_id, name, created_at, updated_at FROM portfolios WHERE user_id = ?`, userID).
			Scan(&found.ID, &found.UserID, &found.Name, &createdAt, &updatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load portfolio: %w", err)
		}
		found.CreatedAt = time.Unix(0, createdAt).UTC()
		found.UpdatedAt = time.Unix(0, updatedAt).UTC()

		if found.Items, err = queryItems(ctx, tx, found.ID); err != nil {
			return err
		}
		p = &found
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find portfolio for user %s: %w", userID, classify(err))
	}
	return p, nil
}

// audit compares stored holdings with the trade log, oldest trade first.
func audit(stored *Portfolio, trades []domain.Trade) []Discrepancy {
	netTraded := make(map[string]int64)
	for _, t := range trades {
		netTraded[t.Symbol] += t.SignedQuantity()
	}
	held := make(map[string]int64, len(stored.Items))
	for symbol, item := range stored.Items {
		held[symbol] = item.Quantity
	}

	out := CompareHoldings(netTraded, held)
	if len(out) > 0 {
		return out
	}

	replayed := NewPortfolio(stored.ID, stored.UserID, time.Time{})
	if err := Replay(replayed, trades); err != nil {
		return []Discrepancy{{Reason: ReasonReplayFailed}}
	}
	for _, symbol := range stored.Symbols() {
		want := replayed.Items[symbol].AverageCost
		if got := stored.Items[symbol].AverageCost; !got.Equal(want) {
			out = append(out, Discrepancy{
				Symbol:        symbol,
				TradeQuantity: netTraded[symbol],
				HeldQuantity:  held[symbol],
				Reason:        ReasonAverageCost,
			})
		}
	}
	if out == nil {
		out = []Discrepancy{}
	}
	return out
}

func collectTrades(rows *sql.Rows) ([]domain.Trade, error) {
	defer rows.Close()

	trades := make([]domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}
	return trades, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func scanTrade(row rowScanner) (domain.Trade, error) {
	var trade domain.Trade
	var side string
	var executedAt int64

	if err := row.Scan(&trade.ID, &trade.UserID, &trade.Symbol, &side, &trade.Quantity, &trade.Price, &executedAt); err != nil {
		return domain.Trade{}, fmt.Errorf("failed to scan trade: %w", err)
	}
	trade.Side = domain.TradeSide(side)
	trade.ExecutedAt = time.Unix(0, executedAt).UTC()
	return trade, nil
}

func queryItems(ctx context.Context, q queryer, portfolioID string) (map[string]*PortfolioItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT symbol, quantity, average_cost FROM portfolio_items WHERE portfolio_id = ?`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}
	defer rows.Close()

	items := make(map[string]*PortfolioItem)
	for rows.Next() {
		item := &PortfolioItem{PortfolioID: portfolioID}
		if err := rows.Scan(&item.Symbol, &item.Quantity, &item.AverageCost); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		items[item.Symbol] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return items, nil
}

// sqlTx is a LedgerTx pinned to one pooled connection holding the write lock.
type sqlTx struct {
	conn *sql.Conn
	ctx  context.Context
	done bool
	log  zerolog.Logger
}

func (t *sqlTx) exec(query string, args ...interface{}) (sql.Result, error) {
	if t.done {
		return nil, errTxDone
	}
	res, err := t.conn.ExecContext(t.ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	return res, nil
}

func classify(err error) error {
	if database.IsBusyError(err) {
		return &domain.TradeError{Kind: domain.ErrContentionTimeout, Err: err}
	}
	return err
}

func (t *sqlTx) GetOrCreatePortfolio(userID string, at time.Time) (*Portfolio, bool, error) {
	res, err := t.exec(`
		INSERT INTO portfolios (id, user_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		uuid.NewString(), userID, DefaultPortfolioName, at.UnixNano(), at.UnixNano())
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure portfolio for user %s: %w", userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	var p Portfolio
	var createdAt, updatedAt int64
	err = t.conn.QueryRowContext(t.ctx,
		`SELECT id, user_id, name, created_at, updated_at FROM portfolios WHERE user_id = ?`, userID).
		Scan(&p.ID, &p.UserID, &p.Name, &createdAt, &updatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load portfolio for user %s: %w", userID, classify(err))
	}
	p.CreatedAt = time.Unix(0, createdAt).UTC()
	p.UpdatedAt = time.Unix(0, updatedAt).UTC()

	p.Items, err = queryItems(t.ctx, t.conn, p.ID)
	if err != nil {
		return nil, false, classify(err)
	}

	if affected == 1 {
		t.log.Info().Str("user_id", userID).Str("portfolio_id", p.ID).Msg("Created portfolio")
	}

	return &p, affected == 1, nil
}

func (t *sqlTx) AddTrade(trade domain.Trade) error {
	_, err := t.exec(`INSERT INTO trades (`+tradesColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		trade.ID, trade.UserID, trade.Symbol, string(trade.Side), trade.Quantity,
		trade.Price.String(), trade.ExecutedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

func (t *sqlTx) InsertItem(item PortfolioItem) error {
	_, err := t.exec(`INSERT INTO portfolio_items (portfolio_id, symbol, quantity, average_cost) VALUES (?, ?, ?, ?)`,
		item.PortfolioID, item.Symbol, item.Quantity, item.AverageCost.String())
	if err != nil {
		return fmt.Errorf("failed to insert holding %s: %w", item.Symbol, err)
	}
	return nil
}

func (t *sqlTx) UpdateItem(item PortfolioItem) error {
	res, err := t.exec(`UPDATE portfolio_items SET quantity = ?, average_cost = ? WHERE portfolio_id = ? AND symbol = ?`,
		item.Quantity, item.AverageCost.String(), item.PortfolioID, item.Symbol)
	if err != nil {
		return fmt.Errorf("failed to update holding %s: %w", item.Symbol, err)
	}
	return expectOneRow(res, "update holding "+item.Symbol)
}

func (t *sqlTx) DeleteItem(portfolioID, symbol string) error {
	res, err := t.exec(`DELETE FROM portfolio_items WHERE portfolio_id = ? AND symbol = ?`, portfolioID, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete holding %s: %w", symbol, err)
	}
	return expectOneRow(res, "delete holding "+symbol)
}

func (t *sqlTx) TouchPortfolio(portfolioID string, at time.Time) error {
	res, err := t.exec(`UPDATE portfolios SET updated_at = ? WHERE id = ?`, at.UnixNano(), portfolioID)
	if err != nil {
		return fmt.Errorf("failed to touch portfolio: %w", err)
	}
	return expectOneRow(res, "touch portfolio "+portfolioID)
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("%s: expected 1 row, affected %d", op, n)
	}
	return nil
}

func (t *sqlTx) Commit() error {
	if t.done {
		return errTxDone
	}
	if _, err := t.conn.ExecContext(t.ctx, "COMMIT"); err != nil {
		_ = t.Rollback()
		return fmt.Errorf("failed to commit ledger transaction: %w", classify(err))
	}
	t.done = true
	return t.conn.Close()
}

func (t *sqlTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true

	// Use a fresh context: the caller's may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := t.conn.ExecContext(ctx, "ROLLBACK"); err != nil {
		t.log.Error().Err(err).Msg("Rollback failed, discarding connection")
		// A connection that may still hold an open transaction must not return to the pool
		_ = t.conn.Raw(func(interface{}) error { return driver.ErrBadConn })
		_ = t.conn.Close()
		return fmt.Errorf("failed to roll back ledger transaction: %w", err)
	}
	return t.conn.Close()
}

// UserIDs returns every user with a portfolio or at least one trade.
func (s *Store) UserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM portfolios UNION SELECT DISTINCT user_id FROM trades ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
