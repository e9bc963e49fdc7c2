// Package trading executes trades against the cost-basis ledger.
package trading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/tradeledger/internal/domain"
	"github.com/aristath/tradeledger/internal/events"
	"github.com/aristath/tradeledger/internal/modules/ledger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultRetryBackoff is the pause before the first contention retry.
// Later retries wait proportionally longer.
const DefaultRetryBackoff = 50 * time.Millisecond

// PriceSource resolves a normalized symbol to its stock and current price.
type PriceSource interface {
	GetBySymbol(ctx context.Context, symbol string) (*domain.Stock, error)
}

// TradeHistory reads the append-only trade log.
type TradeHistory interface {
	GetUserTrades(ctx context.Context, userID string, limit int) ([]domain.Trade, error)
	GetTradesForSymbol(ctx context.Context, userID, symbol string, limit int) ([]domain.Trade, error)
}

// Projector values a portfolio for the post-trade notification.
type Projector interface {
	Project(ctx context.Context, p *ledger.Portfolio) (*domain.PortfolioView, error)
}

// RetryPolicy controls resubmission of trades that timed out waiting for
// the ledger lock. Nothing is committed by a timed-out attempt.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// PlaceTradeRequest is an order as received from a client.
type PlaceTradeRequest struct {
	UserID   string
	Symbol   string
	Side     string
	Quantity int64
}

// TradingService is the trade execution coordinator. Each PlaceTrade runs
// price resolution, validation, reconciliation and persistence as one
// all-or-nothing unit.
type TradingService struct {
	boundary     ledger.TransactionBoundary
	prices       PriceSource
	history      TradeHistory
	projector    Projector
	validator    *Validator
	reconciler   *ledger.Reconciler
	eventManager *events.Manager
	retry        RetryPolicy
	log          zerolog.Logger

	now   func() time.Time
	newID func() string
}

// NewTradingService creates a new trading service
func NewTradingService(
	boundary ledger.TransactionBoundary,
	prices PriceSource,
	history TradeHistory,
	projector Projector,
	eventManager *events.Manager,
	retry RetryPolicy,
	log zerolog.Logger,
) *TradingService {
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 0
	}
	if retry.Backoff <= 0 {
		retry.Backoff = DefaultRetryBackoff
	}
	return &TradingService{
		boundary:     boundary,
		prices:       prices,
		history:      history,
		projector:    projector,
		validator:    NewValidator(),
		reconciler:   ledger.NewReconciler(),
		eventManager: eventManager,
		retry:        retry,
		log:          log.With().Str("service", "trading").Logger(),
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}
}

// execution is the outcome of one committed attempt.
type execution struct {
	trade     domain.Trade
	portfolio *ledger.Portfolio
	change    ledger.ItemChange
}

// PlaceTrade executes a buy or sell at the stock's current price and
// returns a confirmation only once the ledger commit has succeeded.
func (s *TradingService) PlaceTrade(ctx context.Context, req PlaceTradeRequest) (*domain.TradeConfirmation, error) {
	symbol := domain.NormalizeSymbol(req.Symbol)
	if req.UserID == "" {
		return nil, domain.NewExecutionFailed(symbol, errors.New("user id is required"))
	}
	side, err := domain.ParseTradeSide(req.Side)
	if err != nil {
		return nil, err
	}
	if req.Quantity <= 0 {
		return nil, &domain.TradeError{Kind: domain.ErrInvalidQuantity, Symbol: symbol, Requested: req.Quantity}
	}

	s.log.Info().
		Str("user_id", req.UserID).
		Str("symbol", symbol).
		Str("side", string(side)).
		Int64("quantity", req.Quantity).
		Msg("Placing trade")
	transition(s.log, stateStart)

	stock, err := s.resolve(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var result *execution
	for attempt := 0; ; attempt++ {
		result, err = s.execute(ctx, req.UserID, side, req.Quantity, stock)
		if err == nil {
			break
		}
		if !domain.IsRetryable(err) || attempt >= s.retry.MaxRetries {
			s.logRejection(req.UserID, symbol, side, err)
			return nil, err
		}

		wait := s.retry.Backoff * time.Duration(attempt+1)
		s.log.Warn().
			Str("user_id", req.UserID).
			Str("symbol", symbol).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Msg("Ledger busy, retrying trade")

		select {
		case <-ctx.Done():
			return nil, domain.NewExecutionFailed(symbol, ctx.Err())
		case <-time.After(wait):
		}
	}

	confirmation := confirm(result, stock)

	s.log.Info().
		Str("trade_id", confirmation.TradeID).
		Str("user_id", confirmation.UserID).
		Str("symbol", confirmation.Symbol).
		Str("side", string(confirmation.Side)).
		Int64("quantity", confirmation.Quantity).
		Str("price", confirmation.Price.String()).
		Msg("Trade executed successfully")

	s.publish(ctx, confirmation, result)
	return confirmation, nil
}

func (s *TradingService) resolve(ctx context.Context, symbol string) (*domain.Stock, error) {
	stock, err := s.prices.GetBySymbol(ctx, symbol)
	if err != nil {
		if errors.Is(err, domain.ErrStockNotFound) {
			return nil, &domain.TradeError{Kind: domain.ErrUnknownSymbol, Symbol: symbol}
		}
		return nil, domain.NewExecutionFailed(symbol, fmt.Errorf("failed to resolve price: %w", err))
	}
	if stock == nil {
		return nil, &domain.TradeError{Kind: domain.ErrUnknownSymbol, Symbol: symbol}
	}
	return stock, nil
}

// execute runs one attempt inside a single ledger transaction. Any error
// leaves the ledger exactly as it was.
func (s *TradingService) execute(
	ctx context.Context,
	userID string,
	side domain.TradeSide,
	quantity int64,
	stock *domain.Stock,
) (result *execution, err error) {
	tradeID := s.newID()
	log := s.log.With().Str("trade_id", tradeID).Str("symbol", stock.Symbol).Logger()
	transition(log, statePriceResolved)

	tx, err := s.boundary.Begin(ctx)
	if err != nil {
		return nil, domain.NewExecutionFailed(stock.Symbol, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("Failed to rollback trade")
		}
		transition(log, stateRolledBack)
	}()

	now := s.now()
	portfolio, _, err := tx.GetOrCreatePortfolio(userID, now)
	if err != nil {
		return nil, domain.NewExecutionFailed(stock.Symbol, err)
	}

	candidate := Candidate{Side: side, Quantity: quantity, Stock: stock, Symbol: stock.Symbol}
	if err := s.validator.Validate(candidate, portfolio.HeldQuantity(stock.Symbol)); err != nil {
		return nil, err
	}
	transition(log, stateValidated)

	trade := domain.Trade{
		ID:         tradeID,
		UserID:     userID,
		Symbol:     stock.Symbol,
		Side:       side,
		Quantity:   quantity,
		Price:      stock.CurrentPrice,
		ExecutedAt: now,
	}

	change, err := s.reconciler.Apply(portfolio, trade)
	if err != nil {
		return nil, domain.NewExecutionFailed(stock.Symbol, err)
	}
	transition(log, stateLedgerUpdated)

	if err := tx.AddTrade(trade); err != nil {
		return nil, domain.NewExecutionFailed(stock.Symbol, err)
	}
	if err := ledger.PersistChange(tx, change); err != nil {
		return nil, domain.NewExecutionFailed(stock.Symbol, err)
	}
	if err := tx.TouchPortfolio(portfolio.ID, portfolio.UpdatedAt); err != nil {
		return nil, domain.NewExecutionFailed(stock.Symbol, err)
	}
	transition(log, statePersisted)

	if err := ctx.Err(); err != nil {
		return nil, domain.NewExecutionFailed(stock.Symbol, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.NewExecutionFailed(stock.Symbol, err)
	}
	committed = true
	transition(log, stateCommitted)

	return &execution{trade: trade, portfolio: portfolio, change: change}, nil
}

func confirm(result *execution, stock *domain.Stock) *domain.TradeConfirmation {
	trade := result.trade
	c := &domain.TradeConfirmation{
		TradeID:         trade.ID,
		UserID:          trade.UserID,
		PortfolioID:     result.portfolio.ID,
		Symbol:          trade.Symbol,
		StockName:       stock.Name,
		Side:            trade.Side,
		Quantity:        trade.Quantity,
		Price:           trade.Price,
		Total:           trade.Value(),
		ExecutedAt:      trade.ExecutedAt,
		HoldingQuantity: result.portfolio.HeldQuantity(trade.Symbol),
	}
	if item, ok := result.portfolio.Item(trade.Symbol); ok {
		c.HoldingAverageCost = item.AverageCost
	}
	return c
}

// publish notifies subscribers about a committed trade. The trade stands
// even if valuation for the notification fails.
func (s *TradingService) publish(ctx context.Context, c *domain.TradeConfirmation, result *execution) {
	if s.eventManager == nil {
		return
	}

	var view *domain.PortfolioView
	if s.projector != nil {
		var err error
		view, err = s.projector.Project(ctx, result.portfolio)
		if err != nil {
			s.log.Warn().Err(err).Str("trade_id", c.TradeID).Msg("Failed to value portfolio for trade notification")
		}
	}

	s.eventManager.Emit("trading", &events.TradeCompletedData{Confirmation: *c, Portfolio: view})
	s.eventManager.Emit("trading", &events.PortfolioChangedData{
		UserID:      c.UserID,
		PortfolioID: c.PortfolioID,
		Symbol:      c.Symbol,
		Change:      string(result.change.Kind),
	})
}

func (s *TradingService) logRejection(userID, symbol string, side domain.TradeSide, err error) {
	event := s.log.Warn()
	if errors.Is(err, domain.ErrTradeExecutionFailed) {
		event = s.log.Error()
	}
	event.Err(err).
		Str("user_id", userID).
		Str("symbol", symbol).
		Str("side", string(side)).
		Str("code", domain.ErrorCode(err)).
		Msg("Trade rejected")
}

// GetUserTrades returns the user's trades, most recent first, optionally
// restricted to one symbol. limit <= 0 means all.
func (s *TradingService) GetUserTrades(ctx context.Context, userID, symbol string, limit int) ([]domain.Trade, error) {
	if symbol = domain.NormalizeSymbol(symbol); symbol != "" {
		return s.history.GetTradesForSymbol(ctx, userID, symbol, limit)
	}
	return s.history.GetUserTrades(ctx, userID, limit)
}
