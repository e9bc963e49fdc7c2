package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/tradeledger/internal/domain"
	"github.com/aristath/tradeledger/internal/modules/ledger"
	"github.com/rs/zerolog"
)

// PriceLookup resolves current prices for a set of symbols.
type PriceLookup interface {
	GetMany(ctx context.Context, symbols []string) (map[string]domain.Stock, error)
}

// PortfolioService serves the read projection of a user's portfolio.
type PortfolioService struct {
	boundary ledger.TransactionBoundary
	reader   ledger.PortfolioReader
	prices   PriceLookup
	log      zerolog.Logger
	now      func() time.Time
}

// NewPortfolioService creates a new portfolio service. reader may be nil,
// in which case every read goes through the locked upsert.
func NewPortfolioService(boundary ledger.TransactionBoundary, reader ledger.PortfolioReader, prices PriceLookup, log zerolog.Logger) *PortfolioService {
	return &PortfolioService{
		boundary: boundary,
		reader:   reader,
		prices:   prices,
		log:      log.With().Str("service", "portfolio").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetPortfolio returns the valued portfolio for userID, creating an empty
// one on first access.
func (s *PortfolioService) GetPortfolio(ctx context.Context, userID string) (*domain.PortfolioView, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Project(ctx, p)
}

// Project values an already loaded portfolio at current prices.
func (s *PortfolioService) Project(ctx context.Context, p *ledger.Portfolio) (*domain.PortfolioView, error) {
	prices, err := s.prices.GetMany(ctx, p.Symbols())
	if err != nil {
		return nil, fmt.Errorf("failed to price portfolio %s: %w", p.ID, err)
	}

	for _, symbol := range p.Symbols() {
		if _, ok := prices[symbol]; !ok {
			s.log.Warn().Str("symbol", symbol).Str("portfolio_id", p.ID).Msg("No price for held symbol, valuing at zero")
		}
	}

	view := BuildView(p, prices)
	return &view, nil
}

func (s *PortfolioService) load(ctx context.Context, userID string) (p *ledger.Portfolio, err error) {
	if s.reader != nil {
		p, err = s.reader.FindPortfolio(ctx, userID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}

	// First access: create under the write lock
	tx, err := s.boundary.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Error().Err(rbErr).Str("user_id", userID).Msg("Failed to rollback portfolio read")
			}
		}
	}()

	p, _, err = tx.GetOrCreatePortfolio(userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio for user %s: %w", userID, err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit portfolio read: %w", err)
	}
	return p, nil
}
