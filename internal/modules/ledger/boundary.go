package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/tradeledger/internal/domain"
)

// TransactionBoundary opens units of work over the ledger. At most one
// unit of work holds the write lock at a time; Begin waits for it up to
// the store's lock timeout.
type TransactionBoundary interface {
	Begin(ctx context.Context) (LedgerTx, error)
}

// LedgerTx is one atomic unit of work. Either every write inside it
// becomes visible on Commit, or none does. Rollback after Commit is a no-op.
type LedgerTx interface {
	// GetOrCreatePortfolio loads the user's portfolio with its holdings,
	// creating an empty one if none exists. created reports the latter.
	GetOrCreatePortfolio(userID string, at time.Time) (portfolio *Portfolio, created bool, err error)
	AddTrade(trade domain.Trade) error
	InsertItem(item PortfolioItem) error
	UpdateItem(item PortfolioItem) error
	DeleteItem(portfolioID, symbol string) error
	TouchPortfolio(portfolioID string, at time.Time) error
	Commit() error
	Rollback() error
}

// PortfolioReader loads a portfolio without taking the ledger write lock.
// A nil portfolio means the user has none yet.
type PortfolioReader interface {
	FindPortfolio(ctx context.Context, userID string) (*Portfolio, error)
}

// PersistChange writes a reconciler change through tx.
func PersistChange(tx LedgerTx, change ItemChange) error {
	switch change.Kind {
	case ItemCreated:
		return tx.InsertItem(change.Item)
	case ItemUpdated:
		return tx.UpdateItem(change.Item)
	case ItemDeleted:
		return tx.DeleteItem(change.Item.PortfolioID, change.Item.Symbol)
	}
	return fmt.Errorf("unknown holding change %q", change.Kind)
}
