package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/tradeledger/internal/database"
	"github.com/aristath/tradeledger/internal/domain"
	"github.com/aristath/tradeledger/internal/events"
	"github.com/aristath/tradeledger/internal/modules/ledger"
	ledgertest "github.com/aristath/tradeledger/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct{ err error }

func (s stubChecker) QuickCheck(context.Context) error { return s.err }
func (s stubChecker) Name() string                     { return "ledger" }

func plentyOfDisk(string) (*disk.UsageStat, error) {
	return &disk.UsageStat{Free: 50 * 1000 * 1000 * 1000}, nil
}

func newIntegrityFixture(t *testing.T) (*ledger.Store, *database.DB, func()) {
	t.Helper()
	db, cleanup := ledgertest.NewTestDB(t, "ledger")
	ledgertest.SeedStocks(t, db)
	return ledger.NewStore(db.Conn(), 2*time.Second, zerolog.Nop()), db, cleanup
}

func buy(t *testing.T, store *ledger.Store, userID, symbol string, qty int64, price string) {
	t.Helper()
	ctx := context.Background()
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	p, _, err := tx.GetOrCreatePortfolio(userID, time.Now())
	require.NoError(t, err)

	trade := domain.Trade{
		ID: userID + symbol, UserID: userID, Symbol: symbol, Side: domain.TradeSideBuy,
		Quantity: qty, Price: decimal.RequireFromString(price), ExecutedAt: time.Now().UTC(),
	}
	change, err := ledger.NewReconciler().Apply(p, trade)
	require.NoError(t, err)
	require.NoError(t, tx.AddTrade(trade))
	require.NoError(t, ledger.PersistChange(tx, change))
	require.NoError(t, tx.Commit())
}

func TestLedgerIntegrityJob_Check(t *testing.T) {
	store, checker, cleanup := newIntegrityFixture(t)
	defer cleanup()

	buy(t, store, "alice", "AAPL", 10, "170")
	buy(t, store, "bob", "MSFT", 3, "250")

	bus := events.NewBus(zerolog.Nop())
	var errorEvents []*events.Event
	bus.Subscribe(events.ErrorOccurred, func(e *events.Event) { errorEvents = append(errorEvents, e) })

	job := NewLedgerIntegrityJob(checker, store, events.NewManager(bus, zerolog.Nop()), t.TempDir(), zerolog.Nop())
	job.diskUsage = plentyOfDisk

	report, err := job.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.UsersChecked)
	assert.Empty(t, report.InconsistentUsers)
	assert.Empty(t, errorEvents)

	// Corrupt bob's holding behind the ledger's back
	_, err = checker.Conn().Exec(`UPDATE portfolio_items SET quantity = 5 WHERE symbol = 'MSFT'`)
	require.NoError(t, err)

	report, err = job.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.UsersChecked)
	assert.Equal(t, []string{"bob"}, report.InconsistentUsers)
	require.Len(t, errorEvents, 1)
	data, ok := errorEvents[0].Data.(*events.ErrorEventData)
	require.True(t, ok)
	assert.Equal(t, "bob", data.Context["user_id"])
}

func TestLedgerIntegrityJob_FailsOnUnhealthyDatabase(t *testing.T) {
	job := NewLedgerIntegrityJob(stubChecker{err: errors.New("disk I/O error")}, nil, nil, t.TempDir(), zerolog.Nop())
	job.diskUsage = plentyOfDisk

	_, err := job.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
}

func TestLedgerIntegrityJob_DiskSpace(t *testing.T) {
	store, _, cleanup := newIntegrityFixture(t)
	defer cleanup()

	job := NewLedgerIntegrityJob(stubChecker{}, store, nil, t.TempDir(), zerolog.Nop())

	job.diskUsage = func(string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Free: 100 * 1000 * 1000}, nil
	}
	_, err := job.Check(context.Background())
	require.Error(t, err)

	job.diskUsage = func(string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Free: 2 * 1000 * 1000 * 1000}, nil
	}
	report, err := job.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2*1000*1000*1000), report.AvailableDiskBytes)

	job.diskUsage = func(string) (*disk.UsageStat, error) { return nil, errors.New("no such device") }
	assert.Error(t, job.Run())
}
