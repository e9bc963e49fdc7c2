package events

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/aristath/tradeledger/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishReachesSubscribersOfType(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var trades, prices int
	bus.Subscribe(TradeCompleted, func(e *Event) { trades++ })
	bus.Subscribe(TradeCompleted, func(e *Event) { trades++ })
	bus.Subscribe(PriceUpdated, func(e *Event) { prices++ })

	bus.Publish(&Event{Type: TradeCompleted})

	assert.Equal(t, 2, trades)
	assert.Equal(t, 0, prices)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	calls := 0
	id := bus.Subscribe(PriceUpdated, func(e *Event) { calls++ })
	bus.Subscribe(PriceUpdated, func(e *Event) {})
	require.Equal(t, 2, bus.SubscriberCount(PriceUpdated))

	bus.Unsubscribe(id)
	bus.Publish(&Event{Type: PriceUpdated})

	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, bus.SubscriberCount(PriceUpdated))
}

func TestBus_PanickingHandlerIsIsolated(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	reached := false
	bus.Subscribe(ErrorOccurred, func(e *Event) { panic("boom") })
	bus.Subscribe(ErrorOccurred, func(e *Event) { reached = true })

	assert.NotPanics(t, func() { bus.Publish(&Event{Type: ErrorOccurred}) })
	assert.True(t, reached)
}

func TestBus_ConcurrentPublishAndSubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var mu sync.Mutex
	total := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			id := bus.Subscribe(TradeCompleted, func(e *Event) {
				mu.Lock()
				total++
				mu.Unlock()
			})
			bus.Unsubscribe(id)
		}()
		go func() {
			defer wg.Done()
			bus.Publish(&Event{Type: TradeCompleted})
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, bus.SubscriberCount(TradeCompleted))
}

func TestManager_EmitStampsAndPublishes(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var buf bytes.Buffer
	manager := NewManager(bus, zerolog.New(&buf).Level(zerolog.DebugLevel))

	var got *Event
	bus.Subscribe(TradeCompleted, func(e *Event) { got = e })

	manager.Emit("trading", &TradeCompletedData{
		Confirmation: domain.TradeConfirmation{UserID: "alice", Symbol: "AAPL"},
	})

	require.NotNil(t, got)
	assert.Equal(t, TradeCompleted, got.Type)
	assert.Equal(t, "trading", got.Module)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, "alice", got.UserID())
	assert.Contains(t, buf.String(), "TRADE_COMPLETED")
}

func TestManager_EmitError(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	manager := NewManager(bus, zerolog.Nop())

	var got *Event
	bus.Subscribe(ErrorOccurred, func(e *Event) { got = e })

	manager.EmitError("backup", errors.New("upload failed"), map[string]interface{}{"key": "x"})

	require.NotNil(t, got)
	data, ok := got.Data.(*ErrorEventData)
	require.True(t, ok)
	assert.Equal(t, "upload failed", data.Error)
	assert.Equal(t, "", got.UserID())
}

func TestManager_NilBusIsSafe(t *testing.T) {
	manager := NewManager(nil, zerolog.Nop())
	assert.NotPanics(t, func() { manager.Emit("universe", &PriceUpdatedData{}) })
}
