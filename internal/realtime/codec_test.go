package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aristath/tradeledger/internal/domain"
	"github.com/aristath/tradeledger/internal/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"
)

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		raw     string
		want    Encoding
		wantErr bool
	}{
		{"", EncodingJSON, false},
		{"json", EncodingJSON, false},
		{" MsgPack ", EncodingMsgpack, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseEncoding(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func priceEvent() *events.Event {
	return &events.Event{
		Type:      events.PriceUpdated,
		Module:    "universe",
		Timestamp: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		Data: &events.PriceUpdatedData{
			Stock:         domain.Stock{Symbol: "AAPL", Name: "Apple Inc.", CurrentPrice: decimal.RequireFromString("171.25")},
			PreviousPrice: "170",
		},
	}
}

func TestEncode_BothFormatsCarryTheSameFields(t *testing.T) {
	env := envelopeFor(priceEvent())

	typ, payload, err := Encode(EncodingJSON, env)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	var fromJSON map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &fromJSON))

	typ, payload, err = Encode(EncodingMsgpack, env)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageBinary, typ)
	var fromMsgpack map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(payload, &fromMsgpack))

	for _, m := range []map[string]interface{}{fromJSON, fromMsgpack} {
		assert.Equal(t, "PRICE_UPDATED", m["type"])
		assert.Equal(t, "universe", m["module"])
		data := m["data"].(map[string]interface{})
		stock := data["stock"].(map[string]interface{})
		assert.Equal(t, "171.25", stock["current_price"])
		assert.Equal(t, "170", data["previous_price"])
	}
}
