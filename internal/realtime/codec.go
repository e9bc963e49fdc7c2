package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/tradeledger/internal/events"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"
)

// Encoding is the wire format of a realtime connection.
type Encoding string

const (
	EncodingJSON    Encoding = "json"
	EncodingMsgpack Encoding = "msgpack"
)

// ParseEncoding accepts "", "json" or "msgpack".
func ParseEncoding(raw string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(raw))) {
	case "", EncodingJSON:
		return EncodingJSON, nil
	case EncodingMsgpack:
		return EncodingMsgpack, nil
	}
	return "", fmt.Errorf("unsupported encoding %q", raw)
}

// Envelope is one message sent to a client.
type Envelope struct {
	Type      string      `json:"type" msgpack:"type"`
	Module    string      `json:"module" msgpack:"module"`
	Timestamp string      `json:"timestamp" msgpack:"timestamp"`
	Data      interface{} `json:"data" msgpack:"data"`
}

func envelopeFor(e *events.Event) Envelope {
	return Envelope{
		Type:      string(e.Type),
		Module:    e.Module,
		Timestamp: e.Timestamp.Format(time.RFC3339Nano),
		Data:      e.Data,
	}
}

// Encode renders env as a text frame for JSON or a binary frame for msgpack.
func Encode(encoding Encoding, env Envelope) (websocket.MessageType, []byte, error) {
	if encoding != EncodingMsgpack {
		payload, err := json.Marshal(env)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode event as JSON: %w", err)
		}
		return websocket.MessageText, payload, nil
	}

	// Payload types carry JSON marshalers (decimals, times) but no msgpack
	// ones; go through JSON so both encodings expose the same fields.
	raw, err := json.Marshal(env.Data)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode event data: %w", err)
	}
	var data interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return 0, nil, fmt.Errorf("failed to decode event data: %w", err)
	}
	env.Data = data

	payload, err := msgpack.Marshal(env)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode event as msgpack: %w", err)
	}
	return websocket.MessageBinary, payload, nil
}
