// Package realtime pushes domain events to connected WebSocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aristath/tradeledger/internal/events"
	"github.com/aristath/tradeledger/internal/identity"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	clientBuffer = 100
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// streamedTypes are forwarded to clients. Error events stay server-side.
var streamedTypes = []events.EventType{
	events.TradeCompleted,
	events.PortfolioChanged,
	events.PriceUpdated,
	events.BackupCompleted,
}

type client struct {
	userID   string
	encoding Encoding
	types    map[events.EventType]bool // nil means every streamed type
	send     chan *events.Event
}

func (c *client) wants(e *events.Event) bool {
	if c.types != nil && !c.types[e.Type] {
		return false
	}
	owner := e.UserID()
	return owner == "" || owner == c.userID
}

// Hub fans bus events out to WebSocket clients. User-scoped events reach
// only that user's sockets; everything else is broadcast.
type Hub struct {
	bus *events.Bus
	log zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	subs    []events.SubscriptionID
}

// NewHub creates a hub. Call Start to begin forwarding events.
func NewHub(bus *events.Bus, log zerolog.Logger) *Hub {
	return &Hub{
		bus:     bus,
		log:     log.With().Str("component", "realtime_hub").Logger(),
		clients: make(map[*client]struct{}),
	}
}

// Start subscribes the hub to the event bus.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) > 0 {
		return
	}
	for _, t := range streamedTypes {
		h.subs = append(h.subs, h.bus.Subscribe(t, h.dispatch))
	}
	h.log.Info().Int("event_types", len(streamedTypes)).Msg("Realtime hub started")
}

// Stop unsubscribes from the bus and disconnects every client.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range h.subs {
		h.bus.Unsubscribe(id)
	}
	h.subs = nil
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.log.Info().Msg("Realtime hub stopped")
}

// ClientCount returns the number of connected sockets.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) dispatch(e *events.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.wants(e) {
			continue
		}
		// Non-blocking send (drop if channel full)
		select {
		case c.send <- e:
		default:
			h.log.Warn().
				Str("event_type", string(e.Type)).
				Str("user_id", c.userID).
				Msg("Client channel full, dropping event")
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// unregister reports whether c was still registered; Stop may have
// already removed it and closed its channel.
func (h *Hub) unregister(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	delete(h.clients, c)
	close(c.send)
	return true
}

// ServeHTTP handles GET /ws. Query parameters: encoding=json|msgpack,
// types=TRADE_COMPLETED,PRICE_UPDATED.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing user", http.StatusUnauthorized)
		return
	}

	encoding, err := ParseEncoding(r.URL.Query().Get("encoding"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket handshake failed")
		return
	}

	c := &client{
		userID:   userID,
		encoding: encoding,
		types:    parseTypes(r.URL.Query().Get("types")),
		send:     make(chan *events.Event, clientBuffer),
	}
	h.register(c)
	defer h.unregister(c)

	log := h.log.With().Str("user_id", userID).Str("encoding", string(encoding)).Logger()
	log.Info().Msg("Client connected to realtime stream")

	// Clients only listen; CloseRead handles control frames and cancels on close.
	ctx := conn.CloseRead(r.Context())

	if err := h.write(ctx, conn, c.encoding, welcome(time.Now().UTC())); err != nil {
		log.Debug().Err(err).Msg("Failed to send welcome message")
		return
	}

	heartbeat := time.NewTicker(pingInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Client disconnected from realtime stream")
			return

		case e, open := <-c.send:
			if !open {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := h.write(ctx, conn, c.encoding, envelopeFor(e)); err != nil {
				log.Debug().Err(err).Str("event_type", string(e.Type)).Msg("Failed to send event")
				return
			}

		case <-heartbeat.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Debug().Err(err).Msg("Ping failed")
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, encoding Encoding, env Envelope) error {
	typ, payload, err := Encode(encoding, env)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, typ, payload)
}

func parseTypes(raw string) map[events.EventType]bool {
	if raw == "" {
		return nil
	}
	types := make(map[events.EventType]bool)
	for _, t := range strings.Split(raw, ",") {
		types[events.EventType(strings.ToUpper(strings.TrimSpace(t)))] = true
	}
	return types
}

func welcome(at time.Time) Envelope {
	return Envelope{
		Type:      "connected",
		Module:    "realtime",
		Timestamp: at.Format(time.RFC3339),
		Data:      json.RawMessage(`{"message":"Connected to realtime stream"}`),
	}
}
