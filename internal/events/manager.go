package events

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Manager handles event emission and logging
type Manager struct {
	bus *Bus
	log zerolog.Logger
	now func() time.Time
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
		now: time.Now,
	}
}

// Bus returns the underlying bus for subscribers
func (m *Manager) Bus() *Bus {
	return m.bus
}

// Emit publishes typed event data on behalf of module
func (m *Manager) Emit(module string, data EventData) {
	event := &Event{
		Type:      data.EventType(),
		Timestamp: m.now().UTC(),
		Module:    module,
		Data:      data,
	}

	if m.log.GetLevel() <= zerolog.DebugLevel {
		eventJSON, err := json.Marshal(event)
		if err == nil {
			m.log.Debug().
				Str("event_type", string(event.Type)).
				Str("module", module).
				RawJSON("event", eventJSON).
				Msg("Event emitted")
		}
	}

	if m.bus != nil {
		m.bus.Publish(event)
	}
}

// EmitError emits an error event
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	m.Emit(module, &ErrorEventData{Error: err.Error(), Context: context})
}
