package trading

import (
	"github.com/rs/zerolog"
)

// executionState names a step of trade execution. RolledBack is terminal
// and reachable from every state before Committed.
type executionState string

const (
	stateStart         executionState = "start"
	statePriceResolved executionState = "price_resolved"
	stateValidated     executionState = "validated"
	stateLedgerUpdated executionState = "ledger_updated"
	statePersisted     executionState = "persisted"
	stateCommitted     executionState = "committed"
	stateRolledBack    executionState = "rolled_back"
)

func transition(log zerolog.Logger, state executionState) {
	log.Debug().Str("state", string(state)).Msg("Trade execution state")
}
