// Package state persists the token ledger and its event journal in SQLite.
// It plays the "hosting environment" role the ledger core assumes: durable
// storage between invocations and an atomic commit per operation.
package state

import (
	"context"
	"time"

	"github.com/leapstack-labs/leapledger/pkg/token"
)

// JournalEntry is one persisted ledger event, annotated with its journal
// position and the operation that produced it.
type JournalEntry struct {
	// Seq is the monotonically increasing journal position.
	Seq int64
	// OpID identifies the operation that emitted the event; events from
	// one operation share an OpID.
	OpID string
	// CreatedAt is when the operation committed.
	CreatedAt time.Time
	// Event is the ledger event record.
	Event token.Event
}

// EventQuery filters journal reads.
type EventQuery struct {
	// Account, when set, restricts results to events touching the account
	// (as sender, recipient, or spender).
	Account *token.Address
	// Limit caps the number of entries returned, newest first.
	// Zero means the default of 50.
	Limit int
}

// DefaultEventLimit bounds journal reads when no explicit limit is given.
const DefaultEventLimit = 50

// Store is the persistence contract the service layer runs against.
type Store interface {
	// Load rebuilds the ledger from persisted state. A fresh store yields
	// an empty, uninitialized ledger.
	Load(ctx context.Context) (*token.Ledger, error)

	// Commit persists one operation's outcome in a single transaction:
	// the receipt's dirty balances, allowances, exemptions, and
	// configuration, plus its events appended to the journal.
	Commit(ctx context.Context, ledger *token.Ledger, receipt *token.Receipt, opID string, at time.Time) error

	// Events reads the journal, newest first.
	Events(ctx context.Context, q EventQuery) ([]JournalEntry, error)

	// Close releases the underlying database handle.
	Close() error
}
