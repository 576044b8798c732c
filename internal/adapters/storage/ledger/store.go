package ledger

import (
	"context"
	"errors"

	domain "certmailer/internal/domain/ledger"
)

// Store errors
var (
	// ErrLedgerLocked means another dispatch run holds the ledger; the
	// caller must fail fast rather than interleave appends.
	ErrLedgerLocked = errors.New("ledger is locked by another run")
)

// Store defines the interface for durable, append-only ledger persistence.
type Store interface {
	// Load replays all entries in append order.
	// POST: Returns every decodable entry; a corrupt trailing record
	// never hides prior entries
	Load(ctx context.Context) ([]domain.Entry, error)

	// Append durably records one entry.
	// PRE: entry has been validated
	// POST: The entry is flushed to storage before Append returns, so a
	// crash immediately afterwards never loses the attempt
	Append(ctx context.Context, e domain.Entry) error

	// Close releases the store and any exclusivity it holds.
	Close() error
}
