// Package store defines the transactional store the processor relies on,
// with an in-memory implementation for simulation and tests and a MySQL
// implementation for running against a real database.
package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fairyhunter13/order-processing-simulator/internal/model"
)

var (
	// ErrDuplicateEntry reports a uniqueness-constraint violation on the
	// idempotency key. Distinguishable from every other failure.
	ErrDuplicateEntry = errors.New("store: duplicate ledger entry")
	// ErrUnknownProduct reports a decrement against a missing product row.
	ErrUnknownProduct = errors.New("store: unknown product")
	// ErrUnknownEntry reports a status update for an absent ledger entry.
	ErrUnknownEntry = errors.New("store: unknown ledger entry")
)

// Unit is one atomic unit of work. All writes issued through a Unit become
// visible together on commit or not at all; implementations provide
// serializable (or row-locked) semantics so two units cannot both decrement
// the last item in stock.
type Unit interface {
	// InsertIfAbsent registers the idempotency key. It returns false when an
	// entry with this transaction ID already exists, relying on the store's
	// uniqueness constraint rather than a racy check-then-insert.
	InsertIfAbsent(ctx context.Context, transactionID string, customerID, productID int64) (created bool, err error)
	// ConditionalDecrement decrements stock by one iff stock > 0 and reports
	// the remaining stock. ok is false when stock was already exhausted.
	ConditionalDecrement(ctx context.Context, productID int64) (remaining int64, ok bool, err error)
	// UpdateStatus moves the ledger entry to a terminal status.
	UpdateStatus(ctx context.Context, transactionID string, status model.LedgerStatus) error
}

// Store is the durable collaborator holding the ledger and inventory.
type Store interface {
	// RunUnit executes fn inside one atomic unit of work. The unit commits
	// iff fn returns nil; any error aborts it with no partial effect.
	RunUnit(ctx context.Context, fn func(Unit) error) error
	// SeedProduct creates or resets the inventory record for a product.
	SeedProduct(ctx context.Context, productID, stock int64) error
	// CountByStatus reports the number of ledger entries in a status.
	CountByStatus(ctx context.Context, status model.LedgerStatus) (int64, error)
	// Stock reads the current stock of a product.
	Stock(ctx context.Context, productID int64) (int64, error)
	Close() error
}
