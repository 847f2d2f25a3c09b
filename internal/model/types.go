// Package model defines domain types used by the simulator.
package model

import "time"

// OrderRequest is one submission of a logical order. TransactionID is the
// idempotency key: it is generated once by the producer and carried verbatim
// on every redelivery of the same logical request.
type OrderRequest struct {
	CustomerID    int64  `json:"customer_id"`
	TransactionID string `json:"transaction_id"`
}

// LedgerStatus is the lifecycle status of a ledger entry.
type LedgerStatus string

const (
	StatusProcessing LedgerStatus = "PROCESSING"
	StatusSuccess    LedgerStatus = "SUCCESS"
	StatusOutOfStock LedgerStatus = "OUT_OF_STOCK"
)

// LedgerEntry records one logical transaction. TransactionID is globally
// unique; the store enforces it with a uniqueness constraint.
type LedgerEntry struct {
	ID            int64        `gorm:"primaryKey;autoIncrement" json:"-"`
	TransactionID string       `gorm:"column:transaction_id;size:36;uniqueIndex" json:"transaction_id"`
	CustomerID    int64        `gorm:"column:customer_id" json:"customer_id"`
	ProductID     int64        `gorm:"column:product_id" json:"product_id"`
	Quantity      int64        `gorm:"column:quantity" json:"quantity"`
	Status        LedgerStatus `gorm:"column:status;size:16" json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// TableName maps LedgerEntry to the order ledger table.
func (LedgerEntry) TableName() string { return "order_ledger" }

// Product holds the mutable stock counter. Stock never goes negative; all
// mutation goes through the store's conditional decrement.
type Product struct {
	ID    int64 `gorm:"primaryKey" json:"id"`
	Stock int64 `gorm:"column:stock" json:"stock"`
}

// TableName maps Product to the products table.
func (Product) TableName() string { return "products" }

// Outcome classifies the result of processing one request.
type Outcome int

const (
	// OutcomeProcessed means the order decremented stock and was recorded.
	OutcomeProcessed Outcome = iota
	// OutcomeDuplicate means the idempotency key was already registered.
	// The expected result for redeliveries, not an error.
	OutcomeDuplicate
	// OutcomeOutOfStock means stock was exhausted; the entry is terminal.
	OutcomeOutOfStock
	// OutcomeFailed means the unit of work aborted with no effect.
	OutcomeFailed
)

// String returns the metric-friendly name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeOutOfStock:
		return "out_of_stock"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}
