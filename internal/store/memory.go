package store

import (
	"context"
	"sync"
	"time"

	"github.com/fairyhunter13/order-processing-simulator/internal/model"
)

// Memory is an in-memory Store. A single mutex is held for the whole unit
// of work, which serializes units the way serializable isolation would, and
// writes are staged in the unit and applied only on commit.
type Memory struct {
	mu      sync.Mutex
	ledger  map[string]*model.LedgerEntry
	stock   map[int64]int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		ledger: make(map[string]*model.LedgerEntry),
		stock:  make(map[int64]int64),
	}
}

type memoryUnit struct {
	st *Memory

	insertedEntry *model.LedgerEntry
	statusUpdates map[string]model.LedgerStatus
	stockDeltas   map[int64]int64
}

// RunUnit serializes the unit of work under the store mutex. Staged writes
// are applied only when fn returns nil.
func (m *Memory) RunUnit(ctx context.Context, fn func(Unit) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &memoryUnit{
		st:            m,
		statusUpdates: make(map[string]model.LedgerStatus),
		stockDeltas:   make(map[int64]int64),
	}
	if err := fn(u); err != nil {
		return err
	}
	u.commit()
	return nil
}

func (u *memoryUnit) commit() {
	now := time.Now()
	if e := u.insertedEntry; e != nil {
		e.CreatedAt = now
		e.UpdatedAt = now
		u.st.ledger[e.TransactionID] = e
	}
	for id, status := range u.statusUpdates {
		if e, ok := u.st.ledger[id]; ok {
			e.Status = status
			e.UpdatedAt = now
		}
	}
	for productID, delta := range u.stockDeltas {
		u.st.stock[productID] += delta
	}
}

func (u *memoryUnit) InsertIfAbsent(ctx context.Context, transactionID string, customerID, productID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, exists := u.st.ledger[transactionID]; exists {
		return false, nil
	}
	if u.insertedEntry != nil && u.insertedEntry.TransactionID == transactionID {
		return false, nil
	}
	u.insertedEntry = &model.LedgerEntry{
		TransactionID: transactionID,
		CustomerID:    customerID,
		ProductID:     productID,
		Quantity:      1,
		Status:        model.StatusProcessing,
	}
	return true, nil
}

func (u *memoryUnit) ConditionalDecrement(ctx context.Context, productID int64) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	current, ok := u.st.stock[productID]
	if !ok {
		return 0, false, ErrUnknownProduct
	}
	current += u.stockDeltas[productID]
	if current <= 0 {
		return current, false, nil
	}
	u.stockDeltas[productID]--
	return current - 1, true, nil
}

func (u *memoryUnit) UpdateStatus(ctx context.Context, transactionID string, status model.LedgerStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, committed := u.st.ledger[transactionID]
	staged := u.insertedEntry != nil && u.insertedEntry.TransactionID == transactionID
	if !committed && !staged {
		return ErrUnknownEntry
	}
	if staged {
		u.insertedEntry.Status = status
		return nil
	}
	u.statusUpdates[transactionID] = status
	return nil
}

// SeedProduct creates or resets the inventory record for a product.
func (m *Memory) SeedProduct(ctx context.Context, productID, stock int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] = stock
	return nil
}

// CountByStatus reports the number of ledger entries in a status.
func (m *Memory) CountByStatus(ctx context.Context, status model.LedgerStatus) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.ledger {
		if e.Status == status {
			n++
		}
	}
	return n, nil
}

// Stock reads the current stock of a product.
func (m *Memory) Stock(ctx context.Context, productID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stock[productID]
	if !ok {
		return 0, ErrUnknownProduct
	}
	return s, nil
}

// Entry returns a copy of the ledger entry for a transaction ID.
func (m *Memory) Entry(transactionID string) (model.LedgerEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.ledger[transactionID]
	if !ok {
		return model.LedgerEntry{}, false
	}
	return *e, true
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error { return nil }
