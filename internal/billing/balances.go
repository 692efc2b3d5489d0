package billing

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrInvalidArgument = errors.New("billing: invalid argument")

	// ErrInsufficientFunds is the store-level refusal to debit below
	// zero. Balances never go negative.
	ErrInsufficientFunds = errors.New("billing: insufficient funds")

	// ErrOutOfCredits is the mid-call exhaustion surfaced by the meter.
	// It always arrives together with a forced call termination.
	ErrOutOfCredits = errors.New("billing: out of credits")
)

// Balances is the caller credit store.
//
// Debit must be atomic with its own balance check: concurrent debits of
// the same user must never observe or produce a negative balance.
type Balances interface {
	Balance(ctx context.Context, userID string) (int64, error)
	Credit(ctx context.Context, userID string, amount int64) (int64, error)
	// Debit decrements if and only if the balance covers amount,
	// returning the new balance, or ErrInsufficientFunds otherwise.
	Debit(ctx context.Context, userID string, amount int64) (int64, error)
}

// MemoryBalances is the single-process baseline store and test fixture.
// The Redis store is the shared-store extension for multi-process runs.
type MemoryBalances struct {
	mu       sync.Mutex
	balances map[string]int64
}

func NewMemoryBalances() *MemoryBalances {
	return &MemoryBalances{balances: make(map[string]int64)}
}

func (m *MemoryBalances) Balance(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

func (m *MemoryBalances) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	if userID == "" || amount <= 0 {
		return 0, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] += amount
	return m.balances[userID], nil
}

func (m *MemoryBalances) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	if userID == "" || amount <= 0 {
		return 0, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[userID] < amount {
		return m.balances[userID], ErrInsufficientFunds
	}
	m.balances[userID] -= amount
	return m.balances[userID], nil
}
