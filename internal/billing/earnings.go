package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EarningsEntry is an immutable append-only record of one tick's worth
// of receiver earnings. Each entry references the call that produced it;
// no earnings total changes without a corresponding entry.
type EarningsEntry struct {
	ID          string    `json:"id"`
	ReceiverID  string    `json:"receiver_id"`
	CallID      string    `json:"call_id"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

// EarningsLedger is the receiver-side pending-earnings store.
// The ledger is append-only: entries are never updated or deleted.
type EarningsLedger interface {
	Append(ctx context.Context, e EarningsEntry) error
	Total(ctx context.Context, receiverID string) (int64, error)
	List(ctx context.Context, receiverID string) ([]EarningsEntry, error)
}

// MemoryEarnings is the process-lifetime ledger baseline.
type MemoryEarnings struct {
	mu      sync.Mutex
	entries []EarningsEntry
}

func NewMemoryEarnings() *MemoryEarnings { return &MemoryEarnings{} }

func (m *MemoryEarnings) Append(ctx context.Context, e EarningsEntry) error {
	if e.ReceiverID == "" || e.AmountMinor <= 0 {
		return ErrInvalidArgument
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryEarnings) Total(ctx context.Context, receiverID string) (int64, error) {
	if receiverID == "" {
		return 0, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, e := range m.entries {
		if e.ReceiverID == receiverID {
			total += e.AmountMinor
		}
	}
	return total, nil
}

func (m *MemoryEarnings) List(ctx context.Context, receiverID string) ([]EarningsEntry, error) {
	if receiverID == "" {
		return nil, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EarningsEntry, 0)
	for _, e := range m.entries {
		if e.ReceiverID == receiverID {
			out = append(out, e)
		}
	}
	return out, nil
}
