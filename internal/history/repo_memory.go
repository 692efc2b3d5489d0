package history

import (
	"context"
	"sync"
)

// MemoryRepo is the process-lifetime archive, used in tests and when no
// database is configured.
type MemoryRepo struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Entry) error {
	if e.CallID == "" {
		return ErrInvalidEntry
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *MemoryRepo) FindByCall(ctx context.Context, callID string) (Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.CallID == callID {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

func (r *MemoryRepo) ListForParty(ctx context.Context, partyID string, limit int) ([]Entry, error) {
	if partyID == "" {
		return nil, ErrInvalidEntry
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0)
	// newest first
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if e.CallerID != partyID && e.ReceiverID != partyID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
