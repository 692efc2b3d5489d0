package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMemoryBalances_CreditDebit(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBalances()

	if _, err := b.Credit(ctx, "alice", 0); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := b.Credit(ctx, "", 5); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	if bal, err := b.Credit(ctx, "alice", 5); err != nil || bal != 5 {
		t.Fatalf("expected 5, got %d err=%v", bal, err)
	}
	if bal, err := b.Debit(ctx, "alice", 3); err != nil || bal != 2 {
		t.Fatalf("expected 2, got %d err=%v", bal, err)
	}
	if _, err := b.Debit(ctx, "alice", 3); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if bal, err := b.Balance(ctx, "alice"); err != nil || bal != 2 {
		t.Fatalf("failed debit must not change balance, got %d err=%v", bal, err)
	}
}

func TestMemoryBalances_ConcurrentDebitsNeverGoNegative(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBalances()
	if _, err := b.Credit(ctx, "alice", 10); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	const attempts = 100
	var wg sync.WaitGroup
	var okCount, failCount int
	var mu sync.Mutex
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Debit(ctx, "alice", 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				okCount++
			case errors.Is(err, ErrInsufficientFunds):
				failCount++
			default:
				t.Errorf("unexpected err: %v", err)
			}
		}()
	}
	wg.Wait()

	if okCount != 10 || failCount != attempts-10 {
		t.Fatalf("expected exactly 10 successful debits, got %d ok / %d failed", okCount, failCount)
	}
	if bal, _ := b.Balance(ctx, "alice"); bal != 0 {
		t.Fatalf("expected zero balance, got %d", bal)
	}
}
