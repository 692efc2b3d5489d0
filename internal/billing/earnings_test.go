package billing

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryEarnings_AppendAndTotal(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryEarnings()

	if err := l.Append(ctx, EarningsEntry{AmountMinor: 23}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := l.Append(ctx, EarningsEntry{ReceiverID: "bob", CallID: "c1", AmountMinor: 23, Currency: "KES"}); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}
	if err := l.Append(ctx, EarningsEntry{ReceiverID: "carol", CallID: "c2", AmountMinor: 23, Currency: "KES"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	total, err := l.Total(ctx, "bob")
	if err != nil || total != 69 {
		t.Fatalf("expected 69, got %d err=%v", total, err)
	}

	entries, err := l.List(ctx, "bob")
	if err != nil || len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d err=%v", len(entries), err)
	}
	for _, e := range entries {
		if e.ID == "" || e.CreatedAt.IsZero() {
			t.Fatalf("expected id and timestamp assigned: %+v", e)
		}
	}
}
