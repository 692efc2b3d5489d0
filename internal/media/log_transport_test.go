package media

import (
	"context"
	"log/slog"
	"testing"
)

func TestLogTransport_EmitsParticipantEvents(t *testing.T) {
	ctx := context.Background()
	tr := NewLogTransport(slog.Default())

	if err := tr.HealthCheck(ctx); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := tr.Join(ctx, JoinRequest{Room: "r1", ParticipantID: "alice"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := tr.Publish(ctx, "r1", "alice", []string{"audio", "video"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := tr.Leave(ctx, "r1", "alice"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	ev := <-tr.Events()
	if ev.Type != EventParticipantPublished || ev.Room != "r1" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.OccurredAt.IsZero() {
		t.Fatalf("expected event timestamp")
	}
	ev = <-tr.Events()
	if ev.Type != EventParticipantUnpublished {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestLogTransport_DropsWhenFull(t *testing.T) {
	ctx := context.Background()
	tr := NewLogTransport(slog.Default())

	// overflow the buffer; the transport must not block
	for i := 0; i < 200; i++ {
		if err := tr.Publish(ctx, "r1", "alice", nil); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}
}
