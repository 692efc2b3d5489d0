package media

import (
	"context"
	"log/slog"
	"time"
)

// LogTransport is a stand-in transport for local runs and tests: every
// operation succeeds, is logged, and Publish/Leave emit the matching
// participant events. The real transport lives client-side with the
// media provider's SDK.
type LogTransport struct {
	log    *slog.Logger
	events chan Event
	clock  func() time.Time
}

func NewLogTransport(log *slog.Logger) *LogTransport {
	return &LogTransport{
		log:    log,
		events: make(chan Event, 64),
		clock:  time.Now,
	}
}

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) HealthCheck(ctx context.Context) error { return nil }

func (t *LogTransport) Join(ctx context.Context, req JoinRequest) error {
	t.log.Debug("media join", "room", req.Room, "participant_id", req.ParticipantID)
	return nil
}

func (t *LogTransport) Publish(ctx context.Context, room, participantID string, tracks []string) error {
	t.log.Debug("media publish", "room", room, "participant_id", participantID, "tracks", tracks)
	t.emit(Event{Type: EventParticipantPublished, Room: room, ParticipantID: participantID})
	return nil
}

func (t *LogTransport) Subscribe(ctx context.Context, room, remoteParticipantID string) error {
	t.log.Debug("media subscribe", "room", room, "remote_participant_id", remoteParticipantID)
	return nil
}

func (t *LogTransport) Leave(ctx context.Context, room, participantID string) error {
	t.log.Debug("media leave", "room", room, "participant_id", participantID)
	t.emit(Event{Type: EventParticipantUnpublished, Room: room, ParticipantID: participantID})
	return nil
}

func (t *LogTransport) Events() <-chan Event { return t.events }

func (t *LogTransport) emit(e Event) {
	e.OccurredAt = t.clock().UTC()
	select {
	case t.events <- e:
	default:
		// drop rather than block; events are advisory
	}
}
