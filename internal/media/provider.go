package media

import (
	"context"
	"time"
)

// Transport is the provider-agnostic media-transport boundary.
//
// Rules:
// - No provider SDK calls outside media adapters.
// - Everything here is advisory to clients and UIs; billing state never
//   depends on media-track readiness. The coordinator treats the join
//   sequence as fire-and-forget.
type Transport interface {
	Name() string
	HealthCheck(ctx context.Context) error

	Join(ctx context.Context, req JoinRequest) error
	Publish(ctx context.Context, room, participantID string, tracks []string) error
	Subscribe(ctx context.Context, room, remoteParticipantID string) error
	Leave(ctx context.Context, room, participantID string) error

	// Events delivers participant publish/unpublish notifications.
	// Consumers must drain the channel; slow consumers lose events
	// rather than blocking the transport.
	Events() <-chan Event
}

type JoinRequest struct {
	Room          string `json:"room"`
	ParticipantID string `json:"participant_id"`

	// Credential is the time-boxed join credential from the issuer.
	Credential string `json:"credential"`
}

type EventType string

const (
	EventParticipantPublished   EventType = "participant_published"
	EventParticipantUnpublished EventType = "participant_unpublished"
)

type Event struct {
	Type          EventType `json:"type"`
	Room          string    `json:"room"`
	ParticipantID string    `json:"participant_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}
