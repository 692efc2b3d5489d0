package calls

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is a live call-session record.
//
// Identity fields (ID, CallerID, ReceiverID, ChannelName, CreatedAt) are
// immutable after creation. Status moves strictly forward:
// Pending -> Active -> Ended, or Pending -> Ended. A record never
// re-enters Pending, and an Ended record is never mutated again.
//
// Money invariant reminder: credit debits reference the call id in the
// billing stores; the record only counts billed ticks for reconciliation.
type Record struct {
	ID         string `json:"id"`
	CallerID   string `json:"caller_id"`
	ReceiverID string `json:"receiver_id"`

	// ChannelName is the media-transport room name, derived from the
	// pair of participants plus a uniqueness token.
	ChannelName string `json:"channel_name"`

	Status    Status    `json:"status"`
	EndReason EndReason `json:"end_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// ConnectedAt is set on the transition to Active and is the origin
	// of billing-tick time. Zero while Pending.
	ConnectedAt time.Time `json:"connected_at"`
	EndedAt     time.Time `json:"ended_at"`

	// BilledTicks counts full billing ticks applied to this call.
	BilledTicks int `json:"billed_ticks"`
}

type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
)

// rank encodes the monotonic status ordering.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusActive:
		return 1
	case StatusEnded:
		return 2
	default:
		return -1
	}
}

// Live reports whether the status still occupies the per-party indices.
func (s Status) Live() bool {
	return s == StatusPending || s == StatusActive
}

// EndReason distinguishes terminal outcomes. Downstream consumers only
// need Ended plus the reason; Rejected is not a separate status.
type EndReason string

const (
	EndReasonNormal       EndReason = "normal"
	EndReasonRejected     EndReason = "rejected"
	EndReasonCanceled     EndReason = "canceled"
	EndReasonTimeout      EndReason = "timeout"
	EndReasonOutOfCredits EndReason = "out_of_credits"
)

// ConnectedDuration returns the connected time of the record at "now"
// (or at EndedAt for terminal records). Zero if never connected.
func (r Record) ConnectedDuration(now time.Time) time.Duration {
	if r.ConnectedAt.IsZero() {
		return 0
	}
	end := now
	if !r.EndedAt.IsZero() {
		end = r.EndedAt
	}
	if end.Before(r.ConnectedAt) {
		return 0
	}
	return end.Sub(r.ConnectedAt)
}

// NewChannelName derives the media-transport room name for a call.
// The uniqueness token keeps repeat calls between the same pair from
// colliding on a room that a provider may still consider live.
func NewChannelName(callerID, receiverID string) string {
	token := uuid.NewString()[:8]
	return fmt.Sprintf("call_%s_%s_%s", callerID, receiverID, token)
}
