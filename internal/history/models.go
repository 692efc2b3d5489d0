package history

import "time"

// Entry is an immutable record of one ended call, appended exactly once
// when the call leaves the live registry.
//
// Invariants:
// - Entries are never updated or deleted.
// - Appending is best-effort for the coordinator: a failed archive write
//   must not block call teardown.
//
// Storage recommendation (Postgres):
// - Table call_history with an INSERT-only policy.
// - Optional: partition by ended_at for retention.
type Entry struct {
	CallID      string `json:"call_id" db:"call_id"`
	CallerID    string `json:"caller_id" db:"caller_id"`
	ReceiverID  string `json:"receiver_id" db:"receiver_id"`
	ChannelName string `json:"channel_name" db:"channel_name"`

	// Reason is the terminal EndReason of the call record.
	Reason string `json:"reason" db:"reason"`

	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	ConnectedAt time.Time `json:"connected_at" db:"connected_at"`
	EndedAt     time.Time `json:"ended_at" db:"ended_at"`

	ConnectedSeconds int `json:"connected_seconds" db:"connected_seconds"`

	// BilledTicks and the derived amounts reconcile against the
	// billing stores; they are denormalized here for reporting.
	BilledTicks        int   `json:"billed_ticks" db:"billed_ticks"`
	CreditsSpent       int64 `json:"credits_spent" db:"credits_spent"`
	EarningsMinor      int64 `json:"earnings_minor" db:"earnings_minor"`
}
