package history

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepo persists archive entries in the call_history table.
//
// Assumed schema:
//
//	CREATE TABLE call_history (
//	  call_id           TEXT PRIMARY KEY,
//	  caller_id         TEXT NOT NULL,
//	  receiver_id       TEXT NOT NULL,
//	  channel_name      TEXT NOT NULL,
//	  reason            TEXT NOT NULL,
//	  created_at        TIMESTAMPTZ NOT NULL,
//	  connected_at      TIMESTAMPTZ,
//	  ended_at          TIMESTAMPTZ NOT NULL,
//	  connected_seconds INT NOT NULL,
//	  billed_ticks      INT NOT NULL,
//	  credits_spent     BIGINT NOT NULL,
//	  earnings_minor    BIGINT NOT NULL
//	);
//
// The table is INSERT-only; ON CONFLICT DO NOTHING keeps re-archiving an
// already-ended call (idempotent teardown paths) harmless.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Entry) error {
	if e.CallID == "" {
		return ErrInvalidEntry
	}
	const q = `
INSERT INTO call_history (
  call_id, caller_id, receiver_id, channel_name, reason,
  created_at, connected_at, ended_at, connected_seconds,
  billed_ticks, credits_spent, earnings_minor
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (call_id) DO NOTHING
`
	_, err := r.db.ExecContext(ctx, q,
		e.CallID,
		e.CallerID,
		e.ReceiverID,
		e.ChannelName,
		e.Reason,
		e.CreatedAt,
		nullableTime(e.ConnectedAt),
		e.EndedAt,
		e.ConnectedSeconds,
		e.BilledTicks,
		e.CreditsSpent,
		e.EarningsMinor,
	)
	return err
}

func (r *PostgresRepo) FindByCall(ctx context.Context, callID string) (Entry, bool, error) {
	const q = `
SELECT call_id, caller_id, receiver_id, channel_name, reason,
       created_at, connected_at, ended_at,
       connected_seconds, billed_ticks, credits_spent, earnings_minor
FROM call_history
WHERE call_id = $1
`
	var e Entry
	var connectedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, q, callID).Scan(
		&e.CallID,
		&e.CallerID,
		&e.ReceiverID,
		&e.ChannelName,
		&e.Reason,
		&e.CreatedAt,
		&connectedAt,
		&e.EndedAt,
		&e.ConnectedSeconds,
		&e.BilledTicks,
		&e.CreditsSpent,
		&e.EarningsMinor,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	if connectedAt.Valid {
		e.ConnectedAt = connectedAt.Time
	}
	return e, true, nil
}

func (r *PostgresRepo) ListForParty(ctx context.Context, partyID string, limit int) ([]Entry, error) {
	if partyID == "" {
		return nil, ErrInvalidEntry
	}
	if limit <= 0 {
		limit = 1000
	}
	const q = `
SELECT call_id, caller_id, receiver_id, channel_name, reason,
       created_at, connected_at, ended_at,
       connected_seconds, billed_ticks, credits_spent, earnings_minor
FROM call_history
WHERE caller_id = $1 OR receiver_id = $1
ORDER BY ended_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, partyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var connectedAt sql.NullTime
		if err := rows.Scan(
			&e.CallID,
			&e.CallerID,
			&e.ReceiverID,
			&e.ChannelName,
			&e.Reason,
			&e.CreatedAt,
			&connectedAt,
			&e.EndedAt,
			&e.ConnectedSeconds,
			&e.BilledTicks,
			&e.CreditsSpent,
			&e.EarningsMinor,
		); err != nil {
			return nil, err
		}
		if connectedAt.Valid {
			e.ConnectedAt = connectedAt.Time
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
