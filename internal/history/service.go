package history

import (
	"context"
	"errors"
)

var ErrInvalidEntry = errors.New("history: invalid entry")

// Repository is the persistence contract for the ended-call archive.
// The archive is append-only: entries are never updated or deleted.
type Repository interface {
	Append(ctx context.Context, e Entry) error
	FindByCall(ctx context.Context, callID string) (Entry, bool, error)
	ListForParty(ctx context.Context, partyID string, limit int) ([]Entry, error)
}

// Summary aggregates a party's archived calls, from either side of the
// marketplace: credits spent as a caller, earnings accrued as a
// receiver.
type Summary struct {
	PartyID string `json:"party_id"`

	TotalCalls        int `json:"total_calls"`
	CompletedCalls    int `json:"completed_calls"`
	RejectedCalls     int `json:"rejected_calls"`
	TimedOutCalls     int `json:"timed_out_calls"`
	CanceledCalls     int `json:"canceled_calls"`
	OutOfCreditsCalls int `json:"out_of_credits_calls"`

	TotalConnectedSeconds int `json:"total_connected_seconds"`

	CreditsSpent  int64 `json:"credits_spent"`
	EarningsMinor int64 `json:"earnings_minor"`
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) Record(ctx context.Context, e Entry) error {
	if s.repo == nil {
		return errors.New("history: repository not configured")
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) FindByCall(ctx context.Context, callID string) (Entry, bool, error) {
	if s.repo == nil {
		return Entry{}, false, errors.New("history: repository not configured")
	}
	return s.repo.FindByCall(ctx, callID)
}

func (s *Service) ListForParty(ctx context.Context, partyID string, limit int) ([]Entry, error) {
	if s.repo == nil {
		return nil, errors.New("history: repository not configured")
	}
	return s.repo.ListForParty(ctx, partyID, limit)
}

// SummaryForParty scans the party's archive and aggregates outcome
// counts, connected time and money flows.
func (s *Service) SummaryForParty(ctx context.Context, partyID string) (Summary, error) {
	if partyID == "" {
		return Summary{}, ErrInvalidEntry
	}
	rows, err := s.ListForParty(ctx, partyID, 0)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{PartyID: partyID}
	for _, e := range rows {
		out.TotalCalls++
		out.TotalConnectedSeconds += e.ConnectedSeconds

		switch e.Reason {
		case "normal":
			out.CompletedCalls++
		case "rejected":
			out.RejectedCalls++
		case "timeout":
			out.TimedOutCalls++
		case "canceled":
			out.CanceledCalls++
		case "out_of_credits":
			out.OutOfCreditsCalls++
		}

		if e.CallerID == partyID {
			out.CreditsSpent += e.CreditsSpent
		}
		if e.ReceiverID == partyID {
			out.EarningsMinor += e.EarningsMinor
		}
	}
	return out, nil
}
