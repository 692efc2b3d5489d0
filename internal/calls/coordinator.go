package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"videocall-platform/internal/billing"
	"videocall-platform/internal/history"
	"videocall-platform/internal/media"
)

// errAlreadyEnded aborts an end mutator when another ender won the race.
// It is treated as success: the loser gets the terminal snapshot back.
var errAlreadyEnded = errors.New("calls: already ended")

// Coordinator drives the call lifecycle: creation, acceptance, the
// per-call billing meter, and termination. It is the only component
// that starts or stops meters and the only writer of terminal state to
// the history archive, so the stop-before-return and archive-once
// guarantees live here.
type Coordinator struct {
	reg      *Registry
	balances billing.Balances
	earnings billing.EarningsLedger
	tariff   billing.Tariff
	archive  *history.Service
	media    media.Transport

	pendingTTL    time.Duration
	sweepInterval time.Duration

	log   *slog.Logger
	clock func() time.Time

	mu     sync.Mutex
	meters map[string]*billing.Meter
}

type CoordinatorConfig struct {
	Registry *Registry
	Balances billing.Balances
	Earnings billing.EarningsLedger
	Tariff   billing.Tariff
	Archive  *history.Service

	// Media is optional; when set the coordinator sends best-effort
	// room-teardown advisories to the transport on call end.
	Media media.Transport

	// PendingTTL bounds how long an unanswered Pending call survives.
	// SweepInterval is how often the background sweep looks for stale
	// ones; answers and creations also evict inline, so the sweep is a
	// backstop, not the primary path.
	PendingTTL    time.Duration
	SweepInterval time.Duration

	Logger *slog.Logger
	Clock  func() time.Time
}

func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	c := &Coordinator{
		reg:           cfg.Registry,
		balances:      cfg.Balances,
		earnings:      cfg.Earnings,
		tariff:        cfg.Tariff,
		archive:       cfg.Archive,
		media:         cfg.Media,
		pendingTTL:    cfg.PendingTTL,
		sweepInterval: cfg.SweepInterval,
		log:           cfg.Logger,
		clock:         cfg.Clock,
		meters:        make(map[string]*billing.Meter),
	}
	if c.reg == nil {
		c.reg = NewRegistry()
	}
	if c.tariff.TickDuration <= 0 {
		c.tariff = billing.DefaultTariff()
	}
	if c.pendingTTL <= 0 {
		c.pendingTTL = time.Minute
	}
	if c.sweepInterval <= 0 {
		c.sweepInterval = 15 * time.Second
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	return c
}

// CreateCall registers a Pending call from caller to receiver. The
// caller must be able to afford at least one billing tick up front;
// either party already having a live call fails with the matching busy
// error. A stale Pending call sitting on either party is expired inline
// rather than blocking the new attempt.
func (c *Coordinator) CreateCall(ctx context.Context, callerID, receiverID string) (Record, error) {
	if callerID == "" || receiverID == "" {
		return Record{}, fmt.Errorf("%w: caller and receiver ids are required", ErrInvalidArgument)
	}
	if callerID == receiverID {
		return Record{}, fmt.Errorf("%w: caller and receiver must differ", ErrInvalidArgument)
	}

	bal, err := c.balances.Balance(ctx, callerID)
	if err != nil {
		return Record{}, fmt.Errorf("check balance: %w", err)
	}
	if bal < c.tariff.CreditsPerTick {
		return Record{}, fmt.Errorf("%w: balance %d below one tick (%d)",
			billing.ErrInsufficientFunds, bal, c.tariff.CreditsPerTick)
	}

	if rec, ok := c.reg.LiveForReceiver(receiverID); ok {
		if !c.expireIfStale(ctx, rec) {
			return Record{}, fmt.Errorf("%w: %s", ErrReceiverBusy, receiverID)
		}
	}
	if rec, ok := c.reg.LiveForCaller(callerID); ok {
		if !c.expireIfStale(ctx, rec) {
			return Record{}, fmt.Errorf("%w: %s", ErrCallerBusy, callerID)
		}
	}

	rec := Record{
		ID:          uuid.NewString(),
		CallerID:    callerID,
		ReceiverID:  receiverID,
		ChannelName: NewChannelName(callerID, receiverID),
		Status:      StatusPending,
		CreatedAt:   c.clock().UTC(),
	}
	if err := c.reg.Insert(rec); err != nil {
		// A concurrent create won the index between our check and the
		// insert. Re-read to report the right busy side.
		if errors.Is(err, ErrConflict) {
			if _, ok := c.reg.LiveForReceiver(receiverID); ok {
				return Record{}, fmt.Errorf("%w: %s", ErrReceiverBusy, receiverID)
			}
			return Record{}, fmt.Errorf("%w: %s", ErrCallerBusy, callerID)
		}
		return Record{}, err
	}

	c.log.Info("call created",
		"call_id", rec.ID, "caller_id", callerID, "receiver_id", receiverID)
	return rec, nil
}

// AcceptCall moves the receiver's Pending call to Active and starts its
// billing meter. Only the addressed receiver may accept.
//
// The meter is registered inside the record's critical section, before
// the Active transition becomes visible. Any end transition therefore
// happens strictly after registration and is guaranteed to find the
// meter to stop; no timer can outlive EndCall.
func (c *Coordinator) AcceptCall(ctx context.Context, callID, receiverID string) (Record, error) {
	now := c.clock().UTC()
	rec, err := c.reg.Update(callID, func(r *Record) error {
		if r.ReceiverID != receiverID {
			return fmt.Errorf("%w: call %s is not addressed to %s", ErrNotAuthorized, callID, receiverID)
		}
		if r.Status != StatusPending {
			return fmt.Errorf("%w: accept requires pending, got %s", ErrInvalidTransition, r.Status)
		}
		r.Status = StatusActive
		r.ConnectedAt = now
		c.startMeter(r.ID)
		return nil
	})
	if err != nil {
		return Record{}, err
	}

	c.log.Info("call accepted", "call_id", rec.ID, "receiver_id", receiverID)
	return rec, nil
}

// RejectCall terminates the receiver's Pending call without connecting.
// No tick was ever billed for a rejected call.
func (c *Coordinator) RejectCall(ctx context.Context, callID, receiverID string) (Record, error) {
	now := c.clock().UTC()
	rec, err := c.reg.Update(callID, func(r *Record) error {
		if r.ReceiverID != receiverID {
			return fmt.Errorf("%w: call %s is not addressed to %s", ErrNotAuthorized, callID, receiverID)
		}
		if r.Status != StatusPending {
			return fmt.Errorf("%w: reject requires pending, got %s", ErrInvalidTransition, r.Status)
		}
		r.Status = StatusEnded
		r.EndReason = EndReasonRejected
		r.EndedAt = now
		return nil
	})
	if err != nil {
		return Record{}, err
	}

	c.finalize(ctx, rec)
	c.log.Info("call rejected", "call_id", rec.ID, "receiver_id", receiverID)
	return rec, nil
}

// EndCall terminates the call on behalf of either participant. It is
// idempotent under concurrency: every invocation returns the terminal
// record, and by the time it returns no further billing tick can fire.
// Ending a still-Pending call records it as canceled.
func (c *Coordinator) EndCall(ctx context.Context, callID, partyID string) (Record, error) {
	return c.end(ctx, callID, partyID, EndReasonNormal)
}

func (c *Coordinator) end(ctx context.Context, callID, partyID string, reason EndReason) (Record, error) {
	now := c.clock().UTC()
	rec, err := c.reg.Update(callID, func(r *Record) error {
		if partyID != "" && r.CallerID != partyID && r.ReceiverID != partyID {
			return fmt.Errorf("%w: %s is not a participant of call %s", ErrNotAuthorized, partyID, callID)
		}
		if r.Status == StatusEnded {
			return errAlreadyEnded
		}
		if r.Status == StatusPending && reason == EndReasonNormal {
			r.EndReason = EndReasonCanceled
		} else {
			r.EndReason = reason
		}
		r.Status = StatusEnded
		r.EndedAt = now
		return nil
	})
	switch {
	case err == nil:
		// This invocation performed the transition and owns cleanup.
	case errors.Is(err, errAlreadyEnded):
		// Lost the race. Still wait out the meter so no tick can fire
		// after we return.
		c.stopMeter(callID)
		return rec, nil
	case errors.Is(err, ErrNotFound):
		return c.endedFromArchive(ctx, callID, partyID)
	default:
		return Record{}, err
	}

	c.stopMeter(callID)
	c.finalize(ctx, rec)
	c.log.Info("call ended",
		"call_id", rec.ID, "reason", rec.EndReason, "billed_ticks", rec.BilledTicks)
	return rec, nil
}

// endedFromArchive serves an end request for a call already torn down
// and evicted from the registry. The archived entry carries everything
// needed to answer idempotently.
func (c *Coordinator) endedFromArchive(ctx context.Context, callID, partyID string) (Record, error) {
	e, ok, err := c.archive.FindByCall(ctx, callID)
	if err != nil {
		return Record{}, fmt.Errorf("lookup ended call: %w", err)
	}
	if !ok {
		return Record{}, fmt.Errorf("%w: call %s", ErrNotFound, callID)
	}
	if partyID != "" && e.CallerID != partyID && e.ReceiverID != partyID {
		return Record{}, fmt.Errorf("%w: %s is not a participant of call %s", ErrNotAuthorized, partyID, callID)
	}
	return recordFromEntry(e), nil
}

// PendingCallFor returns the receiver's single Pending call, if any.
// This is the query behind the receiver's poll loop. A stale Pending
// call is expired on sight and reported as absent.
func (c *Coordinator) PendingCallFor(ctx context.Context, receiverID string) (Record, bool) {
	rec, ok := c.reg.FindPendingFor(receiverID)
	if !ok {
		return Record{}, false
	}
	if c.expireIfStale(ctx, rec) {
		return Record{}, false
	}
	return rec, true
}

// GetCall returns the live record, falling back to the archive for
// ended calls. Only participants may look a call up.
func (c *Coordinator) GetCall(ctx context.Context, callID, partyID string) (Record, error) {
	if rec, ok := c.reg.Find(callID); ok {
		if partyID != "" && rec.CallerID != partyID && rec.ReceiverID != partyID {
			return Record{}, fmt.Errorf("%w: %s is not a participant of call %s", ErrNotAuthorized, partyID, callID)
		}
		return rec, nil
	}
	return c.endedFromArchive(ctx, callID, partyID)
}

// ActiveCallFor returns the party's Active call from either side.
func (c *Coordinator) ActiveCallFor(receiverOrCallerID string) (Record, bool) {
	return c.reg.FindActiveFor(receiverOrCallerID)
}

// Run drives the stale-pending sweep until ctx is canceled. The ticker
// cadence is deliberately coarse; inline eviction on the create and
// poll paths handles the common case first.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Coordinator) sweep(ctx context.Context) {
	for _, rec := range c.reg.Live() {
		if rec.Status == StatusPending {
			c.expireIfStale(ctx, rec)
		}
	}
}

// Close force-ends every live call and waits for all meters to stop.
// Intended for shutdown; ended calls are archived as canceled.
func (c *Coordinator) Close(ctx context.Context) {
	for _, rec := range c.reg.Live() {
		if _, err := c.end(ctx, rec.ID, "", EndReasonCanceled); err != nil &&
			!errors.Is(err, ErrNotFound) {
			c.log.Error("shutdown end failed", "call_id", rec.ID, "error", err)
		}
	}
}

// expireIfStale ends a Pending record whose TTL has elapsed and reports
// whether it did (or whether another path already ended it). The
// mutator re-checks status and age under the record lock, so a
// concurrent accept always beats the expiry.
func (c *Coordinator) expireIfStale(ctx context.Context, rec Record) bool {
	now := c.clock().UTC()
	if rec.Status != StatusPending || now.Sub(rec.CreatedAt) <= c.pendingTTL {
		return false
	}

	expired, err := c.reg.Update(rec.ID, func(r *Record) error {
		if r.Status != StatusPending {
			return errAlreadyEnded
		}
		if now.Sub(r.CreatedAt) <= c.pendingTTL {
			return errAlreadyEnded
		}
		r.Status = StatusEnded
		r.EndReason = EndReasonTimeout
		r.EndedAt = now
		return nil
	})
	if err != nil {
		// Raced with an accept, end, or remove; the record is no
		// longer ours to expire.
		if errors.Is(err, ErrNotFound) {
			return true
		}
		if errors.Is(err, errAlreadyEnded) {
			return expired.Status == StatusEnded
		}
		c.log.Error("expire pending failed", "call_id", rec.ID, "error", err)
		return false
	}

	c.finalize(ctx, expired)
	c.log.Info("pending call expired", "call_id", expired.ID, "age", now.Sub(expired.CreatedAt))
	return true
}

// startMeter launches the billing meter for a freshly Active call. It
// is called from inside the accept mutator, while the record lock is
// still held; the meter's first tick fires a full period later, so the
// tick closure never contends with the registration itself.
//
// The tick closure runs the whole debit inside the registry's atomic
// update: the liveness check, the caller debit and the receiver
// earnings entry commit together under the record lock, so a tick can
// never land on a call that an end transition has already won.
func (c *Coordinator) startMeter(callID string) {
	tick := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := c.reg.Update(callID, func(r *Record) error {
			if r.Status != StatusActive {
				return fmt.Errorf("%w: call no longer active", ErrInvalidTransition)
			}
			if _, err := c.balances.Debit(ctx, r.CallerID, c.tariff.CreditsPerTick); err != nil {
				if errors.Is(err, billing.ErrInsufficientFunds) {
					return billing.ErrOutOfCredits
				}
				return fmt.Errorf("debit caller: %w", err)
			}
			if err := c.earnings.Append(ctx, billing.EarningsEntry{
				ReceiverID:  r.ReceiverID,
				CallID:      r.ID,
				AmountMinor: c.tariff.EarningsPerTickMinor,
				Currency:    c.tariff.Currency,
				CreatedAt:   c.clock().UTC(),
			}); err != nil {
				// The caller was already debited; losing the earnings
				// entry is the recoverable side of this failure.
				c.log.Error("earnings append failed", "call_id", r.ID, "error", err)
			}
			r.BilledTicks++
			return nil
		})
		if err != nil && !errors.Is(err, billing.ErrOutOfCredits) &&
			!errors.Is(err, ErrInvalidTransition) && !errors.Is(err, ErrNotFound) {
			c.log.Error("billing tick failed", "call_id", callID, "error", err)
		}
		return err
	}

	onExhausted := func() {
		c.log.Info("ending call, caller out of credits", "call_id", callID)
		if _, err := c.end(context.Background(), callID, "", EndReasonOutOfCredits); err != nil &&
			!errors.Is(err, ErrNotFound) {
			c.log.Error("forced end failed", "call_id", callID, "error", err)
		}
	}

	m := billing.StartMeter(c.tariff.TickDuration, tick, onExhausted)
	c.mu.Lock()
	c.meters[callID] = m
	c.mu.Unlock()
}

// stopMeter blocks until the call's meter goroutine has exited. The
// entry stays in the map until the stop completes so that concurrent
// enders all wait on the same meter.
func (c *Coordinator) stopMeter(callID string) {
	c.mu.Lock()
	m := c.meters[callID]
	c.mu.Unlock()
	if m == nil {
		return
	}
	m.Stop()

	c.mu.Lock()
	if c.meters[callID] == m {
		delete(c.meters, callID)
	}
	c.mu.Unlock()
}

// finalize archives a terminal record, evicts it from the registry and
// nudges the media transport to tear the room down. Archive failures
// are logged, not returned: the lifecycle result already happened.
func (c *Coordinator) finalize(ctx context.Context, rec Record) {
	if err := c.archive.Record(ctx, entryFromRecord(rec, c.tariff)); err != nil {
		c.log.Error("archive call failed", "call_id", rec.ID, "error", err)
	}
	if err := c.reg.Remove(rec.ID); err != nil && !errors.Is(err, ErrNotFound) {
		c.log.Error("remove ended call failed", "call_id", rec.ID, "error", err)
	}
	if c.media != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = c.media.Leave(ctx, rec.ChannelName, rec.CallerID)
			_ = c.media.Leave(ctx, rec.ChannelName, rec.ReceiverID)
		}()
	}
}

func entryFromRecord(rec Record, tariff billing.Tariff) history.Entry {
	return history.Entry{
		CallID:           rec.ID,
		CallerID:         rec.CallerID,
		ReceiverID:       rec.ReceiverID,
		ChannelName:      rec.ChannelName,
		Reason:           string(rec.EndReason),
		CreatedAt:        rec.CreatedAt,
		ConnectedAt:      rec.ConnectedAt,
		EndedAt:          rec.EndedAt,
		ConnectedSeconds: int(rec.ConnectedDuration(rec.EndedAt) / time.Second),
		BilledTicks:      rec.BilledTicks,
		CreditsSpent:     int64(rec.BilledTicks) * tariff.CreditsPerTick,
		EarningsMinor:    int64(rec.BilledTicks) * tariff.EarningsPerTickMinor,
	}
}

func recordFromEntry(e history.Entry) Record {
	return Record{
		ID:          e.CallID,
		CallerID:    e.CallerID,
		ReceiverID:  e.ReceiverID,
		ChannelName: e.ChannelName,
		Status:      StatusEnded,
		EndReason:   EndReason(e.Reason),
		CreatedAt:   e.CreatedAt,
		ConnectedAt: e.ConnectedAt,
		EndedAt:     e.EndedAt,
		BilledTicks: e.BilledTicks,
	}
}
