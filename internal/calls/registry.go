package calls

import (
	"fmt"
	"sync"
)

// Registry is the authoritative in-memory store of call records and the
// single source of truth for "does party X have a live call".
//
// Concurrency model: the index maps are guarded by one RWMutex, while
// every record carries its own mutex, so read-modify-write cycles on
// unrelated calls never serialize against each other. The index lock is
// never held while waiting on a record lock, which keeps the two levels
// deadlock-free.
//
// State kept here is process-lifetime only; durability of ended calls is
// the history archive's concern.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]*entry

	// Live indices: party id -> call id for non-Ended records.
	// At most one live record per receiver and per caller.
	byReceiver map[string]string
	byCaller   map[string]string
}

type entry struct {
	mu  sync.Mutex
	rec Record
}

func (e *entry) snapshot() Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec
}

func NewRegistry() *Registry {
	return &Registry{
		byID:       make(map[string]*entry),
		byReceiver: make(map[string]string),
		byCaller:   make(map[string]string),
	}
}

// Insert stores a new Pending record. It fails with ErrConflict when
// either party already holds a live record, without mutating state.
func (g *Registry) Insert(rec Record) error {
	if rec.ID == "" || rec.CallerID == "" || rec.ReceiverID == "" {
		return ErrInvalidArgument
	}
	if rec.Status != StatusPending {
		return fmt.Errorf("%w: new records must be pending, got %s", ErrInvalidTransition, rec.Status)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.byID[rec.ID]; ok {
		return fmt.Errorf("%w: call %s already exists", ErrConflict, rec.ID)
	}
	if _, ok := g.byReceiver[rec.ReceiverID]; ok {
		return fmt.Errorf("%w: receiver %s has a live call", ErrConflict, rec.ReceiverID)
	}
	if _, ok := g.byCaller[rec.CallerID]; ok {
		return fmt.Errorf("%w: caller %s has a live call", ErrConflict, rec.CallerID)
	}

	g.byID[rec.ID] = &entry{rec: rec}
	g.byReceiver[rec.ReceiverID] = rec.ID
	g.byCaller[rec.CallerID] = rec.ID
	return nil
}

// Find returns the record by id. Absence is an explicit empty result,
// never an error.
func (g *Registry) Find(id string) (Record, bool) {
	g.mu.RLock()
	e := g.byID[id]
	g.mu.RUnlock()
	if e == nil {
		return Record{}, false
	}
	return e.snapshot(), true
}

// FindPendingFor returns the single Pending record addressed to the
// receiver, if any. This is the query behind the polling boundary.
func (g *Registry) FindPendingFor(receiverID string) (Record, bool) {
	g.mu.RLock()
	id, ok := g.byReceiver[receiverID]
	var e *entry
	if ok {
		e = g.byID[id]
	}
	g.mu.RUnlock()
	if e == nil {
		return Record{}, false
	}
	rec := e.snapshot()
	if rec.Status != StatusPending {
		return Record{}, false
	}
	return rec, true
}

// FindActiveFor returns the Active record the party participates in,
// on either side of the call.
func (g *Registry) FindActiveFor(partyID string) (Record, bool) {
	rec, ok := g.FindLiveFor(partyID)
	if !ok || rec.Status != StatusActive {
		return Record{}, false
	}
	return rec, true
}

// FindLiveFor returns the party's live (Pending or Active) record,
// on either side of the call.
func (g *Registry) FindLiveFor(partyID string) (Record, bool) {
	if rec, ok := g.LiveForCaller(partyID); ok {
		return rec, true
	}
	return g.LiveForReceiver(partyID)
}

// LiveForCaller returns the live record the party initiated.
func (g *Registry) LiveForCaller(callerID string) (Record, bool) {
	g.mu.RLock()
	id, ok := g.byCaller[callerID]
	var e *entry
	if ok {
		e = g.byID[id]
	}
	g.mu.RUnlock()
	return liveSnapshot(e)
}

// LiveForReceiver returns the live record addressed to the receiver.
func (g *Registry) LiveForReceiver(receiverID string) (Record, bool) {
	g.mu.RLock()
	id, ok := g.byReceiver[receiverID]
	var e *entry
	if ok {
		e = g.byID[id]
	}
	g.mu.RUnlock()
	return liveSnapshot(e)
}

func liveSnapshot(e *entry) (Record, bool) {
	if e == nil {
		return Record{}, false
	}
	rec := e.snapshot()
	if !rec.Status.Live() {
		return Record{}, false
	}
	return rec, true
}

// Update applies mutate to the record as one atomic read-modify-write
// under the record's lock; no other operation observes a partial write.
// The mutator may return an error to abort without mutating. Update
// returns the record as it stands after the operation (the unchanged
// snapshot when the mutator aborted), so idempotent callers can inspect
// terminal state.
//
// Fails with ErrNotFound for unknown ids and ErrInvalidTransition when
// the mutation would move status backwards, alter identity fields, or
// touch an Ended record.
func (g *Registry) Update(id string, mutate func(*Record) error) (Record, error) {
	g.mu.RLock()
	e := g.byID[id]
	g.mu.RUnlock()
	if e == nil {
		return Record{}, fmt.Errorf("%w: call %s", ErrNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.rec
	next := prev
	if err := mutate(&next); err != nil {
		return prev, err
	}

	if next.ID != prev.ID ||
		next.CallerID != prev.CallerID ||
		next.ReceiverID != prev.ReceiverID ||
		next.ChannelName != prev.ChannelName ||
		!next.CreatedAt.Equal(prev.CreatedAt) {
		return prev, fmt.Errorf("%w: identity fields are immutable", ErrInvalidTransition)
	}
	if prev.Status == StatusEnded {
		return prev, fmt.Errorf("%w: record already ended", ErrInvalidTransition)
	}
	if next.Status.rank() < prev.Status.rank() || next.Status.rank() < 0 {
		return prev, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev.Status, next.Status)
	}

	e.rec = next

	// Dropping out of the live set releases both party indices.
	if prev.Status.Live() && !next.Status.Live() {
		g.mu.Lock()
		if g.byReceiver[next.ReceiverID] == id {
			delete(g.byReceiver, next.ReceiverID)
		}
		if g.byCaller[next.CallerID] == id {
			delete(g.byCaller, next.CallerID)
		}
		g.mu.Unlock()
	}
	return next, nil
}

// Remove evicts a terminal record. Removing a non-Ended record is an
// error (ErrInvalidTransition): live records leave the registry only
// through an Ended transition.
func (g *Registry) Remove(id string) error {
	g.mu.RLock()
	e := g.byID[id]
	g.mu.RUnlock()
	if e == nil {
		return fmt.Errorf("%w: call %s", ErrNotFound, id)
	}

	rec := e.snapshot()
	if rec.Status != StatusEnded {
		return fmt.Errorf("%w: only ended records can be removed", ErrInvalidTransition)
	}

	g.mu.Lock()
	delete(g.byID, id)
	if g.byReceiver[rec.ReceiverID] == id {
		delete(g.byReceiver, rec.ReceiverID)
	}
	if g.byCaller[rec.CallerID] == id {
		delete(g.byCaller, rec.CallerID)
	}
	g.mu.Unlock()
	return nil
}

// Live returns a snapshot of all live records, used by the sweep.
func (g *Registry) Live() []Record {
	g.mu.RLock()
	ents := make([]*entry, 0, len(g.byID))
	for _, e := range g.byID {
		ents = append(ents, e)
	}
	g.mu.RUnlock()

	out := make([]Record, 0, len(ents))
	for _, e := range ents {
		rec := e.snapshot()
		if rec.Status.Live() {
			out = append(out, rec)
		}
	}
	return out
}
