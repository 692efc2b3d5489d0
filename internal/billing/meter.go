package billing

import (
	"errors"
	"sync"
	"time"
)

// Meter runs the billing clock for exactly one active call. It owns no
// call-state transitions: the Tick callback performs the atomic
// debit/credit (inside the registry's per-record critical section), and
// OnExhausted hands termination back to the coordinator.
//
// Cancellation contract: Stop blocks until the metering goroutine has
// fully exited, so no tick can fire after Stop returns. A tick in
// flight when Stop is called completes first; its liveness check is the
// callback's responsibility.
type Meter struct {
	period time.Duration

	// Tick is invoked once per elapsed full period. Returning
	// ErrOutOfCredits stops the meter and triggers OnExhausted; any
	// other error stops the meter silently (the call is gone).
	tick func() error

	// onExhausted runs in its own goroutine strictly after the meter
	// has stopped, so it may safely call back into Stop.
	onExhausted func()

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// StartMeter launches the metering goroutine. The first tick fires one
// full period after the start, never immediately: billing counts
// completed intervals of connected time.
func StartMeter(period time.Duration, tick func() error, onExhausted func()) *Meter {
	m := &Meter{
		period:      period,
		tick:        tick,
		onExhausted: onExhausted,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Meter) run() {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	exhausted := false
	defer func() {
		close(m.done)
		if exhausted && m.onExhausted != nil {
			go m.onExhausted()
		}
	}()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if err := m.tick(); err != nil {
				exhausted = errors.Is(err, ErrOutOfCredits)
				return
			}
		}
	}
}

// Stop halts the meter and waits for the goroutine to exit. Safe to
// call multiple times and from multiple goroutines; every call returns
// only once the meter is provably stopped.
func (m *Meter) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

// Stopped reports whether the metering goroutine has exited.
func (m *Meter) Stopped() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}
