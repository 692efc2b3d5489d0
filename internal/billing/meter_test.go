package billing

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestMeter_TicksPerFullPeriod(t *testing.T) {
	var ticks atomic.Int64
	m := StartMeter(50*time.Millisecond, func() error {
		ticks.Add(1)
		return nil
	}, nil)

	time.Sleep(125 * time.Millisecond)
	m.Stop()

	if got := ticks.Load(); got != 2 {
		t.Fatalf("expected 2 ticks, got %d", got)
	}
}

func TestMeter_NoImmediateTick(t *testing.T) {
	var ticks atomic.Int64
	m := StartMeter(time.Hour, func() error {
		ticks.Add(1)
		return nil
	}, nil)

	time.Sleep(20 * time.Millisecond)
	m.Stop()

	if got := ticks.Load(); got != 0 {
		t.Fatalf("expected no tick before the first period, got %d", got)
	}
}

func TestMeter_StopBlocksUntilExit(t *testing.T) {
	var ticks atomic.Int64
	m := StartMeter(10*time.Millisecond, func() error {
		ticks.Add(1)
		return nil
	}, nil)

	time.Sleep(35 * time.Millisecond)
	m.Stop()
	if !m.Stopped() {
		t.Fatalf("expected meter stopped")
	}

	after := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	if got := ticks.Load(); got != after {
		t.Fatalf("tick fired after Stop returned: %d -> %d", after, got)
	}

	// Stop is idempotent
	m.Stop()
}

func TestMeter_ExhaustionRunsCallback(t *testing.T) {
	exhausted := make(chan struct{})
	m := StartMeter(10*time.Millisecond, func() error {
		return ErrOutOfCredits
	}, func() {
		close(exhausted)
	})

	select {
	case <-exhausted:
	case <-time.After(time.Second):
		t.Fatalf("expected exhaustion callback")
	}
	if !m.Stopped() {
		t.Fatalf("expected meter stopped before callback")
	}

	// the callback may call Stop again without deadlocking
	m.Stop()
}

func TestMeter_OtherTickErrorStopsSilently(t *testing.T) {
	calledExhausted := make(chan struct{}, 1)
	m := StartMeter(10*time.Millisecond, func() error {
		return errors.New("call gone")
	}, func() {
		calledExhausted <- struct{}{}
	})

	time.Sleep(50 * time.Millisecond)
	if !m.Stopped() {
		t.Fatalf("expected meter stopped after tick error")
	}
	select {
	case <-calledExhausted:
		t.Fatalf("exhaustion callback must not run for other errors")
	default:
	}
	m.Stop()
}
