// Package trigger provides a host implementation of types.DelayTimer on
// time.Timer. Divisor and compare count are converted back to wall-clock
// durations with the same base clock the compare values were derived from.
package trigger

import (
	"sync"
	"time"

	"dimmercode-go/types"
	"dimmercode-go/x/timex"
)

// Expiry is one countdown completion.
type Expiry struct {
	TS int64 // ms
}

// Timer implements types.DelayTimer. Each Arm bumps a generation counter
// and drains any expiry already queued, so reprogramming never delivers an
// expiry from an earlier programme, whether it is still counting down or
// has fired into the queue unconsumed.
type Timer struct {
	clockHz uint32
	outQ    chan Expiry

	mu      sync.Mutex
	gen     uint32
	pending *time.Timer
}

func New(clockHz uint32, outBuf int) *Timer {
	if clockHz == 0 {
		clockHz = 1
	}
	if outBuf <= 0 {
		outBuf = 1
	}
	return &Timer{
		clockHz: clockHz,
		outQ:    make(chan Expiry, outBuf),
	}
}

// Events delivers expiries. A full queue loses its oldest entry first.
func (t *Timer) Events() <-chan Expiry { return t.outQ }

func (t *Timer) Arm(div types.Divisor, compare uint8) {
	d := t.duration(div, compare)
	t.mu.Lock()
	t.gen++
	g := t.gen
	if t.pending != nil {
		t.pending.Stop()
	}
	t.drainLocked()
	t.pending = time.AfterFunc(d, func() { t.fire(g) })
	t.mu.Unlock()
}

func (t *Timer) Disarm() {
	t.mu.Lock()
	t.gen++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.drainLocked()
	t.mu.Unlock()
}

// drainLocked discards expiries queued by the previous programme. Caller
// holds mu.
func (t *Timer) drainLocked() {
	for {
		select {
		case <-t.outQ:
		default:
			return
		}
	}
}

// fire checks the generation and enqueues under mu, so a callback racing
// Arm or Disarm cannot slip in behind the drain.
func (t *Timer) fire(g uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if g != t.gen {
		return
	}
	ev := Expiry{TS: timex.NowMs()}
	select {
	case t.outQ <- ev:
	default:
		select {
		case <-t.outQ:
		default:
		}
		select {
		case t.outQ <- ev:
		default:
		}
	}
}

// duration is the countdown the hardware would run: compare+1 ticks of the
// divided clock.
func (t *Timer) duration(div types.Divisor, compare uint8) time.Duration {
	ticks := uint64(compare) + 1
	return time.Duration(ticks * uint64(div) * uint64(time.Second) / uint64(t.clockHz))
}
