// Package zcross turns the rising edge of the mains zero-cross pin into a
// stream of events. The IRQ handler does nothing but a non-blocking channel
// send; no debouncing is applied, a stray edge only costs one harmless
// de-assert-and-rearm cycle downstream.
package zcross

import (
	"context"
	"sync/atomic"

	"dimmercode-go/types"
	"dimmercode-go/x/timex"
)

// Event is one detected zero crossing.
type Event struct {
	TS int64 // ms
}

type Worker struct {
	// Written by the ISR; MUST NOT block the ISR:
	isrQ chan struct{}
	// Consumed by the dimmer service:
	outQ    chan Event
	stopped chan struct{}

	pin   types.IRQPin
	drops uint32 // ISR drop counter
}

func New(isrBuf, outBuf int) *Worker {
	if isrBuf <= 0 {
		isrBuf = 8
	}
	if outBuf <= 0 {
		outBuf = 1
	}
	return &Worker{
		isrQ:    make(chan struct{}, isrBuf),
		outQ:    make(chan Event, outBuf),
		stopped: make(chan struct{}),
	}
}

// Attach configures pin as an input and hooks the rising-edge IRQ.
func (w *Worker) Attach(pin types.IRQPin) error {
	if err := pin.ConfigureInput(types.PullNone); err != nil {
		return err
	}
	// ISR handler: non-blocking channel send only.
	handler := func() {
		select {
		case w.isrQ <- struct{}{}:
		default:
			atomic.AddUint32(&w.drops, 1) // protect ISR path
		}
	}
	if err := pin.SetIRQ(types.EdgeRising, handler); err != nil {
		return err
	}
	w.pin = pin
	return nil
}

// Detach removes the IRQ hook.
func (w *Worker) Detach() {
	if w.pin != nil {
		_ = w.pin.ClearIRQ()
		w.pin = nil
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.stopped)
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.isrQ:
				w.emit(Event{TS: timex.NowMs()})
			}
		}
	}()
}

func (w *Worker) Events() <-chan Event { return w.outQ }

// ISRDrops reports edges lost to a full ISR queue.
func (w *Worker) ISRDrops() uint32 { return atomic.LoadUint32(&w.drops) }

func (w *Worker) emit(ev Event) {
	select {
	case w.outQ <- ev:
	default:
		// Latest crossing supersedes an unconsumed one.
		select {
		case <-w.outQ:
		default:
		}
		select {
		case w.outQ <- ev:
		default:
		}
	}
}
