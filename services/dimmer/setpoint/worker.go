// Package setpoint drives the analog setpoint sampler. Conversions are
// split-phase: Trigger starts one, Collect fetches the result once the
// conversion time has passed. The worker owns the scheduling so callers only
// ever ask for "a new sample, eventually".
package setpoint

import (
	"context"
	"time"

	"dimmercode-go/errcode"
	"dimmercode-go/x/timex"
)

// Adaptor abstracts one single-shot sampler.
type Adaptor interface {
	// Trigger starts a conversion and returns how long until Collect may be
	// attempted. Must not sleep.
	Trigger() (collectAfter time.Duration, err error)
	// Collect returns the completed raw reading, or errcode.NotReady if the
	// conversion is still in flight.
	Collect() (uint16, error)
}

// Result is one completed (or failed) conversion.
type Result struct {
	Raw uint16
	Err error
	TS  int64 // ms
}

// WorkerConfig centralises retry timings.
type WorkerConfig struct {
	RetryBackoff time.Duration
	MaxRetries   int
}

type Worker struct {
	cfg  WorkerConfig
	ad   Adaptor
	reqQ chan struct{}
	outQ chan Result
}

func New(ad Adaptor, cfg WorkerConfig) *Worker {
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 6
	}
	return &Worker{
		cfg:  cfg,
		ad:   ad,
		reqQ: make(chan struct{}, 1),
		outQ: make(chan Result, 1),
	}
}

// StartConversion implements types.Sampler. Non-blocking; a request while a
// conversion is pending is coalesced into it.
func (w *Worker) StartConversion() {
	select {
	case w.reqQ <- struct{}{}:
	default:
	}
}

// Results delivers completed conversions, latest-wins.
func (w *Worker) Results() <-chan Result { return w.outQ }

func (w *Worker) Start(ctx context.Context) {
	go func() {
		timer := time.NewTimer(time.Hour)
		if !timer.Stop() {
			<-timer.C
		}
		pending := false
		retries := 0
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-w.reqQ:
				if pending {
					continue // in flight; the running conversion serves it
				}
				after, err := w.ad.Trigger()
				if err != nil {
					w.emit(Result{Err: err, TS: timex.NowMs()})
					continue
				}
				pending = true
				retries = 0
				resetTimer(timer, after)
			case <-timer.C:
				if !pending {
					continue
				}
				raw, err := w.ad.Collect()
				switch {
				case err == nil:
					pending = false
					w.emit(Result{Raw: raw, TS: timex.NowMs()})
				case err == errcode.NotReady && retries < w.cfg.MaxRetries:
					retries++
					resetTimer(timer, w.cfg.RetryBackoff)
				default:
					pending = false
					w.emit(Result{Err: err, TS: timex.NowMs()})
				}
			}
		}
	}()
}

func (w *Worker) emit(r Result) {
	select {
	case w.outQ <- r:
	default:
		select {
		case <-w.outQ:
		default:
		}
		select {
		case w.outQ <- r:
		default:
		}
	}
}

// resetTimer safely stops, drains, and resets a timer.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	if d < 0 {
		d = 0
	}
	t.Reset(d)
}
