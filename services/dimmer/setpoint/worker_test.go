package setpoint

import (
	"context"
	"sync"
	"testing"
	"time"

	"dimmercode-go/errcode"
)

// fakeAdaptor scripts the split-phase conversion cycle.
type fakeAdaptor struct {
	mu        sync.Mutex
	raw       uint16
	notReady  int // Collect returns NotReady this many times first
	triggers  int
	collects  int
	trigErr   error
	settle    time.Duration
}

func (a *fakeAdaptor) Trigger() (time.Duration, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.triggers++
	if a.trigErr != nil {
		return 0, a.trigErr
	}
	d := a.settle
	if d <= 0 {
		d = time.Millisecond
	}
	return d, nil
}

func (a *fakeAdaptor) Collect() (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.collects++
	if a.notReady > 0 {
		a.notReady--
		return 0, errcode.NotReady
	}
	return a.raw, nil
}

func (a *fakeAdaptor) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.triggers, a.collects
}

func waitResult(t *testing.T, w *Worker) Result {
	t.Helper()
	select {
	case r := <-w.Results():
		return r
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for sample result")
		return Result{}
	}
}

func TestConversionCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ad := &fakeAdaptor{raw: 614}
	w := New(ad, WorkerConfig{})
	w.Start(ctx)

	w.StartConversion()
	r := waitResult(t, w)
	if r.Err != nil {
		t.Fatalf("unexpected error: %v", r.Err)
	}
	if r.Raw != 614 {
		t.Fatalf("raw = %d, want 614", r.Raw)
	}
}

func TestNotReadyRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ad := &fakeAdaptor{raw: 512, notReady: 2}
	w := New(ad, WorkerConfig{RetryBackoff: time.Millisecond})
	w.Start(ctx)

	w.StartConversion()
	r := waitResult(t, w)
	if r.Err != nil || r.Raw != 512 {
		t.Fatalf("result = %+v, want raw 512", r)
	}
	if _, collects := ad.counts(); collects != 3 {
		t.Fatalf("collects = %d, want 3", collects)
	}
}

func TestRequestsCoalesce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ad := &fakeAdaptor{raw: 100, settle: 10 * time.Millisecond}
	w := New(ad, WorkerConfig{})
	w.Start(ctx)

	w.StartConversion()
	w.StartConversion()
	w.StartConversion()

	waitResult(t, w)
	time.Sleep(20 * time.Millisecond)
	if triggers, _ := ad.counts(); triggers != 1 {
		t.Fatalf("triggers = %d, want 1 (requests must coalesce)", triggers)
	}
}

func TestTriggerErrorSurfaces(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ad := &fakeAdaptor{trigErr: errcode.Timeout}
	w := New(ad, WorkerConfig{})
	w.Start(ctx)

	w.StartConversion()
	r := waitResult(t, w)
	if errcode.Of(r.Err) != errcode.Timeout {
		t.Fatalf("err = %v, want timeout", r.Err)
	}
}
