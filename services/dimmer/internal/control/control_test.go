package control

import (
	"testing"

	"dimmercode-go/services/dimmer/timing"
	"dimmercode-go/types"
)

// fakePin records every level write.
type fakePin struct {
	level bool
	sets  []bool
}

func (p *fakePin) ConfigureInput(_ types.Pull) error  { return nil }
func (p *fakePin) ConfigureOutput(initial bool) error { p.level = initial; return nil }
func (p *fakePin) Set(b bool)                         { p.level = b; p.sets = append(p.sets, b) }
func (p *fakePin) Get() bool                          { return p.level }
func (p *fakePin) Number() int                        { return 0 }

type armCall struct {
	div types.Divisor
	cmp uint8
}

// fakeTimer records Arm/Disarm calls.
type fakeTimer struct {
	arms    []armCall
	disarms int
}

func (t *fakeTimer) Arm(div types.Divisor, compare uint8) {
	t.arms = append(t.arms, armCall{div, compare})
}
func (t *fakeTimer) Disarm() { t.disarms++ }

// fakeSampler counts conversion starts.
type fakeSampler struct {
	starts int
}

func (s *fakeSampler) StartConversion() { s.starts++ }

func newFixture(t *testing.T) (*Controller, *fakePin, *fakeTimer, *fakeSampler) {
	t.Helper()
	plan, err := timing.NewPlan(timing.Default())
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}
	pin := &fakePin{}
	tm := &fakeTimer{}
	sp := &fakeSampler{}
	return New(plan, pin, tm, sp), pin, tm, sp
}

func TestZeroCrossProgramsTimer(t *testing.T) {
	c, pin, tm, sp := newFixture(t)
	c.OnSample(614) // 50%

	set, err := c.OnZeroCross()
	if err != nil {
		t.Fatalf("OnZeroCross: %v", err)
	}
	if pin.level {
		t.Fatal("drive must be de-asserted at the zero crossing")
	}
	if set.Percent != 50 || !set.Enabled {
		t.Fatalf("unexpected setting: %+v", set)
	}
	if len(tm.arms) != 1 || tm.arms[0] != (armCall{types.Div256, 74}) {
		t.Fatalf("unexpected timer programme: %+v", tm.arms)
	}
	if c.State() != AwaitingFire {
		t.Fatalf("state = %v, want AwaitingFire", c.State())
	}
	if sp.starts != 1 {
		t.Fatalf("sampler starts = %d, want 1", sp.starts)
	}
}

func TestZeroCrossFullOn(t *testing.T) {
	c, _, tm, _ := newFixture(t)
	c.OnSample(1000) // above ceil: 100%

	set, err := c.OnZeroCross()
	if err != nil {
		t.Fatalf("OnZeroCross: %v", err)
	}
	if set.Percent != 100 {
		t.Fatalf("percent = %d, want 100", set.Percent)
	}
	// Fast-fire path: fixed divisor 64, compensation compare count.
	if len(tm.arms) != 1 || tm.arms[0] != (armCall{types.Div64, 74}) {
		t.Fatalf("unexpected timer programme: %+v", tm.arms)
	}
}

func TestZeroCrossFullOff(t *testing.T) {
	c, pin, tm, sp := newFixture(t)
	c.OnSample(100) // below floor: 0%

	set, err := c.OnZeroCross()
	if err != nil {
		t.Fatalf("OnZeroCross: %v", err)
	}
	if set.Enabled {
		t.Fatal("setting must be disabled at 0%")
	}
	if len(tm.arms) != 0 {
		t.Fatalf("timer must not be armed, got %+v", tm.arms)
	}
	if tm.disarms != 1 {
		t.Fatalf("disarms = %d, want 1", tm.disarms)
	}
	if pin.level {
		t.Fatal("drive must stay de-asserted")
	}
	if sp.starts != 1 {
		t.Fatal("a new conversion must still be started")
	}
}

func TestExpiryStateMachine(t *testing.T) {
	c, pin, tm, _ := newFixture(t)
	c.OnSample(614)
	if _, err := c.OnZeroCross(); err != nil {
		t.Fatalf("OnZeroCross: %v", err)
	}

	// First expiry: fire and re-arm for the pulse width.
	c.OnTimerExpiry()
	if !pin.level {
		t.Fatal("drive must be asserted on the first expiry")
	}
	if c.State() != Firing {
		t.Fatalf("state = %v, want Firing", c.State())
	}
	if got := tm.arms[len(tm.arms)-1]; got != (armCall{types.Div8, 149}) {
		t.Fatalf("pulse programme = %+v, want {8 149}", got)
	}

	// Second expiry: end the pulse, stay in Firing, no re-arm.
	before := len(tm.arms)
	c.OnTimerExpiry()
	if pin.level {
		t.Fatal("drive must be de-asserted on the second expiry")
	}
	if c.State() != Firing {
		t.Fatalf("state = %v, want Firing", c.State())
	}
	if len(tm.arms) != before {
		t.Fatal("timer must not be re-armed after the pulse")
	}
}

func TestZeroCrossResetsMidPulse(t *testing.T) {
	c, pin, _, _ := newFixture(t)
	c.OnSample(614)
	if _, err := c.OnZeroCross(); err != nil {
		t.Fatalf("OnZeroCross: %v", err)
	}
	c.OnTimerExpiry() // drive on, Firing

	// A zero crossing at any point drops the drive and resets the machine,
	// even if the pulse-ending expiry was missed.
	if _, err := c.OnZeroCross(); err != nil {
		t.Fatalf("OnZeroCross: %v", err)
	}
	if pin.level {
		t.Fatal("drive must be de-asserted by the zero crossing")
	}
	if c.State() != AwaitingFire {
		t.Fatalf("state = %v, want AwaitingFire", c.State())
	}
}

func TestLatchedSampleDefaultsToOff(t *testing.T) {
	c, _, tm, _ := newFixture(t)

	// No sample latched yet: raw 0 maps to 0%, timer stays disarmed.
	set, err := c.OnZeroCross()
	if err != nil {
		t.Fatalf("OnZeroCross: %v", err)
	}
	if set.Enabled || len(tm.arms) != 0 {
		t.Fatal("first half-cycle without a sample must not fire")
	}
}

func TestShutdown(t *testing.T) {
	c, pin, tm, _ := newFixture(t)
	c.OnSample(1000)
	if _, err := c.OnZeroCross(); err != nil {
		t.Fatalf("OnZeroCross: %v", err)
	}
	c.OnTimerExpiry() // drive on

	c.Shutdown()
	if pin.level {
		t.Fatal("drive must be off after shutdown")
	}
	if tm.disarms == 0 {
		t.Fatal("timer must be disarmed on shutdown")
	}
}
