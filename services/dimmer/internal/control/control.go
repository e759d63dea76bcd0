// Package control implements the half-cycle state machine that coordinates
// the zero-cross input, the setpoint sampler and the delay timer.
package control

import (
	"dimmercode-go/services/dimmer/timing"
	"dimmercode-go/types"
)

// State of the controller within one half-cycle.
type State uint8

const (
	// AwaitingFire: the timer is counting down the computed delay.
	AwaitingFire State = iota
	// Firing: the trigger pulse is on the output; the next expiry ends it.
	Firing
)

func (s State) String() string {
	switch s {
	case AwaitingFire:
		return "awaiting_fire"
	case Firing:
		return "firing"
	default:
		return "unknown"
	}
}

// Controller owns the latched sample and the firing state. It is not safe
// for concurrent use: the service loop serializes all three event sources
// onto it, which stands in for the non-reentrant ISR model of the hardware.
type Controller struct {
	plan    timing.Plan
	drive   types.GPIOPin
	timer   types.DelayTimer
	sampler types.Sampler

	state   State
	latched uint16
}

// New wires a controller to its drive line, delay timer and sampler.
// The drive is assumed already configured and de-asserted.
func New(plan timing.Plan, drive types.GPIOPin, timer types.DelayTimer, sampler types.Sampler) *Controller {
	return &Controller{
		plan:    plan,
		drive:   drive,
		timer:   timer,
		sampler: sampler,
	}
}

func (c *Controller) State() State    { return c.state }
func (c *Controller) Latched() uint16 { return c.latched }

// OnZeroCross handles one mains zero-cross pulse: it drops the drive
// unconditionally, programs the timer from the latched setpoint, resets the
// state machine and starts the next conversion. The returned setting and
// error describe what was programmed, for telemetry.
func (c *Controller) OnZeroCross() (timing.Setting, error) {
	// Unconditional: the triac must never be left conducting across a
	// half-cycle boundary, even if a Firing de-assert was missed.
	c.drive.Set(false)

	set, err := c.plan.SettingForRaw(c.latched)
	if err != nil || !set.Enabled {
		// 0% drive, or a delay the counter cannot hold: skip this half-cycle.
		c.timer.Disarm()
	} else {
		c.timer.Arm(set.Divisor, set.Compare)
	}

	c.state = AwaitingFire
	c.sampler.StartConversion()
	return set, err
}

// OnSample latches a completed conversion for the next zero-cross event.
// It touches nothing else; a one-cycle sampling latency is expected.
func (c *Controller) OnSample(raw uint16) {
	c.latched = raw
}

// OnTimerExpiry advances the two-state machine: the first expiry of a
// half-cycle starts the trigger pulse and re-arms the timer for the pulse
// width, the second ends the pulse and leaves the timer idle until the next
// zero-cross reprograms it.
func (c *Controller) OnTimerExpiry() {
	switch c.state {
	case AwaitingFire:
		c.drive.Set(true)
		c.state = Firing
		c.timer.Arm(c.plan.PulseDivisor, c.plan.PulseCompare)
	case Firing:
		c.drive.Set(false)
	}
}

// Shutdown forces the output off and the timer idle.
func (c *Controller) Shutdown() {
	c.timer.Disarm()
	c.drive.Set(false)
}
