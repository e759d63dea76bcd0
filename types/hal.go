package types

// ---- GPIO abstractions ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

type GPIOPin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Number() int
}

// Edge selection for IRQ.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// IRQPin extends GPIOPin with interrupts.
type IRQPin interface {
	GPIOPin
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// ---- Delay timer abstraction ----

// Divisor is a clock divisor applied to the timer's base clock.
// Only the three hardware-supported values are valid.
type Divisor uint16

const (
	Div8   Divisor = 8
	Div64  Divisor = 64
	Div256 Divisor = 256
)

// DelayTimer is a single-channel countdown device with an 8-bit compare
// register. One expiry is signalled when the count is reached.
type DelayTimer interface {
	// Arm stops the timer, discards any pending expiry, programs the divisor
	// and compare count, and restarts. Exactly one expiry is delivered per
	// Arm; reprogramming before expiry must never deliver the stale one.
	Arm(div Divisor, compare uint8)
	// Disarm stops the timer and discards any pending expiry.
	Disarm()
}

// Sampler starts one asynchronous analog conversion. The result arrives
// out-of-band on the sampler's result stream; a start issued while a
// conversion is in flight is coalesced.
type Sampler interface {
	StartConversion()
}
