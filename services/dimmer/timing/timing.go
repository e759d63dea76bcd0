// Package timing holds the pure conversions between setpoint readings,
// firing delays and timer register values. Everything is derived at Plan
// construction from the base clock and mains frequency, so the formulas
// carry no target-specific magic numbers.
package timing

import (
	"dimmercode-go/errcode"
	"dimmercode-go/types"
	"dimmercode-go/x/mathx"
	"dimmercode-go/x/timex"
)

// Config holds the hardware parameters the conversions derive from.
type Config struct {
	// BaseClockHz is the timer input clock before the divisor.
	BaseClockHz uint32
	// MainsHz is the mains frequency; the half period is derived from it.
	MainsHz uint32
	// PulseMicros is the width of the trigger pulse sent to the optotriac.
	PulseMicros uint32
	// CompMicros is the lead of the zero-cross detect pulse over the actual
	// crossing; every firing delay is offset by it.
	CompMicros uint32
	// Raw setpoint calibration. Readings below RawFloor force 0%, above
	// RawCeil force 100%; in between the scale runs RawMin..RawMax. The
	// floor/ceil clamps absorb sensor noise at the extremes of the pot.
	RawFloor uint16
	RawCeil  uint16
	RawMin   uint16
	RawMax   uint16
}

// Default matches the reference hardware: 4.8 MHz timer clock, 50 Hz mains,
// 250 µs trigger pulse, 1 ms detector lead, 10-bit sampler with a ~1 V floor.
func Default() Config {
	return Config{
		BaseClockHz: 4_800_000,
		MainsHz:     50,
		PulseMicros: 250,
		CompMicros:  1000,
		RawFloor:    220,
		RawCeil:     941,
		RawMin:      205,
		RawMax:      1023,
	}
}

// divisors in ascending order; selection always prefers the smallest that
// fits, for best timing resolution.
var divisors = [...]types.Divisor{types.Div8, types.Div64, types.Div256}

// Setting is one half-cycle's timer programme.
type Setting struct {
	Percent     uint8
	Enabled     bool
	Divisor     types.Divisor
	Compare     uint8
	DelayMicros uint32
}

// Plan carries the values derived once from a Config.
type Plan struct {
	cfg Config

	// HalfPeriodMicros is the duration of half a mains cycle.
	HalfPeriodMicros uint32
	// PulseDivisor/PulseCompare program the fixed trigger pulse width.
	PulseDivisor types.Divisor
	PulseCompare uint8
	// CompDivisor/CompCompare program the minimal delay for 100% drive
	// (fire as soon as the detector lead allows).
	CompDivisor types.Divisor
	CompCompare uint8
	// MinMicros is the shortest delay the finest divisor can represent;
	// the general formula clamps to it when the subtraction bottoms out.
	MinMicros uint32
}

// NewPlan validates cfg and precomputes the derived constants.
func NewPlan(cfg Config) (Plan, error) {
	if cfg.BaseClockHz == 0 || cfg.MainsHz == 0 {
		return Plan{}, &errcode.E{C: errcode.InvalidParams, Op: "timing.NewPlan", Msg: "clock and mains frequency must be nonzero"}
	}
	if cfg.RawMin >= cfg.RawMax || cfg.RawFloor < cfg.RawMin || cfg.RawCeil > cfg.RawMax || cfg.RawFloor >= cfg.RawCeil {
		return Plan{}, &errcode.E{C: errcode.InvalidParams, Op: "timing.NewPlan", Msg: "raw calibration out of order"}
	}

	p := Plan{
		cfg:              cfg,
		HalfPeriodMicros: timex.HalfPeriodMicros(cfg.MainsHz),
		PulseDivisor:     types.Div8,
		CompDivisor:      types.Div64,
		MinMicros:        mathx.CeilDiv(uint32(types.Div8)*1_000_000, cfg.BaseClockHz),
	}
	if cfg.CompMicros >= p.HalfPeriodMicros {
		return Plan{}, &errcode.E{C: errcode.InvalidParams, Op: "timing.NewPlan", Msg: "compensation exceeds half period"}
	}

	var err error
	if p.PulseCompare, err = p.CompareCount(p.PulseDivisor, cfg.PulseMicros); err != nil {
		return Plan{}, &errcode.E{C: errcode.Of(err), Op: "timing.NewPlan", Msg: "pulse width unrepresentable", Err: err}
	}
	if p.CompCompare, err = p.CompareCount(p.CompDivisor, cfg.CompMicros); err != nil {
		return Plan{}, &errcode.E{C: errcode.Of(err), Op: "timing.NewPlan", Msg: "compensation delay unrepresentable", Err: err}
	}
	// The longest general-case delay is just under the half period; it must
	// fit the coarsest divisor or no divisor choice can keep the counter in
	// range at low percentages.
	if p.HalfPeriodMicros > p.MaxMicros(types.Div256) {
		return Plan{}, &errcode.E{C: errcode.OutOfRange, Op: "timing.NewPlan", Msg: "half period exceeds coarsest divisor range"}
	}
	return p, nil
}

func (p Plan) Config() Config { return p.cfg }

// MaxMicros returns the longest duration the 8-bit counter can hold at div.
func (p Plan) MaxMicros(div types.Divisor) uint32 {
	return uint32(uint64(256) * uint64(div) * 1_000_000 / uint64(p.cfg.BaseClockHz))
}

// SelectDivisor picks the smallest divisor whose range holds micros.
// Durations beyond even the coarsest divisor fall through to it; NewPlan
// guarantees that cannot happen for delays within the half period.
func (p Plan) SelectDivisor(micros uint32) types.Divisor {
	for _, d := range divisors {
		if micros <= p.MaxMicros(d) {
			return d
		}
	}
	return types.Div256
}

// CompareCount converts a desired duration to the counter compare value:
// floor(clock·duration/divisor) − 1. The counter is 8-bit; rather than
// truncating silently this reports OutOfRange, and TooShort when the
// duration is below one tick. Callers pre-select the divisor with
// SelectDivisor so neither occurs on the firing path.
func (p Plan) CompareCount(div types.Divisor, micros uint32) (uint8, error) {
	if div == 0 {
		return 0, errcode.InvalidParams
	}
	ticks := uint64(p.cfg.BaseClockHz) * uint64(micros) / (uint64(div) * 1_000_000)
	if ticks == 0 {
		return 0, errcode.TooShort
	}
	if ticks > 256 {
		return 0, errcode.OutOfRange
	}
	return uint8(ticks - 1), nil
}

// PercentFromRaw maps a raw sampler reading to a drive percentage.
// Monotonic non-decreasing over the full 0..RawMax domain.
func (p Plan) PercentFromRaw(raw uint16) uint8 {
	if raw > p.cfg.RawCeil {
		return 100
	}
	if raw < p.cfg.RawFloor {
		return 0
	}
	span := uint32(p.cfg.RawMax - p.cfg.RawMin)
	return uint8(uint32(raw-p.cfg.RawMin) * 100 / span)
}

// FiringDelay returns the zero-cross-to-fire delay for a percentage on the
// general (non-special-cased) path. Higher percentage means earlier firing.
// When percent plus the detector lead would push past the half period the
// delay clamps to MinMicros instead of wrapping.
func (p Plan) FiringDelay(percent uint8) uint32 {
	step := p.HalfPeriodMicros / 100
	sum := uint32(percent)*step + p.cfg.CompMicros
	if sum >= p.HalfPeriodMicros {
		return p.MinMicros
	}
	return mathx.Max(p.HalfPeriodMicros-sum, p.MinMicros)
}

// SettingForPercent resolves a percentage into a timer programme.
// 100% takes the fixed fast-fire path, 0% leaves the timer disarmed; the
// rest go through FiringDelay, SelectDivisor and CompareCount.
func (p Plan) SettingForPercent(percent uint8) (Setting, error) {
	switch {
	case percent >= 100:
		return Setting{
			Percent:     100,
			Enabled:     true,
			Divisor:     p.CompDivisor,
			Compare:     p.CompCompare,
			DelayMicros: p.cfg.CompMicros,
		}, nil
	case percent == 0:
		return Setting{Percent: 0}, nil
	default:
		delay := p.FiringDelay(percent)
		div := p.SelectDivisor(delay)
		cmp, err := p.CompareCount(div, delay)
		if err != nil {
			return Setting{Percent: percent, DelayMicros: delay}, err
		}
		return Setting{
			Percent:     percent,
			Enabled:     true,
			Divisor:     div,
			Compare:     cmp,
			DelayMicros: delay,
		}, nil
	}
}

// SettingForRaw is the full conversion used by the zero-cross handler.
func (p Plan) SettingForRaw(raw uint16) (Setting, error) {
	return p.SettingForPercent(p.PercentFromRaw(raw))
}
