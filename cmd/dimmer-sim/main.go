// cmd/dimmer-sim/main.go
//
// Host simulation of the phase-cut dimmer: a ticker stands in for the mains
// zero-cross detector, a scripted potentiometer feeds the setpoint sampler,
// and the real timer/controller stack fires a simulated drive pin.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"dimmercode-go/bus"
	"dimmercode-go/drivers/ads1115"
	"dimmercode-go/services/dimmer"
	"dimmercode-go/services/dimmer/config"
	"dimmercode-go/services/dimmer/setpoint"
	"dimmercode-go/services/dimmer/timing"
	"dimmercode-go/services/dimmer/trigger"
	"dimmercode-go/services/dimmer/zcross"
	"dimmercode-go/types"
	"dimmercode-go/x/timex"
)

var (
	cfgPath = flag.String("config", "dimmer.yaml", "configuration file (defaults used if absent)")
	rawSet  = flag.Int("raw", 614, "raw setpoint 0..1023; negative sweeps the full range")
	cycles  = flag.Int("cycles", 100, "half-cycles to simulate; 0 runs until interrupted")
)

// ---------- Simulated pins ----------

// simPin is a drive output that reports its transitions.
type simPin struct {
	mu     sync.Mutex
	name   string
	n      int
	level  bool
	t0     time.Time
}

func (p *simPin) ConfigureInput(_ types.Pull) error  { return nil }
func (p *simPin) ConfigureOutput(initial bool) error { p.level = initial; return nil }
func (p *simPin) Get() bool                          { p.mu.Lock(); defer p.mu.Unlock(); return p.level }
func (p *simPin) Number() int                        { return p.n }
func (p *simPin) Set(b bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b == p.level {
		return
	}
	p.level = b
	state := "off"
	if b {
		state = "ON"
	}
	fmt.Printf("%10.3fms  %s -> %s\n", float64(time.Since(p.t0).Microseconds())/1000, p.name, state)
}

// simIRQPin delivers synthetic zero-cross edges.
type simIRQPin struct {
	n       int
	handler func()
}

func (p *simIRQPin) ConfigureInput(_ types.Pull) error { return nil }
func (p *simIRQPin) ConfigureOutput(bool) error        { return nil }
func (p *simIRQPin) Set(bool)                          {}
func (p *simIRQPin) Get() bool                         { return false }
func (p *simIRQPin) Number() int                       { return p.n }
func (p *simIRQPin) SetIRQ(_ types.Edge, h func()) error {
	p.handler = h
	return nil
}
func (p *simIRQPin) ClearIRQ() error { p.handler = nil; return nil }
func (p *simIRQPin) fire() {
	if p.handler != nil {
		p.handler()
	}
}

// simPot is a register-pair sampler fed by a fixed or sweeping raw value.
type simPot struct {
	mu    sync.Mutex
	raw   uint16
	latch uint16
	ready bool
	sweep bool
}

func (p *simPot) StartConversion() {
	p.mu.Lock()
	p.latch = p.raw & 0x03FF
	p.ready = true
	p.mu.Unlock()
}
func (p *simPot) Ready() bool { p.mu.Lock(); defer p.mu.Unlock(); return p.ready }
func (p *simPot) ReadLow() uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return uint8(p.latch)
}
func (p *simPot) ReadHigh() uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = false
	return uint8(p.latch >> 8)
}
func (p *simPot) step() {
	if !p.sweep {
		return
	}
	p.mu.Lock()
	p.raw = (p.raw + 16) & 0x03FF
	p.mu.Unlock()
}

// simADS emulates an ADS1115 on the I2C bus: a config-register write latches
// the conversion, config reads report idle, and conversion reads return the
// latched value left-aligned the way the I2C adaptor's 10-bit scaling
// expects.
type simADS struct {
	mu    sync.Mutex
	raw   uint16
	latch uint16
	sweep bool
}

func (d *simADS) Tx(_ uint16, w, r []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case len(w) == 3 && w[0] == 0x01: // config write: start conversion
		d.latch = d.raw & 0x03FF
	case len(w) == 1 && w[0] == 0x01 && len(r) == 2: // config read: OS set
		r[0], r[1] = 0xC5, 0x83
	case len(w) == 1 && w[0] == 0x00 && len(r) == 2: // conversion read
		v := d.latch << 5
		r[0], r[1] = byte(v>>8), byte(v)
	default:
		return fmt.Errorf("unexpected i2c transfer: w=%d r=%d", len(w), len(r))
	}
	return nil
}
func (d *simADS) step() {
	if !d.sweep {
		return
	}
	d.mu.Lock()
	d.raw = (d.raw + 16) & 0x03FF
	d.mu.Unlock()
}

// buildAdaptor selects the setpoint source per the sampler configuration.
// Both sources feed from the same scripted raw value; step advances a sweep.
func buildAdaptor(cfg *config.Config, raw uint16, sweep bool) (setpoint.Adaptor, func(), error) {
	switch cfg.Sampler.Source {
	case "regpair":
		pot := &simPot{raw: raw, sweep: sweep}
		return setpoint.NewRegPair(pot, 100*time.Microsecond), pot.step, nil
	case "ads1115":
		adc := &simADS{raw: raw, sweep: sweep}
		dev := ads1115.New(adc)
		if cfg.Sampler.I2CAddr != 0 {
			dev.Address = cfg.Sampler.I2CAddr
		}
		return setpoint.NewI2C(&dev, cfg.Sampler.Channel), adc.step, nil
	default:
		return nil, nil, fmt.Errorf("unsupported sampler source %q", cfg.Sampler.Source)
	}
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	plan, err := timing.NewPlan(cfg.Timings())
	if err != nil {
		fmt.Fprintln(os.Stderr, "timing:", err)
		os.Exit(1)
	}

	b := bus.NewBus(8)

	drive := &simPin{name: "optotriac", n: cfg.Pins.Drive, t0: time.Now()}
	if err := drive.ConfigureOutput(false); err != nil {
		fmt.Fprintln(os.Stderr, "drive:", err)
		os.Exit(1)
	}

	zcPin := &simIRQPin{n: cfg.Pins.ZeroCross}
	zc := zcross.New(8, 1)
	if err := zc.Attach(zcPin); err != nil {
		fmt.Fprintln(os.Stderr, "zcross:", err)
		os.Exit(1)
	}

	ad, step, err := buildAdaptor(cfg, uint16(max(*rawSet, 0)), *rawSet < 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sampler:", err)
		os.Exit(1)
	}
	sp := setpoint.New(ad, setpoint.WorkerConfig{})
	tm := trigger.New(cfg.Timing.BaseClockHz, 1)

	svc := dimmer.New(b.NewConnection("dimmer"), plan, drive, zc, sp, tm)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go svc.Run(ctx)

	// Report each half-cycle's timer programme.
	mon := b.NewConnection("monitor")
	fireSub := mon.Subscribe(bus.T("dimmer", "firing"))
	go func() {
		for m := range fireSub.Channel() {
			r := m.Payload.(types.FiringReport)
			if !r.Enabled {
				fmt.Printf("zero-cross: %3d%%  timer disarmed %s\n", r.Percent, r.Error)
				continue
			}
			fmt.Printf("zero-cross: %3d%%  delay %5dµs  divisor %3d  compare %3d\n",
				r.Percent, r.DelayMicros, r.Divisor, r.Compare)
		}
	}()

	halfPeriod := time.Duration(timex.PeriodFromHz(2 * cfg.Timing.MainsHz))
	fmt.Printf("simulating %d Hz mains (half period %s), raw setpoint %d\n",
		cfg.Timing.MainsHz, halfPeriod, *rawSet)

	tick := time.NewTicker(halfPeriod)
	defer tick.Stop()

	n := 0
	for done := false; !done; {
		select {
		case <-ctx.Done():
			done = true
		case <-tick.C:
			zcPin.fire()
			step()
			n++
			if *cycles > 0 && n >= *cycles {
				done = true
			}
		}
	}

	cancel()
	time.Sleep(halfPeriod) // let the service publish its stop state
	fmt.Printf("done: %d half-cycles, %d ISR drops\n", n, zc.ISRDrops())
}
