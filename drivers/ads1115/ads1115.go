// Package ads1115 provides a driver for the ADS1115 16-bit I2C ADC in
// single-shot mode. It exposes a two-phase API:
//
//	d.Trigger(ch)            // start a conversion (fast)
//	v, err := d.Collect()    // fetch when ready; check d.Ready() first
//
// For convenience, d.Read(ch) performs trigger + bounded polling until ready.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when
// both w and r are provided, without releasing the bus.
package ads1115

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// Default I2C address (ADDR pin to GND).
const Address = 0x48

// Registers.
const (
	regConversion = 0x00
	regConfig     = 0x01
)

// Config register fields (per datasheet).
const (
	cfgOS         = 0x8000 // write: start single conversion; read: 1 = idle
	cfgMuxSingle0 = 0x4000 // AINx vs GND; channel in bits 13:12
	cfgPGA4V      = 0x0200 // ±4.096 V full scale
	cfgModeSingle = 0x0100
	cfgDR128SPS   = 0x0080
	cfgCompOff    = 0x0003
)

// Errors returned by the driver.
var (
	ErrTimeout  = errors.New("ads1115: timeout")
	ErrProtocol = errors.New("ads1115: protocol error")
	ErrChannel  = errors.New("ads1115: invalid channel")
)

// Device wraps an I2C connection to an ADS1115.
type Device struct {
	bus     drivers.I2C
	Address uint16

	buf [3]byte // reuse buffer to avoid allocations
}

// New creates a new ADS1115 connection. The I2C bus must already be
// configured. This function only creates the Device object; it does not
// touch the device.
func New(bus drivers.I2C) Device {
	return Device{
		bus:     bus,
		Address: Address,
	}
}

// ConversionTime is the nominal single-shot conversion time at 128 SPS.
func (d *Device) ConversionTime() time.Duration { return 8 * time.Millisecond }

// Trigger starts one single-shot conversion on channel (0..3, vs GND).
func (d *Device) Trigger(channel uint8) error {
	if channel > 3 {
		return ErrChannel
	}
	cfg := uint16(cfgOS | cfgMuxSingle0 | cfgPGA4V | cfgModeSingle | cfgDR128SPS | cfgCompOff)
	cfg |= uint16(channel) << 12
	d.buf[0] = regConfig
	d.buf[1] = byte(cfg >> 8)
	d.buf[2] = byte(cfg)
	return d.bus.Tx(d.Address, d.buf[:3], nil)
}

// Ready reports whether the last triggered conversion has completed.
func (d *Device) Ready() (bool, error) {
	d.buf[0] = regConfig
	if err := d.bus.Tx(d.Address, d.buf[:1], d.buf[1:3]); err != nil {
		return false, err
	}
	st := uint16(d.buf[1])<<8 | uint16(d.buf[2])
	return st&cfgOS != 0, nil
}

// Collect reads the conversion register.
func (d *Device) Collect() (int16, error) {
	d.buf[0] = regConversion
	if err := d.bus.Tx(d.Address, d.buf[:1], d.buf[1:3]); err != nil {
		return 0, err
	}
	return int16(uint16(d.buf[1])<<8 | uint16(d.buf[2])), nil
}

// Read performs trigger + bounded polling until the result is ready.
func (d *Device) Read(channel uint8) (int16, error) {
	if err := d.Trigger(channel); err != nil {
		return 0, err
	}
	deadline := time.Now().Add(4 * d.ConversionTime())
	for {
		time.Sleep(d.ConversionTime() / 4)
		ready, err := d.Ready()
		if err != nil {
			return 0, err
		}
		if ready {
			return d.Collect()
		}
		if time.Now().After(deadline) {
			return 0, ErrTimeout
		}
	}
}
