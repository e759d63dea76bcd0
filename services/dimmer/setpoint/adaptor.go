package setpoint

import (
	"time"

	"dimmercode-go/drivers/ads1115"
	"dimmercode-go/errcode"
)

// RegisterPair is a converter whose 10-bit result is exposed as two 8-bit
// register halves, the way an on-chip ADC presents it.
type RegisterPair interface {
	StartConversion()
	Ready() bool
	ReadLow() uint8
	ReadHigh() uint8
}

// RegPairAdaptor adapts a RegisterPair to the split-phase Adaptor.
type RegPairAdaptor struct {
	rp     RegisterPair
	settle time.Duration
}

func NewRegPair(rp RegisterPair, settle time.Duration) *RegPairAdaptor {
	if settle <= 0 {
		settle = 110 * time.Microsecond // one 13-cycle conversion at 125 kHz
	}
	return &RegPairAdaptor{rp: rp, settle: settle}
}

func (a *RegPairAdaptor) Trigger() (time.Duration, error) {
	a.rp.StartConversion()
	return a.settle, nil
}

func (a *RegPairAdaptor) Collect() (uint16, error) {
	if !a.rp.Ready() {
		return 0, errcode.NotReady
	}
	// The low half must be read first: that read latches the high half, so
	// the two halves always belong to the same conversion.
	lo := a.rp.ReadLow()
	hi := a.rp.ReadHigh()
	return (uint16(hi)<<8 | uint16(lo)) & 0x03FF, nil
}

// I2CAdaptor sources the setpoint from an external ADS1115, scaled down to
// the same 10-bit range the rest of the pipeline expects.
//
// Full scale here is the ADS1115's ±4.096 V PGA range, not the 5 V supply
// the default calibration assumes: raw 1023 means 4.096 V, and anything at
// or above that rail saturates. A pot fed from 5 V therefore needs its own
// calibration (floor/ceil/min rescaled by 4096/5000, so ceil ≈ 771) or a
// divider bringing the wiper under 4.096 V; with the defaults the pipeline
// reaches 100 % around 4.1 V instead of 4.6 V.
type I2CAdaptor struct {
	dev     *ads1115.Device
	channel uint8
}

func NewI2C(dev *ads1115.Device, channel uint8) *I2CAdaptor {
	return &I2CAdaptor{dev: dev, channel: channel}
}

func (a *I2CAdaptor) Trigger() (time.Duration, error) {
	if err := a.dev.Trigger(a.channel); err != nil {
		return 0, err
	}
	return a.dev.ConversionTime(), nil
}

func (a *I2CAdaptor) Collect() (uint16, error) {
	ready, err := a.dev.Ready()
	if err != nil {
		return 0, err
	}
	if !ready {
		return 0, errcode.NotReady
	}
	v, err := a.dev.Collect()
	if err != nil {
		return 0, err
	}
	if v < 0 {
		v = 0 // single-ended; negatives are noise around ground
	}
	return uint16(v) >> 5, nil // 15-bit positive range -> 10-bit
}
