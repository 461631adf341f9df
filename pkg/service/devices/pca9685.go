// Copyright 2026 SmartBin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package devices

import (
	"context"
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/service/bridge"
)

type pca9685 struct {
	mutex     sync.Mutex
	bus       bridge.I2CBus
	address   byte
	frequency float64
}

const (
	pca9685MODE1Reg      = 0x00
	pca9685MODE2Reg      = 0x01
	pca9685LEDBaseReg    = 0x06
	pca9685PRESCALEReg   = 0xFE
	pca9685OnLowRegOfs   = 0
	pca9685OnHighRegOfs  = 1
	pca9685OffLowRegOfs  = 2
	pca9685OffHighRegOfs = 3
	pca9685RegIncrement  = 4
	pca9685FullOffBit    = 0b00010000

	pca9685OscillatorFreq = 25000000.0
	pca9685Resolution     = 4096
)

// NewPCA9685 creates a PWM instance for a pca9685 device at the given
// I2C address, running at the given frequency (Hz).
func NewPCA9685(bus bridge.I2CBus, address byte, frequency float64) (PWM, error) {
	if frequency < 24 || frequency > 1526 {
		return nil, errors.Wrapf(model.ValidationError, "pca9685 frequency %vHz out of range [24..1526]", frequency)
	}
	return &pca9685{
		bus:       bus,
		address:   address,
		frequency: frequency,
	}, nil
}

// prescale returns the prescale register value for the given frequency.
func pca9685Prescale(frequency float64) uint8 {
	freq := frequency * 0.9 // Correct for overshoot in the frequency setting.
	prescaleval := pca9685OscillatorFreq
	prescaleval /= pca9685Resolution
	prescaleval /= freq
	prescaleval -= 1.0
	return uint8(math.Floor(prescaleval + 0.5))
}

// Configure is called once to put the device in the desired state.
func (d *pca9685) Configure(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	prescale := pca9685Prescale(d.frequency)
	if err := d.bus.Execute(ctx, d.address, func(ctx context.Context, dev bridge.I2CDevice) error {
		// Set MODE1: SLEEP=1, ALLCALL=1
		mode1 := uint8(0x11)
		if err := dev.WriteByteReg(pca9685MODE1Reg, mode1); err != nil {
			return err
		}
		if err := dev.WriteByteReg(pca9685PRESCALEReg, prescale); err != nil {
			return err
		}
		// Set MODE2: OUTDRV=1 (totem pole)
		if err := dev.WriteByteReg(pca9685MODE2Reg, 0x04); err != nil {
			return err
		}
		// Set MODE1: SLEEP=0, ALLCALL=1
		mode1 = uint8(0x01)
		if err := dev.WriteByteReg(pca9685MODE1Reg, mode1); err != nil {
			return err
		}
		return nil
	}); err != nil {
		return errors.Wrap(err, "configure pca9685 failed")
	}
	return nil
}

// Close brings the device back to a safe state.
func (d *pca9685) Close(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	// Set MODE1: SLEEP=1, ALLCALL=1
	mode1 := uint8(0x11)
	if err := d.bus.Execute(ctx, d.address, func(ctx context.Context, dev bridge.I2CDevice) error {
		return dev.WriteByteReg(pca9685MODE1Reg, mode1)
	}); err != nil {
		return errors.Wrap(err, "close pca9685 failed")
	}
	return nil
}

// PWMPinCount returns the number of pwm outputs of the device
func (d *pca9685) PWMPinCount() int {
	return 16
}

// MaxPWMValue returns the maximum valid value for onValue or offValue.
func (d *pca9685) MaxPWMValue() uint32 {
	return pca9685Resolution - 1
}

// Frequency returns the PWM frequency in Hz.
func (d *pca9685) Frequency() float64 {
	return d.frequency
}

// SetPWM the output at given index (1...) to the given value
func (d *pca9685) SetPWM(ctx context.Context, output int, onValue, offValue uint32, enabled bool) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	regBase, err := d.regBase(output)
	if err != nil {
		return err
	}
	return d.bus.Execute(ctx, d.address, func(ctx context.Context, dev bridge.I2CDevice) error {
		onLow := uint8(onValue & 0xFF)
		if err := dev.WriteByteReg(uint8(regBase+pca9685OnLowRegOfs), onLow); err != nil {
			return err
		}
		onHigh := uint8((onValue >> 8) & 0x0F)
		if err := dev.WriteByteReg(uint8(regBase+pca9685OnHighRegOfs), onHigh); err != nil {
			return err
		}
		offLow := uint8(offValue & 0xFF)
		if err := dev.WriteByteReg(uint8(regBase+pca9685OffLowRegOfs), offLow); err != nil {
			return err
		}
		offHigh := uint8((offValue >> 8) & 0x0F)
		if !enabled {
			offHigh = offHigh | pca9685FullOffBit
		}
		if err := dev.WriteByteReg(uint8(regBase+pca9685OffHighRegOfs), offHigh); err != nil {
			return err
		}
		return nil
	})
}

// GetPWM the output at given index (1...)
func (d *pca9685) GetPWM(ctx context.Context, output int) (uint32, uint32, bool, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	regBase, err := d.regBase(output)
	if err != nil {
		return 0, 0, false, err
	}
	var on, off uint32
	var enabled bool
	if err := d.bus.Execute(ctx, d.address, func(ctx context.Context, dev bridge.I2CDevice) error {
		regs := make([]uint8, 4)
		for i := range regs {
			v, err := dev.ReadByteReg(uint8(regBase + i))
			if err != nil {
				return err
			}
			regs[i] = v
		}
		on = uint32(regs[pca9685OnLowRegOfs]) | (uint32(regs[pca9685OnHighRegOfs]&0x0F) << 8)
		off = uint32(regs[pca9685OffLowRegOfs]) | (uint32(regs[pca9685OffHighRegOfs]&0x0F) << 8)
		enabled = regs[pca9685OffHighRegOfs]&pca9685FullOffBit == 0
		return nil
	}); err != nil {
		return 0, 0, false, err
	}
	return on, off, enabled, nil
}

// regBase returns the first register for the given output.
func (d *pca9685) regBase(output int) (int, error) {
	if output < 1 || output > 16 {
		return 0, errors.Wrapf(model.ValidationError, "output must be in 1..16 range, got %d", output)
	}
	return pca9685LEDBaseReg + ((output - 1) * pca9685RegIncrement), nil
}
