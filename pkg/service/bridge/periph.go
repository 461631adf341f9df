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

package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/smartbin/BinWorker/model"
)

type periphBridge struct {
	ledPair
	log   zerolog.Logger
	mutex sync.Mutex
	bus   *periphI2CBus
	pins  []gpio.PinIO
}

// NewPeriphBridge implements the bridge using periph.io drivers.
// It supports pull resistors & hardware PWM.
func NewPeriphBridge(log zerolog.Logger, opts Options) (API, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "host.Init failed")
	}
	b := &periphBridge{
		log: log.With().Str("bridge", "periph").Logger(),
	}
	greenLed, err := b.Output(opts.StatusLEDPin, false, false)
	if err != nil {
		return nil, errors.Wrap(err, "Output[greenLed] failed")
	}
	redLed, err := b.Output(opts.ErrorLEDPin, false, false)
	if err != nil {
		return nil, errors.Wrap(err, "Output[redLed] failed")
	}
	b.ledPair = newLedPair(greenLed, redLed)
	return b, nil
}

func (p *periphBridge) lookup(pin model.Pin) (gpio.PinIO, error) {
	if err := pin.Validate(); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("GPIO%d", int(pin))
	gp := gpioreg.ByName(name)
	if gp == nil {
		return nil, errors.Errorf("pin %s not found", name)
	}
	p.mutex.Lock()
	p.pins = append(p.pins, gp)
	p.mutex.Unlock()
	return gp, nil
}

// Input initializes a GPIO input pin with the given pin number.
func (p *periphBridge) Input(pin model.Pin, activeLow bool, pull Pull) (InputPin, error) {
	gp, err := p.lookup(pin)
	if err != nil {
		return nil, err
	}
	gpull := gpio.Float
	switch pull {
	case PullUp:
		gpull = gpio.PullUp
	case PullDown:
		gpull = gpio.PullDown
	}
	if err := gp.In(gpull, gpio.NoEdge); err != nil {
		return nil, errors.Wrapf(err, "In(%s) failed", gp.Name())
	}
	return &periphPin{pin: gp, activeLow: activeLow}, nil
}

// Output initializes a GPIO output pin with the given pin number
// and initial logical value.
func (p *periphBridge) Output(pin model.Pin, activeLow bool, initialValue bool) (OutputPin, error) {
	gp, err := p.lookup(pin)
	if err != nil {
		return nil, err
	}
	out := &periphPin{pin: gp, activeLow: activeLow}
	if err := out.Write(initialValue); err != nil {
		return nil, err
	}
	return out, nil
}

// PWM initializes a hardware PWM output on the given BCM pin.
func (p *periphBridge) PWM(pin model.Pin) (PWMPin, error) {
	gp, err := p.lookup(pin)
	if err != nil {
		return nil, err
	}
	return &periphPWM{pin: gp}, nil
}

// Open the I2C bus
func (p *periphBridge) I2CBus() (I2CBus, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.bus == nil {
		bc, err := i2creg.Open("")
		if err != nil {
			return nil, errors.Wrap(err, "i2creg.Open failed")
		}
		p.bus = &periphI2CBus{bus: bc}
	}
	return p.bus, nil
}

// Close turns off the LEDs, halts all pins & closes the I2C bus.
func (p *periphBridge) Close() error {
	var ae aerr.AggregateError
	if err := p.closeLeds(); err != nil {
		ae.Add(err)
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	for _, gp := range p.pins {
		if err := gp.Halt(); err != nil {
			ae.Add(errors.Wrapf(err, "Halt(%s) failed", gp.Name()))
		}
	}
	p.pins = nil
	if p.bus != nil {
		if err := p.bus.Close(); err != nil {
			ae.Add(errors.Wrap(err, "Close[i2c] failed"))
		}
		p.bus = nil
	}
	return ae.AsError()
}

type periphPin struct {
	pin       gpio.PinIO
	activeLow bool
}

func (p *periphPin) Read() (bool, error) {
	return (p.pin.Read() == gpio.High) != p.activeLow, nil
}

func (p *periphPin) Write(value bool) error {
	level := gpio.Level(value != p.activeLow)
	if err := p.pin.Out(level); err != nil {
		return errors.Wrapf(err, "Out(%s) failed", p.pin.Name())
	}
	return nil
}

type periphPWM struct {
	pin gpio.PinIO
}

// SetPulse outputs pulses of the given width with the given period.
func (p *periphPWM) SetPulse(width, period time.Duration) error {
	if period <= 0 || width < 0 || width > period {
		return errors.Errorf("invalid pulse %s in period %s", width, period)
	}
	duty := gpio.Duty(int64(gpio.DutyMax) * int64(width) / int64(period))
	freq := physic.Frequency(int64(time.Second)/int64(period)) * physic.Hertz
	if err := p.pin.PWM(duty, freq); err != nil {
		return errors.Wrapf(err, "PWM(%s) failed", p.pin.Name())
	}
	return nil
}

// Halt stops generating pulses.
func (p *periphPWM) Halt() error {
	return p.pin.Halt()
}

// periphI2CBus serves the I2CBus API on a periph.io bus.
type periphI2CBus struct {
	mutex sync.Mutex
	bus   i2c.BusCloser
}

// Execute an option on the bus.
func (b *periphI2CBus) Execute(ctx context.Context, address uint8, op func(context.Context, I2CDevice) error) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	i2cExecuteCounters.WithLabelValues(addressLabel(address)).Inc()
	dev := &periphI2CDevice{dev: &i2c.Dev{Bus: b.bus, Addr: uint16(address)}}
	if err := op(ctx, dev); err != nil {
		i2cExecuteErrorCounters.WithLabelValues(addressLabel(address)).Inc()
		return errors.Wrapf(err, "execute operation on i2c device 0x%02x failed", address)
	}
	return nil
}

// Close the bus
func (b *periphI2CBus) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.bus.Close()
}

type periphI2CDevice struct {
	dev *i2c.Dev
}

// Read a byte from given register
func (d *periphI2CDevice) ReadByteReg(reg uint8) (uint8, error) {
	r := make([]byte, 1)
	if err := d.dev.Tx([]byte{reg}, r); err != nil {
		return 0, errors.Wrapf(err, "readByteData[0x%0x](0x%0x) failed", d.dev.Addr, reg)
	}
	return r[0], nil
}

// Write a byte to given register
func (d *periphI2CDevice) WriteByteReg(reg uint8, val uint8) error {
	if _, err := d.dev.Write([]byte{reg, val}); err != nil {
		return errors.Wrapf(err, "writeByteData[0x%0x](0x%0x, 0x%0x) failed", d.dev.Addr, reg, val)
	}
	return nil
}
