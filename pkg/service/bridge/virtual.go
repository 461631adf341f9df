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
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/service/util"
)

const (
	// Time between the falling edge of a trigger pulse and the
	// rising edge of a simulated echo.
	virtualEchoLatency = 200 * time.Microsecond
	// Speed of sound divided by 2, in cm/s
	virtualHalfSpeedOfSound = 17150.0
)

// VirtualBridge implements the bridge without hardware.
// Inputs are set by the owner, outputs are recorded and ultrasonic
// sensors can be simulated.
type VirtualBridge struct {
	ledPair
	mutex   sync.Mutex
	clock   util.Clock
	opts    Options
	inputs  map[model.Pin]*virtualInput
	outputs map[model.Pin]*virtualOutput
	echoes  map[model.Pin]*virtualEcho
	pwms    map[model.Pin]*virtualPWM
	i2c     *virtualI2CBus
}

// echoMode selects the behavior of a simulated echo pin.
type echoMode int

const (
	echoDistance echoMode = iota
	echoMissing
	echoStuckHigh
)

type virtualEcho struct {
	trigger   model.Pin
	mode      echoMode
	distances []float64
}

// NewVirtualBridge implements the bridge for a worker without GPIO hardware.
func NewVirtualBridge(opts Options, clock util.Clock) *VirtualBridge {
	if clock == nil {
		clock = util.SystemClock
	}
	b := &VirtualBridge{
		clock:   clock,
		opts:    opts,
		inputs:  make(map[model.Pin]*virtualInput),
		outputs: make(map[model.Pin]*virtualOutput),
		echoes:  make(map[model.Pin]*virtualEcho),
		pwms:    make(map[model.Pin]*virtualPWM),
		i2c:     &virtualI2CBus{registers: make(map[uint8]map[uint8]uint8)},
	}
	greenLed, _ := b.Output(opts.StatusLEDPin, false, false)
	redLed, _ := b.Output(opts.ErrorLEDPin, false, false)
	b.ledPair = newLedPair(greenLed, redLed)
	return b
}

// Input initializes a GPIO input pin with the given pin number.
// The physical level of an input without a set level follows its pull resistor.
func (b *VirtualBridge) Input(pin model.Pin, activeLow bool, pull Pull) (InputPin, error) {
	if err := pin.Validate(); err != nil {
		return nil, err
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, found := b.outputs[pin]; found {
		return nil, errors.Errorf("pin %d already in use as output", pin)
	}
	in, found := b.inputs[pin]
	if !found {
		in = &virtualInput{bridge: b, pin: pin, level: pull == PullUp}
		b.inputs[pin] = in
	}
	in.activeLow = activeLow
	return in, nil
}

// Output initializes a GPIO output pin with the given pin number
// and initial logical value.
func (b *VirtualBridge) Output(pin model.Pin, activeLow bool, initialValue bool) (OutputPin, error) {
	if err := pin.Validate(); err != nil {
		return nil, err
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, found := b.inputs[pin]; found {
		return nil, errors.Errorf("pin %d already in use as input", pin)
	}
	out, found := b.outputs[pin]
	if !found {
		out = &virtualOutput{bridge: b, pin: pin}
		b.outputs[pin] = out
	}
	out.activeLow = activeLow
	out.Write(initialValue)
	return out, nil
}

// PWM initializes a simulated PWM output on the given BCM pin.
func (b *VirtualBridge) PWM(pin model.Pin) (PWMPin, error) {
	if err := pin.Validate(); err != nil {
		return nil, err
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()

	p, found := b.pwms[pin]
	if !found {
		p = &virtualPWM{}
		b.pwms[pin] = p
	}
	return p, nil
}

// I2CBus returns the simulated I2C bus.
func (b *VirtualBridge) I2CBus() (I2CBus, error) {
	return b.i2c, nil
}

// Close turns off the LEDs.
func (b *VirtualBridge) Close() error {
	return b.closeLeds()
}

// SetInputLevel sets the physical level of the given input pin.
func (b *VirtualBridge) SetInputLevel(pin model.Pin, high bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	in, found := b.inputs[pin]
	if !found {
		in = &virtualInput{bridge: b, pin: pin}
		b.inputs[pin] = in
	}
	in.level = high
}

// OutputValue returns the logical value of the given output pin.
func (b *VirtualBridge) OutputValue(pin model.Pin) (value bool, found bool) {
	b.mutex.Lock()

	out, found := b.outputs[pin]
	b.mutex.Unlock()
	if !found {
		return false, false
	}
	out.mutex.Lock()
	defer out.mutex.Unlock()
	return out.value, true
}

// OutputWrites returns the number of writes to the given output pin.
func (b *VirtualBridge) OutputWrites(pin model.Pin) int {
	b.mutex.Lock()
	out, found := b.outputs[pin]
	b.mutex.Unlock()
	if !found {
		return 0
	}
	out.mutex.Lock()
	defer out.mutex.Unlock()
	return out.writes
}

// SimulateDistance simulates an HC-SR04 with given trigger & echo pins
// seeing an object at the given distance (in cm).
func (b *VirtualBridge) SimulateDistance(trigger, echo model.Pin, distance float64) {
	b.setEcho(echo, &virtualEcho{trigger: trigger, mode: echoDistance, distances: []float64{distance}})
}

// SimulateDistances simulates an HC-SR04 that sees the given distances
// (in cm) on successive trigger pulses, starting over after the last one.
func (b *VirtualBridge) SimulateDistances(trigger, echo model.Pin, distances ...float64) {
	b.setEcho(echo, &virtualEcho{trigger: trigger, mode: echoDistance, distances: distances})
}

// SimulateMissingEcho simulates an echo pin that never rises.
func (b *VirtualBridge) SimulateMissingEcho(trigger, echo model.Pin) {
	b.setEcho(echo, &virtualEcho{trigger: trigger, mode: echoMissing})
}

// SimulateStuckEcho simulates an echo pin that stays high.
func (b *VirtualBridge) SimulateStuckEcho(trigger, echo model.Pin) {
	b.setEcho(echo, &virtualEcho{trigger: trigger, mode: echoStuckHigh})
}

func (b *VirtualBridge) setEcho(echo model.Pin, e *virtualEcho) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.echoes[echo] = e
}

// PWMPulse returns the last pulse set on the given PWM pin.
func (b *VirtualBridge) PWMPulse(pin model.Pin) (width, period time.Duration, running bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	p, found := b.pwms[pin]
	if !found {
		return 0, 0, false
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.width, p.period, p.running
}

// I2CRegister returns the value of a register of a simulated I2C device.
func (b *VirtualBridge) I2CRegister(address, reg uint8) uint8 {
	return b.i2c.register(address, reg)
}

type virtualInput struct {
	bridge    *VirtualBridge
	pin       model.Pin
	activeLow bool
	level     bool
}

// Read returns the logical value of the input.
func (in *virtualInput) Read() (bool, error) {
	b := in.bridge
	b.mutex.Lock()
	level := in.level
	activeLow := in.activeLow
	echo := b.echoes[in.pin]
	var trigger *virtualOutput
	if echo != nil {
		trigger = b.outputs[echo.trigger]
	}
	b.mutex.Unlock()

	if echo != nil {
		level = echo.level(trigger, b.clock.Now())
	}
	return level != activeLow, nil
}

// level returns the physical level of the simulated echo at the given time.
func (e *virtualEcho) level(trigger *virtualOutput, now time.Time) bool {
	switch e.mode {
	case echoMissing:
		return false
	case echoStuckHigh:
		return true
	}
	if trigger == nil {
		return false
	}
	fall, falls := trigger.lastFall()
	if falls == 0 || len(e.distances) == 0 {
		return false
	}
	distance := e.distances[(falls-1)%len(e.distances)]
	pulse := time.Duration(distance / virtualHalfSpeedOfSound * float64(time.Second))
	since := now.Sub(fall)
	return since >= virtualEchoLatency && since < virtualEchoLatency+pulse
}

type virtualOutput struct {
	bridge    *VirtualBridge
	pin       model.Pin
	mutex     sync.Mutex
	activeLow bool
	value     bool
	writes    int
	fall      time.Time
	falls     int
}

// Write sets the logical value of the output.
func (out *virtualOutput) Write(value bool) error {
	out.mutex.Lock()
	defer out.mutex.Unlock()

	if out.value && !value {
		out.fall = out.bridge.clock.Now()
		out.falls++
	}
	out.value = value
	out.writes++
	if value {
		outputPinGauge.WithLabelValues(pinLabel(out.pin)).Set(1)
	} else {
		outputPinGauge.WithLabelValues(pinLabel(out.pin)).Set(0)
	}
	return nil
}

// lastFall returns the time of the last falling edge and the number of
// falling edges so far.
func (out *virtualOutput) lastFall() (time.Time, int) {
	out.mutex.Lock()
	defer out.mutex.Unlock()
	return out.fall, out.falls
}

type virtualPWM struct {
	mutex   sync.Mutex
	width   time.Duration
	period  time.Duration
	running bool
}

func (p *virtualPWM) SetPulse(width, period time.Duration) error {
	if period <= 0 || width < 0 || width > period {
		return errors.Errorf("invalid pulse %s in period %s", width, period)
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.width, p.period, p.running = width, period, true
	return nil
}

func (p *virtualPWM) Halt() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.running = false
	return nil
}

type virtualI2CBus struct {
	mutex     sync.Mutex
	registers map[uint8]map[uint8]uint8
}

// Execute an option on the bus.
func (b *virtualI2CBus) Execute(ctx context.Context, address uint8, op func(ctx context.Context, dev I2CDevice) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()

	regs, found := b.registers[address]
	if !found {
		regs = make(map[uint8]uint8)
		b.registers[address] = regs
	}
	i2cExecuteCounters.WithLabelValues(addressLabel(address)).Inc()
	return op(ctx, virtualI2CDevice(regs))
}

func (b *virtualI2CBus) register(address, reg uint8) uint8 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.registers[address][reg]
}

func (b *virtualI2CBus) Close() error {
	return nil
}

type virtualI2CDevice map[uint8]uint8

func (d virtualI2CDevice) ReadByteReg(reg uint8) (uint8, error) {
	return d[reg], nil
}

func (d virtualI2CDevice) WriteByteReg(reg uint8, val uint8) error {
	d[reg] = val
	return nil
}
