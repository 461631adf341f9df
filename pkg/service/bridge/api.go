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
	"time"

	"github.com/smartbin/BinWorker/model"
)

// API of the bridge, the hardware used to connect the sensors, servos
// and LEDs of the bin to the GPIO header of the board.
type API interface {
	// Turn Green status led on/off
	SetGreenLED(on bool) error
	// Turn Red status led on/off
	SetRedLED(on bool) error
	// Blink Green status led with given duration between on/off
	BlinkGreenLED(delay time.Duration) error
	// Blink Red status led with given duration between on/off
	BlinkRedLED(delay time.Duration) error

	// Open the I2C bus
	I2CBus() (I2CBus, error)

	// Access to local GPIO

	// Input initializes a GPIO input pin with the given BCM pin number.
	Input(pin model.Pin, activeLow bool, pull Pull) (InputPin, error)
	// Output initializes a GPIO output pin with the given BCM pin number
	// and initial logical value.
	Output(pin model.Pin, activeLow bool, initialValue bool) (OutputPin, error)

	Close() error
}

// PWMProvider is implemented by bridges that offer hardware PWM.
type PWMProvider interface {
	// PWM initializes a hardware PWM output on the given BCM pin.
	PWM(pin model.Pin) (PWMPin, error)
}

// Pull selects the internal pull resistor of an input pin.
type Pull int

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

func (p Pull) String() string {
	switch p {
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	default:
		return "none"
	}
}

// InputPin is the interface satisfied by GPIO input pins.
type InputPin interface {
	Read() (bool, error)
}

// OutputPin is the interface satisfied by GPIO output pins.
type OutputPin interface {
	Write(bool) error
}

// PWMPin is the interface satisfied by hardware PWM outputs.
type PWMPin interface {
	// SetPulse outputs pulses of the given width with the given period.
	SetPulse(width, period time.Duration) error
	// Halt stops generating pulses.
	Halt() error
}

// Options of all bridge implementations.
type Options struct {
	// BCM pin of the green (status) LED
	StatusLEDPin model.Pin
	// BCM pin of the red (error) LED
	ErrorLEDPin model.Pin
}
