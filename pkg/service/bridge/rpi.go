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
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ecc1/gpio"
	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartbin/BinWorker/model"
)

const (
	rpiI2CBusPath = "/dev/i2c-1"
)

// Root of the sysfs GPIO interface.
var sysfsGPIORoot = "/sys/class/gpio"

type piBridge struct {
	ledPair
	log      zerolog.Logger
	mutex    sync.Mutex
	base     int
	bus      I2CBus
	exported []int
}

// NewRaspberryPiBridge implements the bridge for Raspberry PI's
// using the sysfs GPIO interface.
// BCM pin numbers are offset by the base of the pin controller chip,
// which is 512 on recent kernels.
func NewRaspberryPiBridge(log zerolog.Logger, opts Options) (API, error) {
	base, err := sysfsGPIOBase(sysfsGPIORoot)
	if err != nil {
		return nil, errors.Wrap(err, "sysfsGPIOBase failed")
	}
	p := &piBridge{
		log:  log.With().Str("bridge", "rpi").Int("gpio_base", base).Logger(),
		base: base,
	}
	activeLow := false
	initialValue := false
	greenLed, err := gpio.Output(p.sysfsPin(opts.StatusLEDPin), activeLow, initialValue)
	if err != nil {
		return nil, errors.Wrap(err, "Output[greenLed] failed")
	}
	redLed, err := gpio.Output(p.sysfsPin(opts.ErrorLEDPin), activeLow, initialValue)
	if err != nil {
		return nil, errors.Wrap(err, "Output[redLed] failed")
	}
	p.ledPair = newLedPair(greenLed, redLed)
	p.exported = []int{p.sysfsPin(opts.StatusLEDPin), p.sysfsPin(opts.ErrorLEDPin)}
	return p, nil
}

// sysfsGPIOBase returns the sysfs number of BCM pin 0.
// The pin controller chip is preferred, otherwise the chip with the
// lowest base is used. Without any chip the base is 0.
func sysfsGPIOBase(root string) (int, error) {
	chips, err := filepath.Glob(filepath.Join(root, "gpiochip*"))
	if err != nil {
		return 0, errors.WithStack(err)
	}
	sort.Strings(chips)
	base := -1
	for _, chip := range chips {
		raw, err := os.ReadFile(filepath.Join(chip, "base"))
		if err != nil {
			continue
		}
		b, err := strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil {
			return 0, errors.Wrapf(err, "invalid base in %s", chip)
		}
		if label, err := os.ReadFile(filepath.Join(chip, "label")); err == nil {
			l := strings.TrimSpace(string(label))
			if strings.HasPrefix(l, "pinctrl-") {
				return b, nil
			}
		}
		if base < 0 || b < base {
			base = b
		}
	}
	if base < 0 {
		return 0, nil
	}
	return base, nil
}

// sysfsPin converts a BCM pin number into a sysfs GPIO number.
func (p *piBridge) sysfsPin(pin model.Pin) int {
	return p.base + int(pin)
}

// Input initializes a GPIO input pin with the given pin number.
// The sysfs interface cannot configure pull resistors, those must be
// set with a gpio= line in config.txt (or an external resistor).
// Use the periph bridge when pull resistors are needed.
func (p *piBridge) Input(pin model.Pin, activeLow bool, pull Pull) (InputPin, error) {
	if err := pin.Validate(); err != nil {
		return nil, err
	}
	if pull != PullNone {
		p.log.Warn().
			Int("pin", int(pin)).
			Str("pull", pull.String()).
			Msg("Pull resistor cannot be set through sysfs; configure it in /boot/config.txt")
	}
	in, err := gpio.Input(p.sysfsPin(pin), activeLow)
	if err != nil {
		return nil, errors.Wrapf(err, "Input(%d) failed", pin)
	}
	p.registerExport(pin)
	return in, nil
}

// Output initializes a GPIO output pin with the given pin number
// and initial logical value.
func (p *piBridge) Output(pin model.Pin, activeLow bool, initialValue bool) (OutputPin, error) {
	if err := pin.Validate(); err != nil {
		return nil, err
	}
	out, err := gpio.Output(p.sysfsPin(pin), activeLow, initialValue)
	if err != nil {
		return nil, errors.Wrapf(err, "Output(%d) failed", pin)
	}
	p.registerExport(pin)
	return out, nil
}

func (p *piBridge) registerExport(pin model.Pin) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.exported = append(p.exported, p.sysfsPin(pin))
}

// Open the I2C bus
func (p *piBridge) I2CBus() (I2CBus, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.bus == nil {
		bus, err := NewI2CBus(rpiI2CBusPath)
		if err != nil {
			return nil, errors.Wrap(err, "NewI2CBus failed")
		}
		p.bus = bus
	}
	return p.bus, nil
}

// Close turns off the LEDs, closes the I2C bus and unexports all pins.
func (p *piBridge) Close() error {
	var ae aerr.AggregateError
	if err := p.closeLeds(); err != nil {
		ae.Add(err)
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.bus != nil {
		bus := p.bus
		p.bus = nil
		if err := bus.Close(); err != nil {
			ae.Add(errors.Wrap(err, "Close[i2c] failed"))
		}
	}
	for _, pin := range p.exported {
		if err := os.WriteFile(filepath.Join(sysfsGPIORoot, "unexport"), []byte(strconv.Itoa(pin)), 0644); err != nil {
			p.log.Debug().Err(err).Int("pin", pin).Msg("Unexport failed")
		}
	}
	p.exported = nil
	return ae.AsError()
}
