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

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
)

type statusLed struct {
	sync.Mutex
	pin         OutputPin
	cancelBlink func()
}

// Turn led on/off, cancel blink
func (l *statusLed) Set(on bool) error {
	l.Mutex.Lock()
	defer l.Mutex.Unlock()

	l.stopBlink()
	if err := l.pin.Write(on); err != nil {
		return errors.Wrap(err, "Write failed")
	}
	return nil
}

// Blink led on/off
func (l *statusLed) Blink(delay time.Duration) error {
	if delay <= 0 {
		return errors.Errorf("invalid blink delay %s", delay)
	}
	l.Mutex.Lock()
	defer l.Mutex.Unlock()

	l.stopBlink()
	ctx, cancel := context.WithCancel(context.Background())
	l.cancelBlink = cancel
	go func() {
		value := true
		for {
			l.Mutex.Lock()
			if ctx.Err() == nil {
				l.pin.Write(value)
				value = !value
			}
			l.Mutex.Unlock()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop blinking and turn the led off.
func (l *statusLed) Close() error {
	return l.Set(false)
}

func (l *statusLed) stopBlink() {
	if cancel := l.cancelBlink; cancel != nil {
		l.cancelBlink = nil
		cancel()
	}
}

// ledPair implements the LED part of the API on two output pins.
type ledPair struct {
	greenLed statusLed
	redLed   statusLed
}

func newLedPair(green, red OutputPin) ledPair {
	return ledPair{
		greenLed: statusLed{pin: green},
		redLed:   statusLed{pin: red},
	}
}

// Turn Green status led on/off
func (p *ledPair) SetGreenLED(on bool) error {
	if err := p.greenLed.Set(on); err != nil {
		return errors.Wrap(err, "Set[greenLed] failed")
	}
	return nil
}

// Turn Red status led on/off
func (p *ledPair) SetRedLED(on bool) error {
	if err := p.redLed.Set(on); err != nil {
		return errors.Wrap(err, "Set[redLed] failed")
	}
	return nil
}

// Blink Green status led with given duration between on/off
func (p *ledPair) BlinkGreenLED(delay time.Duration) error {
	if err := p.greenLed.Blink(delay); err != nil {
		return errors.Wrap(err, "Blink[greenLed] failed")
	}
	return nil
}

// Blink Red status led with given duration between on/off
func (p *ledPair) BlinkRedLED(delay time.Duration) error {
	if err := p.redLed.Blink(delay); err != nil {
		return errors.Wrap(err, "Blink[redLed] failed")
	}
	return nil
}

func (p *ledPair) closeLeds() error {
	var ae aerr.AggregateError
	if err := p.greenLed.Close(); err != nil {
		ae.Add(errors.Wrap(err, "Close[greenLed] failed"))
	}
	if err := p.redLed.Close(); err != nil {
		ae.Add(errors.Wrap(err, "Close[redLed] failed"))
	}
	return ae.AsError()
}
