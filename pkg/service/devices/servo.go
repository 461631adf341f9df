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
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartbin/BinWorker/pkg/service/bridge"
	"github.com/smartbin/BinWorker/pkg/service/util"
)

// Servo is a hobby servo positioned by the width of its control pulses.
type Servo interface {
	// SetAngle moves the servo to the given angle (degrees) and waits
	// for it to settle.
	SetAngle(ctx context.Context, angle float64) error
	// Release stops sending pulses, the servo holds no torque.
	Release(ctx context.Context) error
	// Close releases the servo and its resources.
	Close(ctx context.Context) error
}

// ServoConfig holds the pulse settings of a servo.
type ServoConfig struct {
	MinPulse  time.Duration
	MaxPulse  time.Duration
	MaxAngle  float64
	Frequency float64
	Settle    time.Duration
}

// Period returns the time between the start of 2 pulses.
func (c ServoConfig) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.Frequency)
}

// PulseForAngle returns the pulse width for the given angle,
// linear between MinPulse (0 degrees) and MaxPulse (MaxAngle).
// The angle is clamped to [0..MaxAngle].
func (c ServoConfig) PulseForAngle(angle float64) time.Duration {
	angle = math.Max(0, math.Min(c.MaxAngle, angle))
	span := float64(c.MaxPulse - c.MinPulse)
	return c.MinPulse + time.Duration(math.Round(span*angle/c.MaxAngle))
}

// NewSoftPWMServo creates a servo driven by software generated pulses
// on a GPIO output.
func NewSoftPWMServo(name string, pin bridge.OutputPin, config ServoConfig, clock util.Clock, log zerolog.Logger) Servo {
	if clock == nil {
		clock = util.SystemClock
	}
	return &softPWMServo{
		servoBase: servoBase{name: name, config: config, log: log.With().Str("servo", name).Logger()},
		pin:       pin,
		clock:     clock,
	}
}

// NewPCA9685Servo creates a servo on the given output (1..16) of a PCA9685.
func NewPCA9685Servo(name string, pwm PWM, output int, config ServoConfig, log zerolog.Logger) (Servo, error) {
	if output < 1 || output > pwm.PWMPinCount() {
		return nil, errors.Errorf("servo '%s': output %d out of range [1..%d]", name, output, pwm.PWMPinCount())
	}
	return &pca9685Servo{
		servoBase: servoBase{name: name, config: config, log: log.With().Str("servo", name).Logger()},
		pwm:       pwm,
		output:    output,
	}, nil
}

// NewHardwarePWMServo creates a servo driven by a hardware PWM output.
func NewHardwarePWMServo(name string, pin bridge.PWMPin, config ServoConfig, log zerolog.Logger) Servo {
	return &hardwarePWMServo{
		servoBase: servoBase{name: name, config: config, log: log.With().Str("servo", name).Logger()},
		pin:       pin,
	}
}

type servoBase struct {
	mutex  sync.Mutex
	name   string
	config ServoConfig
	log    zerolog.Logger
}

// moved updates metrics & logs after a move.
func (s *servoBase) moved(angle float64, pulse time.Duration, err error) error {
	if err != nil {
		servoErrorsTotal.WithLabelValues(s.name).Inc()
		s.log.Warn().Err(err).Float64("angle", angle).Msg("Set servo failed")
		return errors.Wrapf(err, "servo '%s'", s.name)
	}
	servoAngleGauge.WithLabelValues(s.name).Set(angle)
	s.log.Debug().
		Float64("angle", angle).
		Dur("pulse", pulse).
		Msg("Set servo succeeded")
	return nil
}

type softPWMServo struct {
	servoBase
	pin   bridge.OutputPin
	clock util.Clock
}

// SetAngle generates pulses for the settle time, then stops.
func (s *softPWMServo) SetAngle(ctx context.Context, angle float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	pulse := s.config.PulseForAngle(angle)
	period := s.config.Period()
	cycles := int(s.config.Settle / period)
	if cycles < 1 {
		cycles = 1
	}
	var err error
	for i := 0; i < cycles && err == nil; i++ {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = s.pin.Write(true); err != nil {
			break
		}
		s.clock.Sleep(pulse)
		if err = s.pin.Write(false); err != nil {
			break
		}
		s.clock.Sleep(period - pulse)
	}
	return s.moved(angle, pulse, err)
}

func (s *softPWMServo) Release(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.pin.Write(false)
}

func (s *softPWMServo) Close(ctx context.Context) error {
	return s.Release(ctx)
}

type pca9685Servo struct {
	servoBase
	pwm    PWM
	output int
}

// SetAngle sets the pulse width on the PCA9685 output and waits for the
// servo to settle. The PCA9685 keeps pulsing until Release.
func (s *pca9685Servo) SetAngle(ctx context.Context, angle float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	pulse := s.config.PulseForAngle(angle)
	off := pulseToPWMValue(pulse, s.pwm.Frequency(), s.pwm.MaxPWMValue())
	err := s.pwm.SetPWM(ctx, s.output, 0, off, true)
	if err == nil {
		err = util.Sleep(ctx, s.config.Settle)
	}
	return s.moved(angle, pulse, err)
}

func (s *pca9685Servo) Release(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, off, _, err := s.pwm.GetPWM(ctx, s.output)
	if err != nil {
		return errors.Wrapf(err, "servo '%s'", s.name)
	}
	return s.pwm.SetPWM(ctx, s.output, 0, off, false)
}

func (s *pca9685Servo) Close(ctx context.Context) error {
	return s.Release(ctx)
}

// pulseToPWMValue converts a pulse width into the off value of a PWM
// device running at the given frequency.
func pulseToPWMValue(pulse time.Duration, frequency float64, maxValue uint32) uint32 {
	period := float64(time.Second) / frequency
	v := math.Round(float64(pulse) / period * float64(maxValue+1))
	if v > float64(maxValue) {
		return maxValue
	}
	return uint32(v)
}

type hardwarePWMServo struct {
	servoBase
	pin bridge.PWMPin
}

func (s *hardwarePWMServo) SetAngle(ctx context.Context, angle float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	pulse := s.config.PulseForAngle(angle)
	err := s.pin.SetPulse(pulse, s.config.Period())
	if err == nil {
		err = util.Sleep(ctx, s.config.Settle)
	}
	return s.moved(angle, pulse, err)
}

func (s *hardwarePWMServo) Release(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.pin.Halt()
}

func (s *hardwarePWMServo) Close(ctx context.Context) error {
	return s.Release(ctx)
}
