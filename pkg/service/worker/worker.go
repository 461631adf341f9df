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

package worker

import (
	"context"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/config"
	"github.com/smartbin/BinWorker/pkg/service/bridge"
	"github.com/smartbin/BinWorker/pkg/service/devices"
	"github.com/smartbin/BinWorker/pkg/service/objects"
	"github.com/smartbin/BinWorker/pkg/service/util"
)

// Dependencies of the hardware builder.
type Dependencies struct {
	Log    zerolog.Logger
	Bridge bridge.API
	// Clock used for pulse timing; nil selects the system clock
	Clock util.Clock
}

// Hardware holds the devices & objects built from the configuration.
// Fields are nil for parts that were not built.
type Hardware struct {
	log     zerolog.Logger
	Sensors map[model.Bin]*devices.UltrasonicSensor
	IR      *devices.IRSensor
	Monitor *objects.BinMonitor
	Doors   *objects.DoorController
	pwm     devices.PWM
}

// NewHardware creates an empty set of hardware.
// Use the Build methods to fill it.
func NewHardware(log zerolog.Logger) *Hardware {
	return &Hardware{log: log}
}

// Build creates all devices & objects of the bin.
func Build(ctx context.Context, cfg config.Config, deps Dependencies) (*Hardware, error) {
	h := NewHardware(deps.Log)
	if err := h.BuildSensors(cfg, deps); err != nil {
		return nil, err
	}
	log := deps.Log.With().Str("component", "ir").Logger()
	ir, err := devices.NewIRSensor(deps.Bridge, devices.IRConfig{
		Pin:          cfg.IR.Pin,
		Debounce:     cfg.IR.Debounce,
		PollInterval: cfg.IR.PollInterval,
	}, deps.Clock, log)
	if err != nil {
		h.Close(ctx)
		return nil, err
	}
	h.IR = ir
	if err := h.BuildDoors(ctx, cfg, deps); err != nil {
		h.Close(ctx)
		return nil, err
	}
	return h, nil
}

// BuildSensors creates the ultrasonic sensor of every bin and the bin
// monitor on top of them.
func (h *Hardware) BuildSensors(cfg config.Config, deps Dependencies) error {
	log := deps.Log.With().Str("component", "ultrasonic").Logger()
	h.Sensors = make(map[model.Bin]*devices.UltrasonicSensor)
	levelSensors := make(map[model.Bin]objects.LevelSensor)
	for _, b := range model.AllBins {
		bc, found := cfg.Bin(b)
		if !found {
			continue
		}
		s, err := devices.NewUltrasonicSensor(b.String(), deps.Bridge, devices.UltrasonicConfig{
			TriggerPin:     bc.TriggerPin,
			EchoPin:        bc.EchoPin,
			Depth:          bc.Depth,
			EchoTimeout:    cfg.Ultrasonic.EchoTimeout,
			SampleInterval: cfg.Ultrasonic.SampleInterval,
			MinDistance:    cfg.Ultrasonic.MinDistance,
			MaxDistance:    cfg.Ultrasonic.MaxDistance,
		}, deps.Clock, log)
		if err != nil {
			return err
		}
		h.Sensors[b] = s
		levelSensors[b] = s
	}
	h.Monitor = objects.NewBinMonitor(levelSensors, cfg.Ultrasonic.Samples,
		deps.Log.With().Str("component", "bin-monitor").Logger())
	return nil
}

// BuildDoors creates the servo of every bin, using the configured driver,
// and the door controller on top of them.
func (h *Hardware) BuildDoors(ctx context.Context, cfg config.Config, deps Dependencies) error {
	log := deps.Log.With().Str("component", "servo").Logger()
	sc := devices.ServoConfig{
		MinPulse:  cfg.Servo.MinPulse,
		MaxPulse:  cfg.Servo.MaxPulse,
		MaxAngle:  cfg.Servo.MaxAngle,
		Frequency: cfg.Servo.Frequency,
		Settle:    cfg.Servo.Settle,
	}

	var newServo func(b model.Bin, bc config.BinConfig) (devices.Servo, error)
	switch cfg.Servo.Driver {
	case config.ServoDriverSoftPWM, "":
		newServo = func(b model.Bin, bc config.BinConfig) (devices.Servo, error) {
			pin, err := deps.Bridge.Output(bc.ServoPin, false, false)
			if err != nil {
				return nil, err
			}
			return devices.NewSoftPWMServo(b.String(), pin, sc, deps.Clock, log), nil
		}
	case config.ServoDriverPCA9685:
		bus, err := deps.Bridge.I2CBus()
		if err != nil {
			return errors.Wrap(err, "failed to open I2C bus")
		}
		pwm, err := devices.NewPCA9685(bus, byte(cfg.Servo.PCA9685Address), cfg.Servo.Frequency)
		if err != nil {
			return err
		}
		if err := pwm.Configure(ctx); err != nil {
			return errors.Wrap(err, "failed to configure PCA9685")
		}
		h.pwm = pwm
		newServo = func(b model.Bin, bc config.BinConfig) (devices.Servo, error) {
			return devices.NewPCA9685Servo(b.String(), pwm, bc.ServoChannel, sc, log)
		}
	case config.ServoDriverPeriph:
		provider, ok := deps.Bridge.(bridge.PWMProvider)
		if !ok {
			return errors.Wrap(model.ValidationError, "servo driver 'periph' requires a bridge with hardware PWM")
		}
		newServo = func(b model.Bin, bc config.BinConfig) (devices.Servo, error) {
			pin, err := provider.PWM(bc.ServoPin)
			if err != nil {
				return nil, err
			}
			return devices.NewHardwarePWMServo(b.String(), pin, sc, log), nil
		}
	default:
		return errors.Wrapf(model.ValidationError, "unknown servo driver '%s'", cfg.Servo.Driver)
	}

	servos := make(map[model.Bin]devices.Servo)
	for _, b := range model.AllBins {
		bc, found := cfg.Bin(b)
		if !found {
			continue
		}
		s, err := newServo(b, bc)
		if err != nil {
			for _, x := range servos {
				x.Close(ctx)
			}
			return errors.Wrapf(err, "servo of bin '%s'", b)
		}
		servos[b] = s
	}
	h.Doors = objects.NewDoorController(servos, cfg.Servo.OpenAngle, cfg.Servo.ClosedAngle,
		deps.Log.With().Str("component", "doors").Logger())
	return nil
}

// Close brings all hardware into a safe state.
// Doors are closed before anything else is released.
func (h *Hardware) Close(ctx context.Context) error {
	var ae aerr.AggregateError
	if h.Doors != nil {
		if err := h.Doors.Close(ctx); err != nil {
			ae.Add(err)
		}
	}
	if h.pwm != nil {
		if err := h.pwm.Close(ctx); err != nil {
			ae.Add(errors.Wrap(err, "close PCA9685"))
		}
	}
	for _, b := range model.AllBins {
		if s, found := h.Sensors[b]; found {
			if err := s.Close(ctx); err != nil {
				ae.Add(errors.Wrapf(err, "close ultrasonic sensor '%s'", b))
			}
		}
	}
	if err := ae.AsError(); err != nil {
		h.log.Warn().Err(err).Msg("Closing hardware failed")
		return err
	}
	return nil
}
