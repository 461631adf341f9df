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
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/smartbin/BinWorker/model"
	"github.com/smartbin/BinWorker/pkg/service/bridge"
	"github.com/smartbin/BinWorker/pkg/service/util"
)

const (
	// Speed of sound (34300 cm/s) divided by 2 for the round trip.
	halfSpeedOfSound = 17150.0
	triggerPulse     = 10 * time.Microsecond
	ultrasonicSettle = 100 * time.Millisecond
)

// UltrasonicConfig holds the settings of an HC-SR04 sensor.
type UltrasonicConfig struct {
	TriggerPin model.Pin
	EchoPin    model.Pin
	// Depth of the bin in cm
	Depth float64
	// Maximum time to wait for the echo to rise & to fall
	EchoTimeout time.Duration
	// Pause between samples
	SampleInterval time.Duration
	// Valid distances are strictly between MinDistance & MaxDistance (cm)
	MinDistance float64
	MaxDistance float64
}

// UltrasonicSensor measures distances with an HC-SR04.
type UltrasonicSensor struct {
	name    string
	log     zerolog.Logger
	config  UltrasonicConfig
	clock   util.Clock
	mutex   sync.Mutex
	trigger bridge.OutputPin
	echo    bridge.InputPin
}

// sample is the result of a single trigger/echo cycle.
type sample struct {
	rose     bool
	timedOut bool
	pulse    time.Duration
	distance float64
}

// NewUltrasonicSensor configures the trigger & echo pins of an HC-SR04
// and lets the sensor settle.
func NewUltrasonicSensor(name string, api bridge.API, config UltrasonicConfig, clock util.Clock, log zerolog.Logger) (*UltrasonicSensor, error) {
	if clock == nil {
		clock = util.SystemClock
	}
	trigger, err := api.Output(config.TriggerPin, false, false)
	if err != nil {
		return nil, errors.Wrapf(err, "trigger pin of ultrasonic sensor '%s'", name)
	}
	echo, err := api.Input(config.EchoPin, false, bridge.PullNone)
	if err != nil {
		return nil, errors.Wrapf(err, "echo pin of ultrasonic sensor '%s'", name)
	}
	clock.Sleep(ultrasonicSettle)
	s := &UltrasonicSensor{
		name:    name,
		log:     log.With().Str("sensor", name).Logger(),
		config:  config,
		clock:   clock,
		trigger: trigger,
		echo:    echo,
	}
	s.log.Info().
		Int("trigger", int(config.TriggerPin)).
		Int("echo", int(config.EchoPin)).
		Msg("Ultrasonic sensor initialized")
	return s, nil
}

// Name returns the name of the sensor.
func (s *UltrasonicSensor) Name() string {
	return s.name
}

// Config returns the configuration of the sensor.
func (s *UltrasonicSensor) Config() UltrasonicConfig {
	return s.config
}

// MeasureDistance takes the given number of samples and returns the
// mean of the valid distances (in cm).
// Returns a NoValidMeasurementError when no sample is valid.
func (s *UltrasonicSensor) MeasureDistance(ctx context.Context, samples int) (float64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if samples < 1 {
		samples = 1
	}
	ultrasonicMeasurementsTotal.WithLabelValues(s.name).Inc()
	var sum float64
	var valid int
	var last sample
	for i := 0; i < samples; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		var err error
		last, err = s.measureOnce()
		if err != nil {
			return 0, err
		}
		if s.isValid(last.distance) {
			sum += last.distance
			valid++
		}
		s.clock.Sleep(s.config.SampleInterval)
	}

	if valid == 0 {
		nvm := &NoValidMeasurementError{
			TriggerPin:   s.config.TriggerPin,
			EchoPin:      s.config.EchoPin,
			Samples:      samples,
			LastPulse:    last.pulse,
			LastDistance: last.distance,
			Diagnosis:    last.diagnose(),
		}
		ultrasonicInvalidTotal.WithLabelValues(s.name, string(nvm.Diagnosis)).Inc()
		return 0, nvm
	}
	avg := sum / float64(valid)
	ultrasonicDistanceGauge.WithLabelValues(s.name).Set(avg)
	s.log.Debug().Float64("distance", avg).Msg("Measured distance")
	return avg, nil
}

// measureOnce sends a trigger pulse and measures the echo.
func (s *UltrasonicSensor) measureOnce() (sample, error) {
	if err := s.trigger.Write(true); err != nil {
		return sample{}, errors.Wrap(err, "trigger high failed")
	}
	s.clock.Sleep(triggerPulse)
	if err := s.trigger.Write(false); err != nil {
		return sample{}, errors.Wrap(err, "trigger low failed")
	}

	var result sample
	// Wait for echo to rise
	waitStart := s.clock.Now()
	pulseStart := waitStart
	for {
		high, err := s.echo.Read()
		if err != nil {
			return sample{}, errors.Wrap(err, "echo read failed")
		}
		if high {
			result.rose = true
			break
		}
		pulseStart = s.clock.Now()
		if pulseStart.Sub(waitStart) > s.config.EchoTimeout {
			break
		}
	}

	// Measure the time echo stays high
	pulseEnd := s.clock.Now()
	if result.rose {
		for {
			high, err := s.echo.Read()
			if err != nil {
				return sample{}, errors.Wrap(err, "echo read failed")
			}
			if !high {
				break
			}
			pulseEnd = s.clock.Now()
			if pulseEnd.Sub(pulseStart) > s.config.EchoTimeout {
				result.timedOut = true
				break
			}
		}
		result.pulse = pulseEnd.Sub(pulseStart)
	}
	result.distance = DistanceForPulse(result.pulse)
	return result, nil
}

func (s *UltrasonicSensor) isValid(distance float64) bool {
	return distance > s.config.MinDistance && distance < s.config.MaxDistance
}

// diagnose classifies an invalid sample.
func (r sample) diagnose() Diagnosis {
	switch {
	case !r.rose || r.pulse == 0:
		return DiagnosisZeroPulse
	case r.timedOut:
		return DiagnosisTimeoutPulse
	default:
		return DiagnosisOutOfRange
	}
}

// DistanceForPulse converts an echo pulse width into a distance in cm,
// rounded to 2 decimals.
func DistanceForPulse(pulse time.Duration) float64 {
	return model.Round2(pulse.Seconds() * halfSpeedOfSound)
}

// FillPercent converts a distance from the sensor into a fill level
// (0-100) of a bin with given depth.
func FillPercent(depth, distance float64) float64 {
	if depth <= 0 {
		return 0
	}
	fill := (depth - distance) / depth * 100
	if fill < 0 {
		return 0
	}
	if fill > 100 {
		return 100
	}
	return fill
}

// FillLevel measures the fill level of the bin in percent.
// When no valid measurement is possible, it returns 0 together with
// the NoValidMeasurementError.
func (s *UltrasonicSensor) FillLevel(ctx context.Context, samples int) (float64, error) {
	distance, err := s.MeasureDistance(ctx, samples)
	if err != nil {
		return 0, err
	}
	fill := FillPercent(s.config.Depth, distance)
	s.log.Debug().Float64("fill", fill).Msg("Bin fill level")
	return fill, nil
}

// IsFull returns true when the fill level is at or above the given threshold.
// A sensor without valid measurement is never full.
func (s *UltrasonicSensor) IsFull(ctx context.Context, samples int, threshold float64) (bool, error) {
	fill, err := s.FillLevel(ctx, samples)
	if err != nil {
		if nvm, ok := AsNoValidMeasurement(err); ok {
			s.log.Warn().Str("diagnosis", string(nvm.Diagnosis)).Msg(nvm.Error())
			return false, nil
		}
		return false, err
	}
	return fill >= threshold, nil
}

// Close drives the trigger low.
func (s *UltrasonicSensor) Close(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.trigger.Write(false)
}
