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
	waitForObjectInterval = 100 * time.Millisecond
)

// IRConfig holds the settings of an IR proximity sensor.
type IRConfig struct {
	Pin model.Pin
	// Minimum time between accepted triggers
	Debounce time.Duration
	// Interval between reads of the sensor in Run
	PollInterval time.Duration
}

// IRSensor is an IR proximity sensor with an open collector output
// that pulls the line low when an object is present.
type IRSensor struct {
	log         zerolog.Logger
	config      IRConfig
	clock       util.Clock
	pin         bridge.InputPin
	mutex       sync.Mutex
	lastTrigger time.Time
	lastPresent bool
}

// NewIRSensor configures the input pin (active low, pull-up) of an IR sensor.
func NewIRSensor(api bridge.API, config IRConfig, clock util.Clock, log zerolog.Logger) (*IRSensor, error) {
	if clock == nil {
		clock = util.SystemClock
	}
	pin, err := api.Input(config.Pin, true, bridge.PullUp)
	if err != nil {
		return nil, errors.Wrap(err, "IR sensor pin")
	}
	log.Info().Int("pin", int(config.Pin)).Msg("IR sensor initialized")
	return &IRSensor{
		log:    log,
		config: config,
		clock:  clock,
		pin:    pin,
	}, nil
}

// IsObjectPresent returns true when the sensor sees an object.
func (s *IRSensor) IsObjectPresent() (bool, error) {
	present, err := s.pin.Read()
	if err != nil {
		irReadErrorsTotal.Inc()
		return false, errors.Wrap(err, "IR sensor read failed")
	}
	return present, nil
}

// WaitForObject blocks until an object is present, the timeout expires
// (returns false) or the context is canceled.
// A timeout <= 0 waits without limit.
func (s *IRSensor) WaitForObject(ctx context.Context, timeout time.Duration) (bool, error) {
	start := s.clock.Now()
	for {
		present, err := s.IsObjectPresent()
		if err != nil {
			return false, err
		}
		if present {
			s.log.Info().Msg("Object detected by IR sensor")
			return true, nil
		}
		if timeout > 0 && s.clock.Now().Sub(start) > timeout {
			s.log.Info().Msg("IR sensor wait timeout")
			return false, nil
		}
		if err := util.Sleep(ctx, waitForObjectInterval); err != nil {
			return false, err
		}
	}
}

// Run polls the sensor until the given context is canceled.
// Every accepted trigger (an object arriving, outside the debounce window)
// invokes onDetect.
func (s *IRSensor) Run(ctx context.Context, onDetect func(context.Context)) error {
	defer s.log.Debug().Msg("IRSensor.Run terminated")
	recentErrors := 0
	for {
		present, err := s.IsObjectPresent()
		if err != nil {
			if recentErrors == 0 {
				s.log.Error().Err(err).Msg("Read value failed")
			}
			recentErrors++
		} else {
			recentErrors = 0
			if s.handleLevel(present, s.clock.Now()) {
				s.log.Info().Msg("IR sensor triggered - object detected")
				onDetect(ctx)
			}
		}
		if err := util.Sleep(ctx, s.config.PollInterval); err != nil {
			return nil
		}
	}
}

// handleLevel processes a sensor reading and returns true when it is an
// accepted trigger: a transition from absent to present at least
// Debounce after the previously accepted trigger.
func (s *IRSensor) handleLevel(present bool, now time.Time) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	edge := present && !s.lastPresent
	s.lastPresent = present
	if !edge {
		return false
	}
	if !s.lastTrigger.IsZero() && now.Sub(s.lastTrigger) < s.config.Debounce {
		irDebouncedTotal.Inc()
		return false
	}
	s.lastTrigger = now
	irTriggersTotal.Inc()
	return true
}
