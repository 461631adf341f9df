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

package objects

import (
	"context"

	"github.com/rs/zerolog"
)

// PresenceSensor detects objects arriving at the intake.
type PresenceSensor interface {
	// Run polls the sensor until the context is canceled, calling onDetect
	// for every debounced trigger.
	Run(ctx context.Context, onDetect func(context.Context)) error
}

// Trigger forwards debounced presence triggers to a handler.
type Trigger struct {
	log     zerolog.Logger
	sensor  PresenceSensor
	handler func(context.Context) error
}

// NewTrigger creates a trigger that invokes the given handler for every
// object detected by the given sensor.
func NewTrigger(sensor PresenceSensor, handler func(context.Context) error, log zerolog.Logger) *Trigger {
	return &Trigger{
		log:     log,
		sensor:  sensor,
		handler: handler,
	}
}

// Run the trigger until the given context is canceled.
// Handlers run synchronously, triggers arriving during a handler
// are subject to the debounce of the sensor.
func (t *Trigger) Run(ctx context.Context) error {
	return t.sensor.Run(ctx, func(ctx context.Context) {
		if err := t.handler(ctx); err != nil {
			triggerErrorsTotal.Inc()
			t.log.Warn().Err(err).Msg("Trigger handler failed")
		}
	})
}
