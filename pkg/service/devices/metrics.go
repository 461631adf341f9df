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
	"github.com/smartbin/BinWorker/pkg/metrics"
)

const (
	subSystem = "devices"
)

var (
	// Ultrasonic metrics
	ultrasonicMeasurementsTotal = metrics.MustRegisterCounterVec(subSystem,
		"ultrasonic_measurements_total",
		"Number of ultrasonic measurements",
		"sensor")
	ultrasonicInvalidTotal = metrics.MustRegisterCounterVec(subSystem,
		"ultrasonic_invalid_total",
		"Number of ultrasonic measurements without valid sample",
		"sensor", "diagnosis")
	ultrasonicDistanceGauge = metrics.MustRegisterGaugeVec(subSystem,
		"ultrasonic_distance_cm",
		"Last valid distance measured by ultrasonic sensor",
		"sensor")

	// IR sensor metrics
	irTriggersTotal = metrics.MustRegisterCounter(subSystem,
		"ir_triggers_total",
		"Number of accepted IR sensor triggers")
	irDebouncedTotal = metrics.MustRegisterCounter(subSystem,
		"ir_debounced_total",
		"Number of IR sensor triggers ignored by the debounce window")
	irReadErrorsTotal = metrics.MustRegisterCounter(subSystem,
		"ir_read_errors_total",
		"Number of IR sensor read errors")

	// Servo metrics
	servoAngleGauge = metrics.MustRegisterGaugeVec(subSystem,
		"servo_angle_degrees",
		"Last angle requested of a servo",
		"servo")
	servoErrorsTotal = metrics.MustRegisterCounterVec(subSystem,
		"servo_errors_total",
		"Number of failed servo moves",
		"servo")
)
