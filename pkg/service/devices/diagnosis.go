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
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/smartbin/BinWorker/model"
)

// Diagnosis classifies why an ultrasonic sensor produced no valid measurement.
type Diagnosis string

const (
	// The echo pin never went high.
	DiagnosisZeroPulse Diagnosis = "zero_pulse"
	// The echo pin stayed high until the timeout.
	DiagnosisTimeoutPulse Diagnosis = "timeout_pulse"
	// The echo pulse was measured, but the distance is outside the valid band.
	DiagnosisOutOfRange Diagnosis = "out_of_range"
)

// Cause returns the likely hardware root cause.
func (d Diagnosis) Cause() string {
	switch d {
	case DiagnosisZeroPulse:
		return "echo never rose: echo pin not connected or wrong echo pin configured"
	case DiagnosisTimeoutPulse:
		return "echo stuck high: 5V echo wired into a 3.3V GPIO without divider, or wrong pin"
	case DiagnosisOutOfRange:
		return "no object in range or sensor misaligned"
	default:
		return "unknown"
	}
}

// Remediation returns what to check or change to fix the problem.
func (d Diagnosis) Remediation() string {
	switch d {
	case DiagnosisZeroPulse:
		return "check echo wiring and the trigger/echo BCM pin assignment"
	case DiagnosisTimeoutPulse:
		return "add a voltage divider on echo (e.g. 1k/2k) and verify the echo pin"
	case DiagnosisOutOfRange:
		return "check sensor mounting and wiring"
	default:
		return "check wiring"
	}
}

// NoValidMeasurementError is returned when none of the samples of an
// ultrasonic measurement produced a distance inside the valid band.
type NoValidMeasurementError struct {
	TriggerPin   model.Pin
	EchoPin      model.Pin
	Samples      int
	LastPulse    time.Duration
	LastDistance float64
	Diagnosis    Diagnosis
}

func (e *NoValidMeasurementError) Error() string {
	return fmt.Sprintf("no valid distance (trig=%d echo=%d): last pulse=%.4fs dist=%.1fcm: %s; %s",
		e.TriggerPin, e.EchoPin, e.LastPulse.Seconds(), e.LastDistance, e.Diagnosis.Cause(), e.Diagnosis.Remediation())
}

// AsNoValidMeasurement returns the NoValidMeasurementError in the chain of
// the given error, if any.
func AsNoValidMeasurement(err error) (*NoValidMeasurementError, bool) {
	var nvm *NoValidMeasurementError
	if errors.As(err, &nvm) {
		return nvm, true
	}
	return nil, false
}
