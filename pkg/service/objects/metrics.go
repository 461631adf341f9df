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
	"github.com/smartbin/BinWorker/pkg/metrics"
)

const (
	subSystem = "objects"
)

var (
	// Bin monitor metrics
	binFillLevelGauge = metrics.MustRegisterGaugeVec(subSystem,
		"bin_fill_level_percent",
		"Last measured fill level of a bin",
		"bin")
	binFullGauge = metrics.MustRegisterGaugeVec(subSystem,
		"bin_full",
		"Bin is at or above the full threshold (0=no, 1=yes)",
		"bin")
	binSensorInvalidTotal = metrics.MustRegisterCounterVec(subSystem,
		"bin_sensor_invalid_total",
		"Number of fill level measurements without valid distance",
		"bin")
	binMonitorErrorsTotal = metrics.MustRegisterCounter(subSystem,
		"bin_monitor_errors_total",
		"Number of failed bin monitor rounds")

	// Door metrics
	doorMovesTotal = metrics.MustRegisterCounterVec(subSystem,
		"door_moves_total",
		"Number of door moves",
		"bin", "position")
	doorAngleGauge = metrics.MustRegisterGaugeVec(subSystem,
		"door_angle_degrees",
		"Current angle of a bin door",
		"bin")

	// Trigger metrics
	triggerErrorsTotal = metrics.MustRegisterCounter(subSystem,
		"trigger_errors_total",
		"Number of triggers that failed to process")
)
