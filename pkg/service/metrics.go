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

package service

import (
	"github.com/smartbin/BinWorker/pkg/metrics"
)

const (
	subSystem = "service"
)

var (
	triggersTotal = metrics.MustRegisterCounter(subSystem,
		"triggers_total",
		"Total number of processing triggers")
	triggersIgnoredTotal = metrics.MustRegisterCounter(subSystem,
		"triggers_ignored_total",
		"Total number of triggers ignored because an item was being processed")
	processedTotal = metrics.MustRegisterCounterVec(subSystem,
		"processed_total",
		"Total number of processed items per destination",
		"destination")
	processErrorsTotal = metrics.MustRegisterCounter(subSystem,
		"process_errors_total",
		"Total number of failed processing runs")
	noFrameTotal = metrics.MustRegisterCounter(subSystem,
		"no_frame_total",
		"Total number of processing runs without camera frame")
	processingGauge = metrics.MustRegisterGauge(subSystem,
		"processing",
		"1 while an item is being processed")
	processDuration = metrics.MustRegisterHistogram(subSystem,
		"process_duration_seconds",
		"Duration of processing runs",
		[]float64{0.5, 1, 2, 3, 5, 10, 20})
	alertsTotal = metrics.MustRegisterCounterVec(subSystem,
		"alerts_total",
		"Total number of bin full alerts",
		"bin")
	historyErrorsTotal = metrics.MustRegisterCounter(subSystem,
		"history_errors_total",
		"Total number of failed history writes")
)
