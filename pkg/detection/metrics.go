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

package detection

import (
	"github.com/smartbin/BinWorker/pkg/metrics"
)

const (
	subSystem = "detection"
)

var (
	captureTotal = metrics.MustRegisterCounterVec(subSystem,
		"capture_total",
		"Number of frame captures",
		"camera")
	captureErrorsTotal = metrics.MustRegisterCounterVec(subSystem,
		"capture_errors_total",
		"Number of failed frame captures",
		"camera")
	detectDuration = metrics.MustRegisterHistogramVec(subSystem,
		"detect_duration_seconds",
		"Time spent classifying a frame",
		[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		"detector")
	detectErrorsTotal = metrics.MustRegisterCounterVec(subSystem,
		"detect_errors_total",
		"Number of failed classifications",
		"detector")
	detectionsTotal = metrics.MustRegisterCounterVec(subSystem,
		"detections_total",
		"Number of detected objects by bin",
		"bin")
)
