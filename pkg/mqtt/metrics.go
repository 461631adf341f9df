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

package mqtt

import (
	"github.com/smartbin/BinWorker/pkg/metrics"
)

const (
	subSystem = "mqtt"
)

var (
	connectedGauge = metrics.MustRegisterGauge(subSystem,
		"connected",
		"1 when connected to the MQTT broker")
	publishTotal = metrics.MustRegisterCounterVec(subSystem,
		"publish_total",
		"Number of published MQTT messages",
		"topic")
	publishErrorsTotal = metrics.MustRegisterCounterVec(subSystem,
		"publish_errors_total",
		"Number of MQTT messages that failed to publish",
		"topic")
)
